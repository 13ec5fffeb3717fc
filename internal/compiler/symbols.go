package compiler

import "adv2.dev/adv2/internal/ast"

// StorageClass is a global symbol's kind, per spec.md §3.
type StorageClass int

const (
	ClassConstant StorageClass = iota
	ClassVariable
	ClassObject
	ClassFunction
)

func (c StorageClass) String() string {
	switch c {
	case ClassConstant:
		return "constant"
	case ClassVariable:
		return "variable"
	case ClassObject:
		return "object"
	case ClassFunction:
		return "function"
	default:
		return "?"
	}
}

// FixupKind distinguishes where a pending patch lands, per the design
// notes' Fixup sum type (DataOffset | CodeOffset | OutPointer).
type FixupKind int

const (
	FixupData FixupKind = iota
	FixupCode
	FixupPointer
)

// Fixup is a pending patch: once the referent becomes defined, Patch is
// invoked with the resolved 32-bit value. DataOffset/CodeOffset fixups
// close over the segment and offset to patch; OutPointer fixups close over
// a plain *int32 destination (a string's interior self-reference, or any
// other already-allocated slot waiting on a later-defined value).
type Fixup struct {
	Kind  FixupKind
	Patch func(value int32)
}

func dataFixup(seg *Segment, offset int32) Fixup {
	return Fixup{Kind: FixupData, Patch: func(v int32) { seg.PatchLong(offset, v) }}
}

func codeFixup(seg *Segment, offset int32) Fixup {
	return Fixup{Kind: FixupCode, Patch: func(v int32) { seg.PatchLong(offset, v) }}
}

func pointerFixup(dst *int32) Fixup {
	return Fixup{Kind: FixupPointer, Patch: func(v int32) { *dst = v }}
}

// Global is one top-level name: a constant, variable, object, or function.
// Before Defined is set, Pending collects fixups to run once it becomes
// defined; redefinition with a different StorageClass, or redefinition of
// an already-defined symbol, is a compile error (spec.md §3).
type Global struct {
	Name    string
	Class   StorageClass
	Defined bool
	Value   int32 // meaningful once Defined
	Pending []Fixup

	// IsArray marks a ClassVariable declared with a `[size]` byte-array
	// suffix: its data-segment slot holds the array itself rather than a
	// scalar, so a bare reference to it evaluates to that slot's address
	// (like a C array decaying to a pointer) instead of loading through it.
	IsArray bool

	// DeclLine/DeclCol/DeclFile record the first mention, for error
	// messages when a later declaration conflicts.
	DeclLine int
	DeclCol  int
	DeclFile string
}

// GlobalTable is the single compilation-wide symbol table: "global names
// are unique across classes" (spec.md §3).
type GlobalTable struct {
	byName map[string]*Global
	order  []*Global
}

func NewGlobalTable() *GlobalTable {
	return &GlobalTable{byName: make(map[string]*Global)}
}

// Lookup returns the Global named name, or nil.
func (t *GlobalTable) Lookup(name string) *Global {
	return t.byName[name]
}

// All returns every global in declaration order (forward-referenced
// symbols that were never resolved show up here too, for the link-time
// undefined-symbol check).
func (t *GlobalTable) All() []*Global { return t.order }

// Forward creates (or returns the existing) undefined Global named name
// with the given class, used when a reference is encountered before its
// declaration. If name already exists with a different class, ok is false.
func (t *GlobalTable) Forward(name string, class StorageClass) (g *Global, ok bool) {
	if g, exists := t.byName[name]; exists {
		if g.Defined || g.Class == class {
			return g, true
		}
		return g, false
	}
	g = &Global{Name: name, Class: class}
	t.byName[name] = g
	t.order = append(t.order, g)
	return g, true
}

// Define sets value on name's Global (creating it with class if absent),
// runs every pending fixup, and reports whether this is a legal
// definition: redefining an already-Defined symbol, or redefining with a
// different StorageClass, is not allowed.
func (t *GlobalTable) Define(name string, class StorageClass, value int32) (g *Global, redefined, classMismatch bool) {
	g, exists := t.byName[name]
	if !exists {
		g = &Global{Name: name, Class: class}
		t.byName[name] = g
		t.order = append(t.order, g)
	}
	if exists && g.Class != class {
		return g, false, true
	}
	if g.Defined {
		return g, true, false
	}
	g.Class = class
	g.Value = value
	g.Defined = true
	for _, f := range g.Pending {
		f.Patch(value)
	}
	g.Pending = nil
	return g, false, false
}

// AddFixup records f to run once name becomes defined, or runs it
// immediately if it already is.
func (t *GlobalTable) AddFixup(name string, class StorageClass, f Fixup) *Global {
	g, ok := t.Forward(name, class)
	_ = ok
	if g.Defined {
		f.Patch(g.Value)
	} else {
		g.Pending = append(g.Pending, f)
	}
	return g
}

// Local is one argument or local variable inside a function body.
// Arguments are offset 0,1,2,... addressed fp+4*(-3-k), below the saved
// fp and return address; locals are offset 0,1,2,... addressed fp+4*k.
type Local struct {
	Name string
	Off  int
	Init *ast.Node // deferred initializer, compiled at function prologue
}

// LocalScope holds one function's argument and local tables plus the
// innermost-first stack of active catch-bound names, consulted in that
// order during identifier resolution (spec.md §4.1).
type LocalScope struct {
	Args   []Local
	Locals []Local
	Catch  []Local // innermost-first; each Local's Off is its slot index
}

func (s *LocalScope) AddArg(name string) *Local {
	l := Local{Name: name, Off: len(s.Args)}
	s.Args = append(s.Args, l)
	return &s.Args[len(s.Args)-1]
}

func (s *LocalScope) AddLocal(name string, init *ast.Node) *Local {
	l := Local{Name: name, Off: len(s.Locals), Init: init}
	s.Locals = append(s.Locals, l)
	return &s.Locals[len(s.Locals)-1]
}

// FindArg returns the argument named name, searching innermost is
// irrelevant here (arguments don't shadow across nested scopes in this
// language — there is one flat argument list per function).
func (s *LocalScope) FindArg(name string) (*Local, bool) {
	for i := range s.Args {
		if s.Args[i].Name == name {
			return &s.Args[i], true
		}
	}
	return nil, false
}

func (s *LocalScope) FindLocal(name string) (*Local, bool) {
	for i := range s.Locals {
		if s.Locals[i].Name == name {
			return &s.Locals[i], true
		}
	}
	return nil, false
}

// FindCatch searches the active catch-bound names, innermost first.
func (s *LocalScope) FindCatch(name string) (*Local, bool) {
	for i := len(s.Catch) - 1; i >= 0; i-- {
		if s.Catch[i].Name == name {
			return &s.Catch[i], true
		}
	}
	return nil, false
}

// TryDepthTracker tracks the maximum try nesting depth alongside locals so the function's FRAME operand
// can reserve one slot per nested try region for its catch-bound value
// (spec.md §4.3's "allocate one of the reserved try-depth locals").
type TryDepthTracker struct {
	cur, max int
}

func (t *TryDepthTracker) Enter() int {
	t.cur++
	if t.cur > t.max {
		t.max = t.cur
	}
	return t.cur
}

func (t *TryDepthTracker) Exit() { t.cur-- }
