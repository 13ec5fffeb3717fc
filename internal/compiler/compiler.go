// Package compiler implements the single-pass parser/semantic-analyzer/
// code-generator/image-builder pipeline (spec.md §1, §4).
package compiler

import (
	"fmt"

	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/isa"
	"adv2.dev/adv2/internal/token"
)

// FuncDef is the compile-time record of one function declaration. Its body
// is code-generated in a second sub-pass once every global name that
// appears anywhere in the file has at least been forward-registered,
// mirroring the teacher's "one compiler object walks the whole file twice:
// once to collect, once to generate" structure.
type FuncDef struct {
	Name      string
	Node      *ast.Node
	CodeOff   int32
	NumArgs   int
	DeclOrder int
}

// Compiler holds every piece of state that accumulates across an entire
// source file: the single global symbol table, the property-tag allocator,
// the string pool, the two segments being built (data, code), and the set
// of objects and functions seen so far.
type Compiler struct {
	file string
	src  []byte
	lex  *token.Lexer

	globals *GlobalTable
	props   *PropertyTable
	strs    *StringTable

	data *Segment
	code *Segment

	objects   []*ObjectDef
	objByName map[string]*ObjectDef

	funcs   []*FuncDef
	funcTry map[string]*TryDepthTracker

	pendingParent []pendingParentRef

	Assemble LineAssembler

	gs                 *genState
	currentMethodOwner *ObjectDef

	errs []*CompileError

	mainName string
}

// NewCompiler creates a Compiler ready to compile src (already including-
// spliced by the lexer as it scans), reporting positions against file.
func NewCompiler(src []byte, file, dir string) *Compiler {
	c := &Compiler{
		file:      file,
		src:       src,
		lex:       token.NewLexer(src, file, dir),
		globals:   NewGlobalTable(),
		props:     NewPropertyTable(),
		strs:      NewStringTable(),
		data:      &Segment{},
		code:      &Segment{},
		objByName: make(map[string]*ObjectDef),
		funcTry:   make(map[string]*TryDepthTracker),
		Assemble:  defaultAssembler,
		mainName:  "main",
	}
	// NIL is a predefined constant rather than a lexical literal (it is
	// never listed in the keyword set — spec.md §4.1 — only mentioned as a
	// legal property/initializer value), so it is seeded the same way the
	// built-in property tags are.
	c.globals.Define("NIL", ClassConstant, 0)
	// Offset 0 of the data segment is reserved (spec.md §3, "Reserved
	// zero") so NIL can double as "no object" with no valid data or object
	// offset ever landing on 0.
	c.data.Reserve(4)
	return c
}

// Compile runs the whole pipeline and returns the finished image, or the
// accumulated diagnostics if any top-level declaration failed.
func (c *Compiler) Compile() (img *isa.Image, errs []*CompileError) {
	defer func() {
		if e := recoverAbort(recover()); e != nil {
			img, errs = nil, append(c.errs, e)
		}
	}()
	c.parseProgram()
	if len(c.errs) > 0 {
		return nil, c.errs
	}

	for _, p := range c.pendingParent {
		if target, ok := c.objByName[p.name]; ok {
			p.obj.ParentObj = target
		}
	}

	wireObjectTree(c.objects)

	// Functions (including methods) must be code-generated before object
	// headers are laid out: a method property's value is its CodeOff, which
	// only exists once generateFunctions has run.
	c.generateFunctions()
	if len(c.errs) > 0 {
		return nil, c.errs
	}

	c.layoutObjects()
	if len(c.errs) > 0 {
		return nil, c.errs
	}

	c.strs.PlaceAll(c.data)

	mainEntry, ok := c.resolveMain()
	if !ok {
		c.errf(c.file, 0, 0, "no function named %q", c.mainName)
		return nil, c.errs
	}

	if undef := c.checkUndefined(); len(undef) > 0 {
		return nil, undef
	}

	img = &isa.Image{
		Hdr: isa.ImageHdr{
			DataOffset:   isa.HeaderSize,
			DataSize:     int32(len(c.data.Bytes())),
			StringOffset: 0,
			StringSize:   0,
			CodeOffset:   isa.HeaderSize + int32(len(c.data.Bytes())),
			CodeSize:     int32(len(c.code.Bytes())),
			MainFunction: mainEntry,
		},
		Data:   c.data.Bytes(),
		String: nil,
		Code:   c.code.Bytes(),
	}
	return img, nil
}

// Globals returns every global symbol in declaration order, for the driver's
// `-s` symbol-table dump.
func (c *Compiler) Globals() []*Global {
	return c.globals.All()
}

func (c *Compiler) resolveMain() (int32, bool) {
	for _, f := range c.funcs {
		if f.Name == c.mainName {
			return f.CodeOff, true
		}
	}
	return 0, false
}

// checkUndefined reports every global that is still undefined once the
// whole file has been processed — spec.md §7's link-time error for an
// object/function/variable that's referenced but never declared.
func (c *Compiler) checkUndefined() []*CompileError {
	var out []*CompileError
	for _, g := range c.globals.All() {
		if !g.Defined {
			out = append(out, &CompileError{
				File:    g.DeclFile,
				Line:    g.DeclLine,
				Col:     g.DeclCol,
				Message: "undefined " + g.Class.String() + " " + g.Name,
			})
		}
	}
	return out
}

func (c *Compiler) errf(file string, line, col int, format string, args ...any) {
	e := &CompileError{File: file, Line: line, Col: col, Message: fmt.Sprintf(format, args...)}
	c.errs = append(c.errs, e)
}
