package compiler

import (
	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/isa"
)

// PropertyTable allocates tag ids sequentially as property names are first
// mentioned (spec.md §3). _parent, _sibling, _child are created before
// parsing begins; _loc is an alias for _parent rather than a distinct tag.
type PropertyTable struct {
	byName map[string]uint32
	names  []string
}

func NewPropertyTable() *PropertyTable {
	t := &PropertyTable{byName: make(map[string]uint32)}
	t.byName["_parent"] = isa.TagParent
	t.byName["_sibling"] = isa.TagSibling
	t.byName["_child"] = isa.TagChild
	t.byName["_loc"] = isa.TagParent
	t.names = []string{"_parent", "_sibling", "_child"}
	return t
}

// Tag returns the tag id for name, allocating a new one on first mention.
func (t *PropertyTable) Tag(name string) uint32 {
	if tag, ok := t.byName[name]; ok {
		return tag
	}
	tag := uint32(len(t.names))
	t.byName[name] = tag
	t.names = append(t.names, name)
	return tag
}

// NameOf returns the canonical name of tag, for diagnostics.
func (t *PropertyTable) NameOf(tag uint32) string {
	if int(tag) < len(t.names) {
		return t.names[tag]
	}
	return "?"
}

// PropSlot is one (tag, value) record attached to an object under
// construction. The value is kept as an unevaluated AST node (or a method
// body) so copies inherited from a class can be re-resolved independently
// once the final link phase knows every object's data-segment offset.
type PropSlot struct {
	Tag      uint32
	Shared   bool
	IsMethod bool
	Value    *ast.Node // constant-value expression, or MethodLit when IsMethod
	CodeOff  int32      // resolved by generateFunctions when IsMethod
}

// ObjectDef is the compile-time representation of one `object`/`class`
// declaration, kept in memory until the final link phase lays out the
// actual data-segment header and property records (spec.md §4.1's
// object-layout rule, plus the parent/sibling/child wiring pass, both
// require every object to be known before any of them are emitted).
type ObjectDef struct {
	Name      string
	Class     *ObjectDef // resolved parent class, nil for a root object
	Props     []PropSlot
	DeclOrder int

	// Wiring (spec.md §4.1, set by wireObjectTree after all objects are
	// parsed, before layout).
	ParentObj *ObjectDef // resolved target of this object's _parent property, if any
	Sibling   *ObjectDef
	Child     *ObjectDef

	Offset int32 // data-segment offset, assigned during layout
}

// findProp returns the index of the slot with the given tag, or -1.
func (o *ObjectDef) findProp(tag uint32) int {
	for i := range o.Props {
		if o.Props[i].Tag == tag {
			return i
		}
	}
	return -1
}

// setProp overwrites an existing slot for tag, or appends a new one.
func (o *ObjectDef) setProp(slot PropSlot) {
	if i := o.findProp(slot.Tag); i >= 0 {
		o.Props[i] = slot
		return
	}
	o.Props = append(o.Props, slot)
}

// applyClass copies every non-shared property of class into o, per
// spec.md §4.1: "every non-shared property of the class is copied verbatim
// into the new object's header; shared properties are inherited at lookup
// time, not copied."
func (o *ObjectDef) applyClass(class *ObjectDef) {
	o.Class = class
	for _, p := range class.Props {
		if !p.Shared {
			o.Props = append(o.Props, p)
		}
	}
}

// wireObjectTree performs the parent/sibling/child linking pass described
// in spec.md §4.1, over every object in declaration order. It only
// recognizes a _parent value that is a bare reference to another object
// (the only shape the language's own examples ever use); anything more
// elaborate is left alone, since a computed parent can't be linked at
// compile time.
func wireObjectTree(objs []*ObjectDef) {
	for _, o := range objs {
		if o.ParentObj == nil {
			continue
		}
		o.Sibling = o.ParentObj.Child
		o.ParentObj.Child = o
	}
	for _, o := range objs {
		if o.Sibling != nil {
			o.setProp(PropSlot{Tag: isa.TagSibling, Value: &ast.Node{Kind: ast.Ident, Name: o.Sibling.Name}})
		}
		if o.Child != nil {
			o.setProp(PropSlot{Tag: isa.TagChild, Value: &ast.Node{Kind: ast.Ident, Name: o.Child.Name}})
		}
	}
}

// layoutObjects emits every object's header into the data segment, in
// declaration order, after wireObjectTree has fixed up _sibling/_child and
// generateFunctions has resolved every method's code offset. Each header is
// the fixed two-word prefix {class_offset, nProperties} (spec.md §3)
// followed by nProperties (tag, value) pairs.
func (c *Compiler) layoutObjects() {
	for _, o := range c.objects {
		classOff := int32(isa.NIL)
		if o.Class != nil {
			classOff = o.Class.Offset
		}
		o.Offset = c.data.Offset()
		c.data.PutLong(classOff)
		c.data.PutLong(int32(len(o.Props)))
		for _, p := range o.Props {
			tag := p.Tag
			if p.Shared {
				tag |= isa.PShared
			}
			c.data.PutLong(int32(tag))
			valOff := c.data.PutLong(0)
			c.emitPropertyValue(o, p, valOff)
		}
		_, redef, mismatch := c.globals.Define(o.Name, ClassObject, o.Offset)
		_ = redef
		_ = mismatch
	}
}

// emitPropertyValue resolves one property's stored 32-bit value: a method's
// already-known code offset, a folded constant, an interned string offset,
// or a fixup against a global that's still undefined.
func (c *Compiler) emitPropertyValue(o *ObjectDef, p PropSlot, valOff int32) {
	if p.IsMethod {
		c.data.PatchLong(valOff, p.CodeOff)
		return
	}
	v := c.foldConst(p.Value)
	switch {
	case v.IsString:
		c.strs.Ref(c.strs.Intern(string(v.Str)), dataFixup(c.data, valOff))
	case v.IsRef:
		c.globals.AddFixup(v.RefName, v.RefClass, dataFixup(c.data, valOff))
	default:
		c.data.PatchLong(valOff, v.Int)
	}
}
