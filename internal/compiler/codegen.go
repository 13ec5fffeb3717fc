package compiler

import (
	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/isa"
)

// genState is the code generator's per-function working state (spec.md
// §4.2). The compiler processes one function/method body at a time, so a
// single instance lives on the Compiler for the duration of that body.
type genState struct {
	locals   *LocalScope
	tryDepth TryDepthTracker
	loops    []*loopFrame

	// totalLocals is the function's final local-variable count, counted
	// before any code is emitted so that try/catch slots (which live right
	// after the last local, see DESIGN.md's frame-layout note) can be
	// addressed correctly even though ordinary locals are assigned slots
	// lazily as their declaring block is reached mid-compile.
	totalLocals int
}

// generateFunctions code-generates every top-level function and every
// object method, in declaration order. Methods are compiled here (rather
// than inline during parsing) because by this point every global name in
// the file has at least been forward-registered, and because a method's
// code offset must be known before layoutObjects writes it into the
// owning object's property record.
func (c *Compiler) generateFunctions() {
	// Code offset 0 is the image's [0x00, OP_HALT] sentinel (spec.md §3),
	// so real function bodies start after it.
	c.code.PutByte(byte(isa.HALT))
	c.code.PutByte(byte(isa.HALT))

	for _, fn := range c.funcs {
		c.compileFunctionBody(fn.Node, nil)
		fn.CodeOff = fn.Node.Num // stashed by compileFunctionBody
		_, redef, mismatch := c.globals.Define(fn.Name, ClassFunction, fn.CodeOff)
		if mismatch || redef {
			// Unreachable: parseFunctionDef already rejected duplicate
			// function names before this pass runs.
			continue
		}
	}
	for _, obj := range c.objects {
		for i := range obj.Props {
			p := &obj.Props[i]
			if !p.IsMethod {
				continue
			}
			c.compileFunctionBody(p.Value, obj)
			p.CodeOff = p.Value.Num
		}
	}
}

// compileFunctionBody emits FRAME/body/RETURNZ for a DefFunc or MethodLit
// node, recording the resulting entry offset in node.Num for the caller to
// pick up (both FuncDef.CodeOff and PropSlot.CodeOff are int32 fields
// filled in from there).
func (c *Compiler) compileFunctionBody(fn *ast.Node, owner *ObjectDef) {
	gs := &genState{locals: &LocalScope{}}
	prev := c.gs
	prevOwner := c.currentMethodOwner
	c.gs = gs
	c.currentMethodOwner = owner
	defer func() {
		c.gs = prev
		c.currentMethodOwner = prevOwner
	}()

	for _, p := range fn.Kids {
		gs.locals.AddArg(p.Name)
	}
	if fn.Body != nil {
		gs.totalLocals = countLocals(fn.Body)
	}

	entry := c.code.Offset()
	fn.Num = entry

	frameSlot := c.code.PutByte(byte(isa.FRAME))
	frameOperandOff := c.code.Reserve(1)

	if fn.Body != nil {
		c.compileBlock(fn.Body)
	}

	c.code.PutByte(byte(isa.RETURNZ))

	frameSize := len(gs.locals.Locals) + gs.tryDepth.max + 1
	if frameSize > 255 {
		panicAt(fn.File, fn.Line, fn.Col, "function has too many locals/try levels for an 8-bit FRAME operand")
	}
	c.code.PatchByte(frameOperandOff, byte(frameSize))
	_ = frameSlot
}

// countLocals mirrors compileBlock/compileStmt's tree walk, counting every
// VarDecl item reachable from a function body without emitting anything, so
// the function's final local count is known before try/catch slots (placed
// right after it) need addressing mid-compile.
func countLocals(n *ast.Node) int {
	if n == nil {
		return 0
	}
	switch n.Kind {
	case ast.Block:
		total := 0
		for _, kid := range n.Kids {
			if kid.Kind == ast.VarDecl {
				total += len(kid.Kids)
				continue
			}
			total += countLocals(kid)
		}
		return total
	case ast.If:
		return countLocals(n.Body) + countLocals(n.ElseBody)
	case ast.While, ast.DoWhile:
		return countLocals(n.Body)
	case ast.For:
		initLocals := 0
		if n.A != nil && n.A.Kind == ast.VarDecl {
			initLocals = len(n.A.Kids)
		}
		return initLocals + countLocals(n.Body)
	case ast.TryStmt:
		return countLocals(n.Body) + countLocals(n.CatchBody) + countLocals(n.FinallyBody)
	default:
		return 0
	}
}

// --- address helpers ---------------------------------------------------

// emitLocalAddr pushes the runtime address of local slot off (as assigned
// by LocalScope.AddLocal) using LADDR with a frame-relative word index.
func (c *Compiler) emitLocalAddr(off int) {
	c.code.PutByte(byte(isa.LADDR))
	c.code.PutByte(byte(int8(off)))
}

func (c *Compiler) emitArgAddr(off int) {
	// arg_k lives at fp + 4*(-3-k) (see DESIGN.md's frame-layout note).
	c.code.PutByte(byte(isa.LADDR))
	c.code.PutByte(byte(int8(-3 - off)))
}

func (c *Compiler) emitCatchAddr(slotIdx int) {
	c.code.PutByte(byte(isa.LADDR))
	c.code.PutByte(byte(int8(slotIdx)))
}

// emitDataAddr pushes a literal data-segment address, patched later if the
// referent isn't defined yet.
func (c *Compiler) emitDataAddr(fixupName string, class StorageClass, knownOff int32, known bool) {
	c.code.PutByte(byte(isa.DADDR))
	off := c.code.Reserve(4)
	if known {
		c.code.PatchLong(off, knownOff)
	} else {
		c.globals.AddFixup(fixupName, class, codeFixup(c.code, off))
	}
}

func (c *Compiler) emitLit32(v int32) {
	c.code.PutByte(byte(isa.LIT))
	c.code.PutLong(v)
}

func (c *Compiler) emitLitFixup(name string, class StorageClass) {
	c.code.PutByte(byte(isa.LIT))
	off := c.code.Reserve(4)
	c.globals.AddFixup(name, class, codeFixup(c.code, off))
}

func (c *Compiler) emitStringLit(s []byte) {
	c.code.PutByte(byte(isa.LIT))
	off := c.code.Reserve(4)
	c.strs.Ref(c.strs.Intern(string(s)), codeFixup(c.code, off))
}
