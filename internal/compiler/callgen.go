package compiler

import (
	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/isa"
)

// compileCall compiles a plain function call (spec.md §4.2): arguments in
// reverse source order (so argument 0 ends up closest to the callee's new
// frame), then the callee, then CALL argc.
func (c *Compiler) compileCall(n *ast.Node) {
	if len(n.Kids) > 255 {
		panicAt(n.File, n.Line, n.Col, "too many arguments")
	}
	for i := len(n.Kids) - 1; i >= 0; i-- {
		c.compileExprRV(n.Kids[i])
	}
	c.compileExprRV(n.A)
	c.code.PutByte(byte(isa.CALL))
	c.code.PutByte(byte(len(n.Kids)))
}

// compileSend compiles `[ expr selector args… ]` / `[ super selector
// args… ]` (spec.md §4.1/§4.2). Beyond the reverse-order arguments, a send
// evaluates the class-search base, the receiver, and the selector, then
// emits SEND (argc+2) — SEND pops the selector itself, and the +2 accounts
// for the class base and receiver that stay on the stack as the method's two
// implicit leading arguments, in the same operand-count slot as an ordinary
// call's argc.
func (c *Compiler) compileSend(n *ast.Node) {
	if len(n.Kids) > 253 {
		panicAt(n.File, n.Line, n.Col, "too many arguments")
	}
	for i := len(n.Kids) - 1; i >= 0; i-- {
		c.compileExprRV(n.Kids[i])
	}

	if n.A.Kind == ast.SuperExpr {
		owner := c.currentMethodOwner
		if owner == nil {
			panicAt(n.A.File, n.A.Line, n.A.Col, "'super' used outside a method")
		}
		if owner.Class != nil {
			// owner.Class.Offset isn't resolved yet at method-compile time
			// (layoutObjects runs after generateFunctions), so this always
			// goes through the fixup path, never the known-offset one.
			c.emitDataAddr(owner.Class.Name, ClassObject, 0, false)
		} else {
			c.emitLit32(isa.NIL)
		}
		if loc, ok := c.gs.locals.FindArg("self"); ok {
			c.emitArgAddr(loc.Off)
			c.code.PutByte(byte(isa.LOAD))
		} else {
			panicAt(n.A.File, n.A.Line, n.A.Col, "'self' used outside a method")
		}
	} else {
		c.emitLit32(isa.NIL)
		c.compileExprRV(n.A)
	}

	c.compilePropTag(n)

	c.code.PutByte(byte(isa.SEND))
	c.code.PutByte(byte(len(n.Kids) + 2))
}
