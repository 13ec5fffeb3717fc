package compiler

import (
	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/isa"
)

// place describes an l-value already addressed on the stack: Width says
// whether the subsequent LOAD/STORE should be the 32-bit or 8-bit variant
// (spec.md §4.2's partial-value descriptor).
type place struct {
	Width int // 4 or 1
}

func (c *Compiler) emitLoad(p place) {
	if p.Width == 1 {
		c.code.PutByte(byte(isa.LOADB))
	} else {
		c.code.PutByte(byte(isa.LOAD))
	}
}

func (c *Compiler) emitStore(p place) {
	if p.Width == 1 {
		c.code.PutByte(byte(isa.STOREB))
	} else {
		c.code.PutByte(byte(isa.STORE))
	}
}

// compileAddr pushes the address of an l-value expression and returns its
// access width, without loading through it. Supported forms: a plain
// identifier naming a local/arg/catch-bound name or a global variable, a
// dotted property reference, and an index expression.
func (c *Compiler) compileAddr(n *ast.Node) place {
	switch n.Kind {
	case ast.Ident:
		return c.compileIdentAddr(n)
	case ast.DotExpr:
		c.compileExprRV(n.A)
		c.compilePropTag(n)
		c.code.PutByte(byte(isa.PADDR))
		return place{Width: 4}
	case ast.IndexExpr:
		c.compileExprRV(n.A)
		c.compileExprRV(n.B)
		c.code.PutByte(byte(isa.ADD))
		return place{Width: 1}
	default:
		panicAt(n.File, n.Line, n.Col, "expression is not assignable")
		return place{}
	}
}

func (c *Compiler) compileIdentAddr(n *ast.Node) place {
	if loc, ok := c.gs.locals.FindCatch(n.Name); ok {
		c.emitCatchAddr(loc.Off)
		return place{Width: 4}
	}
	if loc, ok := c.gs.locals.FindLocal(n.Name); ok {
		c.emitLocalAddr(loc.Off)
		return place{Width: 4}
	}
	if loc, ok := c.gs.locals.FindArg(n.Name); ok {
		c.emitArgAddr(loc.Off)
		return place{Width: 4}
	}
	if g := c.globals.Lookup(n.Name); g != nil {
		switch g.Class {
		case ClassVariable:
			c.emitDataAddr(n.Name, ClassVariable, g.Value, g.Defined)
			return place{Width: 4}
		case ClassObject:
			c.emitDataAddr(n.Name, ClassObject, g.Value, g.Defined)
			return place{Width: 4}
		default:
			panicAt(n.File, n.Line, n.Col, "%q is not assignable", n.Name)
		}
	}
	panicAt(n.File, n.Line, n.Col, "undefined variable %q", n.Name)
	return place{}
}

// compilePropTag emits the property tag operand of a DotExpr: either the
// compile-time constant tag for a bare selector, or the dynamic r-value of
// a parenthesized selector expression.
func (c *Compiler) compilePropTag(n *ast.Node) {
	if n.B != nil {
		c.compileExprRV(n.B)
		return
	}
	c.emitLit32(int32(c.props.Tag(n.Name)))
}

// compileExprRV compiles n as an r-value, leaving its value on the stack.
func (c *Compiler) compileExprRV(n *ast.Node) {
	switch n.Kind {
	case ast.NumberLit:
		c.emitLit32(n.Num)
	case ast.NilLit:
		c.emitLit32(0)
	case ast.StringLit:
		c.emitStringLit(n.Str)
	case ast.Ident:
		c.compileIdentRV(n)
	case ast.SelfExpr:
		if loc, ok := c.gs.locals.FindArg("self"); ok {
			c.emitArgAddr(loc.Off)
			c.code.PutByte(byte(isa.LOAD))
			return
		}
		panicAt(n.File, n.Line, n.Col, "'self' used outside a method")
	case ast.SuperExpr:
		panicAt(n.File, n.Line, n.Col, "'super' is only valid as a send receiver")
	case ast.Unary:
		c.compileExprRV(n.A)
		c.emitUnaryOp(n.Op)
	case ast.Binary:
		c.compileExprRV(n.A)
		c.compileExprRV(n.B)
		c.emitBinaryOp(n.Op)
	case ast.LogicalList:
		c.compileLogicalList(n)
	case ast.Ternary:
		c.compileTernary(n)
	case ast.Assign:
		c.compileAssign(n)
	case ast.IncDec:
		c.compileIncDec(n)
	case ast.DotExpr:
		p := c.compileAddr(n)
		c.emitLoad(p)
	case ast.IndexExpr:
		p := c.compileAddr(n)
		c.emitLoad(p)
	case ast.CallExpr:
		c.compileCall(n)
	case ast.SendExpr:
		c.compileSend(n)
	default:
		panicAt(n.File, n.Line, n.Col, "expression cannot be compiled")
	}
}

func (c *Compiler) compileIdentRV(n *ast.Node) {
	if loc, ok := c.gs.locals.FindCatch(n.Name); ok {
		c.emitCatchAddr(loc.Off)
		c.code.PutByte(byte(isa.LOAD))
		return
	}
	if loc, ok := c.gs.locals.FindLocal(n.Name); ok {
		c.emitLocalAddr(loc.Off)
		c.code.PutByte(byte(isa.LOAD))
		return
	}
	if loc, ok := c.gs.locals.FindArg(n.Name); ok {
		c.emitArgAddr(loc.Off)
		c.code.PutByte(byte(isa.LOAD))
		return
	}
	if g := c.globals.Lookup(n.Name); g != nil {
		switch g.Class {
		case ClassConstant:
			if !g.Defined {
				panicAt(n.File, n.Line, n.Col, "constant %q used before its definition", n.Name)
			}
			c.emitLit32(g.Value)
		case ClassVariable:
			c.emitDataAddr(n.Name, ClassVariable, g.Value, g.Defined)
			if !g.IsArray {
				c.code.PutByte(byte(isa.LOAD))
			}
		case ClassObject, ClassFunction:
			if g.Class == ClassObject {
				c.emitDataAddr(n.Name, ClassObject, g.Value, g.Defined)
			} else {
				c.emitLitFixup(n.Name, ClassFunction)
			}
		}
		return
	}
	// Forward reference to a name never declared: treated as an object
	// reference per spec.md §4.1, patched once (if ever) defined.
	c.globals.Forward(n.Name, ClassObject)
	c.emitDataAddr(n.Name, ClassObject, 0, false)
}

func (c *Compiler) emitUnaryOp(op ast.Op) {
	switch op {
	case ast.OpNeg:
		c.code.PutByte(byte(isa.NEG))
	case ast.OpNot:
		c.code.PutByte(byte(isa.NOT))
	case ast.OpBNot:
		c.code.PutByte(byte(isa.BNOT))
	}
}

func (c *Compiler) emitBinaryOp(op ast.Op) {
	var o isa.Op
	switch op {
	case ast.OpAdd:
		o = isa.ADD
	case ast.OpSub:
		o = isa.SUB
	case ast.OpMul:
		o = isa.MUL
	case ast.OpDiv:
		o = isa.DIV
	case ast.OpMod:
		o = isa.REM
	case ast.OpBAnd:
		o = isa.BAND
	case ast.OpBOr:
		o = isa.BOR
	case ast.OpBXor:
		o = isa.BXOR
	case ast.OpShl:
		o = isa.SHL
	case ast.OpShr:
		o = isa.SHR
	case ast.OpLt:
		o = isa.LT
	case ast.OpLe:
		o = isa.LE
	case ast.OpEq:
		o = isa.EQ
	case ast.OpNe:
		o = isa.NE
	case ast.OpGe:
		o = isa.GE
	case ast.OpGt:
		o = isa.GT
	}
	c.code.PutByte(byte(o))
}

// compileLogicalList compiles a flattened &&/|| chain using the
// short-circuit, non-popping branch opcodes (spec.md §4.2).
func (c *Compiler) compileLogicalList(n *ast.Node) {
	var scOp isa.Op
	if n.Op == ast.OpOrOr {
		scOp = isa.BRTSC
	} else {
		scOp = isa.BRFSC
	}
	chain := chainEnd
	for i, kid := range n.Kids {
		c.compileExprRV(kid)
		if i == len(n.Kids)-1 {
			break
		}
		slot := c.emitBranch(scOp)
		chain = chainAdd(c, chain, slot)
	}
	fixupChain(c, chain, c.code.Offset())
}

func (c *Compiler) compileTernary(n *ast.Node) {
	c.compileExprRV(n.A)
	brf := c.emitBranch(isa.BRF)
	c.compileExprRV(n.B)
	br := c.emitBranch(isa.BR)
	fixupChain(c, chainAdd(c, chainEnd, brf), c.code.Offset())
	c.compileExprRV(n.C)
	fixupChain(c, chainAdd(c, chainEnd, br), c.code.Offset())
}

// compileAssign handles both simple '=' and compound forms (spec.md
// §4.2): compile the target address, then either the r-value directly, or
// (for compound ops) duplicate the address, load through it, compute, and
// store. TUCK copies the stored value beneath the (address, value) pair
// STORE consumes, so the assignment leaves that value as its result.
func (c *Compiler) compileAssign(n *ast.Node) {
	if n.Op == ast.OpAssign {
		p := c.compileAddr(n.A)
		c.compileExprRV(n.B)
		c.code.PutByte(byte(isa.TUCK))
		c.emitStore(p)
		return
	}
	p := c.compileAddr(n.A)
	c.code.PutByte(byte(isa.DUP))
	c.emitLoad(p)
	c.compileExprRV(n.B)
	c.emitBinaryOp(n.Op.CompoundBase())
	c.code.PutByte(byte(isa.TUCK))
	c.emitStore(p)
}

// compileIncDec compiles ++/-- as a compound assignment by the literal 1.
// Both forms evaluate the address once (DUP gives the second copy STORE
// needs); TUCK positions the value that must survive the STORE as the
// expression's result — the updated value for prefix, the original value
// for postfix — underneath the (address, value) pair STORE consumes.
func (c *Compiler) compileIncDec(n *ast.Node) {
	p := c.compileAddr(n.A)
	c.code.PutByte(byte(isa.DUP))
	c.emitLoad(p)
	step := func() {
		c.emitLit32(1)
		if n.Op == ast.OpInc {
			c.code.PutByte(byte(isa.ADD))
		} else {
			c.code.PutByte(byte(isa.SUB))
		}
	}
	if n.Bool1 {
		step()
		c.code.PutByte(byte(isa.TUCK))
	} else {
		c.code.PutByte(byte(isa.TUCK))
		step()
	}
	c.emitStore(p)
}
