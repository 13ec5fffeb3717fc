package compiler

import (
	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/isa"
)

// compileBlock compiles "{ [var decls;]* stmt* }" (spec.md §4.1's grammar
// restricts var declarations to a block's leading position). Each local's
// slot is allocated here, in source order, against the enclosing function's
// flat LocalScope — nested blocks share the same scope rather than pushing
// one of their own, matching the language's lack of block-level shadowing.
func (c *Compiler) compileBlock(blk *ast.Node) {
	for _, kid := range blk.Kids {
		if kid.Kind != ast.VarDecl {
			c.compileStmt(kid)
			continue
		}
		c.compileVarDecl(kid)
	}
}

// compileVarDecl allocates each declared name a fresh local slot, against
// the enclosing function's flat LocalScope, and stores its initializer (if
// any). Used both for a block's leading var-decl run and for the `var`
// form of a for-loop's init clause (spec.md §8 scenario 2).
func (c *Compiler) compileVarDecl(decl *ast.Node) {
	for _, item := range decl.Kids {
		loc := c.gs.locals.AddLocal(item.Name, item.A)
		if item.A == nil {
			continue
		}
		c.emitLocalAddr(loc.Off)
		c.compileExprRV(item.A)
		c.code.PutByte(byte(isa.STORE))
	}
}

func (c *Compiler) compileStmt(n *ast.Node) {
	switch n.Kind {
	case ast.Block:
		c.compileBlock(n)
	case ast.If:
		c.compileIf(n)
	case ast.While:
		c.compileWhile(n)
	case ast.DoWhile:
		c.compileDoWhile(n)
	case ast.For:
		c.compileFor(n)
	case ast.Break:
		c.compileBreak(n)
	case ast.Continue:
		c.compileContinue(n)
	case ast.Return:
		if n.A != nil {
			c.compileExprRV(n.A)
			c.code.PutByte(byte(isa.RETURN))
		} else {
			c.code.PutByte(byte(isa.RETURNZ))
		}
	case ast.ExprStmt:
		c.compileExprRV(n.A)
		c.code.PutByte(byte(isa.DROP))
	case ast.TryStmt:
		c.compileTry(n)
	case ast.Throw:
		c.compileExprRV(n.A)
		c.code.PutByte(byte(isa.THROW))
	case ast.AsmStmt:
		c.compileAsm(n)
	case ast.PrintStmt:
		c.compilePrint(n)
	default:
		panicAt(n.File, n.Line, n.Col, "statement cannot be compiled")
	}
}

func (c *Compiler) compileIf(n *ast.Node) {
	c.compileExprRV(n.A)
	brf := c.emitBranch(isa.BRF)
	c.compileStmt(n.Body)
	if n.ElseBody == nil {
		fixupChain(c, chainAdd(c, chainEnd, brf), c.code.Offset())
		return
	}
	br := c.emitBranch(isa.BR)
	fixupChain(c, chainAdd(c, chainEnd, brf), c.code.Offset())
	c.compileStmt(n.ElseBody)
	fixupChain(c, chainAdd(c, chainEnd, br), c.code.Offset())
}

func (c *Compiler) compileWhile(n *ast.Node) {
	lf := newLoopFrame()
	c.gs.loops = append(c.gs.loops, lf)
	defer func() { c.gs.loops = c.gs.loops[:len(c.gs.loops)-1] }()

	top := c.code.Offset()
	c.compileExprRV(n.A)
	brf := c.emitBranch(isa.BRF)
	lf.breakChain = chainAdd(c, lf.breakChain, brf)
	c.compileStmt(n.Body)
	contTarget := top
	fixupChain(c, lf.contChain, contTarget)
	br := c.emitBranch(isa.BR)
	fixupChain(c, chainAdd(c, chainEnd, br), top)
	fixupChain(c, lf.breakChain, c.code.Offset())
}

func (c *Compiler) compileDoWhile(n *ast.Node) {
	lf := newLoopFrame()
	c.gs.loops = append(c.gs.loops, lf)
	defer func() { c.gs.loops = c.gs.loops[:len(c.gs.loops)-1] }()

	top := c.code.Offset()
	c.compileStmt(n.Body)
	// The continue target (the condition test) isn't known until here —
	// do/while's defining wrinkle (spec.md §4.2).
	condAt := c.code.Offset()
	fixupChain(c, lf.contChain, condAt)
	c.compileExprRV(n.A)
	brt := c.emitBranch(isa.BRT)
	fixupChain(c, chainAdd(c, chainEnd, brt), top)
	fixupChain(c, lf.breakChain, c.code.Offset())
}

func (c *Compiler) compileFor(n *ast.Node) {
	lf := newLoopFrame()
	c.gs.loops = append(c.gs.loops, lf)
	defer func() { c.gs.loops = c.gs.loops[:len(c.gs.loops)-1] }()

	if n.A != nil {
		if n.A.Kind == ast.VarDecl {
			c.compileVarDecl(n.A)
		} else {
			c.compileStmt(n.A)
		}
	}
	top := c.code.Offset()
	if n.B != nil {
		c.compileExprRV(n.B)
		brf := c.emitBranch(isa.BRF)
		lf.breakChain = chainAdd(c, lf.breakChain, brf)
	}
	c.compileStmt(n.Body)
	postAt := c.code.Offset()
	fixupChain(c, lf.contChain, postAt)
	if n.C != nil {
		c.compileExprRV(n.C)
		c.code.PutByte(byte(isa.DROP))
	}
	br := c.emitBranch(isa.BR)
	fixupChain(c, chainAdd(c, chainEnd, br), top)
	fixupChain(c, lf.breakChain, c.code.Offset())
}

func (c *Compiler) compileBreak(n *ast.Node) {
	if len(c.gs.loops) == 0 {
		panicAt(n.File, n.Line, n.Col, "'break' outside a loop")
	}
	lf := c.gs.loops[len(c.gs.loops)-1]
	slot := c.emitBranch(isa.BR)
	lf.breakChain = chainAdd(c, lf.breakChain, slot)
}

func (c *Compiler) compileContinue(n *ast.Node) {
	if len(c.gs.loops) == 0 {
		panicAt(n.File, n.Line, n.Col, "'continue' outside a loop")
	}
	lf := c.gs.loops[len(c.gs.loops)-1]
	slot := c.emitBranch(isa.BR)
	lf.contChain = chainAdd(c, lf.contChain, slot)
}

// compileTry implements spec.md §4.3's TRY/TRYEXIT/THROW scheme. A catch
// clause (if present) stores the thrown value into one of the function's
// reserved try-depth local slots before running its body. When both catch
// and finally are present, the finally body is compiled twice — once after
// the protected body's normal exit, once after the catch body — rather than
// through a shared merge point, exactly as spec.md's own prose describes the
// "simple code generator"'s approach.
func (c *Compiler) compileTry(n *ast.Node) {
	depth := c.gs.tryDepth.Enter()
	defer c.gs.tryDepth.Exit()
	slotOff := catchLocalOff(depth, c.gs.totalLocals)

	tryOp := c.emitBranch(isa.TRY) // operand is the handler's PC-relative offset
	c.compileStmt(n.Body)
	c.code.PutByte(byte(isa.TRYEXIT))

	if n.FinallyBody != nil {
		c.compileStmt(n.FinallyBody)
	}
	brEnd := c.emitBranch(isa.BR)

	handlerAt := c.code.Offset()
	fixupChain(c, chainAdd(c, chainEnd, tryOp), handlerAt)

	if n.CatchBody != nil {
		c.emitCatchAddr(slotOff)
		c.code.PutByte(byte(isa.SWAP))
		c.code.PutByte(byte(isa.STORE))
		c.gs.locals.Catch = append(c.gs.locals.Catch, Local{Name: n.Name, Off: slotOff})
		c.compileStmt(n.CatchBody)
		c.gs.locals.Catch = c.gs.locals.Catch[:len(c.gs.locals.Catch)-1]
		if n.FinallyBody != nil {
			c.compileStmt(n.FinallyBody)
		}
	} else {
		// try/finally with no catch: stash the thrown value in the same
		// reserved slot, run finally, then re-throw to propagate outward.
		c.emitCatchAddr(slotOff)
		c.code.PutByte(byte(isa.SWAP))
		c.code.PutByte(byte(isa.STORE))
		c.compileStmt(n.FinallyBody)
		c.emitCatchAddr(slotOff)
		c.code.PutByte(byte(isa.LOAD))
		c.code.PutByte(byte(isa.THROW))
	}

	fixupChain(c, chainAdd(c, chainEnd, brEnd), c.code.Offset())
}

// catchLocalOff computes the frame slot a given try-nesting depth's
// catch-bound value lives in: the reserved try-depth region starts right
// after every ordinary local (see DESIGN.md's frame-layout note).
func catchLocalOff(depth, numLocals int) int {
	return numLocals + depth - 1
}

func (c *Compiler) compileAsm(n *ast.Node) {
	for _, line := range n.Kids {
		word, err := c.Assemble(string(line.Str))
		if err != nil {
			panicAt(line.File, line.Line, line.Col, "asm: %s", err)
		}
		c.code.PutLong(word)
	}
}

// compilePrint compiles each comma-separated argument: a literal string
// prints via print-str, anything else is evaluated as an int and printed via
// print-int (spec.md §4.3's trap table; there is no runtime type tag to
// dispatch on, so the choice is made at compile time from the argument's
// syntactic shape, matching the original's own print statement). A tab
// separates consecutive operands, the same as adv2parse.c emits a
// TRAP_PrintTab for every ',' it sees in the print statement.
func (c *Compiler) compilePrint(n *ast.Node) {
	for i, arg := range n.Kids {
		if i > 0 {
			c.code.PutByte(byte(isa.TRAP))
			c.code.PutByte(byte(isa.TrapPrintTab))
		}
		if arg.Kind == ast.StringLit {
			c.emitStringLit(arg.Str)
			c.code.PutByte(byte(isa.TRAP))
			c.code.PutByte(byte(isa.TrapPrintStr))
			continue
		}
		c.compileExprRV(arg)
		c.code.PutByte(byte(isa.TRAP))
		c.code.PutByte(byte(isa.TrapPrintInt))
	}
	if n.Bool2 {
		c.code.PutByte(byte(isa.TRAP))
		c.code.PutByte(byte(isa.TrapPrintNL))
	}
}
