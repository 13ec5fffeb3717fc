package compiler

import (
	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/token"
)

// Expression parsing follows spec.md §4.1's precedence table (lowest to
// highest): assignment (right-assoc), ||, &&, ^, |, &, == !=, < <= >= >,
// << >>, + -, * / %, unary, postfix. Each precedence level is its own
// method so the recursive-descent structure mirrors the table directly.

func (c *Compiler) parseExpr() *ast.Node {
	return c.parseAssign()
}

var assignOps = map[byte]ast.Op{}

func (c *Compiler) parseAssign() *ast.Node {
	lhs := c.parseLogicalOr()
	tk := c.peek()
	op := assignOpFor(tk)
	if op == ast.OpNone {
		return lhs
	}
	c.next()
	rhs := c.parseAssign()
	n := ast.NewNode(ast.Assign, tk.File, tk.Line, tk.Col)
	n.Op = op
	n.A = lhs
	n.B = rhs
	return n
}

func assignOpFor(tk token.Token) ast.Op {
	if tk.Kind == token.PUNCT && tk.Ch == '=' {
		return ast.OpAssign
	}
	switch tk.Kind {
	case token.ADDEQ:
		return ast.OpAddEq
	case token.SUBEQ:
		return ast.OpSubEq
	case token.MULEQ:
		return ast.OpMulEq
	case token.DIVEQ:
		return ast.OpDivEq
	case token.MODEQ:
		return ast.OpModEq
	case token.ANDEQ:
		return ast.OpAndEq
	case token.OREQ:
		return ast.OpOrEq
	case token.XOREQ:
		return ast.OpXorEq
	case token.SHLEQ:
		return ast.OpShlEq
	case token.SHREQ:
		return ast.OpShrEq
	default:
		return ast.OpNone
	}
}

// parseLogicalOr / parseLogicalAnd flatten chains of the same operator into
// one LogicalList node, per spec.md §4.1.
func (c *Compiler) parseLogicalOr() *ast.Node {
	first := c.parseLogicalAnd()
	tk := c.peek()
	if tk.Kind != token.OROR {
		return first
	}
	n := ast.NewNode(ast.LogicalList, tk.File, tk.Line, tk.Col)
	n.Op = ast.OpOrOr
	n.Kids = append(n.Kids, first)
	for c.peek().Kind == token.OROR {
		c.next()
		n.Kids = append(n.Kids, c.parseLogicalAnd())
	}
	return n
}

func (c *Compiler) parseLogicalAnd() *ast.Node {
	first := c.parseBitXor()
	tk := c.peek()
	if tk.Kind != token.ANDAND {
		return first
	}
	n := ast.NewNode(ast.LogicalList, tk.File, tk.Line, tk.Col)
	n.Op = ast.OpAndAnd
	n.Kids = append(n.Kids, first)
	for c.peek().Kind == token.ANDAND {
		c.next()
		n.Kids = append(n.Kids, c.parseBitXor())
	}
	return n
}

func (c *Compiler) parseBitXor() *ast.Node {
	lhs := c.parseBitOr()
	for c.atPunct('^') {
		tk := c.next()
		rhs := c.parseBitOr()
		lhs = binNode(tk, ast.OpBXor, lhs, rhs)
	}
	return lhs
}

func (c *Compiler) parseBitOr() *ast.Node {
	lhs := c.parseBitAnd()
	for c.atPunct('|') {
		tk := c.next()
		rhs := c.parseBitAnd()
		lhs = binNode(tk, ast.OpBOr, lhs, rhs)
	}
	return lhs
}

func (c *Compiler) parseBitAnd() *ast.Node {
	lhs := c.parseEquality()
	for c.atPunct('&') {
		tk := c.next()
		rhs := c.parseEquality()
		lhs = binNode(tk, ast.OpBAnd, lhs, rhs)
	}
	return lhs
}

func (c *Compiler) parseEquality() *ast.Node {
	lhs := c.parseRelational()
	for {
		tk := c.peek()
		var op ast.Op
		switch tk.Kind {
		case token.EQ:
			op = ast.OpEq
		case token.NE:
			op = ast.OpNe
		default:
			return lhs
		}
		c.next()
		rhs := c.parseRelational()
		lhs = binNode(tk, op, lhs, rhs)
	}
}

func (c *Compiler) parseRelational() *ast.Node {
	lhs := c.parseShift()
	for {
		tk := c.peek()
		var op ast.Op
		switch {
		case tk.Kind == token.LE:
			op = ast.OpLe
		case tk.Kind == token.GE:
			op = ast.OpGe
		case tk.Kind == token.PUNCT && tk.Ch == '<':
			op = ast.OpLt
		case tk.Kind == token.PUNCT && tk.Ch == '>':
			op = ast.OpGt
		default:
			return lhs
		}
		c.next()
		rhs := c.parseShift()
		lhs = binNode(tk, op, lhs, rhs)
	}
}

func (c *Compiler) parseShift() *ast.Node {
	lhs := c.parseAdditive()
	for {
		tk := c.peek()
		var op ast.Op
		switch tk.Kind {
		case token.SHL:
			op = ast.OpShl
		case token.SHR:
			op = ast.OpShr
		default:
			return lhs
		}
		c.next()
		rhs := c.parseAdditive()
		lhs = binNode(tk, op, lhs, rhs)
	}
}

func (c *Compiler) parseAdditive() *ast.Node {
	lhs := c.parseMultiplicative()
	for {
		tk := c.peek()
		var op ast.Op
		switch {
		case tk.Kind == token.PUNCT && tk.Ch == '+':
			op = ast.OpAdd
		case tk.Kind == token.PUNCT && tk.Ch == '-':
			op = ast.OpSub
		default:
			return lhs
		}
		c.next()
		rhs := c.parseMultiplicative()
		lhs = binNode(tk, op, lhs, rhs)
	}
}

func (c *Compiler) parseMultiplicative() *ast.Node {
	lhs := c.parseUnary()
	for {
		tk := c.peek()
		var op ast.Op
		switch {
		case tk.Kind == token.PUNCT && tk.Ch == '*':
			op = ast.OpMul
		case tk.Kind == token.PUNCT && tk.Ch == '/':
			op = ast.OpDiv
		case tk.Kind == token.PUNCT && tk.Ch == '%':
			op = ast.OpMod
		default:
			return lhs
		}
		c.next()
		rhs := c.parseUnary()
		lhs = binNode(tk, op, lhs, rhs)
	}
}

func (c *Compiler) parseUnary() *ast.Node {
	tk := c.peek()
	switch {
	case tk.Kind == token.PUNCT && tk.Ch == '-':
		c.next()
		n := ast.NewNode(ast.Unary, tk.File, tk.Line, tk.Col)
		n.Op = ast.OpNeg
		n.A = c.parseUnary()
		return n
	case tk.Kind == token.PUNCT && tk.Ch == '+':
		c.next()
		return c.parseUnary()
	case tk.Kind == token.PUNCT && tk.Ch == '!':
		c.next()
		n := ast.NewNode(ast.Unary, tk.File, tk.Line, tk.Col)
		n.Op = ast.OpNot
		n.A = c.parseUnary()
		return n
	case tk.Kind == token.PUNCT && tk.Ch == '~':
		c.next()
		n := ast.NewNode(ast.Unary, tk.File, tk.Line, tk.Col)
		n.Op = ast.OpBNot
		n.A = c.parseUnary()
		return n
	case tk.Kind == token.INC || tk.Kind == token.DEC:
		c.next()
		n := ast.NewNode(ast.IncDec, tk.File, tk.Line, tk.Col)
		n.Op = incDecOp(tk.Kind)
		n.Bool1 = true
		n.A = c.parseUnary()
		return n
	default:
		return c.parsePostfix()
	}
}

func incDecOp(k token.Kind) ast.Op {
	if k == token.INC {
		return ast.OpInc
	}
	return ast.OpDec
}

func (c *Compiler) parsePostfix() *ast.Node {
	n := c.parsePrimary()
	for {
		tk := c.peek()
		switch {
		case tk.Kind == token.PUNCT && tk.Ch == '[':
			c.next()
			idx := c.parseExpr()
			c.expectPunct(']')
			ix := ast.NewNode(ast.IndexExpr, tk.File, tk.Line, tk.Col)
			ix.A = n
			ix.B = idx
			n = ix
		case tk.Kind == token.PUNCT && tk.Ch == '(':
			c.next()
			args := c.parseArgList()
			call := ast.NewNode(ast.CallExpr, tk.File, tk.Line, tk.Col)
			call.A = n
			call.Kids = args
			n = call
		case tk.Kind == token.PUNCT && tk.Ch == '.':
			c.next()
			dot := ast.NewNode(ast.DotExpr, tk.File, tk.Line, tk.Col)
			dot.A = n
			if c.atPunct('(') {
				c.next()
				dot.B = c.parseExpr()
				c.expectPunct(')')
			} else {
				sel := c.expect(token.IDENTIFIER, "expecting a property name after '.'")
				dot.Name = sel.Text
			}
			n = dot
		case tk.Kind == token.INC || tk.Kind == token.DEC:
			c.next()
			id := ast.NewNode(ast.IncDec, tk.File, tk.Line, tk.Col)
			id.Op = incDecOp(tk.Kind)
			id.Bool1 = false
			id.A = n
			n = id
		default:
			return n
		}
	}
}

func (c *Compiler) parseArgList() []*ast.Node {
	var args []*ast.Node
	if c.atPunct(')') {
		c.next()
		return args
	}
	for {
		args = append(args, c.parseExpr())
		tk := c.next()
		if tk.Kind == token.PUNCT && tk.Ch == ')' {
			break
		}
		if tk.Kind != token.PUNCT || tk.Ch != ',' {
			panicAt(tk.File, tk.Line, tk.Col, "expecting ',' or ')'")
		}
	}
	return args
}

// parsePrimary handles literals, identifiers, parenthesized expressions,
// the ternary suffix, and the `[ expr selector args… ]` send form.
func (c *Compiler) parsePrimary() *ast.Node {
	tk := c.next()
	var n *ast.Node
	switch tk.Kind {
	case token.NUMBER:
		n = ast.NewNode(ast.NumberLit, tk.File, tk.Line, tk.Col)
		n.Num = tk.Num
	case token.STRING:
		n = ast.NewNode(ast.StringLit, tk.File, tk.Line, tk.Col)
		n.Str = tk.Str
	case token.IDENTIFIER:
		n = ast.NewNode(ast.Ident, tk.File, tk.Line, tk.Col)
		n.Name = tk.Text
	case token.SUPER:
		n = ast.NewNode(ast.SuperExpr, tk.File, tk.Line, tk.Col)
	case token.PUNCT:
		switch tk.Ch {
		case '(':
			n = c.parseExpr()
			c.expectPunct(')')
		case '[':
			n = c.parseSend(tk)
		default:
			panicAt(tk.File, tk.Line, tk.Col, "unexpected %q", string(tk.Ch))
		}
	default:
		panicAt(tk.File, tk.Line, tk.Col, "unexpected token in expression")
	}
	return c.maybeTernary(n)
}

func (c *Compiler) maybeTernary(cond *ast.Node) *ast.Node {
	if !c.atPunct('?') {
		return cond
	}
	q := c.next()
	then := c.parseAssign()
	c.expectPunct(':')
	els := c.parseAssign()
	n := ast.NewNode(ast.Ternary, q.File, q.Line, q.Col)
	n.A = cond
	n.B = then
	n.C = els
	return n
}

// parseSend parses "[ expr selector args… ]" or "[ super selector args… ]",
// already past the opening '['.
func (c *Compiler) parseSend(at token.Token) *ast.Node {
	n := ast.NewNode(ast.SendExpr, at.File, at.Line, at.Col)
	n.A = c.parseExpr()
	if c.atPunct('(') {
		c.next()
		n.B = c.parseExpr()
		c.expectPunct(')')
	} else {
		sel := c.expect(token.IDENTIFIER, "expecting a selector in a send expression")
		n.Name = sel.Text
	}
	for !c.atPunct(']') {
		n.Kids = append(n.Kids, c.parseExpr())
	}
	c.expectPunct(']')
	return n
}

func binNode(tk token.Token, op ast.Op, a, b *ast.Node) *ast.Node {
	n := ast.NewNode(ast.Binary, tk.File, tk.Line, tk.Col)
	n.Op = op
	n.A = a
	n.B = b
	return n
}
