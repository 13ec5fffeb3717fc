package compiler

import (
	"adv2.dev/adv2/internal/ast"
	"adv2.dev/adv2/internal/token"
)

// parseProgram drives the whole file: a loop over top-level declarations,
// each recovering independently on error (spec.md §4.1's "skip to the next
// top-level form" allowance).
func (c *Compiler) parseProgram() {
	for {
		tk := c.next()
		if tk.Kind == token.EOF {
			return
		}
		c.parseDecl(tk)
	}
}

func (c *Compiler) parseDecl(tk token.Token) {
	defer func() {
		if e := recoverAbort(recover()); e != nil {
			c.errs = append(c.errs, e)
			c.skipToDeclBoundary()
		}
	}()

	switch tk.Kind {
	case token.DEF:
		c.parseDef()
	case token.VAR:
		c.parseVar()
	case token.PROPERTY:
		c.parsePropertyReserve()
	case token.OBJECT:
		c.parseObjectDecl(tk)
	case token.CLASS:
		nameTok := c.expect(token.IDENTIFIER, "expecting a class name")
		class, ok := c.objByName[nameTok.Text]
		if !ok {
			panicAt(nameTok.File, nameTok.Line, nameTok.Col, "undefined class %q", nameTok.Text)
		}
		c.parseObject(class, tk)
	default:
		panicAt(tk.File, tk.Line, tk.Col, "unknown declaration")
	}
}

// skipToDeclBoundary discards tokens until the next token that can start a
// top-level declaration, or EOF, so one bad declaration doesn't cascade.
func (c *Compiler) skipToDeclBoundary() {
	for {
		tk := c.peek()
		switch tk.Kind {
		case token.EOF, token.DEF, token.VAR, token.OBJECT, token.CLASS, token.PROPERTY:
			return
		}
		c.next()
	}
}

// --- token-stream helpers -------------------------------------------------

func (c *Compiler) next() token.Token { return c.lex.Next() }

func (c *Compiler) peek() token.Token {
	tk := c.lex.Next()
	c.lex.Unget(tk)
	return tk
}

func (c *Compiler) expect(k token.Kind, msg string) token.Token {
	tk := c.next()
	if tk.Kind != k {
		panicAt(tk.File, tk.Line, tk.Col, "%s", msg)
	}
	return tk
}

func (c *Compiler) expectPunct(ch byte) token.Token {
	tk := c.next()
	if tk.Kind != token.PUNCT || tk.Ch != ch {
		panicAt(tk.File, tk.Line, tk.Col, "expecting %q", string(ch))
	}
	return tk
}

func (c *Compiler) atPunct(ch byte) bool {
	tk := c.peek()
	return tk.Kind == token.PUNCT && tk.Ch == ch
}

// --- def / var / property --------------------------------------------------

func (c *Compiler) parseDef() {
	name := c.expect(token.IDENTIFIER, "expecting a name after 'def'")
	tk := c.next()
	if tk.Kind == token.PUNCT && tk.Ch == '=' {
		expr := c.parseExpr()
		v := c.foldConst(expr)
		if v.IsRef || v.IsString {
			panicAt(name.File, name.Line, name.Col, "expecting a constant expression")
		}
		_, redef, mismatch := c.globals.Define(name.Text, ClassConstant, v.Int)
		if mismatch {
			panicAt(name.File, name.Line, name.Col, "%q redeclared with a different storage class", name.Text)
		}
		if redef {
			panicAt(name.File, name.Line, name.Col, "%q redefined", name.Text)
		}
		c.expectPunct(';')
		return
	}
	if tk.Kind != token.PUNCT || tk.Ch != '(' {
		panicAt(tk.File, tk.Line, tk.Col, "expecting '=' or '(' after def name")
	}
	c.parseFunctionDef(name.Text, name)
}

func (c *Compiler) parseFunctionDef(name string, at token.Token) {
	for _, f := range c.funcs {
		if f.Name == name {
			panicAt(at.File, at.Line, at.Col, "function %q redefined", name)
		}
	}
	if g := c.globals.Lookup(name); g != nil && g.Defined {
		panicAt(at.File, at.Line, at.Col, "function %q redefined", name)
	}
	// Forward, not Define: a reference to this function made earlier in
	// the file must be patched with its real code offset once
	// generateFunctions compiles the body, not a placeholder value now.
	if _, ok := c.globals.Forward(name, ClassFunction); !ok {
		panicAt(at.File, at.Line, at.Col, "%q redeclared with a different storage class", name)
	}
	params := c.parseParamList()
	body := c.parseBlockWithLocals()
	fn := ast.NewNode(ast.DefFunc, at.File, at.Line, at.Col)
	fn.Name = name
	fn.Kids = params
	fn.Body = body
	c.funcs = append(c.funcs, &FuncDef{Name: name, Node: fn, DeclOrder: len(c.funcs)})
}

// parseParamList parses "(" a,b,c ")" — both callers (parseFunctionDef and
// parseMethodLit) have already consumed the opening paren, so it starts at
// the first parameter name or the closing paren.
func (c *Compiler) parseParamList() []*ast.Node {
	var params []*ast.Node
	if c.atPunct(')') {
		c.next()
		return params
	}
	for {
		nameTok := c.expect(token.IDENTIFIER, "expecting a parameter name")
		id := ast.NewNode(ast.Ident, nameTok.File, nameTok.Line, nameTok.Col)
		id.Name = nameTok.Text
		params = append(params, id)
		tk := c.next()
		if tk.Kind == token.PUNCT && tk.Ch == ')' {
			break
		}
		if tk.Kind != token.PUNCT || tk.Ch != ',' {
			panicAt(tk.File, tk.Line, tk.Col, "expecting ',' or ')'")
		}
	}
	return params
}

func (c *Compiler) parseVar() {
	for {
		nameTok := c.expect(token.IDENTIFIER, "expecting a variable name")
		item := ast.NewNode(ast.VarItem, nameTok.File, nameTok.Line, nameTok.Col)
		item.Name = nameTok.Text
		tk := c.next()
		if tk.Kind == token.PUNCT && tk.Ch == '[' {
			sizeTok := c.expect(token.NUMBER, "expecting a byte-array size")
			item.Num = sizeTok.Num
			c.expectPunct(']')
			tk = c.next()
		}
		if tk.Kind == token.PUNCT && tk.Ch == '=' {
			item.A = c.parseExpr()
			tk = c.next()
		}
		c.defineVar(item)
		if tk.Kind == token.PUNCT && tk.Ch == ',' {
			continue
		}
		if tk.Kind == token.PUNCT && tk.Ch == ';' {
			return
		}
		panicAt(tk.File, tk.Line, tk.Col, "expecting ',' or ';'")
	}
}

func (c *Compiler) defineVar(item *ast.Node) {
	words := int32(1)
	if item.Num > 0 {
		words = (item.Num + 3) / 4
	}
	slot := c.data.Reserve(int(words) * 4)
	if item.A != nil {
		v := c.foldConst(item.A)
		if v.IsString {
			c.strs.Ref(c.strs.Intern(string(v.Str)), dataFixup(c.data, slot))
		} else if v.IsRef {
			c.globals.AddFixup(v.RefName, v.RefClass, dataFixup(c.data, slot))
		} else {
			c.data.PatchLong(slot, v.Int)
		}
	}
	g, redef, mismatch := c.globals.Define(item.Name, ClassVariable, slot)
	if mismatch {
		panicAt(item.File, item.Line, item.Col, "%q redeclared with a different storage class", item.Name)
	}
	if redef {
		panicAt(item.File, item.Line, item.Col, "variable %q redefined", item.Name)
	}
	g.IsArray = item.Num > 0
}

func (c *Compiler) parsePropertyReserve() {
	for {
		nameTok := c.expect(token.IDENTIFIER, "expecting a property name")
		c.props.Tag(nameTok.Text)
		tk := c.next()
		if tk.Kind == token.PUNCT && tk.Ch == ',' {
			continue
		}
		if tk.Kind == token.PUNCT && tk.Ch == ';' {
			return
		}
		panicAt(tk.File, tk.Line, tk.Col, "expecting ',' or ';'")
	}
}

// --- object / class --------------------------------------------------------

// parseObjectDecl parses the 'object' declaration (spec.md §3): one
// identifier names a class-less object ("object NAME { ... }"); two name a
// class-derived one ("object CLASSNAME NAME { ... }"), where the first
// identifier must already name a previously declared object.
func (c *Compiler) parseObjectDecl(at token.Token) {
	first := c.expect(token.IDENTIFIER, "expecting an object name")
	if c.atPunct('{') {
		c.parseObjectBody(nil, at, first)
		return
	}
	class, ok := c.objByName[first.Text]
	if !ok {
		panicAt(first.File, first.Line, first.Col, "undefined class %q", first.Text)
	}
	nameTok := c.expect(token.IDENTIFIER, "expecting an object name")
	c.parseObjectBody(class, at, nameTok)
}

// parseObject parses the 'class PARENT NAME { ... }' declaration — an
// alternate spelling of the same class-derived form parseObjectDecl
// handles, kept for the 'class' keyword spec.md §2 reserves.
func (c *Compiler) parseObject(class *ObjectDef, at token.Token) {
	nameTok := c.expect(token.IDENTIFIER, "expecting an object name")
	c.parseObjectBody(class, at, nameTok)
}

func (c *Compiler) parseObjectBody(class *ObjectDef, at token.Token, nameTok token.Token) {
	obj := &ObjectDef{Name: nameTok.Text, DeclOrder: len(c.objects)}
	if class != nil {
		obj.applyClass(class)
	}
	c.expectPunct('{')
	for !c.atPunct('}') {
		c.parsePropertyItem(obj)
	}
	c.expectPunct('}')
	if c.atPunct(';') {
		c.next()
	}

	if existing, ok := c.objByName[obj.Name]; ok {
		_ = existing
		panicAt(nameTok.File, nameTok.Line, nameTok.Col, "object %q redefined", obj.Name)
	}
	c.objByName[obj.Name] = obj
	c.objects = append(c.objects, obj)

	// Resolve _parent to an ObjectDef for the wiring pass, when it's a bare
	// reference to a previously (or later) declared object.
	if i := obj.findProp(c.props.Tag("_parent")); i >= 0 {
		p := obj.Props[i]
		if !p.IsMethod && p.Value != nil && p.Value.Kind == ast.Ident {
			if target, ok := c.objByName[p.Value.Name]; ok {
				obj.ParentObj = target
			} else {
				c.pendingParent = append(c.pendingParent, pendingParentRef{obj: obj, name: p.Value.Name})
			}
		}
	}

	// Registering (rather than defining) here keeps the symbol Undefined,
	// with a pending-fixup list, until layoutObjects resolves its real
	// data-segment offset — a forward reference to this object made
	// earlier in the file must still be patched with the true offset, not
	// whatever placeholder we might otherwise have defined it with.
	if _, ok := c.globals.Forward(obj.Name, ClassObject); !ok {
		panicAt(nameTok.File, nameTok.Line, nameTok.Col, "%q redeclared with a different storage class", obj.Name)
	}
}

// pendingParentRef defers resolving a _parent reference to an
// as-yet-undeclared object until parsing finishes.
type pendingParentRef struct {
	obj  *ObjectDef
	name string
}

func (c *Compiler) parsePropertyItem(obj *ObjectDef) {
	shared := false
	tk := c.next()
	if tk.Kind == token.SHARED {
		shared = true
		tk = c.next()
	}
	if tk.Kind != token.IDENTIFIER {
		panicAt(tk.File, tk.Line, tk.Col, "expecting a property name")
	}
	tag := c.props.Tag(tk.Text)

	if existing := obj.findProp(tag); existing >= 0 && obj.Props[existing].Shared && obj.Class != nil {
		panicAt(tk.File, tk.Line, tk.Col, "cannot redeclare inherited shared property %q", tk.Text)
	}

	c.expectPunct(':')

	mtk := c.peek()
	if mtk.Kind == token.METHOD {
		c.next()
		method := c.parseMethodLit(tk.Text)
		obj.setProp(PropSlot{Tag: tag, Shared: shared, IsMethod: true, Value: method})
	} else {
		val := c.parseExpr()
		obj.setProp(PropSlot{Tag: tag, Shared: shared, Value: val})
	}
	c.expectPunct(';')
}

// parseMethodLit parses "method ( ARGS ) { BODY }" — already past the
// 'method' keyword. Two implicit leading arguments, self and a dummy slot,
// are prepended per spec.md §4.1.
func (c *Compiler) parseMethodLit(propName string) *ast.Node {
	at := c.peek()
	c.expectPunct('(')
	params := c.parseParamList()
	self := ast.NewNode(ast.Ident, at.File, at.Line, at.Col)
	self.Name = "self"
	dummy := ast.NewNode(ast.Ident, at.File, at.Line, at.Col)
	dummy.Name = "(dummy)"
	params = append([]*ast.Node{self, dummy}, params...)
	body := c.parseBlockWithLocals()
	m := ast.NewNode(ast.MethodLit, at.File, at.Line, at.Col)
	m.Name = propName
	m.Kids = params
	m.Body = body
	return m
}

// --- statements --------------------------------------------------------

// parseBlockWithLocals parses "{ [var decls;]* stmt* }" — the leading
// var-declaration run a function/method body may open with (spec.md §4.1).
func (c *Compiler) parseBlockWithLocals() *ast.Node {
	open := c.expectPunct('{')
	blk := ast.NewNode(ast.Block, open.File, open.Line, open.Col)
	for {
		tk := c.peek()
		if tk.Kind == token.VAR {
			c.next()
			blk.Kids = append(blk.Kids, c.parseLocalVarDecl())
			continue
		}
		break
	}
	for !c.atPunct('}') {
		blk.Kids = append(blk.Kids, c.parseStmt())
	}
	c.expectPunct('}')
	return blk
}

func (c *Compiler) parseLocalVarDecl() *ast.Node {
	decl := ast.NewNode(ast.VarDecl, "", 0, 0)
	for {
		nameTok := c.expect(token.IDENTIFIER, "expecting a local variable name")
		item := ast.NewNode(ast.VarItem, nameTok.File, nameTok.Line, nameTok.Col)
		item.Name = nameTok.Text
		tk := c.next()
		if tk.Kind == token.PUNCT && tk.Ch == '=' {
			item.A = c.parseExpr()
			tk = c.next()
		}
		decl.Kids = append(decl.Kids, item)
		if tk.Kind == token.PUNCT && tk.Ch == ',' {
			continue
		}
		if tk.Kind == token.PUNCT && tk.Ch == ';' {
			return decl
		}
		panicAt(tk.File, tk.Line, tk.Col, "expecting ',' or ';'")
	}
}

func (c *Compiler) parseStmt() *ast.Node {
	tk := c.peek()
	switch tk.Kind {
	case token.PUNCT:
		if tk.Ch == '{' {
			return c.parseBlockWithLocals()
		}
		if tk.Ch == ';' {
			c.next()
			return ast.NewNode(ast.Block, tk.File, tk.Line, tk.Col)
		}
	case token.IF:
		return c.parseIf()
	case token.WHILE:
		return c.parseWhile()
	case token.DO:
		return c.parseDoWhile()
	case token.FOR:
		return c.parseFor()
	case token.BREAK:
		c.next()
		c.expectPunct(';')
		return ast.NewNode(ast.Break, tk.File, tk.Line, tk.Col)
	case token.CONTINUE:
		c.next()
		c.expectPunct(';')
		return ast.NewNode(ast.Continue, tk.File, tk.Line, tk.Col)
	case token.RETURN:
		c.next()
		n := ast.NewNode(ast.Return, tk.File, tk.Line, tk.Col)
		if !c.atPunct(';') {
			n.A = c.parseExpr()
		}
		c.expectPunct(';')
		return n
	case token.TRY:
		return c.parseTry()
	case token.THROW:
		c.next()
		n := ast.NewNode(ast.Throw, tk.File, tk.Line, tk.Col)
		n.A = c.parseExpr()
		c.expectPunct(';')
		return n
	case token.ASM:
		return c.parseAsm()
	case token.PRINT, token.PRINTLN:
		return c.parsePrint()
	}
	n := ast.NewNode(ast.ExprStmt, tk.File, tk.Line, tk.Col)
	n.A = c.parseExpr()
	c.expectPunct(';')
	return n
}

func (c *Compiler) parseIf() *ast.Node {
	at := c.next() // 'if'
	c.expectPunct('(')
	cond := c.parseExpr()
	c.expectPunct(')')
	n := ast.NewNode(ast.If, at.File, at.Line, at.Col)
	n.A = cond
	n.Body = c.parseStmt()
	if c.peek().Kind == token.ELSE {
		c.next()
		n.ElseBody = c.parseStmt()
	}
	return n
}

func (c *Compiler) parseWhile() *ast.Node {
	at := c.next()
	c.expectPunct('(')
	cond := c.parseExpr()
	c.expectPunct(')')
	n := ast.NewNode(ast.While, at.File, at.Line, at.Col)
	n.A = cond
	n.Body = c.parseStmt()
	return n
}

func (c *Compiler) parseDoWhile() *ast.Node {
	at := c.next()
	n := ast.NewNode(ast.DoWhile, at.File, at.Line, at.Col)
	n.Body = c.parseStmt()
	c.expect(token.WHILE, "expecting 'while' after do-block")
	c.expectPunct('(')
	n.A = c.parseExpr()
	c.expectPunct(')')
	c.expectPunct(';')
	return n
}

func (c *Compiler) parseFor() *ast.Node {
	at := c.next()
	c.expectPunct('(')
	n := ast.NewNode(ast.For, at.File, at.Line, at.Col)
	if c.peek().Kind == token.VAR {
		c.next()
		n.A = c.parseLocalVarDecl() // consumes the init clause's ';' itself
	} else {
		if !c.atPunct(';') {
			init := ast.NewNode(ast.ExprStmt, at.File, at.Line, at.Col)
			init.A = c.parseExpr()
			n.A = init
		}
		c.expectPunct(';')
	}
	if !c.atPunct(';') {
		n.B = c.parseExpr()
	}
	c.expectPunct(';')
	if !c.atPunct(')') {
		n.C = c.parseExpr()
	}
	c.expectPunct(')')
	n.Body = c.parseStmt()
	return n
}

func (c *Compiler) parseTry() *ast.Node {
	at := c.next()
	n := ast.NewNode(ast.TryStmt, at.File, at.Line, at.Col)
	n.Body = c.parseStmt()
	if c.peek().Kind == token.CATCH {
		c.next()
		c.expectPunct('(')
		nameTok := c.expect(token.IDENTIFIER, "expecting a catch variable name")
		n.Name = nameTok.Text
		c.expectPunct(')')
		n.CatchBody = c.parseStmt()
	}
	if c.peek().Kind == token.FINALLY {
		c.next()
		n.FinallyBody = c.parseStmt()
	}
	if n.CatchBody == nil && n.FinallyBody == nil {
		panicAt(at.File, at.Line, at.Col, "'try' requires a 'catch' or 'finally'")
	}
	return n
}

func (c *Compiler) parseAsm() *ast.Node {
	at := c.next()
	n := ast.NewNode(ast.AsmStmt, at.File, at.Line, at.Col)
	c.expectPunct('{')
	for !c.atPunct('}') {
		line := c.parseAsmLine()
		s := ast.NewNode(ast.StringLit, line.File, line.Line, line.Col)
		s.Str = []byte(line.Text)
		n.Kids = append(n.Kids, s)
		c.expectPunct(';')
	}
	c.expectPunct('}')
	return n
}

// parseAsmLine collects raw token text up to the next ';' as one line of
// source for the external LineAssembler, which owns its own grammar.
func (c *Compiler) parseAsmLine() token.Token {
	first := c.peek()
	var text []byte
	for {
		tk := c.peek()
		if tk.Kind == token.PUNCT && tk.Ch == ';' {
			break
		}
		if tk.Kind == token.EOF {
			panicAt(tk.File, tk.Line, tk.Col, "unterminated asm block")
		}
		c.next()
		if len(text) > 0 {
			text = append(text, ' ')
		}
		text = append(text, []byte(tokenSpelling(tk))...)
	}
	first.Text = string(text)
	return first
}

func tokenSpelling(tk token.Token) string {
	switch tk.Kind {
	case token.IDENTIFIER:
		return tk.Text
	case token.NUMBER:
		return numToString(tk.Num)
	case token.STRING:
		return string(tk.Str)
	case token.PUNCT:
		return string(tk.Ch)
	default:
		return tk.Text
	}
}

func numToString(v int32) string {
	neg := v < 0
	if neg {
		v = -v
	}
	if v == 0 {
		return "0"
	}
	var buf [12]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// parsePrint parses "print"/"println" followed by zero or more
// comma-separated operands. Per adv2parse.c's ParsePrint, a trailing
// newline is emitted by default; a trailing ',' with nothing after it
// suppresses that newline instead of being treated as another operand
// (println always gets its newline, trailing comma or not).
func (c *Compiler) parsePrint() *ast.Node {
	at := c.next()
	n := ast.NewNode(ast.PrintStmt, at.File, at.Line, at.Col)
	suppressNL := false
	if !c.atPunct(';') {
		n.Kids = append(n.Kids, c.parseExpr())
		for c.atPunct(',') {
			c.next()
			if c.atPunct(';') {
				suppressNL = true
				break
			}
			n.Kids = append(n.Kids, c.parseExpr())
		}
	}
	c.expectPunct(';')
	n.Bool2 = at.Kind == token.PRINTLN || !suppressNL
	return n
}
