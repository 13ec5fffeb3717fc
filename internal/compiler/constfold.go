package compiler

import "adv2.dev/adv2/internal/ast"

// ConstVal is the result of folding a constant expression (spec.md §4.1).
// Exactly one shape applies: a plain integer, a string (which folds to its
// eventual data-segment offset), or an unresolved reference to an
// object/function/variable global that must be patched once defined.
type ConstVal struct {
	IsRef    bool
	RefName  string
	RefClass StorageClass

	IsString bool
	Str      []byte

	Int int32
}

// foldConst evaluates a constant expression per spec.md §4.1: integer
// literals, string literals, `const`-class globals, and the arithmetic/
// bitwise/unary operators, with division/mod by a zero constant being a
// compile error. A bare reference to a not-yet-resolvable object, function,
// or variable global is allowed only as the entire expression — it cannot
// be combined arithmetically with other operands — and returns IsRef.
func (c *Compiler) foldConst(n *ast.Node) ConstVal {
	switch n.Kind {
	case ast.NumberLit:
		return ConstVal{Int: n.Num}
	case ast.NilLit:
		return ConstVal{Int: 0}
	case ast.StringLit:
		return ConstVal{IsString: true, Str: n.Str}
	case ast.Ident:
		return c.foldIdent(n)
	case ast.Unary:
		v := c.foldConst(n.A)
		if v.IsRef || v.IsString {
			panicAt(n.File, n.Line, n.Col, "operator %s requires an integer operand", n.Op)
		}
		return ConstVal{Int: applyUnary(n.Op, v.Int)}
	case ast.Binary:
		a := c.foldConst(n.A)
		b := c.foldConst(n.B)
		if a.IsRef || a.IsString || b.IsRef || b.IsString {
			panicAt(n.File, n.Line, n.Col, "operator %s requires integer operands", n.Op)
		}
		if (n.Op == ast.OpDiv || n.Op == ast.OpMod) && b.Int == 0 {
			panicAt(n.File, n.Line, n.Col, "division by zero in constant expression")
		}
		return ConstVal{Int: applyBinary(n.Op, a.Int, b.Int)}
	default:
		panicAt(n.File, n.Line, n.Col, "expression is not a compile-time constant")
		return ConstVal{}
	}
}

func (c *Compiler) foldIdent(n *ast.Node) ConstVal {
	// Local bindings (locals/args/catch) never participate in constant
	// expressions: foldConst is only invoked at global scope.
	if g := c.globals.Lookup(n.Name); g != nil {
		if g.Class == ClassConstant {
			if !g.Defined {
				panicAt(n.File, n.Line, n.Col, "constant %q used before its definition", n.Name)
			}
			return ConstVal{Int: g.Value}
		}
		if g.Defined {
			return ConstVal{Int: g.Value}
		}
		return ConstVal{IsRef: true, RefName: n.Name, RefClass: g.Class}
	}
	// Forward reference to a name never declared yet becomes an undefined
	// object symbol (spec.md §4.1): functions and variables are always
	// registered with a known class by the time anything can reference
	// them textually-forward within the same file, so the only legitimate
	// "not seen yet" case is an object used before its `object` form.
	return ConstVal{IsRef: true, RefName: n.Name, RefClass: ClassObject}
}

func applyUnary(op ast.Op, v int32) int32 {
	switch op {
	case ast.OpNeg:
		return -v
	case ast.OpNot:
		if v == 0 {
			return 1
		}
		return 0
	case ast.OpBNot:
		return ^v
	default:
		return v
	}
}

func applyBinary(op ast.Op, a, b int32) int32 {
	switch op {
	case ast.OpAdd:
		return a + b
	case ast.OpSub:
		return a - b
	case ast.OpMul:
		return a * b
	case ast.OpDiv:
		if b == 0 {
			return 0
		}
		return a / b
	case ast.OpMod:
		if b == 0 {
			return 0
		}
		return a % b
	case ast.OpBAnd:
		return a & b
	case ast.OpBOr:
		return a | b
	case ast.OpBXor:
		return a ^ b
	case ast.OpShl:
		return a << uint32(b&31)
	case ast.OpShr:
		return a >> uint32(b&31)
	case ast.OpLt:
		return boolInt(a < b)
	case ast.OpLe:
		return boolInt(a <= b)
	case ast.OpEq:
		return boolInt(a == b)
	case ast.OpNe:
		return boolInt(a != b)
	case ast.OpGe:
		return boolInt(a >= b)
	case ast.OpGt:
		return boolInt(a > b)
	default:
		return 0
	}
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
