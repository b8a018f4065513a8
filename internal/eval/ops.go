package eval

import (
	"fmt"
	"math"
	"math/big"

	"quill/internal/ast"
	"quill/internal/source"
)

// binExpr handles short-circuit evaluation before delegating to binOp.
func (ev *Evaluator) binExpr(x *ast.BinExpr) (Value, *control) {
	if x.Op == ast.BinAndL || x.Op == ast.BinOrL {
		lhs, c := ev.expr(x.LHS)
		if c != nil {
			return Value{}, c
		}
		if lhs.Kind != VKBool {
			return Value{}, ev.fail(ErrUnsupported, x.LHS.Pos(),
				"logical operand must be a Bool, got "+lhs.Kind.String())
		}
		if x.Op == ast.BinAndL && !lhs.Bool {
			return BoolVal(false), nil
		}
		if x.Op == ast.BinOrL && lhs.Bool {
			return BoolVal(true), nil
		}
		rhs, c := ev.expr(x.RHS)
		if c != nil {
			return Value{}, c
		}
		if rhs.Kind != VKBool {
			return Value{}, ev.fail(ErrUnsupported, x.RHS.Pos(),
				"logical operand must be a Bool, got "+rhs.Kind.String())
		}
		return rhs, nil
	}
	lhs, c := ev.expr(x.LHS)
	if c != nil {
		return Value{}, c
	}
	rhs, c := ev.expr(x.RHS)
	if c != nil {
		return Value{}, c
	}
	return ev.binOp(x.Op, lhs, rhs, x.Pos())
}

func (ev *Evaluator) binOp(op ast.BinOp, lhs, rhs Value, span source.Span) (Value, *control) {
	switch op {
	case ast.BinEq:
		return BoolVal(valueEq(lhs, rhs)), nil
	case ast.BinNe:
		return BoolVal(!valueEq(lhs, rhs)), nil
	}

	switch {
	case lhs.Kind == VKInt && rhs.Kind == VKInt:
		return ev.intOp(op, lhs.Int, rhs.Int, span)
	case lhs.Kind == VKDouble && rhs.Kind == VKDouble:
		return ev.doubleOp(op, lhs.Double, rhs.Double, span)
	case lhs.Kind == VKBigInt && rhs.Kind == VKBigInt:
		return ev.bigOp(op, lhs.Big, rhs.Big, span)
	case lhs.Kind == VKBigInt && rhs.Kind == VKInt && op == ast.BinExp:
		// exponent of a BigInt power stays Int
		return ev.bigExp(lhs.Big, rhs.Int, span)
	case lhs.Kind == VKString && rhs.Kind == VKString && op == ast.BinAdd:
		return StringVal(lhs.Str + rhs.Str), nil
	case lhs.Kind == VKArray && rhs.Kind == VKArray && op == ast.BinAdd:
		items := make([]Value, 0, len(lhs.Arr.Items)+len(rhs.Arr.Items))
		items = append(items, lhs.Arr.Items...)
		items = append(items, rhs.Arr.Items...)
		return ArrayVal(items), nil
	case lhs.Kind == VKBool && rhs.Kind == VKBool:
		switch op {
		case ast.BinAndB:
			return BoolVal(lhs.Bool && rhs.Bool), nil
		case ast.BinOrB:
			return BoolVal(lhs.Bool || rhs.Bool), nil
		case ast.BinXorB:
			return BoolVal(lhs.Bool != rhs.Bool), nil
		}
	}
	return Value{}, ev.fail(ErrUnsupported, span,
		fmt.Sprintf("operator not defined for %s and %s", lhs.Kind, rhs.Kind))
}

// intOp implements Int arithmetic with wrap-around on overflow.
func (ev *Evaluator) intOp(op ast.BinOp, a, b int64, span source.Span) (Value, *control) {
	switch op {
	case ast.BinAdd:
		return IntVal(a + b), nil
	case ast.BinSub:
		return IntVal(a - b), nil
	case ast.BinMul:
		return IntVal(a * b), nil
	case ast.BinDiv:
		if b == 0 {
			return Value{}, ev.fail(ErrDivisionByZero, span, "attempt to divide by zero")
		}
		return IntVal(a / b), nil
	case ast.BinMod:
		if b == 0 {
			return Value{}, ev.fail(ErrDivisionByZero, span, "attempt to calculate the remainder with a divisor of zero")
		}
		return IntVal(a % b), nil
	case ast.BinExp:
		if b < 0 {
			return Value{}, ev.fail(ErrInvalidNegativeInt, span,
				fmt.Sprintf("integer exponent must be non-negative, got %d", b))
		}
		out := int64(1)
		for ; b > 0; b-- {
			out *= a
		}
		return IntVal(out), nil
	case ast.BinLt:
		return BoolVal(a < b), nil
	case ast.BinLe:
		return BoolVal(a <= b), nil
	case ast.BinGt:
		return BoolVal(a > b), nil
	case ast.BinGe:
		return BoolVal(a >= b), nil
	case ast.BinAndB:
		return IntVal(a & b), nil
	case ast.BinOrB:
		return IntVal(a | b), nil
	case ast.BinXorB:
		return IntVal(a ^ b), nil
	case ast.BinShl:
		if b < 0 {
			return Value{}, ev.fail(ErrInvalidNegativeInt, span,
				fmt.Sprintf("shift amount must be non-negative, got %d", b))
		}
		return IntVal(a << uint64(b)), nil
	case ast.BinShr:
		if b < 0 {
			return Value{}, ev.fail(ErrInvalidNegativeInt, span,
				fmt.Sprintf("shift amount must be non-negative, got %d", b))
		}
		if b >= 64 {
			b = 63
		}
		return IntVal(a >> uint64(b)), nil
	}
	return Value{}, ev.fail(ErrUnsupported, span, "operator not defined for Int")
}

// doubleOp follows IEEE semantics: division by zero yields an infinity,
// never an error.
func (ev *Evaluator) doubleOp(op ast.BinOp, a, b float64, span source.Span) (Value, *control) {
	switch op {
	case ast.BinAdd:
		return DoubleVal(a + b), nil
	case ast.BinSub:
		return DoubleVal(a - b), nil
	case ast.BinMul:
		return DoubleVal(a * b), nil
	case ast.BinDiv:
		return DoubleVal(a / b), nil
	case ast.BinMod:
		return DoubleVal(math.Mod(a, b)), nil
	case ast.BinExp:
		return DoubleVal(math.Pow(a, b)), nil
	case ast.BinLt:
		return BoolVal(a < b), nil
	case ast.BinLe:
		return BoolVal(a <= b), nil
	case ast.BinGt:
		return BoolVal(a > b), nil
	case ast.BinGe:
		return BoolVal(a >= b), nil
	}
	return Value{}, ev.fail(ErrUnsupported, span, "operator not defined for Double")
}

func (ev *Evaluator) bigOp(op ast.BinOp, a, b *big.Int, span source.Span) (Value, *control) {
	out := new(big.Int)
	switch op {
	case ast.BinAdd:
		return BigVal(out.Add(a, b)), nil
	case ast.BinSub:
		return BigVal(out.Sub(a, b)), nil
	case ast.BinMul:
		return BigVal(out.Mul(a, b)), nil
	case ast.BinDiv:
		if b.Sign() == 0 {
			return Value{}, ev.fail(ErrDivisionByZero, span, "attempt to divide by zero")
		}
		return BigVal(out.Quo(a, b)), nil
	case ast.BinMod:
		if b.Sign() == 0 {
			return Value{}, ev.fail(ErrDivisionByZero, span, "attempt to calculate the remainder with a divisor of zero")
		}
		return BigVal(out.Rem(a, b)), nil
	case ast.BinLt:
		return BoolVal(a.Cmp(b) < 0), nil
	case ast.BinLe:
		return BoolVal(a.Cmp(b) <= 0), nil
	case ast.BinGt:
		return BoolVal(a.Cmp(b) > 0), nil
	case ast.BinGe:
		return BoolVal(a.Cmp(b) >= 0), nil
	case ast.BinAndB:
		return BigVal(out.And(a, b)), nil
	case ast.BinOrB:
		return BigVal(out.Or(a, b)), nil
	case ast.BinXorB:
		return BigVal(out.Xor(a, b)), nil
	}
	return Value{}, ev.fail(ErrUnsupported, span, "operator not defined for BigInt")
}

func (ev *Evaluator) bigExp(base *big.Int, exp int64, span source.Span) (Value, *control) {
	if exp < 0 {
		return Value{}, ev.fail(ErrInvalidNegativeInt, span,
			fmt.Sprintf("integer exponent must be non-negative, got %d", exp))
	}
	return BigVal(new(big.Int).Exp(base, big.NewInt(exp), nil)), nil
}

func (ev *Evaluator) unExpr(x *ast.UnExpr) (Value, *control) {
	v, c := ev.expr(x.Operand)
	if c != nil {
		return Value{}, c
	}
	switch x.Op {
	case ast.UnNeg:
		switch v.Kind {
		case VKInt:
			return IntVal(-v.Int), nil
		case VKDouble:
			return DoubleVal(-v.Double), nil
		case VKBigInt:
			return BigVal(new(big.Int).Neg(v.Big)), nil
		}
	case ast.UnPos:
		switch v.Kind {
		case VKInt, VKDouble, VKBigInt:
			return v, nil
		}
	case ast.UnNotL:
		if v.Kind == VKBool {
			return BoolVal(!v.Bool), nil
		}
	case ast.UnNotB:
		switch v.Kind {
		case VKInt:
			return IntVal(^v.Int), nil
		case VKBigInt:
			return BigVal(new(big.Int).Not(v.Big)), nil
		}
	}
	return Value{}, ev.fail(ErrUnsupported, x.Pos(),
		"unary operator not defined for "+v.Kind.String())
}
