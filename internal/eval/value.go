// Package eval implements a tree-walking interpreter over the resolved
// AST, executing programs against a pluggable quantum Backend.
package eval

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"quill/internal/ast"
	"quill/internal/symbols"
)

// Qubit is an opaque index into the backend's qubit space.
type Qubit uint32

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	// VKInvalid represents an invalid value.
	VKInvalid ValueKind = iota
	// VKUnit is the unit value.
	VKUnit
	// VKBool is a boolean.
	VKBool
	// VKInt is a 64-bit signed integer.
	VKInt
	// VKBigInt is an arbitrary-precision integer.
	VKBigInt
	// VKDouble is a 64-bit float.
	VKDouble
	// VKString is an immutable string.
	VKString
	// VKPauli is one of the four Pauli bases.
	VKPauli
	// VKQubit is a live qubit reference.
	VKQubit
	// VKResult is a measurement outcome (true = One).
	VKResult
	// VKRange is a bounded or half-open integer range.
	VKRange
	// VKArray is an ordered sequence with value semantics.
	VKArray
	// VKTuple is an immutable sequence.
	VKTuple
	// VKGlobal is a reference to a top-level callable, possibly under
	// functor application.
	VKGlobal
	// VKClosure is a lambda with its captured bindings.
	VKClosure
)

func (k ValueKind) String() string {
	switch k {
	case VKUnit:
		return "Unit"
	case VKBool:
		return "Bool"
	case VKInt:
		return "Int"
	case VKBigInt:
		return "BigInt"
	case VKDouble:
		return "Double"
	case VKString:
		return "String"
	case VKPauli:
		return "Pauli"
	case VKQubit:
		return "Qubit"
	case VKResult:
		return "Result"
	case VKRange:
		return "Range"
	case VKArray:
		return "Array"
	case VKTuple:
		return "Tuple"
	case VKGlobal, VKClosure:
		return "Callable"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// FunctorApp is the functor state applied to a callable value: Adjoint
// toggles, Controlled increments one nesting layer per application.
type FunctorApp struct {
	Adjoint    bool
	Controlled int
}

// Prefix renders the functor for stack traces and callable display.
func (f FunctorApp) Prefix() string {
	switch {
	case f.Adjoint && f.Controlled > 0:
		return "Controlled Adjoint "
	case f.Controlled > 0:
		return "Controlled "
	case f.Adjoint:
		return "Adjoint "
	}
	return ""
}

// RangeVal is start..step..end; open ends are marked absent. Step is never
// zero in a constructed value.
type RangeVal struct {
	Start, Step, End int64
	HasStart, HasEnd bool
}

// ArrayRef is a shared array handle. Bindings alias the handle; mutation
// goes through copy-on-write so arrays keep value semantics.
type ArrayRef struct {
	Items []Value
}

// Closure is a lambda value: its definition, the bindings captured by
// value at creation, and any functor application.
type Closure struct {
	Lambda   *ast.LambdaExpr
	Captured map[ast.NodeID]Value
	App      FunctorApp
}

// Value is the runtime value union.
type Value struct {
	Kind   ValueKind
	Int    int64
	Double float64
	Bool   bool // VKBool and VKResult (true = One)
	Big    *big.Int
	Str    string
	Pauli  ast.Pauli
	Qubit  Qubit
	Rng    RangeVal
	Arr    *ArrayRef // VKArray
	Tuple  []Value   // VKTuple
	Item   symbols.ItemID
	App    FunctorApp // VKGlobal
	Cl     *Closure   // VKClosure
}

func UnitVal() Value               { return Value{Kind: VKUnit} }
func BoolVal(b bool) Value         { return Value{Kind: VKBool, Bool: b} }
func IntVal(i int64) Value         { return Value{Kind: VKInt, Int: i} }
func BigVal(b *big.Int) Value      { return Value{Kind: VKBigInt, Big: b} }
func DoubleVal(d float64) Value    { return Value{Kind: VKDouble, Double: d} }
func StringVal(s string) Value     { return Value{Kind: VKString, Str: s} }
func PauliVal(p ast.Pauli) Value   { return Value{Kind: VKPauli, Pauli: p} }
func QubitVal(q Qubit) Value       { return Value{Kind: VKQubit, Qubit: q} }
func ResultVal(one bool) Value     { return Value{Kind: VKResult, Bool: one} }
func ArrayVal(items []Value) Value { return Value{Kind: VKArray, Arr: &ArrayRef{Items: items}} }
func TupleVal(items []Value) Value {
	if len(items) == 0 {
		return UnitVal()
	}
	return Value{Kind: VKTuple, Tuple: items}
}

// Display renders the value in the language's textual format: Result as
// One/Zero, whole doubles with a trailing .0 to disambiguate from Int,
// singleton tuples with a trailing comma.
func (v Value) Display() string {
	switch v.Kind {
	case VKUnit:
		return "()"
	case VKBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case VKInt:
		return strconv.FormatInt(v.Int, 10)
	case VKBigInt:
		return v.Big.String()
	case VKDouble:
		return displayDouble(v.Double)
	case VKString:
		return v.Str
	case VKPauli:
		return v.Pauli.String()
	case VKQubit:
		return fmt.Sprintf("Qubit%d", v.Qubit)
	case VKResult:
		if v.Bool {
			return "One"
		}
		return "Zero"
	case VKRange:
		return displayRange(v.Rng)
	case VKArray:
		parts := make([]string, len(v.Arr.Items))
		for i, item := range v.Arr.Items {
			parts[i] = item.Display()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case VKTuple:
		parts := make([]string, len(v.Tuple))
		for i, item := range v.Tuple {
			parts[i] = item.Display()
		}
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case VKGlobal:
		return v.App.Prefix() + "<global callable>"
	case VKClosure:
		return v.Cl.App.Prefix() + "<closure>"
	}
	return "<invalid>"
}

func displayDouble(d float64) string {
	if math.IsNaN(d) {
		return "NaN"
	}
	if math.IsInf(d, 1) {
		return "Infinity"
	}
	if math.IsInf(d, -1) {
		return "-Infinity"
	}
	if d == math.Trunc(d) && math.Abs(d) < 1e15 {
		return strconv.FormatFloat(d, 'f', 1, 64)
	}
	return strconv.FormatFloat(d, 'g', -1, 64)
}

func displayRange(r RangeVal) string {
	var sb strings.Builder
	if r.HasStart {
		sb.WriteString(strconv.FormatInt(r.Start, 10))
	} else {
		sb.WriteString("...")
	}
	if r.Step != 1 {
		if r.HasStart {
			sb.WriteString("..")
		}
		sb.WriteString(strconv.FormatInt(r.Step, 10))
	}
	if r.HasEnd {
		if r.HasStart || r.Step != 1 {
			sb.WriteString("..")
		}
		sb.WriteString(strconv.FormatInt(r.End, 10))
	} else if r.HasStart {
		sb.WriteString("...")
	}
	return sb.String()
}

// cloneItems copies an array's backing slice for copy-on-write mutation.
func cloneItems(items []Value) []Value {
	out := make([]Value, len(items))
	copy(out, items)
	return out
}

// valueEq is deep structural equality for == and !=.
func valueEq(a, b Value) bool {
	if a.Kind != b.Kind {
		// Int and Double never compare equal across kinds; mixed
		// comparisons are a type error upstream, answered false here
		return false
	}
	switch a.Kind {
	case VKUnit:
		return true
	case VKBool, VKResult:
		return a.Bool == b.Bool
	case VKInt:
		return a.Int == b.Int
	case VKBigInt:
		return a.Big.Cmp(b.Big) == 0
	case VKDouble:
		return a.Double == b.Double
	case VKString:
		return a.Str == b.Str
	case VKPauli:
		return a.Pauli == b.Pauli
	case VKQubit:
		return a.Qubit == b.Qubit
	case VKRange:
		return a.Rng == b.Rng
	case VKArray:
		if len(a.Arr.Items) != len(b.Arr.Items) {
			return false
		}
		for i := range a.Arr.Items {
			if !valueEq(a.Arr.Items[i], b.Arr.Items[i]) {
				return false
			}
		}
		return true
	case VKTuple:
		if len(a.Tuple) != len(b.Tuple) {
			return false
		}
		for i := range a.Tuple {
			if !valueEq(a.Tuple[i], b.Tuple[i]) {
				return false
			}
		}
		return true
	case VKGlobal:
		return a.Item == b.Item && a.App == b.App
	}
	return false
}
