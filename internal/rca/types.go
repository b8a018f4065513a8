package rca

import (
	"quill/internal/ast"
	"quill/internal/symbols"
)

// tyKind is a coarse type guess used only to pick the per-type dynamism
// flag. It is not a type checker: unknown stays unknown and maps to the
// generic forwarding flag.
type tyKind uint8

const (
	tyOther tyKind = iota
	tyUnit
	tyBool
	tyInt
	tyBigInt
	tyDouble
	tyString
	tyPauli
	tyRange
	tyQubit
	tyResult
	tyArray
	tyTuple
	tyCallable
)

// tyInfo carries one level of element information so indexing a qubit
// register still guesses Qubit.
type tyInfo struct {
	k    tyKind
	elem tyKind
}

// dynFlag is the feature a target must support to hold a dynamic value of
// the guessed type. Result carries no flag of its own: flags accrue at the
// operators that consume measurement outcomes.
func dynFlag(t tyInfo) RuntimeFeatureFlags {
	switch t.k {
	case tyBool:
		return UseOfDynamicBool
	case tyInt:
		return UseOfDynamicInt
	case tyBigInt:
		return UseOfDynamicBigInt
	case tyDouble:
		return UseOfDynamicDouble
	case tyString:
		return UseOfDynamicString
	case tyPauli:
		return UseOfDynamicPauli
	case tyRange:
		return UseOfDynamicRange
	case tyQubit:
		return UseOfDynamicQubit
	case tyArray:
		return UseOfDynamicallySizedArray
	case tyTuple:
		return UseOfDynamicTuple
	case tyResult, tyUnit:
		return 0
	case tyCallable, tyOther:
		return ForwardingOfDynamicValue
	}
	return ForwardingOfDynamicValue
}

func primKind(p symbols.PrimTy) tyKind {
	switch p {
	case symbols.PrimInt:
		return tyInt
	case symbols.PrimBigInt:
		return tyBigInt
	case symbols.PrimDouble:
		return tyDouble
	case symbols.PrimBool:
		return tyBool
	case symbols.PrimString:
		return tyString
	case symbols.PrimQubit:
		return tyQubit
	case symbols.PrimResult:
		return tyResult
	case symbols.PrimPauli:
		return tyPauli
	case symbols.PrimRange:
		return tyRange
	case symbols.PrimUnit:
		return tyUnit
	}
	return tyOther
}

// tyOf guesses the kind of a declared type using the resolver's bindings.
func (a *Analyzer) tyOf(ty ast.Ty) tyInfo {
	switch t := ty.(type) {
	case *ast.PathTy:
		// the resolver binds the path node, not the type wrapper
		res := a.names[t.Path.NodeID()]
		switch res.Kind {
		case symbols.ResPrim:
			return tyInfo{k: primKind(res.Prim)}
		case symbols.ResUnit:
			return tyInfo{k: tyUnit}
		}
		return tyInfo{k: tyOther}
	case *ast.TupleTy:
		if len(t.Items) == 0 {
			return tyInfo{k: tyUnit}
		}
		return tyInfo{k: tyTuple}
	case *ast.ArrayTy:
		return tyInfo{k: tyArray, elem: a.tyOf(t.Elem).k}
	case *ast.ArrowTy:
		return tyInfo{k: tyCallable}
	}
	return tyInfo{k: tyOther}
}

// containsResult reports whether the declared type mentions Result; an
// intrinsic whose output does is a measurement and seeds dynamism.
func (a *Analyzer) containsResult(ty ast.Ty) bool {
	switch t := ty.(type) {
	case *ast.PathTy:
		res := a.names[t.Path.NodeID()]
		return res.Kind == symbols.ResPrim && res.Prim == symbols.PrimResult
	case *ast.TupleTy:
		for _, item := range t.Items {
			if a.containsResult(item) {
				return true
			}
		}
	case *ast.ArrayTy:
		return a.containsResult(t.Elem)
	}
	return false
}

func litTy(kind ast.LitKind) tyInfo {
	switch kind {
	case ast.LitInt:
		return tyInfo{k: tyInt}
	case ast.LitBigInt:
		return tyInfo{k: tyBigInt}
	case ast.LitDouble:
		return tyInfo{k: tyDouble}
	case ast.LitBool:
		return tyInfo{k: tyBool}
	case ast.LitString:
		return tyInfo{k: tyString}
	case ast.LitResult:
		return tyInfo{k: tyResult}
	case ast.LitPauli:
		return tyInfo{k: tyPauli}
	}
	return tyInfo{k: tyOther}
}

// binTy guesses the result type of a binary operator from its operands.
func binTy(op ast.BinOp, l, r tyInfo) tyInfo {
	switch op {
	case ast.BinEq, ast.BinNe, ast.BinLt, ast.BinLe, ast.BinGt, ast.BinGe,
		ast.BinAndL, ast.BinOrL:
		return tyInfo{k: tyBool}
	case ast.BinAdd:
		if l.k == tyString || r.k == tyString {
			return tyInfo{k: tyString}
		}
		if l.k == tyArray {
			return l
		}
		if r.k == tyArray {
			return r
		}
	}
	if l.k == tyDouble || r.k == tyDouble {
		return tyInfo{k: tyDouble}
	}
	if l.k == tyBigInt || r.k == tyBigInt {
		return tyInfo{k: tyBigInt}
	}
	if l.k == tyInt || r.k == tyInt {
		return tyInfo{k: tyInt}
	}
	if l.k != tyOther {
		return l
	}
	return r
}
