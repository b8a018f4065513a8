package symbols

import (
	"quill/internal/ast"
	"quill/internal/source"
)

// ResKind discriminates what an identifier reference resolved to.
type ResKind uint8

const (
	// ResErr is the sentinel binding substituted when resolution fails, so
	// the rest of the tree stays visitable.
	ResErr ResKind = iota
	// ResItem binds to a top-level item in some package.
	ResItem
	// ResLocal binds to a local variable, keyed by the node id of its
	// declaring pattern name.
	ResLocal
	// ResPrim binds a type reference to a primitive type.
	ResPrim
	// ResUnit binds a type reference to the unit type.
	ResUnit
	// ResParam binds a type reference to a type parameter of the enclosing
	// declaration. The surface grammar currently has no way to declare type
	// parameters, so the resolver never mints these; downstream consumers
	// still handle the variant.
	ResParam
)

// PrimTy enumerates the primitive types.
type PrimTy uint8

const (
	PrimInt PrimTy = iota
	PrimBigInt
	PrimDouble
	PrimBool
	PrimString
	PrimQubit
	PrimResult
	PrimPauli
	PrimRange
	PrimUnit
)

func (p PrimTy) String() string {
	switch p {
	case PrimInt:
		return "Int"
	case PrimBigInt:
		return "BigInt"
	case PrimDouble:
		return "Double"
	case PrimBool:
		return "Bool"
	case PrimString:
		return "String"
	case PrimQubit:
		return "Qubit"
	case PrimResult:
		return "Result"
	case PrimPauli:
		return "Pauli"
	case PrimRange:
		return "Range"
	default:
		return "Unit"
	}
}

// PrimTyByName maps a spelled type name to its primitive, if it is one.
func PrimTyByName(name string) (PrimTy, bool) {
	switch name {
	case "Int":
		return PrimInt, true
	case "BigInt":
		return PrimBigInt, true
	case "Double":
		return PrimDouble, true
	case "Bool":
		return PrimBool, true
	case "String":
		return PrimString, true
	case "Qubit":
		return PrimQubit, true
	case "Result":
		return PrimResult, true
	case "Pauli":
		return PrimPauli, true
	case "Range":
		return PrimRange, true
	case "Unit":
		return PrimUnit, true
	}
	return 0, false
}

// Res is the resolution of one identifier reference. It is created once per
// reference node during resolution and immutable thereafter.
type Res struct {
	Kind    ResKind
	Item    ItemID
	Package source.PackageID // valid for ResItem
	Local   ast.NodeID       // valid for ResLocal
	Prim    PrimTy           // valid for ResPrim
	Param   ParamID          // valid for ResParam
}

// Names maps every resolved reference node to its binding. It is the
// resolver's primary output and lives as long as the compiled unit.
type Names map[ast.NodeID]Res
