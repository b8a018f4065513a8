// Package ast defines the syntax tree of the quill language.
//
// Every node carries a NodeID minted by an Assigner before name resolution
// runs; resolution results are keyed by that identity. Nodes are owned
// recursive structs; structural content is what matters everywhere except
// the NodeID-keyed resolution map.
package ast

import (
	"math/big"
	"strings"

	"quill/internal/source"
)

// NodeID uniquely identifies a node within one compilation.
type NodeID uint32

const NoNodeID NodeID = 0

func (id NodeID) IsValid() bool { return id != NoNodeID }

// Assigner mints NodeIDs. One Assigner is constructed per compilation and
// passed by pointer into every pass that creates nodes; there is no ambient
// global counter.
type Assigner struct {
	next NodeID
}

func NewAssigner() *Assigner {
	return &Assigner{next: 1}
}

// NewAssignerAt starts minting at a given id. Parallel parsing hands each
// file a disjoint id range this way.
func NewAssignerAt(start NodeID) *Assigner {
	if start == NoNodeID {
		start = 1
	}
	return &Assigner{next: start}
}

func (a *Assigner) Next() NodeID {
	id := a.next
	a.next++
	return id
}

// Node is implemented by every syntax node.
type Node interface {
	NodeID() NodeID
	Pos() source.Span
}

// Base is the embedded header carried by every node.
type Base struct {
	ID   NodeID
	Span source.Span
}

func (b *Base) NodeID() NodeID   { return b.ID }
func (b *Base) Pos() source.Span { return b.Span }

// Ident is a single name occurrence.
type Ident struct {
	Base
	Name string
}

func NewIdent(a *Assigner, span source.Span, name string) *Ident {
	return &Ident{Base: Base{ID: a.Next(), Span: span}, Name: name}
}

// Path is a dotted name. A one-segment path is a bare identifier reference.
// The whole path resolves to a single binding; segments before the final
// name select a namespace or namespace alias.
type Path struct {
	Base
	Segments []*Ident
}

// Name returns the final segment.
func (p *Path) Name() *Ident {
	return p.Segments[len(p.Segments)-1]
}

// Qualifier returns the spelled segments before the final name.
func (p *Path) Qualifier() []string {
	parts := make([]string, 0, len(p.Segments)-1)
	for _, seg := range p.Segments[:len(p.Segments)-1] {
		parts = append(parts, seg.Name)
	}
	return parts
}

// Parts returns every segment spelling.
func (p *Path) Parts() []string {
	parts := make([]string, 0, len(p.Segments))
	for _, seg := range p.Segments {
		parts = append(parts, seg.Name)
	}
	return parts
}

func (p *Path) String() string {
	return strings.Join(p.Parts(), ".")
}

// Package is one parsed package: namespaces plus an optional entry
// expression (REPL fragments and the implicit entry wrapper use it).
type Package struct {
	Namespaces []*Namespace
	Entry      []Stmt
	EntryFile  source.FileID
	// EntryNS is the implicit namespace holding top-level items and entry
	// statements, when the file has any.
	EntryNS *Namespace
}

// Namespace groups items under a dotted name. The same namespace may be
// reopened across files; resolution merges them by name.
type Namespace struct {
	Base
	Name  []*Ident
	Items []*Item
}

func (n *Namespace) NameParts() []string {
	parts := make([]string, 0, len(n.Name))
	for _, seg := range n.Name {
		parts = append(parts, seg.Name)
	}
	return parts
}

func (n *Namespace) NameString() string {
	return strings.Join(n.NameParts(), ".")
}

// Visibility of a top-level item.
type Visibility uint8

const (
	VisPublic Visibility = iota
	VisInternal
)

// Attr is an item attribute such as @EntryPoint() or @Config(Adaptive).
type Attr struct {
	Base
	Name *Ident
	Arg  Expr // always a TupleExpr, possibly empty
}

// Item is one top-level declaration inside a namespace.
type Item struct {
	Base
	Attrs      []*Attr
	Visibility Visibility
	Kind       ItemKind
}

// Attr returns the attribute with the given name, if present.
func (it *Item) Attr(name string) *Attr {
	for _, a := range it.Attrs {
		if a.Name.Name == name {
			return a
		}
	}
	return nil
}

type ItemKind interface{ itemKind() }

// OpenItem is `open Ns;` or `open Ns as Alias;`.
type OpenItem struct {
	Name  *Path
	Alias *Ident
}

// ImportExportItem is an `import ...;` or `export ...;` item with one or
// more entries.
type ImportExportItem struct {
	Export  bool
	Entries []*ImportExportEntry
}

// ImportExportEntry is one clause of an import/export item.
type ImportExportEntry struct {
	Base
	Path  *Path
	Alias *Ident
	Glob  bool // `Foo.*`
}

// CallableKind distinguishes functions from operations.
type CallableKind uint8

const (
	CallableFunction CallableKind = iota
	CallableOperation
)

func (k CallableKind) String() string {
	if k == CallableOperation {
		return "operation"
	}
	return "function"
}

// FunctorSet records the declared characteristics (`is Adj + Ctl`).
type FunctorSet uint8

const (
	FunctorSetEmpty FunctorSet = 0
	FunctorSetAdj   FunctorSet = 1 << iota
	FunctorSetCtl
)

// CallableDecl declares a function or operation. Body sugar
// (`operation X() : Unit { ... }`) parses as a single body specialization
// with manual generation.
type CallableDecl struct {
	Kind     CallableKind
	Name     *Ident
	Params   *Pat
	Output   Ty
	Functors FunctorSet
	Specs    []*SpecDecl
}

// NewtypeDecl declares a named wrapper type.
type NewtypeDecl struct {
	Name *Ident
	Def  Ty
}

func (*OpenItem) itemKind()         {}
func (*ImportExportItem) itemKind() {}
func (*CallableDecl) itemKind()     {}
func (*NewtypeDecl) itemKind()      {}

// SpecKind is one of a callable's four control-flow variants.
type SpecKind uint8

const (
	SpecBody SpecKind = iota
	SpecAdj
	SpecCtl
	SpecCtlAdj
)

func (k SpecKind) String() string {
	switch k {
	case SpecAdj:
		return "adjoint"
	case SpecCtl:
		return "controlled"
	case SpecCtlAdj:
		return "controlled adjoint"
	default:
		return "body"
	}
}

// SpecGen is the generation strategy for a specialization.
type SpecGen uint8

const (
	GenManual SpecGen = iota // explicit block
	GenAuto
	GenSelf
	GenInvert
	GenDistribute
	GenIntrinsic // `body intrinsic;`
)

// SpecDecl is one specialization declaration. Input is the specialization
// parameter pattern (`controlled (cs, ...)`); Block is set for GenManual.
type SpecDecl struct {
	Base
	Kind  SpecKind
	Gen   SpecGen
	Input *Pat
	Block *Block
}

// Block is a brace-delimited statement list. If the final statement is an
// expression without a trailing semicolon, the block evaluates to it.
type Block struct {
	Base
	Stmts []Stmt
}

type Stmt interface {
	Node
	stmtNode()
}

// ExprStmt is an expression in statement position. Semi records whether a
// trailing semicolon discards the value.
type ExprStmt struct {
	Base
	Expr Expr
	Semi bool
}

// LetStmt is `let` or `mutable`.
type LetStmt struct {
	Base
	Mutable bool
	Pat     *Pat
	Value   Expr
}

// QubitStmt is `use`/`borrow`, optionally with a scoped block.
type QubitStmt struct {
	Base
	Borrow bool
	Pat    *Pat
	Init   QubitInit
	Block  *Block
}

func (*ExprStmt) stmtNode()  {}
func (*LetStmt) stmtNode()   {}
func (*QubitStmt) stmtNode() {}

// QubitInit describes the right-hand side of a use/borrow binding.
type QubitInit interface {
	Node
	qubitInit()
}

// SingleQubit is `Qubit()`.
type SingleQubit struct {
	Base
}

// QubitArray is `Qubit[len]`.
type QubitArray struct {
	Base
	Len Expr
}

// QubitTuple is a parenthesized tuple of initializers.
type QubitTuple struct {
	Base
	Items []QubitInit
}

func (*SingleQubit) qubitInit() {}
func (*QubitArray) qubitInit()  {}
func (*QubitTuple) qubitInit()  {}

// Pat is a binding pattern.
type Pat struct {
	Base
	Kind  PatKind
	Name  *Ident // PatBind
	Ty    Ty     // optional annotation
	Items []*Pat // PatTuple
}

type PatKind uint8

const (
	PatBind PatKind = iota
	PatDiscard
	PatTuple
	// PatElided is the `...` inside a specialization parameter list; it
	// stands for the callable's declared parameters.
	PatElided
)

type Ty interface {
	Node
	tyNode()
}

// PathTy is a named type: a primitive (Int, Qubit, ...) or a declared item.
type PathTy struct {
	Base
	Path *Path
}

// TupleTy is a tuple type; the empty tuple is Unit.
type TupleTy struct {
	Base
	Items []Ty
}

// ArrayTy is `T[]`.
type ArrayTy struct {
	Base
	Elem Ty
}

// ArrowTy is a callable type `T -> U` or `T => U is Adj`.
type ArrowTy struct {
	Base
	Kind     CallableKind
	Input    Ty
	Output   Ty
	Functors FunctorSet
}

// HoleTy is `_` in type position.
type HoleTy struct {
	Base
}

func (*PathTy) tyNode()  {}
func (*TupleTy) tyNode() {}
func (*ArrayTy) tyNode() {}
func (*ArrowTy) tyNode() {}
func (*HoleTy) tyNode()  {}

type Expr interface {
	Node
	exprNode()
}

// LitKind enumerates literal kinds carried by LitExpr.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitBigInt
	LitDouble
	LitBool
	LitString
	LitResult
	LitPauli
)

// Pauli is one of the four Pauli bases.
type Pauli uint8

const (
	PauliI Pauli = iota
	PauliX
	PauliY
	PauliZ
)

func (p Pauli) String() string {
	switch p {
	case PauliX:
		return "PauliX"
	case PauliY:
		return "PauliY"
	case PauliZ:
		return "PauliZ"
	default:
		return "PauliI"
	}
}

type LitExpr struct {
	Base
	Kind   LitKind
	Int    int64
	Big    *big.Int
	Double float64
	Bool   bool // LitBool and LitResult (true = One)
	Str    string
	Pauli  Pauli
}

// InterpPart is one piece of an interpolated string.
type InterpPart struct {
	Lit  string
	Expr Expr // nil for literal parts
}

// InterpExpr is `$"..."` with embedded expressions.
type InterpExpr struct {
	Base
	Parts []InterpPart
}

type ArrayExpr struct {
	Base
	Items []Expr
}

// ArrayRepeatExpr is `[value, size = n]`.
type ArrayRepeatExpr struct {
	Base
	Value Expr
	Size  Expr
}

// TupleExpr is a parenthesized tuple; empty means Unit.
type TupleExpr struct {
	Base
	Items []Expr
}

// RangeExpr is `start..end`, `start..step..end`, or open forms with `...`.
type RangeExpr struct {
	Base
	Start Expr // nil for open start
	Step  Expr // nil for implicit step 1
	End   Expr // nil for open end
}

type PathExpr struct {
	Base
	Path *Path
}

// CallExpr applies a callable to an argument tuple.
type CallExpr struct {
	Base
	Callee Expr
	Arg    Expr
}

type IndexExpr struct {
	Base
	Array Expr
	Index Expr
}

type BinOp uint8

const (
	BinAdd BinOp = iota
	BinSub
	BinMul
	BinDiv
	BinMod
	BinExp
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinAndL
	BinOrL
	BinAndB
	BinOrB
	BinXorB
	BinShl
	BinShr
)

type BinExpr struct {
	Base
	Op  BinOp
	LHS Expr
	RHS Expr
}

type UnOp uint8

const (
	UnNeg UnOp = iota
	UnPos
	UnNotL
	UnNotB
)

type UnExpr struct {
	Base
	Op      UnOp
	Operand Expr
}

// TernExpr is `cond ? then | else`.
type TernExpr struct {
	Base
	Cond Expr
	Then Expr
	Else Expr
}

// LambdaExpr is `params -> body` (function) or `params => body` (operation).
// Lambdas capture enclosing items, never enclosing locals that are not
// spelled in the body; free locals are captured by value at creation.
type LambdaExpr struct {
	Base
	Kind   CallableKind
	Params *Pat
	Body   Expr
}

// Functor is Adjoint or Controlled.
type Functor uint8

const (
	FunctorAdj Functor = iota
	FunctorCtl
)

func (f Functor) String() string {
	if f == FunctorCtl {
		return "Controlled"
	}
	return "Adjoint"
}

// FunctorExpr applies a functor to an operation expression.
type FunctorExpr struct {
	Base
	Functor Functor
	Operand Expr
}

// IfExpr covers `if`/`elif`/`else` chains; Else is nil, a *BlockExpr, or a
// nested *IfExpr.
type IfExpr struct {
	Base
	Cond Expr
	Then *Block
	Else Expr
}

type ForExpr struct {
	Base
	Pat  *Pat
	Iter Expr
	Body *Block
}

type WhileExpr struct {
	Base
	Cond Expr
	Body *Block
}

type ReturnExpr struct {
	Base
	Value Expr
}

// FailExpr raises a user-level failure with a message.
type FailExpr struct {
	Base
	Msg Expr
}

// ConjExpr is `within { ... } apply { ... }`.
type ConjExpr struct {
	Base
	Within *Block
	Apply  *Block
}

type BlockExpr struct {
	Base
	Block *Block
}

// UpdateExpr is the copy-update `record w/ index <- value`.
type UpdateExpr struct {
	Base
	Record Expr
	Index  Expr
	Value  Expr
}

// AssignExpr is `set lhs = rhs`.
type AssignExpr struct {
	Base
	LHS Expr
	RHS Expr
}

// AssignOpExpr is `set lhs op= rhs`.
type AssignOpExpr struct {
	Base
	Op  BinOp
	LHS Expr
	RHS Expr
}

// AssignUpdateExpr is `set arr w/= index <- value`.
type AssignUpdateExpr struct {
	Base
	Record Expr
	Index  Expr
	Value  Expr
}

func (*LitExpr) exprNode()          {}
func (*InterpExpr) exprNode()       {}
func (*ArrayExpr) exprNode()        {}
func (*ArrayRepeatExpr) exprNode()  {}
func (*TupleExpr) exprNode()        {}
func (*RangeExpr) exprNode()        {}
func (*PathExpr) exprNode()         {}
func (*CallExpr) exprNode()         {}
func (*IndexExpr) exprNode()        {}
func (*BinExpr) exprNode()          {}
func (*UnExpr) exprNode()           {}
func (*TernExpr) exprNode()         {}
func (*LambdaExpr) exprNode()       {}
func (*FunctorExpr) exprNode()      {}
func (*IfExpr) exprNode()           {}
func (*ForExpr) exprNode()          {}
func (*WhileExpr) exprNode()        {}
func (*ReturnExpr) exprNode()       {}
func (*FailExpr) exprNode()         {}
func (*ConjExpr) exprNode()         {}
func (*BlockExpr) exprNode()        {}
func (*UpdateExpr) exprNode()       {}
func (*AssignExpr) exprNode()       {}
func (*AssignOpExpr) exprNode()     {}
func (*AssignUpdateExpr) exprNode() {}

// MakeBase builds the embedded node header; used by the parser.
func MakeBase(a *Assigner, span source.Span) Base {
	return Base{ID: a.Next(), Span: span}
}
