// Package token defines the lexical vocabulary of the quill language.
package token

import (
	"quill/internal/source"
)

// Kind enumerates token kinds.
type Kind uint8

const (
	Invalid Kind = iota
	EOF

	// Literals and names
	Ident
	Int       // 42, 0x2a, 0b101
	BigInt    // 42L
	Double    // 4.2, 1e-3
	String    // "..."
	InterpStr // $"..." raw text, parts split by the parser

	// Keywords
	KwNamespace
	KwOpen
	KwImport
	KwExport
	KwAs
	KwFunction
	KwOperation
	KwNewtype
	KwBody
	KwAdjoint
	KwControlled
	KwAuto
	KwSelf
	KwInvert
	KwDistribute
	KwIntrinsic
	KwIs
	KwLet
	KwMutable
	KwSet
	KwUse
	KwBorrow
	KwIf
	KwElif
	KwElse
	KwFor
	KwIn
	KwWhile
	KwReturn
	KwFail
	KwWithin
	KwApply
	KwAnd
	KwOr
	KwNot
	KwTrue
	KwFalse
	KwZero
	KwOne
	KwPauliI
	KwPauliX
	KwPauliY
	KwPauliZ

	// Punctuation and operators
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Comma
	Colon
	Semi
	Dot
	DotDot    // ..
	Ellipsis  // ...
	Arrow     // ->
	FatArrow  // =>
	LArrow    // <-
	Question  // ?
	Bar       // |
	At        // @
	Eq        // =
	EqEq      // ==
	Ne        // !=
	Lt        // <
	Le        // <=
	Gt        // >
	Ge        // >=
	Plus      // +
	Minus     // -
	Star      // *
	Slash     // /
	Percent   // %
	Caret     // ^
	Amp3      // &&&
	Bar3      // |||
	Caret3    // ^^^
	Shl       // <<<
	Shr       // >>>
	Tilde3    // ~~~
	Bang      // !
	WSlash    // w/
	BinOpEq   // +=, -=, *=, /=, %=, ^=, etc.; Text carries the base op
	WSlashEq  // w/=
	Underscore
)

// Token is one lexeme with its span. Text is the raw source slice; for
// BinOpEq it is the compound spelling (e.g. "+=").
type Token struct {
	Kind Kind
	Span source.Span
	Text string
}

var keywords = map[string]Kind{
	"namespace":  KwNamespace,
	"open":       KwOpen,
	"import":     KwImport,
	"export":     KwExport,
	"as":         KwAs,
	"function":   KwFunction,
	"operation":  KwOperation,
	"newtype":    KwNewtype,
	"body":       KwBody,
	"adjoint":    KwAdjoint,
	"controlled": KwControlled,
	"auto":       KwAuto,
	"self":       KwSelf,
	"invert":     KwInvert,
	"distribute": KwDistribute,
	"intrinsic":  KwIntrinsic,
	"is":         KwIs,
	"let":        KwLet,
	"mutable":    KwMutable,
	"set":        KwSet,
	"use":        KwUse,
	"borrow":     KwBorrow,
	"if":         KwIf,
	"elif":       KwElif,
	"else":       KwElse,
	"for":        KwFor,
	"in":         KwIn,
	"while":      KwWhile,
	"return":     KwReturn,
	"fail":       KwFail,
	"within":     KwWithin,
	"apply":      KwApply,
	"and":        KwAnd,
	"or":         KwOr,
	"not":        KwNot,
	"true":       KwTrue,
	"false":      KwFalse,
	"Zero":       KwZero,
	"One":        KwOne,
	"PauliI":     KwPauliI,
	"PauliX":     KwPauliX,
	"PauliY":     KwPauliY,
	"PauliZ":     KwPauliZ,
}

// LookupKeyword maps an identifier spelling to its keyword kind, if any.
func LookupKeyword(s string) (Kind, bool) {
	k, ok := keywords[s]
	return k, ok
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "token"
}

var kindNames = map[Kind]string{
	EOF:        "end of file",
	Ident:      "identifier",
	Int:        "integer literal",
	BigInt:     "big integer literal",
	Double:     "double literal",
	String:     "string literal",
	InterpStr:  "interpolated string",
	LParen:     "'('",
	RParen:     "')'",
	LBracket:   "'['",
	RBracket:   "']'",
	LBrace:     "'{'",
	RBrace:     "'}'",
	Comma:      "','",
	Colon:      "':'",
	Semi:       "';'",
	Dot:        "'.'",
	DotDot:     "'..'",
	Ellipsis:   "'...'",
	Arrow:      "'->'",
	FatArrow:   "'=>'",
	LArrow:     "'<-'",
	Question:   "'?'",
	Bar:        "'|'",
	At:         "'@'",
	Eq:         "'='",
	EqEq:       "'=='",
	Underscore: "'_'",
}
