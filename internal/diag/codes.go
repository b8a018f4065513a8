package diag

import (
	"fmt"
)

// Code identifies a diagnostic kind. Ranges are reserved per phase:
// 1000 lexer, 2000 parser, 3000 name resolution and global table.
type Code uint16

const (
	UnknownCode Code = 0

	// Lexical
	LexUnknownChar              Code = 1001
	LexUnterminatedString       Code = 1002
	LexUnterminatedBlockComment Code = 1003
	LexBadNumber                Code = 1004
	LexUnterminatedInterp       Code = 1005

	// Syntax
	SynUnexpectedToken   Code = 2001
	SynExpectIdentifier  Code = 2002
	SynExpectType        Code = 2003
	SynExpectExpression  Code = 2004
	SynUnclosedDelimiter Code = 2005
	SynBadSpecialization Code = 2006
	SynBadAttribute      Code = 2007
	SynBadFunctorExpr    Code = 2008

	// Name resolution and global table
	ResNotFound               Code = 3001
	ResNotAvailable           Code = 3002
	ResDuplicate              Code = 3003
	ResDuplicateIntrinsic     Code = 3004
	ResDuplicateBinding       Code = 3005
	ResDuplicateExport        Code = 3006
	ResImportedDuplicate      Code = 3007
	ResAmbiguous              Code = 3008
	ResAmbiguousPrelude       Code = 3009
	ResGlobExportNotSupported Code = 3010
	ResExportedNonItem        Code = 3011
	ResImportedNonItem        Code = 3012
	ResDotIdentAlias          Code = 3013

	// Capability validation (driver-level, fed by RCA output)
	CapUnsupportedFeature Code = 4001
)

func (c Code) String() string {
	return fmt.Sprintf("QL%04d", uint16(c))
}
