package eval

import (
	"fmt"
	"strings"

	"quill/internal/source"
)

// ErrKind classifies a runtime failure.
type ErrKind uint8

const (
	ErrDivisionByZero ErrKind = iota + 1
	ErrIndexOutOfRange
	ErrRangeStepZero
	ErrArrayTooLarge
	ErrQubitUniqueness
	ErrQubitsNotSeparable
	ErrInvalidRotationAngle
	ErrReleasedQubitNotZero
	ErrUnknownIntrinsic
	ErrIntrinsicFail
	ErrOutputFail
	ErrInvalidNegativeInt
	ErrUnsupported
	// ErrUserFail is the explicit fail expression: deliberate signaling,
	// not a runtime fault, but it unwinds identically.
	ErrUserFail
)

func (k ErrKind) String() string {
	switch k {
	case ErrDivisionByZero:
		return "DivisionByZero"
	case ErrIndexOutOfRange:
		return "IndexOutOfRange"
	case ErrRangeStepZero:
		return "RangeStepZero"
	case ErrArrayTooLarge:
		return "ArrayTooLarge"
	case ErrQubitUniqueness:
		return "QubitUniqueness"
	case ErrQubitsNotSeparable:
		return "QubitsNotSeparable"
	case ErrInvalidRotationAngle:
		return "InvalidRotationAngle"
	case ErrReleasedQubitNotZero:
		return "ReleasedQubitNotZero"
	case ErrUnknownIntrinsic:
		return "UnknownIntrinsic"
	case ErrIntrinsicFail:
		return "IntrinsicFail"
	case ErrOutputFail:
		return "OutputFail"
	case ErrInvalidNegativeInt:
		return "InvalidNegativeInt"
	case ErrUnsupported:
		return "Unsupported"
	case ErrUserFail:
		return "Fail"
	}
	return fmt.Sprintf("ErrKind(%d)", k)
}

// TraceFrame is one call-stack entry at the point of failure.
type TraceFrame struct {
	// Functor is the specialization prefix: "", "Adjoint ", "Controlled ",
	// or "Controlled Adjoint ".
	Functor string
	// Name is the qualified callable name.
	Name string
	// File is the source file holding the callable's declaration.
	File source.FileID
}

// Error is a structured evaluation failure. It carries the failing span
// (addressable across stacked packages) and the call stack captured when
// the failure was raised, innermost frame first.
type Error struct {
	Kind    ErrKind
	Message string
	Span    source.PackageSpan
	Frames  []TraceFrame
}

func (e *Error) Error() string {
	if e.Kind == ErrUserFail {
		return "program failed: " + e.Message
	}
	return fmt.Sprintf("runtime error: %s: %s", e.Kind, e.Message)
}

// Stack renders the trace, one line per frame, innermost first:
//
//	at <Functor ><Qualified.Name> in <file>
func (e *Error) Stack(fset *source.FileSet) string {
	var sb strings.Builder
	for _, fr := range e.Frames {
		sb.WriteString("at ")
		sb.WriteString(fr.Functor)
		sb.WriteString(fr.Name)
		sb.WriteString(" in ")
		if f := fset.Get(fr.File); f != nil {
			sb.WriteString(f.Path)
		} else {
			sb.WriteString("<unknown>")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Render formats the error with its location and stack for terminal
// output.
func (e *Error) Render(fset *source.FileSet) string {
	var sb strings.Builder
	sb.WriteString(e.Error())
	if f := fset.Get(e.Span.Span.File); f != nil {
		start, _ := fset.Resolve(e.Span.Span)
		fmt.Fprintf(&sb, "\n  --> %s:%d:%d", f.Path, start.Line, start.Col)
	}
	if len(e.Frames) > 0 {
		sb.WriteString("\n")
		sb.WriteString(strings.TrimRight(e.Stack(fset), "\n"))
	}
	return sb.String()
}
