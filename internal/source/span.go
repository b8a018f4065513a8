package source

import (
	"fmt"
)

// Span addresses a half-open byte range [Start, End) inside one file.
type Span struct {
	File  FileID
	Start uint32
	End   uint32
}

func (s Span) Empty() bool {
	return s.Start == s.End
}

func (s Span) Len() uint32 {
	return s.End - s.Start
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d-%d", s.File, s.Start, s.End)
}

// Cover extends the span to include other. Spans in different files are
// left unchanged.
func (s Span) Cover(other Span) Span {
	if s.File != other.File {
		return s
	}
	if other.Start < s.Start {
		s.Start = other.Start
	}
	if other.End > s.End {
		s.End = other.End
	}
	return s
}

// PackageSpan addresses a span across stacked packages, so an error raised
// deep inside a library frame can still be rendered in its originating file.
type PackageSpan struct {
	Package PackageID
	Span    Span
}

func (s PackageSpan) String() string {
	return fmt.Sprintf("pkg%d:%s", s.Package, s.Span)
}
