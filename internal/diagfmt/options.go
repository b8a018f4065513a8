// Package diagfmt renders diagnostics for humans and tools: a pretty
// terminal form with source context and caret underlines, and a line-based
// JSON form for editors.
package diagfmt

import (
	"os"

	"golang.org/x/term"
)

// PathMode specifies how file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto shows paths relative to the working directory when
	// they are inside it, absolute otherwise.
	PathModeAuto PathMode = iota
	// PathModeAbsolute always uses absolute paths.
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	// Width caps rendered line width; 0 means unlimited.
	Width int
	// Context is the number of source lines shown before the primary
	// line.
	Context   int
	ShowNotes bool
}

// JSONOpts configures JSON output of diagnostics.
type JSONOpts struct {
	PathMode     PathMode
	IncludeNotes bool
	// Max truncates the emitted list; 0 means all.
	Max int
}

// ColorEnabled reports whether colored output should be used for stdout:
// a terminal, and NO_COLOR unset.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
