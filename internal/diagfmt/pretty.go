package diagfmt

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"quill/internal/diag"
	"quill/internal/source"
)

var (
	errColor  = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow, color.Bold)
	infoColor = color.New(color.FgCyan, color.Bold)
	noteColor = color.New(color.FgCyan)
	lineColor = color.New(color.Faint)
)

// Pretty writes every diagnostic in the bag in a human-readable form:
//
//	<path>:<line>:<col>: ERROR QL3001: message
//	    <context and primary source lines>
//	    ^~~~~
//	  note: <path>:<line>:<col>: message
//
// Callers should Sort the bag first; Pretty preserves its order.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		prettyOne(w, d, fs, opts)
	}
}

func prettyOne(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	start, _ := fs.Resolve(d.Primary)
	file := fs.Get(d.Primary.File)

	sev := d.Severity.String()
	code := d.Code.String()
	if opts.Color {
		sev = sevColor(d.Severity).Sprint(sev)
		code = sevColor(d.Severity).Sprint(code)
	}
	fmt.Fprintf(w, "%s:%d:%d: %s %s: %s\n",
		displayPath(file.Path, opts.PathMode), start.Line, start.Col, sev, code, d.Message)

	writeContext(w, d.Primary, fs, opts)

	if !opts.ShowNotes {
		return
	}
	for _, n := range d.Notes {
		nStart, _ := fs.Resolve(n.Span)
		nFile := fs.Get(n.Span.File)
		label := "note"
		if opts.Color {
			label = noteColor.Sprint(label)
		}
		fmt.Fprintf(w, "  %s: %s:%d:%d: %s\n",
			label, displayPath(nFile.Path, opts.PathMode), nStart.Line, nStart.Col, n.Msg)
	}
}

// writeContext prints up to opts.Context preceding lines, the primary
// line, and a caret underline aligned by display width so wide runes and
// tabs do not skew it.
func writeContext(w io.Writer, span source.Span, fs *source.FileSet, opts PrettyOpts) {
	start, end := fs.Resolve(span)
	file := fs.Get(span.File)

	first := start.Line
	if opts.Context > 0 {
		if ctx := uint32(opts.Context); first > ctx {
			first -= ctx
		} else {
			first = 1
		}
	}
	for ln := first; ln <= start.Line; ln++ {
		text := expandTabs(file.GetLine(ln))
		if opts.Width > 0 {
			text = runewidth.Truncate(text, opts.Width, "…")
		}
		if opts.Color {
			text = lineColor.Sprint(text)
		}
		fmt.Fprintf(w, "    %s\n", text)
	}

	line := file.GetLine(start.Line)
	if line == "" {
		return
	}
	startCol := int(start.Col) - 1
	if startCol > len(line) {
		startCol = len(line)
	}
	pad := runewidth.StringWidth(expandTabs(line[:startCol]))

	width := 1
	if end.Line == start.Line && end.Col > start.Col {
		endCol := int(end.Col) - 1
		if endCol > len(line) {
			endCol = len(line)
		}
		width = runewidth.StringWidth(line[startCol:endCol])
		if width < 1 {
			width = 1
		}
	}
	marker := "^" + strings.Repeat("~", width-1)
	if end.Line > start.Line {
		marker += " ..."
	}
	if opts.Color {
		marker = errColor.Sprint(marker)
	}
	fmt.Fprintf(w, "    %s%s\n", strings.Repeat(" ", pad), marker)
}

func sevColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errColor
	case diag.SevWarning:
		return warnColor
	default:
		return infoColor
	}
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "    ")
}

func displayPath(path string, mode PathMode) string {
	switch mode {
	case PathModeBasename:
		return filepath.Base(path)
	case PathModeAbsolute:
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	case PathModeRelative, PathModeAuto:
		wd, err := os.Getwd()
		if err != nil {
			return path
		}
		rel, err := filepath.Rel(wd, path)
		if err != nil {
			return path
		}
		if mode == PathModeAuto && strings.HasPrefix(rel, "..") {
			return path
		}
		return rel
	}
	return path
}
