package diagfmt

import (
	"encoding/json"
	"strings"
	"testing"

	"quill/internal/diag"
	"quill/internal/source"
)

func fixture(t *testing.T) (*source.FileSet, *diag.Bag) {
	t.Helper()
	fset := source.NewFileSet()
	fid := fset.AddVirtual(0, "main.qs", []byte("namespace Demo {\n    operation Main() : Unit {\n        Unknown();\n    }\n}\n"))

	// Span of "Unknown" on line 3.
	content := string(fset.Get(fid).Content)
	off := strings.Index(content, "Unknown")
	span := source.Span{File: fid, Start: uint32(off), End: uint32(off + len("Unknown"))}

	bag := diag.NewBag(8)
	rep := diag.BagReporter{Bag: bag}
	diag.ReportError(rep, diag.ResNotFound, span, "`Unknown` is not defined").
		WithNote(span, "no matching callable in scope").
		Emit()
	return fset, bag
}

func TestPrettyRendersLocationAndCaret(t *testing.T) {
	fset, bag := fixture(t)
	var sb strings.Builder
	Pretty(&sb, bag, fset, PrettyOpts{PathMode: PathModeBasename, ShowNotes: true})
	out := sb.String()

	if !strings.Contains(out, "main.qs:3:9: ERROR") {
		t.Fatalf("missing location header:\n%s", out)
	}
	if !strings.Contains(out, "`Unknown` is not defined") {
		t.Fatalf("missing message:\n%s", out)
	}
	if !strings.Contains(out, "^~~~~~~") {
		t.Fatalf("missing caret underline:\n%s", out)
	}
	if !strings.Contains(out, "note: main.qs:3:9:") {
		t.Fatalf("missing note:\n%s", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected color escapes:\n%s", out)
	}
}

func TestPrettyUnderlineAlignment(t *testing.T) {
	fset, bag := fixture(t)
	var sb strings.Builder
	Pretty(&sb, bag, fset, PrettyOpts{PathMode: PathModeBasename})
	lines := strings.Split(sb.String(), "\n")

	var src, caret string
	for i, line := range lines {
		if strings.Contains(line, "Unknown()") && i+1 < len(lines) {
			src, caret = line, lines[i+1]
		}
	}
	if src == "" {
		t.Fatalf("no source context printed:\n%s", sb.String())
	}
	if strings.Index(src, "Unknown") != strings.Index(caret, "^") {
		t.Fatalf("caret misaligned:\nsrc:   %q\ncaret: %q", src, caret)
	}
}

func TestPrettyShowsContextLines(t *testing.T) {
	fset, bag := fixture(t)
	var sb strings.Builder
	Pretty(&sb, bag, fset, PrettyOpts{PathMode: PathModeBasename, Context: 2})
	out := sb.String()
	if !strings.Contains(out, "operation Main()") {
		t.Fatalf("context line missing:\n%s", out)
	}
}

func TestJSONOutput(t *testing.T) {
	fset, bag := fixture(t)
	var sb strings.Builder
	if err := JSON(&sb, bag, fset, JSONOpts{PathMode: PathModeBasename, IncludeNotes: true}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded []struct {
		Severity string `json:"severity"`
		Code     string `json:"code"`
		Path     string `json:"path"`
		Start    struct {
			Line uint32 `json:"line"`
			Col  uint32 `json:"col"`
		} `json:"start"`
		Notes []struct {
			Message string `json:"message"`
		} `json:"notes"`
	}
	if err := json.Unmarshal([]byte(sb.String()), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(decoded))
	}
	d := decoded[0]
	if d.Severity != "ERROR" || d.Path != "main.qs" || d.Start.Line != 3 {
		t.Fatalf("unexpected payload: %+v", d)
	}
	if len(d.Notes) != 1 || d.Notes[0].Message != "no matching callable in scope" {
		t.Fatalf("notes missing: %+v", d)
	}
}

func TestJSONMaxTruncates(t *testing.T) {
	fset := source.NewFileSet()
	fid := fset.AddVirtual(0, "m.qs", []byte("bad bad bad\n"))
	bag := diag.NewBag(8)
	rep := diag.BagReporter{Bag: bag}
	for i := 0; i < 3; i++ {
		start := uint32(i * 4)
		diag.ReportError(rep, diag.SynUnexpectedToken, source.Span{File: fid, Start: start, End: start + 3}, "bad token").Emit()
	}

	var sb strings.Builder
	if err := JSON(&sb, bag, fset, JSONOpts{Max: 2}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(sb.String()), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 diagnostics after truncation, got %d", len(decoded))
	}
}
