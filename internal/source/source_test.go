package source

import "testing"

func TestResolveSpansAcrossLines(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual(0, "main.qs", []byte("namespace A {\n    function F() : Unit {}\n}\n"))

	start, end := fs.Resolve(Span{File: id, Start: 18, End: 26})
	if start.Line != 2 || start.Col != 5 {
		t.Fatalf("start = %+v, want line 2 col 5", start)
	}
	if end.Line != 2 {
		t.Fatalf("end = %+v, want line 2", end)
	}
}

func TestResolveOffsetAtNewline(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual(0, "f.qs", []byte("a\nb\n"))

	start, _ := fs.Resolve(Span{File: id, Start: 2, End: 3})
	if start.Line != 2 || start.Col != 1 {
		t.Fatalf("offset 2 resolved to %+v, want line 2 col 1", start)
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual(0, "f.qs", []byte("first\nsecond\nthird"))
	f := fs.Get(id)

	if got := f.GetLine(2); got != "second" {
		t.Fatalf("GetLine(2) = %q", got)
	}
	if got := f.GetLine(3); got != "third" {
		t.Fatalf("GetLine(3) = %q", got)
	}
	if got := f.GetLine(4); got != "" {
		t.Fatalf("GetLine(4) = %q, want empty", got)
	}
}

func TestLoadNormalizesCRLF(t *testing.T) {
	content, changed := normalizeCRLF([]byte("a\r\nb"))
	if !changed || string(content) != "a\nb" {
		t.Fatalf("normalizeCRLF = %q changed=%v", content, changed)
	}
}
