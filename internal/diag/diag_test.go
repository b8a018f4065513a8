package diag

import (
	"testing"

	"quill/internal/source"
)

func at(file source.FileID, start, end uint32) source.Span {
	return source.Span{File: file, Start: start, End: end}
}

func TestBagHonorsLimit(t *testing.T) {
	bag := NewBag(2)
	if !bag.Add(NewError(ResNotFound, at(0, 0, 1), "a")) {
		t.Fatal("first add rejected")
	}
	if !bag.Add(NewError(ResNotFound, at(0, 1, 2), "b")) {
		t.Fatal("second add rejected")
	}
	if bag.Add(NewError(ResNotFound, at(0, 2, 3), "c")) {
		t.Fatal("add past the limit should be discarded")
	}
	if bag.Len() != 2 {
		t.Fatalf("len = %d", bag.Len())
	}
}

func TestBagSortOrdersBySpan(t *testing.T) {
	bag := NewBag(8)
	bag.Add(NewError(SynUnexpectedToken, at(1, 5, 6), "later file"))
	bag.Add(NewError(SynUnexpectedToken, at(0, 9, 10), "later span"))
	bag.Add(New(SevWarning, ResNotFound, at(0, 2, 3), "warning"))
	bag.Add(NewError(ResNotFound, at(0, 2, 3), "error same span"))
	bag.Sort()

	items := bag.Items()
	if items[0].Message != "error same span" {
		t.Fatalf("errors sort before warnings at a span, got %q", items[0].Message)
	}
	if items[1].Message != "warning" {
		t.Fatalf("items[1] = %q", items[1].Message)
	}
	if items[2].Message != "later span" || items[3].Message != "later file" {
		t.Fatalf("span/file order wrong: %q, %q", items[2].Message, items[3].Message)
	}
}

func TestBagDedupKeepsDistinctCodes(t *testing.T) {
	bag := NewBag(8)
	bag.Add(NewError(ResNotFound, at(0, 0, 4), "x"))
	bag.Add(NewError(ResNotFound, at(0, 0, 4), "x again"))
	bag.Add(NewError(ResAmbiguous, at(0, 0, 4), "different code"))
	bag.Dedup()
	if bag.Len() != 2 {
		t.Fatalf("len after dedup = %d", bag.Len())
	}
}

func TestMergeGrowsLimit(t *testing.T) {
	a := NewBag(1)
	a.Add(NewError(ResNotFound, at(0, 0, 1), "a"))
	b := NewBag(1)
	b.Add(NewError(ResNotFound, at(0, 1, 2), "b"))
	a.Merge(b)
	if a.Len() != 2 {
		t.Fatalf("merged len = %d", a.Len())
	}
}

func TestReportBuilderEmitsWithNotes(t *testing.T) {
	bag := NewBag(4)
	r := BagReporter{Bag: bag}
	ReportError(r, ResAmbiguous, at(0, 3, 7), "ambiguous name `F`").
		WithNote(at(0, 0, 1), "candidate in A").
		WithNote(at(0, 1, 2), "candidate in B").
		Emit()

	if bag.Len() != 1 {
		t.Fatalf("len = %d", bag.Len())
	}
	d := bag.Items()[0]
	if d.Message != "ambiguous name `F`" {
		t.Fatalf("message = %q", d.Message)
	}
	if len(d.Notes) != 2 {
		t.Fatalf("notes = %d", len(d.Notes))
	}
	if !bag.HasErrors() {
		t.Fatal("bag should report errors")
	}
}

func TestCodeString(t *testing.T) {
	if got := ResNotFound.String(); got != "QL3001" {
		t.Fatalf("ResNotFound.String() = %q", got)
	}
}
