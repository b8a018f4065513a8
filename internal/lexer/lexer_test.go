package lexer

import (
	"testing"

	"quill/internal/diag"
	"quill/internal/source"
	"quill/internal/token"
)

func lex(t *testing.T, src string) []token.Token {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual(0, "test.qs", []byte(src))
	bag := diag.NewBag(8)
	toks := Tokenize(fs.Get(id), diag.BagReporter{Bag: bag})
	if bag.HasErrors() {
		t.Fatalf("lex errors: %+v", bag.Items())
	}
	return toks
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, 0, len(toks))
	for _, tok := range toks {
		out = append(out, tok.Kind)
	}
	return out
}

func TestRangeVersusDouble(t *testing.T) {
	toks := lex(t, "0..999 1.5 2..4..10")
	want := []token.Kind{
		token.Int, token.DotDot, token.Int,
		token.Double,
		token.Int, token.DotDot, token.Int, token.DotDot, token.Int,
		token.EOF,
	}
	got := kinds(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestKeywordsAndIdents(t *testing.T) {
	toks := lex(t, "operation Foo(q : Qubit) : Unit is Adj")
	if toks[0].Kind != token.KwOperation {
		t.Fatalf("first token = %v", toks[0].Kind)
	}
	if toks[1].Kind != token.Ident || toks[1].Text != "Foo" {
		t.Fatalf("second token = %v %q", toks[1].Kind, toks[1].Text)
	}
}

func TestCopyUpdateOperator(t *testing.T) {
	toks := lex(t, "set arr w/= 0 <- 5; arr w/ 1 <- 2")
	var sawWSlashEq, sawWSlash, sawLArrow bool
	for _, tok := range toks {
		switch tok.Kind {
		case token.WSlashEq:
			sawWSlashEq = true
		case token.WSlash:
			sawWSlash = true
		case token.LArrow:
			sawLArrow = true
		}
	}
	if !sawWSlashEq || !sawWSlash || !sawLArrow {
		t.Fatalf("missing copy-update tokens: w/=%v w/%v <-%v", sawWSlashEq, sawWSlash, sawLArrow)
	}
}

func TestInterpolatedString(t *testing.T) {
	toks := lex(t, `$"a = {a}"`)
	if toks[0].Kind != token.InterpStr {
		t.Fatalf("kind = %v", toks[0].Kind)
	}
	if toks[0].Text != "a = {a}" {
		t.Fatalf("text = %q", toks[0].Text)
	}
}

func TestBigIntSuffix(t *testing.T) {
	toks := lex(t, "42L 42")
	if toks[0].Kind != token.BigInt || toks[0].Text != "42L" {
		t.Fatalf("first = %v %q", toks[0].Kind, toks[0].Text)
	}
	if toks[1].Kind != token.Int {
		t.Fatalf("second = %v", toks[1].Kind)
	}
}

func TestCompoundAssign(t *testing.T) {
	toks := lex(t, "set x += 1;")
	if toks[0].Kind != token.KwSet || toks[2].Kind != token.BinOpEq || toks[2].Text != "+=" {
		t.Fatalf("tokens = %v", kinds(toks))
	}
}

func TestLineComment(t *testing.T) {
	toks := lex(t, "let x = 1; // trailing\nlet y = 2;")
	for _, tok := range toks {
		if tok.Kind == token.Invalid {
			t.Fatalf("invalid token %q", tok.Text)
		}
	}
}
