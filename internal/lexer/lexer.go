// Package lexer turns source bytes into tokens.
package lexer

import (
	"fmt"

	"quill/internal/diag"
	"quill/internal/source"
	"quill/internal/token"
)

type Lexer struct {
	file     *source.File
	off      uint32
	end      uint32
	reporter diag.Reporter
	look     *token.Token
}

func New(file *source.File, reporter diag.Reporter) *Lexer {
	return &Lexer{
		file:     file,
		end:      uint32(len(file.Content)),
		reporter: reporter,
	}
}

// NewRange scans only the [start, end) byte window of file. Spans still
// address the full file, which keeps diagnostics inside string
// interpolations pointing at real source.
func NewRange(file *source.File, start, end uint32, reporter diag.Reporter) *Lexer {
	return &Lexer{
		file:     file,
		off:      start,
		end:      end,
		reporter: reporter,
	}
}

// Tokenize scans the whole file into a token slice ending with EOF.
func Tokenize(file *source.File, reporter diag.Reporter) []token.Token {
	return collect(New(file, reporter))
}

// TokenizeRange scans a byte window of file into tokens ending with EOF.
func TokenizeRange(file *source.File, start, end uint32, reporter diag.Reporter) []token.Token {
	return collect(NewRange(file, start, end, reporter))
}

func collect(lx *Lexer) []token.Token {
	var toks []token.Token
	for {
		tok := lx.Next()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks
		}
	}
}

// Next returns the next significant token. After EOF it keeps returning EOF.
func (lx *Lexer) Next() token.Token {
	if lx.look != nil {
		tok := *lx.look
		lx.look = nil
		return tok
	}

	lx.skipTrivia()
	if lx.eof() {
		return token.Token{Kind: token.EOF, Span: lx.spanFrom(lx.off)}
	}

	ch := lx.peek()
	switch {
	case isIdentStart(ch):
		return lx.scanIdentOrKeyword()
	case isDigit(ch):
		return lx.scanNumber()
	case ch == '"':
		return lx.scanString(false)
	case ch == '$' && lx.peekAt(1) == '"':
		lx.off++
		return lx.scanString(true)
	default:
		return lx.scanOperator()
	}
}

// Peek returns the next token without consuming it.
func (lx *Lexer) Peek() token.Token {
	t := lx.Next()
	lx.look = &t
	return t
}

func (lx *Lexer) eof() bool {
	return lx.off >= lx.end
}

func (lx *Lexer) peek() byte {
	return lx.file.Content[lx.off]
}

func (lx *Lexer) peekAt(n uint32) byte {
	if lx.off+n >= lx.end {
		return 0
	}
	return lx.file.Content[lx.off+n]
}

func (lx *Lexer) spanFrom(start uint32) source.Span {
	return source.Span{File: lx.file.ID, Start: start, End: lx.off}
}

func (lx *Lexer) text(sp source.Span) string {
	return string(lx.file.Content[sp.Start:sp.End])
}

func (lx *Lexer) skipTrivia() {
	for !lx.eof() {
		ch := lx.peek()
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			lx.off++
		case ch == '/' && lx.peekAt(1) == '/':
			for !lx.eof() && lx.peek() != '\n' {
				lx.off++
			}
		default:
			return
		}
	}
}

func (lx *Lexer) scanIdentOrKeyword() token.Token {
	start := lx.off
	for !lx.eof() && isIdentContinue(lx.peek()) {
		lx.off++
	}
	sp := lx.spanFrom(start)
	text := lx.text(sp)

	// "w/" and "w/=" are copy-update operators, not an identifier.
	if text == "w" && !lx.eof() && lx.peek() == '/' {
		lx.off++
		if !lx.eof() && lx.peek() == '=' {
			lx.off++
			return token.Token{Kind: token.WSlashEq, Span: lx.spanFrom(start), Text: "w/="}
		}
		return token.Token{Kind: token.WSlash, Span: lx.spanFrom(start), Text: "w/"}
	}

	if kw, ok := token.LookupKeyword(text); ok {
		return token.Token{Kind: kw, Span: sp, Text: text}
	}
	if text == "_" {
		return token.Token{Kind: token.Underscore, Span: sp, Text: text}
	}
	return token.Token{Kind: token.Ident, Span: sp, Text: text}
}

func (lx *Lexer) scanNumber() token.Token {
	start := lx.off

	if lx.peek() == '0' && (lx.peekAt(1) == 'x' || lx.peekAt(1) == 'b' || lx.peekAt(1) == 'o') {
		lx.off += 2
		for !lx.eof() && (isHexDigit(lx.peek()) || lx.peek() == '_') {
			lx.off++
		}
		return lx.finishInt(start)
	}

	for !lx.eof() && (isDigit(lx.peek()) || lx.peek() == '_') {
		lx.off++
	}

	isDouble := false
	// A '.' continues the number only when followed by a digit; ".." is a
	// range operator.
	if !lx.eof() && lx.peek() == '.' && isDigit(lx.peekAt(1)) {
		isDouble = true
		lx.off++
		for !lx.eof() && isDigit(lx.peek()) {
			lx.off++
		}
	}
	if !lx.eof() && (lx.peek() == 'e' || lx.peek() == 'E') {
		next := lx.peekAt(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(lx.peekAt(2))) {
			isDouble = true
			lx.off++
			if lx.peek() == '+' || lx.peek() == '-' {
				lx.off++
			}
			for !lx.eof() && isDigit(lx.peek()) {
				lx.off++
			}
		}
	}

	if isDouble {
		sp := lx.spanFrom(start)
		return token.Token{Kind: token.Double, Span: sp, Text: lx.text(sp)}
	}
	return lx.finishInt(start)
}

func (lx *Lexer) finishInt(start uint32) token.Token {
	if !lx.eof() && lx.peek() == 'L' {
		lx.off++
		sp := lx.spanFrom(start)
		return token.Token{Kind: token.BigInt, Span: sp, Text: lx.text(sp)}
	}
	sp := lx.spanFrom(start)
	return token.Token{Kind: token.Int, Span: sp, Text: lx.text(sp)}
}

// scanString scans a plain or interpolated string. The returned Text is the
// raw content between the quotes; escape decoding and interpolation
// splitting happen in the parser.
func (lx *Lexer) scanString(interp bool) token.Token {
	start := lx.off
	lx.off++ // opening quote
	depth := 0
	for !lx.eof() {
		ch := lx.peek()
		switch {
		case ch == '\\':
			lx.off += 2
			continue
		case interp && ch == '{':
			depth++
		case interp && ch == '}' && depth > 0:
			depth--
		case ch == '"' && depth == 0:
			lx.off++
			sp := lx.spanFrom(start)
			kind := token.String
			if interp {
				kind = token.InterpStr
				// include the leading '$' in the span
				sp.Start--
			}
			return token.Token{Kind: kind, Span: sp, Text: lx.text(source.Span{File: sp.File, Start: start + 1, End: sp.End - 1})}
		}
		lx.off++
	}
	sp := lx.spanFrom(start)
	diag.ReportError(lx.reporter, diag.LexUnterminatedString, sp, "unterminated string literal").Emit()
	return token.Token{Kind: token.String, Span: sp, Text: lx.text(sp)}
}

func (lx *Lexer) scanOperator() token.Token {
	start := lx.off
	ch := lx.peek()
	lx.off++

	mk := func(kind token.Kind) token.Token {
		sp := lx.spanFrom(start)
		return token.Token{Kind: kind, Span: sp, Text: lx.text(sp)}
	}

	two := lx.peekByte()
	switch ch {
	case '(':
		return mk(token.LParen)
	case ')':
		return mk(token.RParen)
	case '[':
		return mk(token.LBracket)
	case ']':
		return mk(token.RBracket)
	case '{':
		return mk(token.LBrace)
	case '}':
		return mk(token.RBrace)
	case ',':
		return mk(token.Comma)
	case ':':
		return mk(token.Colon)
	case ';':
		return mk(token.Semi)
	case '@':
		return mk(token.At)
	case '?':
		return mk(token.Question)
	case '.':
		if two == '.' {
			lx.off++
			if lx.peekByte() == '.' {
				lx.off++
				return mk(token.Ellipsis)
			}
			return mk(token.DotDot)
		}
		return mk(token.Dot)
	case '-':
		switch two {
		case '>':
			lx.off++
			return mk(token.Arrow)
		case '=':
			lx.off++
			return mk(token.BinOpEq)
		}
		return mk(token.Minus)
	case '=':
		switch two {
		case '=':
			lx.off++
			return mk(token.EqEq)
		case '>':
			lx.off++
			return mk(token.FatArrow)
		}
		return mk(token.Eq)
	case '!':
		if two == '=' {
			lx.off++
			return mk(token.Ne)
		}
		return mk(token.Bang)
	case '<':
		switch two {
		case '=':
			lx.off++
			return mk(token.Le)
		case '-':
			lx.off++
			return mk(token.LArrow)
		case '<':
			if lx.peekAt(1) == '<' {
				lx.off += 2
				return mk(token.Shl)
			}
		}
		return mk(token.Lt)
	case '>':
		switch two {
		case '=':
			lx.off++
			return mk(token.Ge)
		case '>':
			if lx.peekAt(1) == '>' {
				lx.off += 2
				return mk(token.Shr)
			}
		}
		return mk(token.Gt)
	case '+':
		if two == '=' {
			lx.off++
			return mk(token.BinOpEq)
		}
		return mk(token.Plus)
	case '*':
		if two == '=' {
			lx.off++
			return mk(token.BinOpEq)
		}
		return mk(token.Star)
	case '/':
		if two == '=' {
			lx.off++
			return mk(token.BinOpEq)
		}
		return mk(token.Slash)
	case '%':
		if two == '=' {
			lx.off++
			return mk(token.BinOpEq)
		}
		return mk(token.Percent)
	case '^':
		if two == '^' && lx.peekAt(1) == '^' {
			lx.off += 2
			return mk(token.Caret3)
		}
		if two == '=' {
			lx.off++
			return mk(token.BinOpEq)
		}
		return mk(token.Caret)
	case '&':
		if two == '&' && lx.peekAt(1) == '&' {
			lx.off += 2
			return mk(token.Amp3)
		}
	case '|':
		if two == '|' && lx.peekAt(1) == '|' {
			lx.off += 2
			return mk(token.Bar3)
		}
		return mk(token.Bar)
	case '~':
		if two == '~' && lx.peekAt(1) == '~' {
			lx.off += 2
			return mk(token.Tilde3)
		}
	}

	sp := lx.spanFrom(start)
	diag.ReportError(lx.reporter, diag.LexUnknownChar, sp, fmt.Sprintf("unexpected character %q", ch)).Emit()
	return token.Token{Kind: token.Invalid, Span: sp, Text: lx.text(sp)}
}

func (lx *Lexer) peekByte() byte {
	if lx.eof() {
		return 0
	}
	return lx.peek()
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentContinue(b byte) bool {
	return isIdentStart(b) || isDigit(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
