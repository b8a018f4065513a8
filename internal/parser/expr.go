package parser

import (
	"math/big"
	"strconv"
	"strings"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/lexer"
	"quill/internal/token"
)

// Expression precedence, loosest first: lambda, copy-update `w/`, range,
// ternary `? |`, then the binary operator ladder, unary, postfix, primary.

func (p *Parser) parseExpr() ast.Expr {
	expr := p.parseUpdate()
	if p.at(token.Arrow) || p.at(token.FatArrow) {
		kind := ast.CallableFunction
		if p.at(token.FatArrow) {
			kind = ast.CallableOperation
		}
		p.advance()
		params := p.exprToPat(expr)
		body := p.parseExpr()
		return &ast.LambdaExpr{
			Base:   ast.MakeBase(p.a, expr.Pos().Cover(p.last.Span)),
			Kind:   kind,
			Params: params,
			Body:   body,
		}
	}
	return expr
}

func (p *Parser) parseUpdate() ast.Expr {
	expr := p.parseRange()
	for p.at(token.WSlash) {
		p.advance()
		index := p.parseRange()
		p.expect(token.LArrow)
		value := p.parseRange()
		expr = &ast.UpdateExpr{
			Base:   ast.MakeBase(p.a, expr.Pos().Cover(p.last.Span)),
			Record: expr,
			Index:  index,
			Value:  value,
		}
	}
	return expr
}

// parseRange handles `a..b`, `a..s..b`, and the open forms `a...`, `...b`,
// `...s..b`, and `...`.
func (p *Parser) parseRange() ast.Expr {
	if p.at(token.Ellipsis) {
		start := p.advance().Span
		r := &ast.RangeExpr{}
		if p.startsExpr() {
			first := p.parseTernary()
			if p.eat(token.DotDot) {
				r.Step = first
				r.End = p.parseTernary()
			} else {
				r.End = first
			}
		}
		r.Base = ast.MakeBase(p.a, start.Cover(p.last.Span))
		return r
	}

	first := p.parseTernary()
	switch {
	case p.at(token.DotDot):
		p.advance()
		if p.eat(token.Ellipsis) {
			return &ast.RangeExpr{
				Base:  ast.MakeBase(p.a, first.Pos().Cover(p.last.Span)),
				Start: first,
			}
		}
		second := p.parseTernary()
		r := &ast.RangeExpr{Start: first, End: second}
		if p.eat(token.DotDot) {
			r.Step = second
			r.End = p.parseTernary()
		} else if p.eat(token.Ellipsis) {
			r.Step = second
			r.End = nil
		}
		r.Base = ast.MakeBase(p.a, first.Pos().Cover(p.last.Span))
		return r

	case p.at(token.Ellipsis):
		p.advance()
		return &ast.RangeExpr{
			Base:  ast.MakeBase(p.a, first.Pos().Cover(p.last.Span)),
			Start: first,
		}
	}
	return first
}

func (p *Parser) parseTernary() ast.Expr {
	cond := p.parseBinary(1)
	if !p.at(token.Question) {
		return cond
	}
	p.advance()
	then := p.parseBinary(1)
	p.expect(token.Bar)
	els := p.parseTernary()
	return &ast.TernExpr{
		Base: ast.MakeBase(p.a, cond.Pos().Cover(p.last.Span)),
		Cond: cond,
		Then: then,
		Else: els,
	}
}

// binPrec returns the operator and binding power of the current token as an
// infix operator, or ok=false.
func binPrec(k token.Kind) (op ast.BinOp, prec int, rightAssoc, ok bool) {
	switch k {
	case token.KwOr:
		return ast.BinOrL, 1, false, true
	case token.KwAnd:
		return ast.BinAndL, 2, false, true
	case token.EqEq:
		return ast.BinEq, 3, false, true
	case token.Ne:
		return ast.BinNe, 3, false, true
	case token.Lt:
		return ast.BinLt, 4, false, true
	case token.Le:
		return ast.BinLe, 4, false, true
	case token.Gt:
		return ast.BinGt, 4, false, true
	case token.Ge:
		return ast.BinGe, 4, false, true
	case token.Bar3:
		return ast.BinOrB, 5, false, true
	case token.Caret3:
		return ast.BinXorB, 6, false, true
	case token.Amp3:
		return ast.BinAndB, 7, false, true
	case token.Shl:
		return ast.BinShl, 8, false, true
	case token.Shr:
		return ast.BinShr, 8, false, true
	case token.Plus:
		return ast.BinAdd, 9, false, true
	case token.Minus:
		return ast.BinSub, 9, false, true
	case token.Star:
		return ast.BinMul, 10, false, true
	case token.Slash:
		return ast.BinDiv, 10, false, true
	case token.Percent:
		return ast.BinMod, 10, false, true
	case token.Caret:
		return ast.BinExp, 11, true, true
	}
	return 0, 0, false, false
}

func (p *Parser) parseBinary(minPrec int) ast.Expr {
	lhs := p.parseUnary()
	for {
		op, prec, right, ok := binPrec(p.cur().Kind)
		if !ok || prec < minPrec {
			return lhs
		}
		p.advance()
		next := prec + 1
		if right {
			next = prec
		}
		rhs := p.parseBinary(next)
		lhs = &ast.BinExpr{
			Base: ast.MakeBase(p.a, lhs.Pos().Cover(rhs.Pos())),
			Op:   op,
			LHS:  lhs,
			RHS:  rhs,
		}
	}
}

func (p *Parser) parseUnary() ast.Expr {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Minus:
		p.advance()
		operand := p.parseUnary()
		return &ast.UnExpr{
			Base:    ast.MakeBase(p.a, start.Cover(operand.Pos())),
			Op:      ast.UnNeg,
			Operand: operand,
		}
	case token.Plus:
		p.advance()
		operand := p.parseUnary()
		return &ast.UnExpr{
			Base:    ast.MakeBase(p.a, start.Cover(operand.Pos())),
			Op:      ast.UnPos,
			Operand: operand,
		}
	case token.KwNot:
		p.advance()
		operand := p.parseUnary()
		return &ast.UnExpr{
			Base:    ast.MakeBase(p.a, start.Cover(operand.Pos())),
			Op:      ast.UnNotL,
			Operand: operand,
		}
	case token.Tilde3:
		p.advance()
		operand := p.parseUnary()
		return &ast.UnExpr{
			Base:    ast.MakeBase(p.a, start.Cover(operand.Pos())),
			Op:      ast.UnNotB,
			Operand: operand,
		}
	case token.Ident:
		// Functor application binds tighter than a call: in
		// `Controlled X(qs, q)` the call applies to `Controlled X`,
		// not the other way around.
		if p.atFunctor() {
			return p.parsePostfixFrom(p.parseFunctorExpr())
		}
	}
	return p.parsePostfix()
}

func (p *Parser) atFunctor() bool {
	if !p.at(token.Ident) {
		return false
	}
	_, ok := functorName(p.cur().Text)
	return ok && p.functorFollows()
}

// parseFunctorExpr parses a stack of functors and the operation they apply
// to: another functor application, or a primary with array indexing. A
// trailing argument list is not part of the operand.
func (p *Parser) parseFunctorExpr() ast.Expr {
	start := p.cur().Span
	f, _ := functorName(p.advance().Text)
	var operand ast.Expr
	if p.atFunctor() {
		operand = p.parseFunctorExpr()
	} else {
		operand = p.parsePrimary()
		for p.at(token.LBracket) {
			p.advance()
			index := p.parseExpr()
			p.expect(token.RBracket)
			operand = &ast.IndexExpr{
				Base:  ast.MakeBase(p.a, operand.Pos().Cover(p.last.Span)),
				Array: operand,
				Index: index,
			}
		}
	}
	return &ast.FunctorExpr{
		Base:    ast.MakeBase(p.a, start.Cover(operand.Pos())),
		Functor: f,
		Operand: operand,
	}
}

func functorName(text string) (ast.Functor, bool) {
	switch text {
	case "Adjoint":
		return ast.FunctorAdj, true
	case "Controlled":
		return ast.FunctorCtl, true
	}
	return 0, false
}

// functorFollows reports whether the token after a functor name can start
// an operation expression, distinguishing `Adjoint X` from an identifier
// that merely spells "Adjoint".
func (p *Parser) functorFollows() bool {
	switch p.peekKind(1) {
	case token.Ident, token.LParen:
		return true
	}
	return false
}

func (p *Parser) parsePostfix() ast.Expr {
	return p.parsePostfixFrom(p.parsePrimary())
}

func (p *Parser) parsePostfixFrom(expr ast.Expr) ast.Expr {
	for {
		switch p.cur().Kind {
		case token.LParen:
			arg := p.parseParenExpr()
			expr = &ast.CallExpr{
				Base:   ast.MakeBase(p.a, expr.Pos().Cover(p.last.Span)),
				Callee: expr,
				Arg:    arg,
			}
		case token.LBracket:
			p.advance()
			index := p.parseExpr()
			p.expect(token.RBracket)
			expr = &ast.IndexExpr{
				Base:  ast.MakeBase(p.a, expr.Pos().Cover(p.last.Span)),
				Array: expr,
				Index: index,
			}
		default:
			return expr
		}
	}
}

// parseParenExpr parses `( ... )`: the unit value, a parenthesized
// expression, or a tuple.
func (p *Parser) parseParenExpr() ast.Expr {
	start := p.expect(token.LParen).Span
	var items []ast.Expr
	tuple := false
	for !p.at(token.RParen) && !p.at(token.EOF) {
		items = append(items, p.parseExpr())
		if !p.eat(token.Comma) {
			break
		}
		tuple = true
	}
	p.expect(token.RParen)
	if len(items) == 1 && !tuple {
		return items[0]
	}
	return &ast.TupleExpr{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Items: items}
}

func (p *Parser) parsePrimary() ast.Expr {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Int:
		tok := p.advance()
		v, err := parseIntText(tok.Text)
		if err != nil {
			diag.ReportError(p.reporter, diag.LexBadNumber, tok.Span,
				"invalid integer literal `"+tok.Text+"`").Emit()
		}
		return &ast.LitExpr{Base: ast.MakeBase(p.a, tok.Span), Kind: ast.LitInt, Int: v}

	case token.BigInt:
		tok := p.advance()
		text := strings.TrimSuffix(strings.ReplaceAll(tok.Text, "_", ""), "L")
		v, ok := new(big.Int).SetString(text, 0)
		if !ok {
			diag.ReportError(p.reporter, diag.LexBadNumber, tok.Span,
				"invalid big integer literal `"+tok.Text+"`").Emit()
			v = big.NewInt(0)
		}
		return &ast.LitExpr{Base: ast.MakeBase(p.a, tok.Span), Kind: ast.LitBigInt, Big: v}

	case token.Double:
		tok := p.advance()
		v, err := strconv.ParseFloat(strings.ReplaceAll(tok.Text, "_", ""), 64)
		if err != nil {
			diag.ReportError(p.reporter, diag.LexBadNumber, tok.Span,
				"invalid double literal `"+tok.Text+"`").Emit()
		}
		return &ast.LitExpr{Base: ast.MakeBase(p.a, tok.Span), Kind: ast.LitDouble, Double: v}

	case token.String:
		tok := p.advance()
		return &ast.LitExpr{
			Base: ast.MakeBase(p.a, tok.Span),
			Kind: ast.LitString,
			Str:  decodeEscapes(tok.Text),
		}

	case token.InterpStr:
		return p.parseInterp(p.advance())

	case token.KwTrue, token.KwFalse:
		tok := p.advance()
		return &ast.LitExpr{
			Base: ast.MakeBase(p.a, tok.Span),
			Kind: ast.LitBool,
			Bool: tok.Kind == token.KwTrue,
		}

	case token.KwZero, token.KwOne:
		tok := p.advance()
		return &ast.LitExpr{
			Base: ast.MakeBase(p.a, tok.Span),
			Kind: ast.LitResult,
			Bool: tok.Kind == token.KwOne,
		}

	case token.KwPauliI, token.KwPauliX, token.KwPauliY, token.KwPauliZ:
		tok := p.advance()
		var pauli ast.Pauli
		switch tok.Kind {
		case token.KwPauliX:
			pauli = ast.PauliX
		case token.KwPauliY:
			pauli = ast.PauliY
		case token.KwPauliZ:
			pauli = ast.PauliZ
		}
		return &ast.LitExpr{Base: ast.MakeBase(p.a, tok.Span), Kind: ast.LitPauli, Pauli: pauli}

	case token.Ident:
		path := p.parsePath()
		return &ast.PathExpr{Base: ast.MakeBase(p.a, path.Pos()), Path: path}

	case token.Underscore:
		// only meaningful as a lambda parameter; exprToPat turns it into
		// a discard
		tok := p.advance()
		path := &ast.Path{
			Base:     ast.MakeBase(p.a, tok.Span),
			Segments: []*ast.Ident{ast.NewIdent(p.a, tok.Span, "_")},
		}
		return &ast.PathExpr{Base: ast.MakeBase(p.a, tok.Span), Path: path}

	case token.LParen:
		return p.parseParenExpr()

	case token.LBracket:
		return p.parseArray()

	case token.KwIf:
		return p.parseIf()

	case token.KwFor:
		p.advance()
		pat := p.parsePat()
		p.expect(token.KwIn)
		iter := p.parseExpr()
		body := p.parseBlock()
		return &ast.ForExpr{
			Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Pat:  pat,
			Iter: iter,
			Body: body,
		}

	case token.KwWhile:
		p.advance()
		cond := p.parseExpr()
		body := p.parseBlock()
		return &ast.WhileExpr{
			Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Cond: cond,
			Body: body,
		}

	case token.KwWithin:
		p.advance()
		within := p.parseBlock()
		p.expect(token.KwApply)
		apply := p.parseBlock()
		return &ast.ConjExpr{
			Base:   ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Within: within,
			Apply:  apply,
		}

	case token.KwReturn:
		p.advance()
		var value ast.Expr
		if p.startsExpr() {
			value = p.parseExpr()
		}
		return &ast.ReturnExpr{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Value: value}

	case token.KwFail:
		p.advance()
		msg := p.parseExpr()
		return &ast.FailExpr{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Msg: msg}

	default:
		p.errorHere(diag.SynExpectExpression, "expected an expression, found "+p.cur().Kind.String())
		p.advance()
		return &ast.TupleExpr{Base: ast.MakeBase(p.a, start)}
	}
}

// parseArray parses `[a, b, c]` and the repeat form `[v, size = n]`.
func (p *Parser) parseArray() ast.Expr {
	start := p.expect(token.LBracket).Span
	if p.eat(token.RBracket) {
		return &ast.ArrayExpr{Base: ast.MakeBase(p.a, start.Cover(p.last.Span))}
	}
	first := p.parseExpr()
	if p.eat(token.Comma) {
		if p.at(token.Ident) && p.cur().Text == "size" && p.peekKind(1) == token.Eq {
			p.advance()
			p.advance()
			size := p.parseExpr()
			p.expect(token.RBracket)
			return &ast.ArrayRepeatExpr{
				Base:  ast.MakeBase(p.a, start.Cover(p.last.Span)),
				Value: first,
				Size:  size,
			}
		}
		items := []ast.Expr{first}
		for !p.at(token.RBracket) && !p.at(token.EOF) {
			items = append(items, p.parseExpr())
			if !p.eat(token.Comma) {
				break
			}
		}
		p.expect(token.RBracket)
		return &ast.ArrayExpr{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Items: items}
	}
	p.expect(token.RBracket)
	return &ast.ArrayExpr{
		Base:  ast.MakeBase(p.a, start.Cover(p.last.Span)),
		Items: []ast.Expr{first},
	}
}

func (p *Parser) parseIf() ast.Expr {
	start := p.expect(token.KwIf).Span
	cond := p.parseExpr()
	then := p.parseBlock()
	var els ast.Expr
	switch {
	case p.at(token.KwElif):
		// rewrite `elif` as `else if`
		p.toks[p.pos].Kind = token.KwIf
		els = p.parseIf()
	case p.eat(token.KwElse):
		if p.at(token.KwIf) {
			els = p.parseIf()
		} else {
			block := p.parseBlock()
			els = &ast.BlockExpr{Base: ast.MakeBase(p.a, block.Pos()), Block: block}
		}
	}
	return &ast.IfExpr{
		Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
		Cond: cond,
		Then: then,
		Else: els,
	}
}

// parseInterp splits an interpolated string token into literal and
// expression parts. Embedded expressions are re-lexed from their byte
// window in the original file, so nested diagnostics point at real source.
func (p *Parser) parseInterp(tok token.Token) ast.Expr {
	// Text excludes the delimiters; the span includes the leading `$"`.
	contentStart := tok.Span.Start + 2
	text := tok.Text

	var parts []ast.InterpPart
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			parts = append(parts, ast.InterpPart{Lit: lit.String()})
			lit.Reset()
		}
	}

	i := 0
	for i < len(text) {
		switch c := text[i]; c {
		case '\\':
			if i+1 < len(text) {
				lit.WriteByte(unescape(text[i+1]))
				i += 2
			} else {
				i++
			}
		case '{':
			flush()
			depth := 1
			j := i + 1
			for j < len(text) && depth > 0 {
				switch text[j] {
				case '{':
					depth++
				case '}':
					depth--
				}
				j++
			}
			if depth > 0 {
				diag.ReportError(p.reporter, diag.LexUnterminatedInterp, tok.Span,
					"unterminated interpolation expression").Emit()
				i = len(text)
				break
			}
			exprStart := contentStart + uint32(i) + 1
			exprEnd := contentStart + uint32(j) - 1
			toks := lexer.TokenizeRange(p.file, exprStart, exprEnd, p.reporter)
			sub := newParser(p.a, p.file, toks, p.reporter)
			parts = append(parts, ast.InterpPart{Expr: sub.parseExpr()})
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return &ast.InterpExpr{Base: ast.MakeBase(p.a, tok.Span), Parts: parts}
}

func parseIntText(text string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(text, "_", ""), 0, 64)
}

func decodeEscapes(text string) string {
	if !strings.ContainsRune(text, '\\') {
		return text
	}
	var b strings.Builder
	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+1 < len(text) {
			b.WriteByte(unescape(text[i+1]))
			i++
			continue
		}
		b.WriteByte(text[i])
	}
	return b.String()
}

func unescape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		// \\, \", \{, \}
		return c
	}
}

// exprToPat reinterprets an already-parsed expression as a lambda
// parameter pattern.
func (p *Parser) exprToPat(expr ast.Expr) *ast.Pat {
	switch e := expr.(type) {
	case *ast.PathExpr:
		if len(e.Path.Segments) == 1 {
			name := e.Path.Segments[0]
			if name.Name == "_" {
				return &ast.Pat{Base: ast.MakeBase(p.a, e.Pos()), Kind: ast.PatDiscard}
			}
			return &ast.Pat{Base: ast.MakeBase(p.a, e.Pos()), Kind: ast.PatBind, Name: name}
		}
	case *ast.TupleExpr:
		items := make([]*ast.Pat, 0, len(e.Items))
		for _, item := range e.Items {
			items = append(items, p.exprToPat(item))
		}
		return &ast.Pat{Base: ast.MakeBase(p.a, e.Pos()), Kind: ast.PatTuple, Items: items}
	}
	diag.ReportError(p.reporter, diag.SynUnexpectedToken, expr.Pos(),
		"invalid lambda parameter").Emit()
	return &ast.Pat{Base: ast.MakeBase(p.a, expr.Pos()), Kind: ast.PatDiscard}
}

// startsExpr reports whether the current token can begin an expression.
func (p *Parser) startsExpr() bool {
	switch p.cur().Kind {
	case token.Ident, token.Int, token.BigInt, token.Double, token.String,
		token.InterpStr, token.LParen, token.LBracket, token.Minus,
		token.Plus, token.Underscore, token.Tilde3,
		token.KwNot, token.KwTrue, token.KwFalse, token.KwZero, token.KwOne,
		token.KwPauliI, token.KwPauliX, token.KwPauliY, token.KwPauliZ,
		token.KwIf, token.KwFor, token.KwWhile, token.KwWithin,
		token.KwReturn, token.KwFail:
		return true
	}
	return false
}
