package parser

import (
	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/token"
)

func (p *Parser) parseBlock() *ast.Block {
	start := p.cur().Span
	p.expect(token.LBrace)
	var stmts []ast.Stmt
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		stmts = append(stmts, p.parseStmt())
	}
	p.expect(token.RBrace)
	return &ast.Block{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Stmts: stmts}
}

func (p *Parser) parseStmt() ast.Stmt {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.KwLet, token.KwMutable:
		mutable := p.at(token.KwMutable)
		p.advance()
		pat := p.parsePat()
		p.expect(token.Eq)
		value := p.parseExpr()
		p.expect(token.Semi)
		return &ast.LetStmt{
			Base:    ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Mutable: mutable,
			Pat:     pat,
			Value:   value,
		}

	case token.KwSet:
		return p.parseSetStmt()

	case token.KwUse, token.KwBorrow:
		borrow := p.at(token.KwBorrow)
		p.advance()
		pat := p.parsePat()
		p.expect(token.Eq)
		init := p.parseQubitInit()
		var block *ast.Block
		if p.at(token.LBrace) {
			block = p.parseBlock()
		} else {
			p.expect(token.Semi)
		}
		return &ast.QubitStmt{
			Base:   ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Borrow: borrow,
			Pat:    pat,
			Init:   init,
			Block:  block,
		}

	default:
		expr := p.parseExpr()
		semi := p.eat(token.Semi)
		return &ast.ExprStmt{
			Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Expr: expr,
			Semi: semi,
		}
	}
}

// parseSetStmt parses `set lhs = rhs;`, the compound forms
// (`set x += 1;`), and the in-place copy-update `set xs w/= i <- v;`.
func (p *Parser) parseSetStmt() ast.Stmt {
	start := p.expect(token.KwSet).Span
	lhs := p.parseExpr()

	var expr ast.Expr
	switch p.cur().Kind {
	case token.Eq:
		p.advance()
		rhs := p.parseExpr()
		expr = &ast.AssignExpr{
			Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
			LHS:  lhs,
			RHS:  rhs,
		}
	case token.BinOpEq:
		tok := p.advance()
		op, ok := compoundOp(tok.Text)
		if !ok {
			p.errorHere(diag.SynUnexpectedToken, "unsupported compound assignment `"+tok.Text+"`")
		}
		rhs := p.parseExpr()
		expr = &ast.AssignOpExpr{
			Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Op:   op,
			LHS:  lhs,
			RHS:  rhs,
		}
	case token.WSlashEq:
		p.advance()
		index := p.parseRange()
		p.expect(token.LArrow)
		value := p.parseExpr()
		expr = &ast.AssignUpdateExpr{
			Base:   ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Record: lhs,
			Index:  index,
			Value:  value,
		}
	default:
		p.errorHere(diag.SynUnexpectedToken, "expected '=', a compound assignment, or 'w/=' after `set`")
		expr = lhs
	}
	p.expect(token.Semi)
	return &ast.ExprStmt{
		Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
		Expr: expr,
		Semi: true,
	}
}

func compoundOp(text string) (ast.BinOp, bool) {
	if len(text) == 0 {
		return ast.BinAdd, false
	}
	switch text[:len(text)-1] {
	case "+":
		return ast.BinAdd, true
	case "-":
		return ast.BinSub, true
	case "*":
		return ast.BinMul, true
	case "/":
		return ast.BinDiv, true
	case "%":
		return ast.BinMod, true
	case "^":
		return ast.BinExp, true
	}
	return ast.BinAdd, false
}

func (p *Parser) parseQubitInit() ast.QubitInit {
	start := p.cur().Span
	switch {
	case p.at(token.LParen):
		p.advance()
		var items []ast.QubitInit
		for !p.at(token.RParen) && !p.at(token.EOF) {
			items = append(items, p.parseQubitInit())
			if !p.eat(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
		if len(items) == 1 {
			return items[0]
		}
		return &ast.QubitTuple{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Items: items}

	case p.at(token.Ident) && p.cur().Text == "Qubit":
		p.advance()
		if p.eat(token.LBracket) {
			length := p.parseExpr()
			p.expect(token.RBracket)
			return &ast.QubitArray{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Len: length}
		}
		p.expect(token.LParen)
		p.expect(token.RParen)
		return &ast.SingleQubit{Base: ast.MakeBase(p.a, start.Cover(p.last.Span))}

	default:
		p.errorHere(diag.SynUnexpectedToken, "expected `Qubit()`, `Qubit[n]`, or a tuple of initializers")
		p.syncItem()
		return &ast.SingleQubit{Base: ast.MakeBase(p.a, start)}
	}
}

func (p *Parser) parsePat() *ast.Pat {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Underscore:
		p.advance()
		pat := &ast.Pat{Kind: ast.PatDiscard}
		if p.eat(token.Colon) {
			pat.Ty = p.parseType()
		}
		pat.Base = ast.MakeBase(p.a, start.Cover(p.last.Span))
		return pat

	case token.LParen:
		p.advance()
		var items []*ast.Pat
		for !p.at(token.RParen) && !p.at(token.EOF) {
			items = append(items, p.parsePat())
			if !p.eat(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
		if len(items) == 1 {
			return items[0]
		}
		return &ast.Pat{
			Base:  ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Kind:  ast.PatTuple,
			Items: items,
		}

	default:
		name := p.parseIdent()
		pat := &ast.Pat{Kind: ast.PatBind, Name: name}
		if p.eat(token.Colon) {
			pat.Ty = p.parseType()
		}
		pat.Base = ast.MakeBase(p.a, start.Cover(p.last.Span))
		return pat
	}
}

// parseSpecPat parses a specialization parameter list, where `...` stands
// for the callable's declared parameters.
func (p *Parser) parseSpecPat() *ast.Pat {
	start := p.cur().Span
	if p.at(token.Ellipsis) {
		p.advance()
		return &ast.Pat{Base: ast.MakeBase(p.a, start), Kind: ast.PatElided}
	}
	p.expect(token.LParen)
	var items []*ast.Pat
	for !p.at(token.RParen) && !p.at(token.EOF) {
		if p.at(token.Ellipsis) {
			sp := p.advance().Span
			items = append(items, &ast.Pat{Base: ast.MakeBase(p.a, sp), Kind: ast.PatElided})
		} else {
			items = append(items, p.parsePat())
		}
		if !p.eat(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	if len(items) == 1 {
		return items[0]
	}
	return &ast.Pat{
		Base:  ast.MakeBase(p.a, start.Cover(p.last.Span)),
		Kind:  ast.PatTuple,
		Items: items,
	}
}

func (p *Parser) parseType() ast.Ty {
	start := p.cur().Span
	ty := p.parseTypePostfix()
	if p.at(token.Arrow) || p.at(token.FatArrow) {
		kind := ast.CallableFunction
		if p.at(token.FatArrow) {
			kind = ast.CallableOperation
		}
		p.advance()
		output := p.parseType()
		var functors ast.FunctorSet
		if p.eat(token.KwIs) {
			functors = p.parseFunctorSet()
		}
		return &ast.ArrowTy{
			Base:     ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Kind:     kind,
			Input:    ty,
			Output:   output,
			Functors: functors,
		}
	}
	return ty
}

func (p *Parser) parseTypePostfix() ast.Ty {
	ty := p.parseTypeBase()
	for p.at(token.LBracket) && p.peekKind(1) == token.RBracket {
		p.advance()
		p.advance()
		ty = &ast.ArrayTy{
			Base: ast.MakeBase(p.a, ty.Pos().Cover(p.last.Span)),
			Elem: ty,
		}
	}
	return ty
}

func (p *Parser) parseTypeBase() ast.Ty {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.LParen:
		p.advance()
		var items []ast.Ty
		for !p.at(token.RParen) && !p.at(token.EOF) {
			items = append(items, p.parseType())
			if !p.eat(token.Comma) {
				break
			}
		}
		p.expect(token.RParen)
		if len(items) == 1 {
			return items[0]
		}
		return &ast.TupleTy{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Items: items}

	case token.Underscore:
		p.advance()
		return &ast.HoleTy{Base: ast.MakeBase(p.a, start)}

	case token.Ident:
		path := p.parsePath()
		return &ast.PathTy{Base: ast.MakeBase(p.a, path.Pos()), Path: path}

	default:
		p.errorHere(diag.SynExpectType, "expected a type, found "+p.cur().Kind.String())
		p.advance()
		return &ast.HoleTy{Base: ast.MakeBase(p.a, start)}
	}
}
