// Package parser builds the syntax tree from a token stream.
//
// The grammar is recursive descent with a small Pratt core for binary
// expressions. Parsing never aborts: errors are reported through the
// diag.Reporter and the parser resynchronizes on statement and item
// boundaries, so later phases always receive a tree.
package parser

import (
	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/lexer"
	"quill/internal/source"
	"quill/internal/token"
)

type Parser struct {
	a        *ast.Assigner
	file     *source.File
	toks     []token.Token
	pos      int
	last     token.Token
	reporter diag.Reporter
}

func newParser(a *ast.Assigner, file *source.File, toks []token.Token, reporter diag.Reporter) *Parser {
	return &Parser{a: a, file: file, toks: toks, reporter: reporter}
}

// ParseFile parses one source file. A file is either a sequence of
// namespace declarations, or top-level items and statements that form an
// implicit namespace named after the file stem, with the statements
// collected as the entry sequence.
func ParseFile(a *ast.Assigner, file *source.File, reporter diag.Reporter) *ast.Package {
	toks := lexer.Tokenize(file, reporter)
	p := newParser(a, file, toks, reporter)
	return p.parsePackage()
}

/// ParseFragment parses one interactive fragment: items and statements mixed
// at top level. Semantics match ParseFile's implicit-namespace form.
func ParseFragment(a *ast.Assigner, file *source.File, reporter diag.Reporter) *ast.Package {
	return ParseFile(a, file, reporter)
}

func (p *Parser) parsePackage() *ast.Package {
	pkg := &ast.Package{EntryFile: p.file.ID}
	var implicit *ast.Namespace
	for !p.at(token.EOF) {
		switch {
		case p.at(token.KwNamespace):
			pkg.Namespaces = append(pkg.Namespaces, p.parseNamespace())
		case p.atItemStart():
			if implicit = p.ensureImplicit(pkg, implicit); implicit != nil {
				if it := p.parseItem(); it != nil {
					implicit.Items = append(implicit.Items, it)
				}
			}
		default:
			implicit = p.ensureImplicit(pkg, implicit)
			pkg.Entry = append(pkg.Entry, p.parseStmt())
		}
	}
	return pkg
}

func (p *Parser) ensureImplicit(pkg *ast.Package, cur *ast.Namespace) *ast.Namespace {
	if cur != nil {
		return cur
	}
	for _, ns := range pkg.Namespaces {
		if ns.NameString() == p.file.Stem() {
			pkg.EntryNS = ns
			return ns
		}
	}
	sp := p.cur().Span
	ns := &ast.Namespace{
		Base: ast.MakeBase(p.a, sp),
		Name: []*ast.Ident{ast.NewIdent(p.a, sp, p.file.Stem())},
	}
	pkg.Namespaces = append(pkg.Namespaces, ns)
	pkg.EntryNS = ns
	return ns
}

func (p *Parser) parseNamespace() *ast.Namespace {
	start := p.expect(token.KwNamespace).Span
	name := p.parseDottedName()
	p.expect(token.LBrace)
	ns := &ast.Namespace{Name: name}
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		if it := p.parseItem(); it != nil {
			ns.Items = append(ns.Items, it)
		}
	}
	p.expect(token.RBrace)
	ns.Base = ast.MakeBase(p.a, start.Cover(p.last.Span))
	return ns
}

func (p *Parser) atItemStart() bool {
	switch p.cur().Kind {
	case token.KwOpen, token.KwImport, token.KwExport, token.KwFunction,
		token.KwOperation, token.KwNewtype, token.At:
		return true
	case token.Ident:
		if p.cur().Text != "internal" {
			return false
		}
		switch p.peekKind(1) {
		case token.KwFunction, token.KwOperation, token.KwNewtype:
			return true
		}
	}
	return false
}

func (p *Parser) parseItem() *ast.Item {
	start := p.cur().Span

	var attrs []*ast.Attr
	for p.at(token.At) {
		attrs = append(attrs, p.parseAttr())
	}

	vis := ast.VisPublic
	if p.at(token.Ident) && p.cur().Text == "internal" {
		p.advance()
		vis = ast.VisInternal
	}

	var kind ast.ItemKind
	switch p.cur().Kind {
	case token.KwOpen:
		kind = p.parseOpen()
	case token.KwImport, token.KwExport:
		kind = p.parseImportExport()
	case token.KwFunction, token.KwOperation:
		kind = p.parseCallable()
	case token.KwNewtype:
		kind = p.parseNewtype()
	default:
		p.errorHere(diag.SynUnexpectedToken, "expected a declaration, found "+p.cur().Kind.String())
		p.syncItem()
		return nil
	}
	return &ast.Item{
		Base:       ast.MakeBase(p.a, start.Cover(p.last.Span)),
		Attrs:      attrs,
		Visibility: vis,
		Kind:       kind,
	}
}

func (p *Parser) parseAttr() *ast.Attr {
	start := p.expect(token.At).Span
	name := p.parseIdent()
	argStart := p.cur().Span
	p.expect(token.LParen)
	var items []ast.Expr
	for !p.at(token.RParen) && !p.at(token.EOF) {
		items = append(items, p.parseExpr())
		if !p.eat(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	arg := &ast.TupleExpr{Base: ast.MakeBase(p.a, argStart.Cover(p.last.Span)), Items: items}
	return &ast.Attr{
		Base: ast.MakeBase(p.a, start.Cover(p.last.Span)),
		Name: name,
		Arg:  arg,
	}
}

func (p *Parser) parseOpen() *ast.OpenItem {
	p.expect(token.KwOpen)
	name := p.parsePath()
	var alias *ast.Ident
	if p.eat(token.KwAs) {
		alias = p.parseAliasName()
	}
	p.expect(token.Semi)
	return &ast.OpenItem{Name: name, Alias: alias}
}

// parseAliasName parses an alias after `as`. Dotted aliases are rejected;
// the final segment is kept so resolution can continue.
func (p *Parser) parseAliasName() *ast.Ident {
	path := p.parsePath()
	if len(path.Segments) > 1 {
		diag.ReportError(p.reporter, diag.ResDotIdentAlias, path.Pos(),
			"aliases must be simple names, found `"+path.String()+"`").Emit()
	}
	return path.Name()
}

func (p *Parser) parseImportExport() *ast.ImportExportItem {
	export := p.at(token.KwExport)
	p.advance()
	item := &ast.ImportExportItem{Export: export}
	for {
		start := p.cur().Span
		path, glob := p.parseMaybeGlobPath()
		var alias *ast.Ident
		if p.eat(token.KwAs) {
			alias = p.parseAliasName()
		}
		item.Entries = append(item.Entries, &ast.ImportExportEntry{
			Base:  ast.MakeBase(p.a, start.Cover(p.last.Span)),
			Path:  path,
			Alias: alias,
			Glob:  glob,
		})
		if !p.eat(token.Comma) {
			break
		}
		if p.at(token.Semi) {
			break
		}
	}
	p.expect(token.Semi)
	return item
}

func (p *Parser) parseCallable() *ast.CallableDecl {
	kind := ast.CallableFunction
	if p.at(token.KwOperation) {
		kind = ast.CallableOperation
	}
	p.advance()

	decl := &ast.CallableDecl{Kind: kind, Name: p.parseIdent()}
	decl.Params = p.parsePat()
	p.expect(token.Colon)
	decl.Output = p.parseType()
	if p.eat(token.KwIs) {
		decl.Functors = p.parseFunctorSet()
	}

	p.expect(token.LBrace)
	if p.atSpecStart() {
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			if spec := p.parseSpec(); spec != nil {
				decl.Specs = append(decl.Specs, spec)
			}
		}
	} else {
		start := p.cur().Span
		var stmts []ast.Stmt
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			stmts = append(stmts, p.parseStmt())
		}
		block := &ast.Block{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Stmts: stmts}
		decl.Specs = []*ast.SpecDecl{{
			Base:  ast.MakeBase(p.a, block.Pos()),
			Kind:  ast.SpecBody,
			Gen:   ast.GenManual,
			Block: block,
		}}
	}
	p.expect(token.RBrace)
	return decl
}

func (p *Parser) atSpecStart() bool {
	switch p.cur().Kind {
	case token.KwBody, token.KwAdjoint, token.KwControlled:
		return true
	}
	return false
}

func (p *Parser) parseSpec() *ast.SpecDecl {
	start := p.cur().Span
	var kind ast.SpecKind
	switch p.cur().Kind {
	case token.KwBody:
		p.advance()
		kind = ast.SpecBody
	case token.KwAdjoint:
		p.advance()
		kind = ast.SpecAdj
	case token.KwControlled:
		p.advance()
		kind = ast.SpecCtl
		if p.eat(token.KwAdjoint) {
			kind = ast.SpecCtlAdj
		}
	default:
		p.errorHere(diag.SynBadSpecialization, "expected `body`, `adjoint`, or `controlled`")
		p.syncItem()
		return nil
	}

	spec := &ast.SpecDecl{Kind: kind}
	switch p.cur().Kind {
	case token.KwSelf:
		p.advance()
		spec.Gen = ast.GenSelf
		p.expect(token.Semi)
	case token.KwInvert:
		p.advance()
		spec.Gen = ast.GenInvert
		p.expect(token.Semi)
	case token.KwDistribute:
		p.advance()
		spec.Gen = ast.GenDistribute
		p.expect(token.Semi)
	case token.KwAuto:
		p.advance()
		spec.Gen = ast.GenAuto
		p.expect(token.Semi)
	case token.KwIntrinsic:
		p.advance()
		spec.Gen = ast.GenIntrinsic
		p.expect(token.Semi)
	default:
		spec.Gen = ast.GenManual
		if p.at(token.LParen) || p.at(token.Ellipsis) {
			spec.Input = p.parseSpecPat()
		}
		spec.Block = p.parseBlock()
	}
	spec.Base = ast.MakeBase(p.a, start.Cover(p.last.Span))
	return spec
}

func (p *Parser) parseNewtype() *ast.NewtypeDecl {
	p.expect(token.KwNewtype)
	name := p.parseIdent()
	p.expect(token.Eq)
	def := p.parseType()
	p.expect(token.Semi)
	return &ast.NewtypeDecl{Name: name, Def: def}
}

// parseFunctorSet parses `Adj`, `Ctl`, `Adj + Ctl`, or a parenthesized
// combination after `is`.
func (p *Parser) parseFunctorSet() ast.FunctorSet {
	if p.eat(token.LParen) {
		set := p.parseFunctorSet()
		p.expect(token.RParen)
		return set
	}
	var set ast.FunctorSet
	for {
		tok := p.cur()
		if tok.Kind != token.Ident {
			p.errorHere(diag.SynBadFunctorExpr, "expected `Adj` or `Ctl`, found "+tok.Kind.String())
			return set
		}
		switch tok.Text {
		case "Adj":
			set |= ast.FunctorSetAdj
		case "Ctl":
			set |= ast.FunctorSetCtl
		default:
			p.errorHere(diag.SynBadFunctorExpr, "unknown characteristic `"+tok.Text+"`")
		}
		p.advance()
		if !p.eat(token.Plus) {
			return set
		}
	}
}

func (p *Parser) parseIdent() *ast.Ident {
	tok := p.cur()
	if tok.Kind != token.Ident {
		p.errorHere(diag.SynExpectIdentifier, "expected an identifier, found "+tok.Kind.String())
		return ast.NewIdent(p.a, tok.Span, "")
	}
	p.advance()
	return ast.NewIdent(p.a, tok.Span, tok.Text)
}

func (p *Parser) parseDottedName() []*ast.Ident {
	name := []*ast.Ident{p.parseIdent()}
	for p.at(token.Dot) {
		p.advance()
		name = append(name, p.parseIdent())
	}
	return name
}

func (p *Parser) parsePath() *ast.Path {
	start := p.cur().Span
	segs := p.parseDottedName()
	return &ast.Path{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Segments: segs}
}

// parseMaybeGlobPath parses a dotted path that may end in `.*`.
func (p *Parser) parseMaybeGlobPath() (*ast.Path, bool) {
	start := p.cur().Span
	segs := []*ast.Ident{p.parseIdent()}
	glob := false
	for p.at(token.Dot) {
		p.advance()
		if p.at(token.Star) {
			p.advance()
			glob = true
			break
		}
		segs = append(segs, p.parseIdent())
	}
	return &ast.Path{Base: ast.MakeBase(p.a, start.Cover(p.last.Span)), Segments: segs}, glob
}

// Token cursor helpers.

func (p *Parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos]
}

func (p *Parser) peekKind(n int) token.Kind {
	if p.pos+n >= len(p.toks) {
		return token.EOF
	}
	return p.toks[p.pos+n].Kind
}

func (p *Parser) advance() token.Token {
	tok := p.cur()
	p.last = tok
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) at(k token.Kind) bool {
	return p.cur().Kind == k
}

func (p *Parser) eat(k token.Kind) bool {
	if p.at(k) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(k token.Kind) token.Token {
	if p.at(k) {
		return p.advance()
	}
	p.errorHere(diag.SynUnexpectedToken, "expected "+k.String()+", found "+p.cur().Kind.String())
	return token.Token{Kind: k, Span: p.cur().Span}
}

func (p *Parser) errorHere(code diag.Code, msg string) {
	diag.ReportError(p.reporter, code, p.cur().Span, msg).Emit()
}

// syncItem skips tokens until a plausible item boundary.
func (p *Parser) syncItem() {
	for !p.at(token.EOF) {
		switch p.cur().Kind {
		case token.KwNamespace, token.KwOpen, token.KwImport, token.KwExport,
			token.KwFunction, token.KwOperation, token.KwNewtype, token.RBrace:
			return
		case token.Semi:
			p.advance()
			return
		}
		p.advance()
	}
}
