package parser

import (
	"testing"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/source"
)

func parse(t *testing.T, src string) (*ast.Package, *diag.Bag) {
	t.Helper()
	fset := source.NewFileSet()
	file := fset.Get(fset.AddVirtual(0, "test.qs", []byte(src)))
	bag := diag.NewBag(32)
	pkg := ParseFile(ast.NewAssigner(), file, diag.BagReporter{Bag: bag})
	return pkg, bag
}

func parseClean(t *testing.T, src string) *ast.Package {
	t.Helper()
	pkg, bag := parse(t, src)
	if bag.HasErrors() {
		for _, d := range bag.Items() {
			t.Logf("diag: %s %s", d.Code, d.Message)
		}
		t.Fatal("unexpected parse diagnostics")
	}
	return pkg
}

func onlyCallable(t *testing.T, pkg *ast.Package) *ast.CallableDecl {
	t.Helper()
	if len(pkg.Namespaces) != 1 || len(pkg.Namespaces[0].Items) != 1 {
		t.Fatalf("expected one namespace with one item")
	}
	decl, ok := pkg.Namespaces[0].Items[0].Kind.(*ast.CallableDecl)
	if !ok {
		t.Fatalf("item is %T, not a callable", pkg.Namespaces[0].Items[0].Kind)
	}
	return decl
}

func bodyStmts(t *testing.T, decl *ast.CallableDecl) []ast.Stmt {
	t.Helper()
	for _, spec := range decl.Specs {
		if spec.Kind == ast.SpecBody {
			return spec.Block.Stmts
		}
	}
	t.Fatal("callable has no body specialization")
	return nil
}

func TestBodySugarBecomesManualSpec(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    operation Op(q : Qubit) : Unit is Adj + Ctl {
        X(q);
    }
}
`)
	decl := onlyCallable(t, pkg)
	if decl.Kind != ast.CallableOperation {
		t.Fatal("expected an operation")
	}
	if decl.Functors != ast.FunctorSetAdj|ast.FunctorSetCtl {
		t.Fatalf("functors = %v", decl.Functors)
	}
	if len(decl.Specs) != 1 || decl.Specs[0].Kind != ast.SpecBody || decl.Specs[0].Gen != ast.GenManual {
		t.Fatalf("body sugar parsed as %+v", decl.Specs)
	}
}

func TestExplicitSpecializations(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    operation Op(q : Qubit) : Unit is Adj + Ctl {
        body ... {
            X(q);
        }
        adjoint self;
        controlled distribute;
        controlled adjoint (cs, ...) {
            X(q);
        }
    }
}
`)
	decl := onlyCallable(t, pkg)
	want := map[ast.SpecKind]ast.SpecGen{
		ast.SpecBody:   ast.GenManual,
		ast.SpecAdj:    ast.GenSelf,
		ast.SpecCtl:    ast.GenDistribute,
		ast.SpecCtlAdj: ast.GenManual,
	}
	if len(decl.Specs) != len(want) {
		t.Fatalf("expected %d specs, got %d", len(want), len(decl.Specs))
	}
	for _, spec := range decl.Specs {
		if want[spec.Kind] != spec.Gen {
			t.Fatalf("spec %v has gen %v", spec.Kind, spec.Gen)
		}
	}
	for _, spec := range decl.Specs {
		if spec.Kind != ast.SpecCtlAdj {
			continue
		}
		if spec.Input == nil || spec.Input.Kind != ast.PatTuple || len(spec.Input.Items) != 2 {
			t.Fatalf("controlled adjoint input pattern = %+v", spec.Input)
		}
		if spec.Input.Items[1].Kind != ast.PatElided {
			t.Fatal("expected elided inner parameters")
		}
	}
}

func TestIntrinsicBody(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
}
`)
	decl := onlyCallable(t, pkg)
	if len(decl.Specs) != 1 || decl.Specs[0].Gen != ast.GenIntrinsic {
		t.Fatalf("intrinsic body parsed as %+v", decl.Specs)
	}
}

func TestRangeForms(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    function F(xs : Int[]) : Unit {
        let a = 1..10;
        let b = 0..2..8;
        let c = xs[2...];
        let d = xs[...3];
        let e = xs[...];
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))

	a := stmts[0].(*ast.LetStmt).Value.(*ast.RangeExpr)
	if a.Start == nil || a.Step != nil || a.End == nil {
		t.Fatalf("a..b parsed as %+v", a)
	}
	b := stmts[1].(*ast.LetStmt).Value.(*ast.RangeExpr)
	if b.Start == nil || b.Step == nil || b.End == nil {
		t.Fatalf("a..s..b parsed as %+v", b)
	}
	c := stmts[2].(*ast.LetStmt).Value.(*ast.IndexExpr).Index.(*ast.RangeExpr)
	if c.Start == nil || c.End != nil {
		t.Fatalf("open-end range parsed as %+v", c)
	}
	d := stmts[3].(*ast.LetStmt).Value.(*ast.IndexExpr).Index.(*ast.RangeExpr)
	if d.Start != nil || d.End == nil {
		t.Fatalf("open-start range parsed as %+v", d)
	}
	e := stmts[4].(*ast.LetStmt).Value.(*ast.IndexExpr).Index.(*ast.RangeExpr)
	if e.Start != nil || e.Step != nil || e.End != nil {
		t.Fatalf("full-open range parsed as %+v", e)
	}
}

func TestSetStatementForms(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    function F() : Unit {
        mutable x = 1;
        set x = 2;
        set x += 3;
        mutable xs = [1, 2, 3];
        set xs w/= 0 <- 9;
        let ys = xs w/ 1 <- 8;
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))

	if _, ok := stmts[1].(*ast.ExprStmt).Expr.(*ast.AssignExpr); !ok {
		t.Fatalf("set = parsed as %T", stmts[1].(*ast.ExprStmt).Expr)
	}
	plus, ok := stmts[2].(*ast.ExprStmt).Expr.(*ast.AssignOpExpr)
	if !ok || plus.Op != ast.BinAdd {
		t.Fatalf("set += parsed as %T", stmts[2].(*ast.ExprStmt).Expr)
	}
	if _, ok := stmts[4].(*ast.ExprStmt).Expr.(*ast.AssignUpdateExpr); !ok {
		t.Fatalf("set w/= parsed as %T", stmts[4].(*ast.ExprStmt).Expr)
	}
	if _, ok := stmts[5].(*ast.LetStmt).Value.(*ast.UpdateExpr); !ok {
		t.Fatalf("w/ parsed as %T", stmts[5].(*ast.LetStmt).Value)
	}
}

func TestQubitStatements(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    operation Op() : Unit {
        use q = Qubit();
        use qs = Qubit[3];
        use (a, b) = (Qubit(), Qubit[2]);
        borrow w = Qubit() {
            X(w);
        }
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))

	q := stmts[0].(*ast.QubitStmt)
	if q.Borrow || q.Block != nil {
		t.Fatalf("plain use parsed as %+v", q)
	}
	if _, ok := q.Init.(*ast.SingleQubit); !ok {
		t.Fatalf("Qubit() parsed as %T", q.Init)
	}
	if _, ok := stmts[1].(*ast.QubitStmt).Init.(*ast.QubitArray); !ok {
		t.Fatal("Qubit[3] not an array init")
	}
	tup, ok := stmts[2].(*ast.QubitStmt).Init.(*ast.QubitTuple)
	if !ok || len(tup.Items) != 2 {
		t.Fatalf("tuple init parsed as %T", stmts[2].(*ast.QubitStmt).Init)
	}
	br := stmts[3].(*ast.QubitStmt)
	if !br.Borrow || br.Block == nil {
		t.Fatalf("borrow with block parsed as %+v", br)
	}
}

func TestWithinApply(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    operation Op(q : Qubit) : Unit {
        within {
            H(q);
        } apply {
            Z(q);
        }
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))
	conj, ok := stmts[0].(*ast.ExprStmt).Expr.(*ast.ConjExpr)
	if !ok {
		t.Fatalf("within/apply parsed as %T", stmts[0].(*ast.ExprStmt).Expr)
	}
	if len(conj.Within.Stmts) != 1 || len(conj.Apply.Stmts) != 1 {
		t.Fatal("conjugate blocks empty")
	}
}

func TestFunctorApplication(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    operation Op(qs : Qubit[]) : Unit {
        Adjoint Controlled X(qs, qs[0]);
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))
	call, ok := stmts[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if !ok {
		t.Fatalf("functored call parsed as %T", stmts[0].(*ast.ExprStmt).Expr)
	}
	adj, ok := call.Callee.(*ast.FunctorExpr)
	if !ok || adj.Functor != ast.FunctorAdj {
		t.Fatalf("callee = %+v", call.Callee)
	}
	ctl, ok := adj.Operand.(*ast.FunctorExpr)
	if !ok || ctl.Functor != ast.FunctorCtl {
		t.Fatalf("inner functor = %+v", adj.Operand)
	}
	if _, ok := ctl.Operand.(*ast.PathExpr); !ok {
		t.Fatalf("functor operand = %T", ctl.Operand)
	}
	if _, ok := call.Arg.(*ast.TupleExpr); !ok {
		t.Fatalf("call argument = %T", call.Arg)
	}
}

func TestFunctorOnIndexedOperation(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    operation Op(ops : (Qubit => Unit is Adj)[], q : Qubit) : Unit {
        Adjoint ops[0](q);
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))
	call, ok := stmts[0].(*ast.ExprStmt).Expr.(*ast.CallExpr)
	if !ok {
		t.Fatalf("parsed as %T", stmts[0].(*ast.ExprStmt).Expr)
	}
	adj, ok := call.Callee.(*ast.FunctorExpr)
	if !ok || adj.Functor != ast.FunctorAdj {
		t.Fatalf("callee = %+v", call.Callee)
	}
	if _, ok := adj.Operand.(*ast.IndexExpr); !ok {
		t.Fatalf("indexing should bind to the operand, got %T", adj.Operand)
	}
}

func TestLambdaAndInterp(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    function F() : Unit {
        let f = x -> x + 1;
        let op = q => q;
        let msg = $"value = {f(1)}";
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))

	fn := stmts[0].(*ast.LetStmt).Value.(*ast.LambdaExpr)
	if fn.Kind != ast.CallableFunction {
		t.Fatal("-> lambda should be a function")
	}
	op := stmts[1].(*ast.LetStmt).Value.(*ast.LambdaExpr)
	if op.Kind != ast.CallableOperation {
		t.Fatal("=> lambda should be an operation")
	}
	interp := stmts[2].(*ast.LetStmt).Value.(*ast.InterpExpr)
	var exprs int
	for _, part := range interp.Parts {
		if part.Expr != nil {
			exprs++
		}
	}
	if exprs != 1 {
		t.Fatalf("expected one embedded expression, got %d", exprs)
	}
}

func TestBigIntAndPauliLiterals(t *testing.T) {
	pkg := parseClean(t, `
namespace A {
    function F() : Unit {
        let b = 123L;
        let p = PauliX;
        let r = One;
    }
}
`)
	stmts := bodyStmts(t, onlyCallable(t, pkg))

	b := stmts[0].(*ast.LetStmt).Value.(*ast.LitExpr)
	if b.Kind != ast.LitBigInt || b.Big == nil || b.Big.Int64() != 123 {
		t.Fatalf("BigInt literal parsed as %+v", b)
	}
	p := stmts[1].(*ast.LetStmt).Value.(*ast.LitExpr)
	if p.Kind != ast.LitPauli || p.Pauli != ast.PauliX {
		t.Fatalf("Pauli literal parsed as %+v", p)
	}
	r := stmts[2].(*ast.LetStmt).Value.(*ast.LitExpr)
	if r.Kind != ast.LitResult || !r.Bool {
		t.Fatalf("Result literal parsed as %+v", r)
	}
}

func TestErrorRecoveryContinuesParsing(t *testing.T) {
	pkg, bag := parse(t, `
namespace A {
    function Broken( : Int { return 1; }
    function Fine() : Int { return 2; }
}
`)
	if !bag.HasErrors() {
		t.Fatal("expected diagnostics for the broken declaration")
	}
	found := false
	for _, ns := range pkg.Namespaces {
		for _, item := range ns.Items {
			if decl, ok := item.Kind.(*ast.CallableDecl); ok && decl.Name.Name == "Fine" {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("parser did not recover to the next declaration")
	}
}

func TestFragmentMixesStatementsAndItems(t *testing.T) {
	fset := source.NewFileSet()
	file := fset.Get(fset.AddVirtual(0, "line_1", []byte("let x = 1; open A; x + 1")))
	bag := diag.NewBag(32)
	pkg := ParseFragment(ast.NewAssigner(), file, diag.BagReporter{Bag: bag})
	if bag.HasErrors() {
		for _, d := range bag.Items() {
			t.Logf("diag: %s %s", d.Code, d.Message)
		}
		t.Fatal("fragment failed to parse")
	}
	if len(pkg.Entry) != 2 {
		t.Fatalf("expected 2 entry statements, got %d", len(pkg.Entry))
	}
	last, ok := pkg.Entry[1].(*ast.ExprStmt)
	if !ok || last.Semi {
		t.Fatal("trailing expression should be an unterminated expression statement")
	}
	if pkg.EntryNS == nil {
		t.Fatal("fragment should carry an implicit namespace for its items")
	}
}
