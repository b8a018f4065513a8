package symbols

import (
	"fmt"
	"testing"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/parser"
	"quill/internal/source"
	"quill/internal/target"
)

// resolve compiles the sources as one package and runs full resolution.
func resolve(t *testing.T, caps target.CapabilityFlags, srcs ...string) (*GlobalTable, *Resolver, *diag.Bag) {
	t.Helper()
	fset := source.NewFileSet()
	a := ast.NewAssigner()
	bag := diag.NewBag(64)
	reporter := diag.BagReporter{Bag: bag}

	var pkgs []*ast.Package
	for i, src := range srcs {
		file := fset.Get(fset.AddVirtual(0, fmt.Sprintf("%d.qs", i+1), []byte(src)))
		pkgs = append(pkgs, parser.ParseFile(a, file, reporter))
	}
	if bag.HasErrors() {
		for _, d := range bag.Items() {
			t.Logf("parse diag: %s", d.Message)
		}
		t.Fatal("sources failed to parse")
	}

	table := NewGlobalTable(NewNamespaceTree())
	for _, pkg := range pkgs {
		table.AddPackage(0, pkg, caps, reporter)
	}
	res := NewResolver(table, reporter)
	for _, pkg := range pkgs {
		res.AddPackage(pkg)
	}
	for _, pkg := range pkgs {
		res.ResolvePackage(0, pkg)
	}
	return table, res, bag
}

func hasCode(bag *diag.Bag, code diag.Code) bool {
	for _, d := range bag.Items() {
		if d.Code == code {
			return true
		}
	}
	return false
}

func wantClean(t *testing.T, bag *diag.Bag) {
	t.Helper()
	if !bag.HasErrors() {
		return
	}
	for _, d := range bag.Items() {
		t.Logf("diag: %s %s", d.Code, d.Message)
	}
	t.Fatal("unexpected diagnostics")
}

func TestDuplicateDeclarationFirstWins(t *testing.T) {
	table, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { return 1; }
    function F() : Int { return 2; }
}
`)
	if !hasCode(bag, diag.ResDuplicate) {
		t.Fatal("expected a duplicate diagnostic")
	}
	if table.Len() != 1 {
		t.Fatalf("expected the first declaration to win, table has %d items", table.Len())
	}
}

func TestDuplicateIntrinsicAcrossNamespaces(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { body intrinsic; }
}
namespace B {
    function F() : Int { body intrinsic; }
}
`)
	if !hasCode(bag, diag.ResDuplicateIntrinsic) {
		t.Fatal("expected a duplicate intrinsic diagnostic")
	}
}

func TestAmbiguousAcrossOpens(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { return 1; }
}
namespace B {
    function F() : Int { return 2; }
}
namespace C {
    open A;
    open B;
    function G() : Int { return F(); }
}
`)
	if !hasCode(bag, diag.ResAmbiguous) {
		t.Fatal("expected an ambiguity diagnostic")
	}
	for _, d := range bag.Items() {
		if d.Code == diag.ResAmbiguous && len(d.Notes) != 2 {
			t.Fatalf("ambiguity should note both opens, got %d notes", len(d.Notes))
		}
	}
}

func TestOpensAgreeingOnOneItemAreNotAmbiguous(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { return 1; }
}
namespace B {
    export A.F;
}
namespace C {
    open A;
    open B;
    function G() : Int { return F(); }
}
`)
	wantClean(t, bag)
}

func TestGlobExportRejected(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { return 1; }
}
namespace B {
    export A.*;
}
namespace C {
    open B;
    function G() : Int { return 0; }
}
`)
	if !hasCode(bag, diag.ResGlobExportNotSupported) {
		t.Fatal("expected a glob export diagnostic")
	}
}

func TestReExportChainResolves(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { return 1; }
}
namespace B {
    export A.F;
}
namespace C {
    function G() : Int { return B.F(); }
}
`)
	wantClean(t, bag)
}

func TestMutualExportsTerminate(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    export B.G;
    function F() : Int { return 1; }
}
namespace B {
    export A.F;
    function G() : Int { return 2; }
}
namespace C {
    function H() : Int { return A.G() + B.F(); }
}
`)
	wantClean(t, bag)
}

func TestConfigDroppedItemReportsNotAvailable(t *testing.T) {
	table, _, bag := resolve(t, target.Base, `
namespace A {
    @Config(IntegerComputations)
    function F() : Int { return 1; }
}
namespace B {
    open A;
    function G() : Int { return F(); }
}
`)
	if !hasCode(bag, diag.ResNotAvailable) {
		for _, d := range bag.Items() {
			t.Logf("diag: %s %s", d.Code, d.Message)
		}
		t.Fatal("expected NotAvailable for the dropped item")
	}
	if hasCode(bag, diag.ResNotFound) {
		t.Fatal("dropped item must not degrade to NotFound")
	}
	nsA, ok := table.Tree.Find("A")
	if !ok {
		t.Fatal("namespace A missing from tree")
	}
	if _, dropped := table.Dropped(nsA, "F"); !dropped {
		t.Fatal("item not recorded as dropped")
	}
}

func TestConfigSatisfiedItemIsKept(t *testing.T) {
	_, _, bag := resolve(t, target.AdaptiveRI, `
namespace A {
    @Config(IntegerComputations)
    function F() : Int { return 1; }
}
namespace B {
    function G() : Int { return A.F(); }
}
`)
	wantClean(t, bag)
}

func TestDuplicateBindingInOnePattern(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F(x : Int, x : Int) : Int { return x; }
}
`)
	if !hasCode(bag, diag.ResDuplicateBinding) {
		t.Fatal("expected a duplicate binding diagnostic")
	}
}

func TestImportShadowsOpen(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { return 1; }
}
namespace B {
    function F() : Int { return 2; }
}
namespace C {
    open A;
    import B.F;
    function G() : Int { return F(); }
}
`)
	// The import decides; an implementation that fell through to the
	// opens would report A/B as ambiguous here.
	wantClean(t, bag)
}

func TestImportGlobActsAsScopedOpen(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function F() : Int { return 1; }
}
namespace C {
    import A.*;
    function G() : Int { return F(); }
}
`)
	wantClean(t, bag)
}

func TestAliasedOpenQualifiesNames(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace Very.Long.Name {
    function F() : Int { return 1; }
}
namespace C {
    open Very.Long.Name as V;
    function G() : Int { return V.F(); }
}
`)
	wantClean(t, bag)
}

func TestUnresolvedNameIsReportedOnce(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    function G() : Int { return Missing(); }
}
`)
	if !hasCode(bag, diag.ResNotFound) {
		t.Fatal("expected NotFound")
	}
	count := 0
	for _, d := range bag.Items() {
		if d.Code == diag.ResNotFound {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one NotFound, got %d", count)
	}
}

func TestEntryPointsFilterByPackage(t *testing.T) {
	table, _, bag := resolve(t, target.Unrestricted, `
namespace A {
    @EntryPoint()
    operation Main() : Unit {}
}
`)
	wantClean(t, bag)
	if got := table.EntryPoints(0); len(got) != 1 {
		t.Fatalf("expected one entry point, got %d", len(got))
	}
	if got := table.EntryPoints(1); len(got) != 0 {
		t.Fatalf("expected no entry points in package 1, got %d", len(got))
	}
}

func TestNamespaceTreeInsertIdempotent(t *testing.T) {
	tree := NewNamespaceTree()
	a := tree.Insert([]string{"Foo", "Bar"})
	b := tree.Insert([]string{"Foo", "Bar"})
	if a != b {
		t.Fatalf("re-insert minted a new id: %d vs %d", a, b)
	}
	foo, ok := tree.Find("Foo")
	if !ok {
		t.Fatal("intermediate namespace missing")
	}
	if !tree.IsDescendantOrSelf(a, foo) {
		t.Fatal("Foo.Bar should descend from Foo")
	}
	if tree.IsDescendantOrSelf(foo, a) {
		t.Fatal("Foo does not descend from Foo.Bar")
	}
	if tree.Path(a) != "Foo.Bar" {
		t.Fatalf("path = %q", tree.Path(a))
	}
}

func TestPreludeCoversMeasurement(t *testing.T) {
	_, _, bag := resolve(t, target.Unrestricted, `
namespace Microsoft.Quantum.Measurement {
    function MResetZ() : Int { return 0; }
}
namespace App {
    function G() : Int { return MResetZ(); }
}
`)
	wantClean(t, bag)
}

func TestFragmentRegistersImplicitNamespace(t *testing.T) {
	fset := source.NewFileSet()
	a := ast.NewAssigner()
	bag := diag.NewBag(16)
	reporter := diag.BagReporter{Bag: bag}

	file := fset.Get(fset.AddVirtual(0, "line_1", []byte("let x = 1; x + 1")))
	pkg := parser.ParseFragment(a, file, reporter)
	if bag.HasErrors() {
		t.Fatal("fragment failed to parse")
	}

	table := NewGlobalTable(NewNamespaceTree())
	res := NewResolver(table, reporter)
	// no AddPackage: the fragment's implicit namespace is unknown to the
	// tree and must be registered during resolution
	res.ResolveFragment(0, pkg)
	wantClean(t, bag)
	if _, ok := table.Tree.Find("line_1"); !ok {
		t.Fatal("implicit namespace missing from the tree")
	}
}
