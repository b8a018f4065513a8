package eval

import (
	"fmt"
	"testing"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/parser"
	"quill/internal/source"
	"quill/internal/symbols"
	"quill/internal/target"
)

// fakeBackend is a classical-bit backend: X flips when every control is
// set, measurement reads the bit, everything else is a no-op. Enough to
// exercise evaluator control flow without amplitudes.
type fakeBackend struct {
	bits     []bool
	released []Qubit
	xCount   int
}

func (b *fakeBackend) QubitAllocate() Qubit {
	b.bits = append(b.bits, false)
	return Qubit(len(b.bits) - 1)
}

func (b *fakeBackend) QubitRelease(q Qubit)     { b.released = append(b.released, q) }
func (b *fakeBackend) QubitIsZero(q Qubit) bool { return !b.bits[q] }

func (b *fakeBackend) ctrlsSet(ctls []Qubit) bool {
	for _, c := range ctls {
		if !b.bits[c] {
			return false
		}
	}
	return true
}

func (b *fakeBackend) X(ctls []Qubit, q Qubit) {
	if b.ctrlsSet(ctls) {
		b.bits[q] = !b.bits[q]
	}
	b.xCount++
}

func (b *fakeBackend) Y(ctls []Qubit, q Qubit) {
	if b.ctrlsSet(ctls) {
		b.bits[q] = !b.bits[q]
	}
}

func (b *fakeBackend) Z(ctls []Qubit, q Qubit)    {}
func (b *fakeBackend) H(ctls []Qubit, q Qubit)    {}
func (b *fakeBackend) S(ctls []Qubit, q Qubit)    {}
func (b *fakeBackend) SAdj(ctls []Qubit, q Qubit) {}
func (b *fakeBackend) T(ctls []Qubit, q Qubit)    {}
func (b *fakeBackend) TAdj(ctls []Qubit, q Qubit) {}

func (b *fakeBackend) RX(ctls []Qubit, theta float64, q Qubit)       {}
func (b *fakeBackend) RY(ctls []Qubit, theta float64, q Qubit)       {}
func (b *fakeBackend) RZ(ctls []Qubit, theta float64, q Qubit)       {}
func (b *fakeBackend) RXX(ctls []Qubit, theta float64, q0, q1 Qubit) {}
func (b *fakeBackend) RYY(ctls []Qubit, theta float64, q0, q1 Qubit) {}
func (b *fakeBackend) RZZ(ctls []Qubit, theta float64, q0, q1 Qubit) {}

func (b *fakeBackend) Swap(ctls []Qubit, q0, q1 Qubit) {
	if b.ctrlsSet(ctls) {
		b.bits[q0], b.bits[q1] = b.bits[q1], b.bits[q0]
	}
}

func (b *fakeBackend) M(q Qubit) bool { return b.bits[q] }

func (b *fakeBackend) MResetZ(q Qubit) bool {
	r := b.bits[q]
	b.bits[q] = false
	return r
}

func (b *fakeBackend) Reset(q Qubit) { b.bits[q] = false }

func (b *fakeBackend) CaptureQuantumState() ([]StateEntry, int) { return nil, len(b.bits) }
func (b *fakeBackend) CaptureSubState(qs []Qubit) ([]StateEntry, bool) {
	return nil, true
}

func (b *fakeBackend) CustomIntrinsic(name string, arg Value) (Value, bool, error) {
	return Value{}, false, nil
}

// recorder collects Message output.
type recorder struct {
	msgs []string
}

func (r *recorder) Message(msg string) error                     { r.msgs = append(r.msgs, msg); return nil }
func (r *recorder) State(entries []StateEntry, qubits int) error { return nil }

type fixture struct {
	table *symbols.GlobalTable
	names symbols.Names
	fset  *source.FileSet
}

func compile(t *testing.T, srcs ...string) *fixture {
	t.Helper()
	fset := source.NewFileSet()
	a := ast.NewAssigner()
	bag := diag.NewBag(32)
	rep := &diag.BagReporter{Bag: bag}
	table := symbols.NewGlobalTable(symbols.NewNamespaceTree())
	res := symbols.NewResolver(table, rep)
	var pkgs []*ast.Package
	for i, src := range srcs {
		id := fset.AddVirtual(0, fmt.Sprintf("%d.qs", i+1), []byte(src))
		pkg := parser.ParseFile(a, fset.Get(id), rep)
		pkgs = append(pkgs, pkg)
	}
	for _, pkg := range pkgs {
		table.AddPackage(0, pkg, target.Unrestricted, rep)
	}
	for _, pkg := range pkgs {
		res.AddPackage(pkg)
	}
	for _, pkg := range pkgs {
		res.ResolvePackage(0, pkg)
	}
	if bag.HasErrors() {
		for _, item := range bag.Items() {
			t.Logf("diag: %s", item.Message)
		}
		t.Fatal("compile failed")
	}
	return &fixture{table: table, names: res.Names(), fset: fset}
}

func (f *fixture) item(t *testing.T, name string) symbols.ItemID {
	t.Helper()
	var found symbols.ItemID = symbols.NoItemID
	f.table.Items(func(it *symbols.Item) bool {
		if f.table.QualifiedName(it.ID) == name {
			found = it.ID
			return false
		}
		return true
	})
	if !found.IsValid() {
		t.Fatalf("item %s not found", name)
	}
	return found
}

func run(t *testing.T, src, entry string) (Value, *Error, *fakeBackend, *recorder) {
	t.Helper()
	f := compile(t, src)
	backend := &fakeBackend{}
	recv := &recorder{}
	ev := New(f.table, f.names, f.fset, backend, recv, 1)
	v, err := ev.EvalEntry(f.item(t, entry))
	return v, err, backend, recv
}

func TestForRangeIsInclusive(t *testing.T) {
	src := `
namespace Test {
    function Build() : Int[] {
        mutable arr = [];
        for i in 0..999 {
            set arr += [i];
        }
        return arr;
    }
}`
	v, err, _, _ := run(t, src, "Test.Build")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != VKArray || len(v.Arr.Items) != 1000 {
		t.Fatalf("expected 1000 elements, got %s", v.Display())
	}
	if last := v.Arr.Items[999]; last.Int != 999 {
		t.Fatalf("expected last element 999, got %s", last.Display())
	}
}

func TestDivisionByZeroCarriesStack(t *testing.T) {
	a := `
namespace Test {
    operation Main() : Unit {
        Adjoint Broken();
    }
}`
	b := `
namespace Test {
    operation Broken() : Unit is Adj {
        body ... { }
        adjoint ... {
            let x = 1 / 0;
        }
    }
}`
	f := compile(t, a, b)
	ev := New(f.table, f.names, f.fset, &fakeBackend{}, &recorder{}, 1)
	_, err := ev.EvalEntry(f.item(t, "Test.Main"))
	if err == nil {
		t.Fatal("expected division by zero")
	}
	if err.Kind != ErrDivisionByZero {
		t.Fatalf("expected DivisionByZero, got %s", err.Kind)
	}
	if len(err.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(err.Frames))
	}
	inner := err.Frames[0]
	if inner.Functor != "Adjoint " || inner.Name != "Test.Broken" {
		t.Fatalf("inner frame %q%q", inner.Functor, inner.Name)
	}
	if got := f.fset.Get(inner.File).Path; got != "2.qs" {
		t.Fatalf("inner frame file %q", got)
	}
	outer := err.Frames[1]
	if outer.Functor != "" || outer.Name != "Test.Main" {
		t.Fatalf("outer frame %q%q", outer.Functor, outer.Name)
	}
	if got := f.fset.Get(outer.File).Path; got != "1.qs" {
		t.Fatalf("outer frame file %q", got)
	}
}

func TestReleasedQubitMustBeZero(t *testing.T) {
	src := `
namespace Test {
    operation X(q : Qubit) : Unit is Adj + Ctl {
        body intrinsic;
    }
    operation Leak() : Unit {
        use q = Qubit();
        X(q);
    }
}`
	_, err, _, _ := run(t, src, "Test.Leak")
	if err == nil {
		t.Fatal("expected release check to fail")
	}
	if err.Kind != ErrReleasedQubitNotZero {
		t.Fatalf("expected ReleasedQubitNotZero, got %s", err.Kind)
	}
}

func TestResetBeforeReleaseSucceeds(t *testing.T) {
	src := `
namespace Test {
    operation X(q : Qubit) : Unit is Adj + Ctl {
        body intrinsic;
    }
    operation Reset(q : Qubit) : Unit {
        body intrinsic;
    }
    operation Clean() : Unit {
        use q = Qubit();
        X(q);
        Reset(q);
    }
}`
	_, err, backend, _ := run(t, src, "Test.Clean")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backend.released) != 1 {
		t.Fatalf("expected 1 release, got %d", len(backend.released))
	}
}

func TestConjugateUndoesOnApplyError(t *testing.T) {
	src := `
namespace Test {
    operation X(q : Qubit) : Unit is Adj + Ctl {
        body intrinsic;
    }
    operation Main() : Unit {
        use q = Qubit();
        within {
            X(q);
        } apply {
            fail "boom";
        }
    }
}`
	_, err, backend, _ := run(t, src, "Test.Main")
	if err == nil || err.Kind != ErrUserFail || err.Message != "boom" {
		t.Fatalf("expected fail \"boom\", got %v", err)
	}
	// the undo must have run: X applied twice, qubit back to zero
	if backend.xCount != 2 {
		t.Fatalf("expected 2 X applications, got %d", backend.xCount)
	}
	if backend.bits[0] {
		t.Fatal("qubit not restored to zero by the undo")
	}
}

func TestConjugateUndoErrorSupersedes(t *testing.T) {
	src := `
namespace Test {
    operation Fragile() : Unit is Adj {
        body ... { }
        adjoint ... {
            fail "undo";
        }
    }
    operation Main() : Unit {
        within {
            Fragile();
        } apply {
            fail "apply";
        }
    }
}`
	_, err, _, _ := run(t, src, "Test.Main")
	if err == nil || err.Kind != ErrUserFail {
		t.Fatalf("expected a fail, got %v", err)
	}
	if err.Message != "undo" {
		t.Fatalf("undo error must supersede, got %q", err.Message)
	}
}

func TestControlledFunctorPeelsRegisters(t *testing.T) {
	src := `
namespace Test {
    operation X(q : Qubit) : Unit is Adj + Ctl {
        body intrinsic;
    }
    operation Main() : Result {
        use (c, t) = (Qubit(), Qubit());
        Controlled X([c], t);
        X(c);
        Controlled X([c], t);
        let r = M(t);
        Reset(c);
        Reset(t);
        return r;
    }
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation Reset(q : Qubit) : Unit {
        body intrinsic;
    }
}`
	v, err, _, _ := run(t, src, "Test.Main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// first controlled X is a no-op (control clear), second fires
	if v.Kind != VKResult || !v.Bool {
		t.Fatalf("expected One, got %s", v.Display())
	}
}

func TestDistributedControlledSpecialization(t *testing.T) {
	src := `
namespace Test {
    operation X(q : Qubit) : Unit is Adj + Ctl {
        body intrinsic;
    }
    operation Flip(q : Qubit) : Unit is Adj + Ctl {
        X(q);
    }
    operation Main() : Result {
        use (c, t) = (Qubit(), Qubit());
        X(c);
        Controlled Flip([c], t);
        let r = M(t);
        Reset(c);
        Reset(t);
        return r;
    }
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation Reset(q : Qubit) : Unit {
        body intrinsic;
    }
}`
	v, err, _, _ := run(t, src, "Test.Main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Kind != VKResult || !v.Bool {
		t.Fatalf("expected One, got %s", v.Display())
	}
}

func TestAdjointInvertsStatementOrder(t *testing.T) {
	src := `
namespace Test {
    function Message(msg : String) : Unit {
        body intrinsic;
    }
    operation A() : Unit is Adj {
        body ... { Message("A"); }
        adjoint self;
    }
    operation B() : Unit is Adj {
        body ... { Message("B"); }
        adjoint self;
    }
    operation Both() : Unit is Adj {
        A();
        B();
    }
    operation Main() : Unit {
        Adjoint Both();
    }
}`
	f := compile(t, src)
	recv := &recorder{}
	ev := New(f.table, f.names, f.fset, &fakeBackend{}, recv, 1)
	if _, err := ev.EvalEntry(f.item(t, "Test.Main")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recv.msgs) != 2 || recv.msgs[0] != "B" || recv.msgs[1] != "A" {
		t.Fatalf("expected reversed order [B A], got %v", recv.msgs)
	}
}

func TestUpdateExpressionCopies(t *testing.T) {
	src := `
namespace Test {
    function Main() : (Int[], Int[]) {
        let a = [1, 2, 3];
        let b = a w/ 1 <- 9;
        return (a, b);
    }
}`
	v, err, _, _ := run(t, src, "Test.Main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := v.Display(); got != "([1, 2, 3], [1, 9, 3])" {
		t.Fatalf("copy-update changed the original: %s", got)
	}
}

func TestDisplayFormats(t *testing.T) {
	cases := []struct {
		src  string
		want string
	}{
		{`namespace T { function F() : Double { return 3.0; } }`, "3.0"},
		{`namespace T { function F() : Double { return 1.5; } }`, "1.5"},
		{`namespace T { function F() : (Int,) { return (7,); } }`, "(7,)"},
		{`namespace T { function F() : Range { return 0..2..10; } }`, "0..2..10"},
		{`namespace T { function F() : Range { return 1..5; } }`, "1..5"},
		{`namespace T { function F() : String { return $"r = {1 + 1}"; } }`, "r = 2"},
	}
	for _, tc := range cases {
		v, err, _, _ := run(t, tc.src, "T.F")
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.src, err)
		}
		if got := v.Display(); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestSeededRandomIsReproducible(t *testing.T) {
	src := `
namespace Test {
    function DrawRandomInt(min : Int, max : Int) : Int {
        body intrinsic;
    }
    function Main() : Int[] {
        mutable out = [];
        for _ in 0..9 {
            set out += [DrawRandomInt(0, 100)];
        }
        return out;
    }
}`
	f := compile(t, src)
	sample := func() string {
		ev := New(f.table, f.names, f.fset, &fakeBackend{}, &recorder{}, 42)
		v, err := ev.EvalEntry(f.item(t, "Test.Main"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return v.Display()
	}
	first := sample()
	if second := sample(); first != second {
		t.Fatalf("same seed diverged: %s vs %s", first, second)
	}
}

func TestShortCircuitSkipsRHS(t *testing.T) {
	src := `
namespace Test {
    function Main() : Bool {
        let xs = [1, 2];
        return false and xs[5] == 0;
    }
}`
	v, err, _, _ := run(t, src, "Test.Main")
	if err != nil {
		t.Fatalf("short-circuit must skip the out-of-range index: %v", err)
	}
	if v.Kind != VKBool || v.Bool {
		t.Fatalf("expected false, got %s", v.Display())
	}
}

func TestIndexOutOfRange(t *testing.T) {
	src := `
namespace Test {
    function Main() : Int {
        let xs = [1, 2];
        return xs[5];
    }
}`
	_, err, _, _ := run(t, src, "Test.Main")
	if err == nil || err.Kind != ErrIndexOutOfRange {
		t.Fatalf("expected IndexOutOfRange, got %v", err)
	}
}

func TestRangeSliceWithNegativeStep(t *testing.T) {
	src := `
namespace Test {
    function Main() : Int[] {
        let xs = [0, 1, 2, 3, 4];
        return xs[4..-1..0];
    }
}`
	v, err, _, _ := run(t, src, "Test.Main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := v.Display(); got != "[4, 3, 2, 1, 0]" {
		t.Fatalf("expected reversal, got %s", got)
	}
}

func TestOpenRangeSliceDefaults(t *testing.T) {
	src := `
namespace Test {
    function Main() : (Int[], Int[]) {
        let xs = [0, 1, 2, 3, 4];
        return (xs[2...], xs[...2]);
    }
}`
	v, err, _, _ := run(t, src, "Test.Main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := v.Display(); got != "([2, 3, 4], [0, 1, 2])" {
		t.Fatalf("open slice defaults wrong: %s", got)
	}
}

func TestFragmentKeepsBindings(t *testing.T) {
	f := compile(t, `namespace Unused { function Nop() : Unit { } }`)
	a := ast.NewAssigner()
	bag := diag.NewBag(8)
	rep := &diag.BagReporter{Bag: bag}
	res := symbols.NewResolver(f.table, rep)
	// the evaluator must read the same Names map the fragment resolver
	// writes into
	ev := New(f.table, res.Names(), f.fset, &fakeBackend{}, &recorder{}, 1)

	frag := func(src string) Value {
		t.Helper()
		id := f.fset.AddVirtual(0, fmt.Sprintf("line_%d", f.fset.Len()), []byte(src))
		pkg := parser.ParseFragment(a, f.fset.Get(id), rep)
		res.ResolveFragment(0, pkg)
		if bag.HasErrors() {
			t.Fatalf("fragment failed: %v", bag.Items())
		}
		v, err := ev.EvalFragment(pkg)
		if err != nil {
			t.Fatalf("fragment error: %v", err)
		}
		return v
	}

	frag(`let x = 21;`)
	v := frag(`x * 2`)
	if v.Kind != VKInt || v.Int != 42 {
		t.Fatalf("expected 42, got %s", v.Display())
	}
}

func TestBitwiseOperators(t *testing.T) {
	src := `
namespace Test {
    function F() : Int {
        let a = 12 &&& 10;
        let b = 12 ||| 3;
        let c = 12 ^^^ 10;
        let flip = ~~~0;
        return a + b + c + flip;
    }
}`
	v, err, _, _ := run(t, src, "Test.F")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 8 + 15 + 6 + (-1)
	if v.Kind != VKInt || v.Int != 28 {
		t.Fatalf("expected 28, got %s", v.Display())
	}
}

func TestDistributedBodyCallsFunctions(t *testing.T) {
	src := `
namespace Test {
    operation X(q : Qubit) : Unit is Adj + Ctl {
        body intrinsic;
    }
    function Twice(x : Int) : Int {
        return x * 2;
    }
    operation Flip(q : Qubit) : Unit is Ctl {
        let n = Twice(1);
        for i in 1..n {
            X(q);
        }
        X(q);
    }
    operation Main() : Result {
        use (c, t) = (Qubit(), Qubit());
        X(c);
        Controlled Flip([c], t);
        let r = M(t);
        Reset(c);
        Reset(t);
        return r;
    }
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation Reset(q : Qubit) : Unit {
        body intrinsic;
    }
}`
	v, err, _, _ := run(t, src, "Test.Main")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// three controlled flips with the control set leave the target at one
	if v.Kind != VKResult || !v.Bool {
		t.Fatalf("expected One, got %s", v.Display())
	}
}
