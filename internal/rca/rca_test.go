package rca

import (
	"testing"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/parser"
	"quill/internal/source"
	"quill/internal/symbols"
	"quill/internal/target"
)

func analyze(t *testing.T, src string) (*symbols.GlobalTable, *Result) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual(0, "test.qs", []byte(src))
	bag := diag.NewBag(32)
	rep := diag.BagReporter{Bag: bag}

	a := ast.NewAssigner()
	pkg := parser.ParseFile(a, fs.Get(id), rep)

	table := symbols.NewGlobalTable(symbols.NewNamespaceTree())
	table.AddPackage(0, pkg, target.Unrestricted, rep)
	res := symbols.NewResolver(table, rep)
	res.AddPackage(pkg)
	res.ResolvePackage(0, pkg)
	if bag.HasErrors() {
		t.Fatalf("compile errors: %+v", bag.Items())
	}
	return table, Analyze(table, res.Names())
}

func findItem(t *testing.T, table *symbols.GlobalTable, name string) symbols.ItemID {
	t.Helper()
	var found symbols.ItemID
	table.Items(func(it *symbols.Item) bool {
		if it.Name == name {
			found = it.ID
			return false
		}
		return true
	})
	if !found.IsValid() {
		t.Fatalf("item %s not registered", name)
	}
	return found
}

const gaussSum = `
namespace Test {
    function GaussSum(n : Int) : Int {
        if n == 0 {
            return 0;
        }
        return n + GaussSum(n - 1);
    }
}
`

func TestRecursionWithStaticArgStaysClassical(t *testing.T) {
	src := gaussSum + `
namespace Main {
    open Test;
    function Driver() : Int {
        return GaussSum(100);
    }
}
`
	table, result := analyze(t, src)

	gs := result.Set(findItem(t, table, "GaussSum"))
	if !gs.Cyclic {
		t.Fatalf("GaussSum not marked cyclic")
	}
	if gs.Inherent.Dynamic {
		t.Fatalf("GaussSum inherent kind is dynamic, want classical")
	}
	if gs.Inherent.Features != 0 {
		t.Fatalf("GaussSum inherent features = %v, want none", gs.Inherent.Features)
	}
	if len(gs.ParamApps) != 1 || !gs.ParamApps[0].Dynamic {
		t.Fatalf("GaussSum must propagate dynamism from its parameter: %+v", gs.ParamApps)
	}

	driver := result.Set(findItem(t, table, "Driver"))
	if !driver.Inherent.Classical() {
		t.Fatalf("Driver with static argument = %+v, want classical", driver.Inherent)
	}
}

func TestRecursionWithMeasuredArgIsDynamic(t *testing.T) {
	src := gaussSum + `
namespace Main {
    open Test;
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation Run(q : Qubit) : Int {
        let n = (M(q) == One) ? 10 | 20;
        return GaussSum(n);
    }
}
`
	table, result := analyze(t, src)

	run := result.Set(findItem(t, table, "Run"))
	if !run.Inherent.Dynamic {
		t.Fatalf("Run = %+v, want dynamic", run.Inherent)
	}
	for _, want := range []RuntimeFeatureFlags{
		UseOfDynamicBool,
		UseOfDynamicInt,
		CallToCyclicFunctionWithDynamicArg,
	} {
		if run.Inherent.Features&want == 0 {
			t.Fatalf("Run features = %v, missing %v", run.Inherent.Features, want)
		}
	}
}

func TestMeasurementAloneSetsNoTypeFlags(t *testing.T) {
	src := `
namespace Main {
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation Measure(q : Qubit) : Result {
        return M(q);
    }
}
`
	table, result := analyze(t, src)

	m := result.Set(findItem(t, table, "Measure"))
	if !m.Inherent.Dynamic {
		t.Fatalf("Measure = %+v, want dynamic", m.Inherent)
	}
	if m.Inherent.Features != 0 {
		t.Fatalf("Measure features = %v, want none until the result is consumed",
			m.Inherent.Features)
	}
}

func TestLoopOnMeasuredCondition(t *testing.T) {
	src := `
namespace Main {
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation RepeatUntilZero(q : Qubit) : Unit {
        mutable r = M(q);
        while r == One {
            set r = M(q);
        }
    }
}
`
	table, result := analyze(t, src)

	set := result.Set(findItem(t, table, "RepeatUntilZero"))
	for _, want := range []RuntimeFeatureFlags{
		UseOfDynamicBool,
		LoopWithDynamicCondition,
		MeasurementWithinDynamicScope,
	} {
		if set.Inherent.Features&want == 0 {
			t.Fatalf("features = %v, missing %v", set.Inherent.Features, want)
		}
	}
}

func TestReturnInsideDynamicBranch(t *testing.T) {
	src := `
namespace Main {
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation Pick(q : Qubit) : Int {
        if M(q) == One {
            return 1;
        }
        return 0;
    }
}
`
	table, result := analyze(t, src)

	set := result.Set(findItem(t, table, "Pick"))
	if !set.Inherent.Dynamic {
		t.Fatalf("Pick = %+v, want dynamic", set.Inherent)
	}
	if set.Inherent.Features&ReturnWithinDynamicScope == 0 {
		t.Fatalf("features = %v, missing ReturnWithinDynamicScope", set.Inherent.Features)
	}
}

func TestSimulatableIntrinsicBodyIsSkipped(t *testing.T) {
	src := `
namespace Main {
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    @SimulatableIntrinsic()
    operation NoisyGate(q : Qubit) : Unit {
        let r = M(q);
        let tripped = r == One;
    }
    operation Run(q : Qubit) : Unit {
        NoisyGate(q);
    }
}
`
	table, result := analyze(t, src)

	noisy := result.Set(findItem(t, table, "NoisyGate"))
	if !noisy.Inherent.Classical() {
		t.Fatalf("NoisyGate analyzed past its signature: %+v", noisy.Inherent)
	}
	run := result.Set(findItem(t, table, "Run"))
	if !run.Inherent.Classical() {
		t.Fatalf("Run = %+v, want classical", run.Inherent)
	}
}

func TestMutualRecursionMarksBothCyclic(t *testing.T) {
	src := `
namespace Main {
    function Even(n : Int) : Bool {
        if n == 0 {
            return true;
        }
        return Odd(n - 1);
    }
    function Odd(n : Int) : Bool {
        if n == 0 {
            return false;
        }
        return Even(n - 1);
    }
}
`
	table, result := analyze(t, src)

	for _, name := range []string{"Even", "Odd"} {
		set := result.Set(findItem(t, table, name))
		if !set.Cyclic {
			t.Fatalf("%s not marked cyclic", name)
		}
		if set.Inherent.Dynamic {
			t.Fatalf("%s inherently dynamic, want classical", name)
		}
	}
}

func TestApplyIsMonotonic(t *testing.T) {
	set := &ApplicationsGeneratorSet{
		Inherent:  ComputeKind{Features: UseOfDynamicBool},
		ParamApps: []ComputeKind{{Dynamic: true, Features: UseOfDynamicInt}},
	}

	static := set.Apply([]ComputeKind{{}})
	if static.Dynamic {
		t.Fatalf("static application = %+v, want non-dynamic", static)
	}

	dynamic := set.Apply([]ComputeKind{{Dynamic: true}})
	if !dynamic.Dynamic {
		t.Fatalf("dynamic argument did not make the result dynamic")
	}
	if dynamic.Features&static.Features != static.Features {
		t.Fatalf("dynamism removed features: static %v, dynamic %v",
			static.Features, dynamic.Features)
	}
}

func TestValidateAgainstAdaptiveProfile(t *testing.T) {
	src := `
namespace Main {
    operation M(q : Qubit) : Result {
        body intrinsic;
    }
    operation Angle(q : Qubit) : Double {
        return (M(q) == One) ? 1.5 | 0.5;
    }
}
`
	_, result := analyze(t, src)

	violations := result.Validate(target.AdaptiveRI)
	if len(violations) != 1 {
		t.Fatalf("violations = %+v, want exactly one", violations)
	}
	v := violations[0]
	if v.Name != "Main.Angle" {
		t.Fatalf("violation names %s, want Main.Angle", v.Name)
	}
	if v.Missing&target.FloatingPointComputations == 0 {
		t.Fatalf("missing = %v, want FloatingPointComputations", v.Missing)
	}

	if got := result.Validate(target.Unrestricted); len(got) != 0 {
		t.Fatalf("unrestricted target reported %+v", got)
	}
}
