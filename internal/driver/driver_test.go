package driver

import (
	"os"
	"path/filepath"
	"testing"

	"quill/internal/diag"
	"quill/internal/eval"
	"quill/internal/project"
	"quill/internal/target"
)

type recorder struct {
	msgs []string
}

func (r *recorder) Message(msg string) error { r.msgs = append(r.msgs, msg); return nil }

func (r *recorder) State(entries []eval.StateEntry, qubitCount int) error { return nil }

// writeProject materializes a manifest plus sources in a temp dir and
// loads it.
func writeProject(t *testing.T, manifest string, files map[string]string) *project.Project {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, project.ManifestName), []byte(manifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	proj, err := project.Load(filepath.Join(dir, project.ManifestName))
	if err != nil {
		t.Fatalf("load project: %v", err)
	}
	return proj
}

func failOnDiags(t *testing.T, bag *diag.Bag) {
	t.Helper()
	if !bag.HasErrors() {
		return
	}
	for _, d := range bag.Items() {
		t.Logf("diag %d: %s", d.Code, d.Message)
	}
	t.Fatal("unexpected diagnostics")
}

const basicManifest = "[package]\nname = \"demo\"\n"

func TestCompileCleanProject(t *testing.T) {
	proj := writeProject(t, basicManifest, map[string]string{
		"src/main.qs": `
namespace Demo {
    @EntryPoint()
    operation Main() : Int {
        use q = Qubit();
        H(q);
        let r = MResetZ(q);
        return r == One ? 1 | 0;
    }
}
`,
	})
	c, err := Compile(proj, Options{Profile: target.Unrestricted})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	failOnDiags(t, c.Bag)
	if len(c.User) != 1 {
		t.Fatalf("expected 1 user package, got %d", len(c.User))
	}
	if _, err := EntryPoint(c, ""); err != nil {
		t.Fatalf("entry point: %v", err)
	}
}

func TestRunReturnsEntryValue(t *testing.T) {
	proj := writeProject(t, basicManifest, map[string]string{
		"src/main.qs": `
namespace Demo {
    @EntryPoint()
    operation Main() : Int {
        mutable total = 0;
        for i in 1..10 {
            set total += i;
        }
        Message($"total = {total}");
        return total;
    }
}
`,
	})
	recv := &recorder{}
	out, err := Run(proj, Options{Profile: target.Unrestricted}, recv, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !out.Ran {
		failOnDiags(t, out.Compilation.Bag)
	}
	if out.RunErr != nil {
		t.Fatalf("runtime error: %v", out.RunErr)
	}
	if got := out.Value.Display(); got != "55" {
		t.Fatalf("expected 55, got %s", got)
	}
	if len(recv.msgs) != 1 || recv.msgs[0] != "total = 55" {
		t.Fatalf("unexpected messages: %v", recv.msgs)
	}
}

func TestEntryPointDisambiguation(t *testing.T) {
	src := map[string]string{
		"src/main.qs": `
namespace Demo {
    @EntryPoint()
    operation First() : Int { return 1; }

    @EntryPoint()
    operation Second() : Int { return 2; }
}
`,
	}

	proj := writeProject(t, basicManifest, src)
	c, err := Compile(proj, Options{Profile: target.Unrestricted})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	failOnDiags(t, c.Bag)
	if _, err := EntryPoint(c, ""); err == nil {
		t.Fatal("expected ambiguity error")
	}
	id, err := EntryPoint(c, "Demo.Second")
	if err != nil {
		t.Fatalf("qualified entry: %v", err)
	}
	if c.Table.QualifiedName(id) != "Demo.Second" {
		t.Fatalf("picked wrong entry: %s", c.Table.QualifiedName(id))
	}

	withEntry := basicManifest + "entry = \"Demo.First\"\n"
	proj = writeProject(t, withEntry, src)
	out, err := Run(proj, Options{Profile: target.Unrestricted}, &recorder{}, 1)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.Value.Display(); got != "1" {
		t.Fatalf("expected manifest entry to win, got %s", got)
	}
}

func TestCheckReportsUnresolvedName(t *testing.T) {
	proj := writeProject(t, basicManifest, map[string]string{
		"src/main.qs": `
namespace Demo {
    @EntryPoint()
    operation Main() : Unit {
        Nonexistent();
    }
}
`,
	})
	diags, _, err := Check(proj, Options{Profile: target.Unrestricted, NoCache: true})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(diags) == 0 {
		t.Fatal("expected a diagnostic for the unresolved name")
	}
}

func TestCheckCacheRoundTrip(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	proj := writeProject(t, basicManifest, map[string]string{
		"src/main.qs": `
namespace Demo {
    @EntryPoint()
    operation Main() : Unit {
        Nonexistent();
    }
}
`,
	})
	first, _, err := Check(proj, Options{Profile: target.Unrestricted})
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, _, err := Check(proj, Options{Profile: target.Unrestricted})
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if len(first) == 0 || len(first) != len(second) {
		t.Fatalf("cache changed the outcome: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Message != second[i].Message || first[i].Primary != second[i].Primary {
			t.Fatalf("diagnostic %d differs after cache hit", i)
		}
	}

	cache, err := OpenCache()
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	entries, err := os.ReadDir(cache.dir)
	if err != nil {
		t.Fatalf("read cache dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one cache entry, got %d", len(entries))
	}
}

func TestCheckFlagsCapabilityViolations(t *testing.T) {
	proj := writeProject(t, basicManifest, map[string]string{
		"src/main.qs": `
namespace Demo {
    @EntryPoint()
    operation Main() : Unit {
        use q = Qubit();
        H(q);
        if M(q) == One {
            X(q);
        }
    }
}
`,
	})
	diags, _, err := Check(proj, Options{Profile: target.Base, NoCache: true})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	found := false
	for _, d := range diags {
		if d.Code == diag.CapUnsupportedFeature {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a capability violation under the base profile")
	}
}

func TestSessionKeepsBindings(t *testing.T) {
	s, err := NewSession(Options{Profile: target.Unrestricted}, &recorder{}, 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if res := s.Eval("let x = 21;"); len(res.Diags) != 0 || res.RunErr != nil {
		t.Fatalf("first line failed: %+v", res)
	}
	res := s.Eval("x * 2")
	if len(res.Diags) != 0 || res.RunErr != nil {
		t.Fatalf("second line failed: %+v", res)
	}
	if !res.HasValue || res.Value.Display() != "42" {
		t.Fatalf("expected 42, got %+v", res)
	}
}

func TestSessionDeclaresAndCalls(t *testing.T) {
	s, err := NewSession(Options{Profile: target.Unrestricted}, &recorder{}, 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if res := s.Eval("namespace Foo { function Bar() : Int { return 7; } }"); len(res.Diags) != 0 {
		t.Fatalf("declaration failed: %+v", res.Diags)
	}
	res := s.Eval("Foo.Bar()")
	if len(res.Diags) != 0 || res.RunErr != nil {
		t.Fatalf("call failed: %+v", res)
	}
	if res.Value.Display() != "7" {
		t.Fatalf("expected 7, got %s", res.Value.Display())
	}
}

func TestSessionQuantumStatePersists(t *testing.T) {
	s, err := NewSession(Options{Profile: target.Unrestricted}, &recorder{}, 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if res := s.Eval("use q = Qubit();"); len(res.Diags) != 0 || res.RunErr != nil {
		t.Fatalf("allocation failed: %+v", res)
	}
	if res := s.Eval("X(q);"); len(res.Diags) != 0 || res.RunErr != nil {
		t.Fatalf("gate failed: %+v", res)
	}
	res := s.Eval("MResetZ(q)")
	if len(res.Diags) != 0 || res.RunErr != nil {
		t.Fatalf("measure failed: %+v", res)
	}
	if res.Value.Display() != "One" {
		t.Fatalf("expected One, got %s", res.Value.Display())
	}
}

func TestSessionReportsParseErrors(t *testing.T) {
	s, err := NewSession(Options{Profile: target.Unrestricted}, &recorder{}, 1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	res := s.Eval("let = ;")
	if len(res.Diags) == 0 {
		t.Fatal("expected parse diagnostics")
	}
	// A broken line must not poison the session.
	res = s.Eval("1 + 1")
	if len(res.Diags) != 0 || res.Value.Display() != "2" {
		t.Fatalf("session poisoned: %+v", res)
	}
}

func TestStdSourcesCompile(t *testing.T) {
	fset, ids, stdCount, err := loadStd()
	if err != nil {
		t.Fatalf("load std: %v", err)
	}
	if stdCount == 0 {
		t.Fatal("no embedded std sources")
	}
	c := compileFiles(fset, ids, stdCount, Options{Profile: target.Unrestricted})
	failOnDiags(t, c.Bag)
}
