package driver

import (
	"fmt"
	"sort"
	"strings"

	"quill/internal/eval"
	"quill/internal/project"
	"quill/internal/sim"
	"quill/internal/symbols"
)

// RunOutcome is everything `quill run` needs to report: the compilation
// (for diagnostics), and, when compilation succeeded, the entry point's
// value or runtime error.
type RunOutcome struct {
	Compilation *Compilation
	// Ran is false when compile errors prevented execution.
	Ran    bool
	Value  eval.Value
	RunErr *eval.Error
}

// EntryPoint selects the user package's entry point. preferred, when
// non-empty, disambiguates by qualified or bare name; it comes from the
// manifest's package.entry or the command line.
func EntryPoint(c *Compilation, preferred string) (symbols.ItemID, error) {
	ids := c.Table.EntryPoints(UserPackageID)
	if len(ids) == 0 {
		return symbols.NoItemID, fmt.Errorf("no @EntryPoint() operation found")
	}
	if preferred != "" {
		for _, id := range ids {
			if c.Table.QualifiedName(id) == preferred || c.Table.Item(id).Name == preferred {
				return id, nil
			}
		}
		return symbols.NoItemID, fmt.Errorf("entry point %q not found; candidates: %s",
			preferred, entryNames(c, ids))
	}
	if len(ids) > 1 {
		return symbols.NoItemID, fmt.Errorf("multiple entry points: %s; pick one with package.entry",
			entryNames(c, ids))
	}
	return ids[0], nil
}

func entryNames(c *Compilation, ids []symbols.ItemID) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, c.Table.QualifiedName(id))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Run compiles proj and, if it is clean, executes its entry point on a
// fresh sparse simulator seeded with seed. Pipeline failures come back as
// the error; source and runtime problems land in the outcome.
func Run(proj *project.Project, opts Options, recv eval.Receiver, seed int64) (*RunOutcome, error) {
	c, err := Compile(proj, opts)
	if err != nil {
		return nil, err
	}
	out := &RunOutcome{Compilation: c}
	if c.Bag.HasErrors() {
		return out, nil
	}

	id, err := EntryPoint(c, proj.Manifest.Package.Entry)
	if err != nil {
		return nil, err
	}

	sm := sim.New()
	ev := eval.New(c.Table, c.Names, c.FileSet, sm, recv, seed)
	sm.SetRand(ev.Rand())

	out.Ran = true
	out.Value, out.RunErr = ev.EvalEntry(id)
	return out, nil
}
