package driver

import (
	"fmt"

	"quill/internal/diag"
	"quill/internal/eval"
	"quill/internal/parser"
	"quill/internal/sim"
	"quill/internal/source"
)

// Session is a live REPL: one file set, table, resolver, simulator, and
// evaluator shared across every submitted line, so bindings, namespaces,
// and allocated qubits persist between lines.
type Session struct {
	c    *Compilation
	ev   *eval.Evaluator
	opts Options
	line int
}

// LineResult is what one submitted line produced. Diags non-empty means
// the line did not run; HasValue marks a non-Unit value worth printing.
type LineResult struct {
	Diags    []diag.Diagnostic
	Value    eval.Value
	HasValue bool
	RunErr   *eval.Error
}

// NewSession compiles the standard library and prepares an empty
// interactive environment seeded with seed.
func NewSession(opts Options, recv eval.Receiver, seed int64) (*Session, error) {
	fset, ids, stdCount, err := loadStd()
	if err != nil {
		return nil, err
	}
	c := compileFiles(fset, ids, stdCount, opts)
	if c.Bag.HasErrors() {
		return nil, fmt.Errorf("standard library failed to compile: %v", c.Bag.Items()[0].Message)
	}

	sm := sim.New()
	ev := eval.New(c.Table, c.Names, c.FileSet, sm, recv, seed)
	sm.SetRand(ev.Rand())
	return &Session{c: c, ev: ev, opts: opts}, nil
}

// loadStd fills a fresh file set with the embedded standard library only.
func loadStd() (*source.FileSet, []source.FileID, int, error) {
	fset := source.NewFileSet()
	std, err := stdSources()
	if err != nil {
		return nil, nil, 0, err
	}
	var ids []source.FileID
	for _, src := range std {
		ids = append(ids, fset.AddVirtual(StdPackageID, src.name, src.content))
	}
	return fset, ids, len(ids), nil
}

// Eval parses, resolves, and runs one line. Top-level statements join the
// persistent fragment scope; namespace and callable declarations become
// part of the session's program.
func (s *Session) Eval(src string) LineResult {
	s.line++
	name := fmt.Sprintf("line_%d", s.line)
	fid := s.c.FileSet.AddVirtual(ReplPackageID, name, []byte(src))

	bag := diag.NewBag(s.opts.maxDiag())
	reporter := diag.BagReporter{Bag: bag}
	pkg := parser.ParseFragment(s.c.Assigner, s.c.FileSet.Get(fid), reporter)
	if bag.HasErrors() {
		return LineResult{Diags: bag.Items()}
	}

	s.c.Table.AddPackage(ReplPackageID, pkg, s.opts.Profile, reporter)
	s.c.Resolver.AddPackage(pkg)
	s.c.Resolver.ResolveFragment(ReplPackageID, pkg)
	if bag.HasErrors() {
		return LineResult{Diags: bag.Items()}
	}

	val, runErr := s.ev.EvalFragment(pkg)
	if runErr != nil {
		return LineResult{RunErr: runErr}
	}
	return LineResult{Value: val, HasValue: val.Kind != eval.VKUnit}
}

// FileSet exposes the session's file set for diagnostic rendering.
func (s *Session) FileSet() *source.FileSet { return s.c.FileSet }
