// Package driver orchestrates compilation: it loads the embedded standard
// library and the project sources, parses them in parallel, builds the
// global table, resolves names, and runs the capability analysis.
package driver

import (
	"context"
	"fmt"
	"runtime"

	"fortio.org/safecast"
	"golang.org/x/sync/errgroup"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/parser"
	"quill/internal/project"
	"quill/internal/rca"
	"quill/internal/source"
	"quill/internal/symbols"
	"quill/internal/target"
)

// idBlock is the NodeID range reserved per file. Parallel parsing hands
// file i the range [1+i*idBlock, 1+(i+1)*idBlock) so ids never collide.
const idBlock = 1 << 20

const defaultMaxDiagnostics = 256

// Options controls a compilation.
type Options struct {
	// Profile is the target capability set diagnostics are validated
	// against.
	Profile target.CapabilityFlags
	// MaxDiagnostics caps the bag; zero means the default.
	MaxDiagnostics int
	// Jobs bounds parse parallelism; zero or negative means GOMAXPROCS.
	Jobs int
	// NoCache disables the on-disk check cache.
	NoCache bool
}

func (o Options) maxDiag() int {
	if o.MaxDiagnostics <= 0 {
		return defaultMaxDiagnostics
	}
	return o.MaxDiagnostics
}

// Compilation is the result of compiling the standard library plus one
// project. The resolver is retained so a REPL session can keep feeding
// fragments through it.
type Compilation struct {
	FileSet  *source.FileSet
	Assigner *ast.Assigner
	Std      []*ast.Package
	User     []*ast.Package
	Table    *symbols.GlobalTable
	Resolver *symbols.Resolver
	Names    symbols.Names
	RCA      *rca.Result
	Bag      *diag.Bag
}

// Compile loads and compiles proj. A non-nil error means the pipeline
// itself could not run (unreadable files, bad manifest); source-level
// problems land in the returned Bag instead.
func Compile(proj *project.Project, opts Options) (*Compilation, error) {
	fset, ids, stdCount, err := loadProject(proj)
	if err != nil {
		return nil, err
	}
	return compileFiles(fset, ids, stdCount, opts), nil
}

// loadProject fills a fresh file set with the embedded standard library
// followed by the project sources. ids[:stdCount] are the std files.
func loadProject(proj *project.Project) (*source.FileSet, []source.FileID, int, error) {
	fset, ids, stdCount, err := loadStd()
	if err != nil {
		return nil, nil, 0, err
	}

	paths, err := proj.SourceFiles()
	if err != nil {
		return nil, nil, 0, err
	}
	for _, path := range paths {
		id, err := fset.Load(UserPackageID, path)
		if err != nil {
			return nil, nil, 0, fmt.Errorf("load %s: %w", path, err)
		}
		ids = append(ids, id)
	}
	return fset, ids, stdCount, nil
}

// compileFiles runs the shared middle of the pipeline: parse, collect,
// resolve, analyze. ids[:stdCount] belong to the standard library.
func compileFiles(fset *source.FileSet, ids []source.FileID, stdCount int, opts Options) *Compilation {
	bag := diag.NewBag(opts.maxDiag())
	parsed := parseAll(fset, ids, opts.Jobs, opts.maxDiag())
	for _, pf := range parsed {
		bag.Merge(pf.bag)
	}

	table := symbols.NewGlobalTable(symbols.NewNamespaceTree())
	reporter := diag.BagReporter{Bag: bag}
	for i, pf := range parsed {
		pkgID := UserPackageID
		if i < stdCount {
			pkgID = StdPackageID
		}
		table.AddPackage(pkgID, pf.pkg, opts.Profile, reporter)
	}

	res := symbols.NewResolver(table, reporter)
	for _, pf := range parsed {
		res.AddPackage(pf.pkg)
	}
	for i, pf := range parsed {
		pkgID := UserPackageID
		if i < stdCount {
			pkgID = StdPackageID
		}
		res.ResolvePackage(pkgID, pf.pkg)
	}

	result := rca.Analyze(table, res.Names())
	for _, v := range result.Validate(opts.Profile) {
		diag.ReportError(reporter, diag.CapUnsupportedFeature, v.Span,
			fmt.Sprintf("%s requires runtime capabilities the target does not provide", v.Name)).
			WithNote(v.Span, fmt.Sprintf("missing: %s", v.Missing)).
			Emit()
	}

	c := &Compilation{
		FileSet:  fset,
		Assigner: ast.NewAssignerAt(ast.NodeID(1 + len(ids)*idBlock)),
		Table:    table,
		Resolver: res,
		Names:    res.Names(),
		RCA:      result,
		Bag:      bag,
	}
	for i, pf := range parsed {
		if i < stdCount {
			c.Std = append(c.Std, pf.pkg)
		} else {
			c.User = append(c.User, pf.pkg)
		}
	}
	return c
}

type parsedFile struct {
	pkg *ast.Package
	bag *diag.Bag
}

// parseAll parses every file concurrently. Each file gets its own bag and
// a disjoint NodeID block, so workers never share mutable state; results
// land in per-index slots and diagnostics are merged back in file order.
func parseAll(fset *source.FileSet, ids []source.FileID, jobs, maxDiag int) []parsedFile {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	if jobs > len(ids) {
		jobs = len(ids)
	}

	out := make([]parsedFile, len(ids))
	g, _ := errgroup.WithContext(context.Background())
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			start, err := safecast.Conv[uint32](1 + i*idBlock)
			if err != nil {
				return err
			}
			bag := diag.NewBag(maxDiag)
			a := ast.NewAssignerAt(ast.NodeID(start))
			pkg := parser.ParseFile(a, fset.Get(id), diag.BagReporter{Bag: bag})
			out[i] = parsedFile{pkg: pkg, bag: bag}
			return nil
		})
	}
	// The only worker error is id-space exhaustion, which takes ~4096
	// files; fall back to an empty slot and let callers see a nil pkg.
	_ = g.Wait()
	res := out[:0]
	for _, pf := range out {
		if pf.pkg != nil {
			res = append(res, pf)
		}
	}
	return res
}
