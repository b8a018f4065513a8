// Package symbols implements the namespace tree, the global item table, and
// name resolution.
//
// Resolution never aborts: every failure is reported through the
// diag.Reporter and a sentinel binding is substituted, so one pass yields
// the complete diagnostic list and the tree stays fully visitable for
// downstream consumers even when the program is broken.
package symbols

import (
	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/source"
)

// preludeNamespaces are searched, in this order, when a name is not found
// through locals, the current namespace, or explicit opens.
var preludeNamespaces = []string{
	"Microsoft.Quantum.Canon",
	"Microsoft.Quantum.Core",
	"Microsoft.Quantum.Intrinsic",
	"Microsoft.Quantum.Measurement",
}

type scopeKind uint8

const (
	scopeNamespace scopeKind = iota
	scopeCallable
	scopeBlock
	scopeLambda
)

type localBinding struct {
	node ast.NodeID
	span source.Span
}

type openRef struct {
	ns   NamespaceID
	span source.Span
}

type importBinding struct {
	entry surfaceEntry
	span  source.Span
}

// scope is one lexical frame: local bindings, the namespace-open set
// (aliased and plain), and names introduced by imports. Imports are checked
// after locals within the same scope, so a genuinely local binding shadows
// an import while an import still wins over opens and globals.
type scope struct {
	kind    scopeKind
	locals  map[string]localBinding
	opens   map[string][]openRef // key "" holds plain opens
	imports map[string]importBinding
}

func newScope(kind scopeKind) *scope {
	return &scope{
		kind:    kind,
		locals:  make(map[string]localBinding),
		opens:   make(map[string][]openRef),
		imports: make(map[string]importBinding),
	}
}

// Resolver binds every identifier reference to a Resolution. One resolver
// serves the whole compilation: packages are added in stacking order (core
// library first) and resolved in that order, accumulating into one Names
// map.
type Resolver struct {
	tree     *NamespaceTree
	table    *GlobalTable
	reporter diag.Reporter
	names    Names

	// namespace declarations per tree node, across packages; reopened
	// namespaces contribute multiple declarations
	decls map[NamespaceID][]*ast.Namespace

	surfaces  map[NamespaceID]map[string]surfaceEntry
	computing map[NamespaceID]bool

	scopes []*scope
	curNS  NamespaceID
	curPkg source.PackageID

	// fragmentScope persists across ResolveFragment calls so REPL lines see
	// bindings and opens from previous lines.
	fragmentScope *scope
}

// NewResolver creates a resolver over an already-populated global table.
func NewResolver(table *GlobalTable, reporter diag.Reporter) *Resolver {
	return &Resolver{
		tree:      table.Tree,
		table:     table,
		reporter:  reporter,
		names:     make(Names),
		decls:     make(map[NamespaceID][]*ast.Namespace),
		surfaces:  make(map[NamespaceID]map[string]surfaceEntry),
		computing: make(map[NamespaceID]bool),
	}
}

// Names returns the accumulated resolution map.
func (r *Resolver) Names() Names { return r.names }

// AddPackage records the package's namespace declarations so export
// surfaces can be computed lazily. Call after GlobalTable.AddPackage.
func (r *Resolver) AddPackage(pkg *ast.Package) {
	for _, ns := range pkg.Namespaces {
		id := r.tree.Insert(ns.NameParts())
		r.decls[id] = append(r.decls[id], ns)
	}
}

// ResolvePackage resolves every reference in the package's namespaces and
// its entry statement sequence.
func (r *Resolver) ResolvePackage(pkgID source.PackageID, pkg *ast.Package) {
	r.curPkg = pkgID
	for _, ns := range pkg.Namespaces {
		r.resolveNamespace(ns)
	}
	if len(pkg.Entry) > 0 {
		r.resolveEntry(pkg, newScope(scopeCallable))
	}
}

// ResolveFragment resolves one interactive fragment. Top-level bindings and
// opens land in a scope that persists across fragments.
func (r *Resolver) ResolveFragment(pkgID source.PackageID, pkg *ast.Package) {
	r.curPkg = pkgID
	for _, ns := range pkg.Namespaces {
		r.resolveNamespace(ns)
	}
	if r.fragmentScope == nil {
		r.fragmentScope = newScope(scopeCallable)
	}
	r.resolveEntry(pkg, r.fragmentScope)
}

func (r *Resolver) resolveNamespace(ns *ast.Namespace) {
	nsID, ok := r.tree.Get(ns.NameParts())
	if !ok {
		// a fragment may carry an implicit namespace the caller never
		// passed through AddPackage; register it late so its directives
		// still feed the surface computation
		nsID = r.tree.Insert(ns.NameParts())
		r.decls[nsID] = append(r.decls[nsID], ns)
	}
	prevNS := r.curNS
	r.curNS = nsID

	top := r.push(scopeNamespace)
	r.populateDirectives(top, ns.Items)
	// force surface computation so export diagnostics surface even for
	// namespaces nobody references
	r.namespaceSurface(nsID)

	for _, item := range ns.Items {
		switch decl := item.Kind.(type) {
		case *ast.CallableDecl:
			r.resolveCallable(decl)
		case *ast.NewtypeDecl:
			r.resolveType(decl.Def)
		}
	}

	r.pop()
	r.curNS = prevNS
}

// resolveEntry resolves the package's top-level statement sequence inside
// the implicit namespace named after the entry file.
func (r *Resolver) resolveEntry(pkg *ast.Package, entryScope *scope) {
	prevNS := r.curNS
	r.scopes = append(r.scopes, entryScope)
	if ns := pkg.EntryNS; ns != nil {
		if id, ok := r.tree.Get(ns.NameParts()); ok {
			r.curNS = id
		}
		// opens and imports typed at top level accumulate in the entry
		// scope, so interactive fragments keep them across lines
		r.populateDirectives(entryScope, ns.Items)
	}
	for _, stmt := range pkg.Entry {
		r.resolveStmt(stmt)
	}
	r.scopes = r.scopes[:0]
	r.curNS = prevNS
}

func (r *Resolver) push(kind scopeKind) *scope {
	s := newScope(kind)
	r.scopes = append(r.scopes, s)
	return s
}

func (r *Resolver) pop() {
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// bind records the resolution of a reference node.
func (r *Resolver) bind(node ast.NodeID, res Res) {
	r.names[node] = res
}

// accessible applies item visibility: internal items are visible only to
// their own package.
func (r *Resolver) accessible(id ItemID) bool {
	it := r.table.Item(id)
	return it.Visibility == ast.VisPublic || it.Package == r.curPkg
}
