package symbols

import (
	"fmt"

	"quill/internal/ast"
	"quill/internal/diag"
)

// surfaceEntry is one name in a namespace's public surface: either an item
// or a re-exposed namespace.
type surfaceEntry struct {
	item ItemID
	ns   NamespaceID
	isNS bool
}

func itemEntry(id ItemID) surfaceEntry      { return surfaceEntry{item: id} }
func nsEntry(id NamespaceID) surfaceEntry   { return surfaceEntry{ns: id, isNS: true} }
func (e surfaceEntry) same(o surfaceEntry) bool {
	return e.isNS == o.isNS && e.item == o.item && e.ns == o.ns
}

// namespaceSurface returns the visible surface of a namespace: its own
// items plus everything its export items re-expose. Export cycles through
// re-exports terminate because a namespace currently being computed answers
// with its own items only; self-reference can only ever repeat entries,
// which merge without duplication.
func (r *Resolver) namespaceSurface(ns NamespaceID) map[string]surfaceEntry {
	if s, ok := r.surfaces[ns]; ok {
		return s
	}
	if r.computing[ns] {
		return r.ownSurface(ns)
	}
	r.computing[ns] = true
	defer delete(r.computing, ns)

	surface := r.ownSurface(ns)
	for _, decl := range r.decls[ns] {
		for _, item := range decl.Items {
			ie, ok := item.Kind.(*ast.ImportExportItem)
			if !ok || !ie.Export {
				continue
			}
			for _, entry := range ie.Entries {
				r.addExport(ns, surface, entry)
			}
		}
	}
	r.surfaces[ns] = surface
	return surface
}

// ownSurface collects just the items declared directly in the namespace.
func (r *Resolver) ownSurface(ns NamespaceID) map[string]surfaceEntry {
	surface := make(map[string]surfaceEntry)
	for name, id := range r.table.byName[ns] {
		surface[name] = itemEntry(id)
	}
	return surface
}

func (r *Resolver) addExport(ns NamespaceID, surface map[string]surfaceEntry, entry *ast.ImportExportEntry) {
	if entry.Glob {
		// a glob export would make the re-exported surface unstable across
		// versions of the exported namespace
		diag.ReportError(r.reporter, diag.ResGlobExportNotSupported, entry.Pos(),
			fmt.Sprintf("glob export of `%s` is not supported; export items individually or export the namespace", entry.Path.String())).
			Emit()
		return
	}

	target, ok := r.resolveDirectivePath(ns, entry.Path, diag.ResExportedNonItem, "exported")
	if !ok {
		return
	}
	name := entry.Path.Name().Name
	if entry.Alias != nil {
		name = entry.Alias.Name
	}
	if prev, exists := surface[name]; exists {
		if prev.same(target) {
			return
		}
		diag.ReportError(r.reporter, diag.ResDuplicateExport, entry.Pos(),
			fmt.Sprintf("`%s` is already exported from namespace %s", name, r.tree.Path(ns))).
			Emit()
		return
	}
	surface[name] = target
}

// resolveDirectivePath resolves an import/export path to an item or a
// namespace, relative to the given namespace. The search order is: the
// namespace's own tree children and surface, then an absolute path from the
// root. nonItemCode distinguishes the export and import diagnostics.
func (r *Resolver) resolveDirectivePath(ns NamespaceID, path *ast.Path, nonItemCode diag.Code, verb string) (surfaceEntry, bool) {
	parts := path.Parts()
	name := parts[len(parts)-1]
	qualifier := parts[:len(parts)-1]

	for _, root := range []NamespaceID{ns, RootNamespaceID} {
		holder, ok := r.descendSurface(root, qualifier)
		if !ok {
			continue
		}
		if entry, found := r.surfaceLookup(holder, name); found {
			r.bind(path.NodeID(), r.entryRes(entry))
			return entry, true
		}
		if child, found := r.surfaceNamespace(holder, name); found {
			return nsEntry(child), true
		}
		if required, dropped := r.table.Dropped(holder, name); dropped {
			diag.ReportError(r.reporter, diag.ResNotAvailable, path.Pos(),
				fmt.Sprintf("`%s` is declared in %s but not available for the current target",
					name, r.tree.Path(holder))).
				WithNote(path.Pos(), "requires target capability "+required.String()).
				Emit()
			r.bind(path.NodeID(), Res{Kind: ResErr})
			return surfaceEntry{}, false
		}
	}

	if _, isPrim := PrimTyByName(name); isPrim && len(qualifier) == 0 {
		diag.ReportError(r.reporter, nonItemCode, path.Pos(),
			fmt.Sprintf("`%s` is a primitive type and cannot be %s", name, verb)).
			Emit()
		return surfaceEntry{}, false
	}
	diag.ReportError(r.reporter, diag.ResNotFound, path.Pos(),
		fmt.Sprintf("`%s` not found", path.String())).
		Emit()
	r.bind(path.NodeID(), Res{Kind: ResErr})
	return surfaceEntry{}, false
}

// descendSurface walks qualifier segments from a namespace, following both
// tree children and re-exported namespace entries.
func (r *Resolver) descendSurface(ns NamespaceID, segs []string) (NamespaceID, bool) {
	cur := ns
	for _, seg := range segs {
		next, ok := r.surfaceNamespace(cur, seg)
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

// surfaceNamespace finds a namespace named seg visible under ns: a tree
// child or an exported namespace entry.
func (r *Resolver) surfaceNamespace(ns NamespaceID, seg string) (NamespaceID, bool) {
	if child, ok := r.tree.Child(ns, seg); ok {
		return child, true
	}
	if entry, ok := r.namespaceSurface(ns)[seg]; ok && entry.isNS {
		return entry.ns, true
	}
	return 0, false
}

// surfaceLookup finds an accessible item named name in the namespace's
// surface.
func (r *Resolver) surfaceLookup(ns NamespaceID, name string) (surfaceEntry, bool) {
	entry, ok := r.namespaceSurface(ns)[name]
	if !ok || entry.isNS {
		return surfaceEntry{}, false
	}
	if !r.accessible(entry.item) {
		return surfaceEntry{}, false
	}
	return entry, true
}

func (r *Resolver) entryRes(entry surfaceEntry) Res {
	if entry.isNS {
		return Res{Kind: ResErr}
	}
	return Res{Kind: ResItem, Item: entry.item, Package: r.table.Item(entry.item).Package}
}

// populateDirectives installs the scope effects of a namespace's open and
// import items: opens (plain and aliased) and imported names. Exports have
// no scope effect; they only extend the surface.
func (r *Resolver) populateDirectives(s *scope, items []*ast.Item) {
	for _, item := range items {
		switch decl := item.Kind.(type) {
		case *ast.OpenItem:
			r.populateOpen(s, decl)
		case *ast.ImportExportItem:
			if !decl.Export {
				for _, entry := range decl.Entries {
					r.populateImport(s, entry)
				}
			}
		}
	}
}

func (r *Resolver) populateOpen(s *scope, decl *ast.OpenItem) {
	ns, ok := r.tree.Get(decl.Name.Parts())
	if !ok {
		diag.ReportError(r.reporter, diag.ResNotFound, decl.Name.Pos(),
			fmt.Sprintf("namespace `%s` not found", decl.Name.String())).
			Emit()
		return
	}
	alias := ""
	if decl.Alias != nil {
		alias = decl.Alias.Name
	}
	// multiple opens aliasing to the same name merge into one group;
	// ambiguity arises only when a referenced name actually clashes
	s.opens[alias] = append(s.opens[alias], openRef{ns: ns, span: decl.Name.Pos()})
}

func (r *Resolver) populateImport(s *scope, entry *ast.ImportExportEntry) {
	if entry.Glob {
		// `import Foo.*` behaves like an open scoped to this directive's
		// scope; an alias turns it into an aliased open
		ns, ok := r.descendSurface(r.curNS, entry.Path.Parts())
		if !ok {
			ns, ok = r.descendSurface(RootNamespaceID, entry.Path.Parts())
		}
		if !ok {
			diag.ReportError(r.reporter, diag.ResNotFound, entry.Path.Pos(),
				fmt.Sprintf("namespace `%s` not found", entry.Path.String())).
				Emit()
			return
		}
		alias := ""
		if entry.Alias != nil {
			alias = entry.Alias.Name
		}
		s.opens[alias] = append(s.opens[alias], openRef{ns: ns, span: entry.Path.Pos()})
		return
	}

	target, ok := r.resolveDirectivePath(r.curNS, entry.Path, diag.ResImportedNonItem, "imported")
	if !ok {
		return
	}
	name := entry.Path.Name().Name
	if entry.Alias != nil {
		name = entry.Alias.Name
	}
	if prev, exists := s.imports[name]; exists {
		if prev.entry.same(target) {
			return
		}
		diag.ReportError(r.reporter, diag.ResImportedDuplicate, entry.Pos(),
			fmt.Sprintf("`%s` is already bound by an import in this scope", name)).
			WithNote(prev.span, "previous import here").
			Emit()
		return
	}
	s.imports[name] = importBinding{entry: target, span: entry.Pos()}
}
