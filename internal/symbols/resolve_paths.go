package symbols

import (
	"fmt"
	"sort"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/source"
)

// candidate is one possible binding found during open or prelude search.
type candidate struct {
	entry    surfaceEntry
	ns       NamespaceID
	openSpan source.Span
}

// resolveTermPath binds a path in term position and records the result,
// substituting the sentinel binding on failure so traversal continues.
func (r *Resolver) resolveTermPath(path *ast.Path) {
	if len(path.Segments) == 1 {
		r.bind(path.NodeID(), r.resolveName(path.Name().Name, path.Pos(), false))
		return
	}
	r.bind(path.NodeID(), r.resolveQualified(path))
}

// resolveTypePath binds a path in type position. Primitive type names are
// reserved and take precedence over declared items.
func (r *Resolver) resolveTypePath(path *ast.Path) {
	if len(path.Segments) == 1 {
		name := path.Name().Name
		if prim, ok := PrimTyByName(name); ok {
			res := Res{Kind: ResPrim, Prim: prim}
			if prim == PrimUnit {
				res = Res{Kind: ResUnit}
			}
			r.bind(path.NodeID(), res)
			return
		}
		r.bind(path.NodeID(), r.resolveName(name, path.Pos(), true))
		return
	}
	r.bind(path.NodeID(), r.resolveQualified(path))
}

// resolveName runs the unqualified binding algorithm:
//
//  1. local scopes innermost to outermost (locals first, then the scope's
//     imports);
//  2. the current namespace's surface;
//  3. every opened namespace, where finding the name in more than one
//     distinct namespace is ambiguous;
//  4. the prelude namespaces;
//  5. otherwise NotFound, or NotAvailable when the name was dropped by
//     conditional compilation.
func (r *Resolver) resolveName(name string, span source.Span, typePos bool) Res {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		s := r.scopes[i]
		if !typePos {
			if local, ok := s.locals[name]; ok {
				return Res{Kind: ResLocal, Local: local.node}
			}
		}
		if imp, ok := s.imports[name]; ok && !imp.entry.isNS {
			return r.entryRes(imp.entry)
		}
	}

	if entry, ok := r.surfaceLookup(r.curNS, name); ok {
		return r.entryRes(entry)
	}

	if res, done := r.searchOpens(name, span); done {
		return res
	}
	if res, done := r.searchPrelude(name, span); done {
		return res
	}

	return r.reportUnresolved(name, name, span)
}

// searchOpens looks the name up in every opened namespace across the scope
// stack. Candidates that resolve to the same item merge; genuinely distinct
// items are ambiguous.
func (r *Resolver) searchOpens(name string, span source.Span) (Res, bool) {
	var found []candidate
	for i := len(r.scopes) - 1; i >= 0; i-- {
		for _, ref := range r.scopes[i].opens[""] {
			if entry, ok := r.surfaceLookup(ref.ns, name); ok {
				found = appendCandidate(found, candidate{entry: entry, ns: ref.ns, openSpan: ref.span})
			}
		}
	}
	switch len(found) {
	case 0:
		return Res{}, false
	case 1:
		return r.entryRes(found[0].entry), true
	}
	r.reportAmbiguous(name, span, found)
	return Res{Kind: ResErr}, true
}

func (r *Resolver) searchPrelude(name string, span source.Span) (Res, bool) {
	var found []candidate
	for _, path := range preludeNamespaces {
		ns, ok := r.tree.Find(path)
		if !ok {
			continue
		}
		if entry, ok := r.surfaceLookup(ns, name); ok {
			found = appendCandidate(found, candidate{entry: entry, ns: ns})
		}
	}
	switch len(found) {
	case 0:
		return Res{}, false
	case 1:
		return r.entryRes(found[0].entry), true
	}
	names := make([]string, 0, len(found))
	for _, c := range found {
		names = append(names, r.tree.Path(c.ns))
	}
	sort.Strings(names)
	diag.ReportError(r.reporter, diag.ResAmbiguousPrelude, span,
		fmt.Sprintf("`%s` is ambiguous between prelude namespaces %s", name, quoteList(names))).
		Emit()
	return Res{Kind: ResErr}, true
}

// resolveQualified binds a dotted path: the qualifier selects a namespace
// through aliases, imports, the absolute tree, the current namespace, or an
// opened namespace; the final segment is then looked up in that namespace's
// surface.
func (r *Resolver) resolveQualified(path *ast.Path) Res {
	parts := path.Parts()
	name := parts[len(parts)-1]
	qualifier := parts[:len(parts)-1]
	head := qualifier[0]
	rest := qualifier[1:]

	// aliased opens: all namespaces grouped under the alias contribute;
	// clashes across the group on the referenced name are ambiguous unless
	// they agree on the item
	for i := len(r.scopes) - 1; i >= 0; i-- {
		group := r.scopes[i].opens[head]
		if len(group) == 0 {
			continue
		}
		var found []candidate
		for _, ref := range group {
			holder, ok := r.descendSurface(ref.ns, rest)
			if !ok {
				continue
			}
			if entry, ok := r.surfaceLookup(holder, name); ok {
				found = appendCandidate(found, candidate{entry: entry, ns: ref.ns, openSpan: ref.span})
			}
		}
		switch len(found) {
		case 0:
			continue
		case 1:
			return r.entryRes(found[0].entry)
		default:
			r.reportAmbiguous(name, path.Pos(), found)
			return Res{Kind: ResErr}
		}
	}

	// an imported namespace name opens a qualification root in this scope
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if imp, ok := r.scopes[i].imports[head]; ok && imp.entry.isNS {
			if holder, ok := r.descendSurface(imp.entry.ns, rest); ok {
				if entry, ok := r.surfaceLookup(holder, name); ok {
					return r.entryRes(entry)
				}
				return r.reportQualifiedMiss(holder, name, path)
			}
		}
	}

	// absolute, relative to the current namespace, then relative to each
	// open; distinct hits are ambiguous
	var found []candidate
	var missHolder NamespaceID
	var haveMiss bool
	consider := func(root NamespaceID, openSpan source.Span) {
		holder, ok := r.descendSurface(root, qualifier)
		if !ok {
			return
		}
		if entry, ok := r.surfaceLookup(holder, name); ok {
			found = appendCandidate(found, candidate{entry: entry, ns: holder, openSpan: openSpan})
			return
		}
		if !haveMiss {
			missHolder, haveMiss = holder, true
		}
	}
	consider(RootNamespaceID, source.Span{})
	consider(r.curNS, source.Span{})
	for i := len(r.scopes) - 1; i >= 0; i-- {
		for _, ref := range r.scopes[i].opens[""] {
			consider(ref.ns, ref.span)
		}
	}

	switch len(found) {
	case 1:
		return r.entryRes(found[0].entry)
	default:
		if len(found) > 1 {
			r.reportAmbiguous(name, path.Pos(), found)
			return Res{Kind: ResErr}
		}
	}
	if haveMiss {
		return r.reportQualifiedMiss(missHolder, name, path)
	}
	return r.reportUnresolved(name, path.String(), path.Pos())
}

// reportQualifiedMiss reports a name missing from a namespace that was
// itself found, distinguishing conditionally-dropped items.
func (r *Resolver) reportQualifiedMiss(holder NamespaceID, name string, path *ast.Path) Res {
	if required, dropped := r.table.Dropped(holder, name); dropped {
		diag.ReportError(r.reporter, diag.ResNotAvailable, path.Pos(),
			fmt.Sprintf("`%s` is declared in %s but not available for the current target",
				name, r.tree.Path(holder))).
			WithNote(path.Pos(), "requires target capability "+required.String()).
			Emit()
		return Res{Kind: ResErr}
	}
	diag.ReportError(r.reporter, diag.ResNotFound, path.Pos(),
		fmt.Sprintf("`%s` not found in namespace %s", name, r.tree.Path(holder))).
		Emit()
	return Res{Kind: ResErr}
}

// reportUnresolved reports NotFound, upgrading to NotAvailable when some
// reachable namespace declares the name but dropped it for the target.
func (r *Resolver) reportUnresolved(name, spelled string, span source.Span) Res {
	check := []NamespaceID{r.curNS}
	for i := len(r.scopes) - 1; i >= 0; i-- {
		for _, ref := range r.scopes[i].opens[""] {
			check = append(check, ref.ns)
		}
	}
	for _, path := range preludeNamespaces {
		if ns, ok := r.tree.Find(path); ok {
			check = append(check, ns)
		}
	}
	for _, ns := range check {
		if required, dropped := r.table.Dropped(ns, name); dropped {
			diag.ReportError(r.reporter, diag.ResNotAvailable, span,
				fmt.Sprintf("`%s` is declared in %s but not available for the current target",
					name, r.tree.Path(ns))).
				WithNote(span, "requires target capability "+required.String()).
				Emit()
			return Res{Kind: ResErr}
		}
	}
	diag.ReportError(r.reporter, diag.ResNotFound, span,
		fmt.Sprintf("`%s` not found", spelled)).
		Emit()
	return Res{Kind: ResErr}
}

func (r *Resolver) reportAmbiguous(name string, span source.Span, found []candidate) {
	builder := diag.ReportError(r.reporter, diag.ResAmbiguous, span,
		fmt.Sprintf("`%s` could refer to the item in %s or in %s",
			name, r.tree.Path(found[0].ns), r.tree.Path(found[1].ns)))
	for _, c := range found {
		if !c.openSpan.Empty() {
			builder.WithNote(c.openSpan, fmt.Sprintf("%s opened here", r.tree.Path(c.ns)))
		}
	}
	builder.Emit()
}

// appendCandidate merges candidates that resolve to the same underlying
// item: aliases of different namespaces re-exporting one item are not
// ambiguous.
func appendCandidate(found []candidate, c candidate) []candidate {
	for _, prev := range found {
		if prev.entry.same(c.entry) {
			return found
		}
	}
	return append(found, c)
}

func quoteList(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += " and "
		}
		out += "`" + n + "`"
	}
	return out
}
