package symbols

import (
	"fmt"

	"quill/internal/ast"
	"quill/internal/diag"
	"quill/internal/source"
	"quill/internal/target"
)

// ItemKind classifies a top-level declaration.
type ItemKind uint8

const (
	ItemCallable ItemKind = iota
	ItemNewtype
)

func (k ItemKind) String() string {
	if k == ItemNewtype {
		return "newtype"
	}
	return "callable"
}

// Item is one registered top-level declaration.
type Item struct {
	ID         ItemID
	Package    source.PackageID
	Namespace  NamespaceID
	Name       string
	Kind       ItemKind
	Visibility ast.Visibility

	// Intrinsic is set for callables whose body specialization is declared
	// `body intrinsic;`. Intrinsic names bind to fixed runtime entry points
	// and must be globally unique.
	Intrinsic bool
	// SimulatableIntrinsic is set by the @SimulatableIntrinsic() attribute:
	// capability analysis treats the callable as a primitive gate and does
	// not descend into its body.
	SimulatableIntrinsic bool
	// EntryPoint is set by the @EntryPoint() attribute.
	EntryPoint bool

	Callable *ast.CallableDecl // set for ItemCallable
	Newtype  *ast.NewtypeDecl  // set for ItemNewtype

	Span     source.Span // whole declaration
	NameSpan source.Span
}

// droppedItem records a declaration removed by the conditional-compilation
// pass so references can report NotAvailable instead of NotFound.
type droppedItem struct {
	required target.CapabilityFlags
}

// GlobalTable is the per-compilation registry of all top-level items, keyed
// by (namespace, name), across every stacked package.
type GlobalTable struct {
	Tree *NamespaceTree

	items      []Item // index 0 unused; ItemID is the index
	byName     map[NamespaceID]map[string]ItemID
	intrinsics map[string]ItemID
	dropped    map[NamespaceID]map[string]droppedItem
}

// NewGlobalTable creates an empty table over the given namespace tree.
func NewGlobalTable(tree *NamespaceTree) *GlobalTable {
	return &GlobalTable{
		Tree:       tree,
		items:      make([]Item, 1),
		byName:     make(map[NamespaceID]map[string]ItemID),
		intrinsics: make(map[string]ItemID),
		dropped:    make(map[NamespaceID]map[string]droppedItem),
	}
}

// AddPackage walks the package's top-level items and registers each
// (namespace, name). Duplicates are reported and the first-seen definition
// wins, so downstream passes still see a usable table. Items whose @Config
// requirement is not satisfied by caps are dropped but remembered by name.
func (gt *GlobalTable) AddPackage(pkgID source.PackageID, pkg *ast.Package, caps target.CapabilityFlags, reporter diag.Reporter) {
	for _, ns := range pkg.Namespaces {
		nsID := gt.Tree.Insert(ns.NameParts())
		for _, item := range ns.Items {
			gt.addItem(pkgID, nsID, item, caps, reporter)
		}
	}
}

func (gt *GlobalTable) addItem(pkgID source.PackageID, nsID NamespaceID, item *ast.Item, caps target.CapabilityFlags, reporter diag.Reporter) {
	var name *ast.Ident
	kind := ItemCallable
	var callable *ast.CallableDecl
	var newtype *ast.NewtypeDecl

	switch decl := item.Kind.(type) {
	case *ast.CallableDecl:
		name = decl.Name
		callable = decl
	case *ast.NewtypeDecl:
		name = decl.Name
		kind = ItemNewtype
		newtype = decl
	default:
		// opens and import/export items are scope directives, not named
		// declarations
		return
	}

	if required, gated := configRequirement(item); gated && !caps.Satisfies(required) {
		byNS := gt.dropped[nsID]
		if byNS == nil {
			byNS = make(map[string]droppedItem)
			gt.dropped[nsID] = byNS
		}
		byNS[name.Name] = droppedItem{required: required}
		return
	}

	intrinsic := callable != nil && hasIntrinsicSpec(callable)
	if intrinsic {
		if prevID, ok := gt.intrinsics[name.Name]; ok {
			prev := gt.Item(prevID)
			diag.ReportError(reporter, diag.ResDuplicateIntrinsic, name.Pos(),
				fmt.Sprintf("duplicate intrinsic `%s`", name.Name)).
				WithNote(prev.NameSpan, "previous intrinsic declared here").
				Emit()
			return
		}
	}

	byNS := gt.byName[nsID]
	if byNS == nil {
		byNS = make(map[string]ItemID)
		gt.byName[nsID] = byNS
	}
	if prevID, ok := byNS[name.Name]; ok {
		prev := gt.Item(prevID)
		diag.ReportError(reporter, diag.ResDuplicate, name.Pos(),
			fmt.Sprintf("duplicate declaration of `%s` in namespace %s",
				name.Name, gt.Tree.Path(nsID))).
			WithNote(prev.NameSpan, "previous declaration here").
			Emit()
		return
	}

	id := ItemID(len(gt.items)) //nolint:gosec // bounded by item count
	gt.items = append(gt.items, Item{
		ID:                   id,
		Package:              pkgID,
		Namespace:            nsID,
		Name:                 name.Name,
		Kind:                 kind,
		Visibility:           item.Visibility,
		Intrinsic:            intrinsic,
		SimulatableIntrinsic: item.Attr("SimulatableIntrinsic") != nil,
		EntryPoint:           item.Attr("EntryPoint") != nil,
		Callable:             callable,
		Newtype:              newtype,
		Span:                 item.Pos(),
		NameSpan:             name.Pos(),
	})
	byNS[name.Name] = id
	if intrinsic {
		gt.intrinsics[name.Name] = id
	}
}

// configRequirement extracts the capability requirement of a @Config(...)
// attribute. Unknown capability names gate the item on nothing, matching the
// permissive handling of unknown attributes elsewhere.
func configRequirement(item *ast.Item) (target.CapabilityFlags, bool) {
	attr := item.Attr("Config")
	if attr == nil {
		return 0, false
	}
	var required target.CapabilityFlags
	if tuple, ok := attr.Arg.(*ast.TupleExpr); ok {
		for _, arg := range tuple.Items {
			path, ok := arg.(*ast.PathExpr)
			if !ok || len(path.Path.Segments) != 1 {
				continue
			}
			if flags, ok := target.ParseCapability(path.Path.Name().Name); ok {
				required |= flags
			}
		}
	}
	return required, true
}

func hasIntrinsicSpec(decl *ast.CallableDecl) bool {
	for _, spec := range decl.Specs {
		if spec.Kind == ast.SpecBody && spec.Gen == ast.GenIntrinsic {
			return true
		}
	}
	return false
}

// Lookup finds the item registered under (ns, name).
func (gt *GlobalTable) Lookup(ns NamespaceID, name string) (ItemID, bool) {
	id, ok := gt.byName[ns][name]
	return id, ok
}

// Dropped reports whether (ns, name) was removed by conditional compilation,
// and if so which capabilities it requires.
func (gt *GlobalTable) Dropped(ns NamespaceID, name string) (target.CapabilityFlags, bool) {
	d, ok := gt.dropped[ns][name]
	return d.required, ok
}

// Item returns the registered item for an id. Ids only ever come from this
// table, so a miss is an internal invariant failure.
func (gt *GlobalTable) Item(id ItemID) *Item {
	if !id.IsValid() || int(id) >= len(gt.items) {
		panic(fmt.Sprintf("invalid item id %d", id))
	}
	return &gt.items[id]
}

// Len returns the number of registered items.
func (gt *GlobalTable) Len() int {
	return len(gt.items) - 1
}

// QualifiedName renders Namespace.Name for diagnostics and stack traces.
func (gt *GlobalTable) QualifiedName(id ItemID) string {
	it := gt.Item(id)
	path := gt.Tree.Path(it.Namespace)
	if path == "" {
		return it.Name
	}
	return path + "." + it.Name
}

// Items iterates registered items in declaration order.
func (gt *GlobalTable) Items(visit func(*Item) bool) {
	for i := 1; i < len(gt.items); i++ {
		if !visit(&gt.items[i]) {
			return
		}
	}
}

// EntryPoints returns every item flagged @EntryPoint() in the given package.
func (gt *GlobalTable) EntryPoints(pkg source.PackageID) []ItemID {
	var out []ItemID
	for i := 1; i < len(gt.items); i++ {
		if gt.items[i].EntryPoint && gt.items[i].Package == pkg {
			out = append(out, gt.items[i].ID)
		}
	}
	return out
}
