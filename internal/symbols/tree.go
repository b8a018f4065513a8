package symbols

import "strings"

type nsNode struct {
	parent   NamespaceID
	name     string // final segment; empty for the root
	path     string // dotted path from the root
	children map[string]NamespaceID
}

// NamespaceTree is the hierarchical registry of namespaces. It is write-once
// during compilation setup (core namespaces are inserted first) and read-only
// during resolution; there is no removal operation.
type NamespaceTree struct {
	nodes []nsNode
}

// NewNamespaceTree creates a tree containing only the root namespace.
func NewNamespaceTree() *NamespaceTree {
	return &NamespaceTree{
		nodes: []nsNode{{children: make(map[string]NamespaceID)}},
	}
}

// Insert registers a dotted path and returns its id. Insertion is
// idempotent: an already-present path yields its existing id. Intermediate
// namespaces are created as needed.
func (t *NamespaceTree) Insert(path []string) NamespaceID {
	cur := RootNamespaceID
	for _, seg := range path {
		node := &t.nodes[cur]
		child, ok := node.children[seg]
		if !ok {
			child = NamespaceID(len(t.nodes)) //nolint:gosec // bounded by namespace count
			full := seg
			if node.path != "" {
				full = node.path + "." + seg
			}
			t.nodes = append(t.nodes, nsNode{
				parent:   cur,
				name:     seg,
				path:     full,
				children: make(map[string]NamespaceID),
			})
			t.nodes[cur].children[seg] = child
		}
		cur = child
	}
	return cur
}

// Get looks up a dotted path without inserting.
func (t *NamespaceTree) Get(path []string) (NamespaceID, bool) {
	cur := RootNamespaceID
	for _, seg := range path {
		child, ok := t.nodes[cur].children[seg]
		if !ok {
			return 0, false
		}
		cur = child
	}
	return cur, true
}

// Find is Get for a dotted string.
func (t *NamespaceTree) Find(dotted string) (NamespaceID, bool) {
	if dotted == "" {
		return RootNamespaceID, true
	}
	return t.Get(strings.Split(dotted, "."))
}

// Child returns the direct child with the given segment name.
func (t *NamespaceTree) Child(ns NamespaceID, seg string) (NamespaceID, bool) {
	id, ok := t.nodes[ns].children[seg]
	return id, ok
}

// Descend walks segment names starting from ns.
func (t *NamespaceTree) Descend(ns NamespaceID, segs []string) (NamespaceID, bool) {
	cur := ns
	for _, seg := range segs {
		child, ok := t.nodes[cur].children[seg]
		if !ok {
			return 0, false
		}
		cur = child
	}
	return cur, true
}

// IsDescendantOrSelf reports whether ns lies in the subtree rooted at root,
// including root itself. Used for import/export glob scoping.
func (t *NamespaceTree) IsDescendantOrSelf(ns, root NamespaceID) bool {
	for {
		if ns == root {
			return true
		}
		if ns == RootNamespaceID {
			return false
		}
		ns = t.nodes[ns].parent
	}
}

// Parent returns the owning namespace; the root is its own parent.
func (t *NamespaceTree) Parent(ns NamespaceID) NamespaceID {
	return t.nodes[ns].parent
}

// Path returns the dotted path of a namespace; empty for the root.
func (t *NamespaceTree) Path(ns NamespaceID) string {
	return t.nodes[ns].path
}

// Name returns the final path segment of a namespace.
func (t *NamespaceTree) Name(ns NamespaceID) string {
	return t.nodes[ns].name
}

// Len returns the number of namespaces, counting the root.
func (t *NamespaceTree) Len() int {
	return len(t.nodes)
}
