package symbols

// NamespaceID identifies a node in the namespace tree. The root namespace is
// always id 0; core library namespaces are seeded right after it and keep
// low, stable ids.
type NamespaceID uint32

// RootNamespaceID is the id of the unnamed root namespace.
const RootNamespaceID NamespaceID = 0

// ItemID identifies a top-level item in the global table.
type ItemID uint32

// NoItemID marks the absence of an item reference.
const NoItemID ItemID = 0

// IsValid reports whether the id refers to a registered item.
func (id ItemID) IsValid() bool { return id != NoItemID }

// ParamID identifies a type parameter of a declared item.
type ParamID uint32
