package ir

// MetaKind is the closed set of metadata node variants.
type MetaKind uint8

const (
	// MetaString is a literal string leaf.
	MetaString MetaKind = iota
	// MetaValue is a leaf referencing a constant, global or function.
	MetaValue
	// MetaList is an ordered list of children; NoMetaID marks a null child.
	MetaList
)

// MetaNode is an entry of the metadata arena.
type MetaNode struct {
	Kind     MetaKind
	Str      string
	Value    Value
	Children []MetaID
}

// NamedMeta binds a name to a list of root nodes.
type NamedMeta struct {
	Name  string
	Roots []MetaID
}
