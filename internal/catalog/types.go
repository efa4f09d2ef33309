// Package catalog implements C8: a process-wide versioned store of
// schema definitions keyed by object id, generalizing the teacher's
// CatalogManager (internal/storage/catalog.go) from a flat,
// unversioned name->metadata map into a `VersionedContainer[T]` per
// entity so a query at commit version v sees the definition live at or
// before v (§3's "Catalog" primitive).
package catalog

// ColumnType names a leaf value type a ColumnDef or dictionary entry
// carries, independent of the column package's in-memory Kind so the
// catalog can be serialized without importing the execution-time
// container types.
type ColumnType string

// NamespaceDef is the top-level grouping for tables/views/ring-buffers.
type NamespaceDef struct {
	ID   uint64
	Name string
}

// ColumnDef describes one column of a table, view, or ring-buffer.
type ColumnDef struct {
	ID         uint64
	SourceID   uint64
	Name       string
	Type       ColumnType
	Nullable   bool
	Dictionary uint64 // 0 if not dictionary-encoded
}

// TableDef is a versioned table definition.
type TableDef struct {
	ID          uint64
	NamespaceID uint64
	Name        string
	Columns     []ColumnDef
	PrimaryKey  []string // column names, empty if none
}

// ViewDef is a versioned view definition (materialized by a flow).
type ViewDef struct {
	ID          uint64
	NamespaceID uint64
	Name        string
	Columns     []ColumnDef
	FlowID      uint64
}

// RingBufferDef is a versioned ring-buffer definition; Capacity is fixed
// at creation per the ring-buffer creation-metadata supplement.
type RingBufferDef struct {
	ID          uint64
	NamespaceID uint64
	Name        string
	Columns     []ColumnDef
	Capacity    uint64
}

// RingBufferMeta is the mutable head/tail/count counters for a ring
// buffer, stored separately from its immutable definition since it
// changes on every insert/evict rather than on schema migration.
type RingBufferMeta struct {
	Head  uint64
	Tail  uint64
	Count uint64
}

// IndexDef is a versioned secondary index definition.
type IndexDef struct {
	ID       uint64
	SourceID uint64
	Name     string
	Columns  []string
	Unique   bool
}

// DictionaryDef is a versioned per-column interning table definition.
type DictionaryDef struct {
	ID   uint64
	Name string
}

// FlowDef, FlowNodeDef, and FlowEdgeDef describe the dataflow graph
// backing a view, to the extent C8 needs to address them (full flow
// execution is out of scope per spec.md's Non-goals).
type FlowDef struct {
	ID   uint64
	Name string
}

type FlowNodeDef struct {
	FlowID uint64
	NodeID uint64
	Kind   string
}

type FlowEdgeDef struct {
	FlowID uint64
	EdgeID uint64
	From   uint64
	To     uint64
}

// SubscriptionDef is a versioned row-change subscription definition.
type SubscriptionDef struct {
	ID       uint64
	SourceID uint64
}

// VariantHandlerDef is a versioned handler binding for a variant type.
type VariantHandlerDef struct {
	VariantID uint64
	HandlerID uint64
	Name      string
}
