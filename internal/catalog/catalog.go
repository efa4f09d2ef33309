package catalog

import (
	"encoding/binary"
	"sync"

	"github.com/sirupsen/logrus"

	"reifydb/internal/backend"
	"reifydb/internal/key"
	"reifydb/internal/reifyerr"
)

// namedStore is a generic, name-indexed VersionedContainer registry for
// the six entity kinds spec.md's NameKind enumerates (namespace, table,
// view, ring-buffer, dictionary, flow). Create/drop are transactional:
// they install both the definition and the name->id index entry under
// the same commit version, matching §4.8.
type namedStore[T any] struct {
	mu    sync.RWMutex
	byID  map[uint64]*VersionedContainer[T]
	kind  key.NameKind
	names backend.SingleVersion
}

func newNamedStore[T any](kind key.NameKind, names backend.SingleVersion) *namedStore[T] {
	return &namedStore[T]{byID: make(map[uint64]*VersionedContainer[T]), kind: kind, names: names}
}

func (s *namedStore[T]) lookupID(parentID uint64, name string) (uint64, bool, error) {
	v, ok, err := s.names.Get(key.NameIndexKey(s.kind, parentID, name))
	if err != nil || !ok {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(v), true, nil
}

// Create registers a new definition under id at version, failing with
// AlreadyExists if parentID/name is already taken by a live entry.
func (s *namedStore[T]) Create(version, id, parentID uint64, name string, def T) (*T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.lookupID(parentID, name); err != nil {
		return nil, err
	} else if ok {
		return nil, reifyerr.AlreadyExists(reifyerr.CodeAlreadyExists, "catalog entry named "+name+" already exists")
	}

	c := &VersionedContainer[T]{}
	c.Put(version, &def)
	s.byID[id] = c

	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, id)
	if err := s.names.Set(key.NameIndexKey(s.kind, parentID, name), idBytes); err != nil {
		return nil, err
	}
	return &def, nil
}

// Drop removes parentID/name's name index entry and installs a drop
// (None) entry at version for its id's container.
func (s *namedStore[T]) Drop(version, parentID uint64, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok, err := s.lookupID(parentID, name)
	if err != nil {
		return err
	}
	if !ok {
		return reifyerr.NotFound(reifyerr.CodeTableNotFound, "catalog entry named "+name+" not found")
	}
	c, ok := s.byID[id]
	if !ok {
		return reifyerr.Internal(reifyerr.CodeInternal, "name index points at unknown catalog id")
	}
	c.Put(version, nil)
	return s.names.Remove(key.NameIndexKey(s.kind, parentID, name))
}

// At returns the definition for id live at or before version.
func (s *namedStore[T]) At(id, version uint64) (*T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return c.At(version)
}

// ByName resolves parentID/name's current id via the name index and
// returns the definition live at or before version.
func (s *namedStore[T]) ByName(parentID uint64, name string, version uint64) (*T, bool, error) {
	s.mu.RLock()
	id, ok, err := s.lookupID(parentID, name)
	s.mu.RUnlock()
	if err != nil || !ok {
		return nil, false, err
	}
	def, ok := s.At(id, version)
	return def, ok, nil
}

// childStore holds entities addressed by (parentID, ownID) with no name
// uniqueness constraint of their own (columns, indexes, subscriptions,
// variant handlers, flow nodes/edges) — simpler than namedStore since
// there's nothing to dedupe by name, only an id to look up by.
type childStore[T any] struct {
	mu       sync.RWMutex
	byParent map[uint64]map[uint64]*VersionedContainer[T]
}

func newChildStore[T any]() *childStore[T] {
	return &childStore[T]{byParent: make(map[uint64]map[uint64]*VersionedContainer[T])}
}

func (s *childStore[T]) Create(version, parentID, id uint64, def T) *T {
	s.mu.Lock()
	defer s.mu.Unlock()
	children, ok := s.byParent[parentID]
	if !ok {
		children = make(map[uint64]*VersionedContainer[T])
		s.byParent[parentID] = children
	}
	c := &VersionedContainer[T]{}
	c.Put(version, &def)
	children[id] = c
	return &def
}

func (s *childStore[T]) Drop(version, parentID, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	children, ok := s.byParent[parentID]
	if !ok {
		return reifyerr.NotFound(reifyerr.CodeColumnNotFound, "catalog child entry not found")
	}
	c, ok := children[id]
	if !ok {
		return reifyerr.NotFound(reifyerr.CodeColumnNotFound, "catalog child entry not found")
	}
	c.Put(version, nil)
	return nil
}

func (s *childStore[T]) At(parentID, id, version uint64) (*T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	children, ok := s.byParent[parentID]
	if !ok {
		return nil, false
	}
	c, ok := children[id]
	if !ok {
		return nil, false
	}
	return c.At(version)
}

// ListAt returns every live child of parentID at version, in id order
// for deterministic output (e.g. column lists).
func (s *childStore[T]) ListAt(parentID, version uint64) []*T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	children := s.byParent[parentID]
	ids := make([]uint64, 0, len(children))
	for id := range children {
		ids = append(ids, id)
	}
	sortUint64s(ids)
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		if def, ok := children[id].At(version); ok {
			out = append(out, def)
		}
	}
	return out
}

func sortUint64s(s []uint64) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Catalog is C8: the process-wide versioned definition store. One
// instance is created per database and shared across transactions; per
// §5 it is a process-wide singleton, read concurrently and written
// under each entity store's own lock.
type Catalog struct {
	Namespaces   *namedStore[NamespaceDef]
	Tables       *namedStore[TableDef]
	Views        *namedStore[ViewDef]
	RingBuffers  *namedStore[RingBufferDef]
	Dictionaries *namedStore[DictionaryDef]
	Flows        *namedStore[FlowDef]

	Columns          *childStore[ColumnDef]
	Indexes          *childStore[IndexDef]
	Subscriptions    *childStore[SubscriptionDef]
	VariantHandlers  *childStore[VariantHandlerDef]
	FlowNodes        *childStore[FlowNodeDef]
	FlowEdges        *childStore[FlowEdgeDef]
	RingBufferMetas  map[uint64]*RingBufferMeta
	ringBufferMetaMu sync.Mutex

	seq   backend.SingleVersion
	seqMu sync.Mutex
	log   *logrus.Entry
}

// New creates a Catalog backed by names/seq for its persisted
// single-version state (name indices and id sequence counters, per
// §4.14's "Persisted state").
func New(names, seq backend.SingleVersion, log *logrus.Entry) *Catalog {
	return &Catalog{
		Namespaces:      newNamedStore[NamespaceDef](key.NameKindNamespace, names),
		Tables:          newNamedStore[TableDef](key.NameKindTable, names),
		Views:           newNamedStore[ViewDef](key.NameKindView, names),
		RingBuffers:     newNamedStore[RingBufferDef](key.NameKindRingBuffer, names),
		Dictionaries:    newNamedStore[DictionaryDef](key.NameKindDictionary, names),
		Flows:           newNamedStore[FlowDef](key.NameKindFlow, names),
		Columns:         newChildStore[ColumnDef](),
		Indexes:         newChildStore[IndexDef](),
		Subscriptions:   newChildStore[SubscriptionDef](),
		VariantHandlers: newChildStore[VariantHandlerDef](),
		FlowNodes:       newChildStore[FlowNodeDef](),
		FlowEdges:       newChildStore[FlowEdgeDef](),
		RingBufferMetas: make(map[uint64]*RingBufferMeta),
		seq:             seq,
		log:             log,
	}
}

// NextID allocates the next id from a named sequence counter
// (next_table_id, next_view_id, next_column_id, next_row_number per
// source, next_flow_node/edge_id, ...), persisting it immediately so a
// restart never reissues an id.
func (c *Catalog) NextID(sequence string) (uint64, error) {
	c.seqMu.Lock()
	defer c.seqMu.Unlock()

	k := key.SequenceKey(sequence)
	v, ok, err := c.seq.Get(k)
	if err != nil {
		return 0, err
	}
	var next uint64 = 1
	if ok {
		next = binary.BigEndian.Uint64(v) + 1
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := c.seq.Set(k, buf); err != nil {
		return 0, err
	}
	return next, nil
}

// RingBufferMeta returns the mutable head/tail/count state for
// ringBufferID, creating a fresh zeroed one if this is its first use.
func (c *Catalog) RingBufferMeta(ringBufferID uint64) *RingBufferMeta {
	c.ringBufferMetaMu.Lock()
	defer c.ringBufferMetaMu.Unlock()
	m, ok := c.RingBufferMetas[ringBufferID]
	if !ok {
		m = &RingBufferMeta{}
		c.RingBufferMetas[ringBufferID] = m
	}
	return m
}
