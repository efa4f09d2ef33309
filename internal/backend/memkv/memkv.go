// Package memkv implements an in-memory Backend. It favors a sorted-slice
// skiplist-style key index the way the teacher's internal/storage package
// favors a simple explicit model over a real page manager (see
// internal/storage/db.go's package doc): easy to read and test, sufficient
// for an embedded/edge single-process store.
package memkv

import (
	"sort"
	"sync"

	"reifydb/internal/backend"
	"reifydb/internal/key"
	"reifydb/internal/reifyerr"
)

type versionedEntry struct {
	version   uint64
	value     []byte
	tombstone bool
}

// Backend is a fully in-memory implementation of backend.Backend.
type Backend struct {
	mu sync.RWMutex

	// sorted index of distinct multi-version keys
	mvKeys    []key.Key
	mvByKey   map[string][]versionedEntry // newest-first

	svKeys  []key.Key
	svByKey map[string][]byte

	cdcByVersion map[uint64]backend.CDCRecord
	cdcVersions  []uint64 // kept sorted ascending
}

func New() *Backend {
	return &Backend{
		mvByKey:      make(map[string][]versionedEntry),
		svByKey:      make(map[string][]byte),
		cdcByVersion: make(map[uint64]backend.CDCRecord),
	}
}

func (b *Backend) Close() error { return nil }

// ---- SingleVersion ----

func (b *Backend) Single() backend.SingleVersion { return (*singleView)(b) }

type singleView Backend

func (s *singleView) b() *Backend { return (*Backend)(s) }

func (s *singleView) Get(k key.Key) ([]byte, bool, error) {
	b := s.b()
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.svByKey[string(k.Bytes())]
	return v, ok, nil
}

func (s *singleView) Set(k key.Key, v []byte) error {
	b := s.b()
	b.mu.Lock()
	defer b.mu.Unlock()
	ks := string(k.Bytes())
	if _, exists := b.svByKey[ks]; !exists {
		insertSorted(&b.svKeys, k)
	}
	b.svByKey[ks] = append([]byte(nil), v...)
	return nil
}

func (s *singleView) Remove(k key.Key) error {
	b := s.b()
	b.mu.Lock()
	defer b.mu.Unlock()
	ks := string(k.Bytes())
	if _, exists := b.svByKey[ks]; exists {
		delete(b.svByKey, ks)
		removeSorted(&b.svKeys, k)
	}
	return nil
}

func (s *singleView) Range(r key.Range) (backend.SingleVersionIterator, error) {
	b := s.b()
	b.mu.RLock()
	defer b.mu.RUnlock()
	var items []backend.SingleVersionItem
	for _, k := range b.svKeys {
		if !r.Contains(k) {
			continue
		}
		items = append(items, backend.SingleVersionItem{Key: k, Value: b.svByKey[string(k.Bytes())]})
	}
	return &svIterator{items: items, pos: -1}, nil
}

type svIterator struct {
	items []backend.SingleVersionItem
	pos   int
}

func (it *svIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}
func (it *svIterator) Item() backend.SingleVersionItem { return it.items[it.pos] }
func (it *svIterator) Err() error                       { return nil }
func (it *svIterator) Close() error                     { return nil }

// ---- MultiVersion ----

func (b *Backend) Multi() backend.MultiVersion { return (*multiView)(b) }

type multiView Backend

func (m *multiView) b() *Backend { return (*Backend)(m) }

// latestAt returns the newest entry with version <= asOf, or (zero,false)
// if none exists (i.e. the key did not exist yet at that version).
func latestAt(entries []versionedEntry, asOf uint64) (versionedEntry, bool) {
	for _, e := range entries {
		if e.version <= asOf {
			return e, true
		}
	}
	return versionedEntry{}, false
}

func (m *multiView) Get(k key.Key, version uint64) ([]byte, bool, error) {
	b := m.b()
	b.mu.RLock()
	defer b.mu.RUnlock()
	entries := b.mvByKey[string(k.Bytes())]
	e, ok := latestAt(entries, version)
	if !ok || e.tombstone {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *multiView) Contains(k key.Key, version uint64) (bool, error) {
	_, ok, err := m.Get(k, version)
	return ok, err
}

func (m *multiView) Commit(version uint64, deltas []backend.Delta) error {
	b := m.b()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, d := range deltas {
		ks := string(d.Key.Bytes())
		entries, existed := b.mvByKey[ks]
		if !existed {
			insertSorted(&b.mvKeys, d.Key)
		}
		entry := versionedEntry{version: version, value: d.Value, tombstone: d.Tombstone}
		// Newest-first: prepend.
		b.mvByKey[ks] = append([]versionedEntry{entry}, entries...)
	}
	return nil
}

func (m *multiView) rangeItems(r key.Range, version uint64, reverse bool) []backend.MultiVersionItem {
	b := m.b()
	b.mu.RLock()
	defer b.mu.RUnlock()
	var items []backend.MultiVersionItem
	for _, k := range b.mvKeys {
		if !r.Contains(k) {
			continue
		}
		entries := b.mvByKey[string(k.Bytes())]
		e, ok := latestAt(entries, version)
		if !ok {
			continue
		}
		items = append(items, backend.MultiVersionItem{Key: k, Value: e.value, Tombstone: e.tombstone, Version: e.version})
	}
	if reverse {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return items
}

func (m *multiView) Range(r key.Range, version uint64) (backend.MultiVersionIterator, error) {
	return &mvIterator{items: m.rangeItems(r, version, false), pos: -1}, nil
}

func (m *multiView) RangeReverse(r key.Range, version uint64) (backend.MultiVersionIterator, error) {
	return &mvIterator{items: m.rangeItems(r, version, true), pos: -1}, nil
}

// Compact drops versions of a key strictly below the newest version that
// is <= floor, so at least one visible version survives for any key still
// present at the floor (§4.4).
func (m *multiView) Compact(floor uint64) error {
	b := m.b()
	b.mu.Lock()
	defer b.mu.Unlock()
	for ks, entries := range b.mvByKey {
		keepIdx := -1
		for i, e := range entries {
			if e.version <= floor {
				keepIdx = i
				break
			}
		}
		if keepIdx < 0 {
			continue // nothing at or below floor; keep everything
		}
		b.mvByKey[ks] = entries[:keepIdx+1]
	}
	return nil
}

type mvIterator struct {
	items []backend.MultiVersionItem
	pos   int
}

func (it *mvIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}
func (it *mvIterator) Item() backend.MultiVersionItem { return it.items[it.pos] }
func (it *mvIterator) Err() error                      { return nil }
func (it *mvIterator) Close() error                    { return nil }

// ---- CDC ----

func (b *Backend) CDC() backend.CDC { return (*cdcView)(b) }

type cdcView Backend

func (c *cdcView) b() *Backend { return (*Backend)(c) }

func (c *cdcView) Append(rec backend.CDCRecord) error {
	b := c.b()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.cdcByVersion[rec.Version]; exists {
		return reifyerr.AlreadyExists(reifyerr.CodeAlreadyExists, "cdc record already appended for this version")
	}
	b.cdcByVersion[rec.Version] = rec
	i := sort.Search(len(b.cdcVersions), func(i int) bool { return b.cdcVersions[i] >= rec.Version })
	b.cdcVersions = append(b.cdcVersions, 0)
	copy(b.cdcVersions[i+1:], b.cdcVersions[i:])
	b.cdcVersions[i] = rec.Version
	return nil
}

func (c *cdcView) Get(version uint64) (backend.CDCRecord, bool, error) {
	b := c.b()
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.cdcByVersion[version]
	return rec, ok, nil
}

func (c *cdcView) Count(version uint64) (int, error) {
	_, ok, _ := c.Get(version)
	if ok {
		return 1, nil
	}
	return 0, nil
}

func (c *cdcView) Range(start, end uint64) (backend.CDCIterator, error) {
	b := c.b()
	b.mu.RLock()
	defer b.mu.RUnlock()
	var items []backend.CDCRecord
	lo := sort.Search(len(b.cdcVersions), func(i int) bool { return b.cdcVersions[i] >= start })
	for i := lo; i < len(b.cdcVersions) && b.cdcVersions[i] <= end; i++ {
		items = append(items, b.cdcByVersion[b.cdcVersions[i]])
	}
	return &cdcIterator{items: items, pos: -1}, nil
}

type cdcIterator struct {
	items []backend.CDCRecord
	pos   int
}

func (it *cdcIterator) Next() bool {
	it.pos++
	return it.pos < len(it.items)
}
func (it *cdcIterator) Item() backend.CDCRecord { return it.items[it.pos] }
func (it *cdcIterator) Err() error                { return nil }
func (it *cdcIterator) Close() error              { return nil }

// ---- sorted key-slice helpers (the "skiplist-style" index) ----

func insertSorted(keys *[]key.Key, k key.Key) {
	i := sort.Search(len(*keys), func(i int) bool { return !(*keys)[i].Less(k) })
	*keys = append(*keys, key.Key{})
	copy((*keys)[i+1:], (*keys)[i:])
	(*keys)[i] = k
}

func removeSorted(keys *[]key.Key, k key.Key) {
	i := sort.Search(len(*keys), func(i int) bool { return !(*keys)[i].Less(k) })
	if i < len(*keys) && (*keys)[i].Compare(k) == 0 {
		*keys = append((*keys)[:i], (*keys)[i+1:]...)
	}
}
