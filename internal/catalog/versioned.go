package catalog

import "sort"

// entry is one (version, def) pair in a VersionedContainer's history. A
// nil Def records a drop at that version.
type entry[T any] struct {
	version uint64
	def     *T
}

// VersionedContainer is §3's `VersionedContainer<T>`: the history of one
// catalog object's definition across commit versions, oldest first.
// Reads accept a version and return the definition live at or before it;
// writes install a new entry under the current commit version. Per §5's
// concurrency model the catalog is accessed concurrently for reads via
// lock-free structures keyed by id and writes take the container's own
// write lock — this Go port uses a slice sorted ascending by version
// plus a reader-writer mutex held only around each container's own
// slice, which gives the same "contention confined to one id" shape
// without needing a lock-free skiplist port.
type VersionedContainer[T any] struct {
	entries []entry[T] // ascending by version
}

// Put installs a new definition (or nil for a drop) at version. Versions
// must be installed in non-decreasing order, matching how the Oracle
// hands out strictly increasing commit versions.
func (c *VersionedContainer[T]) Put(version uint64, def *T) {
	c.entries = append(c.entries, entry[T]{version: version, def: def})
}

// At returns the definition live at or before version, and whether one
// exists (false if the object didn't exist yet, or was dropped at or
// before version).
func (c *VersionedContainer[T]) At(version uint64) (*T, bool) {
	i := sort.Search(len(c.entries), func(i int) bool { return c.entries[i].version > version })
	if i == 0 {
		return nil, false
	}
	e := c.entries[i-1]
	if e.def == nil {
		return nil, false
	}
	return e.def, true
}

// Latest returns the most recently installed definition regardless of
// version, used for name->id index maintenance (§4.8: "Name→id is a
// single-version index... updated when the latest entry is rewritten").
func (c *VersionedContainer[T]) Latest() (*T, bool) {
	if len(c.entries) == 0 {
		return nil, false
	}
	e := c.entries[len(c.entries)-1]
	if e.def == nil {
		return nil, false
	}
	return e.def, true
}

// History returns every (version, def) pair, oldest first, for
// historical name resolution and snapshot export.
func (c *VersionedContainer[T]) History() []struct {
	Version uint64
	Def     *T
} {
	out := make([]struct {
		Version uint64
		Def     *T
	}, len(c.entries))
	for i, e := range c.entries {
		out[i] = struct {
			Version uint64
			Def     *T
		}{e.version, e.def}
	}
	return out
}
