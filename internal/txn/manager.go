// Package txn implements C6, the TransactionManager: a single
// transaction's pending-writes buffer, read tracker, and the borrowed
// read version, bridging store.Store and mvcc.Oracle the way the
// teacher's TxContext (internal/storage/mvcc.go) bridges MVCCTable and
// MVCCManager — generalized from the teacher's whole-table write/read
// sets to this store's EncodedKey-keyed pending map.
package txn

import (
	"sort"
	"sync"

	"reifydb/internal/backend"
	"reifydb/internal/key"
	"reifydb/internal/mvcc"
	"reifydb/internal/reifyerr"
	"reifydb/internal/store"
)

type writeEntry struct {
	value     []byte
	tombstone bool
}

// PostCommitEvent is emitted on a successful commit, carrying the applied
// deltas and the version they were applied under, for consumption by the
// commit log / CDC pipeline (C7).
type PostCommitEvent struct {
	Version Version
	Deltas  []backend.Delta
}

// Version is a commit or read version, matching mvcc.Version.
type Version = mvcc.Version

// Transaction holds one transaction's pending writes, read tracker, and
// borrowed read version against a store.Store and mvcc.Oracle pair.
type Transaction struct {
	mu sync.Mutex

	s      *store.Store
	oracle *mvcc.Oracle

	readVersion Version
	done        bool

	pendingOrder []string
	pendingKeys  map[string]key.Key
	pending      map[string]writeEntry

	readKeys   map[string]struct{}
	readRanges []key.Range
}

// Begin borrows a read version from the oracle and returns a new
// Transaction bound to it.
func Begin(s *store.Store, o *mvcc.Oracle) *Transaction {
	return &Transaction{
		s:           s,
		oracle:      o,
		readVersion: o.BeginRead(),
		pendingKeys: make(map[string]key.Key),
		pending:     make(map[string]writeEntry),
		readKeys:    make(map[string]struct{}),
	}
}

// ReadVersion returns the version this transaction reads as of.
func (tx *Transaction) ReadVersion() Version { return tx.readVersion }

func errClosed() error {
	return reifyerr.Internal(reifyerr.CodeInternal, "transaction already committed or rolled back")
}

// Get checks pending writes first (returning the pending value, or "not
// found" if the pending entry is a tombstone), then falls back to the
// store at the borrowed read version. Either way the key is recorded in
// the read tracker for commit-time conflict detection.
func (tx *Transaction) Get(k key.Key) ([]byte, bool, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, false, errClosed()
	}
	ks := string(k.Bytes())
	tx.readKeys[ks] = struct{}{}

	if w, ok := tx.pending[ks]; ok {
		if w.tombstone {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	return tx.s.Get(k, tx.readVersion)
}

// ContainsKey is Get without the value.
func (tx *Transaction) ContainsKey(k key.Key) (bool, error) {
	_, ok, err := tx.Get(k)
	return ok, err
}

// Set buffers a write to pending and records it in the write/conflict
// set; nothing reaches the store until Commit.
func (tx *Transaction) Set(k key.Key, v []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return errClosed()
	}
	tx.stage(k, writeEntry{value: append([]byte(nil), v...)})
	return nil
}

// Remove buffers a tombstone to pending.
func (tx *Transaction) Remove(k key.Key) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return errClosed()
	}
	tx.stage(k, writeEntry{tombstone: true})
	return nil
}

func (tx *Transaction) stage(k key.Key, w writeEntry) {
	ks := string(k.Bytes())
	if _, exists := tx.pending[ks]; !exists {
		tx.pendingOrder = append(tx.pendingOrder, ks)
		tx.pendingKeys[ks] = k
	}
	tx.pending[ks] = w
}

// Range merges pending entries within r with a store range scan at the
// read version: pending tombstones suppress store rows, pending values
// override or add rows, and the range is recorded in the read tracker.
func (tx *Transaction) Range(r key.Range) ([]store.Item, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, errClosed()
	}
	tx.readRanges = append(tx.readRanges, r)

	items, err := tx.s.Range(r, tx.readVersion)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]store.Item, len(items))
	for _, it := range items {
		merged[string(it.Key.Bytes())] = it
	}
	for ks, w := range tx.pending {
		k := tx.pendingKeys[ks]
		if !r.Contains(k) {
			continue
		}
		if w.tombstone {
			delete(merged, ks)
			continue
		}
		merged[ks] = store.Item{Key: k, Value: w.value, Version: tx.readVersion}
	}

	out := make([]store.Item, 0, len(merged))
	for _, it := range merged {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

// conflictSet is the union of keys this transaction read and wrote,
// checked by the oracle against every write set committed since
// readVersion.
func (tx *Transaction) conflictSet() map[string]struct{} {
	set := make(map[string]struct{}, len(tx.readKeys)+len(tx.pending))
	for k := range tx.readKeys {
		set[k] = struct{}{}
	}
	for k := range tx.pending {
		set[k] = struct{}{}
	}
	return set
}

// Commit flushes pending writes to the store atomically under a new
// commit version from the oracle. On success it returns a
// PostCommitEvent; on conflict it returns a retryable Conflict error and
// the transaction must not be reused. Either way the borrowed read
// version is released.
func (tx *Transaction) Commit() (*PostCommitEvent, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return nil, errClosed()
	}
	tx.done = true
	defer tx.oracle.DoneRead(tx.readVersion)

	if len(tx.pending) == 0 {
		return &PostCommitEvent{Version: tx.readVersion}, nil
	}

	version, err := tx.oracle.NewCommit(tx.readVersion, tx.conflictSet())
	if err != nil {
		return nil, err
	}

	deltas := make([]backend.Delta, 0, len(tx.pendingOrder))
	for _, ks := range tx.pendingOrder {
		w := tx.pending[ks]
		deltas = append(deltas, backend.Delta{
			Key:       tx.pendingKeys[ks],
			Value:     w.value,
			Tombstone: w.tombstone,
		})
	}
	if err := tx.s.Commit(version, deltas); err != nil {
		return nil, err
	}
	return &PostCommitEvent{Version: version, Deltas: deltas}, nil
}

// Rollback discards pending writes and releases the borrowed read
// version without touching the store.
func (tx *Transaction) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.done {
		return
	}
	tx.done = true
	tx.oracle.DoneRead(tx.readVersion)
}
