// Package store implements C4, the TransactionStore: composition of one or
// more backend.Backend tiers (hot/warm/cold) behind range iterators that
// yield unique logical keys per the contract in spec.md §4.4. Writes
// always land in the hot tier; retention.go demotes aged keys to colder
// tiers as they fall out of the active working set.
package store

import (
	"sort"

	"github.com/sirupsen/logrus"

	"reifydb/internal/backend"
	"reifydb/internal/key"
)

// Item is one unique logical key yielded by a Store range scan: the
// newest value visible at the requested version, with its commit version.
type Item struct {
	Key     key.Key
	Value   []byte
	Version uint64
}

// Store composes up to three backend.Backend tiers. Warm and Cold may be
// nil, in which case all data lives in Hot (a single-tier configuration).
type Store struct {
	Hot, Warm, Cold backend.Backend
	BatchSize       int
	log             *logrus.Entry

	// pendingFloor tracks the floor marked-but-not-yet-swept by a prior
	// two-stage retention pass; see retention.go.
	pendingFloor *uint64
}

func New(hot backend.Backend, log *logrus.Entry) *Store {
	return &Store{Hot: hot, BatchSize: 1000, log: log}
}

func (s *Store) WithWarm(b backend.Backend) *Store { s.Warm = b; return s }
func (s *Store) WithCold(b backend.Backend) *Store { s.Cold = b; return s }

// tiers returns the configured tiers in hot-to-cold order.
func (s *Store) tiers() []backend.Backend {
	var out []backend.Backend
	if s.Hot != nil {
		out = append(out, s.Hot)
	}
	if s.Warm != nil {
		out = append(out, s.Warm)
	}
	if s.Cold != nil {
		out = append(out, s.Cold)
	}
	return out
}

// Get returns the value visible at version, checking tiers from hottest
// to coldest and returning the first hit. A demoted key (see retention.go)
// keeps its older versions in the source tier, hidden above the demotion
// floor by a tombstone, so reads past the floor fall through to the
// colder tier.
func (s *Store) Get(k key.Key, version uint64) ([]byte, bool, error) {
	for _, t := range s.tiers() {
		v, ok, err := t.Multi().Get(k, version)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Contains is Get without the value.
func (s *Store) Contains(k key.Key, version uint64) (bool, error) {
	_, ok, err := s.Get(k, version)
	return ok, err
}

// Commit atomically appends deltas to the hot tier at version. New writes
// always land hot; they migrate to colder tiers only via retention.
func (s *Store) Commit(version uint64, deltas []backend.Delta) error {
	return s.Hot.Multi().Commit(version, deltas)
}

// Range performs a forward scan across all tiers merged into a single
// unique-logical-key stream, bounded to at most BatchSize distinct keys
// (or fewer if the range ends first). Tombstones suppress emission.
func (s *Store) Range(r key.Range, version uint64) ([]Item, error) {
	return s.scan(r, version, false)
}

// RangeReverse is Range in descending key order.
func (s *Store) RangeReverse(r key.Range, version uint64) ([]Item, error) {
	return s.scan(r, version, true)
}

func (s *Store) scan(r key.Range, version uint64, reverse bool) ([]Item, error) {
	type tierItem struct {
		backend.MultiVersionItem
	}
	var all []tierItem
	for _, t := range s.tiers() {
		var it backend.MultiVersionIterator
		var err error
		if reverse {
			it, err = t.Multi().RangeReverse(r, version)
		} else {
			it, err = t.Multi().Range(r, version)
		}
		if err != nil {
			return nil, err
		}
		for it.Next() {
			all = append(all, tierItem{it.Item()})
		}
		if err := it.Err(); err != nil {
			_ = it.Close()
			return nil, err
		}
		_ = it.Close()
	}

	sort.SliceStable(all, func(i, j int) bool {
		if reverse {
			return all[j].Key.Less(all[i].Key)
		}
		return all[i].Key.Less(all[j].Key)
	})

	// Collapse to one entry per logical key, keeping the highest
	// version among tiers (covers the rare case where retention is
	// mid-flight and a key briefly exists in two tiers at once).
	type collapsed struct {
		Item
		tombstone bool
	}
	var items []collapsed
	seen := map[string]int{} // key bytes -> index into items
	for _, ti := range all {
		ks := string(ti.Key.Bytes())
		if idx, ok := seen[ks]; ok {
			if ti.Version > items[idx].Version {
				items[idx] = collapsed{Item{Key: ti.Key, Value: ti.Value, Version: ti.Version}, ti.Tombstone}
			}
			continue
		}
		seen[ks] = len(items)
		items = append(items, collapsed{Item{Key: ti.Key, Value: ti.Value, Version: ti.Version}, ti.Tombstone})
	}

	// Drop tombstoned entries and cap at BatchSize distinct keys.
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.tombstone {
			continue
		}
		out = append(out, it.Item)
		if s.BatchSize > 0 && len(out) >= s.BatchSize {
			break
		}
	}
	return out, nil
}

func (s *Store) Close() error {
	for _, t := range s.tiers() {
		if err := t.Close(); err != nil {
			return err
		}
	}
	return nil
}
