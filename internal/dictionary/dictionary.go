// Package dictionary interns repeated column values behind a small
// integer id, the storage-side half of a dictionary-bound column
// (catalog.ColumnDef.Dictionary != 0). It is deliberately shared
// between internal/mutate (which encodes on write) and internal/volcano
// (which decodes on scan) rather than owned by either, since a codec
// both sides must agree on belongs to neither the write path nor the
// read path alone.
//
// Grounded on the teacher's column-store string interning idea absent
// from tinySQL itself (tinySQL has no dictionary encoding); the
// key layout follows internal/key.DictionaryEntryIndexKey/
// DictionaryValueIndexKey, themselves modeled on the teacher's
// id-indexed catalog entries (internal/storage/catalog.go).
package dictionary

import (
	"encoding/binary"
	"strconv"

	"reifydb/internal/column"
	"reifydb/internal/key"
)

// Reader is the minimal surface Decode needs; satisfied by both
// *txn.Transaction and the narrower volcano.Reader a Scan node holds.
type Reader interface {
	Get(k key.Key) ([]byte, bool, error)
}

// Writer is the minimal key-value surface Encode needs.
type Writer interface {
	Reader
	Set(k key.Key, v []byte) error
}

// IDAllocator mints a fresh dictionary entry id when a value hasn't
// been interned before; *catalog.Catalog satisfies this via NextID.
type IDAllocator interface {
	NextID(sequence string) (uint64, error)
}

func entrySequence(dictID uint64) string {
	return "dictionary_entry:" + strconv.FormatUint(dictID, 10)
}

// Encode interns v under dictID, returning a KindDictionaryId value
// pointing at its entry. Re-encoding an already-seen value returns the
// existing entry id rather than minting a duplicate. Undefined values
// pass through unchanged — there is nothing to intern.
func Encode(w Writer, alloc IDAllocator, dictID uint64, v column.Value) (column.Value, error) {
	if !v.Defined {
		return v, nil
	}
	payload := []byte(v.String())
	valueKey := key.DictionaryValueIndexKey(dictID, payload)

	existing, ok, err := w.Get(valueKey)
	if err != nil {
		return column.Value{}, err
	}
	if ok {
		return column.DictionaryIDValue(binary.BigEndian.Uint64(existing)), nil
	}

	entryID, err := alloc.NextID(entrySequence(dictID))
	if err != nil {
		return column.Value{}, err
	}
	idBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(idBytes, entryID)
	if err := w.Set(valueKey, idBytes); err != nil {
		return column.Value{}, err
	}
	if err := w.Set(key.DictionaryEntryIndexKey(dictID, entryID), payload); err != nil {
		return column.Value{}, err
	}
	return column.DictionaryIDValue(entryID), nil
}

// Decode resolves a previously interned entry id back to its original
// UTF-8 payload. It reports false, not an error, when the entry is
// missing (e.g. a dictionary compacted out from under a stale
// reference) so a caller can surface it as an undefined value rather
// than aborting a whole scan.
func Decode(r Reader, dictID, entryID uint64) (column.Value, bool, error) {
	raw, ok, err := r.Get(key.DictionaryEntryIndexKey(dictID, entryID))
	if err != nil || !ok {
		return column.Value{}, false, err
	}
	return column.Utf8Value(string(raw)), true, nil
}
