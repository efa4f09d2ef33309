// Package key implements C1, the order-preserving binary key codec shared
// by every store and catalog key in the system. Every encoded key begins
// with (version, kind) so that unknown or newer key families are rejected
// by Decode rather than silently misread.
//
// Encoders and decoders are mechanical by design (see SPEC_FULL.md's
// "variant-bearing keys" design note): each Kind has a fixed field list,
// spelled out in its typed constructor through the shared encoder
// builder, so adding a family means adding a Kind plus a typed
// constructor, never touching the codec core.
package key

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"reifydb/internal/reifyerr"
)

// Version is the key-format version written into every encoded key. A
// decoder that sees any other value refuses to interpret the rest of the
// bytes.
const Version uint8 = 1

// Kind enumerates every addressable key family. The set is closed; see the
// "variant-bearing keys" design note in SPEC_FULL.md.
type Kind uint8

const (
	KindRow Kind = iota + 1
	KindNamespaceDef
	KindTableDef
	KindViewDef
	KindRingBufferDef
	KindColumnDef
	KindIndexDef
	KindDictionaryDef
	KindFlowDef
	KindFlowNodeDef
	KindFlowEdgeDef
	KindNameIndex
	KindTablePrimaryKey
	KindViewPrimaryKey
	KindIndexEntry
	KindDictionaryEntry
	KindCdcConsumer
	KindSubscriptionRow
	KindVariantHandler
	KindSequence
	KindRingBufferMeta
)

// Key is an immutable, order-preserving encoded byte sequence. The zero
// value is not a valid Key; always obtain one through a constructor or
// Decode.
type Key struct {
	raw []byte
}

// Bytes returns the raw encoded form. The returned slice must not be
// mutated; callers that need to mutate should copy first.
func (k Key) Bytes() []byte { return k.raw }

func (k Key) String() string { return fmt.Sprintf("%x", k.raw) }

// Kind returns the key's family, decoded from the second byte.
func (k Key) Kind() (Kind, error) {
	if len(k.raw) < 2 {
		return 0, reifyerr.Format(reifyerr.CodeFormatKey, "key too short to contain a kind byte")
	}
	return Kind(k.raw[1]), nil
}

// Less reports whether k sorts strictly before other, matching logical
// ordering by construction: encode(a) < encode(b) lexicographically iff a
// is logically ordered before b.
func (k Key) Less(other Key) bool { return bytes.Compare(k.raw, other.raw) < 0 }

// Compare matches bytes.Compare semantics for the two keys.
func (k Key) Compare(other Key) int { return bytes.Compare(k.raw, other.raw) }

func fromRaw(raw []byte) Key { return Key{raw: raw} }

// KeyFromBytes reconstructs a Key from bytes previously produced by
// Bytes(), e.g. when reading a key column back out of a backend. It does
// not validate the (version, kind) header; use Kind() or a specific
// Decode* function to do that.
func KeyFromBytes(raw []byte) Key { return Key{raw: append([]byte(nil), raw...)} }

type encoder struct {
	buf bytes.Buffer
}

func newEncoder(kind Kind) *encoder {
	e := &encoder{}
	e.buf.WriteByte(Version)
	e.buf.WriteByte(byte(kind))
	return e
}

func (e *encoder) putUint64(v uint64) *encoder {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
	return e
}

// putUint64Desc writes v such that larger logical values sort earlier,
// used for reverse scans (e.g. subscription row numbers newest-first).
func (e *encoder) putUint64Desc(v uint64) *encoder {
	return e.putUint64(^v)
}

func (e *encoder) putByte(b byte) *encoder {
	e.buf.WriteByte(b)
	return e
}

// putTail writes a variable-length byte string. Only the last field of a
// key may be variable length, since there is no terminator: any bytes
// following would become ambiguous with the tail's own content.
func (e *encoder) putTail(b []byte) *encoder {
	e.buf.Write(b)
	return e
}

func (e *encoder) key() Key { return Key{raw: append([]byte(nil), e.buf.Bytes()...)} }

type decoder struct {
	raw []byte
	pos int
}

func newDecoder(raw []byte, want Kind) (*decoder, error) {
	if len(raw) < 2 {
		return nil, reifyerr.Format(reifyerr.CodeFormatKey, "key too short")
	}
	if raw[0] != Version {
		return nil, reifyerr.Format(reifyerr.CodeFormatKey, fmt.Sprintf("unsupported key version %d", raw[0]))
	}
	if Kind(raw[1]) != want {
		return nil, reifyerr.Format(reifyerr.CodeFormatKey, fmt.Sprintf("expected key kind %d, got %d", want, raw[1]))
	}
	return &decoder{raw: raw, pos: 2}, nil
}

func (d *decoder) uint64() (uint64, error) {
	if d.pos+8 > len(d.raw) {
		return 0, reifyerr.Format(reifyerr.CodeFormatKey, "truncated uint64 field")
	}
	v := binary.BigEndian.Uint64(d.raw[d.pos : d.pos+8])
	d.pos += 8
	return v, nil
}

func (d *decoder) uint64Desc() (uint64, error) {
	v, err := d.uint64()
	if err != nil {
		return 0, err
	}
	return ^v, nil
}

func (d *decoder) byte() (byte, error) {
	if d.pos >= len(d.raw) {
		return 0, reifyerr.Format(reifyerr.CodeFormatKey, "truncated byte field")
	}
	b := d.raw[d.pos]
	d.pos++
	return b, nil
}

func (d *decoder) tail() []byte {
	t := d.raw[d.pos:]
	d.pos = len(d.raw)
	return t
}

// ---- Row keys ----

// RowKey addresses a single logical row of a table, view, or ring buffer
// by its source id and row number.
func RowKey(sourceID, rowNumber uint64) Key {
	return newEncoder(KindRow).putUint64(sourceID).putUint64(rowNumber).key()
}

type RowKeyFields struct {
	SourceID  uint64
	RowNumber uint64
}

func DecodeRowKey(k Key) (RowKeyFields, error) {
	d, err := newDecoder(k.raw, KindRow)
	if err != nil {
		return RowKeyFields{}, err
	}
	src, err := d.uint64()
	if err != nil {
		return RowKeyFields{}, err
	}
	row, err := d.uint64()
	if err != nil {
		return RowKeyFields{}, err
	}
	return RowKeyFields{SourceID: src, RowNumber: row}, nil
}

// ---- Catalog definition keys (namespace/table/view/ring-buffer/column/index/dictionary/flow) ----

func NamespaceDefKey(namespaceID uint64) Key {
	return newEncoder(KindNamespaceDef).putUint64(namespaceID).key()
}

func TableDefKey(tableID uint64) Key {
	return newEncoder(KindTableDef).putUint64(tableID).key()
}

func ViewDefKey(viewID uint64) Key {
	return newEncoder(KindViewDef).putUint64(viewID).key()
}

func RingBufferDefKey(ringBufferID uint64) Key {
	return newEncoder(KindRingBufferDef).putUint64(ringBufferID).key()
}

func RingBufferMetaKey(ringBufferID uint64) Key {
	return newEncoder(KindRingBufferMeta).putUint64(ringBufferID).key()
}

func ColumnDefKey(sourceID, columnID uint64) Key {
	return newEncoder(KindColumnDef).putUint64(sourceID).putUint64(columnID).key()
}

func IndexDefKey(sourceID, indexID uint64) Key {
	return newEncoder(KindIndexDef).putUint64(sourceID).putUint64(indexID).key()
}

func DictionaryDefKey(dictID uint64) Key {
	return newEncoder(KindDictionaryDef).putUint64(dictID).key()
}

func FlowDefKey(flowID uint64) Key {
	return newEncoder(KindFlowDef).putUint64(flowID).key()
}

func FlowNodeDefKey(flowID, nodeID uint64) Key {
	return newEncoder(KindFlowNodeDef).putUint64(flowID).putUint64(nodeID).key()
}

func FlowEdgeDefKey(flowID, edgeID uint64) Key {
	return newEncoder(KindFlowEdgeDef).putUint64(flowID).putUint64(edgeID).key()
}

// NameKind distinguishes the entity namespace a NameIndexKey resolves
// within (a table and a view may share a name within different kinds).
type NameKind byte

const (
	NameKindNamespace NameKind = iota
	NameKindTable
	NameKindView
	NameKindRingBuffer
	NameKindDictionary
	NameKindFlow
)

// NameIndexKey maps a (kind, parent namespace, name) to an id. Name is a
// tail field: it must be the last field encoded.
func NameIndexKey(nk NameKind, parentID uint64, name string) Key {
	return newEncoder(KindNameIndex).putByte(byte(nk)).putUint64(parentID).putTail([]byte(name)).key()
}

func NameIndexPrefix(nk NameKind, parentID uint64) Key {
	return newEncoder(KindNameIndex).putByte(byte(nk)).putUint64(parentID).key()
}

type NameIndexFields struct {
	Kind     NameKind
	ParentID uint64
	Name     string
}

func DecodeNameIndexKey(k Key) (NameIndexFields, error) {
	d, err := newDecoder(k.raw, KindNameIndex)
	if err != nil {
		return NameIndexFields{}, err
	}
	nk, err := d.byte()
	if err != nil {
		return NameIndexFields{}, err
	}
	parent, err := d.uint64()
	if err != nil {
		return NameIndexFields{}, err
	}
	return NameIndexFields{Kind: NameKind(nk), ParentID: parent, Name: string(d.tail())}, nil
}

// ---- Primary key and secondary index entries ----

// TablePrimaryKeyKey maps an encoded PK tuple to the row number, per table.
func TablePrimaryKeyKey(tableID, indexID uint64, pk []byte) Key {
	return newEncoder(KindTablePrimaryKey).putUint64(tableID).putUint64(indexID).putTail(pk).key()
}

func TablePrimaryKeyPrefix(tableID, indexID uint64) Key {
	return newEncoder(KindTablePrimaryKey).putUint64(tableID).putUint64(indexID).key()
}

func ViewPrimaryKeyKey(viewID, indexID uint64, pk []byte) Key {
	return newEncoder(KindViewPrimaryKey).putUint64(viewID).putUint64(indexID).putTail(pk).key()
}

func IndexEntryKey(sourceID, indexID uint64, entry []byte) Key {
	return newEncoder(KindIndexEntry).putUint64(sourceID).putUint64(indexID).putTail(entry).key()
}

func IndexEntryPrefix(sourceID, indexID uint64) Key {
	return newEncoder(KindIndexEntry).putUint64(sourceID).putUint64(indexID).key()
}

// ---- Dictionary entries ----

// DictionaryEntryIndexKey recovers an original Value from a
// DictionaryEntryId, per SPEC_FULL.md/spec.md's dictionary-decode model.
func DictionaryEntryIndexKey(dictID, entryID uint64) Key {
	return newEncoder(KindDictionaryEntry).putUint64(dictID).putUint64(entryID).key()
}

type DictionaryEntryFields struct {
	DictID  uint64
	EntryID uint64
}

func DecodeDictionaryEntryIndexKey(k Key) (DictionaryEntryFields, error) {
	d, err := newDecoder(k.raw, KindDictionaryEntry)
	if err != nil {
		return DictionaryEntryFields{}, err
	}
	dict, err := d.uint64()
	if err != nil {
		return DictionaryEntryFields{}, err
	}
	entry, err := d.uint64()
	if err != nil {
		return DictionaryEntryFields{}, err
	}
	return DictionaryEntryFields{DictID: dict, EntryID: entry}, nil
}

// DictionaryValueIndexKey is the reverse index, value-bytes -> entry id,
// used to intern a value without duplicating it.
func DictionaryValueIndexKey(dictID uint64, valueBytes []byte) Key {
	return newEncoder(KindDictionaryEntry).putUint64(dictID).putUint64(^uint64(0)).putTail(valueBytes).key()
}

// ---- CDC consumer checkpoints ----

func CdcConsumerKey(consumerID uint64) Key {
	return newEncoder(KindCdcConsumer).putUint64(consumerID).key()
}

// ---- Subscription rows (reverse scan by row number, newest first) ----

func SubscriptionRowKey(subscriptionID, rowNumber uint64) Key {
	return newEncoder(KindSubscriptionRow).putUint64(subscriptionID).putUint64Desc(rowNumber).key()
}

func SubscriptionRowPrefix(subscriptionID uint64) Key {
	return newEncoder(KindSubscriptionRow).putUint64(subscriptionID).key()
}

// ---- Variant handlers ----

func VariantHandlerKey(variantID, handlerID uint64) Key {
	return newEncoder(KindVariantHandler).putUint64(variantID).putUint64(handlerID).key()
}

// ---- Sequence counters (next_table_id, next_row_number, ...) ----

func SequenceKey(name string) Key {
	return newEncoder(KindSequence).putTail([]byte(name)).key()
}

// ---- Generic scoped full-scan / prefix ranges ----

// RowRangeForSource returns a range covering every row key under
// sourceID, i.e. a full_scan(parent_id) for KindRow.
func RowRangeForSource(sourceID uint64) Range {
	prefix := newEncoder(KindRow).putUint64(sourceID).key()
	return PrefixRange(prefix)
}

// AsPrefix returns the encoded prefix bytes of a key built with a partial
// set of fields (used by FullScan-style callers that only want the common
// leading bytes of a builder, not a complete key).
func (k Key) AsPrefix() []byte { return k.raw }
