// Package row implements C2: EncodedSchema/EncodedValues, the
// field-by-field binary row layout. A schema knows the fixed offset of
// every field; fixed-width fields live inline, variable-width fields
// (Utf8, Blob, Int, Decimal, Any) store an (offset, length) pointer
// inline and their payload in an append-only varlen region.
package row

import (
	"encoding/binary"
	"hash/fnv"

	"reifydb/internal/column"
	"reifydb/internal/reifyerr"
)

// Field describes one column of a row layout.
type Field struct {
	Name     string
	Type     column.Kind
	Nullable bool
}

// Schema is an ordered, immutable field list with precomputed fixed
// offsets. Schemas are shared by Fingerprint through Pool so two rows with
// an identical layout reference a single Schema instance (§4.2).
type Schema struct {
	Fields        []Field
	fixedOffsets  []int
	fixedSize     int
	validityBytes int
	fingerprint   uint64
}

func isVarlen(t column.Kind) bool {
	switch t {
	case column.KindUtf8, column.KindBlob, column.KindInt, column.KindUint, column.KindDecimal, column.KindAny:
		return true
	default:
		return false
	}
}

// fixedWidth returns the inline byte width of a fixed-size type, or 8 (an
// offset+length pointer pair packed as two uint32s) for varlen types.
func fixedWidth(t column.Kind) int {
	switch t {
	case column.KindBool, column.KindInt1, column.KindUint1:
		return 1
	case column.KindInt2, column.KindUint2:
		return 2
	case column.KindInt4, column.KindUint4, column.KindFloat4:
		return 4
	case column.KindInt8, column.KindUint8, column.KindFloat8,
		column.KindDate, column.KindDateTime, column.KindTime, column.KindDuration,
		column.KindDictionaryId:
		return 8
	case column.KindInt16, column.KindUint16, column.KindUuid4, column.KindUuid7, column.KindIdentityId:
		return 16
	default:
		return 8 // (uint32 offset, uint32 length) pointer into varlen region
	}
}

// NewSchema builds a Schema and computes its fixed offsets and
// fingerprint. Call Pool.GetOrCreate instead of this directly when sharing
// across rows matters (which is almost always).
func NewSchema(fields []Field) *Schema {
	s := &Schema{Fields: append([]Field(nil), fields...)}
	s.fixedOffsets = make([]int, len(fields))
	offset := 0
	for i, f := range fields {
		s.fixedOffsets[i] = offset
		offset += fixedWidth(f.Type)
	}
	s.fixedSize = offset
	s.validityBytes = (len(fields) + 7) / 8
	s.fingerprint = computeFingerprint(fields)
	return s
}

func computeFingerprint(fields []Field) uint64 {
	h := fnv.New64a()
	for _, f := range fields {
		_, _ = h.Write([]byte(f.Name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte{byte(f.Type)})
		if f.Nullable {
			_, _ = h.Write([]byte{1})
		} else {
			_, _ = h.Write([]byte{0})
		}
	}
	return h.Sum64()
}

// Fingerprint returns the stable hash used to deduplicate schema instances
// across rows (§3's "Schema fingerprint").
func (s *Schema) Fingerprint() uint64 { return s.fingerprint }

func (s *Schema) FieldCount() int { return len(s.Fields) }

func (s *Schema) IndexOf(name string) (int, bool) {
	for i, f := range s.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Allocate returns an empty row sized for the fixed region, all fields
// undefined, and an empty varlen region (§4.2's allocate()).
func (s *Schema) Allocate() *Values {
	return &Values{
		schema:   s,
		validity: make([]byte, s.validityBytes),
		fixed:    make([]byte, s.fixedSize),
		varlen:   nil,
	}
}

func (s *Schema) validBit(validity []byte, idx int) bool {
	return validity[idx/8]&(1<<uint(idx%8)) != 0
}

func (s *Schema) setValidBit(validity []byte, idx int, v bool) {
	if v {
		validity[idx/8] |= 1 << uint(idx%8)
	} else {
		validity[idx/8] &^= 1 << uint(idx%8)
	}
}

var errFieldType = func(idx int, want, got column.Kind) error {
	return reifyerr.Constraint(reifyerr.CodeConstraintType, "field "+want.String()+" does not accept value of kind "+got.String())
}

// Values is EncodedValues (§3): opaque bytes whose layout is given by its
// Schema. It is never interpreted except through Schema's SetValue/
// GetValue, matching the design note that undefined must never be an
// in-band sentinel: a separate validity bitmap carries that bit.
type Values struct {
	schema   *Schema
	validity []byte
	fixed    []byte
	varlen   []byte
}

func (v *Values) Schema() *Schema { return v.schema }

// SetValue writes a typed value into field idx, type-checking against the
// field's declared kind (mismatches fail per §4.2).
func (s *Schema) SetValue(row *Values, idx int, val column.Value) error {
	if idx < 0 || idx >= len(s.Fields) {
		return reifyerr.Internal(reifyerr.CodeInternal, "field index out of range")
	}
	f := s.Fields[idx]
	if !val.Defined {
		s.setValidBit(row.validity, idx, false)
		return nil
	}
	if val.Kind != f.Type {
		return errFieldType(idx, f.Type, val.Kind)
	}
	s.setValidBit(row.validity, idx, true)
	off := s.fixedOffsets[idx]
	width := fixedWidth(f.Type)

	if isVarlen(f.Type) {
		payload := encodeVarlenPayload(val)
		start := len(row.varlen)
		row.varlen = append(row.varlen, payload...)
		binary.BigEndian.PutUint32(row.fixed[off:off+4], uint32(start))
		binary.BigEndian.PutUint32(row.fixed[off+4:off+8], uint32(len(payload)))
		return nil
	}

	buf := row.fixed[off : off+width]
	encodeFixed(buf, val)
	return nil
}

// GetValue reads field idx, returning an Undefined value when the
// validity bit is unset (§4.2).
func (s *Schema) GetValue(row *Values, idx int) column.Value {
	if idx < 0 || idx >= len(s.Fields) {
		return column.Undefined(column.KindUndefined)
	}
	f := s.Fields[idx]
	if !s.validBit(row.validity, idx) {
		return column.Undefined(f.Type)
	}
	off := s.fixedOffsets[idx]
	if isVarlen(f.Type) {
		start := binary.BigEndian.Uint32(row.fixed[off : off+4])
		length := binary.BigEndian.Uint32(row.fixed[off+4 : off+8])
		payload := row.varlen[start : start+length]
		return decodeVarlenPayload(f.Type, payload)
	}
	width := fixedWidth(f.Type)
	return decodeFixed(f.Type, row.fixed[off:off+width])
}
