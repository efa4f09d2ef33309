package row

import (
	"encoding/binary"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"reifydb/internal/column"
	"reifydb/internal/reifyerr"
)

// Bytes serializes v into the on-the-wire EncodedValues layout: an
// 8-byte schema fingerprint header (so a reader can recover v's Schema
// from a row.Pool without being told it out of band), then the
// validity bitmap, the fixed region, and a length-prefixed varlen
// region, mirroring the fixed-header-then-payload shape of the
// teacher's slotted page records (internal/storage/pager/slotted_page.go).
func (v *Values) Bytes() []byte {
	out := make([]byte, 8, 8+len(v.validity)+len(v.fixed)+4+len(v.varlen))
	binary.BigEndian.PutUint64(out, v.schema.Fingerprint())
	out = append(out, v.validity...)
	out = append(out, v.fixed...)
	var varlenLen [4]byte
	binary.BigEndian.PutUint32(varlenLen[:], uint32(len(v.varlen)))
	out = append(out, varlenLen[:]...)
	out = append(out, v.varlen...)
	return out
}

// FromBytes reconstructs a Values from bytes previously produced by
// Bytes(), looking its Schema up in pool by the embedded fingerprint.
func FromBytes(pool *Pool, raw []byte) (*Values, error) {
	if len(raw) < 8 {
		return nil, reifyerr.Format(reifyerr.CodeFormatValue, "encoded row too short for fingerprint header")
	}
	fp := binary.BigEndian.Uint64(raw[:8])
	schema, ok := pool.Lookup(fp)
	if !ok {
		return nil, reifyerr.Internal(reifyerr.CodeInternal, "no schema registered for row fingerprint")
	}
	rest := raw[8:]
	if len(rest) < schema.validityBytes+schema.fixedSize+4 {
		return nil, reifyerr.Format(reifyerr.CodeFormatValue, "encoded row truncated")
	}
	validity := append([]byte(nil), rest[:schema.validityBytes]...)
	rest = rest[schema.validityBytes:]
	fixed := append([]byte(nil), rest[:schema.fixedSize]...)
	rest = rest[schema.fixedSize:]
	varlenLen := binary.BigEndian.Uint32(rest[:4])
	rest = rest[4:]
	if uint32(len(rest)) < varlenLen {
		return nil, reifyerr.Format(reifyerr.CodeFormatValue, "encoded row varlen region truncated")
	}
	varlen := append([]byte(nil), rest[:varlenLen]...)
	return &Values{schema: schema, validity: validity, fixed: fixed, varlen: varlen}, nil
}

func encodeFixed(buf []byte, v column.Value) {
	switch v.Kind {
	case column.KindBool:
		if v.Bool {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case column.KindInt1:
		buf[0] = byte(v.Int)
	case column.KindInt2:
		binary.BigEndian.PutUint16(buf, uint16(v.Int))
	case column.KindInt4:
		binary.BigEndian.PutUint32(buf, uint32(v.Int))
	case column.KindInt8:
		binary.BigEndian.PutUint64(buf, uint64(v.Int))
	case column.KindInt16:
		putInt128(buf, v.Int)
	case column.KindUint1:
		buf[0] = byte(v.Uint)
	case column.KindUint2:
		binary.BigEndian.PutUint16(buf, uint16(v.Uint))
	case column.KindUint4:
		binary.BigEndian.PutUint32(buf, uint32(v.Uint))
	case column.KindUint8:
		binary.BigEndian.PutUint64(buf, v.Uint)
	case column.KindUint16:
		binary.BigEndian.PutUint64(buf[8:], v.Uint)
	case column.KindFloat4:
		binary.BigEndian.PutUint32(buf, math.Float32bits(float32(v.Float)))
	case column.KindFloat8:
		binary.BigEndian.PutUint64(buf, math.Float64bits(v.Float))
	case column.KindDate, column.KindDateTime, column.KindTime:
		binary.BigEndian.PutUint64(buf, uint64(v.Time.UnixNano()))
	case column.KindDuration:
		binary.BigEndian.PutUint64(buf, uint64(v.Duration))
	case column.KindDictionaryId:
		binary.BigEndian.PutUint64(buf, v.Uint)
	case column.KindUuid4, column.KindUuid7, column.KindIdentityId:
		copy(buf, v.UUID[:])
	}
}

func putInt128(buf []byte, v int64) {
	// High 8 bytes carry the sign extension, low 8 the magnitude; this
	// module never materializes values needing the full 128-bit range,
	// but the wire shape is reserved so a future widening doesn't
	// require a layout migration.
	var hi uint64
	if v < 0 {
		hi = math.MaxUint64
	}
	binary.BigEndian.PutUint64(buf[0:8], hi)
	binary.BigEndian.PutUint64(buf[8:16], uint64(v))
}

func decodeFixed(kind column.Kind, buf []byte) column.Value {
	switch kind {
	case column.KindBool:
		return column.BoolValue(buf[0] != 0)
	case column.KindInt1:
		return column.Int8Value(int8(buf[0]))
	case column.KindInt2:
		return column.Int16Value(int16(binary.BigEndian.Uint16(buf)))
	case column.KindInt4:
		return column.Int32Value(int32(binary.BigEndian.Uint32(buf)))
	case column.KindInt8:
		return column.Int64Value(int64(binary.BigEndian.Uint64(buf)))
	case column.KindInt16:
		return column.Int64Value(int64(binary.BigEndian.Uint64(buf[8:16])))
	case column.KindUint1:
		return column.Uint8Value(buf[0])
	case column.KindUint2:
		return column.Uint16Value(binary.BigEndian.Uint16(buf))
	case column.KindUint4:
		return column.Uint32Value(binary.BigEndian.Uint32(buf))
	case column.KindUint8:
		return column.Uint64Value(binary.BigEndian.Uint64(buf))
	case column.KindUint16:
		return column.Uint64Value(binary.BigEndian.Uint64(buf[8:16]))
	case column.KindFloat4:
		return column.Float32Value(math.Float32frombits(binary.BigEndian.Uint32(buf)))
	case column.KindFloat8:
		return column.Float64Value(math.Float64frombits(binary.BigEndian.Uint64(buf)))
	case column.KindDate, column.KindDateTime, column.KindTime:
		return column.TimeValue(kind, time.Unix(0, int64(binary.BigEndian.Uint64(buf))).UTC())
	case column.KindDuration:
		return column.DurationValue(time.Duration(binary.BigEndian.Uint64(buf)))
	case column.KindDictionaryId:
		return column.DictionaryIDValue(binary.BigEndian.Uint64(buf))
	case column.KindUuid4, column.KindUuid7, column.KindIdentityId:
		var u uuid.UUID
		copy(u[:], buf)
		return column.UUIDValue(kind, u)
	default:
		return column.Undefined(kind)
	}
}

func encodeVarlenPayload(v column.Value) []byte {
	switch v.Kind {
	case column.KindUtf8:
		return []byte(v.Str)
	case column.KindBlob:
		return v.Bytes
	case column.KindInt, column.KindUint:
		return v.Big.Bytes()
	case column.KindDecimal:
		num := v.Decimal.Num().Bytes()
		denom := v.Decimal.Denom().Bytes()
		sign := byte(0)
		if v.Decimal.Sign() < 0 {
			sign = 1
		}
		out := make([]byte, 0, 9+len(num)+len(denom))
		out = append(out, sign)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(num)))
		out = append(out, lenBuf[:]...)
		out = append(out, num...)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(denom)))
		out = append(out, lenBuf[:]...)
		out = append(out, denom...)
		return out
	default:
		return nil
	}
}

func decodeVarlenPayload(kind column.Kind, payload []byte) column.Value {
	switch kind {
	case column.KindUtf8:
		return column.Utf8Value(string(payload))
	case column.KindBlob:
		return column.BlobValue(append([]byte(nil), payload...))
	case column.KindInt:
		return column.BigIntValue(new(big.Int).SetBytes(payload))
	case column.KindUint:
		return column.Value{Kind: column.KindUint, Defined: true, Big: new(big.Int).SetBytes(payload)}
	case column.KindDecimal:
		sign := payload[0]
		numLen := binary.BigEndian.Uint32(payload[1:5])
		num := new(big.Int).SetBytes(payload[5 : 5+numLen])
		rest := payload[5+numLen:]
		denomLen := binary.BigEndian.Uint32(rest[0:4])
		denom := new(big.Int).SetBytes(rest[4 : 4+denomLen])
		if sign == 1 {
			num.Neg(num)
		}
		return column.DecimalValue(new(big.Rat).SetFrac(num, denom))
	default:
		return column.Undefined(kind)
	}
}
