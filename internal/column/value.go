// Package column implements C9: typed columnar containers with validity
// bitmaps and the Columns batch type. Decimal values are modeled as
// math/big.Rat, following internal/storage/decimal.go's grounding in the
// teacher repo; UUIDs use github.com/google/uuid as the teacher does.
package column

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Kind tags the logical type of a column's values. It is a closed set
// mirroring spec.md §3's ColumnData union.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindBool
	KindInt1
	KindInt2
	KindInt4
	KindInt8
	KindInt16
	KindUint1
	KindUint2
	KindUint4
	KindUint8
	KindUint16
	KindFloat4
	KindFloat8
	KindUtf8
	KindDate
	KindDateTime
	KindTime
	KindDuration
	KindBlob
	KindUuid4
	KindUuid7
	KindIdentityId
	KindDictionaryId
	KindInt
	KindUint
	KindDecimal
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindBool:
		return "bool"
	case KindInt1:
		return "int1"
	case KindInt2:
		return "int2"
	case KindInt4:
		return "int4"
	case KindInt8:
		return "int8"
	case KindInt16:
		return "int16"
	case KindUint1:
		return "uint1"
	case KindUint2:
		return "uint2"
	case KindUint4:
		return "uint4"
	case KindUint8:
		return "uint8"
	case KindUint16:
		return "uint16"
	case KindFloat4:
		return "float4"
	case KindFloat8:
		return "float8"
	case KindUtf8:
		return "utf8"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTime:
		return "time"
	case KindDuration:
		return "duration"
	case KindBlob:
		return "blob"
	case KindUuid4:
		return "uuid4"
	case KindUuid7:
		return "uuid7"
	case KindIdentityId:
		return "identity_id"
	case KindDictionaryId:
		return "dictionary_id"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindDecimal:
		return "decimal"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether values of this kind participate in the
// arithmetic widening hierarchy (C10's coercion rules).
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt1, KindInt2, KindInt4, KindInt8, KindInt16,
		KindUint1, KindUint2, KindUint4, KindUint8, KindUint16,
		KindFloat4, KindFloat8, KindInt, KindUint, KindDecimal:
		return true
	default:
		return false
	}
}

// numericRank orders numeric kinds by widening precedence: arithmetic
// between two numeric kinds promotes to the higher rank.
var numericRank = map[Kind]int{
	KindInt1: 1, KindUint1: 1,
	KindInt2: 2, KindUint2: 2,
	KindInt4: 3, KindUint4: 3,
	KindInt8: 4, KindUint8: 4,
	KindInt16: 5, KindUint16: 5,
	KindInt: 6, KindUint: 6,
	KindFloat4: 7,
	KindFloat8: 8,
	KindDecimal: 9,
}

// Widen returns the promoted Kind of a binary arithmetic operation between
// a and b, per the standard widening hierarchy referenced by §4.10.
func Widen(a, b Kind) Kind {
	ra, ok1 := numericRank[a]
	rb, ok2 := numericRank[b]
	if !ok1 || !ok2 {
		return KindUndefined
	}
	if ra >= rb {
		return a
	}
	return b
}

// Value is a tagged union used to move a single typed value in or out of a
// column, independent of the container's internal representation.
type Value struct {
	Kind     Kind
	Defined  bool
	Bool     bool
	Int      int64
	Uint     uint64
	Float    float64
	Str      string
	Bytes    []byte
	Big      *big.Int
	Decimal  *big.Rat
	Time     time.Time
	Duration time.Duration
	UUID     uuid.UUID
}

// Undefined is the canonical undefined Value of the given kind. The
// design's "Undefined/Nullability" note requires never encoding undefined
// as a value-space sentinel; this is purely a transport convenience for
// get/push calls.
func Undefined(k Kind) Value { return Value{Kind: k, Defined: false} }

func BoolValue(v bool) Value        { return Value{Kind: KindBool, Defined: true, Bool: v} }
func Int8Value(v int8) Value        { return Value{Kind: KindInt1, Defined: true, Int: int64(v)} }
func Int16Value(v int16) Value      { return Value{Kind: KindInt2, Defined: true, Int: int64(v)} }
func Int32Value(v int32) Value      { return Value{Kind: KindInt4, Defined: true, Int: int64(v)} }
func Int64Value(v int64) Value      { return Value{Kind: KindInt8, Defined: true, Int: v} }
func Uint8Value(v uint8) Value      { return Value{Kind: KindUint1, Defined: true, Uint: uint64(v)} }
func Uint16Value(v uint16) Value    { return Value{Kind: KindUint2, Defined: true, Uint: uint64(v)} }
func Uint32Value(v uint32) Value    { return Value{Kind: KindUint4, Defined: true, Uint: uint64(v)} }
func Uint64Value(v uint64) Value    { return Value{Kind: KindUint8, Defined: true, Uint: v} }
func Float32Value(v float32) Value  { return Value{Kind: KindFloat4, Defined: true, Float: float64(v)} }
func Float64Value(v float64) Value  { return Value{Kind: KindFloat8, Defined: true, Float: v} }
func Utf8Value(v string) Value      { return Value{Kind: KindUtf8, Defined: true, Str: v} }
func BlobValue(v []byte) Value      { return Value{Kind: KindBlob, Defined: true, Bytes: v} }
func BigIntValue(v *big.Int) Value  { return Value{Kind: KindInt, Defined: true, Big: v} }
func DecimalValue(v *big.Rat) Value { return Value{Kind: KindDecimal, Defined: true, Decimal: v} }
func TimeValue(k Kind, v time.Time) Value {
	return Value{Kind: k, Defined: true, Time: v}
}
func DurationValue(v time.Duration) Value {
	return Value{Kind: KindDuration, Defined: true, Duration: v}
}
func UUIDValue(k Kind, v uuid.UUID) Value { return Value{Kind: k, Defined: true, UUID: v} }
func DictionaryIDValue(v uint64) Value {
	return Value{Kind: KindDictionaryId, Defined: true, Uint: v}
}
func IdentityIDValue(v uuid.UUID) Value {
	return Value{Kind: KindIdentityId, Defined: true, UUID: v}
}

func (v Value) String() string {
	if !v.Defined {
		return "undefined"
	}
	switch v.Kind {
	case KindBool:
		return fmt.Sprintf("%v", v.Bool)
	case KindUtf8:
		return v.Str
	case KindFloat4, KindFloat8:
		return fmt.Sprintf("%v", v.Float)
	case KindInt:
		return v.Big.String()
	case KindDecimal:
		return v.Decimal.RatString()
	case KindUuid4, KindUuid7, KindIdentityId:
		return v.UUID.String()
	case KindDuration:
		return v.Duration.String()
	case KindDate, KindDateTime, KindTime:
		return v.Time.String()
	default:
		if v.Kind.IsNumeric() {
			if v.Kind == KindUint || v.Kind == KindUint1 || v.Kind == KindUint2 || v.Kind == KindUint4 || v.Kind == KindUint8 || v.Kind == KindUint16 {
				return fmt.Sprintf("%d", v.Uint)
			}
			return fmt.Sprintf("%d", v.Int)
		}
		return fmt.Sprintf("%v", v.Bytes)
	}
}

// AsFloat64 coerces a defined numeric Value to float64 for comparison and
// arithmetic; it is the evaluator's common numeric reading path.
func (v Value) AsFloat64() (float64, bool) {
	if !v.Defined {
		return 0, false
	}
	switch v.Kind {
	case KindInt1, KindInt2, KindInt4, KindInt8, KindInt16:
		return float64(v.Int), true
	case KindUint1, KindUint2, KindUint4, KindUint8, KindUint16:
		return float64(v.Uint), true
	case KindFloat4, KindFloat8:
		return v.Float, true
	case KindInt:
		f := new(big.Float).SetInt(v.Big)
		r, _ := f.Float64()
		return r, true
	case KindDecimal:
		r, _ := v.Decimal.Float64()
		return r, true
	default:
		return 0, false
	}
}
