package column

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	"reifydb/internal/reifyerr"
)

// Data is the common interface every typed column container satisfies:
// push/get by value, definedness, length, and same-type extension. The
// concrete containers are all instances of typedData[T]; Option and the
// Undefined container wrap/replace it for nullability and empty schemas.
type Data interface {
	Kind() Kind
	Len() int
	IsDefined(i int) bool
	GetValue(i int) Value
	PushValue(v Value) error
	Extend(other Data) error
	Clone() Data
}

// typedData is the single generic implementation backing every concrete
// container (Bool, Int1..Int16, Uint1..Uint16, Float4/8, Utf8, Blob,
// Date/DateTime/Time/Duration, Uuid4/7, IdentityId, DictionaryId, Int,
// Uint, Decimal). Its own validity bitmap records "defined at index i" in
// O(1); Option layers an independent bitmap on top when a container needs
// nullability beyond what its own zero-value represents.
type typedData[T any] struct {
	kind      Kind
	values    []T
	valid     []bool
	toValue   func(T) Value
	fromValue func(Value) (T, error)
}

func newTyped[T any](kind Kind, toValue func(T) Value, fromValue func(Value) (T, error)) *typedData[T] {
	return &typedData[T]{kind: kind, toValue: toValue, fromValue: fromValue}
}

func (d *typedData[T]) Kind() Kind { return d.kind }
func (d *typedData[T]) Len() int   { return len(d.values) }

func (d *typedData[T]) IsDefined(i int) bool {
	if i < 0 || i >= len(d.valid) {
		return false
	}
	return d.valid[i]
}

func (d *typedData[T]) GetValue(i int) Value {
	if !d.IsDefined(i) {
		return Undefined(d.kind)
	}
	return d.toValue(d.values[i])
}

func (d *typedData[T]) PushValue(v Value) error {
	if !v.Defined {
		var zero T
		d.values = append(d.values, zero)
		d.valid = append(d.valid, false)
		return nil
	}
	if v.Kind != d.kind {
		return reifyerr.Constraint(reifyerr.CodeConstraintType, "value kind "+v.Kind.String()+" does not match column kind "+d.kind.String())
	}
	t, err := d.fromValue(v)
	if err != nil {
		return err
	}
	d.values = append(d.values, t)
	d.valid = append(d.valid, true)
	return nil
}

func (d *typedData[T]) Extend(other Data) error {
	o, ok := other.(*typedData[T])
	if !ok || o.kind != d.kind {
		return reifyerr.Constraint(reifyerr.CodeConstraintType, "cannot extend column of kind "+d.kind.String()+" with "+other.Kind().String())
	}
	d.values = append(d.values, o.values...)
	d.valid = append(d.valid, o.valid...)
	return nil
}

func (d *typedData[T]) Clone() Data {
	return &typedData[T]{
		kind:      d.kind,
		values:    append([]T(nil), d.values...),
		valid:     append([]bool(nil), d.valid...),
		toValue:   d.toValue,
		fromValue: d.fromValue,
	}
}

// --- concrete constructors ---

func NewBool() Data {
	return newTyped[bool](KindBool,
		func(b bool) Value { return BoolValue(b) },
		func(v Value) (bool, error) { return v.Bool, nil })
}

func newIntContainer(kind Kind) Data {
	return newTyped[int64](kind,
		func(i int64) Value { return Value{Kind: kind, Defined: true, Int: i} },
		func(v Value) (int64, error) { return v.Int, nil })
}

func newUintContainer(kind Kind) Data {
	return newTyped[uint64](kind,
		func(u uint64) Value { return Value{Kind: kind, Defined: true, Uint: u} },
		func(v Value) (uint64, error) { return v.Uint, nil })
}

func NewInt1() Data  { return newIntContainer(KindInt1) }
func NewInt2() Data  { return newIntContainer(KindInt2) }
func NewInt4() Data  { return newIntContainer(KindInt4) }
func NewInt8() Data  { return newIntContainer(KindInt8) }
func NewInt16() Data { return newIntContainer(KindInt16) }

func NewUint1() Data  { return newUintContainer(KindUint1) }
func NewUint2() Data  { return newUintContainer(KindUint2) }
func NewUint4() Data  { return newUintContainer(KindUint4) }
func NewUint8() Data  { return newUintContainer(KindUint8) }
func NewUint16() Data { return newUintContainer(KindUint16) }

func NewFloat4() Data {
	return newTyped[float64](KindFloat4,
		func(f float64) Value { return Value{Kind: KindFloat4, Defined: true, Float: f} },
		func(v Value) (float64, error) { return v.Float, nil })
}

func NewFloat8() Data {
	return newTyped[float64](KindFloat8,
		func(f float64) Value { return Value{Kind: KindFloat8, Defined: true, Float: f} },
		func(v Value) (float64, error) { return v.Float, nil })
}

func NewUtf8() Data {
	return newTyped[string](KindUtf8,
		func(s string) Value { return Utf8Value(s) },
		func(v Value) (string, error) { return v.Str, nil })
}

func NewBlob() Data {
	return newTyped[[]byte](KindBlob,
		func(b []byte) Value { return BlobValue(b) },
		func(v Value) ([]byte, error) { return v.Bytes, nil })
}

func newTimeContainer(kind Kind) Data {
	return newTyped[time.Time](kind,
		func(t time.Time) Value { return TimeValue(kind, t) },
		func(v Value) (time.Time, error) { return v.Time, nil })
}

func NewDate() Data     { return newTimeContainer(KindDate) }
func NewDateTime() Data { return newTimeContainer(KindDateTime) }
func NewTime() Data     { return newTimeContainer(KindTime) }

func NewDuration() Data {
	return newTyped[time.Duration](KindDuration,
		func(d time.Duration) Value { return DurationValue(d) },
		func(v Value) (time.Duration, error) { return v.Duration, nil })
}

func newUUIDContainer(kind Kind) Data {
	return newTyped[uuid.UUID](kind,
		func(u uuid.UUID) Value { return UUIDValue(kind, u) },
		func(v Value) (uuid.UUID, error) { return v.UUID, nil })
}

func NewUuid4() Data      { return newUUIDContainer(KindUuid4) }
func NewUuid7() Data      { return newUUIDContainer(KindUuid7) }
func NewIdentityId() Data { return newUUIDContainer(KindIdentityId) }

func NewDictionaryId() Data {
	return newTyped[uint64](KindDictionaryId,
		func(u uint64) Value { return DictionaryIDValue(u) },
		func(v Value) (uint64, error) { return v.Uint, nil })
}

func NewBigInt() Data {
	return newTyped[*big.Int](KindInt,
		func(b *big.Int) Value { return BigIntValue(b) },
		func(v Value) (*big.Int, error) { return v.Big, nil })
}

func NewBigUint() Data {
	return newTyped[*big.Int](KindUint,
		func(b *big.Int) Value { return Value{Kind: KindUint, Defined: true, Big: b} },
		func(v Value) (*big.Int, error) { return v.Big, nil })
}

func NewDecimal() Data {
	return newTyped[*big.Rat](KindDecimal,
		func(r *big.Rat) Value { return DecimalValue(r) },
		func(v Value) (*big.Rat, error) { return v.Decimal, nil })
}

func NewAny() Data {
	return newTyped[Value](KindAny,
		func(v Value) Value { return v },
		func(v Value) (Value, error) { return v, nil })
}

// NewByKind dispatches to the right constructor for a Kind; used by the
// evaluator and scan nodes when materializing a column of a catalog-known
// type.
func NewByKind(k Kind) Data {
	switch k {
	case KindBool:
		return NewBool()
	case KindInt1:
		return NewInt1()
	case KindInt2:
		return NewInt2()
	case KindInt4:
		return NewInt4()
	case KindInt8:
		return NewInt8()
	case KindInt16:
		return NewInt16()
	case KindUint1:
		return NewUint1()
	case KindUint2:
		return NewUint2()
	case KindUint4:
		return NewUint4()
	case KindUint8:
		return NewUint8()
	case KindUint16:
		return NewUint16()
	case KindFloat4:
		return NewFloat4()
	case KindFloat8:
		return NewFloat8()
	case KindUtf8:
		return NewUtf8()
	case KindBlob:
		return NewBlob()
	case KindDate:
		return NewDate()
	case KindDateTime:
		return NewDateTime()
	case KindTime:
		return NewTime()
	case KindDuration:
		return NewDuration()
	case KindUuid4:
		return NewUuid4()
	case KindUuid7:
		return NewUuid7()
	case KindIdentityId:
		return NewIdentityId()
	case KindDictionaryId:
		return NewDictionaryId()
	case KindInt:
		return NewBigInt()
	case KindUint:
		return NewBigUint()
	case KindDecimal:
		return NewDecimal()
	case KindAny:
		return NewAny()
	default:
		return NewUndefined()
	}
}

// undefinedData represents a column with no known type yet: every index is
// undefined and pushing a defined value is a contract violation by the
// caller (the schema/type must be settled before that can happen).
type undefinedData struct {
	length int
}

func NewUndefined() Data { return &undefinedData{} }

func (d *undefinedData) Kind() Kind          { return KindUndefined }
func (d *undefinedData) Len() int            { return d.length }
func (d *undefinedData) IsDefined(int) bool  { return false }
func (d *undefinedData) GetValue(int) Value  { return Undefined(KindUndefined) }
func (d *undefinedData) Clone() Data         { return &undefinedData{length: d.length} }
func (d *undefinedData) PushValue(v Value) error {
	if v.Defined {
		return reifyerr.Internal(reifyerr.CodeInternal, "cannot push a defined value into an untyped column")
	}
	d.length++
	return nil
}
func (d *undefinedData) Extend(other Data) error {
	o, ok := other.(*undefinedData)
	if !ok {
		return reifyerr.Internal(reifyerr.CodeInternal, "cannot extend undefined column with typed data")
	}
	d.length += o.length
	return nil
}

// Option wraps any container to add a validity bitmap independent of the
// inner container's own, per spec.md §3's Option(inner, validity) kind.
type Option struct {
	inner Data
	valid []bool
}

func NewOption(inner Data) *Option {
	valid := make([]bool, inner.Len())
	for i := range valid {
		valid[i] = inner.IsDefined(i)
	}
	return &Option{inner: inner, valid: valid}
}

func (o *Option) Kind() Kind { return o.inner.Kind() }
func (o *Option) Len() int   { return o.inner.Len() }

func (o *Option) IsDefined(i int) bool {
	if i < 0 || i >= len(o.valid) {
		return false
	}
	return o.valid[i] && o.inner.IsDefined(i)
}

func (o *Option) GetValue(i int) Value {
	if !o.IsDefined(i) {
		return Undefined(o.inner.Kind())
	}
	return o.inner.GetValue(i)
}

func (o *Option) PushValue(v Value) error {
	if err := o.inner.PushValue(v); err != nil {
		return err
	}
	o.valid = append(o.valid, v.Defined)
	return nil
}

func (o *Option) Extend(other Data) error {
	oo, ok := other.(*Option)
	if !ok {
		return reifyerr.Constraint(reifyerr.CodeConstraintType, "cannot extend Option column with non-Option data")
	}
	if err := o.inner.Extend(oo.inner); err != nil {
		return err
	}
	o.valid = append(o.valid, oo.valid...)
	return nil
}

func (o *Option) Clone() Data {
	return &Option{inner: o.inner.Clone(), valid: append([]bool(nil), o.valid...)}
}

// Inner exposes the wrapped container, used by operators that need to
// decode dictionary columns through an Option wrapper.
func (o *Option) Inner() Data { return o.inner }
