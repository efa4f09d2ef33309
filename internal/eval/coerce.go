package eval

import (
	"strconv"
	"strings"

	"reifydb/internal/column"
)

// evalCast coerces Inner's result to Target per row. A row that fails to
// convert becomes undefined rather than aborting the batch — the
// columnar analogue of the teacher's per-row CAST error, which here
// would otherwise discard every other row's valid result.
func evalCast(ctx *Context, e Cast) (column.Data, error) {
	inner, err := Eval(ctx, e.Inner)
	if err != nil {
		return nil, err
	}
	out := column.NewByKind(e.Target)
	n := ctx.Batch.RowCount()
	for i := 0; i < n; i++ {
		v := inner.GetValue(i)
		if !v.Defined {
			if err := out.PushValue(column.Undefined(e.Target)); err != nil {
				return nil, err
			}
			continue
		}
		cast, ok := castValue(v, e.Target)
		if !ok {
			if err := out.PushValue(column.Undefined(e.Target)); err != nil {
				return nil, err
			}
			continue
		}
		if err := out.PushValue(cast); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CoerceValue exposes the same per-value coercion CAST uses, for
// callers outside expression evaluation (internal/mutate's insert/
// update coercion step) that need the identical widening/parsing rules
// without going through a Cast expression node.
func CoerceValue(v column.Value, target column.Kind) (column.Value, bool) {
	return castValue(v, target)
}

func castValue(v column.Value, target column.Kind) (column.Value, bool) {
	if v.Kind == target {
		return v, true
	}
	switch target {
	case column.KindUtf8:
		return column.Utf8Value(v.String()), true
	case column.KindBool:
		if v.Kind == column.KindUtf8 {
			b, err := strconv.ParseBool(strings.TrimSpace(v.Str))
			if err != nil {
				return column.Value{}, false
			}
			return column.BoolValue(b), true
		}
		if v.Kind.IsNumeric() {
			f, _ := v.AsFloat64()
			return column.BoolValue(f != 0), true
		}
	default:
		if target.IsNumeric() {
			return castNumeric(v, target)
		}
	}
	return column.Value{}, false
}

func castNumeric(v column.Value, target column.Kind) (column.Value, bool) {
	var f float64
	switch {
	case v.Kind.IsNumeric():
		f, _ = v.AsFloat64()
	case v.Kind == column.KindUtf8:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return column.Value{}, false
		}
		f = parsed
	case v.Kind == column.KindBool:
		if v.Bool {
			f = 1
		}
	default:
		return column.Value{}, false
	}
	switch target {
	case column.KindFloat4:
		return column.Float32Value(float32(f)), true
	case column.KindFloat8:
		return column.Float64Value(f), true
	case column.KindInt1, column.KindInt2, column.KindInt4, column.KindInt8, column.KindInt16:
		return column.Value{Kind: target, Defined: true, Int: int64(f)}, true
	case column.KindUint1, column.KindUint2, column.KindUint4, column.KindUint8, column.KindUint16:
		if f < 0 {
			return column.Value{}, false
		}
		return column.Value{Kind: target, Defined: true, Uint: uint64(f)}, true
	}
	return column.Value{}, false
}

