package eval

import (
	"math"
	"strings"

	"reifydb/internal/column"
	"reifydb/internal/reifyerr"
)

// scalarFunc evaluates one already-resolved row's arguments into a
// result Value; registered functions are pure, row-local, and never see
// undefined arguments (evalCall handles propagation).
type scalarFunc func(args []column.Value) (column.Value, error)

// funcs mirrors the teacher's FuncCall dispatch table (internal/engine/
// extended_functions.go and io_functions.go register similarly by
// lowercase name) trimmed to the scalar subset C10 needs; aggregate and
// table functions belong to internal/volcano's Aggregate node instead.
var funcs = map[string]scalarFunc{
	"abs":      funcAbs,
	"upper":    funcUpper,
	"lower":    funcLower,
	"length":   funcLength,
	"concat":   funcConcat,
	"coalesce": funcCoalesce,
}

func evalCall(ctx *Context, e Call) (column.Data, error) {
	fn, ok := funcs[strings.ToLower(e.Name)]
	if !ok {
		return nil, reifyerr.NotFound(reifyerr.CodeInternal, "unknown function \""+e.Name+"\"")
	}

	argCols := make([]column.Data, len(e.Args))
	for i, a := range e.Args {
		d, err := Eval(ctx, a)
		if err != nil {
			return nil, err
		}
		argCols[i] = d
	}

	n := ctx.Batch.RowCount()
	var out column.Data
	for row := 0; row < n; row++ {
		args := make([]column.Value, len(argCols))
		anyUndefined := false
		for i, col := range argCols {
			args[i] = col.GetValue(row)
			if !args[i].Defined && strings.ToLower(e.Name) != "coalesce" {
				anyUndefined = true
			}
		}
		var result column.Value
		if anyUndefined {
			result = column.Undefined(column.KindAny)
		} else {
			r, err := fn(args)
			if err != nil {
				return nil, err
			}
			result = r
		}
		if out == nil {
			kind := result.Kind
			if !result.Defined {
				kind = column.KindUndefined
			}
			out = column.NewByKind(kind)
		}
		if err := out.PushValue(result); err != nil {
			return nil, err
		}
	}
	if out == nil {
		out = column.NewUndefined()
	}
	return out, nil
}

func funcAbs(args []column.Value) (column.Value, error) {
	if len(args) != 1 {
		return column.Value{}, reifyerr.Format(reifyerr.CodeFormatValue, "abs takes one argument")
	}
	f, ok := args[0].AsFloat64()
	if !ok {
		return column.Value{}, reifyerr.Constraint(reifyerr.CodeConstraintType, "abs requires a numeric argument")
	}
	return column.Float64Value(math.Abs(f)), nil
}

func funcUpper(args []column.Value) (column.Value, error) {
	if len(args) != 1 {
		return column.Value{}, reifyerr.Format(reifyerr.CodeFormatValue, "upper takes one argument")
	}
	return column.Utf8Value(strings.ToUpper(args[0].Str)), nil
}

func funcLower(args []column.Value) (column.Value, error) {
	if len(args) != 1 {
		return column.Value{}, reifyerr.Format(reifyerr.CodeFormatValue, "lower takes one argument")
	}
	return column.Utf8Value(strings.ToLower(args[0].Str)), nil
}

func funcLength(args []column.Value) (column.Value, error) {
	if len(args) != 1 {
		return column.Value{}, reifyerr.Format(reifyerr.CodeFormatValue, "length takes one argument")
	}
	return column.Int64Value(int64(len(args[0].Str))), nil
}

func funcConcat(args []column.Value) (column.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a.String())
	}
	return column.Utf8Value(sb.String()), nil
}

func funcCoalesce(args []column.Value) (column.Value, error) {
	for _, a := range args {
		if a.Defined {
			return a, nil
		}
	}
	if len(args) == 0 {
		return column.Undefined(column.KindAny), nil
	}
	return column.Undefined(args[0].Kind), nil
}
