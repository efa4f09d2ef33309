package volcano

import (
	"context"
	"math/big"

	"reifydb/internal/column"
	"reifydb/internal/eval"
	"reifydb/internal/reifyerr"
)

// AggFunc enumerates the supported aggregate functions.
type AggFunc uint8

const (
	AggCount AggFunc = iota
	AggSum
	AggMin
	AggMax
	AggAvg
)

// AggregateColumn names one output aggregate column.
type AggregateColumn struct {
	Name   string
	Func   AggFunc
	Column string // input column name; ignored for AggCount's count(*)
}

// Aggregate is a blocking node: it pulls every batch from Child, groups
// rows by GroupBy column values, and emits one output row per group
// (or, if GroupBy is empty, a single row for all input rows; an empty
// input yields no row) — the columnar form of the
// teacher's map-keyed group aggregation in processAggregateQuery
// (internal/engine/exec.go), generalized from per-row accumulator
// structs to per-group accumulators over columnar batches.
type Aggregate struct {
	Child      Node
	GroupBy    []string
	Aggregates []AggregateColumn

	sent bool
}

func NewAggregate(child Node, groupBy []string, aggregates []AggregateColumn) *Aggregate {
	return &Aggregate{Child: child, GroupBy: groupBy, Aggregates: aggregates}
}

func (n *Aggregate) Open(ctx context.Context) error {
	n.sent = false
	return n.Child.Open(ctx)
}

type aggState struct {
	count   int64
	sum     big.Rat
	hasMin  bool
	min     column.Value
	hasMax  bool
	max     column.Value
	nonNull int64
}

func (n *Aggregate) Next(ctx context.Context) (*column.Columns, error) {
	if n.sent {
		return nil, nil
	}
	all, err := pullAll(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	n.sent = true

	groupCols := make([]column.Column, len(n.GroupBy))
	for i, name := range n.GroupBy {
		col, ok := all.ColumnByName(name)
		if !ok {
			return nil, reifyerr.NotFound(reifyerr.CodeColumnNotFound, "unknown group by column \""+name+"\"")
		}
		groupCols[i] = col
	}
	aggInputs := make([]column.Data, len(n.Aggregates))
	for i, a := range n.Aggregates {
		if a.Func == AggCount && a.Column == "" {
			continue
		}
		col, ok := all.ColumnByName(a.Column)
		if !ok {
			return nil, reifyerr.NotFound(reifyerr.CodeColumnNotFound, "unknown aggregate column \""+a.Column+"\"")
		}
		aggInputs[i] = col.Data
	}

	type group struct {
		key   string
		keyed []column.Value
		states []*aggState
	}
	order := []string{}
	groups := map[string]*group{}

	rowCount := all.RowCount()
	for row := 0; row < rowCount; row++ {
		var keyVals []column.Value
		for _, gc := range groupCols {
			keyVals = append(keyVals, gc.Data.GetValue(row))
		}
		k := groupKeyString(keyVals)
		g, ok := groups[k]
		if !ok {
			states := make([]*aggState, len(n.Aggregates))
			for i := range states {
				states[i] = &aggState{}
			}
			g = &group{key: k, keyed: keyVals, states: states}
			groups[k] = g
			order = append(order, k)
		}
		for i, a := range n.Aggregates {
			applyAgg(g.states[i], a, aggInputs[i], row)
		}
	}

	out := &column.Columns{Cols: make([]column.Column, 0, len(n.GroupBy)+len(n.Aggregates))}
	for i, name := range n.GroupBy {
		d := column.NewOption(column.NewByKind(groupCols[i].Data.Kind()))
		out.Cols = append(out.Cols, column.Column{Name: name, Data: d})
	}
	for i, a := range n.Aggregates {
		kind := column.KindFloat8
		if (a.Func == AggMin || a.Func == AggMax) && aggInputs[i] != nil {
			kind = aggInputs[i].Kind()
		}
		out.Cols = append(out.Cols, column.Column{Name: a.Name, Data: column.NewOption(column.NewByKind(kind))})
	}

	for _, k := range order {
		g := groups[k]
		for i, v := range g.keyed {
			if err := out.Cols[i].Data.PushValue(v); err != nil {
				return nil, err
			}
		}
		for i, a := range n.Aggregates {
			v := finalizeAgg(g.states[i], a)
			if err := out.Cols[len(n.GroupBy)+i].Data.PushValue(v); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func groupKeyString(vals []column.Value) string {
	s := ""
	for _, v := range vals {
		if !v.Defined {
			s += "\x00N\x01"
			continue
		}
		s += v.String() + "\x1f"
	}
	return s
}

func applyAgg(st *aggState, a AggregateColumn, data column.Data, row int) {
	if a.Func == AggCount && a.Column == "" {
		st.count++
		return
	}
	v := data.GetValue(row)
	if !v.Defined {
		return
	}
	st.nonNull++
	switch a.Func {
	case AggCount:
		st.count++
	case AggSum, AggAvg:
		f, _ := v.AsFloat64()
		st.sum.Add(&st.sum, new(big.Rat).SetFloat64(f))
	case AggMin:
		if !st.hasMin || eval.CompareValues(v, st.min) < 0 {
			st.min, st.hasMin = v, true
		}
	case AggMax:
		if !st.hasMax || eval.CompareValues(v, st.max) > 0 {
			st.max, st.hasMax = v, true
		}
	}
}

func finalizeAgg(st *aggState, a AggregateColumn) column.Value {
	switch a.Func {
	case AggCount:
		return column.Float64Value(float64(st.count))
	case AggSum:
		f, _ := st.sum.Float64()
		if st.nonNull == 0 {
			return column.Undefined(column.KindFloat8)
		}
		return column.Float64Value(f)
	case AggAvg:
		if st.nonNull == 0 {
			return column.Undefined(column.KindFloat8)
		}
		f, _ := st.sum.Float64()
		return column.Float64Value(f / float64(st.nonNull))
	case AggMin:
		if !st.hasMin {
			return column.Undefined(column.KindFloat8)
		}
		return st.min
	case AggMax:
		if !st.hasMax {
			return column.Undefined(column.KindFloat8)
		}
		return st.max
	}
	return column.Undefined(column.KindFloat8)
}

func (n *Aggregate) Close() error { return n.Child.Close() }

func (n *Aggregate) Headers() []string {
	names := append([]string{}, n.GroupBy...)
	for _, a := range n.Aggregates {
		names = append(names, a.Name)
	}
	return names
}
