package volcano

import (
	"context"

	"reifydb/internal/column"
	"reifydb/internal/eval"
)

// ProjectedColumn names one output column of Map/Extend and the
// expression that computes it.
type ProjectedColumn struct {
	Name string
	Expr eval.Expr
}

// Map replaces Child's output entirely with Columns' computed values —
// the columnar form of a SELECT list, generalizing the teacher's
// per-row projection loop (processNonAggregateQuery building result
// rows from SELECT items) into evaluating each expression once per
// batch.
type Map struct {
	Child   Node
	Columns []ProjectedColumn
}

func NewMap(child Node, cols []ProjectedColumn) *Map {
	return &Map{Child: child, Columns: cols}
}

func (n *Map) Open(ctx context.Context) error { return n.Child.Open(ctx) }

func (n *Map) Next(ctx context.Context) (*column.Columns, error) {
	batch, err := n.Child.Next(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}
	return project(batch, n.Columns)
}

func (n *Map) Close() error { return n.Child.Close() }

func (n *Map) Headers() []string {
	names := make([]string, len(n.Columns))
	for i, c := range n.Columns {
		names[i] = c.Name
	}
	return names
}

// Extend appends Columns' computed values to Child's existing output
// rather than replacing it, the columnar analogue of SELECT *, extra AS
// computed_col.
type Extend struct {
	Child   Node
	Columns []ProjectedColumn
}

func NewExtend(child Node, cols []ProjectedColumn) *Extend {
	return &Extend{Child: child, Columns: cols}
}

func (n *Extend) Open(ctx context.Context) error { return n.Child.Open(ctx) }

func (n *Extend) Next(ctx context.Context) (*column.Columns, error) {
	batch, err := n.Child.Next(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}
	extra, err := project(batch, n.Columns)
	if err != nil {
		return nil, err
	}
	out := &column.Columns{Cols: append(append([]column.Column{}, batch.Cols...), extra.Cols...), RowNumbers: batch.RowNumbers}
	return out, nil
}

func (n *Extend) Close() error { return n.Child.Close() }

func (n *Extend) Headers() []string {
	names := append([]string{}, n.Child.Headers()...)
	for _, c := range n.Columns {
		names = append(names, c.Name)
	}
	return names
}

func project(batch *column.Columns, cols []ProjectedColumn) (*column.Columns, error) {
	out := &column.Columns{Cols: make([]column.Column, len(cols)), RowNumbers: batch.RowNumbers}
	ctx := &eval.Context{Batch: batch}
	for i, c := range cols {
		data, err := eval.Eval(ctx, c.Expr)
		if err != nil {
			return nil, err
		}
		out.Cols[i] = column.Column{Name: c.Name, Data: data}
	}
	return out, nil
}
