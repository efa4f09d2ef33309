package volcano

import (
	"context"

	"reifydb/internal/column"
)

// Subquery wraps a child pipeline so it can be consumed as a derived
// table: every output column is renamed under Alias + "." + original
// name, matching how the teacher qualifies derived-table columns in
// processJoins/evalVarRef's "table.column" dotted lookup.
type Subquery struct {
	Child Node
	Alias string

	headers []string
}

func NewSubquery(child Node, alias string) *Subquery {
	return &Subquery{Child: child, Alias: alias}
}

func (n *Subquery) Open(ctx context.Context) error {
	if err := n.Child.Open(ctx); err != nil {
		return err
	}
	inner := n.Child.Headers()
	n.headers = make([]string, len(inner))
	for i, h := range inner {
		n.headers[i] = n.Alias + "." + h
	}
	return nil
}

func (n *Subquery) Next(ctx context.Context) (*column.Columns, error) {
	batch, err := n.Child.Next(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}
	out := &column.Columns{Cols: make([]column.Column, len(batch.Cols)), RowNumbers: batch.RowNumbers}
	for i, c := range batch.Cols {
		out.Cols[i] = column.Column{Name: n.Alias + "." + c.Name, Data: c.Data}
	}
	return out, nil
}

func (n *Subquery) Close() error { return n.Child.Close() }

func (n *Subquery) Headers() []string { return n.headers }
