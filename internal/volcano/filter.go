package volcano

import (
	"context"

	"reifydb/internal/column"
	"reifydb/internal/eval"
)

// Filter evaluates Predicate against each batch pulled from Child and
// keeps only the rows where it is defined-true, generalizing the
// teacher's applyWhereClause (internal/engine/exec.go) from filtering a
// materialized []Row slice into filtering one columnar batch at a time.
// An input batch that filters down to zero rows is skipped rather than
// returned, so callers never have to special-case an empty batch.
type Filter struct {
	Child     Node
	Predicate eval.Expr
}

func NewFilter(child Node, predicate eval.Expr) *Filter {
	return &Filter{Child: child, Predicate: predicate}
}

func (n *Filter) Open(ctx context.Context) error { return n.Child.Open(ctx) }

func (n *Filter) Next(ctx context.Context) (*column.Columns, error) {
	for {
		batch, err := n.Child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return nil, nil
		}
		result, err := eval.Eval(&eval.Context{Batch: batch}, n.Predicate)
		if err != nil {
			return nil, err
		}
		var keep []int
		for i := 0; i < batch.RowCount(); i++ {
			v := result.GetValue(i)
			if v.Defined && v.Bool {
				keep = append(keep, i)
			}
		}
		if len(keep) == 0 {
			continue
		}
		return batch.SelectRows(keep), nil
	}
}

func (n *Filter) Close() error { return n.Child.Close() }

func (n *Filter) Headers() []string { return n.Child.Headers() }
