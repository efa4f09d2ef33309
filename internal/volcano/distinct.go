package volcano

import (
	"context"
	"strings"

	"reifydb/internal/column"
)

// Distinct is a blocking node: it pulls every batch from Child and
// emits one batch containing only the first occurrence of each distinct
// row (by every output column's string rendering), mirroring the
// teacher's map-based dedup for SELECT DISTINCT generalized from row
// structs to a columnar batch.
type Distinct struct {
	Child Node

	sent bool
}

func NewDistinct(child Node) *Distinct { return &Distinct{Child: child} }

func (n *Distinct) Open(ctx context.Context) error {
	n.sent = false
	return n.Child.Open(ctx)
}

func (n *Distinct) Next(ctx context.Context) (*column.Columns, error) {
	if n.sent {
		return nil, nil
	}
	all, err := pullAll(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, all.RowCount())
	var keep []int
	for i := 0; i < all.RowCount(); i++ {
		key := rowKey(all, i)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keep = append(keep, i)
	}
	n.sent = true
	return all.SelectRows(keep), nil
}

func rowKey(batch *column.Columns, i int) string {
	var sb strings.Builder
	for _, col := range batch.Cols {
		v := col.Data.GetValue(i)
		if !v.Defined {
			sb.WriteString("\x00N\x01")
			continue
		}
		sb.WriteString(v.String())
		sb.WriteByte(0x1f)
	}
	return sb.String()
}

func (n *Distinct) Close() error { return n.Child.Close() }

func (n *Distinct) Headers() []string { return n.Child.Headers() }
