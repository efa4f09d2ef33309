package volcano

import (
	"context"
	"sort"

	"reifydb/internal/column"
	"reifydb/internal/reifyerr"
)

// SortKey is one ORDER BY term.
type SortKey struct {
	ColumnName string
	Descending bool
}

// Sort is a blocking node: it pulls every batch from Child, concatenates
// them, and emits one fully ordered batch, mirroring the teacher's
// sort.Slice over a materialized []Row (internal/engine/exec.go's ORDER
// BY handling) but against a single columnar batch instead of row
// structs.
type Sort struct {
	Child Node
	Keys  []SortKey

	result *column.Columns
	sent   bool
}

func NewSort(child Node, keys []SortKey) *Sort {
	return &Sort{Child: child, Keys: keys}
}

func (n *Sort) Open(ctx context.Context) error {
	n.sent = false
	return n.Child.Open(ctx)
}

func (n *Sort) Next(ctx context.Context) (*column.Columns, error) {
	if n.sent {
		return nil, nil
	}
	all, err := pullAll(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	indices := make([]int, all.RowCount())
	for i := range indices {
		indices[i] = i
	}
	cols := make([]column.Column, len(n.Keys))
	for i, k := range n.Keys {
		col, ok := all.ColumnByName(k.ColumnName)
		if !ok {
			return nil, reifyerr.NotFound(reifyerr.CodeColumnNotFound, "unknown sort column \""+k.ColumnName+"\"")
		}
		cols[i] = col
	}
	sort.SliceStable(indices, func(a, b int) bool {
		for i, k := range n.Keys {
			va, vb := cols[i].Data.GetValue(indices[a]), cols[i].Data.GetValue(indices[b])
			cmp := compareForSort(va, vb)
			if cmp == 0 {
				continue
			}
			if k.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	n.result = all.SelectRows(indices)
	n.sent = true
	return n.result, nil
}

func compareForSort(a, b column.Value) int {
	if !a.Defined && !b.Defined {
		return 0
	}
	if !a.Defined {
		return -1
	}
	if !b.Defined {
		return 1
	}
	if a.Kind.IsNumeric() && b.Kind.IsNumeric() {
		af, _ := a.AsFloat64()
		bf, _ := b.AsFloat64()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func (n *Sort) Close() error { return n.Child.Close() }

func (n *Sort) Headers() []string { return n.Child.Headers() }
