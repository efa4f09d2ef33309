package volcano

import (
	"context"

	"reifydb/internal/column"
	"reifydb/internal/reifyerr"
)

// Take yields at most Limit rows starting at Offset, pulling just as
// many upstream batches as needed and trimming the last one — the
// columnar form of the teacher's slice-based LIMIT/OFFSET handling,
// generalized to avoid pulling more of Child than necessary.
type Take struct {
	Child  Node
	Offset int
	Limit  int

	skipped int
	emitted int
	done    bool
}

func NewTake(child Node, offset, limit int) *Take {
	return &Take{Child: child, Offset: offset, Limit: limit}
}

func (n *Take) Open(ctx context.Context) error {
	if n.Limit < 0 {
		return reifyerr.Constraint(reifyerr.CodeConstraintRange, "take: limit must not be negative")
	}
	n.skipped, n.emitted, n.done = 0, 0, false
	return n.Child.Open(ctx)
}

func (n *Take) Next(ctx context.Context) (*column.Columns, error) {
	if n.done || n.emitted >= n.Limit {
		return nil, nil
	}
	for {
		batch, err := n.Child.Next(ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			n.done = true
			return nil, nil
		}
		rows := batch.RowCount()
		start := 0
		if n.skipped < n.Offset {
			skip := n.Offset - n.skipped
			if skip >= rows {
				n.skipped += rows
				continue
			}
			start = skip
			n.skipped = n.Offset
		}
		remaining := n.Limit - n.emitted
		end := rows
		if end-start > remaining {
			end = start + remaining
		}
		if start >= end {
			continue
		}
		indices := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			indices = append(indices, i)
		}
		out := batch.SelectRows(indices)
		n.emitted += out.RowCount()
		if n.emitted >= n.Limit {
			n.done = true
		}
		return out, nil
	}
}

func (n *Take) Close() error { return n.Child.Close() }

func (n *Take) Headers() []string { return n.Child.Headers() }
