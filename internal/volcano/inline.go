package volcano

import (
	"context"

	"reifydb/internal/column"
)

// InlineData is a leaf node serving a single pre-built batch, used for
// VALUES clauses, RETURNING projections fed back into a pipeline, and
// test fixtures. It yields its batch exactly once.
type InlineData struct {
	batch   *column.Columns
	headers []string
	done    bool
}

func NewInlineData(batch *column.Columns) *InlineData {
	return &InlineData{batch: batch, headers: batch.Names()}
}

func (n *InlineData) Open(ctx context.Context) error { n.done = false; return nil }

func (n *InlineData) Next(ctx context.Context) (*column.Columns, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	return n.batch, nil
}

func (n *InlineData) Close() error { return nil }

func (n *InlineData) Headers() []string { return n.headers }
