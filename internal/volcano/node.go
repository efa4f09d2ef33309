// Package volcano implements C11: the query pipeline. Every operator is
// a Node in the classic Volcano/iterator model — open once, pull
// batches with Next until exhausted, close once — generalizing the
// teacher's whole-result-set functions (processNonAggregateQuery,
// processJoins, applyWhereClause in internal/engine/exec.go, which
// build one []Row slice per clause) into composable, columnar,
// batch-at-a-time operators so a pipeline never has to materialize a
// query's entire result before its first row is usable.
package volcano

import (
	"context"

	"reifydb/internal/column"
)

// Node is one operator in a query pipeline.
type Node interface {
	// Open prepares the node to produce batches (acquiring iterators,
	// evaluating constant subexpressions, etc).
	Open(ctx context.Context) error
	// Next returns the next batch of rows, or (nil, nil) once the
	// node is exhausted. Batches may vary in size; callers must not
	// assume a fixed batch length.
	Next(ctx context.Context) (*column.Columns, error)
	// Close releases any resources Open acquired. Safe to call
	// multiple times.
	Close() error
	// Headers returns the node's output column names in order.
	Headers() []string
}

// pullAll drains a Node completely, used by operators (Sort, Distinct,
// the build side of Join) that are inherently blocking: they
// cannot produce their first output row until they have seen every
// input row.
func pullAll(ctx context.Context, n Node) (*column.Columns, error) {
	var all *column.Columns
	for {
		batch, err := n.Next(ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			break
		}
		if all == nil {
			all = batch
			continue
		}
		rows := make([][]column.Value, batch.RowCount())
		for i := 0; i < batch.RowCount(); i++ {
			rows[i] = batch.Row(i)
		}
		if err := all.AppendRows(rows, batch.RowNumbers); err != nil {
			return nil, err
		}
	}
	if all == nil {
		all = column.Empty()
	}
	return all, nil
}
