// Package session wires C6 (internal/txn), C8 (internal/catalog), C9/
// C10 (internal/column, internal/eval) and C11 (internal/volcano)
// together into the minimal reference executor the §6 HTTP admin
// surface needs behind its Executor seam. It understands a
// deliberately small subset of the RQL pipeline language named in
// EXTERNAL INTERFACES — `from <table>` optionally followed by
// `| filter <column> <op> <literal>` and/or `| take <n>` stages — since
// a full RQL grammar is explicitly out of this spec's core scope (§6
// interfaces are excluded from CORE, and "no SQL grammar compatibility"
// is a stated non-goal). This is reference wiring proving the stack
// composes end to end, not a claim of complete pipeline language
// support.
package session

import (
	"context"
	"strconv"
	"strings"

	"reifydb/internal/adminhttp"
	"reifydb/internal/catalog"
	"reifydb/internal/column"
	"reifydb/internal/eval"
	"reifydb/internal/mvcc"
	"reifydb/internal/reifyerr"
	"reifydb/internal/row"
	"reifydb/internal/store"
	"reifydb/internal/txn"
	"reifydb/internal/volcano"
)

// Session executes pipeline statements against one namespace, each in
// its own read-only transaction.
type Session struct {
	catalog     *catalog.Catalog
	store       *store.Store
	oracle      *mvcc.Oracle
	pool        *row.Pool
	namespaceID uint64
}

func New(cat *catalog.Catalog, st *store.Store, oracle *mvcc.Oracle, pool *row.Pool, namespaceID uint64) *Session {
	return &Session{catalog: cat, store: st, oracle: oracle, pool: pool, namespaceID: namespaceID}
}

var _ adminhttp.Executor = (*Session)(nil)

// Execute implements adminhttp.Executor, running each statement in its
// own transaction and returning one Frame per statement in order.
func (s *Session) Execute(ctx context.Context, _ string, statements []string, _ map[string]any) ([]adminhttp.Frame, error) {
	frames := make([]adminhttp.Frame, 0, len(statements))
	for _, stmt := range statements {
		frame, err := s.executeOne(ctx, stmt)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func (s *Session) executeOne(ctx context.Context, statement string) (adminhttp.Frame, error) {
	stages := splitPipeline(statement)
	if len(stages) == 0 || !strings.HasPrefix(stages[0], "from ") {
		return adminhttp.Frame{}, reifyerr.Format(reifyerr.CodeFormatValue, "pipeline statement must begin with \"from <source>\"")
	}
	sourceName := strings.TrimSpace(strings.TrimPrefix(stages[0], "from"))
	if sourceName == "" {
		return adminhttp.Frame{}, reifyerr.Format(reifyerr.CodeFormatValue, "\"from\" stage is missing a source name")
	}

	tx := txn.Begin(s.store, s.oracle)
	defer tx.Rollback()

	tableDef, ok, err := s.catalog.Tables.ByName(s.namespaceID, sourceName, tx.ReadVersion())
	if err != nil {
		return adminhttp.Frame{}, err
	}
	if !ok {
		return adminhttp.Frame{}, reifyerr.NotFound(reifyerr.CodeTableNotFound, "table \""+sourceName+"\" not found")
	}
	columns := s.catalog.Columns.ListAt(tableDef.ID, tx.ReadVersion())
	defs := make([]catalog.ColumnDef, len(columns))
	for i, c := range columns {
		defs[i] = *c
	}

	var node volcano.Node = volcano.NewScan(tx, s.pool, tableDef.ID, defs, 0)
	for _, stage := range stages[1:] {
		switch {
		case strings.HasPrefix(stage, "filter "):
			predicate, err := parseFilter(strings.TrimPrefix(stage, "filter "))
			if err != nil {
				return adminhttp.Frame{}, err
			}
			node = volcano.NewFilter(node, predicate)
		case strings.HasPrefix(stage, "take "):
			limit, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(stage, "take ")))
			if err != nil {
				return adminhttp.Frame{}, reifyerr.Format(reifyerr.CodeFormatValue, "take: invalid row count")
			}
			node = volcano.NewTake(node, 0, limit)
		default:
			return adminhttp.Frame{}, reifyerr.Format(reifyerr.CodeFormatValue, "unsupported pipeline stage: "+stage)
		}
	}

	return runNode(ctx, node)
}

func splitPipeline(statement string) []string {
	parts := strings.Split(statement, "|")
	stages := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			stages = append(stages, p)
		}
	}
	return stages
}

func runNode(ctx context.Context, node volcano.Node) (adminhttp.Frame, error) {
	if err := node.Open(ctx); err != nil {
		return adminhttp.Frame{}, err
	}
	defer node.Close()

	frame := adminhttp.Frame{Columns: node.Headers()}
	for {
		batch, err := node.Next(ctx)
		if err != nil {
			return adminhttp.Frame{}, err
		}
		if batch == nil {
			break
		}
		n := batch.RowCount()
		for r := 0; r < n; r++ {
			row := make([]any, len(batch.Cols))
			for ci, c := range batch.Cols {
				row[ci] = toAny(c.Data.GetValue(r))
			}
			frame.Rows = append(frame.Rows, row)
		}
	}
	return frame, nil
}

func toAny(v column.Value) any {
	if !v.Defined {
		return nil
	}
	switch {
	case v.Kind == column.KindBool:
		return v.Bool
	case v.Kind.IsNumeric():
		f, _ := v.AsFloat64()
		return f
	default:
		return v.String()
	}
}

// parseFilter compiles "<column> <op> <literal>" into an eval.Compare,
// the small reference grammar this package supports in place of a full
// expression parser.
func parseFilter(clause string) (eval.Expr, error) {
	fields := strings.Fields(clause)
	if len(fields) != 3 {
		return nil, reifyerr.Format(reifyerr.CodeFormatValue, "filter: expected \"<column> <op> <value>\"")
	}
	column, opToken, literal := fields[0], fields[1], fields[2]

	op, ok := compareOps[opToken]
	if !ok {
		return nil, reifyerr.Format(reifyerr.CodeFormatValue, "filter: unsupported operator \""+opToken+"\"")
	}

	return eval.Compare{
		Op:    op,
		Left:  eval.ColumnRef{Name: column},
		Right: eval.Constant{Value: parseLiteral(literal)},
	}, nil
}

var compareOps = map[string]eval.CompareOp{
	"=":  eval.OpEqual,
	"!=": eval.OpNotEqual,
	"<":  eval.OpLess,
	"<=": eval.OpLessOrEqual,
	">":  eval.OpGreater,
	">=": eval.OpGreaterOrEqual,
}

func parseLiteral(token string) colValue {
	if len(token) >= 2 && token[0] == '"' && token[len(token)-1] == '"' {
		return column.Utf8Value(token[1 : len(token)-1])
	}
	if i, err := strconv.ParseInt(token, 10, 64); err == nil {
		return column.Int64Value(i)
	}
	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return column.Float64Value(f)
	}
	if token == "true" || token == "false" {
		return column.BoolValue(token == "true")
	}
	return column.Utf8Value(token)
}

type colValue = column.Value
