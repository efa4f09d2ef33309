package volcano

import (
	"context"
	"strconv"

	"reifydb/internal/column"
	"reifydb/internal/eval"
)

// JoinKind selects inner, left-outer, or natural join semantics,
// generalizing the teacher's processInnerJoin/processLeftJoin/
// processRightJoin trio (internal/engine/exec.go) into one node
// parameterized by kind rather than three near-duplicate functions.
type JoinKind uint8

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinNatural
)

// Join materializes its build side (Right) once via pullAll, then
// streams the probe side (Left) batch by batch, matching each left row
// against every right row whose On predicate evaluates defined-true —
// a nested-loop join, matching the teacher's O(n*m) double loop in
// processInnerJoin rather than inventing a hash-join the teacher never
// has an equivalent of.
type Join struct {
	Left, Right Node
	Kind        JoinKind
	On          eval.Expr // ignored for JoinNatural, which matches on shared column names

	// RightAlias names the right side for JoinNatural's collision
	// resolution (a non-join column whose name collides with a left
	// column becomes "<RightAlias>_<name>"). Ignored for Inner/Left.
	// When empty, collisions fall back to a numeric "_2", "_3", ...
	// suffix.
	RightAlias string

	rightAll  *column.Columns
	rightKept []int // indices into rightAll.Cols kept in the output, in order
	headers   []string
}

func NewJoin(left, right Node, kind JoinKind, on eval.Expr) *Join {
	return &Join{Left: left, Right: right, Kind: kind, On: on}
}

func (n *Join) Open(ctx context.Context) error {
	if err := n.Left.Open(ctx); err != nil {
		return err
	}
	if err := n.Right.Open(ctx); err != nil {
		return err
	}
	all, err := pullAll(ctx, n.Right)
	if err != nil {
		return err
	}
	n.rightAll = all

	leftHeaders := n.Left.Headers()
	if n.Kind == JoinNatural {
		kept, names := naturalJoinOutputColumns(leftHeaders, n.rightAll.Names(), n.RightAlias)
		n.rightKept = kept
		n.headers = names
	} else {
		n.rightKept = allIndices(len(n.rightAll.Cols))
		n.headers = append(append([]string{}, leftHeaders...), n.rightAll.Names()...)
	}
	return nil
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// naturalJoinOutputColumns computes natural join's output column set per
// §4.11: shared right-side join columns are dropped, and any remaining
// right column whose name collides with a left column is disambiguated
// by prefixing with the right-side alias (or, absent an alias, a
// numeric suffix) — escalating the suffix if that, too, collides.
// Returns the kept right column indices (in rightNames order) and the
// full output header list (left names followed by the kept/renamed
// right names).
func naturalJoinOutputColumns(leftNames, rightNames []string, rightAlias string) ([]int, []string) {
	shared := make(map[string]bool, len(leftNames))
	used := make(map[string]bool, len(leftNames)+len(rightNames))
	for _, name := range leftNames {
		used[name] = true
	}
	for _, name := range rightNames {
		if used[name] {
			shared[name] = true
		}
	}

	kept := make([]int, 0, len(rightNames))
	names := append([]string{}, leftNames...)
	for i, name := range rightNames {
		if shared[name] {
			continue
		}
		resolved := name
		if used[resolved] {
			if rightAlias != "" {
				resolved = rightAlias + "_" + name
			} else {
				resolved = name + "_2"
			}
			for suffix := 3; used[resolved]; suffix++ {
				resolved = name + "_" + strconv.Itoa(suffix)
			}
		}
		used[resolved] = true
		kept = append(kept, i)
		names = append(names, resolved)
	}
	return kept, names
}

func (n *Join) Next(ctx context.Context) (*column.Columns, error) {
	for {
		leftBatch, err := n.Left.Next(ctx)
		if err != nil {
			return nil, err
		}
		if leftBatch == nil {
			return nil, nil
		}
		out, err := n.joinBatch(leftBatch)
		if err != nil {
			return nil, err
		}
		if out.RowCount() == 0 {
			continue
		}
		return out, nil
	}
}

func (n *Join) joinBatch(leftBatch *column.Columns) (*column.Columns, error) {
	rightRows := n.rightAll.RowCount()
	out := n.emptyOutput(leftBatch)

	var onPredicate eval.Expr
	if n.Kind == JoinNatural {
		onPredicate = naturalPredicate(leftBatch, n.rightAll)
	} else {
		onPredicate = n.On
	}

	for l := 0; l < leftBatch.RowCount(); l++ {
		matched := false
		for r := 0; r < rightRows; r++ {
			row := predicateRow(leftBatch, l, n.rightAll, r)
			result := true
			if onPredicate != nil {
				v, err := eval.Eval(&eval.Context{Batch: row}, onPredicate)
				if err != nil {
					return nil, err
				}
				rv := v.GetValue(0)
				result = rv.Defined && rv.Bool
			}
			if !result {
				continue
			}
			matched = true
			if err := appendJoinedRow(out, leftBatch, l, n.rightAll, r, n.rightKept); err != nil {
				return nil, err
			}
		}
		if !matched && n.Kind == JoinLeft {
			if err := appendJoinedRow(out, leftBatch, l, nil, -1, n.rightKept); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// emptyOutput builds a zero-row Columns shaped like n.headers: left's
// columns verbatim, followed by the kept right columns (natural join
// drops the shared join columns; inner/left keep every right column).
func (n *Join) emptyOutput(leftBatch *column.Columns) *column.Columns {
	cols := make([]column.Column, 0, len(leftBatch.Cols)+len(n.rightKept))
	for i, lc := range leftBatch.Cols {
		cols = append(cols, column.Column{Name: n.headers[i], Data: column.NewByKind(lc.Data.Kind())})
	}
	for i, idx := range n.rightKept {
		rc := n.rightAll.Cols[idx]
		cols = append(cols, column.Column{Name: n.headers[len(leftBatch.Cols)+i], Data: column.NewByKind(rc.Data.Kind())})
	}
	return &column.Columns{Cols: cols}
}

func appendJoinedRow(out *column.Columns, left *column.Columns, l int, right *column.Columns, r int, rightKept []int) error {
	for i, lc := range left.Cols {
		if err := out.Cols[i].Data.PushValue(lc.Data.GetValue(l)); err != nil {
			return err
		}
	}
	offset := len(left.Cols)
	if right == nil {
		for i := range out.Cols[offset:] {
			if err := out.Cols[offset+i].Data.PushValue(column.Undefined(out.Cols[offset+i].Data.Kind())); err != nil {
				return err
			}
		}
		return nil
	}
	for i, idx := range rightKept {
		if err := out.Cols[offset+i].Data.PushValue(right.Cols[idx].Data.GetValue(r)); err != nil {
			return err
		}
	}
	return nil
}

// rightAlias prefixes a right-side column name so predicateRow can carry
// both sides' columns even when they share a name, without the
// ambiguity column.Columns.ColumnByName's first-match rule would
// otherwise introduce.
func rightAlias(name string) string { return "$right$" + name }

// predicateRow builds the single-row batch an On/natural predicate is
// evaluated against: left's columns under their own names, then right's
// columns under both their own name (so an explicit On condition
// referencing a non-colliding right column resolves normally) and under
// rightAlias (so natural join's generated predicate can always reach the
// right side even when the name collides with a left column, since
// column.Columns.ColumnByName resolves to the first match — left's).
func predicateRow(left *column.Columns, l int, right *column.Columns, r int) *column.Columns {
	cols := make([]column.Column, 0, len(left.Cols)+2*len(right.Cols))
	for _, lc := range left.Cols {
		d := column.NewByKind(lc.Data.Kind())
		_ = d.PushValue(lc.Data.GetValue(l))
		cols = append(cols, column.Column{Name: lc.Name, Data: d})
	}
	for _, rc := range right.Cols {
		d := column.NewByKind(rc.Data.Kind())
		_ = d.PushValue(rc.Data.GetValue(r))
		cols = append(cols, column.Column{Name: rc.Name, Data: d})

		aliased := column.NewByKind(rc.Data.Kind())
		_ = aliased.PushValue(rc.Data.GetValue(r))
		cols = append(cols, column.Column{Name: rightAlias(rc.Name), Data: aliased})
	}
	return &column.Columns{Cols: cols}
}

// naturalPredicate builds an equality AND-chain over every column name
// shared by left and right, the columnar form of natural join's
// implicit join condition.
func naturalPredicate(left, right *column.Columns) eval.Expr {
	var pred eval.Expr
	for _, lc := range left.Cols {
		if _, ok := right.ColumnByName(lc.Name); !ok {
			continue
		}
		cmp := eval.Compare{Op: eval.OpEqual, Left: eval.ColumnRef{Name: lc.Name}, Right: eval.ColumnRef{Name: rightAlias(lc.Name)}}
		if pred == nil {
			pred = cmp
		} else {
			pred = eval.Logical{Op: eval.OpAnd, Left: pred, Right: cmp}
		}
	}
	return pred
}

func (n *Join) Close() error {
	err1 := n.Left.Close()
	err2 := n.Right.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

func (n *Join) Headers() []string { return n.headers }
