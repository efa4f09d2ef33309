package volcano

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/column"
	"reifydb/internal/eval"
)

func intBatch(t *testing.T, name string, values ...int64) *column.Columns {
	t.Helper()
	rows := make([][]column.Value, len(values))
	for i, v := range values {
		rows[i] = []column.Value{column.Int64Value(v)}
	}
	batch, err := column.FromRows([]string{name}, rows)
	require.NoError(t, err)
	return batch
}

func TestInlineDataYieldsOnce(t *testing.T) {
	batch := intBatch(t, "a", 1, 2, 3)
	n := NewInlineData(batch)
	require.NoError(t, n.Open(context.Background()))
	first, err := n.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, first.RowCount())
	second, err := n.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestFilterKeepsOnlyMatchingRows(t *testing.T) {
	batch := intBatch(t, "a", 1, 2, 3, 4)
	src := NewInlineData(batch)
	f := NewFilter(src, eval.Compare{Op: eval.OpGreater, Left: eval.ColumnRef{Name: "a"}, Right: eval.Constant{Value: column.Int64Value(2)}})
	require.NoError(t, f.Open(context.Background()))
	out, err := f.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	assert.Equal(t, int64(3), out.Cols[0].Data.GetValue(0).Int)
	assert.Equal(t, int64(4), out.Cols[0].Data.GetValue(1).Int)
}

func TestMapProjectsComputedColumn(t *testing.T) {
	batch := intBatch(t, "a", 1, 2)
	src := NewInlineData(batch)
	m := NewMap(src, []ProjectedColumn{{Name: "doubled", Expr: eval.Arithmetic{Op: eval.OpMul, Left: eval.ColumnRef{Name: "a"}, Right: eval.Constant{Value: column.Int64Value(2)}}}})
	require.NoError(t, m.Open(context.Background()))
	out, err := m.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"doubled"}, out.Names())
	assert.Equal(t, int64(2), out.Cols[0].Data.GetValue(0).Int)
	assert.Equal(t, int64(4), out.Cols[0].Data.GetValue(1).Int)
}

func TestExtendKeepsOriginalColumns(t *testing.T) {
	batch := intBatch(t, "a", 1, 2)
	src := NewInlineData(batch)
	e := NewExtend(src, []ProjectedColumn{{Name: "plusOne", Expr: eval.Arithmetic{Op: eval.OpAdd, Left: eval.ColumnRef{Name: "a"}, Right: eval.Constant{Value: column.Int64Value(1)}}}})
	require.NoError(t, e.Open(context.Background()))
	out, err := e.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "plusOne"}, out.Names())
}

func TestSortOrdersDescending(t *testing.T) {
	batch := intBatch(t, "a", 3, 1, 2)
	src := NewInlineData(batch)
	s := NewSort(src, []SortKey{{ColumnName: "a", Descending: true}})
	require.NoError(t, s.Open(context.Background()))
	out, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 2, 1}, []int64{out.Cols[0].Data.GetValue(0).Int, out.Cols[0].Data.GetValue(1).Int, out.Cols[0].Data.GetValue(2).Int})
}

func TestSortRejectsUnknownColumn(t *testing.T) {
	batch := intBatch(t, "a", 3, 1, 2)
	src := NewInlineData(batch)
	s := NewSort(src, []SortKey{{ColumnName: "missing"}})
	require.NoError(t, s.Open(context.Background()))
	_, err := s.Next(context.Background())
	require.Error(t, err)
}

func TestTakeAppliesOffsetAndLimit(t *testing.T) {
	batch := intBatch(t, "a", 1, 2, 3, 4, 5)
	src := NewInlineData(batch)
	tk := NewTake(src, 1, 2)
	require.NoError(t, tk.Open(context.Background()))
	out, err := tk.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
	assert.Equal(t, int64(2), out.Cols[0].Data.GetValue(0).Int)
	assert.Equal(t, int64(3), out.Cols[0].Data.GetValue(1).Int)
}

func TestTakeRejectsNegativeLimit(t *testing.T) {
	batch := intBatch(t, "a", 1, 2, 3)
	src := NewInlineData(batch)
	tk := NewTake(src, 0, -1)
	require.Error(t, tk.Open(context.Background()))
}

func TestDistinctRemovesDuplicates(t *testing.T) {
	batch := intBatch(t, "a", 1, 1, 2, 2, 3)
	src := NewInlineData(batch)
	d := NewDistinct(src)
	require.NoError(t, d.Open(context.Background()))
	out, err := d.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, out.RowCount())
}

func TestAggregateCountAndSumByGroup(t *testing.T) {
	rows := [][]column.Value{
		{column.Utf8Value("a"), column.Int64Value(1)},
		{column.Utf8Value("a"), column.Int64Value(2)},
		{column.Utf8Value("b"), column.Int64Value(10)},
	}
	batch, err := column.FromRows([]string{"grp", "n"}, rows)
	require.NoError(t, err)
	src := NewInlineData(batch)
	agg := NewAggregate(src, []string{"grp"}, []AggregateColumn{
		{Name: "cnt", Func: AggCount},
		{Name: "total", Func: AggSum, Column: "n"},
	})
	require.NoError(t, agg.Open(context.Background()))
	out, err := agg.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
}

func TestJoinInnerMatchesOnEquality(t *testing.T) {
	left, err := column.FromRows([]string{"id"}, [][]column.Value{{column.Int64Value(1)}, {column.Int64Value(2)}})
	require.NoError(t, err)
	right, err := column.FromRows([]string{"ref"}, [][]column.Value{{column.Int64Value(2)}, {column.Int64Value(3)}})
	require.NoError(t, err)

	j := NewJoin(NewInlineData(left), NewInlineData(right), JoinInner, eval.Compare{Op: eval.OpEqual, Left: eval.ColumnRef{Name: "id"}, Right: eval.ColumnRef{Name: "ref"}})
	require.NoError(t, j.Open(context.Background()))
	out, err := j.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
}

func TestJoinLeftKeepsUnmatchedRows(t *testing.T) {
	left, err := column.FromRows([]string{"id"}, [][]column.Value{{column.Int64Value(1)}, {column.Int64Value(2)}})
	require.NoError(t, err)
	right, err := column.FromRows([]string{"ref"}, [][]column.Value{{column.Int64Value(2)}})
	require.NoError(t, err)

	j := NewJoin(NewInlineData(left), NewInlineData(right), JoinLeft, eval.Compare{Op: eval.OpEqual, Left: eval.ColumnRef{Name: "id"}, Right: eval.ColumnRef{Name: "ref"}})
	require.NoError(t, j.Open(context.Background()))
	out, err := j.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount())
}

func TestJoinNaturalMatchesSharedColumnName(t *testing.T) {
	left, err := column.FromRows([]string{"id", "x"}, [][]column.Value{{column.Int64Value(1), column.Int64Value(100)}})
	require.NoError(t, err)
	right, err := column.FromRows([]string{"id", "y"}, [][]column.Value{{column.Int64Value(1), column.Int64Value(200)}, {column.Int64Value(2), column.Int64Value(300)}})
	require.NoError(t, err)

	j := NewJoin(NewInlineData(left), NewInlineData(right), JoinNatural, nil)
	require.NoError(t, j.Open(context.Background()))
	out, err := j.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	assert.Equal(t, []string{"id", "x", "y"}, out.Names())
}

// TestJoinNaturalResolvesColumnNameCollision is §8 scenario 6: left
// {id,name} natural-joined with right {id,name} aliased "r" excludes
// the duplicate right-side id and renames the colliding non-join
// column to "r_name".
func TestJoinNaturalResolvesColumnNameCollision(t *testing.T) {
	left, err := column.FromRows([]string{"id", "name"}, [][]column.Value{{column.Int64Value(1), column.Utf8Value("alice")}})
	require.NoError(t, err)
	right, err := column.FromRows([]string{"id", "name"}, [][]column.Value{{column.Int64Value(1), column.Utf8Value("bob")}})
	require.NoError(t, err)

	j := NewJoin(NewInlineData(left), NewInlineData(right), JoinNatural, nil)
	j.RightAlias = "r"
	require.NoError(t, j.Open(context.Background()))
	out, err := j.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, out.RowCount())
	assert.Equal(t, []string{"id", "name", "r_name"}, out.Names())
	assert.Equal(t, "bob", out.Cols[2].Data.GetValue(0).Str)
}

func TestSubqueryQualifiesColumnNames(t *testing.T) {
	batch := intBatch(t, "a", 1)
	sub := NewSubquery(NewInlineData(batch), "t")
	require.NoError(t, sub.Open(context.Background()))
	assert.Equal(t, []string{"t.a"}, sub.Headers())
}
