package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/backend/memkv"
	"reifydb/internal/catalog"
	"reifydb/internal/column"
	"reifydb/internal/key"
	"reifydb/internal/logging"
	"reifydb/internal/mvcc"
	"reifydb/internal/row"
	"reifydb/internal/store"
	"reifydb/internal/txn"
)

func newTestCatalog() *catalog.Catalog {
	b := memkv.New()
	return catalog.New(b.Single(), b.Single(), logging.Discard())
}

func newTestTxn() (*store.Store, *mvcc.Oracle, *txn.Transaction) {
	s := store.New(memkv.New(), logging.Discard())
	o := mvcc.New(logging.Discard())
	return s, o, txn.Begin(s, o)
}

func usersTarget() Target {
	return Target{
		Kind:     SourceTable,
		SourceID: 1,
		Columns: []catalog.ColumnDef{
			{ID: 1, SourceID: 1, Name: "id", Type: "int8"},
			{ID: 2, SourceID: 1, Name: "name", Type: "utf8"},
		},
		PrimaryKey: []string{"id"},
		IndexID:    1,
	}
}

func rowsOf(t *testing.T, names []string, rows [][]column.Value) *column.Columns {
	t.Helper()
	batch, err := column.FromRows(names, rows)
	require.NoError(t, err)
	return batch
}

func TestInsertWritesRowsAndPrimaryKeyIndex(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := usersTarget()

	input := rowsOf(t, []string{"id", "name"}, [][]column.Value{
		{column.Int64Value(1), column.Utf8Value("alice")},
		{column.Int64Value(2), column.Utf8Value("bob")},
	})

	rowNumbers, entries, err := Insert(tx, cat, pool, target, input)
	require.NoError(t, err)
	require.Len(t, rowNumbers, 2)
	assert.Len(t, entries, 2)

	raw, ok, err := tx.Get(key.RowKey(target.SourceID, rowNumbers[0]))
	require.NoError(t, err)
	require.True(t, ok)
	values, err := row.FromBytes(pool, raw)
	require.NoError(t, err)
	idx, ok := values.Schema().IndexOf("name")
	require.True(t, ok)
	assert.Equal(t, "alice", values.Schema().GetValue(values, idx).Str)

	pkBytes := primaryKeyBytes([]column.Value{column.Int64Value(1)})
	pkRaw, ok, err := tx.Get(target.primaryKeyKey(pkBytes))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, pkRaw, 8)
}

func TestInsertRejectsNullOnNonNullableColumn(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := usersTarget()

	input := rowsOf(t, []string{"id", "name"}, [][]column.Value{
		{column.Int64Value(1), column.Undefined(column.KindUtf8)},
	})

	_, _, err := Insert(tx, cat, pool, target, input)
	require.Error(t, err)
}

func TestUpdateRewritesRowAndMovesPrimaryKeyIndex(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := usersTarget()

	input := rowsOf(t, []string{"id", "name"}, [][]column.Value{
		{column.Int64Value(1), column.Utf8Value("alice")},
	})
	rowNumbers, _, err := Insert(tx, cat, pool, target, input)
	require.NoError(t, err)

	updated := rowsOf(t, []string{"id", "name"}, [][]column.Value{
		{column.Int64Value(2), column.Utf8Value("alicia")},
	})
	entries, err := Update(tx, cat, pool, target, rowNumbers, updated)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	oldPK := primaryKeyBytes([]column.Value{column.Int64Value(1)})
	_, ok, err := tx.Get(target.primaryKeyKey(oldPK))
	require.NoError(t, err)
	assert.False(t, ok, "stale primary key entry should be removed")

	newPK := primaryKeyBytes([]column.Value{column.Int64Value(2)})
	_, ok, err = tx.Get(target.primaryKeyKey(newPK))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteRemovesRowAndPrimaryKeyIndex(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := usersTarget()

	input := rowsOf(t, []string{"id", "name"}, [][]column.Value{
		{column.Int64Value(1), column.Utf8Value("alice")},
	})
	rowNumbers, _, err := Insert(tx, cat, pool, target, input)
	require.NoError(t, err)

	entries, err := Delete(tx, pool, target, rowNumbers)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, ok, err := tx.Get(key.RowKey(target.SourceID, rowNumbers[0]))
	require.NoError(t, err)
	assert.False(t, ok)

	pkBytes := primaryKeyBytes([]column.Value{column.Int64Value(1)})
	_, ok, err = tx.Get(target.primaryKeyKey(pkBytes))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteAllDiscoversEveryLiveRow(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := usersTarget()

	input := rowsOf(t, []string{"id", "name"}, [][]column.Value{
		{column.Int64Value(1), column.Utf8Value("alice")},
		{column.Int64Value(2), column.Utf8Value("bob")},
		{column.Int64Value(3), column.Utf8Value("carol")},
	})
	_, _, err := Insert(tx, cat, pool, target, input)
	require.NoError(t, err)

	entries, err := DeleteAll(tx, pool, target)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	items, err := tx.Range(key.RowRangeForSource(target.SourceID))
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestInsertDictionaryEncodesAndVolcanoDecodesSameValue(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := Target{
		Kind:     SourceTable,
		SourceID: 5,
		Columns: []catalog.ColumnDef{
			{ID: 1, SourceID: 5, Name: "status", Type: "utf8", Dictionary: 9},
		},
	}

	first := rowsOf(t, []string{"status"}, [][]column.Value{{column.Utf8Value("active")}})
	_, _, err := Insert(tx, cat, pool, target, first)
	require.NoError(t, err)

	second := rowsOf(t, []string{"status"}, [][]column.Value{{column.Utf8Value("active")}})
	rowNumbers, _, err := Insert(tx, cat, pool, target, second)
	require.NoError(t, err)

	raw, ok, err := tx.Get(key.RowKey(target.SourceID, rowNumbers[0]))
	require.NoError(t, err)
	require.True(t, ok)
	values, err := row.FromBytes(pool, raw)
	require.NoError(t, err)
	idx, ok := values.Schema().IndexOf("status")
	require.True(t, ok)
	stored := values.Schema().GetValue(values, idx)
	assert.Equal(t, column.KindDictionaryId, stored.Kind)

	decoded, err := logicalValue(tx, target.Columns[0], stored)
	require.NoError(t, err)
	assert.Equal(t, "active", decoded.Str)
}

func ringTarget(capacity uint64) Target {
	return Target{
		Kind:     SourceRingBuffer,
		SourceID: 42,
		Columns: []catalog.ColumnDef{
			{ID: 1, SourceID: 42, Name: "tag", Type: "utf8"},
		},
	}
}

func TestInsertRingBufferEvictsOldestEntryAtCapacity(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := ringTarget(3)

	for _, tag := range []string{"a", "b", "c", "d"} {
		input := rowsOf(t, []string{"tag"}, [][]column.Value{{column.Utf8Value(tag)}})
		_, _, err := InsertRingBuffer(tx, cat, pool, target, 3, input)
		require.NoError(t, err)
	}

	meta, err := readRingBufferMeta(tx, target.SourceID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), meta.Head)
	assert.Equal(t, uint64(4), meta.Tail)
	assert.Equal(t, uint64(3), meta.Count)

	got := make([]string, 0, 3)
	for i := uint64(0); i < meta.Count; i++ {
		slot := (meta.Head + i) % 3
		raw, ok, err := tx.Get(key.RowKey(target.SourceID, slot))
		require.NoError(t, err)
		require.True(t, ok)
		values, err := row.FromBytes(pool, raw)
		require.NoError(t, err)
		idx, ok := values.Schema().IndexOf("tag")
		require.True(t, ok)
		got = append(got, values.Schema().GetValue(values, idx).Str)
	}
	assert.Equal(t, []string{"b", "c", "d"}, got)
}

func TestInsertRingBufferRejectsZeroCapacity(t *testing.T) {
	cat := newTestCatalog()
	pool := row.NewPool()
	_, _, tx := newTestTxn()
	target := ringTarget(0)

	input := rowsOf(t, []string{"tag"}, [][]column.Value{{column.Utf8Value("a")}})
	_, _, err := InsertRingBuffer(tx, cat, pool, target, 0, input)
	require.Error(t, err)
}
