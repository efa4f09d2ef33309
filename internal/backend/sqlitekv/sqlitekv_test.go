package sqlitekv

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/backend"
	"reifydb/internal/key"
)

func openTestBackend(t *testing.T) *Backend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	b, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSingleVersionSetGetRemove(t *testing.T) {
	b := openTestBackend(t)
	k := key.CdcConsumerKey(1)

	_, ok, err := b.Single().Get(k)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Single().Set(k, []byte("v1")))
	v, ok, err := b.Single().Get(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, b.Single().Set(k, []byte("v2")))
	v, ok, err = b.Single().Get(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), v)

	require.NoError(t, b.Single().Remove(k))
	_, ok, err = b.Single().Get(k)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMultiVersionSnapshotIsolation(t *testing.T) {
	b := openTestBackend(t)
	k := key.RowKey(1, 1)
	require.NoError(t, b.Multi().Commit(5, []backend.Delta{{Key: k, Value: []byte("a")}}))
	require.NoError(t, b.Multi().Commit(10, []backend.Delta{{Key: k, Value: []byte("b")}}))

	v, ok, err := b.Multi().Get(k, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	v, ok, err = b.Multi().Get(k, 10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), v)
}

func TestMultiVersionTombstone(t *testing.T) {
	b := openTestBackend(t)
	k := key.RowKey(1, 1)
	require.NoError(t, b.Multi().Commit(1, []backend.Delta{{Key: k, Value: []byte("a")}}))
	require.NoError(t, b.Multi().Commit(2, []backend.Delta{{Key: k, Tombstone: true}}))

	_, ok, err := b.Multi().Get(k, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMultiVersionRangeOrder(t *testing.T) {
	b := openTestBackend(t)
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, b.Multi().Commit(1, []backend.Delta{{Key: key.RowKey(1, i), Value: []byte{byte(i)}}}))
	}
	it, err := b.Multi().Range(key.RowRangeForSource(1), 1)
	require.NoError(t, err)
	var seen []uint64
	for it.Next() {
		fields, err := key.DecodeRowKey(it.Item().Key)
		require.NoError(t, err)
		seen = append(seen, fields.RowNumber)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seen)
}

func TestCDCAppendDuplicateFails(t *testing.T) {
	b := openTestBackend(t)
	require.NoError(t, b.CDC().Append(backend.CDCRecord{Version: 1, Payload: []byte("x")}))
	err := b.CDC().Append(backend.CDCRecord{Version: 1, Payload: []byte("y")})
	require.Error(t, err)
}

func TestCDCRangeOrdered(t *testing.T) {
	b := openTestBackend(t)
	require.NoError(t, b.CDC().Append(backend.CDCRecord{Version: 9, Payload: []byte("r9")}))
	require.NoError(t, b.CDC().Append(backend.CDCRecord{Version: 7, Payload: []byte("r7")}))
	it, err := b.CDC().Range(7, 9)
	require.NoError(t, err)
	var versions []uint64
	for it.Next() {
		versions = append(versions, it.Item().Version)
	}
	assert.Equal(t, []uint64{7, 9}, versions)
}
