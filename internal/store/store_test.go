package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/backend"
	"reifydb/internal/backend/memkv"
	"reifydb/internal/key"
	"reifydb/internal/logging"
)

func newTestStore() *Store {
	return New(memkv.New(), logging.Discard())
}

func TestStoreGetSingleTier(t *testing.T) {
	s := newTestStore()
	k := key.RowKey(1, 1)
	require.NoError(t, s.Commit(5, []backend.Delta{{Key: k, Value: []byte("a")}}))

	v, ok, err := s.Get(k, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	_, ok, err = s.Get(k, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreGetChecksColderTiersInOrder(t *testing.T) {
	warm := memkv.New()
	cold := memkv.New()
	s := New(memkv.New(), logging.Discard()).WithWarm(warm).WithCold(cold)

	hotKey := key.RowKey(1, 1)
	warmKey := key.RowKey(1, 2)
	coldKey := key.RowKey(1, 3)

	require.NoError(t, s.Hot.Multi().Commit(1, []backend.Delta{{Key: hotKey, Value: []byte("hot")}}))
	require.NoError(t, warm.Multi().Commit(1, []backend.Delta{{Key: warmKey, Value: []byte("warm")}}))
	require.NoError(t, cold.Multi().Commit(1, []backend.Delta{{Key: coldKey, Value: []byte("cold")}}))

	for k, want := range map[key.Key]string{hotKey: "hot", warmKey: "warm", coldKey: "cold"} {
		v, ok, err := s.Get(k, 1)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, string(v))
	}
}

func TestStoreRangeDedupesAcrossTiersKeepingHighestVersion(t *testing.T) {
	warm := memkv.New()
	s := New(memkv.New(), logging.Discard()).WithWarm(warm)

	k := key.RowKey(1, 1)
	require.NoError(t, warm.Multi().Commit(1, []backend.Delta{{Key: k, Value: []byte("old")}}))
	require.NoError(t, s.Hot.Multi().Commit(2, []backend.Delta{{Key: k, Value: []byte("new")}}))

	items, err := s.Range(key.RowRangeForSource(1), 2)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []byte("new"), items[0].Value)
	assert.Equal(t, uint64(2), items[0].Version)
}

func TestStoreRangeSuppressesTombstones(t *testing.T) {
	s := newTestStore()
	k := key.RowKey(1, 1)
	require.NoError(t, s.Commit(1, []backend.Delta{{Key: k, Value: []byte("a")}}))
	require.NoError(t, s.Commit(2, []backend.Delta{{Key: k, Tombstone: true}}))

	items, err := s.Range(key.RowRangeForSource(1), 2)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestStoreRangeHonorsBatchSize(t *testing.T) {
	s := newTestStore()
	s.BatchSize = 2
	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, s.Commit(1, []backend.Delta{{Key: key.RowKey(1, i), Value: []byte{byte(i)}}}))
	}
	items, err := s.Range(key.RowRangeForSource(1), 1)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestStoreRangeReverseOrder(t *testing.T) {
	s := newTestStore()
	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, s.Commit(1, []backend.Delta{{Key: key.RowKey(1, i), Value: []byte{byte(i)}}}))
	}
	items, err := s.RangeReverse(key.RowRangeForSource(1), 1)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []byte{3}, items[0].Value)
	assert.Equal(t, []byte{1}, items[2].Value)
}

func TestStoreDemoteMovesChainAndHidesInSource(t *testing.T) {
	s := newTestStore()
	warm := memkv.New()
	s.WithWarm(warm)

	k := key.RowKey(1, 1)
	require.NoError(t, s.Commit(1, []backend.Delta{{Key: k, Value: []byte("a")}}))

	moved, err := s.Demote(s.Hot, warm, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	v, ok, err := s.Get(k, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), v)

	wv, ok, err := warm.Multi().Get(k, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("a"), wv)
}

func TestStoreSweepSingleStageCompactsImmediately(t *testing.T) {
	s := newTestStore()
	k := key.RowKey(1, 1)
	require.NoError(t, s.Commit(1, []backend.Delta{{Key: k, Value: []byte("a")}}))
	require.NoError(t, s.Commit(2, []backend.Delta{{Key: k, Value: []byte("b")}}))

	require.NoError(t, s.Sweep(RetentionPolicy{}, 1))

	_, ok, err := s.Get(k, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.Get(k, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("b"), v)
}

func TestStoreSweepTwoStageDefersFirstCall(t *testing.T) {
	s := newTestStore()
	k := key.RowKey(1, 1)
	require.NoError(t, s.Commit(1, []backend.Delta{{Key: k, Value: []byte("a")}}))
	require.NoError(t, s.Commit(2, []backend.Delta{{Key: k, Value: []byte("b")}}))

	policy := RetentionPolicy{TwoStage: true}
	require.NoError(t, s.Sweep(policy, 1))
	// first call only marks; version 1 is still reachable
	_, ok, err := s.Get(k, 1)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, s.Sweep(policy, 1))
	_, ok, err = s.Get(k, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
