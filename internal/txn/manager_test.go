package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/backend/memkv"
	"reifydb/internal/key"
	"reifydb/internal/logging"
	"reifydb/internal/mvcc"
	"reifydb/internal/store"
)

func newHarness() (*store.Store, *mvcc.Oracle) {
	s := store.New(memkv.New(), logging.Discard())
	o := mvcc.New(logging.Discard())
	return s, o
}

func TestGetSeesPendingWriteBeforeCommit(t *testing.T) {
	s, o := newHarness()
	tx := Begin(s, o)
	k := key.RowKey(1, 1)

	_, ok, err := tx.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx.Set(k, []byte("v1")))
	v, ok, err := tx.Get(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestCommitAppliesPendingAndIsVisibleToNewTransaction(t *testing.T) {
	s, o := newHarness()
	tx := Begin(s, o)
	k := key.RowKey(1, 1)
	require.NoError(t, tx.Set(k, []byte("v1")))

	event, err := tx.Commit()
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Len(t, event.Deltas, 1)

	tx2 := Begin(s, o)
	v, ok, err := tx2.Get(k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestRemoveTombstonesPendingAndCommitted(t *testing.T) {
	s, o := newHarness()
	k := key.RowKey(1, 1)

	tx := Begin(s, o)
	require.NoError(t, tx.Set(k, []byte("v1")))
	_, err := tx.Commit()
	require.NoError(t, err)

	tx2 := Begin(s, o)
	require.NoError(t, tx2.Remove(k))
	_, ok, err := tx2.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = tx2.Commit()
	require.NoError(t, err)

	tx3 := Begin(s, o)
	_, ok, err = tx3.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRangeMergesPendingWithStore(t *testing.T) {
	s, o := newHarness()
	committedKey := key.RowKey(1, 1)

	setup := Begin(s, o)
	require.NoError(t, setup.Set(committedKey, []byte("committed")))
	_, err := setup.Commit()
	require.NoError(t, err)

	tx := Begin(s, o)
	pendingKey := key.RowKey(1, 2)
	require.NoError(t, tx.Set(pendingKey, []byte("pending")))

	items, err := tx.Range(key.RowRangeForSource(1))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []byte("committed"), items[0].Value)
	assert.Equal(t, []byte("pending"), items[1].Value)
}

func TestCommitConflictWhenConcurrentWriteOverlaps(t *testing.T) {
	s, o := newHarness()
	k := key.RowKey(1, 1)

	txA := Begin(s, o)
	txB := Begin(s, o)

	require.NoError(t, txA.Set(k, []byte("a")))
	_, err := txA.Commit()
	require.NoError(t, err)

	// txB read nothing from k but also writes to it; since it started
	// before txA's commit and now tries to write the same key, the
	// conflict check (read+write set vs. later write sets) must catch it.
	require.NoError(t, txB.Set(k, []byte("b")))
	_, err = txB.Commit()
	require.Error(t, err)
}

func TestRollbackDiscardsPending(t *testing.T) {
	s, o := newHarness()
	k := key.RowKey(1, 1)

	tx := Begin(s, o)
	require.NoError(t, tx.Set(k, []byte("v1")))
	tx.Rollback()

	tx2 := Begin(s, o)
	_, ok, err := tx2.Get(k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOperationsAfterCommitFail(t *testing.T) {
	s, o := newHarness()
	tx := Begin(s, o)
	_, err := tx.Commit()
	require.NoError(t, err)

	_, _, err = tx.Get(key.RowKey(1, 1))
	require.Error(t, err)
	err = tx.Set(key.RowKey(1, 1), []byte("x"))
	require.Error(t, err)
}
