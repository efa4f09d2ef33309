package mvcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/logging"
	"reifydb/internal/reifyerr"
)

func newTestOracle() *Oracle {
	return New(logging.Discard())
}

func TestBeginReadReturnsCommitWatermark(t *testing.T) {
	o := newTestOracle()
	assert.Equal(t, Version(0), o.BeginRead())

	v, err := o.NewCommit(0, map[string]struct{}{"a": {}})
	require.NoError(t, err)
	assert.Equal(t, Version(1), v)

	assert.Equal(t, Version(1), o.BeginRead())
}

func TestNewCommitAllocatesIncreasingVersions(t *testing.T) {
	o := newTestOracle()
	v1, err := o.NewCommit(0, nil)
	require.NoError(t, err)
	v2, err := o.NewCommit(v1, nil)
	require.NoError(t, err)
	assert.Greater(t, v2, v1)
}

func TestNewCommitConflictsWhenReadSetOverlapsLaterWrite(t *testing.T) {
	o := newTestOracle()
	readVersion := o.BeginRead() // version 0

	// Someone else commits a write to key "x" after our read version.
	_, err := o.NewCommit(0, map[string]struct{}{"x": {}})
	require.NoError(t, err)

	// Our transaction also touched "x" (read or wrote it); must conflict.
	_, err = o.NewCommit(readVersion, map[string]struct{}{"x": {}})
	require.Error(t, err)
	kind, ok := reifyerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, reifyerr.KindConflict, kind)
}

func TestNewCommitNoConflictOnDisjointKeys(t *testing.T) {
	o := newTestOracle()
	readVersion := o.BeginRead()

	_, err := o.NewCommit(0, map[string]struct{}{"x": {}})
	require.NoError(t, err)

	_, err = o.NewCommit(readVersion, map[string]struct{}{"y": {}})
	require.NoError(t, err)
}

func TestReadWatermarkAdvancesOnlyAfterReadersFinish(t *testing.T) {
	o := newTestOracle()
	r1 := o.BeginRead()
	_, err := o.NewCommit(0, nil)
	require.NoError(t, err)
	r2 := o.BeginRead()

	// r1 is still outstanding, so the read watermark can't pass it.
	assert.LessOrEqual(t, o.ReadWatermark(), r1)

	o.DoneRead(r1)
	o.DoneRead(r2)
	assert.Equal(t, o.CommitWatermark(), o.ReadWatermark())
}

func TestConflictWindowHardBoundHalfFlushes(t *testing.T) {
	o := newTestOracle()
	for i := 0; i < maxRetainedCommits+10; i++ {
		_, err := o.NewCommit(Version(i), map[string]struct{}{"k": {}})
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, len(o.window.records), maxRetainedCommits)
}
