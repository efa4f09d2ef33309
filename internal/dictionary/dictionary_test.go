package dictionary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reifydb/internal/backend/memkv"
	"reifydb/internal/column"
)

type testAlloc struct {
	next map[string]uint64
}

func (a *testAlloc) NextID(sequence string) (uint64, error) {
	a.next[sequence]++
	return a.next[sequence], nil
}

func TestEncodeInternsAndReusesSameID(t *testing.T) {
	b := memkv.New()
	w := b.Single()
	alloc := &testAlloc{next: map[string]uint64{}}

	first, err := Encode(w, alloc, 1, column.Utf8Value("hello"))
	require.NoError(t, err)
	assert.Equal(t, column.KindDictionaryId, first.Kind)

	second, err := Encode(w, alloc, 1, column.Utf8Value("hello"))
	require.NoError(t, err)
	assert.Equal(t, first.Uint, second.Uint)

	third, err := Encode(w, alloc, 1, column.Utf8Value("world"))
	require.NoError(t, err)
	assert.NotEqual(t, first.Uint, third.Uint)
}

func TestEncodeUndefinedPassesThrough(t *testing.T) {
	b := memkv.New()
	w := b.Single()
	alloc := &testAlloc{next: map[string]uint64{}}

	v, err := Encode(w, alloc, 1, column.Undefined(column.KindUtf8))
	require.NoError(t, err)
	assert.False(t, v.Defined)
}

func TestDecodeRoundTrips(t *testing.T) {
	b := memkv.New()
	w := b.Single()
	alloc := &testAlloc{next: map[string]uint64{}}

	enc, err := Encode(w, alloc, 7, column.Utf8Value("repeated-value"))
	require.NoError(t, err)

	dec, found, err := Decode(w, 7, enc.Uint)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "repeated-value", dec.Str)
}

func TestDecodeMissingEntryReportsNotFound(t *testing.T) {
	b := memkv.New()
	w := b.Single()

	_, found, err := Decode(w, 1, 999)
	require.NoError(t, err)
	assert.False(t, found)
}
