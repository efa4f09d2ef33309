package reifyerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfAndIs(t *testing.T) {
	err := Conflict(CodeConflict, "write-write conflict").WithLabel("commit")
	k, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindConflict, k)
	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindNotFound))
}

func TestErrorIsMatchesByKind(t *testing.T) {
	err := NotFound(CodeTableNotFound, "table t not found")
	target := NotFound("", "")
	assert.True(t, errors.Is(err, target))
}

func TestWithCauseUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := IO(CodeIO, "flush failed").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestFragmentFormatting(t *testing.T) {
	err := Format(CodeFormatValue, "bad int literal").WithFragment(Fragment{Line: 3, Column: 7, Text: "abc"})
	assert.Contains(t, err.Error(), "3:7")
}
