package sizing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddUint64(t *testing.T) {
	t.Parallel()

	sum, ok := AddUint64(1, 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), sum)

	_, ok = AddUint64(math.MaxUint64, 1)
	assert.False(t, ok)
}

func TestToInt64(t *testing.T) {
	t.Parallel()

	n, err := ToInt64(42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = ToInt64(math.MaxUint64)
	require.ErrorIs(t, err, ErrOverflow)
}

func TestCursor_AdvancesPast32Bits(t *testing.T) {
	t.Parallel()

	var c Cursor
	require.NoError(t, c.Advance(math.MaxInt32))
	require.NoError(t, c.Advance(math.MaxInt32))
	require.NoError(t, c.Advance(math.MaxInt32))
	assert.Equal(t, uint64(3*math.MaxInt32), c.Offset())
	assert.Greater(t, c.Offset(), uint64(math.MaxUint32))
}

func TestCursor_RejectsOverflow(t *testing.T) {
	t.Parallel()

	c := Cursor{off: math.MaxUint64 - 1}
	require.ErrorIs(t, c.Advance(2), ErrOverflow)
	assert.Equal(t, uint64(math.MaxUint64-1), c.Offset())
	require.ErrorIs(t, c.Advance(-1), ErrOverflow)
}
