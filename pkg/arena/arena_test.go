package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/herr"
)

func TestAllocBytesWithinBudget(t *testing.T) {
	a := New(16)
	b, err := a.AllocBytes(10)
	require.NoError(t, err)
	assert.Len(t, b, 10)
	assert.Equal(t, 10, a.Used())
}

func TestAllocBytesExhausted(t *testing.T) {
	a := New(8)
	_, err := a.AllocBytes(16)
	require.Error(t, err)
	assert.True(t, herr.Is(err, herr.ArenaExhausted))
}

func TestResetReclaimsBudget(t *testing.T) {
	a := New(8)
	_, err := a.AllocBytes(8)
	require.NoError(t, err)
	assert.Equal(t, 0, a.Remaining())

	a.Reset()
	assert.Equal(t, 8, a.Remaining())
}

func TestAllocSliceChargesElementSize(t *testing.T) {
	a := New(8 * 4)
	s, err := AllocSlice[float64](a, 4)
	require.NoError(t, err)
	assert.Len(t, s, 4)
	assert.Equal(t, 32, a.Used())
}
