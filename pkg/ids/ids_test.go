package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsTimeOrdered(t *testing.T) {
	a := New()
	time.Sleep(2 * time.Millisecond)
	b := New()
	assert.Equal(t, -1, a.Compare(b))
}

func TestRoundTripBytesAndHex(t *testing.T) {
	id := New()
	got, err := FromBytes(id.Bytes())
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got2, err := FromHex(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, got2)
}

func TestFNV1a32Deterministic(t *testing.T) {
	assert.Equal(t, FNV1a32("User"), FNV1a32("User"))
	assert.NotEqual(t, FNV1a32("User"), FNV1a32("Knows"))
}
