package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/ids"
)

func TestFloats64RoundTrip(t *testing.T) {
	in := []float64{1.5, -2.25, 0, 3.1415926535}
	got, err := DecodeFloats64(Floats64(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestMsgpackRoundTrip(t *testing.T) {
	type sample struct {
		Label string
		Count int
	}
	in := sample{Label: "Person", Count: 7}
	b, err := Msgpack(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, MsgpackDecode(b, &out))
	assert.Equal(t, in, out)
}

func TestOutEdgeKeyRoundTrip(t *testing.T) {
	src := ids.New()
	edgeID := ids.New()
	key := OutEdgeKey(src, 0xDEADBEEF, edgeID)

	gotSrc, labelHash, gotEdgeID, err := ParseOutEdgeKey(key)
	require.NoError(t, err)
	assert.Equal(t, src, gotSrc)
	assert.Equal(t, uint32(0xDEADBEEF), labelHash)
	assert.Equal(t, edgeID, gotEdgeID)
}

func TestSecondaryPrefixIsKeyPrefix(t *testing.T) {
	id := ids.New()
	value := []byte("alice")
	prefix := SecondaryPrefix(1, 2, value)
	key := SecondaryKey(1, 2, value, id)
	assert.True(t, len(key) > len(prefix))
	assert.Equal(t, prefix, key[:len(prefix)])

	gotID, err := SecondaryKeyID(key)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
}

func TestVectorKeyRoundTrip(t *testing.T) {
	id := ids.New()
	key := VectorKey(id, 3)
	gotID, level, err := ParseVectorKey(key)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, uint16(3), level)
}

func TestHNSWEdgeKeyRoundTrip(t *testing.T) {
	src, dst := ids.New(), ids.New()
	key := HNSWEdgeKey(src, 2, dst)
	gotDst, err := ParseHNSWEdgeKey(key)
	require.NoError(t, err)
	assert.Equal(t, dst, gotDst)
}
