package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStubIsDeterministic(t *testing.T) {
	stub := NewLocalStub(8)
	v1, err := stub.Embed(context.Background(), "hello")
	require.NoError(t, err)
	v2, err := stub.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 8)
}

func TestLocalStubDistinguishesInputs(t *testing.T) {
	stub := NewLocalStub(8)
	v1, err := stub.Embed(context.Background(), "hello")
	require.NoError(t, err)
	v2, err := stub.Embed(context.Background(), "goodbye")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestLocalStubRejectsNonPositiveDimension(t *testing.T) {
	stub := NewLocalStub(0)
	_, err := stub.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil))
}
