package herr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := NotFoundf("node", "abc123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, NotFoundf("edge", "other")))
	assert.False(t, errors.Is(err, SchemaViolationf("x")))
}

func TestErrorUnwrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := BackendErrorf(cause, "put failed")
	assert.ErrorIs(t, err, cause)
}

func TestOfReportsKind(t *testing.T) {
	k, ok := Of(ArenaExhaustedf("budget exceeded"))
	require.True(t, ok)
	assert.Equal(t, ArenaExhausted, k)

	_, ok = Of(errors.New("plain"))
	assert.False(t, ok)
}
