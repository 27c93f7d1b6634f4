package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv/kvtest"
)

func TestAddAndQueryRanksRelevantDocHigher(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	labelHash := uint32(1)

	doc1 := ids.New()
	doc2 := ids.New()
	require.NoError(t, AddDoc(txn, labelHash, doc1, "the quick brown fox jumps over the lazy dog", DefaultTokenizer))
	require.NoError(t, AddDoc(txn, labelHash, doc2, "lazy cats sleep all day", DefaultTokenizer))

	hits, err := Query(txn, labelHash, "lazy dog", DefaultTokenizer, DefaultParams, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, doc1, hits[0].DocID)
}

func TestAddDocIsIdempotent(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	labelHash := uint32(1)
	doc := ids.New()

	require.NoError(t, AddDoc(txn, labelHash, doc, "alpha beta", DefaultTokenizer))
	require.NoError(t, AddDoc(txn, labelHash, doc, "gamma delta", DefaultTokenizer))

	hits, err := Query(txn, labelHash, "alpha", DefaultTokenizer, DefaultParams, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 0)

	hits, err = Query(txn, labelHash, "gamma", DefaultTokenizer, DefaultParams, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRemoveDocIsNoopWhenAbsent(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	assert.NoError(t, RemoveDoc(txn, 1, ids.New()))
}
