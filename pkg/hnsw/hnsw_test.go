package hnsw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/arena"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv/kvtest"
)

func smallConfig() Config {
	return Config{M: 4, Mmax0: 8, EfConstruction: 16, EfSearch: 8, Metric: MetricL2}
}

func TestInsertAndSearchFindsNearest(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	idx := New("Embedding", smallConfig())
	a := arena.New(1 << 20)

	type point struct {
		id  ids.ID
		vec []float64
	}
	var points []point
	for i := 0; i < 20; i++ {
		id := ids.New()
		vec := []float64{float64(i), float64(i) * 2}
		require.NoError(t, idx.Insert(txn, id, vec, nil, a))
		points = append(points, point{id, vec})
	}

	query := []float64{10, 20}
	hits, err := idx.Search(txn, query, 3, nil, a)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	found := false
	for _, h := range hits {
		for _, p := range points {
			if p.id == h.ID && p.vec[0] == 10 {
				found = true
			}
		}
	}
	assert.True(t, found, "expected the exact match (10,20) among top hits")
}

func TestSearchOnEmptyIndexReturnsNoHits(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	idx := New("Embedding", smallConfig())
	a := arena.New(1 << 20)

	hits, err := idx.Search(txn, []float64{1, 2}, 5, nil, a)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteTombstonesAndExcludesFromSearch(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	idx := New("Embedding", smallConfig())
	a := arena.New(1 << 20)

	var last ids.ID
	for i := 0; i < 10; i++ {
		id := ids.New()
		require.NoError(t, idx.Insert(txn, id, []float64{float64(i), float64(i)}, nil, a))
		last = id
	}

	require.NoError(t, idx.Delete(txn, last))

	hits, err := idx.Search(txn, []float64{9, 9}, 10, nil, a)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, last, h.ID)
	}
}

func TestCompactDropsEdgesToTombstonedVectorsAndFixesEntryPoint(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	idx := New("Embedding", smallConfig())
	a := arena.New(1 << 20)

	var ids_ []ids.ID
	for i := 0; i < 8; i++ {
		id := ids.New()
		require.NoError(t, idx.Insert(txn, id, []float64{float64(i), float64(i)}, nil, a))
		ids_ = append(ids_, id)
	}

	for _, id := range ids_[:4] {
		require.NoError(t, idx.Delete(txn, id))
	}

	require.NoError(t, idx.Compact(txn))

	ep, hasEP, err := readEntryPoint(txn, idx.labelHash)
	require.NoError(t, err)
	if hasEP {
		meta, err := idx.loadMeta(txn, ep.ID)
		require.NoError(t, err)
		assert.False(t, meta.Deleted)
	}

	for _, id := range ids_[4:] {
		neighbors, err := idx.neighborsAt(txn, id, 0)
		require.NoError(t, err)
		for _, n := range neighbors {
			for _, dead := range ids_[:4] {
				assert.NotEqual(t, dead, n)
			}
		}
	}
}

func TestInsertRejectsEmptyVector(t *testing.T) {
	txn := kvtest.NewFakeWriteTxn()
	idx := New("Embedding", smallConfig())
	a := arena.New(1 << 20)

	err := idx.Insert(txn, ids.New(), nil, nil, a)
	assert.Error(t, err)
}
