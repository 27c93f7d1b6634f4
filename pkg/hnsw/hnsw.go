// Package hnsw implements the layered proximity graph vector index
// spec.md §4.5 describes: per-vector level assignment via a geometric
// draw, greedy descent to a near seed followed by a two-heap
// search-layer pass at each level down to 0, diversity-preserving
// neighbor trimming, and tombstoned deletion left for compaction to
// reconcile. Grounded directly on spec.md §4.5's algorithm description;
// config field naming (M, EfConstruction, EfSearch, a distance-metric
// enum) follows other_examples/xDarkicex-libravdb's hnsw-format.go, the
// only HNSW-shaped reference in the retrieval pack.
package hnsw

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/helixdb/helix-core/pkg/arena"
	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv"
)

// Metric selects the distance function used for search and construction.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
)

// Config holds a label's HNSW parameters, per spec.md §4.5.
type Config struct {
	M              int
	Mmax0          int
	EfConstruction int
	EfSearch       int
	Metric         Metric
}

// DefaultConfig matches the defaults spec.md §4.5 lists.
func DefaultConfig() Config {
	return Config{M: 16, Mmax0: 32, EfConstruction: 200, EfSearch: 50, Metric: MetricL2}
}

// maxScanLevel bounds how high Compact looks for stale edges; with the
// default M=16 a geometric draw reaching this level has probability on
// the order of 1e-39 (16^-32), so it is effectively "every level that
// exists".
const maxScanLevel = 32

// Meta is a vector's non-numeric state: label, dimension, the level its
// data/edges are stored at, its metadata bag, and its tombstone flag.
type Meta struct {
	ID        ids.ID                 `msgpack:"id"`
	Label     string                 `msgpack:"label"`
	Dimension int                    `msgpack:"dimension"`
	Level     uint16                 `msgpack:"level"`
	Metadata  map[string]interface{} `msgpack:"metadata"`
	Deleted   bool                   `msgpack:"deleted"`
}

// Hit is one search result.
type Hit struct {
	ID       ids.ID
	Distance float64
}

// Index is one vector label's HNSW graph within the shared
// hnsw_edges/vectors/vector_props families. Those families are keyed by
// vector id alone; the label hash only addresses the index's entry-point
// cell, and label-wide scans filter vector_props rows by label name.
type Index struct {
	label     string
	labelHash uint32
	cfg       Config
}

// New returns an Index for label, configured per cfg.
func New(label string, cfg Config) *Index {
	return &Index{label: label, labelHash: ids.FNV1a32(label), cfg: cfg}
}

type entryPointValue struct {
	ID    ids.ID `msgpack:"id"`
	Level uint16 `msgpack:"level"`
}

func entryPointKey(labelHash uint32) []byte {
	return codec.PutU32(codec.MetaKey(kv.MetaCellEntryPoint), labelHash)
}

func readEntryPoint(txn kv.Reader, labelHash uint32) (entryPointValue, bool, error) {
	b, err := txn.Get(kv.FamilyMeta, entryPointKey(labelHash))
	if err != nil {
		if kind, ok := herr.Of(err); ok && kind == herr.NotFound {
			return entryPointValue{}, false, nil
		}
		return entryPointValue{}, false, err
	}
	var v entryPointValue
	if err := codec.MsgpackDecode(b, &v); err != nil {
		return entryPointValue{}, false, err
	}
	return v, true, nil
}

func writeEntryPoint(txn kv.WriteTxn, labelHash uint32, id ids.ID, level uint16) error {
	b, err := codec.Msgpack(entryPointValue{ID: id, Level: level})
	if err != nil {
		return err
	}
	return txn.Put(kv.FamilyMeta, entryPointKey(labelHash), b)
}

func drawLevel(m int) uint16 {
	if m < 2 {
		m = 2
	}
	mL := 1.0 / math.Log(float64(m))
	lvl := int(math.Floor(-math.Log(rand.Float64()) * mL))
	return uint16(lvl)
}

func (idx *Index) distance(a, b []float64) float64 {
	switch idx.cfg.Metric {
	case MetricCosine:
		return cosineDistance(a, b)
	default:
		return l2Distance(a, b)
	}
}

func l2Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func cosineDistance(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func (idx *Index) loadMeta(txn kv.Reader, id ids.ID) (Meta, error) {
	b, err := txn.Get(kv.FamilyVectorProps, codec.VectorPropsKey(id))
	if err != nil {
		return Meta{}, err
	}
	var m Meta
	if err := codec.MsgpackDecode(b, &m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

func (idx *Index) loadVector(txn kv.Reader, id ids.ID) ([]float64, Meta, error) {
	meta, err := idx.loadMeta(txn, id)
	if err != nil {
		return nil, Meta{}, err
	}
	b, err := txn.Get(kv.FamilyVectors, codec.VectorKey(id, meta.Level))
	if err != nil {
		return nil, Meta{}, err
	}
	vec, err := codec.DecodeFloats64(b)
	if err != nil {
		return nil, Meta{}, err
	}
	return vec, meta, nil
}

func (idx *Index) neighborsAt(txn kv.Reader, node ids.ID, level uint16) ([]ids.ID, error) {
	it, err := txn.PrefixIter(kv.FamilyHNSWEdges, codec.HNSWEdgePrefix(node, level))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	var out []ids.ID
	for it.Next() {
		dst, err := codec.ParseHNSWEdgeKey(it.Pair().Key)
		if err != nil {
			return nil, err
		}
		out = append(out, dst)
	}
	return out, it.Err()
}

// candidate pairs a vector id with its distance to the active query.
type candidate struct {
	ID   ids.ID
	Dist float64
}

type minHeap []candidate

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].Dist < h[j].Dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type maxHeap []candidate

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].Dist > h[j].Dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(candidate)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searchLayer is the standard two-heap search-layer pass: a candidate
// min-heap drives exploration, a result max-heap bounded to ef holds the
// best hits seen so far. Returns candidates in ascending distance order.
func (idx *Index) searchLayer(txn kv.Reader, query []float64, entryPoints []ids.ID, ef int, level uint16, a *arena.Arena) ([]candidate, error) {
	visited := make(map[ids.ID]bool, ef*2)
	if a != nil {
		if err := a.Charge(ef * 48); err != nil {
			return nil, err
		}
	}

	cands := &minHeap{}
	results := &maxHeap{}
	heap.Init(cands)
	heap.Init(results)

	for _, ep := range entryPoints {
		if visited[ep] {
			continue
		}
		visited[ep] = true
		vec, _, err := idx.loadVector(txn, ep)
		if err != nil {
			return nil, err
		}
		d := idx.distance(query, vec)
		heap.Push(cands, candidate{ep, d})
		heap.Push(results, candidate{ep, d})
	}

	for cands.Len() > 0 {
		c := heap.Pop(cands).(candidate)
		if results.Len() >= ef && c.Dist > (*results)[0].Dist {
			break
		}
		neighbors, err := idx.neighborsAt(txn, c.ID, level)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if visited[n] {
				continue
			}
			visited[n] = true
			vec, _, err := idx.loadVector(txn, n)
			if err != nil {
				return nil, err
			}
			d := idx.distance(query, vec)
			if results.Len() < ef || d < (*results)[0].Dist {
				heap.Push(cands, candidate{n, d})
				heap.Push(results, candidate{n, d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(candidate)
	}
	return out, nil
}

// selectNeighbors applies the diversity-preserving heuristic: sort by
// distance to query, keep a candidate only if it is closer to query than
// to every neighbor already selected (not "dominated" by one), stop at m.
func (idx *Index) selectNeighbors(txn kv.Reader, queryVec []float64, candidates []candidate, m int) ([]candidate, error) {
	sorted := append([]candidate(nil), candidates...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1].Dist > sorted[j].Dist; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}

	var selected []candidate
	for _, c := range sorted {
		if len(selected) >= m {
			break
		}
		cVec, _, err := idx.loadVector(txn, c.ID)
		if err != nil {
			return nil, err
		}
		dominated := false
		for _, s := range selected {
			sVec, _, err := idx.loadVector(txn, s.ID)
			if err != nil {
				return nil, err
			}
			if idx.distance(cVec, sVec) < c.Dist {
				dominated = true
				break
			}
		}
		if !dominated {
			selected = append(selected, c)
		}
	}
	return selected, nil
}

func (idx *Index) greedyStep(txn kv.Reader, cur ids.ID, query []float64, level uint16) (ids.ID, error) {
	curVec, _, err := idx.loadVector(txn, cur)
	if err != nil {
		return ids.Zero, err
	}
	curDist := idx.distance(query, curVec)

	for {
		neighbors, err := idx.neighborsAt(txn, cur, level)
		if err != nil {
			return ids.Zero, err
		}
		improved := false
		for _, n := range neighbors {
			nv, _, err := idx.loadVector(txn, n)
			if err != nil {
				return ids.Zero, err
			}
			d := idx.distance(query, nv)
			if d < curDist {
				cur, curDist, improved = n, d, true
			}
		}
		if !improved {
			return cur, nil
		}
	}
}

func (idx *Index) connect(txn kv.WriteTxn, a ids.ID, level uint16, b ids.ID, capAt int) error {
	if err := txn.Put(kv.FamilyHNSWEdges, codec.HNSWEdgeKey(a, level, b), nil); err != nil {
		return err
	}
	if err := txn.Put(kv.FamilyHNSWEdges, codec.HNSWEdgeKey(b, level, a), nil); err != nil {
		return err
	}
	if err := idx.pruneIfNeeded(txn, a, level, capAt); err != nil {
		return err
	}
	return idx.pruneIfNeeded(txn, b, level, capAt)
}

func (idx *Index) pruneIfNeeded(txn kv.WriteTxn, node ids.ID, level uint16, capAt int) error {
	neighbors, err := idx.neighborsAt(txn, node, level)
	if err != nil {
		return err
	}
	if len(neighbors) <= capAt {
		return nil
	}
	vec, _, err := idx.loadVector(txn, node)
	if err != nil {
		return err
	}
	cands := make([]candidate, 0, len(neighbors))
	for _, n := range neighbors {
		nv, _, err := idx.loadVector(txn, n)
		if err != nil {
			return err
		}
		cands = append(cands, candidate{ID: n, Dist: idx.distance(vec, nv)})
	}
	selected, err := idx.selectNeighbors(txn, vec, cands, capAt)
	if err != nil {
		return err
	}
	keep := make(map[ids.ID]bool, len(selected))
	for _, s := range selected {
		keep[s.ID] = true
	}
	for _, n := range neighbors {
		if keep[n] {
			continue
		}
		if err := txn.Delete(kv.FamilyHNSWEdges, codec.HNSWEdgeKey(node, level, n)); err != nil {
			return err
		}
		if err := txn.Delete(kv.FamilyHNSWEdges, codec.HNSWEdgeKey(n, level, node)); err != nil {
			return err
		}
	}
	return nil
}

// Insert adds vector under id, drawing its level and wiring it into the
// graph per spec.md §4.5's algorithm.
func (idx *Index) Insert(txn kv.WriteTxn, id ids.ID, vector []float64, metadata map[string]interface{}, a *arena.Arena) error {
	if len(vector) == 0 {
		return herr.InvalidArgumentf("hnsw: insert requires a non-empty vector")
	}
	level := drawLevel(idx.cfg.M)

	meta := Meta{ID: id, Label: idx.label, Dimension: len(vector), Level: level, Metadata: metadata}
	metaBytes, err := codec.Msgpack(meta)
	if err != nil {
		return err
	}
	if err := txn.Put(kv.FamilyVectorProps, codec.VectorPropsKey(id), metaBytes); err != nil {
		return err
	}
	if err := txn.Put(kv.FamilyVectors, codec.VectorKey(id, level), codec.Floats64(vector)); err != nil {
		return err
	}

	ep, hasEP, err := readEntryPoint(txn, idx.labelHash)
	if err != nil {
		return err
	}
	if !hasEP {
		return writeEntryPoint(txn, idx.labelHash, id, level)
	}

	cur := ep.ID
	for lc := ep.Level; lc > level; lc-- {
		cur, err = idx.greedyStep(txn, cur, vector, lc)
		if err != nil {
			return err
		}
	}

	start := level
	if ep.Level < start {
		start = ep.Level
	}
	entryPoints := []ids.ID{cur}
	for lc := start; ; lc-- {
		capAt := idx.cfg.M
		if lc == 0 {
			capAt = idx.cfg.Mmax0
		}
		candidates, err := idx.searchLayer(txn, vector, entryPoints, idx.cfg.EfConstruction, lc, a)
		if err != nil {
			return err
		}
		selected, err := idx.selectNeighbors(txn, vector, candidates, capAt)
		if err != nil {
			return err
		}
		for _, nb := range selected {
			if err := idx.connect(txn, id, lc, nb.ID, capAt); err != nil {
				return err
			}
		}
		if len(candidates) > 0 {
			entryPoints = []ids.ID{candidates[0].ID}
		}
		if lc == 0 {
			break
		}
	}

	if level > ep.Level {
		return writeEntryPoint(txn, idx.labelHash, id, level)
	}
	return nil
}

// Search returns up to k nearest live (non-tombstoned) vectors to query,
// after an optional metadata predicate filter.
func (idx *Index) Search(txn kv.Reader, query []float64, k int, filter func(Meta) bool, a *arena.Arena) ([]Hit, error) {
	ep, hasEP, err := readEntryPoint(txn, idx.labelHash)
	if err != nil {
		return nil, err
	}
	if !hasEP {
		return nil, nil
	}

	cur := ep.ID
	for lc := ep.Level; lc > 0; lc-- {
		cur, err = idx.greedyStep(txn, cur, query, lc)
		if err != nil {
			return nil, err
		}
	}

	ef := idx.cfg.EfSearch
	if k > ef {
		ef = k
	}
	candidates, err := idx.searchLayer(txn, query, []ids.ID{cur}, ef, 0, a)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, k)
	for _, c := range candidates {
		meta, err := idx.loadMeta(txn, c.ID)
		if err != nil {
			return nil, err
		}
		if meta.Deleted {
			continue
		}
		if filter != nil && !filter(meta) {
			continue
		}
		hits = append(hits, Hit{ID: c.ID, Distance: c.Dist})
		if len(hits) >= k {
			break
		}
	}
	return hits, nil
}

// Get returns a live vector's data and metadata, or a NotFound error if
// id is absent or tombstoned.
func (idx *Index) Get(txn kv.Reader, id ids.ID) ([]float64, Meta, error) {
	vec, meta, err := idx.loadVector(txn, id)
	if err != nil {
		return nil, Meta{}, err
	}
	if meta.Deleted {
		return nil, Meta{}, herr.NotFoundf("vector", id.String())
	}
	return vec, meta, nil
}

// All returns every live vector's metadata for this label, in ascending
// key order. Used by the executor's AllOf source over a vector label;
// the scan itself mirrors Compact's own FamilyVectorProps walk.
func (idx *Index) All(txn kv.Reader) ([]Meta, error) {
	it, err := txn.PrefixIter(kv.FamilyVectorProps, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []Meta
	for it.Next() {
		var m Meta
		if err := codec.MsgpackDecode(it.Pair().Value, &m); err != nil {
			return nil, err
		}
		if m.Label == idx.label && !m.Deleted {
			out = append(out, m)
		}
	}
	return out, it.Err()
}

// Delete tombstones id: graph edges are left in place, per spec.md §4.5,
// and reconciled later by Compact.
func (idx *Index) Delete(txn kv.WriteTxn, id ids.ID) error {
	meta, err := idx.loadMeta(txn, id)
	if err != nil {
		return err
	}
	meta.Deleted = true
	b, err := codec.Msgpack(meta)
	if err != nil {
		return err
	}
	return txn.Put(kv.FamilyVectorProps, codec.VectorPropsKey(id), b)
}

// Compact rebuilds every live vector's neighbor lists to drop edges to
// tombstoned vectors, and reassigns the entry point to the highest-level
// live vector (or clears it if none remain).
func (idx *Index) Compact(txn kv.WriteTxn) error {
	it, err := txn.PrefixIter(kv.FamilyVectorProps, nil)
	if err != nil {
		return err
	}
	live := make(map[ids.ID]Meta)
	deleted := make(map[ids.ID]bool)
	for it.Next() {
		var m Meta
		if err := codec.MsgpackDecode(it.Pair().Value, &m); err != nil {
			_ = it.Close()
			return err
		}
		if m.Label != idx.label {
			continue
		}
		if m.Deleted {
			deleted[m.ID] = true
		} else {
			live[m.ID] = m
		}
	}
	if err := it.Err(); err != nil {
		_ = it.Close()
		return err
	}
	_ = it.Close()

	for id := range live {
		for level := uint16(0); level <= maxScanLevel; level++ {
			neighbors, err := idx.neighborsAt(txn, id, level)
			if err != nil {
				return err
			}
			for _, n := range neighbors {
				if !deleted[n] {
					continue
				}
				if err := txn.Delete(kv.FamilyHNSWEdges, codec.HNSWEdgeKey(id, level, n)); err != nil {
					return err
				}
				if err := txn.Delete(kv.FamilyHNSWEdges, codec.HNSWEdgeKey(n, level, id)); err != nil {
					return err
				}
			}
		}
	}

	var best *Meta
	for id := range live {
		m := live[id]
		if best == nil || m.Level > best.Level {
			best = &m
		}
	}
	if best == nil {
		return txn.Delete(kv.FamilyMeta, entryPointKey(idx.labelHash))
	}
	return writeEntryPoint(txn, idx.labelHash, best.ID, best.Level)
}
