// Package executor implements spec.md §4.9's query executor: it walks a
// lowered ir.Plan statement by statement, evaluating each bound pipeline
// against pkg/storage, pkg/hnsw, and pkg/bm25 under a single transaction,
// and resolves the RETURN tuple from the resulting bindings. There is no
// teacher equivalent for the traversal engine itself — the teacher has no
// query language — so the transaction-selection and commit/abort shape is
// grounded on the teacher's BoltStore View/Update split, generalized from
// a fixed request handler to an arbitrary operator chain.
package executor

import "github.com/helixdb/helix-core/pkg/ids"

// Row is one item flowing through a pipeline. Which fields are
// meaningful depends on the carrier kind the owning ir.Node declares:
// a node-set row only ever reads ID/Label/Props, an edge-set row adds
// From/To, a vector-set row adds Vec/Dist/HasDist/BM25/HasBM25, a
// struct-set row (post Pick/AddFields) reads only Struct, and a scalar
// row (post Count) reads only Scalar.
type Row struct {
	ID    ids.ID
	Label string
	From  ids.ID
	To    ids.ID
	Props map[string]interface{}

	Vec     []float64
	Dist    float64
	HasDist bool
	BM25    float64
	HasBM25 bool

	Struct map[string]interface{}
	Scalar interface{}
}
