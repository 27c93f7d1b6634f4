// Package kv is the L0 key-value abstraction: a unified contract over the
// concrete backends in kv/boltkv (LMDB-style) and kv/pebblekv (RocksDB-style
// LSM), exposing named column families, read/write transactions, and
// ordered prefix/range iteration. The contract says nothing about which
// backend serializes writers how — callers reason only about commit
// atomicity and snapshot isolation, per spec.md §4.1.
package kv

import "github.com/helixdb/helix-core/pkg/herr"

// Family names a column family. Every backend must provide the same set.
type Family string

const (
	FamilyNodes        Family = "nodes"
	FamilyEdges        Family = "edges"
	FamilyOutEdges     Family = "out_edges"
	FamilyInEdges      Family = "in_edges"
	FamilySecondary    Family = "secondary"
	FamilyBM25Postings Family = "bm25_postings"
	FamilyBM25Docs     Family = "bm25_docs"
	FamilyVectors      Family = "vectors"
	FamilyVectorProps  Family = "vector_props"
	FamilyHNSWEdges    Family = "hnsw_edges"
	FamilyMeta         Family = "meta"
)

// Families lists every family a backend must open at startup.
var Families = []Family{
	FamilyNodes, FamilyEdges, FamilyOutEdges, FamilyInEdges, FamilySecondary,
	FamilyBM25Postings, FamilyBM25Docs, FamilyVectors, FamilyVectorProps,
	FamilyHNSWEdges, FamilyMeta,
}

// Well-known meta cells.
const (
	MetaCellSchema     = "schema"
	MetaCellEntryPoint = "entry_point"
)

// Pair is one key/value row yielded by an iterator.
type Pair struct {
	Key   []byte
	Value []byte
}

// Iterator yields rows in ascending raw-byte key order. Callers must Close
// it; it borrows resources from its parent transaction.
type Iterator interface {
	// Next advances the iterator and reports whether a row is available.
	Next() bool
	// Pair returns the current row. Valid only after Next returns true.
	// The returned slices may be reused after the next Next/Close call —
	// callers that need to retain them must copy.
	Pair() Pair
	// Err returns any error encountered during iteration.
	Err() error
	Close() error
}

// Reader is the read-only surface shared by read and write transactions.
type Reader interface {
	// Get returns the value for key, or a *herr.Error with Kind NotFound.
	Get(family Family, key []byte) ([]byte, error)
	// PrefixIter iterates all keys with the given prefix, ascending.
	PrefixIter(family Family, prefix []byte) (Iterator, error)
	// RangeIter iterates keys in [start, end), ascending. A nil end means
	// "to the end of the family".
	RangeIter(family Family, start, end []byte) (Iterator, error)
}

// Txn is a read transaction: a consistent snapshot as of BeginRead.
type Txn interface {
	Reader
	// Discard releases the transaction's resources. Safe to call after the
	// transaction has already been used for reads; it never mutates state.
	Discard()
}

// WriteTxn is a write transaction. Writes are invisible to other
// transactions until Commit returns successfully; Abort (or a non-nil
// return from the caller before Commit) discards them entirely.
type WriteTxn interface {
	Reader
	Put(family Family, key, value []byte) error
	Delete(family Family, key []byte) error
	// Commit applies every write atomically across all families.
	Commit() error
	// Abort discards every write. Safe to call after Commit (no-op).
	Abort() error
}

// Env owns the backend environment; transactions borrow it for their scope.
type Env interface {
	BeginRead() (Txn, error)
	BeginWrite() (WriteTxn, error)
	Close() error
}

// ErrNotFound is returned (wrapped in a *herr.Error) by Get when the key is
// absent. Backends should use herr.NotFoundf to construct it so callers can
// use errors.Is/herr.Is uniformly across backends.
func ErrNotFound(family Family, key []byte) error {
	return herr.NotFoundf(string(family), string(key))
}
