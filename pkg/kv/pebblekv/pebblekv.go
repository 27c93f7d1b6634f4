// Package pebblekv implements the kv.Env contract over
// github.com/cockroachdb/pebble: the RocksDB-style (LSM-tree, striped-lock,
// multi-writer) backend spec.md §4.1 calls for. Pebble has no native
// column families, so families are emulated as a namespace byte prefix on
// every key (family name ‖ 0x00 ‖ caller key); write transactions buffer
// into a pebble.Batch and apply atomically on Commit, mirroring the
// buffered write-set pattern in other_examples/bobboyms-storage-engine's
// transaction_write.go. Substituting pebble (pure Go) for a cgo RocksDB
// binding keeps the module free of a cgo/toolchain dependency — see
// DESIGN.md.
package pebblekv

import (
	"bytes"

	"github.com/cockroachdb/pebble"

	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/kv"
)

// Env wraps a *pebble.DB.
type Env struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database directory at path.
func Open(path string) (*Env, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, herr.BackendErrorf(err, "open pebble database at %s", path)
	}
	return &Env{db: db}, nil
}

func (e *Env) Close() error {
	if err := e.db.Close(); err != nil {
		return herr.BackendErrorf(err, "close pebble env")
	}
	return nil
}

func (e *Env) BeginRead() (kv.Txn, error) {
	return &readTxn{snap: e.db.NewSnapshot()}, nil
}

func (e *Env) BeginWrite() (kv.WriteTxn, error) {
	return &writeTxn{db: e.db, batch: e.db.NewIndexedBatch()}, nil
}

// namespacedKey prepends the family namespace to a caller key.
func namespacedKey(family kv.Family, key []byte) []byte {
	out := make([]byte, 0, len(family)+1+len(key))
	out = append(out, family...)
	out = append(out, 0x00)
	out = append(out, key...)
	return out
}

func familyBounds(family kv.Family) (lower, upper []byte) {
	lower = namespacedKey(family, nil)
	upper = prefixUpperBound(lower)
	return
}

// prefixUpperBound returns the smallest key that is strictly greater than
// every key having prefix, or nil if prefix is all 0xFF bytes (no bound
// needed — used as pebble's convention for "unbounded").
func prefixUpperBound(prefix []byte) []byte {
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] != 0xFF {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

type readTxn struct {
	snap *pebble.Snapshot
}

func (t *readTxn) Get(family kv.Family, key []byte) ([]byte, error) {
	v, closer, err := t.snap.Get(namespacedKey(family, key))
	if err == pebble.ErrNotFound {
		return nil, kv.ErrNotFound(family, key)
	}
	if err != nil {
		return nil, herr.BackendErrorf(err, "get from %s", family)
	}
	out := make([]byte, len(v))
	copy(out, v)
	_ = closer.Close()
	return out, nil
}

func (t *readTxn) PrefixIter(family kv.Family, prefix []byte) (kv.Iterator, error) {
	full := namespacedKey(family, prefix)
	upper := prefixUpperBound(full)
	it, err := t.snap.NewIter(&pebble.IterOptions{LowerBound: full, UpperBound: upper})
	if err != nil {
		return nil, herr.BackendErrorf(err, "iterate %s", family)
	}
	return &iterator{it: it, prefix: full}, nil
}

func (t *readTxn) RangeIter(family kv.Family, start, end []byte) (kv.Iterator, error) {
	lower := namespacedKey(family, start)
	var upper []byte
	if end != nil {
		upper = namespacedKey(family, end)
	} else {
		_, upper = familyBounds(family)
	}
	it, err := t.snap.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, herr.BackendErrorf(err, "iterate %s", family)
	}
	return &iterator{it: it}, nil
}

func (t *readTxn) Discard() {
	_ = t.snap.Close()
}

type writeTxn struct {
	db    *pebble.DB
	batch *pebble.Batch
}

func (t *writeTxn) Get(family kv.Family, key []byte) ([]byte, error) {
	v, closer, err := t.batch.Get(namespacedKey(family, key))
	if err == pebble.ErrNotFound {
		return nil, kv.ErrNotFound(family, key)
	}
	if err != nil {
		return nil, herr.BackendErrorf(err, "get from %s", family)
	}
	out := make([]byte, len(v))
	copy(out, v)
	_ = closer.Close()
	return out, nil
}

func (t *writeTxn) PrefixIter(family kv.Family, prefix []byte) (kv.Iterator, error) {
	full := namespacedKey(family, prefix)
	upper := prefixUpperBound(full)
	it, err := t.batch.NewIter(&pebble.IterOptions{LowerBound: full, UpperBound: upper})
	if err != nil {
		return nil, herr.BackendErrorf(err, "iterate %s", family)
	}
	return &iterator{it: it}, nil
}

func (t *writeTxn) RangeIter(family kv.Family, start, end []byte) (kv.Iterator, error) {
	lower := namespacedKey(family, start)
	var upper []byte
	if end != nil {
		upper = namespacedKey(family, end)
	} else {
		_, upper = familyBounds(family)
	}
	it, err := t.batch.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, herr.BackendErrorf(err, "iterate %s", family)
	}
	return &iterator{it: it}, nil
}

func (t *writeTxn) Put(family kv.Family, key, value []byte) error {
	if err := t.batch.Set(namespacedKey(family, key), value, nil); err != nil {
		return herr.BackendErrorf(err, "put into %s", family)
	}
	return nil
}

func (t *writeTxn) Delete(family kv.Family, key []byte) error {
	if err := t.batch.Delete(namespacedKey(family, key), nil); err != nil {
		return herr.BackendErrorf(err, "delete from %s", family)
	}
	return nil
}

func (t *writeTxn) Commit() error {
	if err := t.batch.Commit(pebble.Sync); err != nil {
		return herr.BackendErrorf(err, "commit write txn")
	}
	return nil
}

func (t *writeTxn) Abort() error {
	if err := t.batch.Close(); err != nil {
		return herr.BackendErrorf(err, "abort write txn")
	}
	return nil
}

type iterator struct {
	it      *pebble.Iterator
	prefix  []byte
	started bool
}

func (it *iterator) Next() bool {
	var ok bool
	if !it.started {
		it.started = true
		ok = it.it.First()
	} else {
		ok = it.it.Next()
	}
	if !ok {
		return false
	}
	if it.prefix != nil && !bytes.HasPrefix(it.it.Key(), it.prefix) {
		return false
	}
	return true
}

func (it *iterator) Pair() kv.Pair {
	key := make([]byte, len(it.it.Key()))
	copy(key, it.it.Key())
	val := make([]byte, len(it.it.Value()))
	copy(val, it.it.Value())
	return kv.Pair{Key: key, Value: val}
}

func (it *iterator) Err() error {
	return it.it.Error()
}

func (it *iterator) Close() error {
	return it.it.Close()
}
