// Package kvtest provides a minimal in-memory kv.WriteTxn for exercising
// packages that operate on a kv.WriteTxn/kv.Reader without needing a real
// boltkv/pebblekv backend open on disk. Test-only helper, not wired into
// any production path.
package kvtest

import (
	"bytes"
	"sort"

	"github.com/helixdb/helix-core/pkg/kv"
)

// FakeWriteTxn is a bare in-memory implementation of kv.WriteTxn.
type FakeWriteTxn struct {
	data map[kv.Family]map[string][]byte
}

// NewFakeWriteTxn returns an empty transaction with every family present.
func NewFakeWriteTxn() *FakeWriteTxn {
	data := make(map[kv.Family]map[string][]byte)
	for _, f := range kv.Families {
		data[f] = make(map[string][]byte)
	}
	return &FakeWriteTxn{data: data}
}

func (t *FakeWriteTxn) Get(family kv.Family, key []byte) ([]byte, error) {
	v, ok := t.data[family][string(key)]
	if !ok {
		return nil, kv.ErrNotFound(family, key)
	}
	return v, nil
}

func (t *FakeWriteTxn) Put(family kv.Family, key, value []byte) error {
	t.data[family][string(key)] = value
	return nil
}

func (t *FakeWriteTxn) Delete(family kv.Family, key []byte) error {
	delete(t.data[family], string(key))
	return nil
}

func (t *FakeWriteTxn) PrefixIter(family kv.Family, prefix []byte) (kv.Iterator, error) {
	var pairs []kv.Pair
	for k, v := range t.data[family] {
		if bytes.HasPrefix([]byte(k), prefix) {
			pairs = append(pairs, kv.Pair{Key: []byte(k), Value: v})
		}
	}
	sortPairs(pairs)
	return &fakeIterator{pairs: pairs, idx: -1}, nil
}

func (t *FakeWriteTxn) RangeIter(family kv.Family, start, end []byte) (kv.Iterator, error) {
	var pairs []kv.Pair
	for k, v := range t.data[family] {
		kb := []byte(k)
		if bytes.Compare(kb, start) >= 0 && (end == nil || bytes.Compare(kb, end) < 0) {
			pairs = append(pairs, kv.Pair{Key: kb, Value: v})
		}
	}
	sortPairs(pairs)
	return &fakeIterator{pairs: pairs, idx: -1}, nil
}

func (t *FakeWriteTxn) Commit() error { return nil }
func (t *FakeWriteTxn) Abort() error  { return nil }
func (t *FakeWriteTxn) Discard()      {}

func sortPairs(pairs []kv.Pair) {
	sort.Slice(pairs, func(i, j int) bool { return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0 })
}

type fakeIterator struct {
	pairs []kv.Pair
	idx   int
}

func (it *fakeIterator) Next() bool {
	it.idx++
	return it.idx < len(it.pairs)
}
func (it *fakeIterator) Pair() kv.Pair { return it.pairs[it.idx] }
func (it *fakeIterator) Err() error    { return nil }
func (it *fakeIterator) Close() error  { return nil }
