package storage

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv/kvtest"
	"github.com/helixdb/helix-core/pkg/schema"
)

func newFuzzGraph(t *testing.T) (*GraphStore, *kvtest.FakeWriteTxn) {
	t.Helper()
	reg := schema.New()
	require.NoError(t, reg.RegisterNode(schema.NodeDef{
		Label:  "Person",
		Fields: map[string]schema.FieldDef{"tag": {Type: schema.FieldString}},
	}))
	require.NoError(t, reg.RegisterIndex(schema.IndexDef{Label: "Person", Field: "tag"}))
	require.NoError(t, reg.RegisterEdge(schema.EdgeDef{Label: "Knows", From: "Person", To: "Person"}))
	return New(reg), kvtest.NewFakeWriteTxn()
}

// FuzzAdjacencyMirror checks spec.md §8's adjacency-mirror invariant: for
// every (src, label, e, dst) reachable via OutNeighbors there is a
// matching (dst, label, e, src) via InNeighbors, after any sequence of
// add/drop edge operations a fuzzed byte stream can drive.
func FuzzAdjacencyMirror(f *testing.F) {
	f.Add([]byte{0, 1, 2, 8, 1, 9, 2})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, ops []byte) {
		s, txn := newFuzzGraph(t)

		const nodeCount = 5
		nodes := make([]ids.ID, nodeCount)
		for i := range nodes {
			id, err := s.AddNode(txn, "Person", map[string]interface{}{"tag": fmt.Sprintf("n%d", i)})
			require.NoError(t, err)
			nodes[i] = id
		}

		var edges []ids.ID
		for _, b := range ops {
			if b%4 == 3 && len(edges) > 0 {
				i := int(b) % len(edges)
				_ = s.DropEdge(txn, edges[i])
				edges = append(edges[:i], edges[i+1:]...)
				continue
			}
			from := nodes[int(b)%nodeCount]
			to := nodes[int(b>>4)%nodeCount]
			id, err := s.AddEdge(txn, "Knows", from, to, nil)
			if err == nil {
				edges = append(edges, id)
			}
		}

		for _, src := range nodes {
			out, err := s.OutNeighbors(txn, src, "Knows")
			require.NoError(t, err)
			for _, oe := range out {
				in, err := s.InNeighbors(txn, oe.Other, "Knows")
				require.NoError(t, err)
				found := false
				for _, ie := range in {
					if ie.EdgeID == oe.EdgeID && ie.Other == src {
						found = true
						break
					}
				}
				if !found {
					t.Fatalf("adjacency mirror broken: out edge %s (%s->%s) has no matching in edge", oe.EdgeID, src, oe.Other)
				}
			}
		}
	})
}

// FuzzSecondaryConsistency checks spec.md §8's secondary-index invariant:
// after arbitrary node mutations, ByIndex(label, field, v) returns exactly
// the nodes whose current value for field is v.
func FuzzSecondaryConsistency(f *testing.F) {
	f.Add([]byte{0, 1, 1, 0, 2})
	f.Add([]byte{})

	f.Fuzz(func(t *testing.T, ops []byte) {
		s, txn := newFuzzGraph(t)

		const nodeCount = 4
		const valueCount = 3
		nodes := make([]ids.ID, nodeCount)
		want := make([]string, nodeCount)
		for i := range nodes {
			want[i] = fmt.Sprintf("v%d", i%valueCount)
			id, err := s.AddNode(txn, "Person", map[string]interface{}{"tag": want[i]})
			require.NoError(t, err)
			nodes[i] = id
		}

		for _, b := range ops {
			i := int(b) % nodeCount
			v := fmt.Sprintf("v%d", int(b>>4)%valueCount)
			require.NoError(t, s.PutProperty(txn, nodes[i], "tag", v))
			want[i] = v
		}

		for v := 0; v < valueCount; v++ {
			value := fmt.Sprintf("v%d", v)
			wantIDs := map[ids.ID]bool{}
			for i, id := range nodes {
				if want[i] == value {
					wantIDs[id] = true
				}
			}
			got, err := s.ByIndex(txn, "Person", "tag", value)
			require.NoError(t, err)
			if len(got) != len(wantIDs) {
				t.Fatalf("value %q: ByIndex returned %d ids, want %d", value, len(got), len(wantIDs))
			}
			for _, id := range got {
				if !wantIDs[id] {
					t.Fatalf("value %q: ByIndex returned unexpected id %s", value, id)
				}
			}
		}
	})
}
