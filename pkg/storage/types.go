// Package storage implements the L1 GraphStore: the storage engine that
// mounts the L0 kv.Env into referential-invariant-preserving CRUD for
// nodes, edges, and their secondary/BM25 side-tables. Vectors and their
// HNSW graph are stored by pkg/hnsw, not by GraphStore.
// Grounded on the teacher's pkg/storage.BoltStore (one method pair per
// entity kind, each wrapped in a single backend transaction), generalized
// from the teacher's fixed struct types to the schema-driven node/edge/
// vector model spec.md §4.3 describes.
package storage

import (
	"math"

	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/ids"
)

// Node is a stored graph node: a label plus a property bag.
type Node struct {
	ID         ids.ID                 `msgpack:"id"`
	Label      string                 `msgpack:"label"`
	Properties map[string]interface{} `msgpack:"properties"`
}

// Edge is a stored directed edge between two nodes.
type Edge struct {
	ID         ids.ID                 `msgpack:"id"`
	Label      string                 `msgpack:"label"`
	From       ids.ID                 `msgpack:"from"`
	To         ids.ID                 `msgpack:"to"`
	Properties map[string]interface{} `msgpack:"properties"`
	Unique     bool                   `msgpack:"unique"`
}

// VectorMeta is the non-numeric half of a stored vector: its label,
// dimension, metadata bag, and tombstone state. The raw f-array lives
// separately in the vectors family, keyed by (id, level).
type VectorMeta struct {
	ID        ids.ID                 `msgpack:"id"`
	Label     string                 `msgpack:"label"`
	Dimension int                    `msgpack:"dimension"`
	Metadata  map[string]interface{} `msgpack:"metadata"`
	Deleted   bool                   `msgpack:"deleted"`
}

// encodeIndexValue canonicalizes a property value into the byte string
// secondary/BM25 keys embed. Equality lookups only (spec.md §4.3's
// by_index is a point lookup, not a range scan), so canonical-but-not-
// necessarily-order-preserving encodings are sufficient for every type
// except the numeric ones, which are still big-endian for consistency
// with the rest of the key layout.
func encodeIndexValue(v interface{}) ([]byte, error) {
	switch x := v.(type) {
	case string:
		return []byte(x), nil
	case bool:
		if x {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case int:
		return encodeInt64(int64(x)), nil
	case int8:
		return encodeInt64(int64(x)), nil
	case int16:
		return encodeInt64(int64(x)), nil
	case int32:
		return encodeInt64(int64(x)), nil
	case int64:
		return encodeInt64(x), nil
	case uint:
		return encodeUint64(uint64(x)), nil
	case uint8:
		return encodeUint64(uint64(x)), nil
	case uint16:
		return encodeUint64(uint64(x)), nil
	case uint32:
		return encodeUint64(uint64(x)), nil
	case uint64:
		return encodeUint64(x), nil
	case float32:
		return encodeFloat64(float64(x)), nil
	case float64:
		return encodeFloat64(x), nil
	default:
		return nil, herr.InvalidArgumentf("unsupported index value type %T", v)
	}
}

func encodeInt64(v int64) []byte {
	// Flip the sign bit so big-endian byte order matches numeric order.
	u := uint64(v) ^ (1 << 63)
	return encodeUint64(u)
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

func encodeFloat64(f float64) []byte {
	bits := math.Float64bits(f)
	if f >= 0 {
		bits ^= 1 << 63
	} else {
		bits = ^bits
	}
	return encodeUint64(bits)
}

// textProperties concatenates every string-valued property of props,
// in a stable (sorted) field order, for BM25 document construction.
func textProperties(props map[string]interface{}) string {
	keys := sortedKeys(props)
	out := ""
	for _, k := range keys {
		if s, ok := props[k].(string); ok {
			if out != "" {
				out += " "
			}
			out += s
		}
	}
	return out
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func notFound(kind, id string) error { return herr.NotFoundf(kind, id) }
