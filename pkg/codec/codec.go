// Package codec implements the L0 key layout and value encodings from
// spec.md §4.2: byte-exact key builders for every kv.Family, msgpack for
// structured values (the bincode role), and a raw little-endian float
// codec for vector data (the bytemuck role). Grounded on the teacher's
// lack of an equivalent — the pack's manifests (storj-storj,
// LerianStudio-midaz) show vmihailenco/msgpack used for this same
// compact-struct-encoding role, so that library is adopted here rather
// than inventing a hand-rolled format.
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/ids"
)

// Msgpack encodes v (a Node, Edge, or VectorMeta) into its bincode-role
// structured value representation.
func Msgpack(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, herr.CorruptPayloadf(err, "encode msgpack value")
	}
	return b, nil
}

// MsgpackDecode decodes b into out, the inverse of Msgpack.
func MsgpackDecode(b []byte, out interface{}) error {
	if err := msgpack.Unmarshal(b, out); err != nil {
		return herr.CorruptPayloadf(err, "decode msgpack value")
	}
	return nil
}

// Floats64 encodes a raw f64 array as fixed-width little-endian bytes —
// the bytemuck role. No ecosystem Go library reinterprets a float slice as
// bytes without copying the way bytemuck does in Rust; binary.LittleEndian
// round-tripping is the idiomatic Go substitute.
func Floats64(vals []float64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[i*8:], math.Float64bits(v))
	}
	return out
}

// DecodeFloats64 is the inverse of Floats64.
func DecodeFloats64(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, herr.CorruptPayloadf(nil, "vector byte length %d not a multiple of 8", len(b))
	}
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out, nil
}

// PutU32 appends a big-endian uint32 to dst.
func PutU32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// PutU16 appends a big-endian uint16 to dst.
func PutU16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

// U32 reads a big-endian uint32 from the front of b.
func U32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, herr.CorruptPayloadf(nil, "expected 4 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// U16 reads a big-endian uint16 from the front of b.
func U16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, herr.CorruptPayloadf(nil, "expected 2 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

// --- nodes / edges / vector_props: id(16) keys ---

// NodeKey, EdgeKey, VectorPropsKey are all bare 16-byte id keys.
func NodeKey(id ids.ID) []byte        { return id.Bytes() }
func EdgeKey(id ids.ID) []byte        { return id.Bytes() }
func VectorPropsKey(id ids.ID) []byte { return id.Bytes() }

// --- out_edges / in_edges: src|dst(16) ‖ label_hash(4) ‖ edge_id(16) ---

// OutEdgeKey builds the out_edges family key for (src, labelHash, edgeID).
func OutEdgeKey(src ids.ID, labelHash uint32, edgeID ids.ID) []byte {
	key := make([]byte, 0, 16+4+16)
	key = append(key, src.Bytes()...)
	key = PutU32(key, labelHash)
	key = append(key, edgeID.Bytes()...)
	return key
}

// OutEdgePrefix builds a prefix matching every out_edges entry for src,
// optionally narrowed to a single label.
func OutEdgePrefix(src ids.ID, labelHash uint32, hasLabel bool) []byte {
	key := make([]byte, 0, 16+4)
	key = append(key, src.Bytes()...)
	if hasLabel {
		key = PutU32(key, labelHash)
	}
	return key
}

// InEdgeKey builds the in_edges family key for (dst, labelHash, edgeID).
func InEdgeKey(dst ids.ID, labelHash uint32, edgeID ids.ID) []byte {
	key := make([]byte, 0, 16+4+16)
	key = append(key, dst.Bytes()...)
	key = PutU32(key, labelHash)
	key = append(key, edgeID.Bytes()...)
	return key
}

// InEdgePrefix mirrors OutEdgePrefix for the in_edges family.
func InEdgePrefix(dst ids.ID, labelHash uint32, hasLabel bool) []byte {
	key := make([]byte, 0, 16+4)
	key = append(key, dst.Bytes()...)
	if hasLabel {
		key = PutU32(key, labelHash)
	}
	return key
}

// ParseOutEdgeKey splits an out_edges (or in_edges) key back into its
// src/dst, labelHash, and edgeID components.
func ParseOutEdgeKey(key []byte) (other ids.ID, labelHash uint32, edgeID ids.ID, err error) {
	if len(key) != 16+4+16 {
		return ids.Zero, 0, ids.Zero, herr.CorruptPayloadf(nil, "malformed adjacency key (len %d)", len(key))
	}
	other, err = ids.FromBytes(key[0:16])
	if err != nil {
		return ids.Zero, 0, ids.Zero, err
	}
	labelHash, err = U32(key[16:20])
	if err != nil {
		return ids.Zero, 0, ids.Zero, err
	}
	edgeID, err = ids.FromBytes(key[20:36])
	if err != nil {
		return ids.Zero, 0, ids.Zero, err
	}
	return other, labelHash, edgeID, nil
}

// --- secondary: label_hash(4) ‖ field_hash(4) ‖ value_bytes ‖ id(16) ---

// SecondaryKey builds a secondary-index row key.
func SecondaryKey(labelHash, fieldHash uint32, valueBytes []byte, id ids.ID) []byte {
	key := make([]byte, 0, 4+4+len(valueBytes)+16)
	key = PutU32(key, labelHash)
	key = PutU32(key, fieldHash)
	key = append(key, valueBytes...)
	key = append(key, id.Bytes()...)
	return key
}

// SecondaryPrefix builds the prefix matching all rows for (labelHash,
// fieldHash, valueBytes), i.e. the by_index lookup scan.
func SecondaryPrefix(labelHash, fieldHash uint32, valueBytes []byte) []byte {
	key := make([]byte, 0, 4+4+len(valueBytes))
	key = PutU32(key, labelHash)
	key = PutU32(key, fieldHash)
	key = append(key, valueBytes...)
	return key
}

// SecondaryFieldPrefix builds the prefix matching every row for
// (labelHash, fieldHash), across all values — used when rewriting a
// node's secondary entries on update/drop.
func SecondaryFieldPrefix(labelHash, fieldHash uint32) []byte {
	key := make([]byte, 0, 4+4)
	key = PutU32(key, labelHash)
	key = PutU32(key, fieldHash)
	return key
}

// SecondaryKeyID extracts the trailing id from a secondary-index key.
func SecondaryKeyID(key []byte) (ids.ID, error) {
	if len(key) < 16 {
		return ids.Zero, herr.CorruptPayloadf(nil, "malformed secondary key (len %d)", len(key))
	}
	return ids.FromBytes(key[len(key)-16:])
}

// --- bm25:postings: label(4) ‖ term_bytes ‖ doc_id(16) ---

// BM25PostingKey builds a postings-row key for (labelHash, term, docID).
func BM25PostingKey(labelHash uint32, term string, docID ids.ID) []byte {
	key := make([]byte, 0, 4+len(term)+16)
	key = PutU32(key, labelHash)
	key = append(key, term...)
	key = append(key, docID.Bytes()...)
	return key
}

// BM25TermPrefix builds the prefix matching every posting for
// (labelHash, term) — the scan used to score a query term.
func BM25TermPrefix(labelHash uint32, term string) []byte {
	key := make([]byte, 0, 4+len(term))
	key = PutU32(key, labelHash)
	key = append(key, term...)
	return key
}

// BM25PostingDocID extracts the trailing 16-byte doc id from a postings
// key.
func BM25PostingDocID(key []byte) (ids.ID, error) {
	if len(key) < 16 {
		return ids.Zero, herr.CorruptPayloadf(nil, "malformed postings key (len %d)", len(key))
	}
	return ids.FromBytes(key[len(key)-16:])
}

// BM25PostingValue encodes a term frequency as the postings value.
// Positions are not stored (see DESIGN.md Open Question decision).
func BM25PostingValue(tf uint32) []byte {
	return PutU32(nil, tf)
}

// DecodeBM25PostingValue is the inverse of BM25PostingValue.
func DecodeBM25PostingValue(b []byte) (uint32, error) { return U32(b) }

// --- bm25:docs: doc_id(16) -> doc_len(u32) ---

// BM25DocKey builds the bm25:docs family key for docID.
func BM25DocKey(docID ids.ID) []byte { return docID.Bytes() }

// BM25DocLenValue encodes a document length.
func BM25DocLenValue(length uint32) []byte { return PutU32(nil, length) }

// DecodeBM25DocLenValue is the inverse of BM25DocLenValue.
func DecodeBM25DocLenValue(b []byte) (uint32, error) { return U32(b) }

// --- vectors: "v:" ‖ id(16) ‖ level(16) -> raw f-array ---

var vectorKeyPrefix = []byte("v:")

// VectorKey builds the vectors family key for (id, level).
func VectorKey(id ids.ID, level uint16) []byte {
	key := make([]byte, 0, 2+16+2)
	key = append(key, vectorKeyPrefix...)
	key = append(key, id.Bytes()...)
	key = PutU16(key, level)
	return key
}

// VectorIDPrefix builds a prefix matching every level stored for id.
func VectorIDPrefix(id ids.ID) []byte {
	key := make([]byte, 0, 2+16)
	key = append(key, vectorKeyPrefix...)
	key = append(key, id.Bytes()...)
	return key
}

// ParseVectorKey splits a vectors key back into its id and level.
func ParseVectorKey(key []byte) (ids.ID, uint16, error) {
	if len(key) != 2+16+2 {
		return ids.Zero, 0, herr.CorruptPayloadf(nil, "malformed vector key (len %d)", len(key))
	}
	id, err := ids.FromBytes(key[2:18])
	if err != nil {
		return ids.Zero, 0, err
	}
	level, err := U16(key[18:20])
	if err != nil {
		return ids.Zero, 0, err
	}
	return id, level, nil
}

// --- hnsw_edges: src(16) ‖ level(16) ‖ dst(16) ---

// HNSWEdgeKey builds an hnsw_edges family key for (src, level, dst).
func HNSWEdgeKey(src ids.ID, level uint16, dst ids.ID) []byte {
	key := make([]byte, 0, 16+2+16)
	key = append(key, src.Bytes()...)
	key = PutU16(key, level)
	key = append(key, dst.Bytes()...)
	return key
}

// HNSWEdgePrefix builds a prefix matching every neighbor of (src, level).
func HNSWEdgePrefix(src ids.ID, level uint16) []byte {
	key := make([]byte, 0, 16+2)
	key = append(key, src.Bytes()...)
	key = PutU16(key, level)
	return key
}

// ParseHNSWEdgeKey extracts the dst id from an hnsw_edges key.
func ParseHNSWEdgeKey(key []byte) (dst ids.ID, err error) {
	if len(key) != 16+2+16 {
		return ids.Zero, herr.CorruptPayloadf(nil, "malformed hnsw edge key (len %d)", len(key))
	}
	return ids.FromBytes(key[18:34])
}

// --- meta: fixed cell names ---

// MetaKey builds a meta family key for a well-known cell name.
func MetaKey(cell string) []byte { return []byte(cell) }

// String is a small helper for callers building readable error context
// around a key (tests, diagnostics).
func String(key []byte) string { return fmt.Sprintf("%x", key) }
