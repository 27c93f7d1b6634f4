package storage

import (
	"github.com/helixdb/helix-core/pkg/bm25"
	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/schema"
)

// GraphStore is the L1 storage engine: it mounts a kv.Env (via the
// caller-supplied transaction) into referential-invariant-preserving CRUD
// for nodes, edges, and their secondary/BM25 side-tables, per spec.md
// §4.3. All operations participate in the caller's transaction — the
// engine itself holds no backend handle, only the schema registry needed
// to resolve labels/fields to hashes and index definitions.
type GraphStore struct {
	reg *schema.Registry
}

// New returns a GraphStore bound to reg.
func New(reg *schema.Registry) *GraphStore {
	return &GraphStore{reg: reg}
}

// NeighborEdge is one adjacency-scan result: the connecting edge and the
// node at its far end.
type NeighborEdge struct {
	EdgeID ids.ID
	Other  ids.ID
}

// AddNode creates a node of label with the given properties, writing its
// secondary-index entries and BM25 document. Fails with SchemaViolation
// if a UNIQUE index on label already holds one of the supplied values.
func (s *GraphStore) AddNode(txn kv.WriteTxn, label string, props map[string]interface{}) (ids.ID, error) {
	def, ok := s.reg.Node(label)
	if !ok {
		return ids.Zero, herr.SchemaViolationf("add_node: unknown label %q", label)
	}
	labelHash := schema.LabelHash(label)

	for _, idx := range s.reg.Indices(label) {
		val, present := props[idx.Field]
		if !present {
			continue
		}
		if idx.Unique {
			if err := s.checkUnique(txn, labelHash, idx.Field, val, ids.Zero, false); err != nil {
				return ids.Zero, err
			}
		}
	}

	id := ids.New()
	if err := s.writeSecondary(txn, labelHash, id, def, props); err != nil {
		return ids.Zero, err
	}
	if err := s.refreshBM25(txn, labelHash, id, props); err != nil {
		return ids.Zero, err
	}

	node := Node{ID: id, Label: label, Properties: props}
	b, err := codec.Msgpack(node)
	if err != nil {
		return ids.Zero, err
	}
	if err := txn.Put(kv.FamilyNodes, codec.NodeKey(id), b); err != nil {
		return ids.Zero, err
	}
	return id, nil
}

// GetNode returns the decoded node for id, or a NotFound error.
func (s *GraphStore) GetNode(txn kv.Reader, id ids.ID) (*Node, error) {
	b, err := txn.Get(kv.FamilyNodes, codec.NodeKey(id))
	if err != nil {
		return nil, err
	}
	var n Node
	if err := codec.MsgpackDecode(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// checkUnique scans the secondary index for (labelHash, field, value) and
// fails if a row exists belonging to an id other than excludeID (used by
// PutProperty to permit a no-op rewrite of a node's own value).
func (s *GraphStore) checkUnique(txn kv.Reader, labelHash uint32, field string, value interface{}, excludeID ids.ID, hasExclude bool) error {
	valueBytes, err := encodeIndexValue(value)
	if err != nil {
		return err
	}
	prefix := codec.SecondaryPrefix(labelHash, schema.FieldHash(field), valueBytes)
	it, err := txn.PrefixIter(kv.FamilySecondary, prefix)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		id, err := codec.SecondaryKeyID(it.Pair().Key)
		if err != nil {
			return err
		}
		if hasExclude && id == excludeID {
			continue
		}
		return herr.SchemaViolationf("unique index violation on field %q", field)
	}
	return it.Err()
}

func (s *GraphStore) writeSecondary(txn kv.WriteTxn, labelHash uint32, id ids.ID, def schema.NodeDef, props map[string]interface{}) error {
	for field := range def.Fields {
		val, present := props[field]
		if !present {
			continue
		}
		if _, indexed := s.reg.IndexOn(def.Label, field); !indexed {
			continue
		}
		valueBytes, err := encodeIndexValue(val)
		if err != nil {
			continue // non-indexable value type (e.g. blob/list): silently not indexed
		}
		key := codec.SecondaryKey(labelHash, schema.FieldHash(field), valueBytes, id)
		if err := txn.Put(kv.FamilySecondary, key, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphStore) dropSecondary(txn kv.WriteTxn, labelHash uint32, id ids.ID, label string, props map[string]interface{}) error {
	for _, idx := range s.reg.Indices(label) {
		val, present := props[idx.Field]
		if !present {
			continue
		}
		valueBytes, err := encodeIndexValue(val)
		if err != nil {
			continue
		}
		key := codec.SecondaryKey(labelHash, schema.FieldHash(idx.Field), valueBytes, id)
		if err := txn.Delete(kv.FamilySecondary, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphStore) refreshBM25(txn kv.WriteTxn, labelHash uint32, id ids.ID, props map[string]interface{}) error {
	text := textProperties(props)
	if text == "" {
		return bm25.RemoveDoc(txn, labelHash, id)
	}
	return bm25.AddDoc(txn, labelHash, id, text, bm25.DefaultTokenizer)
}

// AddEdge creates a directed edge of label between from and to, verifying
// both endpoints exist and match the label's declared endpoint labels. If
// label is declared UNIQUE, fails when an edge of this label already
// connects the same ordered pair.
func (s *GraphStore) AddEdge(txn kv.WriteTxn, label string, from, to ids.ID, props map[string]interface{}) (ids.ID, error) {
	def, ok := s.reg.Edge(label)
	if !ok {
		return ids.Zero, herr.SchemaViolationf("add_edge: unknown label %q", label)
	}

	fromNode, err := s.GetNode(txn, from)
	if err != nil {
		return ids.Zero, err
	}
	if fromNode.Label != def.From {
		return ids.Zero, herr.SchemaViolationf("add_edge: from-node label %q does not match declared %q", fromNode.Label, def.From)
	}
	toNode, err := s.GetNode(txn, to)
	if err != nil {
		return ids.Zero, err
	}
	if toNode.Label != def.To {
		return ids.Zero, herr.SchemaViolationf("add_edge: to-node label %q does not match declared %q", toNode.Label, def.To)
	}

	labelHash := schema.LabelHash(label)
	if def.Unique {
		if err := s.checkEdgeAbsence(txn, from, labelHash, to); err != nil {
			return ids.Zero, err
		}
	}

	id := ids.New()
	edge := Edge{ID: id, Label: label, From: from, To: to, Properties: props, Unique: def.Unique}
	b, err := codec.Msgpack(edge)
	if err != nil {
		return ids.Zero, err
	}
	if err := txn.Put(kv.FamilyEdges, codec.EdgeKey(id), b); err != nil {
		return ids.Zero, err
	}
	if err := txn.Put(kv.FamilyOutEdges, codec.OutEdgeKey(from, labelHash, id), to.Bytes()); err != nil {
		return ids.Zero, err
	}
	if err := txn.Put(kv.FamilyInEdges, codec.InEdgeKey(to, labelHash, id), from.Bytes()); err != nil {
		return ids.Zero, err
	}
	return id, nil
}

func (s *GraphStore) checkEdgeAbsence(txn kv.Reader, from ids.ID, labelHash uint32, to ids.ID) error {
	prefix := codec.OutEdgePrefix(from, labelHash, true)
	it, err := txn.PrefixIter(kv.FamilyOutEdges, prefix)
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		dst, err := ids.FromBytes(it.Pair().Value)
		if err != nil {
			return err
		}
		if dst == to {
			return herr.SchemaViolationf("unique edge already exists between %s and %s", from, to)
		}
	}
	return it.Err()
}

// GetEdge returns the decoded edge for id, or a NotFound error.
func (s *GraphStore) GetEdge(txn kv.Reader, id ids.ID) (*Edge, error) {
	b, err := txn.Get(kv.FamilyEdges, codec.EdgeKey(id))
	if err != nil {
		return nil, err
	}
	var e Edge
	if err := codec.MsgpackDecode(b, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// OutNeighbors scans the out_edges adjacency for src, optionally
// restricted to one label (pass "" for any label).
func (s *GraphStore) OutNeighbors(txn kv.Reader, src ids.ID, label string) ([]NeighborEdge, error) {
	prefix := codec.OutEdgePrefix(src, 0, false)
	if label != "" {
		prefix = codec.OutEdgePrefix(src, schema.LabelHash(label), true)
	}
	it, err := txn.PrefixIter(kv.FamilyOutEdges, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []NeighborEdge
	for it.Next() {
		pair := it.Pair()
		_, _, edgeID, err := codec.ParseOutEdgeKey(pair.Key)
		if err != nil {
			return nil, err
		}
		dst, err := ids.FromBytes(pair.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, NeighborEdge{EdgeID: edgeID, Other: dst})
	}
	return out, it.Err()
}

// InNeighbors scans the in_edges adjacency for dst, optionally restricted
// to one label.
func (s *GraphStore) InNeighbors(txn kv.Reader, dst ids.ID, label string) ([]NeighborEdge, error) {
	prefix := codec.InEdgePrefix(dst, 0, false)
	if label != "" {
		prefix = codec.InEdgePrefix(dst, schema.LabelHash(label), true)
	}
	it, err := txn.PrefixIter(kv.FamilyInEdges, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []NeighborEdge
	for it.Next() {
		pair := it.Pair()
		_, _, edgeID, err := codec.ParseOutEdgeKey(pair.Key)
		if err != nil {
			return nil, err
		}
		src, err := ids.FromBytes(pair.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, NeighborEdge{EdgeID: edgeID, Other: src})
	}
	return out, it.Err()
}

// ByIndex looks up every node id whose label.field currently holds value.
func (s *GraphStore) ByIndex(txn kv.Reader, label, field string, value interface{}) ([]ids.ID, error) {
	valueBytes, err := encodeIndexValue(value)
	if err != nil {
		return nil, err
	}
	prefix := codec.SecondaryPrefix(schema.LabelHash(label), schema.FieldHash(field), valueBytes)
	it, err := txn.PrefixIter(kv.FamilySecondary, prefix)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ids.ID
	for it.Next() {
		id, err := codec.SecondaryKeyID(it.Pair().Key)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, it.Err()
}

// NodesOfLabel scans every node row and returns the ids belonging to
// label, in ascending key (creation) order. Used by the executor's AllOf
// source; there is no secondary structure for "every node of a label" so
// this is a full family scan, acceptable at the embedded scale spec.md
// targets.
func (s *GraphStore) NodesOfLabel(txn kv.Reader, label string) ([]ids.ID, error) {
	it, err := txn.PrefixIter(kv.FamilyNodes, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ids.ID
	for it.Next() {
		var n Node
		if err := codec.MsgpackDecode(it.Pair().Value, &n); err != nil {
			return nil, err
		}
		if n.Label == label {
			out = append(out, n.ID)
		}
	}
	return out, it.Err()
}

// EdgesOfLabel scans every edge row and returns the ids belonging to
// label, in ascending key (creation) order.
func (s *GraphStore) EdgesOfLabel(txn kv.Reader, label string) ([]ids.ID, error) {
	it, err := txn.PrefixIter(kv.FamilyEdges, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var out []ids.ID
	for it.Next() {
		var e Edge
		if err := codec.MsgpackDecode(it.Pair().Value, &e); err != nil {
			return nil, err
		}
		if e.Label == label {
			out = append(out, e.ID)
		}
	}
	return out, it.Err()
}

// DropEdge removes a single edge and both of its adjacency entries,
// without touching either endpoint node. Mirrors dropIncidentEdges' own
// per-edge deletion logic, exposed directly for a DROP over an edge set.
func (s *GraphStore) DropEdge(txn kv.WriteTxn, id ids.ID) error {
	edge, err := s.GetEdge(txn, id)
	if err != nil {
		return err
	}
	labelHash := schema.LabelHash(edge.Label)
	if err := txn.Delete(kv.FamilyOutEdges, codec.OutEdgeKey(edge.From, labelHash, id)); err != nil {
		return err
	}
	if err := txn.Delete(kv.FamilyInEdges, codec.InEdgeKey(edge.To, labelHash, id)); err != nil {
		return err
	}
	return txn.Delete(kv.FamilyEdges, codec.EdgeKey(id))
}

// PutProperty rewrites field on node id, updating any affected secondary
// index entry and refreshing the node's BM25 document.
func (s *GraphStore) PutProperty(txn kv.WriteTxn, id ids.ID, field string, value interface{}) error {
	node, err := s.GetNode(txn, id)
	if err != nil {
		return err
	}
	labelHash := schema.LabelHash(node.Label)

	if idx, indexed := s.reg.IndexOn(node.Label, field); indexed {
		if idx.Unique {
			if err := s.checkUnique(txn, labelHash, field, value, id, true); err != nil {
				return err
			}
		}
		if old, present := node.Properties[field]; present {
			if oldBytes, err := encodeIndexValue(old); err == nil {
				if err := txn.Delete(kv.FamilySecondary, codec.SecondaryKey(labelHash, schema.FieldHash(field), oldBytes, id)); err != nil {
					return err
				}
			}
		}
		if newBytes, err := encodeIndexValue(value); err == nil {
			if err := txn.Put(kv.FamilySecondary, codec.SecondaryKey(labelHash, schema.FieldHash(field), newBytes, id), nil); err != nil {
				return err
			}
		}
	}

	if node.Properties == nil {
		node.Properties = make(map[string]interface{})
	}
	node.Properties[field] = value

	if err := s.refreshBM25(txn, labelHash, id, node.Properties); err != nil {
		return err
	}

	b, err := codec.Msgpack(*node)
	if err != nil {
		return err
	}
	return txn.Put(kv.FamilyNodes, codec.NodeKey(id), b)
}

// PutEdgeProperty rewrites field on edge id. Edges carry no secondary
// index or BM25 document of their own, so unlike PutProperty this is a
// plain read-modify-write of the edge row.
func (s *GraphStore) PutEdgeProperty(txn kv.WriteTxn, id ids.ID, field string, value interface{}) error {
	edge, err := s.GetEdge(txn, id)
	if err != nil {
		return err
	}
	if edge.Properties == nil {
		edge.Properties = make(map[string]interface{})
	}
	edge.Properties[field] = value
	b, err := codec.Msgpack(*edge)
	if err != nil {
		return err
	}
	return txn.Put(kv.FamilyEdges, codec.EdgeKey(id), b)
}

// DropNode removes id and every structure it owns: incident edges (both
// directions), secondary entries, its BM25 doc, and the node row itself.
// For every property whose schema field type is FieldVectorRef,
// onVectorRef (if non-nil) is invoked with the referenced vector id so
// the caller (the executor, which also holds the hnsw index) can
// tombstone it — storage itself owns no vector state.
func (s *GraphStore) DropNode(txn kv.WriteTxn, id ids.ID, onVectorRef func(ids.ID) error) error {
	node, err := s.GetNode(txn, id)
	if err != nil {
		return err
	}
	labelHash := schema.LabelHash(node.Label)

	if err := s.dropIncidentEdges(txn, id, labelHash); err != nil {
		return err
	}
	if err := s.dropSecondary(txn, labelHash, id, node.Label, node.Properties); err != nil {
		return err
	}
	if err := bm25.RemoveDoc(txn, labelHash, id); err != nil {
		return err
	}

	if def, ok := s.reg.Node(node.Label); ok && onVectorRef != nil {
		for field, fdef := range def.Fields {
			if fdef.Type != schema.FieldVectorRef {
				continue
			}
			raw, present := node.Properties[field]
			if !present {
				continue
			}
			hexStr, ok := raw.(string)
			if !ok {
				continue
			}
			vecID, err := ids.FromHex(hexStr)
			if err != nil {
				continue
			}
			if err := onVectorRef(vecID); err != nil {
				return err
			}
		}
	}

	return txn.Delete(kv.FamilyNodes, codec.NodeKey(id))
}

func (s *GraphStore) dropIncidentEdges(txn kv.WriteTxn, id ids.ID, _ uint32) error {
	outPrefix := codec.OutEdgePrefix(id, 0, false)
	outIt, err := txn.PrefixIter(kv.FamilyOutEdges, outPrefix)
	if err != nil {
		return err
	}
	var toDelete []kv.Pair
	for outIt.Next() {
		pair := outIt.Pair()
		toDelete = append(toDelete, kv.Pair{Key: append([]byte(nil), pair.Key...), Value: append([]byte(nil), pair.Value...)})
	}
	if err := outIt.Err(); err != nil {
		_ = outIt.Close()
		return err
	}
	_ = outIt.Close()

	for _, pair := range toDelete {
		_, edgeLabelHash, edgeID, err := codec.ParseOutEdgeKey(pair.Key)
		if err != nil {
			return err
		}
		dst, err := ids.FromBytes(pair.Value)
		if err != nil {
			return err
		}
		if err := txn.Delete(kv.FamilyOutEdges, pair.Key); err != nil {
			return err
		}
		if err := txn.Delete(kv.FamilyInEdges, codec.InEdgeKey(dst, edgeLabelHash, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(kv.FamilyEdges, codec.EdgeKey(edgeID)); err != nil {
			return err
		}
	}

	inPrefix := codec.InEdgePrefix(id, 0, false)
	inIt, err := txn.PrefixIter(kv.FamilyInEdges, inPrefix)
	if err != nil {
		return err
	}
	toDelete = nil
	for inIt.Next() {
		pair := inIt.Pair()
		toDelete = append(toDelete, kv.Pair{Key: append([]byte(nil), pair.Key...), Value: append([]byte(nil), pair.Value...)})
	}
	if err := inIt.Err(); err != nil {
		_ = inIt.Close()
		return err
	}
	_ = inIt.Close()

	for _, pair := range toDelete {
		_, edgeLabelHash, edgeID, err := codec.ParseOutEdgeKey(pair.Key)
		if err != nil {
			return err
		}
		src, err := ids.FromBytes(pair.Value)
		if err != nil {
			return err
		}
		if err := txn.Delete(kv.FamilyInEdges, pair.Key); err != nil {
			return err
		}
		if err := txn.Delete(kv.FamilyOutEdges, codec.OutEdgeKey(src, edgeLabelHash, edgeID)); err != nil {
			return err
		}
		if err := txn.Delete(kv.FamilyEdges, codec.EdgeKey(edgeID)); err != nil {
			return err
		}
	}
	return nil
}

// Compact runs storage-level maintenance under a write txn. BM25 postings
// are already removed eagerly by RemoveDoc, so there is nothing to
// reclaim there; HNSW tombstone compaction lives in pkg/hnsw.Compact,
// invoked separately by pkg/maintenance. This hook exists so
// pkg/maintenance has a single storage-level entry point to call even
// when there is presently nothing to do.
func (s *GraphStore) Compact(txn kv.WriteTxn) error {
	return nil
}
