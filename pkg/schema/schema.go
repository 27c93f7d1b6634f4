// Package schema implements the database's schema registry: the
// label/field declarations nodes, edges, and vectors must conform to, the
// secondary-index set, and a versioned migration mechanism for rewriting
// on-disk data between schema versions. Grounded directly on spec.md §3
// "Schema registry" and §4.2's collision-rejection rule; there is no
// teacher equivalent (the teacher has no schema-versioning concept), so
// this package is built fresh in the idiom the rest of the module uses
// (explicit error kinds via pkg/herr, msgpack persistence via pkg/codec).
package schema

import (
	"fmt"

	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv"
)

// FieldType enumerates the scalar and composite property types spec.md §3
// allows on a node or edge.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldI8     FieldType = "i8"
	FieldI16    FieldType = "i16"
	FieldI32    FieldType = "i32"
	FieldI64    FieldType = "i64"
	FieldU8     FieldType = "u8"
	FieldU16    FieldType = "u16"
	FieldU32    FieldType = "u32"
	FieldU64    FieldType = "u64"
	FieldU128   FieldType = "u128"
	FieldF32    FieldType = "f32"
	FieldF64    FieldType = "f64"
	FieldBool   FieldType = "bool"
	FieldDate   FieldType = "date" // ISO-8601 string
	FieldBlob   FieldType = "blob"
	FieldList   FieldType = "list" // list-valued; element type tracked in FieldDef.Elem
	// FieldVectorRef marks a property as a link to a Vector entity (its
	// hex-encoded id is stored as the property value) — spec.md §3's
	// "vector-valued (only via vector index linkage)" node field kind.
	FieldVectorRef FieldType = "vector_ref"
)

// FieldDef describes one property slot on a node or edge label.
type FieldDef struct {
	Type FieldType `msgpack:"type"`
	Elem FieldType `msgpack:"elem,omitempty"` // meaningful only when Type == FieldList
}

// NodeDef declares a node label's property shape.
type NodeDef struct {
	Label  string              `msgpack:"label"`
	Fields map[string]FieldDef `msgpack:"fields"`
}

// EdgeDef declares an edge label's endpoints, property shape, and
// uniqueness contract.
type EdgeDef struct {
	Label  string              `msgpack:"label"`
	From   string              `msgpack:"from"`
	To     string              `msgpack:"to"`
	Fields map[string]FieldDef `msgpack:"fields"`
	Unique bool                `msgpack:"unique"`
}

// Precision is a vector label's declared storage width. All three widen
// to f64 internally (see DESIGN.md Open Question decision); Precision is
// retained only to report the label's declared contract back to callers.
type Precision string

const (
	PrecisionF16 Precision = "f16"
	PrecisionF32 Precision = "f32"
	PrecisionF64 Precision = "f64"
)

// HNSWConfig holds the per-label index parameters spec.md §4.5 lists.
type HNSWConfig struct {
	M              int `msgpack:"m"`
	Mmax0          int `msgpack:"mmax0"`
	EfConstruction int `msgpack:"ef_construction"`
	EfSearch       int `msgpack:"ef_search"`
}

// VectorDef declares a vector label's fixed dimension, precision, and
// index configuration.
type VectorDef struct {
	Label     string     `msgpack:"label"`
	Dimension int        `msgpack:"dimension"`
	Precision Precision  `msgpack:"precision"`
	HNSW      HNSWConfig `msgpack:"hnsw"`
}

// IndexDef declares one secondary index over a node label's field.
type IndexDef struct {
	Label  string `msgpack:"label"`
	Field  string `msgpack:"field"`
	Unique bool   `msgpack:"unique"`
}

// snapshot is the msgpack-persisted shape of a Registry.
type snapshot struct {
	Version int                  `msgpack:"version"`
	Nodes   map[string]NodeDef   `msgpack:"nodes"`
	Edges   map[string]EdgeDef   `msgpack:"edges"`
	Vectors map[string]VectorDef `msgpack:"vectors"`
	Indices []IndexDef           `msgpack:"indices"`
}

// Registry is the per-database schema: node/edge/vector label
// definitions and the secondary-index set, plus the label/field hash
// table used to detect §4.2's collision rule at registration time.
type Registry struct {
	version int
	nodes   map[string]NodeDef
	edges   map[string]EdgeDef
	vectors map[string]VectorDef
	indices []IndexDef

	hashes map[uint32]string // hash -> the label/field string that claimed it
}

// New returns an empty registry at version 0.
func New() *Registry {
	return &Registry{
		nodes:   make(map[string]NodeDef),
		edges:   make(map[string]EdgeDef),
		vectors: make(map[string]VectorDef),
		hashes:  make(map[uint32]string),
	}
}

// Version reports the registry's current schema version.
func (r *Registry) Version() int { return r.version }

// claimHash records name's FNV-1a hash, rejecting the registration if a
// different name already claims that hash (spec.md §4.2's collision rule).
func (r *Registry) claimHash(name string) (uint32, error) {
	h := ids.FNV1a32(name)
	if existing, ok := r.hashes[h]; ok && existing != name {
		return 0, herr.SchemaViolationf("hash collision: %q and %q both hash to %08x", existing, name, h)
	}
	r.hashes[h] = name
	return h, nil
}

// LabelHash returns label's 32-bit FNV-1a hash without claiming it; used
// by callers (storage, analyzer) to build keys for an already-registered
// label.
func LabelHash(label string) uint32 { return ids.FNV1a32(label) }

// FieldHash returns field's 32-bit FNV-1a hash without claiming it.
func FieldHash(field string) uint32 { return ids.FNV1a32(field) }

// RegisterNode adds or replaces a node label definition.
func (r *Registry) RegisterNode(def NodeDef) error {
	if _, err := r.claimHash(def.Label); err != nil {
		return err
	}
	for field := range def.Fields {
		if _, err := r.claimHash(field); err != nil {
			return err
		}
	}
	r.nodes[def.Label] = def
	return nil
}

// RegisterEdge adds or replaces an edge label definition. Both endpoint
// labels must already be registered node labels.
func (r *Registry) RegisterEdge(def EdgeDef) error {
	if _, ok := r.nodes[def.From]; !ok {
		return herr.SchemaViolationf("edge %q: unknown from-label %q", def.Label, def.From)
	}
	if _, ok := r.nodes[def.To]; !ok {
		return herr.SchemaViolationf("edge %q: unknown to-label %q", def.Label, def.To)
	}
	if _, err := r.claimHash(def.Label); err != nil {
		return err
	}
	for field := range def.Fields {
		if _, err := r.claimHash(field); err != nil {
			return err
		}
	}
	r.edges[def.Label] = def
	return nil
}

// RegisterVector adds or replaces a vector label definition.
func (r *Registry) RegisterVector(def VectorDef) error {
	if def.Dimension <= 0 {
		return herr.SchemaViolationf("vector %q: dimension must be positive", def.Label)
	}
	if _, err := r.claimHash(def.Label); err != nil {
		return err
	}
	r.vectors[def.Label] = def
	return nil
}

// RegisterIndex adds a secondary index over label.field.
func (r *Registry) RegisterIndex(def IndexDef) error {
	if _, ok := r.nodes[def.Label]; !ok {
		return herr.SchemaViolationf("index: unknown label %q", def.Label)
	}
	if _, ok := r.nodes[def.Label].Fields[def.Field]; !ok {
		return herr.SchemaViolationf("index: unknown field %q on label %q", def.Field, def.Label)
	}
	r.indices = append(r.indices, def)
	return nil
}

// Node looks up a node label definition.
func (r *Registry) Node(label string) (NodeDef, bool) {
	d, ok := r.nodes[label]
	return d, ok
}

// Edge looks up an edge label definition.
func (r *Registry) Edge(label string) (EdgeDef, bool) {
	d, ok := r.edges[label]
	return d, ok
}

// Vector looks up a vector label definition.
func (r *Registry) Vector(label string) (VectorDef, bool) {
	d, ok := r.vectors[label]
	return d, ok
}

// VectorLabels returns every registered vector label, for callers (the
// maintenance scheduler's per-label HNSW compaction) that need to walk
// all of them rather than look one up.
func (r *Registry) VectorLabels() []string {
	out := make([]string, 0, len(r.vectors))
	for label := range r.vectors {
		out = append(out, label)
	}
	return out
}

// Indices returns every registered secondary index over label.
func (r *Registry) Indices(label string) []IndexDef {
	var out []IndexDef
	for _, idx := range r.indices {
		if idx.Label == label {
			out = append(out, idx)
		}
	}
	return out
}

// IndexOn reports whether label.field carries a secondary index, and
// whether it is UNIQUE.
func (r *Registry) IndexOn(label, field string) (def IndexDef, ok bool) {
	for _, idx := range r.indices {
		if idx.Label == label && idx.Field == field {
			return idx, true
		}
	}
	return IndexDef{}, false
}

func (r *Registry) toSnapshot() snapshot {
	return snapshot{
		Version: r.version,
		Nodes:   r.nodes,
		Edges:   r.edges,
		Vectors: r.vectors,
		Indices: r.indices,
	}
}

func fromSnapshot(s snapshot) *Registry {
	r := New()
	r.version = s.Version
	if s.Nodes != nil {
		r.nodes = s.Nodes
	}
	if s.Edges != nil {
		r.edges = s.Edges
	}
	if s.Vectors != nil {
		r.vectors = s.Vectors
	}
	r.indices = s.Indices
	for label := range r.nodes {
		r.hashes[ids.FNV1a32(label)] = label
		for field := range r.nodes[label].Fields {
			r.hashes[ids.FNV1a32(field)] = field
		}
	}
	for label := range r.edges {
		r.hashes[ids.FNV1a32(label)] = label
	}
	for label := range r.vectors {
		r.hashes[ids.FNV1a32(label)] = label
	}
	return r
}

// Save persists the registry to the meta family's "schema" cell within
// txn.
func (r *Registry) Save(txn kv.WriteTxn) error {
	b, err := codec.Msgpack(r.toSnapshot())
	if err != nil {
		return err
	}
	return txn.Put(kv.FamilyMeta, codec.MetaKey(kv.MetaCellSchema), b)
}

// Load reads the registry back from txn's meta family. Returns a fresh
// empty registry (version 0) if no schema has ever been saved.
func Load(txn kv.Reader) (*Registry, error) {
	b, err := txn.Get(kv.FamilyMeta, codec.MetaKey(kv.MetaCellSchema))
	if err != nil {
		if kind, ok := herr.Of(err); ok && kind == herr.NotFound {
			return New(), nil
		}
		return nil, err
	}
	var s snapshot
	if err := codec.MsgpackDecode(b, &s); err != nil {
		return nil, err
	}
	return fromSnapshot(s), nil
}

// Migration rewrites on-disk data from FromVersion to ToVersion under a
// single write transaction.
type Migration struct {
	FromVersion int
	ToVersion   int
	Apply       func(txn kv.WriteTxn, reg *Registry) error
}

// Migrator runs an ordered chain of migrations.
type Migrator struct {
	Migrations []Migration
}

// Run applies every migration whose FromVersion matches the registry's
// current version, in order, updating the registry's version and
// persisting it after each step. Stops and returns nil as soon as no
// migration starts at the current version; a gap in the chain is not
// reported as an error.
func (m Migrator) Run(txn kv.WriteTxn, reg *Registry) error {
	for {
		next, ok := m.find(reg.version)
		if !ok {
			return nil
		}
		if err := next.Apply(txn, reg); err != nil {
			return herr.BackendErrorf(err, "migration %d -> %d", next.FromVersion, next.ToVersion)
		}
		reg.version = next.ToVersion
		if err := reg.Save(txn); err != nil {
			return err
		}
	}
}

func (m Migrator) find(from int) (Migration, bool) {
	for _, mig := range m.Migrations {
		if mig.FromVersion == from {
			return mig, true
		}
	}
	return Migration{}, false
}

// Bump sets the registry's version directly, bypassing the migration
// chain. Intended for the initial schema registration (version 0 -> 1)
// where there is no data to rewrite.
func (r *Registry) Bump(version int) error {
	if version < r.version {
		return fmt.Errorf("schema: cannot move version backwards (%d -> %d)", r.version, version)
	}
	r.version = version
	return nil
}
