// Package ir defines the operator intermediate representation spec.md
// §4.8 describes as a closed variant set, plus the rule-based lowering
// passes (constant folding, label-filter pushdown, redundant-projection
// elimination) spec.md §4.8's "Operator IR + Lowering" calls for. Unlike
// pkg/hql/ast, IR nodes carry the carrier type flowing in and out of
// them — the executor trusts these types instead of re-deriving them.
package ir

import "github.com/helixdb/helix-core/pkg/hnsw"

// CarrierKind is the shape of data flowing between two operators in a
// pipeline, per spec.md §4.7(b).
type CarrierKind int

const (
	CarrierNodeSet CarrierKind = iota
	CarrierEdgeSet
	CarrierVectorSet
	CarrierScalar
	CarrierStruct
	CarrierList
)

func (k CarrierKind) String() string {
	switch k {
	case CarrierNodeSet:
		return "node-set"
	case CarrierEdgeSet:
		return "edge-set"
	case CarrierVectorSet:
		return "vector-set"
	case CarrierScalar:
		return "scalar"
	case CarrierStruct:
		return "struct"
	case CarrierList:
		return "list"
	default:
		return "unknown"
	}
}

// Op is one operator in the closed variant set. Label-bearing ops carry
// the label they were resolved against (empty for label-agnostic ops
// such as Count or Where).
type Op interface{ op() }

// --- Sources ---

// AllOf yields every live entity of Label (a node, edge, or vector
// label, disambiguated by OutType on the owning Node).
type AllOf struct{ Label string }

// NodeByID looks up a single node by id.
type NodeByID struct {
	Label string
	ID    Expr
}

// VectorByID looks up a single vector entity by id. Not one of the five
// source kinds spec.md §4.8 lists literally; see DESIGN.md for why it
// is lowered as a sixth source kind structurally identical to
// NodeByID/EdgeByID rather than folded into VectorSearch.
type VectorByID struct {
	Label string
	ID    Expr
}

// EdgeByID looks up a single edge by id.
type EdgeByID struct {
	Label string
	ID    Expr
}

// VectorSearch is an ANN query over a vector label.
type VectorSearch struct {
	Label  string
	Vec    Expr
	K      Expr
	Metric hnsw.Metric
}

// HybridSearch combines ANN and BM25 scoring over a vector label.
type HybridSearch struct {
	Label string
	Vec   Expr
	Text  Expr
	K     Expr
}

func (AllOf) op()        {}
func (NodeByID) op()     {}
func (VectorByID) op()   {}
func (EdgeByID) op()     {}
func (VectorSearch) op() {}
func (HybridSearch) op() {}

// --- Hops ---

type Out struct{ Label string }
type In struct{ Label string }
type OutE struct{ Label string }
type InE struct{ Label string }
type FromV struct{}
type ToV struct{}

func (Out) op()   {}
func (In) op()    {}
func (OutE) op()  {}
func (InE) op()   {}
func (FromV) op() {}
func (ToV) op()   {}

// --- Filters ---

type Where struct{ Expr Expr }
type InRange struct{ Lo, Hi Expr }

func (Where) op()   {}
func (InRange) op() {}

// --- Aggregators ---

type Count struct{}
type OrderBy struct {
	Expr Expr
	Desc bool
}
type Range struct{ Lo, Hi Expr }
type RerankRRF struct{ K Expr } // nil K means "use the executor's default constant"
type RerankMMR struct{ Lambda Expr }

func (Count) op()     {}
func (OrderBy) op()   {}
func (Range) op()     {}
func (RerankRRF) op() {}
func (RerankMMR) op() {}

// --- Projections ---

type PickFields struct{ Fields []string }
type AddFields struct{ Fields []NamedExpr }

func (PickFields) op() {}
func (AddFields) op()  {}

// --- Mutations ---

type AddN struct {
	Label  string
	Fields []NamedExpr
}
type AddE struct {
	Label      string
	Fields     []NamedExpr
	From, To   Expr
}
type Update struct{ Fields []NamedExpr }
type Drop struct{}

func (AddN) op()   {}
func (AddE) op()   {}
func (Update) op() {}
func (Drop) op()   {}

// NamedExpr is a `name: expr` pair used by projections and field literals.
type NamedExpr struct {
	Name string
	Expr Expr
}

// --- Scalars ---

// Expr is an IR-level scalar expression. Unlike ast.Expr, ParamRef
// carries the param's resolved index so the executor never does a
// name lookup at evaluation time.
type Expr interface{ expr() }

type Literal struct{ Value interface{} }

type ParamRef struct {
	Name  string
	Index int
}

type PropertyAccess struct {
	Base  Expr // nil means "the current carrier"
	Field string
}

type BinaryOp struct {
	Op          string
	Left, Right Expr
}

type UnaryOp struct {
	Op      string
	Operand Expr
}

// Exists evaluates Pipeline and reports whether it yielded anything.
type Exists struct{ Pipeline *Pipeline }

type EmbedCall struct{ Text Expr }

func (Literal) expr()        {}
func (ParamRef) expr()       {}
func (PropertyAccess) expr() {}
func (BinaryOp) expr()       {}
func (UnaryOp) expr()        {}
func (Exists) expr()         {}
func (EmbedCall) expr()      {}

// Node is one step in a lowered pipeline: the operator plus the carrier
// types flowing in and out of it, resolved once by the analyzer.
type Node struct {
	Op      Op
	InType  CarrierKind // meaningless for the pipeline's first (source) node
	OutType CarrierKind
}

// Pipeline is a lowered `source::step::step…` chain. Source is always
// Nodes[0]; the rest are the `::`-chained steps.
type Pipeline struct {
	Nodes []*Node
}

// Source returns the pipeline's leading source node's Op.
func (p *Pipeline) Source() Op {
	if len(p.Nodes) == 0 {
		return nil
	}
	return p.Nodes[0].Op
}

// OutType returns the carrier type the whole pipeline yields.
func (p *Pipeline) OutType() CarrierKind {
	if len(p.Nodes) == 0 {
		return CarrierScalar
	}
	return p.Nodes[len(p.Nodes)-1].OutType
}

// Stmt is a lowered top-level statement: a binding or a drop.
type Stmt interface{ stmt() }

type Assign struct {
	Name     string
	Pipeline *Pipeline
}

type DropStmt struct{ Pipeline *Pipeline }

func (Assign) stmt()   {}
func (DropStmt) stmt() {}

// ReturnItem is one entry in a query's RETURN tuple. Binding is set when
// the item returns a whole prior Assign result verbatim (the common
// `RETURN x` case); Expr is set when it returns a computed scalar.
// Exactly one of the two is non-zero.
type ReturnItem struct {
	Name    string
	Binding string
	Expr    Expr
}

// ParamDecl is a lowered query parameter declaration.
type ParamDecl struct {
	Name string
	Type string
}

// Plan is a fully lowered, analyzed query, ready for the executor.
type Plan struct {
	Name   string
	Params []ParamDecl
	Stmts  []Stmt
	Return []ReturnItem
}
