// Package ast defines the HQL abstract syntax tree spec.md §4.6 describes:
// QUERY declarations over a pipeline body, ending in a RETURN tuple. Every
// node carries a Span so the analyzer (pkg/hql/analyzer) can attach
// diagnostics to precise source locations, the way the teacher's
// pkg/ingress validates requests with structured errors instead of bare
// strings.
package ast

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int
	End   int
}

// Query is one `QUERY name(params) => body RETURN exprs` declaration.
type Query struct {
	Span    Span
	Name    string
	Params  []ParamDecl
	Stmts   []Stmt
	Return  []NamedExpr
}

// ParamDecl declares one query parameter's name and declared type.
type ParamDecl struct {
	Span Span
	Name string
	Type string // schema.FieldType string form, or "vector"/"id"
}

// Stmt is either a `name = pipeline` binding or a bare `DROP pipeline`.
type Stmt interface{ stmt() }

// Assign binds the result of a pipeline to a name, usable in later
// pipelines, projections, and the RETURN tuple.
type Assign struct {
	Span     Span
	Name     string
	Pipeline *Pipeline
}

// Drop evaluates a pipeline and deletes every entity it yields.
type Drop struct {
	Span     Span
	Pipeline *Pipeline
}

func (Assign) stmt() {}
func (Drop) stmt()   {}

// Pipeline is a source followed by zero or more `::` steps.
type Pipeline struct {
	Span   Span
	Source Source
	Steps  []Step
}

// Source is a pipeline's starting point.
type Source interface{ source() }

// NodeByID is the `N<Label>(id)` source form.
type NodeByID struct {
	Span  Span
	Label string
	ID    Expr
}

// VectorByID is the `V<Label>(id)` source form — a direct point lookup of
// a vector entity, distinct from the ANN SearchV form.
type VectorByID struct {
	Span  Span
	Label string
	ID    Expr
}

// AllOf is the bare `E<Label>` source form: every entity of Label.
type AllOf struct {
	Span  Span
	Label string
}

// EdgeByID is the `E<Label>(id)` source form.
type EdgeByID struct {
	Span  Span
	Label string
	ID    Expr
}

// SearchV is the `SearchV<Label>(vec, k)` ANN source form.
type SearchV struct {
	Span  Span
	Label string
	Vec   Expr
	K     Expr
}

// SearchHybrid is the `SearchHybrid<Label>(vec, text, k)` source form.
type SearchHybrid struct {
	Span  Span
	Label string
	Vec   Expr
	Text  Expr
	K     Expr
}

// AddN is the `AddN<Label>({fields})` mutation source: yields the new node.
type AddN struct {
	Span   Span
	Label  string
	Fields []NamedExpr
}

// AddE is the `AddE<Label>({fields})` mutation source: the endpoints are
// bound by trailing ::From(x)::To(y) steps. Yields the new edge.
type AddE struct {
	Span   Span
	Label  string
	Fields []NamedExpr
}

// Ref starts a pipeline from a previously bound name instead of a fresh
// storage scan (e.g. continuing `x::Out<Knows>` after `x = N<Person>(id)`).
type Ref struct {
	Span Span
	Name string
}

func (NodeByID) source()     {}
func (VectorByID) source()   {}
func (AllOf) source()        {}
func (EdgeByID) source()     {}
func (SearchV) source()      {}
func (SearchHybrid) source() {}
func (AddN) source()         {}
func (AddE) source()         {}
func (Ref) source()          {}

// Step is one `::StepName(args)` pipeline stage.
type Step interface{ step() }

type Out struct {
	Span  Span
	Label string // empty means "any label"
}
type In struct {
	Span  Span
	Label string
}
type OutE struct {
	Span  Span
	Label string
}
type InE struct {
	Span  Span
	Label string
}

// FromV/ToV project an edge-set carrier to its from/to node (the hop
// form — distinct from AddE's ::From(x)/::To(y) binding steps).
type FromV struct{ Span Span }
type ToV struct{ Span Span }

type Where struct {
	Span Span
	Expr Expr
}

// Pick is the `::{field, …}` projection step.
type Pick struct {
	Span   Span
	Fields []string
}

// AddFields is a projection step adding computed fields.
type AddFields struct {
	Span   Span
	Fields []NamedExpr
}

type RerankRRF struct {
	Span Span
	K    Expr // nil means "use the default"
}
type RerankMMR struct {
	Span   Span
	Lambda Expr
}
type Range struct {
	Span   Span
	Lo, Hi Expr
}
type Order struct {
	Span Span
	Expr Expr
	Desc bool
}
type Count struct{ Span Span }

// From/To bind AddE's endpoints (not a hop — a mutation-construction step).
type From struct {
	Span Span
	Expr Expr
}
type To struct {
	Span Span
	Expr Expr
}

// Update sets properties on the pipeline's current carrier.
type Update struct {
	Span   Span
	Fields []NamedExpr
}

func (Out) step()       {}
func (In) step()        {}
func (OutE) step()      {}
func (InE) step()       {}
func (FromV) step()     {}
func (ToV) step()       {}
func (Where) step()     {}
func (Pick) step()      {}
func (AddFields) step() {}
func (RerankRRF) step() {}
func (RerankMMR) step() {}
func (Range) step()     {}
func (Order) step()     {}
func (Count) step()     {}
func (From) step()      {}
func (To) step()        {}
func (Update) step()    {}

// NamedExpr is a `name: expr` pair used in projections, RETURN, and field
// literals ({name: expr, …}).
type NamedExpr struct {
	Span Span
	Name string
	Expr Expr
}

// Expr is a scalar expression.
type Expr interface{ expr() }

type Literal struct {
	Span  Span
	Value interface{} // string, int64, float64, bool, nil, or []interface{}
}

// ParamRef refers to a query parameter by name.
type ParamRef struct {
	Span Span
	Name string
}

// VarRef refers to a name bound by an earlier Assign statement, used in
// RETURN items and scalar expressions that need a whole prior result
// (as opposed to PropertyAccess, which reads one field off the current
// carrier).
type VarRef struct {
	Span Span
	Name string
}

// PropertyAccess reads a field off the current carrier or a sub-expr.
type PropertyAccess struct {
	Span  Span
	Base  Expr // nil means "the current carrier"
	Field string
}

type BinaryOp struct {
	Span        Span
	Op          string // "+","-","*","/","==","!=","<","<=",">",">=","AND","OR"
	Left, Right Expr
}

type UnaryOp struct {
	Span    Span
	Op      string // "-", "NOT"
	Operand Expr
}

// Exists evaluates a subpipeline and reports whether it yields anything.
type Exists struct {
	Span     Span
	Pipeline *Pipeline
}

// EmbedCall invokes the injected embedding provider on Text.
type EmbedCall struct {
	Span Span
	Text Expr
}

func (Literal) expr()        {}
func (ParamRef) expr()       {}
func (VarRef) expr()         {}
func (PropertyAccess) expr() {}
func (BinaryOp) expr()       {}
func (UnaryOp) expr()        {}
func (Exists) expr()         {}
func (EmbedCall) expr()      {}
