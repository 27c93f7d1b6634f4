// Package analyzer implements spec.md §4.7's HQL analyzer: it resolves
// labels and fields against a schema.Registry, infers the carrier type
// flowing through each pipeline stage, checks operator legality, and
// lowers the AST into pkg/hql/ir's closed operator set. Diagnostics
// carry the offending node's ast.Span, the way the teacher's request
// validation reports structured errors instead of bare strings; a
// single fatal diagnostic prevents the query from registering.
package analyzer

import (
	"fmt"

	"github.com/helixdb/helix-core/pkg/hnsw"
	"github.com/helixdb/helix-core/pkg/hql/ast"
	"github.com/helixdb/helix-core/pkg/hql/ir"
	"github.com/helixdb/helix-core/pkg/schema"
)

// Severity classifies a Diagnostic's impact on registration.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	default:
		return "info"
	}
}

// Diagnostic is one analyzer finding, anchored to a source span.
type Diagnostic struct {
	Span     ast.Span
	Severity Severity
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s at %d:%d: %s", d.Severity, d.Span.Start, d.Span.End, d.Message)
}

// Result is a fully analyzed query: the lowered plan plus every
// diagnostic raised along the way (including non-fatal ones).
type Result struct {
	Plan        *ir.Plan
	Diagnostics []Diagnostic
}

// HasFatal reports whether any diagnostic is SeverityFatal.
func (r *Result) HasFatal() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// binding is what the analyzer knows about a name bound by an earlier
// Assign statement: its carrier type, best-known label (empty if mixed
// or unknowable), and the lowered pipeline that produced it.
type binding struct {
	carrier  ir.CarrierKind
	label    string
	pipeline *ir.Pipeline
}

type analyzer struct {
	reg    *schema.Registry
	params map[string]int
	scope  map[string]binding
	diags  []Diagnostic
}

// Analyze resolves and lowers query against reg.
func Analyze(query *ast.Query, reg *schema.Registry) *Result {
	a := &analyzer{
		reg:    reg,
		params: make(map[string]int),
		scope:  make(map[string]binding),
	}
	for i, p := range query.Params {
		a.params[p.Name] = i
	}

	plan := &ir.Plan{Name: query.Name}
	for _, p := range query.Params {
		plan.Params = append(plan.Params, ir.ParamDecl{Name: p.Name, Type: p.Type})
	}

	for _, stmt := range query.Stmts {
		switch s := stmt.(type) {
		case ast.Assign:
			pipe, b := a.lowerPipeline(s.Pipeline)
			a.scope[s.Name] = b
			plan.Stmts = append(plan.Stmts, ir.Assign{Name: s.Name, Pipeline: pipe})
		case ast.Drop:
			pipe, _ := a.lowerPipeline(s.Pipeline)
			plan.Stmts = append(plan.Stmts, ir.DropStmt{Pipeline: pipe})
		}
	}

	for _, item := range query.Return {
		if ref, ok := item.Expr.(ast.VarRef); ok {
			if _, found := a.scope[ref.Name]; !found {
				a.fatal(ref.Span, "undefined reference %q in RETURN", ref.Name)
			}
			plan.Return = append(plan.Return, ir.ReturnItem{Name: item.Name, Binding: ref.Name})
			continue
		}
		e := a.lowerExpr(item.Expr, "")
		plan.Return = append(plan.Return, ir.ReturnItem{Name: item.Name, Expr: e})
	}

	return &Result{Plan: plan, Diagnostics: a.diags}
}

func (a *analyzer) fatal(span ast.Span, format string, args ...interface{}) {
	a.diags = append(a.diags, Diagnostic{Span: span, Severity: SeverityFatal, Message: fmt.Sprintf(format, args...)})
}

func (a *analyzer) warn(span ast.Span, format string, args ...interface{}) {
	a.diags = append(a.diags, Diagnostic{Span: span, Severity: SeverityWarning, Message: fmt.Sprintf(format, args...)})
}

// lowerPipeline lowers an AST pipeline into IR, returning the binding
// describing what it yields.
func (a *analyzer) lowerPipeline(p *ast.Pipeline) (*ir.Pipeline, binding) {
	nodes, b := a.lowerSource(p.Source)
	out := &ir.Pipeline{Nodes: nodes}

	steps := p.Steps
	// AddE's endpoints are bound by immediately-following ::From/::To
	// steps in the grammar, but the IR's AddE op carries them as direct
	// fields (spec.md §4.8: "AddE(Label, from, to, fields)") rather than
	// as separate chain steps.
	if addE, ok := out.Nodes[0].Op.(ir.AddE); ok {
		for len(steps) > 0 {
			if from, ok := steps[0].(ast.From); ok {
				addE.From = a.lowerExpr(from.Expr, b.label)
				steps = steps[1:]
				continue
			}
			if to, ok := steps[0].(ast.To); ok {
				addE.To = a.lowerExpr(to.Expr, b.label)
				steps = steps[1:]
				continue
			}
			break
		}
		out.Nodes[0].Op = addE
	}

	for _, step := range steps {
		node, newB := a.lowerStep(step, b)
		out.Nodes = append(out.Nodes, node)
		b = newB
	}
	b.pipeline = out
	return out, b
}

func (a *analyzer) lowerSource(src ast.Source) ([]*ir.Node, binding) {
	switch s := src.(type) {
	case ast.NodeByID:
		if _, ok := a.reg.Node(s.Label); !ok {
			a.fatal(s.Span, "unknown node label %q", s.Label)
		}
		op := ir.NodeByID{Label: s.Label, ID: a.lowerExpr(s.ID, "")}
		return []*ir.Node{{Op: op, OutType: ir.CarrierNodeSet}}, binding{carrier: ir.CarrierNodeSet, label: s.Label}

	case ast.VectorByID:
		if _, ok := a.reg.Vector(s.Label); !ok {
			a.fatal(s.Span, "unknown vector label %q", s.Label)
		}
		op := ir.VectorByID{Label: s.Label, ID: a.lowerExpr(s.ID, "")}
		return []*ir.Node{{Op: op, OutType: ir.CarrierVectorSet}}, binding{carrier: ir.CarrierVectorSet, label: s.Label}

	case ast.AllOf:
		carrier, ok := a.classifyLabel(s.Label)
		if !ok {
			a.fatal(s.Span, "unknown label %q", s.Label)
		}
		op := ir.AllOf{Label: s.Label}
		return []*ir.Node{{Op: op, OutType: carrier}}, binding{carrier: carrier, label: s.Label}

	case ast.EdgeByID:
		if _, ok := a.reg.Edge(s.Label); !ok {
			a.fatal(s.Span, "unknown edge label %q", s.Label)
		}
		op := ir.EdgeByID{Label: s.Label, ID: a.lowerExpr(s.ID, "")}
		return []*ir.Node{{Op: op, OutType: ir.CarrierEdgeSet}}, binding{carrier: ir.CarrierEdgeSet, label: s.Label}

	case ast.SearchV:
		if _, ok := a.reg.Vector(s.Label); !ok {
			a.fatal(s.Span, "unknown vector label %q", s.Label)
		}
		op := ir.VectorSearch{Label: s.Label, Vec: a.lowerExpr(s.Vec, ""), K: a.lowerExpr(s.K, ""), Metric: hnsw.MetricL2}
		return []*ir.Node{{Op: op, OutType: ir.CarrierVectorSet}}, binding{carrier: ir.CarrierVectorSet, label: s.Label}

	case ast.SearchHybrid:
		if _, ok := a.reg.Vector(s.Label); !ok {
			a.fatal(s.Span, "unknown vector label %q", s.Label)
		}
		op := ir.HybridSearch{
			Label: s.Label,
			Vec:   a.lowerExpr(s.Vec, ""),
			Text:  a.lowerExpr(s.Text, ""),
			K:     a.lowerExpr(s.K, ""),
		}
		return []*ir.Node{{Op: op, OutType: ir.CarrierVectorSet}}, binding{carrier: ir.CarrierVectorSet, label: s.Label}

	case ast.AddN:
		def, ok := a.reg.Node(s.Label)
		if !ok {
			a.fatal(s.Span, "unknown node label %q", s.Label)
		}
		fields := a.lowerNamedExprs(s.Fields, s.Label)
		a.checkFieldTypes(s.Span, def.Fields, fields)
		op := ir.AddN{Label: s.Label, Fields: fields}
		return []*ir.Node{{Op: op, OutType: ir.CarrierNodeSet}}, binding{carrier: ir.CarrierNodeSet, label: s.Label}

	case ast.AddE:
		def, ok := a.reg.Edge(s.Label)
		if !ok {
			a.fatal(s.Span, "unknown edge label %q", s.Label)
		}
		fields := a.lowerNamedExprs(s.Fields, s.Label)
		a.checkFieldTypes(s.Span, def.Fields, fields)
		op := ir.AddE{Label: s.Label, Fields: fields}
		return []*ir.Node{{Op: op, OutType: ir.CarrierEdgeSet}}, binding{carrier: ir.CarrierEdgeSet, label: s.Label}

	case ast.Ref:
		b, ok := a.scope[s.Name]
		if !ok {
			a.fatal(s.Span, "undefined reference %q", s.Name)
			return []*ir.Node{{Op: ir.AllOf{Label: ""}, OutType: ir.CarrierNodeSet}}, binding{carrier: ir.CarrierNodeSet}
		}
		// Inline the referenced pipeline: Ref has no IR counterpart
		// (spec.md §4.8's source set is closed over five kinds), so a
		// continuation off a bound name is resolved here by copying the
		// referenced chain and appending new steps to it.
		nodes := make([]*ir.Node, len(b.pipeline.Nodes))
		copy(nodes, b.pipeline.Nodes)
		return nodes, b

	default:
		a.fatal(ast.Span{}, "unrecognized pipeline source")
		return []*ir.Node{{Op: ir.AllOf{Label: ""}, OutType: ir.CarrierNodeSet}}, binding{carrier: ir.CarrierNodeSet}
	}
}

// classifyLabel determines which entity family a bare AllOf(Label)
// source targets by checking each registry in turn.
func (a *analyzer) classifyLabel(label string) (ir.CarrierKind, bool) {
	if _, ok := a.reg.Node(label); ok {
		return ir.CarrierNodeSet, true
	}
	if _, ok := a.reg.Edge(label); ok {
		return ir.CarrierEdgeSet, true
	}
	if _, ok := a.reg.Vector(label); ok {
		return ir.CarrierVectorSet, true
	}
	return ir.CarrierNodeSet, false
}

func (a *analyzer) lowerStep(step ast.Step, b binding) (*ir.Node, binding) {
	switch s := step.(type) {
	case ast.Out:
		if b.carrier != ir.CarrierNodeSet {
			a.warn(s.Span, "::Out requires a node-set carrier, got %s", b.carrier)
		}
		newLabel := ""
		if s.Label != "" {
			if def, ok := a.reg.Edge(s.Label); ok {
				if b.label != "" && def.From != b.label {
					a.warn(s.Span, "::Out<%s> expects carrier label %q, got %q", s.Label, def.From, b.label)
				}
				newLabel = def.To
			} else {
				a.fatal(s.Span, "unknown edge label %q", s.Label)
			}
		}
		return &ir.Node{Op: ir.Out{Label: s.Label}, InType: b.carrier, OutType: ir.CarrierNodeSet},
			binding{carrier: ir.CarrierNodeSet, label: newLabel}

	case ast.In:
		if b.carrier != ir.CarrierNodeSet {
			a.warn(s.Span, "::In requires a node-set carrier, got %s", b.carrier)
		}
		newLabel := ""
		if s.Label != "" {
			if def, ok := a.reg.Edge(s.Label); ok {
				if b.label != "" && def.To != b.label {
					a.warn(s.Span, "::In<%s> expects carrier label %q, got %q", s.Label, def.To, b.label)
				}
				newLabel = def.From
			} else {
				a.fatal(s.Span, "unknown edge label %q", s.Label)
			}
		}
		return &ir.Node{Op: ir.In{Label: s.Label}, InType: b.carrier, OutType: ir.CarrierNodeSet},
			binding{carrier: ir.CarrierNodeSet, label: newLabel}

	case ast.OutE:
		if b.carrier != ir.CarrierNodeSet {
			a.warn(s.Span, "::OutE requires a node-set carrier, got %s", b.carrier)
		}
		if s.Label != "" {
			if _, ok := a.reg.Edge(s.Label); !ok {
				a.fatal(s.Span, "unknown edge label %q", s.Label)
			}
		}
		return &ir.Node{Op: ir.OutE{Label: s.Label}, InType: b.carrier, OutType: ir.CarrierEdgeSet},
			binding{carrier: ir.CarrierEdgeSet, label: s.Label}

	case ast.InE:
		if b.carrier != ir.CarrierNodeSet {
			a.warn(s.Span, "::InE requires a node-set carrier, got %s", b.carrier)
		}
		if s.Label != "" {
			if _, ok := a.reg.Edge(s.Label); !ok {
				a.fatal(s.Span, "unknown edge label %q", s.Label)
			}
		}
		return &ir.Node{Op: ir.InE{Label: s.Label}, InType: b.carrier, OutType: ir.CarrierEdgeSet},
			binding{carrier: ir.CarrierEdgeSet, label: s.Label}

	case ast.FromV:
		if b.carrier != ir.CarrierEdgeSet {
			a.warn(s.Span, "::FromV requires an edge-set carrier, got %s", b.carrier)
		}
		newLabel := ""
		if def, ok := a.reg.Edge(b.label); ok {
			newLabel = def.From
		}
		return &ir.Node{Op: ir.FromV{}, InType: b.carrier, OutType: ir.CarrierNodeSet},
			binding{carrier: ir.CarrierNodeSet, label: newLabel}

	case ast.ToV:
		if b.carrier != ir.CarrierEdgeSet {
			a.warn(s.Span, "::ToV requires an edge-set carrier, got %s", b.carrier)
		}
		newLabel := ""
		if def, ok := a.reg.Edge(b.label); ok {
			newLabel = def.To
		}
		return &ir.Node{Op: ir.ToV{}, InType: b.carrier, OutType: ir.CarrierNodeSet},
			binding{carrier: ir.CarrierNodeSet, label: newLabel}

	case ast.Where:
		e := a.lowerExpr(s.Expr, b.label)
		return &ir.Node{Op: ir.Where{Expr: e}, InType: b.carrier, OutType: b.carrier}, b

	case ast.Pick:
		a.checkFieldsExist(s.Span, b.label, s.Fields)
		return &ir.Node{Op: ir.PickFields{Fields: s.Fields}, InType: b.carrier, OutType: ir.CarrierStruct},
			binding{carrier: ir.CarrierStruct}

	case ast.AddFields:
		fields := a.lowerNamedExprs(s.Fields, b.label)
		return &ir.Node{Op: ir.AddFields{Fields: fields}, InType: b.carrier, OutType: ir.CarrierStruct},
			binding{carrier: ir.CarrierStruct}

	case ast.RerankRRF:
		if b.carrier != ir.CarrierVectorSet {
			a.warn(s.Span, "::RerankRRF expects a vector-set carrier, got %s", b.carrier)
		}
		var k ir.Expr
		if s.K != nil {
			k = a.lowerExpr(s.K, b.label)
		}
		return &ir.Node{Op: ir.RerankRRF{K: k}, InType: b.carrier, OutType: b.carrier}, b

	case ast.RerankMMR:
		if b.carrier != ir.CarrierVectorSet {
			a.warn(s.Span, "::RerankMMR expects a vector-set carrier, got %s", b.carrier)
		}
		lambda := a.lowerExpr(s.Lambda, b.label)
		return &ir.Node{Op: ir.RerankMMR{Lambda: lambda}, InType: b.carrier, OutType: b.carrier}, b

	case ast.Range:
		lo := a.lowerExpr(s.Lo, b.label)
		hi := a.lowerExpr(s.Hi, b.label)
		return &ir.Node{Op: ir.Range{Lo: lo, Hi: hi}, InType: b.carrier, OutType: b.carrier}, b

	case ast.Order:
		e := a.lowerExpr(s.Expr, b.label)
		return &ir.Node{Op: ir.OrderBy{Expr: e, Desc: s.Desc}, InType: b.carrier, OutType: b.carrier}, b

	case ast.Count:
		return &ir.Node{Op: ir.Count{}, InType: b.carrier, OutType: ir.CarrierScalar},
			binding{carrier: ir.CarrierScalar}

	case ast.Update:
		if b.carrier != ir.CarrierNodeSet && b.carrier != ir.CarrierEdgeSet {
			a.warn(s.Span, "::Update requires a node-set or edge-set carrier, got %s", b.carrier)
		}
		fields := a.lowerNamedExprs(s.Fields, b.label)
		return &ir.Node{Op: ir.Update{Fields: fields}, InType: b.carrier, OutType: b.carrier}, b

	case ast.From:
		a.fatal(s.Span, "::From is only valid immediately after AddE")
		return &ir.Node{Op: ir.Where{Expr: ir.Literal{Value: true}}, InType: b.carrier, OutType: b.carrier}, b

	case ast.To:
		a.fatal(s.Span, "::To is only valid immediately after AddE")
		return &ir.Node{Op: ir.Where{Expr: ir.Literal{Value: true}}, InType: b.carrier, OutType: b.carrier}, b

	default:
		a.fatal(ast.Span{}, "unrecognized pipeline step")
		return &ir.Node{Op: ir.Where{Expr: ir.Literal{Value: true}}, InType: b.carrier, OutType: b.carrier}, b
	}
}

func (a *analyzer) lowerNamedExprs(fields []ast.NamedExpr, label string) []ir.NamedExpr {
	out := make([]ir.NamedExpr, 0, len(fields))
	for _, f := range fields {
		out = append(out, ir.NamedExpr{Name: f.Name, Expr: a.lowerExpr(f.Expr, label)})
	}
	return out
}

// checkFieldTypes flags mutation fields that reference a name the
// label's schema doesn't declare. It does not attempt full literal/
// FieldType compatibility checking (e.g. numeric-width narrowing),
// which would require evaluating non-literal expressions; it only
// catches the unambiguous "no such field" mistake.
func (a *analyzer) checkFieldTypes(span ast.Span, defs map[string]schema.FieldDef, fields []ir.NamedExpr) {
	for _, f := range fields {
		if _, ok := defs[f.Name]; !ok {
			a.warn(span, "field %q is not declared on this label", f.Name)
		}
	}
}

func (a *analyzer) checkFieldsExist(span ast.Span, label string, fields []string) {
	if label == "" {
		return
	}
	var defs map[string]schema.FieldDef
	if def, ok := a.reg.Node(label); ok {
		defs = def.Fields
	} else if def, ok := a.reg.Edge(label); ok {
		defs = def.Fields
	} else {
		return
	}
	for _, f := range fields {
		if f == "id" {
			continue
		}
		if _, ok := defs[f]; !ok {
			a.warn(span, "field %q is not declared on label %q", f, label)
		}
	}
}

// lowerExpr lowers a scalar AST expression to IR, given the label (if
// known) of the carrier a bare PropertyAccess reads from.
func (a *analyzer) lowerExpr(e ast.Expr, label string) ir.Expr {
	switch x := e.(type) {
	case ast.Literal:
		return ir.Literal{Value: x.Value}

	case ast.ParamRef:
		idx, ok := a.params[x.Name]
		if !ok {
			a.fatal(x.Span, "undefined parameter %q", x.Name)
		}
		return ir.ParamRef{Name: x.Name, Index: idx}

	case ast.VarRef:
		// A VarRef inside a scalar expression (not a bare RETURN item)
		// has no IR scalar counterpart; treat it as a property access on
		// the current carrier sharing its name, the closest legal
		// reading (e.g. referencing a field carried over from a prior
		// ::AddFields under the same name).
		return ir.PropertyAccess{Field: x.Name}

	case ast.PropertyAccess:
		var base ir.Expr
		if x.Base != nil {
			base = a.lowerExpr(x.Base, label)
		} else if label != "" && x.Field != "id" {
			if def, ok := a.reg.Node(label); ok {
				if _, ok := def.Fields[x.Field]; !ok {
					a.warn(x.Span, "field %q is not declared on label %q", x.Field, label)
				}
			} else if def, ok := a.reg.Edge(label); ok {
				if _, ok := def.Fields[x.Field]; !ok {
					a.warn(x.Span, "field %q is not declared on label %q", x.Field, label)
				}
			}
		}
		return ir.PropertyAccess{Base: base, Field: x.Field}

	case ast.BinaryOp:
		return ir.BinaryOp{Op: x.Op, Left: a.lowerExpr(x.Left, label), Right: a.lowerExpr(x.Right, label)}

	case ast.UnaryOp:
		return ir.UnaryOp{Op: x.Op, Operand: a.lowerExpr(x.Operand, label)}

	case ast.Exists:
		pipe, _ := a.lowerPipeline(x.Pipeline)
		return ir.Exists{Pipeline: pipe}

	case ast.EmbedCall:
		return ir.EmbedCall{Text: a.lowerExpr(x.Text, label)}

	default:
		a.fatal(ast.Span{}, "unrecognized expression")
		return ir.Literal{Value: nil}
	}
}
