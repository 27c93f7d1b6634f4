package ir

// Optimize applies spec.md §4.8's three rule-based lowering passes to
// every pipeline in plan, in place, and returns it for chaining.
func Optimize(plan *Plan) *Plan {
	for _, stmt := range plan.Stmts {
		switch s := stmt.(type) {
		case Assign:
			optimizePipeline(s.Pipeline)
		case DropStmt:
			optimizePipeline(s.Pipeline)
		}
	}
	return plan
}

func optimizePipeline(p *Pipeline) {
	if p == nil {
		return
	}
	for _, n := range p.Nodes {
		foldExprsIn(n)
	}
	p.Nodes = pushDownLabelFilters(p.Nodes)
	p.Nodes = eliminateRedundantProjections(p.Nodes)
}

// foldExprsIn constant-folds every Expr field an operator carries.
func foldExprsIn(n *Node) {
	switch op := n.Op.(type) {
	case Where:
		op.Expr = FoldConstants(op.Expr)
		n.Op = op
	case InRange:
		op.Lo, op.Hi = FoldConstants(op.Lo), FoldConstants(op.Hi)
		n.Op = op
	case OrderBy:
		op.Expr = FoldConstants(op.Expr)
		n.Op = op
	case Range:
		op.Lo, op.Hi = FoldConstants(op.Lo), FoldConstants(op.Hi)
		n.Op = op
	case RerankRRF:
		if op.K != nil {
			op.K = FoldConstants(op.K)
			n.Op = op
		}
	case RerankMMR:
		op.Lambda = FoldConstants(op.Lambda)
		n.Op = op
	case AddFields:
		for i := range op.Fields {
			op.Fields[i].Expr = FoldConstants(op.Fields[i].Expr)
		}
		n.Op = op
	case AddN:
		for i := range op.Fields {
			op.Fields[i].Expr = FoldConstants(op.Fields[i].Expr)
		}
		n.Op = op
	case AddE:
		for i := range op.Fields {
			op.Fields[i].Expr = FoldConstants(op.Fields[i].Expr)
		}
		op.From, op.To = FoldConstants(op.From), FoldConstants(op.To)
		n.Op = op
	case Update:
		for i := range op.Fields {
			op.Fields[i].Expr = FoldConstants(op.Fields[i].Expr)
		}
		n.Op = op
	}
}

// FoldConstants evaluates arithmetic/comparison/boolean expressions
// whose operands are already literals, collapsing them to a single
// Literal. Returns expr unchanged if it isn't foldable or nil.
func FoldConstants(expr Expr) Expr {
	if expr == nil {
		return nil
	}
	switch e := expr.(type) {
	case BinaryOp:
		left := FoldConstants(e.Left)
		right := FoldConstants(e.Right)
		litL, okL := left.(Literal)
		litR, okR := right.(Literal)
		if okL && okR {
			if v, ok := evalBinary(e.Op, litL.Value, litR.Value); ok {
				return Literal{Value: v}
			}
		}
		return BinaryOp{Op: e.Op, Left: left, Right: right}
	case UnaryOp:
		operand := FoldConstants(e.Operand)
		if lit, ok := operand.(Literal); ok {
			if v, ok := evalUnary(e.Op, lit.Value); ok {
				return Literal{Value: v}
			}
		}
		return UnaryOp{Op: e.Op, Operand: operand}
	case PropertyAccess:
		if e.Base != nil {
			e.Base = FoldConstants(e.Base)
		}
		return e
	case EmbedCall:
		e.Text = FoldConstants(e.Text)
		return e
	default:
		return expr
	}
}

func evalBinary(op string, l, r interface{}) (interface{}, bool) {
	switch op {
	case "AND":
		lb, ok1 := l.(bool)
		rb, ok2 := r.(bool)
		if ok1 && ok2 {
			return lb && rb, true
		}
	case "OR":
		lb, ok1 := l.(bool)
		rb, ok2 := r.(bool)
		if ok1 && ok2 {
			return lb || rb, true
		}
	case "==":
		return l == r, true
	case "!=":
		return l != r, true
	}
	lf, okL := asFloat(l)
	rf, okR := asFloat(r)
	if !okL || !okR {
		return nil, false
	}
	switch op {
	case "+":
		return lf + rf, true
	case "-":
		return lf - rf, true
	case "*":
		return lf * rf, true
	case "/":
		if rf == 0 {
			return nil, false
		}
		return lf / rf, true
	case "<":
		return lf < rf, true
	case "<=":
		return lf <= rf, true
	case ">":
		return lf > rf, true
	case ">=":
		return lf >= rf, true
	}
	return nil, false
}

func evalUnary(op string, v interface{}) (interface{}, bool) {
	switch op {
	case "NOT":
		if b, ok := v.(bool); ok {
			return !b, true
		}
	case "-":
		if f, ok := asFloat(v); ok {
			return -f, true
		}
	}
	return nil, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// pushDownLabelFilters drops a Where step immediately following an
// OutE/InE hop when the Where tests the carrier label against the edge
// label the hop already restricts to — the hop already enforces it, so
// the filter is redundant at that point in the chain. Out/In hops are
// not matched: their rows carry the neighbour node's label, not the
// edge label.
func pushDownLabelFilters(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		if i+1 < len(nodes) {
			if label, ok := hopLabel(n.Op); ok {
				if w, ok := nodes[i+1].Op.(Where); ok && whereIsLabelEquality(w.Expr, label) {
					out = append(out, n)
					i++ // drop the redundant Where
					continue
				}
			}
		}
		out = append(out, n)
	}
	return out
}

func hopLabel(op Op) (string, bool) {
	switch o := op.(type) {
	case OutE:
		return o.Label, o.Label != ""
	case InE:
		return o.Label, o.Label != ""
	}
	return "", false
}

func whereIsLabelEquality(expr Expr, label string) bool {
	b, ok := expr.(BinaryOp)
	if !ok || b.Op != "==" {
		return false
	}
	prop, ok := b.Left.(PropertyAccess)
	if !ok || prop.Base != nil || prop.Field != "__label" {
		return false
	}
	lit, ok := b.Right.(Literal)
	if !ok {
		return false
	}
	s, ok := lit.Value.(string)
	return ok && s == label
}

// eliminateRedundantProjections drops a PickFields step whose field
// list exactly repeats the PickFields step immediately preceding it —
// a no-op re-projection that sometimes results from AddFields
// rewriting.
func eliminateRedundantProjections(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for i, n := range nodes {
		if i > 0 {
			if pick, ok := n.Op.(PickFields); ok {
				if prev, ok := nodes[i-1].Op.(PickFields); ok && sameFields(pick.Fields, prev.Fields) {
					continue
				}
			}
		}
		out = append(out, n)
	}
	return out
}

func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
