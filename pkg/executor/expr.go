package executor

import (
	"reflect"
	"sort"
	"strings"

	"github.com/helixdb/helix-core/pkg/herr"
	"github.com/helixdb/helix-core/pkg/hql/ir"
	"github.com/helixdb/helix-core/pkg/ids"
)

// evalExpr evaluates an ir.Expr against row (nil when the expression has
// no current carrier, e.g. a RETURN item's computed scalar). Property
// access on a nil row or a missing field yields nil, not an error —
// matching the analyzer's choice to demote missing-field checks to
// warnings rather than fatal diagnostics.
func (es *execState) evalExpr(e ir.Expr, row *Row) (interface{}, error) {
	switch x := e.(type) {
	case ir.Literal:
		return x.Value, nil

	case ir.ParamRef:
		if x.Index < 0 || x.Index >= len(es.params) {
			return nil, herr.InvalidArgumentf("param %q: index %d out of range", x.Name, x.Index)
		}
		return es.params[x.Index], nil

	case ir.PropertyAccess:
		if x.Base != nil {
			base, err := es.evalExpr(x.Base, row)
			if err != nil {
				return nil, err
			}
			if m, ok := base.(map[string]interface{}); ok {
				return m[x.Field], nil
			}
			return nil, nil
		}
		if row == nil {
			return nil, nil
		}
		switch x.Field {
		case "id":
			return row.ID.String(), nil
		case "__label":
			return row.Label, nil
		}
		if row.Struct != nil {
			if v, ok := row.Struct[x.Field]; ok {
				return v, nil
			}
		}
		if row.Props != nil {
			if v, ok := row.Props[x.Field]; ok {
				return v, nil
			}
		}
		return nil, nil

	case ir.BinaryOp:
		l, err := es.evalExpr(x.Left, row)
		if err != nil {
			return nil, err
		}
		r, err := es.evalExpr(x.Right, row)
		if err != nil {
			return nil, err
		}
		return runtimeBinary(x.Op, l, r)

	case ir.UnaryOp:
		v, err := es.evalExpr(x.Operand, row)
		if err != nil {
			return nil, err
		}
		return runtimeUnary(x.Op, v)

	case ir.Exists:
		rows, err := es.runPipeline(x.Pipeline)
		if err != nil {
			return nil, err
		}
		return len(rows) > 0, nil

	case ir.EmbedCall:
		text, err := es.evalString(x.Text, row)
		if err != nil {
			return nil, err
		}
		vec, err := es.exec.embed.Embed(es.ctx, text)
		if err != nil {
			return nil, herr.EmbeddingFailedf(err, "embed call failed")
		}
		if err := es.arena.Charge(len(vec) * 8); err != nil {
			return nil, err
		}
		return vec, nil

	default:
		return nil, herr.InvalidArgumentf("unrecognized expression %T", e)
	}
}

func (es *execState) evalNamedExprs(fields []ir.NamedExpr, row *Row) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		v, err := es.evalExpr(f.Expr, row)
		if err != nil {
			return nil, err
		}
		out[f.Name] = v
	}
	return out, nil
}

func (es *execState) evalID(e ir.Expr, row *Row) (ids.ID, error) {
	v, err := es.evalExpr(e, row)
	if err != nil {
		return ids.Zero, err
	}
	switch x := v.(type) {
	case ids.ID:
		return x, nil
	case string:
		return ids.FromHex(x)
	default:
		return ids.Zero, herr.InvalidArgumentf("expected an id, got %T", v)
	}
}

func (es *execState) evalInt(e ir.Expr, row *Row) (int, error) {
	v, err := es.evalExpr(e, row)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	default:
		return 0, herr.InvalidArgumentf("expected an integer, got %T", v)
	}
}

func (es *execState) evalFloat(e ir.Expr, row *Row) (float64, error) {
	v, err := es.evalExpr(e, row)
	if err != nil {
		return 0, err
	}
	f, ok := asFloat(v)
	if !ok {
		return 0, herr.InvalidArgumentf("expected a number, got %T", v)
	}
	return f, nil
}

func (es *execState) evalString(e ir.Expr, row *Row) (string, error) {
	v, err := es.evalExpr(e, row)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", herr.InvalidArgumentf("expected a string, got %T", v)
	}
	return s, nil
}

func (es *execState) evalVector(e ir.Expr, row *Row) ([]float64, error) {
	v, err := es.evalExpr(e, row)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case []float64:
		return x, nil
	case []interface{}:
		out := make([]float64, len(x))
		for i, elem := range x {
			f, ok := asFloat(elem)
			if !ok {
				return nil, herr.InvalidArgumentf("vector element %d is not numeric (%T)", i, elem)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, herr.InvalidArgumentf("expected a vector, got %T", v)
	}
}

func runtimeBinary(op string, l, r interface{}) (interface{}, error) {
	switch op {
	case "AND":
		lb, ok1 := l.(bool)
		rb, ok2 := r.(bool)
		if !ok1 || !ok2 {
			return nil, herr.InvalidArgumentf("AND requires boolean operands, got %T and %T", l, r)
		}
		return lb && rb, nil
	case "OR":
		lb, ok1 := l.(bool)
		rb, ok2 := r.(bool)
		if !ok1 || !ok2 {
			return nil, herr.InvalidArgumentf("OR requires boolean operands, got %T and %T", l, r)
		}
		return lb || rb, nil
	case "==":
		return valuesEqual(l, r), nil
	case "!=":
		return !valuesEqual(l, r), nil
	case "<", "<=", ">", ">=":
		c, ok := runtimeCompare(l, r)
		if !ok {
			return nil, herr.InvalidArgumentf("cannot compare %T and %T", l, r)
		}
		switch op {
		case "<":
			return c < 0, nil
		case "<=":
			return c <= 0, nil
		case ">":
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	case "+":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
		return arith(op, l, r)
	case "-", "*", "/":
		return arith(op, l, r)
	default:
		return nil, herr.InvalidArgumentf("unknown operator %q", op)
	}
}

func arith(op string, l, r interface{}) (interface{}, error) {
	lf, okL := asFloat(l)
	rf, okR := asFloat(r)
	if !okL || !okR {
		return nil, herr.InvalidArgumentf("%q requires numeric operands, got %T and %T", op, l, r)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, herr.InvalidArgumentf("division by zero")
		}
		return lf / rf, nil
	}
	return nil, herr.InvalidArgumentf("unknown arithmetic operator %q", op)
}

func runtimeUnary(op string, v interface{}) (interface{}, error) {
	switch op {
	case "NOT":
		b, ok := v.(bool)
		if !ok {
			return nil, herr.InvalidArgumentf("NOT requires a boolean operand, got %T", v)
		}
		return !b, nil
	case "-":
		f, ok := asFloat(v)
		if !ok {
			return nil, herr.InvalidArgumentf("unary - requires a numeric operand, got %T", v)
		}
		return -f, nil
	default:
		return nil, herr.InvalidArgumentf("unknown unary operator %q", op)
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func valuesEqual(l, r interface{}) bool {
	if lf, ok := asFloat(l); ok {
		if rf, ok := asFloat(r); ok {
			return lf == rf
		}
	}
	return reflect.DeepEqual(l, r)
}

// runtimeCompare orders l against r, supporting the scalar kinds
// property values actually take: numbers (cross-type), strings, and
// booleans (false < true).
func runtimeCompare(l, r interface{}) (int, bool) {
	if lf, ok := asFloat(l); ok {
		if rf, ok := asFloat(r); ok {
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if ls, ok := l.(string); ok {
		if rs, ok := r.(string); ok {
			return strings.Compare(ls, rs), true
		}
	}
	if lb, ok := l.(bool); ok {
		if rb, ok := r.(bool); ok {
			if lb == rb {
				return 0, true
			}
			if !lb {
				return -1, true
			}
			return 1, true
		}
	}
	return 0, false
}

// defaultRRFConstant is the k used by reciprocal-rank fusion when a
// query doesn't override it — the usual default cited for RRF.
const defaultRRFConstant = 60.0

// rrfCombine re-scores rows by reciprocal-rank fusion over two rankings
// — ascending ANN distance and descending BM25 score — and stably
// reorders rows by the combined score, descending.
func rrfCombine(rows []Row, k float64) []Row {
	n := len(rows)
	annOrder := make([]int, 0, n)
	bmOrder := make([]int, 0, n)
	for i, r := range rows {
		if r.HasDist {
			annOrder = append(annOrder, i)
		}
		if r.HasBM25 {
			bmOrder = append(bmOrder, i)
		}
	}
	sort.SliceStable(annOrder, func(a, b int) bool { return rows[annOrder[a]].Dist < rows[annOrder[b]].Dist })
	sort.SliceStable(bmOrder, func(a, b int) bool { return rows[bmOrder[a]].BM25 > rows[bmOrder[b]].BM25 })

	annRank := make(map[int]int, len(annOrder))
	for rank, idx := range annOrder {
		annRank[idx] = rank
	}
	bmRank := make(map[int]int, len(bmOrder))
	for rank, idx := range bmOrder {
		bmRank[idx] = rank
	}

	score := make([]float64, n)
	for i := range rows {
		if rank, ok := annRank[i]; ok {
			score[i] += 1.0 / (k + float64(rank) + 1.0)
		}
		if rank, ok := bmRank[i]; ok {
			score[i] += 1.0 / (k + float64(rank) + 1.0)
		}
	}

	out := append([]Row(nil), rows...)
	sort.SliceStable(out, func(a, b int) bool {
		ia, ib := indexOf(rows, out[a]), indexOf(rows, out[b])
		return score[ia] > score[ib]
	})
	return out
}

func indexOf(rows []Row, r Row) int {
	for i := range rows {
		if rows[i].ID == r.ID {
			return i
		}
	}
	return 0
}

// mmrReorder applies maximal-marginal-relevance selection: starting from
// the empty set, it repeatedly picks the remaining candidate maximizing
// lambda*relevance - (1-lambda)*similarity to the closest already-picked
// vector, trading off query relevance against result diversity.
func mmrReorder(rows []Row, lambda float64, query []float64) []Row {
	remaining := append([]Row(nil), rows...)
	selected := make([]Row, 0, len(rows))

	for len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, cand := range remaining {
			relevance := 1.0 / (1.0 + euclidean(cand.Vec, query))
			diversity := 0.0
			for _, s := range selected {
				sim := 1.0 / (1.0 + euclidean(cand.Vec, s.Vec))
				if sim > diversity {
					diversity = sim
				}
			}
			mmr := lambda*relevance - (1-lambda)*diversity
			if bestIdx == -1 || mmr > bestScore {
				bestIdx, bestScore = i, mmr
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func euclidean(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	if sum < 0 {
		return 0
	}
	return sum
}
