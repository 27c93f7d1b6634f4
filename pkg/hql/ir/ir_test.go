package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCarrierKindString(t *testing.T) {
	assert.Equal(t, "node-set", CarrierNodeSet.String())
	assert.Equal(t, "vector-set", CarrierVectorSet.String())
}

func TestFoldConstantsArithmetic(t *testing.T) {
	expr := BinaryOp{Op: "+", Left: Literal{Value: int64(2)}, Right: Literal{Value: int64(3)}}
	folded := FoldConstants(expr)
	lit, ok := folded.(Literal)
	require.True(t, ok)
	assert.Equal(t, 5.0, lit.Value)
}

func TestFoldConstantsLeavesNonLiteralOperandsAlone(t *testing.T) {
	expr := BinaryOp{Op: "+", Left: ParamRef{Name: "x", Index: 0}, Right: Literal{Value: int64(3)}}
	folded := FoldConstants(expr)
	bin, ok := folded.(BinaryOp)
	require.True(t, ok)
	_, ok = bin.Left.(ParamRef)
	assert.True(t, ok)
}

func TestFoldConstantsBoolean(t *testing.T) {
	expr := UnaryOp{Op: "NOT", Operand: Literal{Value: true}}
	folded := FoldConstants(expr)
	lit, ok := folded.(Literal)
	require.True(t, ok)
	assert.Equal(t, false, lit.Value)
}

func TestPushDownLabelFiltersDropsRedundantWhere(t *testing.T) {
	nodes := []*Node{
		{Op: OutE{Label: "Knows"}},
		{Op: Where{Expr: BinaryOp{
			Op:    "==",
			Left:  PropertyAccess{Field: "__label"},
			Right: Literal{Value: "Knows"},
		}}},
		{Op: Count{}},
	}
	out := pushDownLabelFilters(nodes)
	require.Len(t, out, 2)
	_, ok := out[0].Op.(OutE)
	assert.True(t, ok)
	_, ok = out[1].Op.(Count)
	assert.True(t, ok)
}

func TestPushDownLabelFiltersKeepsUnrelatedWhere(t *testing.T) {
	nodes := []*Node{
		{Op: Out{Label: "Knows"}},
		{Op: Where{Expr: BinaryOp{
			Op:    "==",
			Left:  PropertyAccess{Field: "__label"},
			Right: Literal{Value: "Likes"},
		}}},
	}
	out := pushDownLabelFilters(nodes)
	assert.Len(t, out, 2)
}

func TestEliminateRedundantProjectionsDropsDuplicate(t *testing.T) {
	nodes := []*Node{
		{Op: PickFields{Fields: []string{"name", "age"}}},
		{Op: PickFields{Fields: []string{"name", "age"}}},
	}
	out := eliminateRedundantProjections(nodes)
	assert.Len(t, out, 1)
}

func TestOptimizeFoldsAndPrunesWholePipeline(t *testing.T) {
	plan := &Plan{
		Stmts: []Stmt{
			Assign{
				Name: "x",
				Pipeline: &Pipeline{
					Nodes: []*Node{
						{Op: AllOf{Label: "Person"}},
						{Op: Where{Expr: BinaryOp{Op: "+", Left: Literal{Value: int64(1)}, Right: Literal{Value: int64(1)}}}},
					},
				},
			},
		},
	}
	Optimize(plan)
	assign := plan.Stmts[0].(Assign)
	where := assign.Pipeline.Nodes[1].Op.(Where)
	lit, ok := where.Expr.(Literal)
	require.True(t, ok)
	assert.Equal(t, 2.0, lit.Value)
}
