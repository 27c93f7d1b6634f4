package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/hql/ir"
	"github.com/helixdb/helix-core/pkg/hql/parser"
	"github.com/helixdb/helix-core/pkg/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.New()
	require.NoError(t, reg.RegisterNode(schema.NodeDef{
		Label:  "Person",
		Fields: map[string]schema.FieldDef{"name": {Type: schema.FieldString}, "age": {Type: schema.FieldI64}},
	}))
	require.NoError(t, reg.RegisterEdge(schema.EdgeDef{
		Label: "Knows", From: "Person", To: "Person",
		Fields: map[string]schema.FieldDef{"since": {Type: schema.FieldI64}},
	}))
	require.NoError(t, reg.RegisterVector(schema.VectorDef{Label: "Doc", Dimension: 8}))
	return reg
}

func TestAnalyzeNodeLookupAndReturnBinding(t *testing.T) {
	reg := testRegistry(t)
	queries, err := parser.Parse(`QUERY findPerson(id: id) =>
		x = N<Person>(param.id)
		RETURN x`)
	require.NoError(t, err)

	res := Analyze(queries[0], reg)
	assert.False(t, res.HasFatal(), "%v", res.Diagnostics)
	require.Len(t, res.Plan.Stmts, 1)
	assign := res.Plan.Stmts[0].(ir.Assign)
	assert.Equal(t, "x", assign.Name)
	assert.Equal(t, ir.CarrierNodeSet, assign.Pipeline.OutType())

	require.Len(t, res.Plan.Return, 1)
	assert.Equal(t, "x", res.Plan.Return[0].Binding)
}

func TestAnalyzeUnknownLabelIsFatal(t *testing.T) {
	reg := testRegistry(t)
	queries, err := parser.Parse(`QUERY bad(id: id) =>
		x = N<Ghost>(param.id)
		RETURN x`)
	require.NoError(t, err)

	res := Analyze(queries[0], reg)
	assert.True(t, res.HasFatal())
}

func TestAnalyzeHopTransitionsCarrierAndLabel(t *testing.T) {
	reg := testRegistry(t)
	queries, err := parser.Parse(`QUERY friends(id: id) =>
		x = N<Person>(param.id)::Out<Knows>
		RETURN x`)
	require.NoError(t, err)

	res := Analyze(queries[0], reg)
	assert.False(t, res.HasFatal(), "%v", res.Diagnostics)
	assign := res.Plan.Stmts[0].(ir.Assign)
	require.Len(t, assign.Pipeline.Nodes, 2)
	assert.Equal(t, ir.CarrierNodeSet, assign.Pipeline.Nodes[1].OutType)
}

func TestAnalyzeUndefinedParamIsFatal(t *testing.T) {
	reg := testRegistry(t)
	queries, err := parser.Parse(`QUERY bad() =>
		x = N<Person>(param.id)
		RETURN x`)
	require.NoError(t, err)

	res := Analyze(queries[0], reg)
	assert.True(t, res.HasFatal())
}

func TestAnalyzeAddEFoldsFromToIntoMutationOp(t *testing.T) {
	reg := testRegistry(t)
	queries, err := parser.Parse(`QUERY link(a: id, b: id) =>
		e = AddE<Knows>({since: 2020})::From(param.a)::To(param.b)
		RETURN e`)
	require.NoError(t, err)

	res := Analyze(queries[0], reg)
	assert.False(t, res.HasFatal(), "%v", res.Diagnostics)
	assign := res.Plan.Stmts[0].(ir.Assign)
	require.Len(t, assign.Pipeline.Nodes, 1)
	addE := assign.Pipeline.Nodes[0].Op.(ir.AddE)
	assert.NotNil(t, addE.From)
	assert.NotNil(t, addE.To)
}

func TestAnalyzeUnknownMutationFieldWarns(t *testing.T) {
	reg := testRegistry(t)
	queries, err := parser.Parse(`QUERY add() =>
		x = AddN<Person>({nickname: "bob"})
		RETURN x`)
	require.NoError(t, err)

	res := Analyze(queries[0], reg)
	assert.False(t, res.HasFatal())
	found := false
	for _, d := range res.Diagnostics {
		if d.Severity == SeverityWarning {
			found = true
		}
	}
	assert.True(t, found)
}

func TestAnalyzeRefInlinesPriorPipeline(t *testing.T) {
	reg := testRegistry(t)
	queries, err := parser.Parse(`QUERY chain(id: id) =>
		x = N<Person>(param.id)
		y = x::Out<Knows>
		RETURN y`)
	require.NoError(t, err)

	res := Analyze(queries[0], reg)
	assert.False(t, res.HasFatal(), "%v", res.Diagnostics)
	y := res.Plan.Stmts[1].(ir.Assign)
	require.Len(t, y.Pipeline.Nodes, 2)
	_, ok := y.Pipeline.Nodes[0].Op.(ir.NodeByID)
	assert.True(t, ok)
	_, ok = y.Pipeline.Nodes[1].Op.(ir.Out)
	assert.True(t, ok)
}
