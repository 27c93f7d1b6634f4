package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/hql/ast"
)

func TestParsesSimpleNodeLookupQuery(t *testing.T) {
	src := `QUERY findPerson(id: id) =>
		x = N<Person>(param.id)
		RETURN x`
	queries, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, queries, 1)

	q := queries[0]
	assert.Equal(t, "findPerson", q.Name)
	require.Len(t, q.Params, 1)
	assert.Equal(t, "id", q.Params[0].Name)
	assert.Equal(t, "id", q.Params[0].Type)

	require.Len(t, q.Stmts, 1)
	assign, ok := q.Stmts[0].(ast.Assign)
	require.True(t, ok)
	assert.Equal(t, "x", assign.Name)

	nodeByID, ok := assign.Pipeline.Source.(ast.NodeByID)
	require.True(t, ok)
	assert.Equal(t, "Person", nodeByID.Label)
	_, ok = nodeByID.ID.(ast.ParamRef)
	assert.True(t, ok)

	require.Len(t, q.Return, 1)
	assert.Equal(t, "x", q.Return[0].Name)
	_, ok = q.Return[0].Expr.(ast.VarRef)
	assert.True(t, ok)
}

func TestParsesHopAndWhereAndPick(t *testing.T) {
	src := `QUERY friends(id: id) =>
		x = N<Person>(param.id)::Out<Knows>::WHERE(age > 21)::{name, age}
		RETURN x`
	queries, err := Parse(src)
	require.NoError(t, err)
	assign := queries[0].Stmts[0].(ast.Assign)
	require.Len(t, assign.Pipeline.Steps, 3)

	out, ok := assign.Pipeline.Steps[0].(ast.Out)
	require.True(t, ok)
	assert.Equal(t, "Knows", out.Label)

	where, ok := assign.Pipeline.Steps[1].(ast.Where)
	require.True(t, ok)
	cmp, ok := where.Expr.(ast.BinaryOp)
	require.True(t, ok)
	assert.Equal(t, ">", cmp.Op)
}

func TestParsesVectorSearchSource(t *testing.T) {
	src := `QUERY nearest(v: vector, k: int) =>
		hits = SearchV<Doc>(param.v, param.k)::RerankRRF()
		RETURN hits`
	queries, err := Parse(src)
	require.NoError(t, err)
	assign := queries[0].Stmts[0].(ast.Assign)
	sv, ok := assign.Pipeline.Source.(ast.SearchV)
	require.True(t, ok)
	assert.Equal(t, "Doc", sv.Label)

	_, ok = assign.Pipeline.Steps[0].(ast.RerankRRF)
	assert.True(t, ok)
}

func TestParsesHybridSearchSource(t *testing.T) {
	src := `QUERY hybrid(v: vector, q: string, k: int) =>
		hits = SearchHybrid<Doc>(param.v, param.q, param.k)
		RETURN hits`
	queries, err := Parse(src)
	require.NoError(t, err)
	assign := queries[0].Stmts[0].(ast.Assign)
	_, ok := assign.Pipeline.Source.(ast.SearchHybrid)
	assert.True(t, ok)
}

func TestParsesAddNAndAddEWithFromTo(t *testing.T) {
	src := `QUERY link(a: id, b: id) =>
		e = AddE<Knows>({since: 2020})::From(param.a)::To(param.b)
		RETURN e`
	queries, err := Parse(src)
	require.NoError(t, err)
	assign := queries[0].Stmts[0].(ast.Assign)
	addE, ok := assign.Pipeline.Source.(ast.AddE)
	require.True(t, ok)
	assert.Equal(t, "Knows", addE.Label)
	require.Len(t, addE.Fields, 1)
	assert.Equal(t, "since", addE.Fields[0].Name)

	require.Len(t, assign.Pipeline.Steps, 2)
	_, ok = assign.Pipeline.Steps[0].(ast.From)
	assert.True(t, ok)
	_, ok = assign.Pipeline.Steps[1].(ast.To)
	assert.True(t, ok)
}

func TestParsesDropStatement(t *testing.T) {
	src := `QUERY remove(id: id) =>
		DROP N<Person>(param.id)
		RETURN id`
	queries, err := Parse(src)
	require.NoError(t, err)
	_, ok := queries[0].Stmts[0].(ast.Drop)
	assert.True(t, ok)
}

func TestParsesExistsAndEmbedExpressions(t *testing.T) {
	src := `QUERY check(id: id, q: string) =>
		ok = N<Person>(param.id)::WHERE(EXISTS(N<Person>(param.id)::Out<Knows>))
		doc = AddN<Doc>({embedding: Embed(param.q)})
		RETURN ok`
	queries, err := Parse(src)
	require.NoError(t, err)
	assign := queries[0].Stmts[0].(ast.Assign)
	where := assign.Pipeline.Steps[0].(ast.Where)
	_, ok := where.Expr.(ast.Exists)
	assert.True(t, ok)

	doc := queries[0].Stmts[1].(ast.Assign)
	addN, ok := doc.Pipeline.Source.(ast.AddN)
	require.True(t, ok)
	require.Len(t, addN.Fields, 1)
	_, ok = addN.Fields[0].Expr.(ast.EmbedCall)
	assert.True(t, ok)
}

func TestParsesBareEAllOfAndEdgeByID(t *testing.T) {
	src := `QUERY edges() =>
		all = E<Knows>
		one = E<Knows>(param.id)
		RETURN all`
	queries, err := Parse(src)
	require.NoError(t, err)
	all := queries[0].Stmts[0].(ast.Assign)
	_, ok := all.Pipeline.Source.(ast.AllOf)
	assert.True(t, ok)

	one := queries[0].Stmts[1].(ast.Assign)
	_, ok = one.Pipeline.Source.(ast.EdgeByID)
	assert.True(t, ok)
}

func TestParsesVectorByIDSource(t *testing.T) {
	src := `QUERY getVec(id: id) =>
		v = V<Doc>(param.id)
		RETURN v`
	queries, err := Parse(src)
	require.NoError(t, err)
	assign := queries[0].Stmts[0].(ast.Assign)
	_, ok := assign.Pipeline.Source.(ast.VectorByID)
	assert.True(t, ok)
}

func TestParseErrorOnMissingReturn(t *testing.T) {
	_, err := Parse(`QUERY bad() => x = N<Person>(1)`)
	assert.Error(t, err)
}

func TestParsesMultipleQueriesInOneSource(t *testing.T) {
	src := `
QUERY a() => x = N<Person>(1) RETURN x
QUERY b() => y = N<Person>(2) RETURN y
`
	queries, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "a", queries[0].Name)
	assert.Equal(t, "b", queries[1].Name)
}
