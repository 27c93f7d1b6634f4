package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/bm25"
	"github.com/helixdb/helix-core/pkg/codec"
	"github.com/helixdb/helix-core/pkg/config"
	"github.com/helixdb/helix-core/pkg/embed"
	"github.com/helixdb/helix-core/pkg/executor"
	"github.com/helixdb/helix-core/pkg/hnsw"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/schema"
	"github.com/helixdb/helix-core/pkg/storage"
)

// These six cases are spec.md §8's named end-to-end scenarios, driven
// through the full Compile -> Execute stack rather than against
// pkg/executor or pkg/storage directly, since that's the surface an
// actual caller of the registry exercises.

func mustParams(t *testing.T, v map[string]interface{}) []byte {
	t.Helper()
	b, err := codec.Msgpack(v)
	require.NoError(t, err)
	return b
}

func mustResult(t *testing.T, out []byte) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, codec.MsgpackDecode(out, &m))
	return m
}

func TestScenarioNodeEdgeRoundTrip(t *testing.T) {
	reg := schema.New()
	require.NoError(t, reg.RegisterNode(schema.NodeDef{Label: "User", Fields: map[string]schema.FieldDef{"name": {Type: schema.FieldString}}}))
	require.NoError(t, reg.RegisterEdge(schema.EdgeDef{Label: "Knows", From: "User", To: "User"}))
	store := storage.New(reg)
	exec := executor.New(store, reg, embed.NewLocalStub(4), config.Default(t.TempDir()))
	r := New(reg, exec, newFakeEnv())
	ctx := context.Background()

	_, err := r.Compile(`
		QUERY addUser(name: string) =>
			u = AddN<User>({name: param.name})
			RETURN u
		QUERY link(a: id, b: id) =>
			e = AddE<Knows>({})::From(param.a)::To(param.b)
			RETURN e
		QUERY outOf(id: id) =>
			x = N<User>(param.id)::Out<Knows>
			RETURN x
		QUERY inOf(id: id) =>
			x = N<User>(param.id)::In<Knows>
			RETURN x
	`)
	require.NoError(t, err)

	outA, err := r.Execute(ctx, "addUser", mustParams(t, map[string]interface{}{"name": "A"}))
	require.NoError(t, err)
	aID := mustResult(t, outA)["u"].([]interface{})[0].(map[string]interface{})["id"].(string)

	outB, err := r.Execute(ctx, "addUser", mustParams(t, map[string]interface{}{"name": "B"}))
	require.NoError(t, err)
	bID := mustResult(t, outB)["u"].([]interface{})[0].(map[string]interface{})["id"].(string)

	_, err = r.Execute(ctx, "link", mustParams(t, map[string]interface{}{"a": aID, "b": bID}))
	require.NoError(t, err)

	out, err := r.Execute(ctx, "outOf", mustParams(t, map[string]interface{}{"id": aID}))
	require.NoError(t, err)
	rows := mustResult(t, out)["x"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "B", rows[0].(map[string]interface{})["name"])

	out, err = r.Execute(ctx, "inOf", mustParams(t, map[string]interface{}{"id": bID}))
	require.NoError(t, err)
	rows = mustResult(t, out)["x"].([]interface{})
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].(map[string]interface{})["name"])
}

func TestScenarioUniqueEdgeRejectsSecond(t *testing.T) {
	reg := schema.New()
	require.NoError(t, reg.RegisterNode(schema.NodeDef{Label: "User", Fields: map[string]schema.FieldDef{"name": {Type: schema.FieldString}}}))
	require.NoError(t, reg.RegisterEdge(schema.EdgeDef{Label: "SpouseOf", From: "User", To: "User", Unique: true}))
	store := storage.New(reg)
	exec := executor.New(store, reg, embed.NewLocalStub(4), config.Default(t.TempDir()))
	r := New(reg, exec, newFakeEnv())
	ctx := context.Background()

	_, err := r.Compile(`
		QUERY addUser(name: string) =>
			u = AddN<User>({name: param.name})
			RETURN u
		QUERY marry(a: id, b: id) =>
			e = AddE<SpouseOf>({})::From(param.a)::To(param.b)
			RETURN e
	`)
	require.NoError(t, err)

	outA, _ := r.Execute(ctx, "addUser", mustParams(t, map[string]interface{}{"name": "A"}))
	aID := mustResult(t, outA)["u"].([]interface{})[0].(map[string]interface{})["id"].(string)
	outB, _ := r.Execute(ctx, "addUser", mustParams(t, map[string]interface{}{"name": "B"}))
	bID := mustResult(t, outB)["u"].([]interface{})[0].(map[string]interface{})["id"].(string)

	_, err = r.Execute(ctx, "marry", mustParams(t, map[string]interface{}{"a": aID, "b": bID}))
	require.NoError(t, err)

	_, err = r.Execute(ctx, "marry", mustParams(t, map[string]interface{}{"a": aID, "b": bID}))
	assert.Error(t, err)
}

func TestScenarioSecondaryIndexReflectsUpdate(t *testing.T) {
	reg := schema.New()
	require.NoError(t, reg.RegisterNode(schema.NodeDef{Label: "User", Fields: map[string]schema.FieldDef{"email": {Type: schema.FieldString}}}))
	require.NoError(t, reg.RegisterIndex(schema.IndexDef{Label: "User", Field: "email", Unique: true}))
	store := storage.New(reg)
	exec := executor.New(store, reg, embed.NewLocalStub(4), config.Default(t.TempDir()))
	r := New(reg, exec, newFakeEnv())
	ctx := context.Background()

	_, err := r.Compile(`
		QUERY addUser(email: string) =>
			u = AddN<User>({email: param.email})
			RETURN u
		QUERY byEmail(email: string) =>
			x = E<User>::WHERE(email == param.email)
			RETURN x
		QUERY setEmail(id: id, email: string) =>
			x = N<User>(param.id)::Update({email: param.email})
			RETURN x
	`)
	require.NoError(t, err)

	_, err = r.Execute(ctx, "addUser", mustParams(t, map[string]interface{}{"email": "x@y"}))
	require.NoError(t, err)

	out, err := r.Execute(ctx, "byEmail", mustParams(t, map[string]interface{}{"email": "x@y"}))
	require.NoError(t, err)
	rows := mustResult(t, out)["x"].([]interface{})
	require.Len(t, rows, 1)
	id := rows[0].(map[string]interface{})["id"].(string)

	_, err = r.Execute(ctx, "setEmail", mustParams(t, map[string]interface{}{"id": id, "email": "z@w"}))
	require.NoError(t, err)

	out, err = r.Execute(ctx, "byEmail", mustParams(t, map[string]interface{}{"email": "x@y"}))
	require.NoError(t, err)
	assert.Empty(t, mustResult(t, out)["x"])

	out, err = r.Execute(ctx, "byEmail", mustParams(t, map[string]interface{}{"email": "z@w"}))
	require.NoError(t, err)
	assert.Len(t, mustResult(t, out)["x"].([]interface{}), 1)
}

func TestScenarioHNSWRecallOnTrivialSet(t *testing.T) {
	reg := schema.New()
	require.NoError(t, reg.RegisterVector(schema.VectorDef{Label: "Point", Dimension: 3, HNSW: schema.HNSWConfig{
		M: 8, Mmax0: 16, EfConstruction: 64, EfSearch: 32,
	}}))
	store := storage.New(reg)
	exec := executor.New(store, reg, embed.NewLocalStub(3), config.Default(t.TempDir()))
	env := newFakeEnv()
	r := New(reg, exec, env)
	ctx := context.Background()

	idx := hnsw.New("Point", hnsw.Config{M: 8, Mmax0: 16, EfConstruction: 64, EfSearch: 32, Metric: hnsw.MetricL2})
	points := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 0}, {0, 1, 1}}
	pointIDs := make([]ids.ID, len(points))
	for i, p := range points {
		pointIDs[i] = ids.New()
		require.NoError(t, idx.Insert(env.txn, pointIDs[i], p, nil, nil))
	}

	_, err := r.Compile(`
		QUERY search(v: vector, k: i32) =>
			hits = SearchV<Point>(param.v, param.k)
			RETURN hits
	`)
	require.NoError(t, err)

	out, err := r.Execute(ctx, "search", mustParams(t, map[string]interface{}{"v": []float64{1, 0, 0}, "k": 2}))
	require.NoError(t, err)
	hits := mustResult(t, out)["hits"].([]interface{})
	require.Len(t, hits, 2)

	first := hits[0].(map[string]interface{})["id"].(string)
	second := hits[1].(map[string]interface{})["id"].(string)
	assert.Equal(t, pointIDs[0].String(), first)
	assert.Equal(t, pointIDs[3].String(), second)
}

// TestScenarioHybridSearchRanksLexicalMatchFirst seeds both the vector
// index and the BM25 index directly, the same way
// pkg/executor/executor_test.go does for VectorSearch plans: SearchHybrid
// reads both indices by label, but nothing in HQL writes a BM25 doc (only
// AddN<Label>({embedding: ...}) materializes a raw embedding into the
// vector index, and that path needs a node label declaring a
// FieldVectorRef field, which isn't this scenario's concern), so
// populating them is the test's job, not the query's.
func TestScenarioHybridSearchRanksLexicalMatchFirst(t *testing.T) {
	reg := schema.New()
	require.NoError(t, reg.RegisterVector(schema.VectorDef{Label: "Doc", Dimension: 4, HNSW: schema.HNSWConfig{
		M: 8, Mmax0: 16, EfConstruction: 64, EfSearch: 32,
	}}))
	store := storage.New(reg)
	embedder := embed.NewLocalStub(4)
	exec := executor.New(store, reg, embedder, config.Default(t.TempDir()))
	env := newFakeEnv()
	r := New(reg, exec, env)
	ctx := context.Background()

	idx := hnsw.New("Doc", hnsw.Config{M: 8, Mmax0: 16, EfConstruction: 64, EfSearch: 32, Metric: hnsw.MetricL2})

	foxText := "the quick brown fox"
	dogText := "lazy dog sleeps"
	foxVec, err := embedder.Embed(ctx, foxText)
	require.NoError(t, err)
	dogVec, err := embedder.Embed(ctx, dogText)
	require.NoError(t, err)

	foxID := ids.New()
	dogID := ids.New()
	require.NoError(t, idx.Insert(env.txn, foxID, foxVec, nil, nil))
	require.NoError(t, idx.Insert(env.txn, dogID, dogVec, nil, nil))

	labelHash := schema.LabelHash("Doc")
	require.NoError(t, bm25.AddDoc(env.txn, labelHash, foxID, foxText, bm25.DefaultTokenizer))
	require.NoError(t, bm25.AddDoc(env.txn, labelHash, dogID, dogText, bm25.DefaultTokenizer))

	_, err = r.Compile(`
		QUERY search(v: vector, q: string, k: i32) =>
			hits = SearchHybrid<Doc>(param.v, param.q, param.k)::RerankRRF()
			RETURN hits
	`)
	require.NoError(t, err)

	out, err := r.Execute(ctx, "search", mustParams(t, map[string]interface{}{"v": foxVec, "q": foxText, "k": 10}))
	require.NoError(t, err)
	hits := mustResult(t, out)["hits"].([]interface{})
	require.NotEmpty(t, hits)
	assert.Equal(t, foxID.String(), hits[0].(map[string]interface{})["id"])
}

func TestScenarioDropCascade(t *testing.T) {
	reg := schema.New()
	require.NoError(t, reg.RegisterNode(schema.NodeDef{Label: "User", Fields: map[string]schema.FieldDef{"name": {Type: schema.FieldString}}}))
	require.NoError(t, reg.RegisterIndex(schema.IndexDef{Label: "User", Field: "name", Unique: true}))
	require.NoError(t, reg.RegisterEdge(schema.EdgeDef{Label: "Knows", From: "User", To: "User"}))
	store := storage.New(reg)
	exec := executor.New(store, reg, embed.NewLocalStub(4), config.Default(t.TempDir()))
	r := New(reg, exec, newFakeEnv())
	ctx := context.Background()

	_, err := r.Compile(`
		QUERY addUser(name: string) =>
			u = AddN<User>({name: param.name})
			RETURN u
		QUERY link(a: id, b: id) =>
			e = AddE<Knows>({})::From(param.a)::To(param.b)
			RETURN e
		QUERY dropUser(id: id) =>
			DROP N<User>(param.id)
			RETURN param.id
		QUERY outOf(id: id) =>
			x = N<User>(param.id)::Out<Knows>
			RETURN x
		QUERY byName(name: string) =>
			x = E<User>::WHERE(name == param.name)
			RETURN x
	`)
	require.NoError(t, err)

	outCenter, _ := r.Execute(ctx, "addUser", mustParams(t, map[string]interface{}{"name": "center"}))
	centerID := mustResult(t, outCenter)["u"].([]interface{})[0].(map[string]interface{})["id"].(string)

	var leafIDs []string
	for _, name := range []string{"leaf1", "leaf2", "leaf3"} {
		out, _ := r.Execute(ctx, "addUser", mustParams(t, map[string]interface{}{"name": name}))
		leafID := mustResult(t, out)["u"].([]interface{})[0].(map[string]interface{})["id"].(string)
		leafIDs = append(leafIDs, leafID)
		_, err = r.Execute(ctx, "link", mustParams(t, map[string]interface{}{"a": centerID, "b": leafID}))
		require.NoError(t, err)
	}

	_, err = r.Execute(ctx, "dropUser", mustParams(t, map[string]interface{}{"id": centerID}))
	require.NoError(t, err)

	out, err := r.Execute(ctx, "byName", mustParams(t, map[string]interface{}{"name": "center"}))
	require.NoError(t, err)
	assert.Empty(t, mustResult(t, out)["x"])

	for _, leafID := range leafIDs {
		out, err := r.Execute(ctx, "outOf", mustParams(t, map[string]interface{}{"id": leafID}))
		require.NoError(t, err)
		assert.Empty(t, mustResult(t, out)["x"])
	}
}
