package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/config"
	"github.com/helixdb/helix-core/pkg/embed"
	"github.com/helixdb/helix-core/pkg/hql/ir"
	"github.com/helixdb/helix-core/pkg/ids"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/kv/kvtest"
	"github.com/helixdb/helix-core/pkg/schema"
	"github.com/helixdb/helix-core/pkg/storage"
)

// fakeEnv adapts a single shared kvtest.FakeWriteTxn into a kv.Env, good
// enough for tests that run one executor call at a time: BeginRead and
// BeginWrite both hand back the same backing transaction, since the fake
// has no real isolation to offer anyway.
type fakeEnv struct {
	txn *kvtest.FakeWriteTxn
}

func newFakeEnv() *fakeEnv { return &fakeEnv{txn: kvtest.NewFakeWriteTxn()} }

func (e *fakeEnv) BeginRead() (kv.Txn, error)       { return e.txn, nil }
func (e *fakeEnv) BeginWrite() (kv.WriteTxn, error) { return e.txn, nil }
func (e *fakeEnv) Close() error                     { return nil }

func newTestExecutor(t *testing.T) (*Executor, *fakeEnv) {
	t.Helper()
	reg := schema.New()
	require.NoError(t, reg.RegisterNode(schema.NodeDef{
		Label: "Person",
		Fields: map[string]schema.FieldDef{
			"name": {Type: schema.FieldString},
			"age":  {Type: schema.FieldI32},
		},
	}))
	require.NoError(t, reg.RegisterIndex(schema.IndexDef{Label: "Person", Field: "name", Unique: true}))
	require.NoError(t, reg.RegisterEdge(schema.EdgeDef{Label: "Knows", From: "Person", To: "Person"}))
	require.NoError(t, reg.RegisterVector(schema.VectorDef{Label: "Doc", Dimension: 4}))

	store := storage.New(reg)
	embedder := embed.NewLocalStub(4)
	cfg := config.Default(t.TempDir())
	return New(store, reg, embedder, cfg), newFakeEnv()
}

func strLit(s string) ir.Expr    { return ir.Literal{Value: s} }
func intLit(n int) ir.Expr       { return ir.Literal{Value: n} }
func idLit(id string) ir.Expr    { return ir.Literal{Value: id} }
func namedStr(name, v string) ir.NamedExpr {
	return ir.NamedExpr{Name: name, Expr: strLit(v)}
}

func addNPlan(name, label, field, value string) *ir.Plan {
	return &ir.Plan{
		Name: name,
		Stmts: []ir.Stmt{
			ir.Assign{
				Name: "n",
				Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
					{Op: ir.AddN{Label: label, Fields: []ir.NamedExpr{namedStr(field, value)}}, OutType: ir.CarrierNodeSet},
				}},
			},
		},
		Return: []ir.ReturnItem{{Name: "n", Binding: "n"}},
	}
}

func TestAddNodeAndReturn(t *testing.T) {
	e, env := newTestExecutor(t)
	result, err := e.Execute(context.Background(), env, addNPlan("add_person", "Person", "name", "alice"), nil)
	require.NoError(t, err)

	rows, ok := result["n"].([]map[string]interface{})
	require.True(t, ok)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0]["name"])
	assert.Equal(t, "Person", rows[0]["label"])
}

func TestAllOfAndWhereAndCount(t *testing.T) {
	e, env := newTestExecutor(t)
	ctx := context.Background()

	_, err := e.Execute(ctx, env, addNPlan("p1", "Person", "name", "alice"), nil)
	require.NoError(t, err)
	_, err = e.Execute(ctx, env, addNPlan("p2", "Person", "name", "bob"), nil)
	require.NoError(t, err)

	plan := &ir.Plan{
		Name: "count_alice",
		Stmts: []ir.Stmt{
			ir.Assign{
				Name: "matches",
				Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
					{Op: ir.AllOf{Label: "Person"}, OutType: ir.CarrierNodeSet},
					{
						Op: ir.Where{Expr: ir.BinaryOp{
							Op:    "==",
							Left:  ir.PropertyAccess{Field: "name"},
							Right: strLit("alice"),
						}},
						InType: ir.CarrierNodeSet, OutType: ir.CarrierNodeSet,
					},
					{Op: ir.Count{}, InType: ir.CarrierNodeSet, OutType: ir.CarrierScalar},
				}},
			},
		},
		Return: []ir.ReturnItem{{Name: "count", Binding: "matches"}},
	}

	result, err := e.Execute(ctx, env, plan, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result["count"])
}

func TestAddEdgeAndHop(t *testing.T) {
	e, env := newTestExecutor(t)
	ctx := context.Background()

	var aliceID, bobID string
	res, err := e.Execute(ctx, env, addNPlan("p1", "Person", "name", "alice"), nil)
	require.NoError(t, err)
	aliceID = res["n"].([]map[string]interface{})[0]["id"].(string)

	res, err = e.Execute(ctx, env, addNPlan("p2", "Person", "name", "bob"), nil)
	require.NoError(t, err)
	bobID = res["n"].([]map[string]interface{})[0]["id"].(string)

	addEdgePlan := &ir.Plan{
		Name: "link",
		Stmts: []ir.Stmt{
			ir.Assign{
				Name: "e",
				Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
					{Op: ir.AddE{Label: "Knows", Fields: nil, From: idLit(aliceID), To: idLit(bobID)}, OutType: ir.CarrierEdgeSet},
				}},
			},
		},
		Return: []ir.ReturnItem{{Name: "e", Binding: "e"}},
	}
	_, err = e.Execute(ctx, env, addEdgePlan, nil)
	require.NoError(t, err)

	hopPlan := &ir.Plan{
		Name: "friends_of_alice",
		Stmts: []ir.Stmt{
			ir.Assign{
				Name: "friends",
				Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
					{Op: ir.NodeByID{Label: "Person", ID: idLit(aliceID)}, OutType: ir.CarrierNodeSet},
					{Op: ir.Out{Label: "Knows"}, InType: ir.CarrierNodeSet, OutType: ir.CarrierNodeSet},
				}},
			},
		},
		Return: []ir.ReturnItem{{Name: "friends", Binding: "friends"}},
	}
	result, err := e.Execute(ctx, env, hopPlan, nil)
	require.NoError(t, err)
	friends := result["friends"].([]map[string]interface{})
	require.Len(t, friends, 1)
	assert.Equal(t, "bob", friends[0]["name"])
}

func TestVectorSearchReturnsNearestFirst(t *testing.T) {
	e, env := newTestExecutor(t)
	ctx := context.Background()

	embedder := e.embed
	vecA, err := embedder.Embed(ctx, "alpha")
	require.NoError(t, err)
	vecB, err := embedder.Embed(ctx, "beta")
	require.NoError(t, err)

	writeTxn, err := env.BeginWrite()
	require.NoError(t, err)
	idxA := e.indexFor("Doc")
	require.NoError(t, idxA.Insert(writeTxn, ids.New(), vecA, map[string]interface{}{"text": "alpha"}, nil))
	require.NoError(t, idxA.Insert(writeTxn, ids.New(), vecB, map[string]interface{}{"text": "beta"}, nil))

	searchPlan := &ir.Plan{
		Name: "search_doc",
		Stmts: []ir.Stmt{
			ir.Assign{
				Name: "hits",
				Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
					{Op: ir.VectorSearch{Label: "Doc", Vec: ir.Literal{Value: vecA}, K: intLit(2)}, OutType: ir.CarrierVectorSet},
				}},
			},
		},
		Return: []ir.ReturnItem{{Name: "hits", Binding: "hits"}},
	}
	result, err := e.Execute(ctx, env, searchPlan, nil)
	require.NoError(t, err)
	hits := result["hits"].([]map[string]interface{})
	require.NotEmpty(t, hits)
	assert.Equal(t, "alpha", hits[0]["text"])
	assert.InDelta(t, 0, hits[0]["distance"].(float64), 1e-9)
}

func TestDropNodeCascadesEdges(t *testing.T) {
	e, env := newTestExecutor(t)
	ctx := context.Background()

	res, err := e.Execute(ctx, env, addNPlan("p1", "Person", "name", "alice"), nil)
	require.NoError(t, err)
	aliceID := res["n"].([]map[string]interface{})[0]["id"].(string)

	res, err = e.Execute(ctx, env, addNPlan("p2", "Person", "name", "bob"), nil)
	require.NoError(t, err)
	bobID := res["n"].([]map[string]interface{})[0]["id"].(string)

	_, err = e.Execute(ctx, env, &ir.Plan{
		Name: "link",
		Stmts: []ir.Stmt{ir.Assign{
			Name: "e",
			Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
				{Op: ir.AddE{Label: "Knows", From: idLit(aliceID), To: idLit(bobID)}, OutType: ir.CarrierEdgeSet},
			}},
		}},
	}, nil)
	require.NoError(t, err)

	_, err = e.Execute(ctx, env, &ir.Plan{
		Name: "drop_alice",
		Stmts: []ir.Stmt{ir.DropStmt{
			Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
				{Op: ir.NodeByID{Label: "Person", ID: idLit(aliceID)}, OutType: ir.CarrierNodeSet},
			}},
		}},
	}, nil)
	require.NoError(t, err)

	result, err := e.Execute(ctx, env, &ir.Plan{
		Name: "bob_friends",
		Stmts: []ir.Stmt{ir.Assign{
			Name: "out",
			Pipeline: &ir.Pipeline{Nodes: []*ir.Node{
				{Op: ir.NodeByID{Label: "Person", ID: idLit(bobID)}, OutType: ir.CarrierNodeSet},
				{Op: ir.In{Label: "Knows"}, InType: ir.CarrierNodeSet, OutType: ir.CarrierNodeSet},
			}},
		}},
		Return: []ir.ReturnItem{{Name: "out", Binding: "out"}},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, result["out"].([]map[string]interface{}))
}
