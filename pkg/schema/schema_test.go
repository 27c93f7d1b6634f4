package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/kv/kvtest"
)

func personDef() NodeDef {
	return NodeDef{
		Label: "Person",
		Fields: map[string]FieldDef{
			"name": {Type: FieldString},
			"age":  {Type: FieldI32},
		},
	}
}

func TestRegisterNodeAndEdge(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterNode(personDef()))

	err := r.RegisterEdge(EdgeDef{Label: "Knows", From: "Person", To: "Person", Unique: true})
	require.NoError(t, err)

	_, ok := r.Edge("Knows")
	assert.True(t, ok)
}

func TestRegisterEdgeUnknownEndpointFails(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterNode(personDef()))

	err := r.RegisterEdge(EdgeDef{Label: "WorksAt", From: "Person", To: "Company"})
	assert.Error(t, err)
}

func TestRegisterIndexRequiresKnownField(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterNode(personDef()))

	require.NoError(t, r.RegisterIndex(IndexDef{Label: "Person", Field: "name", Unique: true}))
	assert.Error(t, r.RegisterIndex(IndexDef{Label: "Person", Field: "nickname"}))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterNode(personDef()))
	require.NoError(t, r.Bump(1))

	txn := kvtest.NewFakeWriteTxn()
	require.NoError(t, r.Save(txn))

	loaded, err := Load(txn)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Version())
	def, ok := loaded.Node("Person")
	require.True(t, ok)
	assert.Equal(t, FieldString, def.Fields["name"].Type)
}

func TestMigratorRunsChain(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterNode(personDef()))
	require.NoError(t, r.Bump(1))

	applied := 0
	mig := Migrator{Migrations: []Migration{
		{FromVersion: 1, ToVersion: 2, Apply: func(txn kv.WriteTxn, reg *Registry) error {
			applied++
			return nil
		}},
	}}

	txn := kvtest.NewFakeWriteTxn()
	require.NoError(t, mig.Run(txn, r))
	assert.Equal(t, 1, applied)
	assert.Equal(t, 2, r.Version())

	loaded, err := Load(txn)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Version())
}
