package maintenance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixdb/helix-core/pkg/hnsw"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/kv/kvtest"
	"github.com/helixdb/helix-core/pkg/schema"
	"github.com/helixdb/helix-core/pkg/storage"
)

type fakeEnv struct{ txn *kvtest.FakeWriteTxn }

func newFakeEnv() *fakeEnv { return &fakeEnv{txn: kvtest.NewFakeWriteTxn()} }

func (e *fakeEnv) BeginRead() (kv.Txn, error)       { return e.txn, nil }
func (e *fakeEnv) BeginWrite() (kv.WriteTxn, error) { return e.txn, nil }
func (e *fakeEnv) Close() error                     { return nil }

func newTestScheduler(t *testing.T) (*Scheduler, *fakeEnv) {
	t.Helper()
	reg := schema.New()
	require.NoError(t, reg.RegisterVector(schema.VectorDef{Label: "Doc", Dimension: 4}))
	store := storage.New(reg)
	env := newFakeEnv()

	indices := map[string]*hnsw.Index{}
	indexFor := func(label string) *hnsw.Index {
		if idx, ok := indices[label]; ok {
			return idx
		}
		idx := hnsw.New(label, hnsw.DefaultConfig())
		indices[label] = idx
		return idx
	}

	s := New(env, store, reg, indexFor, Config{
		CompactionInterval: time.Hour,
		ReconcileInterval:  time.Hour,
		Migrator:           schema.Migrator{},
	})
	return s, env
}

func TestCompactRunsStoreAndEveryVectorLabel(t *testing.T) {
	s, _ := newTestScheduler(t)
	require.NoError(t, s.compact())
}

func TestReconcileAppliesPendingMigrations(t *testing.T) {
	s, _ := newTestScheduler(t)
	applied := false
	s.migrator = schema.Migrator{Migrations: []schema.Migration{
		{FromVersion: 0, ToVersion: 1, Apply: func(txn kv.WriteTxn, reg *schema.Registry) error {
			applied = true
			return nil
		}},
	}}
	require.NoError(t, s.reconcile())
	assert.True(t, applied)
	assert.Equal(t, 1, s.reg.Version())
}

func TestCheckLivenessHealthyWhenSchemaResolves(t *testing.T) {
	s, _ := newTestScheduler(t)
	result := s.CheckLiveness()
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Message)
}

func TestErrorsPublishesReconciliationFailure(t *testing.T) {
	reg := schema.New()
	store := storage.New(reg)
	env := newFakeEnv()

	s := New(env, store, reg, func(label string) *hnsw.Index { return hnsw.New(label, hnsw.DefaultConfig()) }, Config{
		CompactionInterval: time.Hour,
		ReconcileInterval:  5 * time.Millisecond,
		Migrator: schema.Migrator{Migrations: []schema.Migration{
			{FromVersion: 0, ToVersion: 1, Apply: func(txn kv.WriteTxn, reg *schema.Registry) error {
				return assert.AnError
			}},
		}},
	})

	s.Start()
	defer s.Stop()

	select {
	case err := <-s.Errors():
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("expected a reconciliation failure on the error channel")
	}
}
