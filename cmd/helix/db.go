package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixdb/helix-core/pkg/config"
	"github.com/helixdb/helix-core/pkg/embed"
	"github.com/helixdb/helix-core/pkg/executor"
	"github.com/helixdb/helix-core/pkg/hnsw"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/kv/boltkv"
	"github.com/helixdb/helix-core/pkg/kv/pebblekv"
	"github.com/helixdb/helix-core/pkg/maintenance"
	"github.com/helixdb/helix-core/pkg/registry"
	"github.com/helixdb/helix-core/pkg/schema"
	"github.com/helixdb/helix-core/pkg/storage"
)

// cliEmbedDimension is the vector width the CLI's embedding stub produces.
// A real deployment configures its embedding provider (and each vector
// label's declared dimension) independently; this debugging entry point
// just needs one fixed, deterministic provider to exercise EMBED(...)
// expressions against whatever single-dimension schema it's pointed at.
const cliEmbedDimension = 768

// cliMaintenanceInterval sizes the maintenance.Scheduler this CLI builds
// so it can reuse CheckLiveness; the CLI never calls Start, so neither
// ticker actually fires.
const cliMaintenanceInterval = time.Hour

// database bundles the opened env, its loaded schema, and the
// executor/registry pair every subcommand runs against.
type database struct {
	env   kv.Env
	reg   *schema.Registry
	store *storage.GraphStore
	exec  *executor.Executor
	reqs  *registry.Registry
	maint *maintenance.Scheduler
}

func openDatabase(cmd *cobra.Command) (*database, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	backendName, _ := cmd.Flags().GetString("backend")

	cfg := config.Default(dataDir)
	cfg.Backend = config.Backend(backendName)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dataDir, "helix.db")
	var env kv.Env
	var err error
	switch cfg.Backend {
	case config.BackendBolt:
		env, err = boltkv.Open(dbPath)
	case config.BackendPebble:
		env, err = pebblekv.Open(dbPath)
	default:
		return nil, fmt.Errorf("helix: unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	txn, err := env.BeginRead()
	if err != nil {
		_ = env.Close()
		return nil, err
	}
	reg, err := schema.Load(txn)
	txn.Discard()
	if err != nil {
		_ = env.Close()
		return nil, err
	}

	store := storage.New(reg)
	embedder := embed.NewLocalStub(cliEmbedDimension)
	exec := executor.New(store, reg, embedder, cfg)
	reqs := registry.New(reg, exec, env)

	indices := map[string]*hnsw.Index{}
	indexFor := func(label string) *hnsw.Index {
		if idx, ok := indices[label]; ok {
			return idx
		}
		idxCfg := hnsw.DefaultConfig()
		if def, ok := reg.Vector(label); ok {
			if def.HNSW.M > 0 {
				idxCfg.M = def.HNSW.M
			}
			if def.HNSW.Mmax0 > 0 {
				idxCfg.Mmax0 = def.HNSW.Mmax0
			}
			if def.HNSW.EfConstruction > 0 {
				idxCfg.EfConstruction = def.HNSW.EfConstruction
			}
			if def.HNSW.EfSearch > 0 {
				idxCfg.EfSearch = def.HNSW.EfSearch
			}
		}
		idx := hnsw.New(label, idxCfg)
		indices[label] = idx
		return idx
	}
	maint := maintenance.New(env, store, reg, indexFor, maintenance.Config{
		CompactionInterval: cliMaintenanceInterval,
		ReconcileInterval:  cliMaintenanceInterval,
	})

	return &database{env: env, reg: reg, store: store, exec: exec, reqs: reqs, maint: maint}, nil
}

func (d *database) Close() error { return d.env.Close() }
