// Package config loads the typed configuration the embedded database
// accepts from its caller: backend choice, data directory, resource
// budgets, and default index parameters. The gateway's own .env/TOML
// loading is out of scope for the core (spec.md §1), but the core itself
// still accepts a config value the same way — optionally parsed from TOML
// via BurntSushi/toml, the config library this retrieval pack uses.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Backend selects the KV environment implementation.
type Backend string

const (
	BackendBolt   Backend = "bolt"   // LMDB-style single-writer B+tree.
	BackendPebble Backend = "pebble" // RocksDB-style LSM; each writer buffers into its own batch.
)

// HNSWDefaults holds the per-label HNSW parameters spec.md §4.5 lists.
// These values are not read when an index is built: the executor and the
// CLI start from hnsw.DefaultConfig (the same numbers) and take each
// positive value from the vector label's schema entry over it.
type HNSWDefaults struct {
	M              int     `toml:"m"`
	Mmax0          int     `toml:"mmax0"`
	EfConstruction int     `toml:"ef_construction"`
	EfSearch       int     `toml:"ef_search"`
}

// BM25Defaults holds the per-label BM25 parameters.
type BM25Defaults struct {
	K1 float64 `toml:"k1"`
	B  float64 `toml:"b"`
}

// DatabaseConfig is the top-level configuration accepted when opening a
// database directory.
type DatabaseConfig struct {
	Backend      Backend       `toml:"backend"`
	DataDir      string        `toml:"data_dir"`
	ArenaBudget  int           `toml:"arena_budget_bytes"`
	QueryTimeout time.Duration `toml:"query_timeout"`
	HNSW         HNSWDefaults  `toml:"hnsw"`
	BM25         BM25Defaults  `toml:"bm25"`
}

// Default returns the configuration used when a caller supplies none.
func Default(dataDir string) DatabaseConfig {
	return DatabaseConfig{
		Backend:      BackendBolt,
		DataDir:      dataDir,
		ArenaBudget:  64 << 20, // 64MiB per query
		QueryTimeout: 30 * time.Second,
		HNSW: HNSWDefaults{
			M:              16,
			Mmax0:          32,
			EfConstruction: 200,
			EfSearch:       50,
		},
		BM25: BM25Defaults{K1: 1.2, B: 0.75},
	}
}

// Load reads a DatabaseConfig from a TOML file, filling any field the file
// omits with Default's values for the given data directory.
func Load(path, dataDir string) (DatabaseConfig, error) {
	cfg := Default(dataDir)
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for obviously unusable values.
func (c DatabaseConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.Backend != BackendBolt && c.Backend != BackendPebble {
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.ArenaBudget <= 0 {
		return fmt.Errorf("config: arena_budget_bytes must be positive")
	}
	return nil
}
