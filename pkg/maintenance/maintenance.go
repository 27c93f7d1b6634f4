// Package maintenance runs HelixDB's background upkeep: periodic
// storage/vector-index compaction and schema-migration reconciliation,
// reporting failures on an error channel instead of logging-and-dropping
// them or panicking. Grounded on the teacher's pkg/scheduler and
// pkg/reconciler (ticker-driven loop, Start/Stop, one cycle method per
// tick) and pkg/events (buffered-channel fan-out), retargeted from
// cluster/container lifecycle to storage maintenance.
package maintenance

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixdb/helix-core/pkg/hnsw"
	"github.com/helixdb/helix-core/pkg/kv"
	"github.com/helixdb/helix-core/pkg/log"
	"github.com/helixdb/helix-core/pkg/metrics"
	"github.com/helixdb/helix-core/pkg/schema"
	"github.com/helixdb/helix-core/pkg/storage"
)

// LivenessResult is one liveness probe's outcome, the same
// Healthy/Message/CheckedAt/Duration shape the teacher's pkg/health.Result
// reports for a container healthcheck, narrowed to the one thing worth
// probing here: can the KV env still open a read transaction and resolve
// the persisted schema registry.
type LivenessResult struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// IndexFor resolves the live hnsw.Index for a vector label, the same
// lazy-build accessor pkg/executor.Executor keeps internally; the
// scheduler takes it as a function rather than depending on *executor.
// Executor directly, so the two packages don't import each other.
type IndexFor func(label string) *hnsw.Index

// Scheduler drives compaction and schema reconciliation on their own
// tickers against a single database. Errors(), not panics or silent
// logging, is how a cycle's failure reaches the caller — spec.md's
// "Background maintenance ... reports errors via its own channel".
type Scheduler struct {
	env   kv.Env
	store *storage.GraphStore
	reg   *schema.Registry
	index IndexFor

	compactionInterval time.Duration
	reconcileInterval  time.Duration
	migrator           schema.Migrator

	logger zerolog.Logger
	errCh  chan error
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Config sizes a Scheduler's two ticker intervals and carries the
// migration chain its reconciler runs.
type Config struct {
	CompactionInterval time.Duration
	ReconcileInterval  time.Duration
	Migrator           schema.Migrator
}

// New returns a Scheduler bound to env/store/reg, resolving vector
// indices through index. Neither loop is started until Start is called.
func New(env kv.Env, store *storage.GraphStore, reg *schema.Registry, index IndexFor, cfg Config) *Scheduler {
	return &Scheduler{
		env:                env,
		store:              store,
		reg:                reg,
		index:              index,
		compactionInterval: cfg.CompactionInterval,
		reconcileInterval:  cfg.ReconcileInterval,
		migrator:           cfg.Migrator,
		logger:             log.WithComponent("maintenance"),
		errCh:              make(chan error, 16),
		stopCh:             make(chan struct{}),
	}
}

// Start begins both loops in their own goroutines.
func (s *Scheduler) Start() {
	s.wg.Add(2)
	go s.runCompaction()
	go s.runReconciliation()
}

// Stop signals both loops to exit and waits for them to return.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// Errors returns the channel compaction/reconciliation failures are
// published on. The channel is buffered (16); a failure is dropped
// rather than blocking a maintenance cycle if the caller isn't draining
// it, the same backpressure choice the teacher's event broker makes for
// a full subscriber buffer.
func (s *Scheduler) Errors() <-chan error { return s.errCh }

// CheckLiveness opens a read transaction and reloads the schema registry
// from it, the storage-liveness probe the teacher's pkg/health/health.go
// Checker performs for a container (open a connection, confirm it
// answers) narrowed to this store's one liveness signal.
func (s *Scheduler) CheckLiveness() LivenessResult {
	start := time.Now()
	result := LivenessResult{CheckedAt: start}

	txn, err := s.env.BeginRead()
	if err != nil {
		result.Message = "begin read txn: " + err.Error()
		result.Duration = time.Since(start)
		return result
	}
	defer txn.Discard()

	if _, err := schema.Load(txn); err != nil {
		result.Message = "load schema: " + err.Error()
		result.Duration = time.Since(start)
		return result
	}

	result.Healthy = true
	result.Duration = time.Since(start)
	return result
}

func (s *Scheduler) publish(err error) {
	select {
	case s.errCh <- err:
	default:
		s.logger.Warn().Err(err).Msg("maintenance error channel full, dropping")
	}
}

func (s *Scheduler) runCompaction() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.compactionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.compact(); err != nil {
				metrics.CompactionCyclesTotal.WithLabelValues("error").Inc()
				s.logger.Error().Err(err).Msg("compaction cycle failed")
				s.publish(err)
			} else {
				metrics.CompactionCyclesTotal.WithLabelValues("success").Inc()
			}
		case <-s.stopCh:
			return
		}
	}
}

// compact runs one compaction cycle: the graph store's (currently a
// no-op hook, see pkg/storage.GraphStore.Compact) plus one
// hnsw.Index.Compact per registered vector label, all under a single
// write transaction so a mid-cycle failure leaves the prior state
// intact rather than half-compacted.
func (s *Scheduler) compact() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.CompactionDuration)

	txn, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	defer txn.Abort()

	if err := s.store.Compact(txn); err != nil {
		return err
	}
	for _, label := range s.reg.VectorLabels() {
		if err := s.index(label).Compact(txn); err != nil {
			return err
		}
	}
	return txn.Commit()
}

func (s *Scheduler) runReconciliation() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.reconcile(); err != nil {
				s.logger.Error().Err(err).Msg("schema reconciliation cycle failed")
				s.publish(err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// reconcile brings the on-disk schema version up to date by running
// every migration in the chain whose FromVersion matches where the
// in-memory registry currently stands, mirroring the teacher's
// reconciler bringing actual cluster state toward desired state one
// step at a time under a single write transaction per cycle.
func (s *Scheduler) reconcile() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

	txn, err := s.env.BeginWrite()
	if err != nil {
		return err
	}
	defer txn.Abort()

	if err := s.migrator.Run(txn, s.reg); err != nil {
		return err
	}
	return txn.Commit()
}
