// Package embed defines the embedding-provider capability spec.md §6
// consumes: "embed(text: string) -> fixed-length f-array or
// EmbeddingFailed". The provider is externally owned (spec.md §4.9's
// fault-tolerance note — the executor must tolerate its failure without
// corrupting storage), so it is injected into the executor as an
// interface rather than imported concretely, the way the teacher injects
// *manager.Manager into pkg/scheduler.NewScheduler.
package embed

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/helixdb/helix-core/pkg/herr"
)

// Provider embeds text into a fixed-length float vector. Implementations
// own their own failure modes (network errors, rate limits, model
// errors); callers must wrap every non-nil error as herr.EmbeddingFailed
// before it crosses the executor boundary.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// LocalStub is a deterministic, dependency-free Provider for tests and
// local development: it derives a unit-ish vector from the FNV-1a hash of
// the input text, seeded per output dimension. Same text always produces
// the same vector, and distinct texts produce distinct vectors, which is
// all the test suite needs from an embedding provider — it is not a
// semantically meaningful embedding.
type LocalStub struct {
	Dimension int
}

// NewLocalStub returns a LocalStub producing vectors of the given
// dimension.
func NewLocalStub(dimension int) *LocalStub {
	return &LocalStub{Dimension: dimension}
}

// Embed implements Provider.
func (s *LocalStub) Embed(_ context.Context, text string) ([]float64, error) {
	if s.Dimension <= 0 {
		return nil, herr.EmbeddingFailedf(nil, "embed: stub dimension must be positive, got %d", s.Dimension)
	}
	out := make([]float64, s.Dimension)
	for i := range out {
		h := fnv.New64a()
		h.Write([]byte{byte(i), byte(i >> 8)})
		h.Write([]byte(text))
		v := h.Sum64()
		// Map the hash into [-1, 1] so outputs behave like a normalized
		// embedding for distance-based tests.
		out[i] = (float64(v%2000001) / 1000000.0) - 1.0
	}
	return out, nil
}

// Normalize L2-normalizes vec in place, returning it for chaining. Real
// embedding providers commonly emit pre-normalized vectors; callers that
// can't assume that (e.g. the stub) call this before cosine-distance use.
func Normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// Wrap adapts any error returned by a Provider into herr's EmbeddingFailed
// kind, the contract spec.md §6 requires at the executor boundary.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return herr.EmbeddingFailedf(err, "embedding provider failed")
}
