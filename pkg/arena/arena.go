// Package arena implements the per-query bump allocator spec.md §9 calls
// for: every string, list, and working-set structure an operator
// allocates during a single query lives in one Arena, reset exactly once
// between queries, with a fixed byte budget that fails closed
// (ArenaExhausted) rather than growing unbounded. There is no teacher or
// pack equivalent — the teacher has no per-request scratch allocator — so
// this is built directly from spec.md's stated invariants (bump
// allocator, reset once per query, bounded size).
package arena

import (
	"unsafe"

	"github.com/helixdb/helix-core/pkg/herr"
)

// Arena is a bump allocator bounded by a fixed byte budget. It is not
// safe for concurrent use; spec.md's execution model runs one query (and
// therefore one arena) at a time.
type Arena struct {
	budget int
	used   int
}

// New returns an Arena with the given byte budget.
func New(budget int) *Arena {
	return &Arena{budget: budget}
}

// Used reports bytes allocated since the last Reset.
func (a *Arena) Used() int { return a.used }

// Remaining reports bytes left before the next allocation fails.
func (a *Arena) Remaining() int { return a.budget - a.used }

// Reset reclaims every allocation made since the arena was created or
// last reset. Callers must not retain slices allocated before a Reset —
// they are considered invalidated, per spec.md §3 "Ownership".
func (a *Arena) Reset() { a.used = 0 }

func (a *Arena) reserve(n int) error {
	if a.used+n > a.budget {
		return herr.ArenaExhaustedf("arena: budget %d exceeded by allocation of %d bytes (used %d)", a.budget, n, a.used)
	}
	a.used += n
	return nil
}

// AllocBytes returns a zeroed n-byte slice charged against the arena's
// budget.
func (a *Arena) AllocBytes(n int) ([]byte, error) {
	if err := a.reserve(n); err != nil {
		return nil, err
	}
	return make([]byte, n), nil
}

// AllocString copies s into arena-owned storage and returns the copy.
func (a *Arena) AllocString(s string) (string, error) {
	b, err := a.AllocBytes(len(s))
	if err != nil {
		return "", err
	}
	copy(b, s)
	return string(b), nil
}

// AllocSlice returns a zeroed slice of n Ts, charged against the arena's
// budget at sizeof(T) per element.
func AllocSlice[T any](a *Arena, n int) ([]T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero)) * n
	if err := a.reserve(size); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

// Charge reserves n bytes against the budget without returning a backing
// slice — used by working sets (e.g. a visited-set map) whose size is
// known but whose storage isn't itself arena-allocated Go memory.
func (a *Arena) Charge(n int) error { return a.reserve(n) }
