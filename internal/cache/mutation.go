package cache

import (
	"context"
	"fmt"
)

// Reconcile replaces optimistic state with the authoritative post-commit
// values. It runs only after a successful commit.
type Reconcile func(s *Store)

// Mutation describes one optimistic write flow. Touches lists every
// partition the Optimistic and Reconcile funcs may modify; the runner
// snapshots exactly those before applying anything.
type Mutation struct {
	// Touches are the partitions snapshotted for rollback
	Touches []Key
	// Optimistic installs the temporary local representation. It must build
	// new values (copy-on-write), never edit cached values in place, and
	// should tag synthesized entries with TempID so the reconcile step can
	// find them.
	Optimistic func(s *Store)
	// Commit performs the real write and returns the reconcile step
	Commit func(ctx context.Context) (Reconcile, error)
	// Invalidates are additional exact partitions marked stale on
	// settlement, beyond the touched ones. Invalidate matches keys exactly,
	// so entries here must carry the full (entity, user, filter) triple.
	Invalidates []Key
	// InvalidateScopes marks whole entity or per-user scopes stale on
	// settlement, covering partitions whose filter hash the mutation cannot
	// know (other pages, other users' views of the same rows).
	InvalidateScopes []Scope
}

// Runner executes optimistic mutations against one store
type Runner struct {
	store *Store
}

// NewRunner creates a mutation runner over the store
func NewRunner(store *Store) *Runner {
	return &Runner{store: store}
}

// Store returns the underlying cache store
func (r *Runner) Store() *Store { return r.store }

// Run executes the mutation lifecycle: snapshot, optimistic apply, commit,
// then reconcile on success or exact restore on failure. Affected
// partitions are marked stale on either outcome so the next read refetches
// server truth.
func (r *Runner) Run(ctx context.Context, m Mutation) error {
	if m.Commit == nil {
		return fmt.Errorf("cache: mutation has no commit step")
	}

	snap := r.store.TakeSnapshot(m.Touches)
	if m.Optimistic != nil {
		m.Optimistic(r.store)
	}

	reconcile, err := m.Commit(ctx)
	if err != nil {
		r.store.Restore(snap)
		r.settle(m)
		return err
	}

	if reconcile != nil {
		reconcile(r.store)
	}
	r.settle(m)
	return nil
}

func (r *Runner) settle(m Mutation) {
	r.store.Invalidate(append(m.Touches, m.Invalidates...)...)
	for _, sc := range m.InvalidateScopes {
		r.store.InvalidateScope(sc)
	}
}
