package repository

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/roach88/widgetd/internal/widget"
)

// maxReaders bounds concurrent shared holders; a writer takes all of them.
const maxReaders = 1 << 30

// Guard serializes access to a Repository: a single writer or many readers.
//
// Create, Update and Delete run under the exclusive lock; Get runs under the
// shared lock. List and ListPage pass straight through, relying on the
// wrapped repository to publish consistent snapshots.
//
// The lock is a weighted semaphore, so waiters are served in FIFO order (a
// queued writer is not starved by a stream of readers) and a wait can be
// abandoned through the context or the configured timeout. An abandoned
// acquisition never runs any part of the operation.
type Guard struct {
	repo    Repository
	sem     *semaphore.Weighted
	timeout time.Duration
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLockTimeout bounds how long an operation waits for the lock.
// Zero (the default) waits until the context is done.
func WithLockTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		g.timeout = d
	}
}

// NewGuard wraps repo.
func NewGuard(repo Repository, opts ...GuardOption) *Guard {
	g := &Guard{
		repo: repo,
		sem:  semaphore.NewWeighted(maxReaders),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Create implements Repository under the exclusive lock.
func (g *Guard) Create(ctx context.Context, req widget.Request) (widget.Widget, error) {
	return locked(ctx, g, maxReaders, func() (widget.Widget, error) {
		return g.repo.Create(ctx, req)
	})
}

// Update implements Repository under the exclusive lock.
func (g *Guard) Update(ctx context.Context, id widget.ID, req widget.Request) (widget.Widget, error) {
	return locked(ctx, g, maxReaders, func() (widget.Widget, error) {
		return g.repo.Update(ctx, id, req)
	})
}

// Delete implements Repository under the exclusive lock.
func (g *Guard) Delete(ctx context.Context, id widget.ID) error {
	_, err := locked(ctx, g, maxReaders, func() (struct{}, error) {
		return struct{}{}, g.repo.Delete(ctx, id)
	})
	return err
}

// Get implements Repository under the shared lock.
func (g *Guard) Get(ctx context.Context, id widget.ID) (widget.Widget, error) {
	return locked(ctx, g, 1, func() (widget.Widget, error) {
		return g.repo.Get(ctx, id)
	})
}

// List implements Repository without locking.
func (g *Guard) List(ctx context.Context) ([]widget.Widget, error) {
	return g.repo.List(ctx)
}

// ListPage implements Repository without locking.
func (g *Guard) ListPage(ctx context.Context, page, size int) ([]widget.Widget, error) {
	return g.repo.ListPage(ctx, page, size)
}

// locked runs fn while holding weight units of g's semaphore.
func locked[T any](ctx context.Context, g *Guard, weight int64, fn func() (T, error)) (T, error) {
	if err := g.acquire(ctx, weight); err != nil {
		var zero T
		return zero, err
	}
	defer g.sem.Release(weight)
	return fn()
}

func (g *Guard) acquire(ctx context.Context, weight int64) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	if err := g.sem.Acquire(ctx, weight); err != nil {
		mode := "read"
		if weight == maxReaders {
			mode = "write"
		}
		return fmt.Errorf("lock: acquire %s: %w", mode, err)
	}
	return nil
}
