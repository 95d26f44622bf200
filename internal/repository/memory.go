package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/widgetd/internal/widget"
	"github.com/roach88/widgetd/internal/zorder"
)

// InMemory keeps widgets in a zorder.Store and publishes a Snapshot after
// every mutation.
//
// Thread-safety: InMemory is NOT safe for concurrent mutation. List, ListPage
// and Snapshot may run concurrently with a single writer; everything else
// must be serialized by the caller. Wrap it in a Guard.
type InMemory struct {
	factory   *widget.Factory
	store     *zorder.Store
	published *Publisher
	logger    *slog.Logger
}

// InMemoryOption configures an InMemory repository.
type InMemoryOption func(*InMemory)

// WithInMemoryLogger sets the logger for mutation and commit records.
func WithInMemoryLogger(l *slog.Logger) InMemoryOption {
	return func(r *InMemory) {
		r.logger = l
	}
}

// NewInMemory creates an empty repository that builds widgets with factory.
func NewInMemory(factory *widget.Factory, opts ...InMemoryOption) *InMemory {
	r := &InMemory{
		factory:   factory,
		published: NewPublisher(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.store = zorder.New(factory.Move, zorder.WithLogger(r.logger))
	return r
}

// Create implements Repository.
func (r *InMemory) Create(ctx context.Context, req widget.Request) (widget.Widget, error) {
	// Placement is checked before the factory allocates an id.
	defaultZ, err := r.store.DefaultZ()
	if req.Z != nil {
		err = r.store.CheckRoom(*req.Z, 0)
	}
	if err != nil {
		return widget.Widget{}, err
	}

	w, err := r.factory.Create(ctx, req, defaultZ)
	if err != nil {
		return widget.Widget{}, err
	}
	if err := r.store.Insert(w); err != nil {
		return widget.Widget{}, err
	}
	r.logger.Info("widget created", "id", w.ID, "z", w.Z)
	r.commit()
	return w, nil
}

// Update implements Repository.
func (r *InMemory) Update(ctx context.Context, id widget.ID, req widget.Request) (widget.Widget, error) {
	old, ok := r.store.Find(id)
	if !ok {
		return widget.Widget{}, widget.NewNotFoundError(id)
	}

	next, err := r.factory.Update(old, req)
	if err != nil {
		return widget.Widget{}, err
	}
	if err := r.store.Update(old, next); err != nil {
		if widget.IsValidation(err) {
			return widget.Widget{}, err
		}
		return widget.Widget{}, fmt.Errorf("update widget %d: %w", id, err)
	}

	r.logger.Info("widget updated", "id", id, "old_z", old.Z, "z", next.Z)
	r.commit()
	return next, nil
}

// Get implements Repository.
func (r *InMemory) Get(ctx context.Context, id widget.ID) (widget.Widget, error) {
	w, ok := r.store.Find(id)
	if !ok {
		return widget.Widget{}, widget.NewNotFoundError(id)
	}
	return w, nil
}

// List implements Repository. It reads the published snapshot only.
func (r *InMemory) List(ctx context.Context) ([]widget.Widget, error) {
	return r.published.Load().Widgets, nil
}

// ListPage implements Repository. It reads the published snapshot only.
func (r *InMemory) ListPage(ctx context.Context, page, size int) ([]widget.Widget, error) {
	return Page(r.published.Load().Widgets, page, size)
}

// Delete implements Repository.
func (r *InMemory) Delete(ctx context.Context, id widget.ID) error {
	w, ok := r.store.RemoveByID(id)
	if !ok {
		r.logger.Debug("delete: widget not found", "id", id)
		return nil
	}

	r.logger.Info("widget deleted", "id", id, "z", w.Z)
	r.commit()
	return nil
}

// Snapshot returns the latest committed version.
func (r *InMemory) Snapshot() *Snapshot {
	return r.published.Load()
}

// Verify checks the internal index invariants. Callers must hold off writers.
func (r *InMemory) Verify() error {
	return r.store.Verify()
}

// commit publishes the current sequence as a new version.
func (r *InMemory) commit() {
	s := r.published.Publish(r.store.Widgets())
	r.logger.Debug("version committed", "version", s.Version, "widgets", len(s.Widgets))
}
