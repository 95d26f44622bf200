package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/widgetd/internal/widget"
)

// Measured logs the duration of every call on the wrapped repository at
// debug level. When debug logging is disabled it only forwards calls.
type Measured struct {
	repo   Repository
	logger *slog.Logger
}

// NewMeasured wraps repo. A nil logger uses slog.Default().
func NewMeasured(repo Repository, logger *slog.Logger) *Measured {
	if logger == nil {
		logger = slog.Default()
	}
	return &Measured{repo: repo, logger: logger}
}

// Create implements Repository.
func (m *Measured) Create(ctx context.Context, req widget.Request) (w widget.Widget, err error) {
	defer m.observe(ctx, "create", time.Now(), &err)
	return m.repo.Create(ctx, req)
}

// Update implements Repository.
func (m *Measured) Update(ctx context.Context, id widget.ID, req widget.Request) (w widget.Widget, err error) {
	defer m.observe(ctx, "update", time.Now(), &err)
	return m.repo.Update(ctx, id, req)
}

// Get implements Repository.
func (m *Measured) Get(ctx context.Context, id widget.ID) (w widget.Widget, err error) {
	defer m.observe(ctx, "get", time.Now(), &err)
	return m.repo.Get(ctx, id)
}

// List implements Repository.
func (m *Measured) List(ctx context.Context) (ws []widget.Widget, err error) {
	defer m.observe(ctx, "list", time.Now(), &err)
	return m.repo.List(ctx)
}

// ListPage implements Repository.
func (m *Measured) ListPage(ctx context.Context, page, size int) (ws []widget.Widget, err error) {
	defer m.observe(ctx, "list_page", time.Now(), &err)
	return m.repo.ListPage(ctx, page, size)
}

// Delete implements Repository.
func (m *Measured) Delete(ctx context.Context, id widget.ID) (err error) {
	defer m.observe(ctx, "delete", time.Now(), &err)
	return m.repo.Delete(ctx, id)
}

func (m *Measured) observe(ctx context.Context, op string, start time.Time, err *error) {
	if !m.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	attrs := []any{"op", op, "elapsed", time.Since(start)}
	if *err != nil {
		attrs = append(attrs, "error", *err)
	}
	m.logger.DebugContext(ctx, "repository call", attrs...)
}
