package widget

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// IDGenerator allocates widget ids. Implementations must return strictly
// increasing ids and never hand out the same id twice.
type IDGenerator interface {
	Next(ctx context.Context) (ID, error)
}

// Factory builds widgets from requests.
//
// Create and Update return new immutable values; ApplyInPlace mutates a
// persistence-backed widget. All three validate first, so a rejected request
// never consumes an id or changes a widget.
//
// Thread-safety: Factory holds no mutable state of its own and is safe for
// concurrent use if its IDGenerator and Clock are.
type Factory struct {
	ids      IDGenerator
	clock    Clock
	creation Validator
	update   Validator
	logger   *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithValidators replaces the creation and update validators.
func WithValidators(creation, update Validator) FactoryOption {
	return func(f *Factory) {
		f.creation = creation
		f.update = update
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = l
	}
}

// NewFactory creates a Factory using CreateValidator and UpdateValidator.
func NewFactory(ids IDGenerator, clock Clock, opts ...FactoryOption) *Factory {
	f := &Factory{
		ids:      ids,
		clock:    clock,
		creation: CreateValidator{},
		update:   UpdateValidator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create validates req with the creation validator, allocates an id and
// builds a new widget. Z defaults to defaultZ when the request omits it.
func (f *Factory) Create(ctx context.Context, req Request, defaultZ int) (Widget, error) {
	if err := f.creation.Validate(req); err != nil {
		return Widget{}, err
	}

	id, err := f.ids.Next(ctx)
	if err != nil {
		return Widget{}, fmt.Errorf("allocate widget id: %w", err)
	}

	f.logger.Debug("creating widget", "id", id, "request", req.String())
	return Widget{
		ID:            id,
		X:             *req.X,
		Y:             *req.Y,
		Z:             valueOr(req.Z, defaultZ),
		Width:         *req.Width,
		Height:        *req.Height,
		LastUpdatedAt: f.stamp(time.Time{}),
	}, nil
}

// Update validates req with the update validator and returns a new widget
// where every present field overrides the existing one. The timestamp is
// always refreshed, even if no field changed.
func (f *Factory) Update(existing Widget, req Request) (Widget, error) {
	if err := f.update.Validate(req); err != nil {
		return Widget{}, err
	}

	f.logger.Debug("updating widget", "id", existing.ID, "request", req.String())
	return Widget{
		ID:            existing.ID,
		X:             valueOr(req.X, existing.X),
		Y:             valueOr(req.Y, existing.Y),
		Z:             valueOr(req.Z, existing.Z),
		Width:         valueOr(req.Width, existing.Width),
		Height:        valueOr(req.Height, existing.Height),
		LastUpdatedAt: f.stamp(existing.LastUpdatedAt),
	}, nil
}

// Move returns a copy of w placed at z. Used by the shift cascade, which
// counts as a mutation of the displaced widget.
func (f *Factory) Move(w Widget, z int) Widget {
	w.Z = z
	w.LastUpdatedAt = f.stamp(w.LastUpdatedAt)
	return w
}

// ApplyInPlace validates req with the update validator and writes every
// present field into m.
func (f *Factory) ApplyInPlace(m Mutable, req Request) error {
	if err := f.update.Validate(req); err != nil {
		return err
	}

	current := m.Widget()
	f.logger.Debug("updating mutable widget", "id", current.ID, "request", req.String())
	if req.X != nil {
		m.SetX(*req.X)
	}
	if req.Y != nil {
		m.SetY(*req.Y)
	}
	if req.Z != nil {
		m.SetZ(*req.Z)
	}
	if req.Width != nil {
		m.SetWidth(*req.Width)
	}
	if req.Height != nil {
		m.SetHeight(*req.Height)
	}
	m.SetLastUpdatedAt(f.stamp(current.LastUpdatedAt))
	return nil
}

// stamp returns the clock's current time, nudged past prev if the clock has
// not advanced, so LastUpdatedAt strictly increases on every mutation.
func (f *Factory) stamp(prev time.Time) time.Time {
	now := f.clock.Now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	return now
}
