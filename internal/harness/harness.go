package harness

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/logging"
	"github.com/roach88/widgetd/internal/repository"
	"github.com/roach88/widgetd/internal/testutil"
	"github.com/roach88/widgetd/internal/widget"
)

// Harness executes scenario steps against one repository.
type Harness struct {
	repo   repository.Repository
	refs   map[string]widget.ID
	logger *slog.Logger
}

// New creates a harness over repo. A nil logger discards output.
func New(repo repository.Repository, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Harness{
		repo:   repo,
		refs:   make(map[string]widget.ID),
		logger: logger,
	}
}

// NewInMemoryRepository builds the repository RunInMemory uses: a guarded
// in-memory repository with ids from 1 and a deterministic clock.
func NewInMemoryRepository(logger *slog.Logger) repository.Repository {
	if logger == nil {
		logger = logging.Discard()
	}
	factory := widget.NewFactory(idgen.NewCounter(), testutil.NewDeterministicClock(), widget.WithLogger(logger))
	return repository.NewGuard(repository.NewInMemory(factory, repository.WithInMemoryLogger(logger)))
}

// RunInMemory executes scenario against a fresh in-memory repository.
func RunInMemory(ctx context.Context, scenario *Scenario) (*Result, error) {
	return New(NewInMemoryRepository(nil), nil).Run(ctx, scenario)
}

// Run executes every step of scenario and returns the result.
//
// Expectation failures are recorded in the result; execution continues with
// the next step. The returned error is reserved for infrastructure failures
// that make the rest of the scenario meaningless.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult()

	for i, step := range scenario.Steps {
		h.logger.Debug("running step", "scenario", scenario.Name, "step", i, "op", step.Op, "ref", step.Ref)
		if err := h.runStep(ctx, i, &step, result); err != nil {
			return nil, fmt.Errorf("step[%d] %s: %w", i, step.Op, err)
		}
	}

	final, err := h.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("final listing: %w", err)
	}
	result.Final = slices.Clone(final)
	return result, nil
}

func (h *Harness) runStep(ctx context.Context, i int, step *Step, result *Result) error {
	expect := step.Expect
	if expect == nil {
		expect = &Expect{}
	}

	var (
		got     widget.Widget
		listing []widget.Widget
		err     error
	)

	switch step.Op {
	case OpCreate:
		got, err = h.repo.Create(ctx, step.Request)
		if err == nil && step.Ref != "" {
			h.refs[step.Ref] = got.ID
			result.Refs[got.ID] = step.Ref
		}
	case OpUpdate, OpGet, OpDelete:
		id, ok := h.resolve(step)
		if !ok {
			result.AddError(i, step.Op, "unknown ref %q", step.Ref)
			return nil
		}
		switch step.Op {
		case OpUpdate:
			got, err = h.repo.Update(ctx, id, step.Request)
		case OpGet:
			got, err = h.repo.Get(ctx, id)
		case OpDelete:
			err = h.repo.Delete(ctx, id)
		}
	case OpList:
		listing, err = h.repo.List(ctx)
	case OpPage:
		listing, err = h.repo.ListPage(ctx, step.Page, step.Size)
	}

	if err != nil {
		code := widget.CodeOf(err)
		if code == "" {
			return err
		}
		if expect.Error == "" {
			result.AddError(i, step.Op, "unexpected error: %v", err)
		} else if string(code) != expect.Error {
			result.AddError(i, step.Op, "expected error %s, got %v", expect.Error, err)
		}
		return nil
	}

	if expect.Error != "" {
		result.AddError(i, step.Op, "expected error %s, got success", expect.Error)
		return nil
	}

	if expect.Z != nil && got.Z != *expect.Z {
		result.AddError(i, step.Op, "expected z=%d, got z=%d", *expect.Z, got.Z)
	}
	if expect.Widget != nil {
		if diff := mismatch(*expect.Widget, got); diff != "" {
			result.AddError(i, step.Op, "widget mismatch: %s", diff)
		}
	}
	if expect.Count != nil && len(listing) != *expect.Count {
		result.AddError(i, step.Op, "expected %d widgets, got %d", *expect.Count, len(listing))
	}
	if expect.Order != nil {
		order := make([]string, len(listing))
		for j, w := range listing {
			order[j] = result.RefOf(w.ID)
		}
		if !slices.Equal(order, expect.Order) {
			result.AddError(i, step.Op, "expected order %v, got %v", expect.Order, order)
		}
	}
	return nil
}

// resolve maps a step's ref or literal id to a widget id.
func (h *Harness) resolve(step *Step) (widget.ID, bool) {
	if step.Ref == "" {
		return step.ID, true
	}
	id, ok := h.refs[step.Ref]
	return id, ok
}

// mismatch lists the fields of want that differ from got.
func mismatch(want widget.Request, got widget.Widget) string {
	var diffs []string
	check := func(name string, want *int, got int) {
		if want != nil && *want != got {
			diffs = append(diffs, fmt.Sprintf("%s: want %d, got %d", name, *want, got))
		}
	}
	check("x", want.X, got.X)
	check("y", want.Y, got.Y)
	check("z", want.Z, got.Z)
	check("width", want.Width, got.Width)
	check("height", want.Height, got.Height)
	if len(diffs) == 0 {
		return ""
	}
	return fmt.Sprint(diffs)
}
