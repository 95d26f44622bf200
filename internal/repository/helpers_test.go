package repository

import (
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/testutil"
	"github.com/roach88/widgetd/internal/widget"
)

// newTestMemory creates an in-memory repository with deterministic ids and
// timestamps and logging discarded.
func newTestMemory(t *testing.T) *InMemory {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := widget.NewFactory(idgen.NewCounter(), testutil.NewDeterministicClock(), widget.WithLogger(logger))
	return NewInMemory(factory, WithInMemoryLogger(logger))
}

func zsOf(ws []widget.Widget) []int {
	out := make([]int, len(ws))
	for i, w := range ws {
		out[i] = w.Z
	}
	return out
}

func idsOf(ws []widget.Widget) []widget.ID {
	out := make([]widget.ID, len(ws))
	for i, w := range ws {
		out[i] = w.ID
	}
	return out
}
