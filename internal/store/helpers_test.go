package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/testutil"
	"github.com/roach88/widgetd/internal/widget"
)

// createTestStore opens a fresh SQLite database in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), DriverSQLite, path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestRepository builds a repository over s with ids resumed from the
// table and a deterministic clock.
func newTestRepository(t *testing.T, s *Store) *Repository {
	t.Helper()
	maxID, err := s.MaxID(context.Background())
	if err != nil {
		t.Fatalf("MaxID() failed: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factory := widget.NewFactory(
		idgen.NewCounterAt(widget.ID(maxID)),
		testutil.NewDeterministicClock(),
		widget.WithLogger(logger),
	)
	return NewRepository(s, factory, WithLogger(logger))
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
