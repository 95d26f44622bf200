package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/logging"
	"github.com/roach88/widgetd/internal/repository"
	"github.com/roach88/widgetd/internal/store"
	"github.com/roach88/widgetd/internal/testutil"
	"github.com/roach88/widgetd/internal/widget"
)

func loadAll(t *testing.T) []*Scenario {
	t.Helper()
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	out := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)
		out = append(out, s)
	}
	return out
}

func TestScenarios_InMemory(t *testing.T) {
	for _, s := range loadAll(t) {
		t.Run(s.Name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

// The SQL store must produce the same listings as the in-memory repository.
func TestScenarios_SQLite(t *testing.T) {
	for _, s := range loadAll(t) {
		t.Run(s.Name, func(t *testing.T) {
			ctx := context.Background()
			st, err := store.Open(ctx, store.DriverSQLite, filepath.Join(t.TempDir(), "widgets.db"))
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })

			logger := logging.Discard()
			factory := widget.NewFactory(idgen.NewCounter(), testutil.NewDeterministicClock(), widget.WithLogger(logger))
			repo := repository.NewGuard(store.NewRepository(st, factory, store.WithLogger(logger)))

			result, err := New(repo, logger).Run(ctx, s)
			require.NoError(t, err)
			assert.Empty(t, result.Errors)
			AssertGolden(t, s.Name, result)
		})
	}
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: failing
description: every expectation here is wrong
steps:
  - op: create
    ref: a
    request: { x: 0, y: 0, z: 4, width: 1, height: 1 }
    expect: { z: 5 }
  - op: create
    request: { x: 0, y: 0, width: 1, height: 1 }
    expect: { error: VALIDATION }
  - op: update
    ref: a
    request: { width: 0 }
  - op: get
    ref: a
    expect:
      widget: { x: 3, width: 1 }
  - op: get
    ref: nobody
  - op: list
    expect: { order: [b, a], count: 1 }
  - op: page
    page: 0
    size: 5
    expect: { error: NOT_FOUND }
`))
	require.NoError(t, err)

	result, err := RunInMemory(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)

	want := []string{
		"step[0] create: expected z=5, got z=4",
		"step[1] create: expected error VALIDATION, got success",
		"step[2] update: unexpected error: VALIDATION",
		"step[3] get: widget mismatch: [x: want 3, got 0]",
		`step[4] get: unknown ref "nobody"`,
		"step[5] list: expected 1 widgets, got 2",
		"step[5] list: expected order [b a], got [a #2]",
		"step[6] page: expected error NOT_FOUND, got success",
	}
	require.Len(t, result.Errors, len(want), strings.Join(result.Errors, "\n"))
	for i, prefix := range want {
		assert.True(t, strings.HasPrefix(result.Errors[i], prefix), "error %d: got %q, want prefix %q", i, result.Errors[i], prefix)
	}
}

func TestRun_WrongErrorCode(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong_code
description: not found is not a validation error
steps:
  - op: get
    id: 7
    expect: { error: VALIDATION }
`))
	require.NoError(t, err)

	result, err := RunInMemory(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error VALIDATION, got NOT_FOUND")
}

func TestFormatListing(t *testing.T) {
	result := NewResult()
	result.Refs[1] = "top"
	result.Final = []widget.Widget{
		{ID: 2, X: -1, Y: 2, Z: -3, Width: 4, Height: 5},
		{ID: 1, X: 0, Y: 0, Z: 9, Width: 1, Height: 1},
	}

	got := string(FormatListing("demo", result))
	assert.Equal(t, "# demo\nref z x y width height\n#2 -3 -1 2 4 5\ntop 9 0 0 1 1\n", got)
}
