package harness

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// FormatListing renders the final listing of a result, one widget per line
// in ascending z order:
//
//	# scenario_name
//	ref z x y width height
//	a 1 10 20 100 100
//
// Timestamps are omitted so the output does not depend on the clock.
func FormatListing(name string, result *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", name)
	buf.WriteString("ref z x y width height\n")
	for _, w := range result.Final {
		fmt.Fprintf(&buf, "%s %d %d %d %d %d\n", result.RefOf(w.ID), w.Z, w.X, w.Y, w.Width, w.Height)
	}
	return buf.Bytes()
}

// RunWithGolden executes a scenario in memory, fails the test on any step
// error, and compares the final listing against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := RunInMemory(context.Background(), scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}

	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares the final listing of result against a golden file.
// This is useful when a scenario ran against a repository other than the
// default in-memory one.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, FormatListing(name, result))
}
