package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/widgetd/internal/harness"
	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/repository"
	"github.com/roach88/widgetd/internal/store"
	"github.com/roach88/widgetd/internal/testutil"
	"github.com/roach88/widgetd/internal/widget"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Database string // optional SQLite path; in-memory when empty
}

// ScenarioResult is the JSON payload of the scenario command.
type ScenarioResult struct {
	Name    string          `json:"name"`
	Pass    bool            `json:"pass"`
	Errors  []string        `json:"errors,omitempty"`
	Widgets []ScenarioEntry `json:"widgets"`
}

// ScenarioEntry is one widget of the final listing with its scenario ref.
type ScenarioEntry struct {
	Ref string `json:"ref"`
	widget.Widget
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml>",
		Short: "Run a scenario file against a fresh repository",
		Long: `Run the steps of a YAML scenario and print the final listing.

The scenario runs against a new in-memory repository, or against the SQLite
database given with --db. Each step's expectations are checked as it runs.

Exit codes:
  0 - All expectations met
  1 - One or more expectations failed
  2 - Command error (unreadable scenario, database error, etc.)

Examples:
  widgetd scenario ./scenarios/shift.yaml
  widgetd scenario ./scenarios/shift.yaml --db /tmp/widgets.db
  widgetd scenario ./scenarios/shift.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (in-memory when empty)")

	return cmd
}

func runScenario(opts *ScenarioOptions, path string, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)
	logger := commandLogger(opts.RootOptions, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = out.Error(CodeLoad, "failed to load scenario", err.Error())
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	out.VerboseLog("loaded scenario %q (%d steps)", scenario.Name, len(scenario.Steps))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	repo, closeRepo, err := scenarioRepository(ctx, opts.Database, logger)
	if err != nil {
		_ = out.Error(CodeDatabase, "failed to open database", err.Error())
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeRepo()

	result, err := harness.New(repo, logger).Run(ctx, scenario)
	if err != nil {
		_ = out.Error(CodeScenario, "scenario aborted", err.Error())
		return WrapExitError(ExitFailure, "scenario aborted", err)
	}

	if opts.Format == "json" {
		if err := out.Success(scenarioResult(scenario.Name, result)); err != nil {
			return err
		}
	} else {
		printScenarioText(cmd, scenario.Name, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s: %d failed step(s)", scenario.Name, len(result.Errors)))
	}
	return nil
}

// scenarioRepository returns a fresh guarded repository: in memory when
// dbPath is empty, otherwise over the SQLite file at dbPath.
func scenarioRepository(ctx context.Context, dbPath string, logger *slog.Logger) (repository.Repository, func() error, error) {
	if dbPath == "" {
		return harness.NewInMemoryRepository(logger), func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}
	st, err := store.Open(ctx, store.DriverSQLite, dbPath)
	if err != nil {
		return nil, nil, err
	}
	floor, err := st.MaxID(ctx)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	factory := widget.NewFactory(idgen.NewCounterAt(widget.ID(floor)), testutil.NewDeterministicClock(), widget.WithLogger(logger))
	repo := store.NewRepository(st, factory, store.WithLogger(logger))
	return repository.NewGuard(repo), st.Close, nil
}

func scenarioResult(name string, result *harness.Result) ScenarioResult {
	entries := make([]ScenarioEntry, len(result.Final))
	for i, w := range result.Final {
		entries[i] = ScenarioEntry{Ref: result.RefOf(w.ID), Widget: w}
	}
	return ScenarioResult{
		Name:    name,
		Pass:    result.Pass,
		Errors:  result.Errors,
		Widgets: entries,
	}
}

func printScenarioText(cmd *cobra.Command, name string, result *harness.Result) {
	w := cmd.OutOrStdout()

	if result.Pass {
		fmt.Fprintf(w, "%s %s\n", stylePass.Render(iconPass), name)
	} else {
		fmt.Fprintf(w, "%s %s\n", styleFail.Render(iconFail), name)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	fmt.Fprintln(w, widgetTable(result.Final, result.RefOf))
	fmt.Fprintln(w, widgetSummary(len(result.Final)))
}
