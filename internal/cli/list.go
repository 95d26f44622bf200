package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/store"
	"github.com/roach88/widgetd/internal/widget"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Database string
	Driver   string
	Page     int
	Size     int
}

// ListResult is the JSON payload of the list command.
type ListResult struct {
	Widgets []widget.Widget `json:"widgets"`
	Count   int             `json:"count"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the widgets stored in a database",
		Long: `Print the widgets of a database in ascending z order.

With --size the listing is limited to one page; pages are numbered from 0.

Examples:
  widgetd list --db ./widgets.db
  widgetd list --db ./widgets.db --page 1 --size 20
  widgetd list --driver pgx --db postgres://localhost/widgets --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "database path or DSN (required)")
	cmd.Flags().StringVar(&opts.Driver, "driver", store.DriverSQLite, "database driver (sqlite3|pgx)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number (with --size)")
	cmd.Flags().IntVar(&opts.Size, "size", 0, "page size (0 lists everything)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	// Opening a missing SQLite file would create an empty database.
	if opts.Driver == store.DriverSQLite {
		if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
			msg := fmt.Sprintf("database not found: %s", opts.Database)
			_ = out.Error(CodeDatabase, msg, nil)
			return NewExitError(ExitCommandError, msg)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(ctx, opts.Driver, opts.Database, store.ReadOnly())
	if err != nil {
		_ = out.Error(CodeDatabase, "failed to open database", err.Error())
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	out.VerboseLog("opened %s database %s", st.Driver(), opts.Database)

	// Read-only: the factory never allocates an id here.
	factory := widget.NewFactory(idgen.NewCounter(), widget.SystemClock{})
	repo := store.NewRepository(st, factory, store.WithLogger(commandLogger(opts.RootOptions, cmd)))

	var widgets []widget.Widget
	if opts.Size > 0 {
		widgets, err = repo.ListPage(ctx, opts.Page, opts.Size)
	} else {
		widgets, err = repo.List(ctx)
	}
	if err != nil {
		if widget.IsPageError(err) {
			_ = out.Error(CodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid page", err)
		}
		_ = out.Error(CodeDatabase, "failed to list widgets", err.Error())
		return WrapExitError(ExitCommandError, "failed to list widgets", err)
	}

	if opts.Format == "json" {
		return out.Success(ListResult{Widgets: widgets, Count: len(widgets)})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, widgetTable(widgets, nil))
	fmt.Fprintln(w, widgetSummary(len(widgets)))
	return nil
}
