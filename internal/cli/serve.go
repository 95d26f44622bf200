package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/widgetd/internal/config"
	"github.com/roach88/widgetd/internal/idgen"
	"github.com/roach88/widgetd/internal/logging"
	"github.com/roach88/widgetd/internal/repository"
	"github.com/roach88/widgetd/internal/server"
	"github.com/roach88/widgetd/internal/store"
	"github.com/roach88/widgetd/internal/widget"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	ConfigPath string

	// Listener overrides http.addr (for testing).
	// If nil, the server listens on the configured address.
	Listener net.Listener
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the widget HTTP server",
		Long: `Run the widget repository behind its HTTP API.

Configuration comes from defaults, the optional --config file (.yaml, .yml
or .toml) and WIDGETD_* environment variables, in that order. The server
shuts down gracefully on SIGINT or SIGTERM.

Examples:
  widgetd serve
  widgetd serve --config widgetd.yaml
  WIDGETD_PROFILE=db WIDGETD_DATABASE_DSN=/var/lib/widgetd.db widgetd serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid log level", err)
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(cmd.ErrOrStderr(), level, cfg.Log.Format)
	slog.SetDefault(logger)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open repository", err)
	}
	defer func() {
		if closeErr := closeRepo(); closeErr != nil {
			logger.Error("error closing repository", "error", closeErr)
		}
	}()

	srv := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: server.New(repo,
			server.WithDefaultPageSize(cfg.Pagination.DefaultSize),
			server.WithLogger(logger),
		).Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if opts.Listener != nil {
			logger.Info("server listening", "addr", opts.Listener.Addr().String(), "profile", cfg.Profile)
			err = srv.Serve(opts.Listener)
		} else {
			logger.Info("server listening", "addr", cfg.HTTP.Addr, "profile", cfg.Profile)
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

// buildRepository assembles the repository stack for cfg.Profile:
// Measured(Guard(InMemory)) or Measured(Guard(store.Repository)).
// The returned func releases the database and id generator connections.
func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (repository.Repository, func() error, error) {
	var (
		inner   repository.Repository
		closers []func() error
	)
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	switch cfg.Profile {
	case config.ProfileMemory:
		ids, closeIDs, err := newIDGenerator(ctx, cfg.IDs, 0)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closeIDs)

		factory := widget.NewFactory(ids, widget.SystemClock{}, widget.WithLogger(logger))
		inner = repository.NewInMemory(factory, repository.WithInMemoryLogger(logger))

	case config.ProfileDB:
		st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, st.Close)

		floor, err := st.MaxID(ctx)
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		ids, closeIDs, err := newIDGenerator(ctx, cfg.IDs, widget.ID(floor))
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, closeIDs)

		factory := widget.NewFactory(ids, widget.SystemClock{}, widget.WithLogger(logger))
		inner = store.NewRepository(st, factory, store.WithLogger(logger))
		logger.Info("database ready", "driver", st.Driver(), "max_id", floor)

	default:
		return nil, nil, fmt.Errorf("unknown profile %q", cfg.Profile)
	}

	guarded := repository.NewGuard(inner, repository.WithLockTimeout(cfg.Lock.Timeout))
	return repository.NewMeasured(guarded, logger), closeAll, nil
}

// newIDGenerator returns the configured id generator. Ids start after floor.
func newIDGenerator(ctx context.Context, cfg config.IDs, floor widget.ID) (widget.IDGenerator, func() error, error) {
	switch cfg.Kind {
	case config.IDsCounter:
		return idgen.NewCounterAt(floor), func() error { return nil }, nil

	case config.IDsRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
		}
		gen := idgen.NewRedis(client, cfg.RedisKey)
		if err := gen.Seed(ctx, floor); err != nil {
			client.Close()
			return nil, nil, err
		}
		return gen, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown id generator %q", cfg.Kind)
	}
}
