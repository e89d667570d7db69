package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/movies-etl/internal/api"
	"github.com/stacklok/movies-etl/internal/checkpoint"
	"github.com/stacklok/movies-etl/internal/config"
	"github.com/stacklok/movies-etl/internal/db"
	"github.com/stacklok/movies-etl/internal/db/sqlc"
	"github.com/stacklok/movies-etl/internal/index"
	"github.com/stacklok/movies-etl/internal/logging"
	"github.com/stacklok/movies-etl/internal/source"
	etlsync "github.com/stacklok/movies-etl/internal/sync"
	"github.com/stacklok/movies-etl/internal/telemetry"
)

const (
	shutdownTimeout      = 10 * time.Second
	serverRequestTimeout = 5 * time.Second
	serverReadTimeout    = 5 * time.Second
	serverWriteTimeout   = 10 * time.Second
	serverIdleTimeout    = 60 * time.Second
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync loop",
		Long: `Run the sync loop until interrupted. Each cycle extracts the films changed
since the committed watermarks, publishes their documents to Elasticsearch and then
advances the watermarks. With --once a single cycle is run.

Only one process may run the loop against a checkpoint at a time. A second process
logs the conflict and exits without touching the checkpoint.`,
		RunE: runETL,
	}
	cmd.Flags().Bool("once", false, "Run a single cycle and exit")
	return cmd
}

func runETL(cmd *cobra.Command, _ []string) error {
	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return fmt.Errorf("failed to get once flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	closeLogger, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, once)
}

func setupLogging(cfg *config.Config) (func(), error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.WithLevel(level), logging.WithFile(cfg.Log.File))
	if err != nil {
		return nil, err
	}

	previous := slog.Default()
	slog.SetDefault(logger.Logger)
	return func() {
		slog.SetDefault(previous)
		_ = logger.Close()
	}, nil
}

// run wires the components and runs the loop alongside the optional health server
func run(ctx context.Context, cfg *config.Config, once bool) error {
	tel, err := telemetry.New(ctx, telemetry.WithTelemetryConfig(cfg.Telemetry))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shut down telemetry", "error", err)
		}
	}()

	metrics, err := telemetry.NewSyncMetrics(tel.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create sync metrics: %w", err)
	}

	policy, err := cfg.Retry.Policy()
	if err != nil {
		return err
	}
	policy = policy.WithObserver(metrics.RetryObserver())

	store, err := openCheckpoint(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close checkpoint", "error", err)
		}
	}()

	pool, err := db.NewPool(ctx, &cfg.Postgres, policy)
	if err != nil {
		if ctx.Err() != nil {
			slog.Info("ETL process interrupted")
			return nil
		}
		return err
	}
	defer pool.Close()

	reader, err := source.NewReader(sqlc.New(pool),
		source.WithPageSize(cfg.ETL.PageSize),
		source.WithRetryPolicy(policy),
		source.WithTracer(tel.Tracer(source.TracerName)),
	)
	if err != nil {
		return fmt.Errorf("failed to create source reader: %w", err)
	}

	client, err := index.NewElasticsearchClient(index.ClientConfig{
		Address:  cfg.Elasticsearch.GetAddress(),
		Username: cfg.Elasticsearch.Username,
		Password: cfg.Elasticsearch.Password,
	})
	if err != nil {
		return err
	}
	loader, err := index.NewWriter(client, cfg.Elasticsearch.Index,
		index.WithBatchSize(cfg.GetBatchSize()),
		index.WithSchemaFile(cfg.Elasticsearch.SchemaFile),
		index.WithRetryPolicy(policy),
		index.WithTracer(tel.Tracer(index.TracerName)),
	)
	if err != nil {
		return fmt.Errorf("failed to create index writer: %w", err)
	}

	interval, err := cfg.ETL.GetInterval()
	if err != nil {
		return err
	}
	loop, err := etlsync.NewLoop(store, reader, loader,
		etlsync.WithInterval(interval),
		etlsync.WithOwner(owner()),
		etlsync.WithSyncMetrics(metrics),
		etlsync.WithTracer(tel.Tracer(etlsync.TracerName)),
	)
	if err != nil {
		return fmt.Errorf("failed to create sync loop: %w", err)
	}

	server, err := healthServer(cfg, loop, tel)
	if err != nil {
		return err
	}

	err = supervise(ctx, loop, once, server)
	if errors.Is(err, checkpoint.ErrAlreadyRunning) {
		return nil
	}
	return err
}

// supervise runs the loop and, when set, the health server until the loop returns
func supervise(ctx context.Context, loop *etlsync.Loop, once bool, server *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})

	g.Go(func() error {
		defer close(loopDone)
		if once {
			return loop.RunOnce(gctx)
		}
		return loop.Run(gctx)
	})

	if server != nil {
		g.Go(func() error {
			slog.Info("Health server listening", "address", server.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-loopDone:
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func healthServer(cfg *config.Config, loop *etlsync.Loop, tel *telemetry.Telemetry) (*http.Server, error) {
	if !cfg.Health.Enabled {
		return nil, nil
	}

	httpMetrics, err := telemetry.MetricsMiddleware(tel.MeterProvider())
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	opts := []api.ServerOption{
		api.WithMiddlewares(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(serverRequestTimeout),
			telemetry.TracingMiddleware(tel.TracerProvider()),
			httpMetrics,
			api.LoggingMiddleware,
		),
	}
	if h := tel.MetricsHandler(); h != nil {
		opts = append(opts, api.WithMetricsHandler(h))
	}

	return &http.Server{
		Addr:         cfg.Health.Address,
		Handler:      api.NewServer(loop, opts...),
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}, nil
}

// owner identifies this process in the checkpoint
func owner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s/%d", host, os.Getpid())
}
