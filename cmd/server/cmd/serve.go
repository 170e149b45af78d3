package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/altamira-asset/indexes-server/internal/api"
	"github.com/altamira-asset/indexes-server/internal/collector"
	"github.com/altamira-asset/indexes-server/internal/config"
	"github.com/altamira-asset/indexes-server/internal/jobs"
	"github.com/altamira-asset/indexes-server/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/altamira-asset/indexes-server/internal/storage/postgres"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and job workers",
	Long: `Start the HTTP server and, unless disabled, the background job workers.

The server exposes the collection API under /api/v1, Prometheus metrics on
/metrics, and liveness/readiness probes on /healthz and /readyz. The job
workers run the scheduled daily collection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Msg("starting indexes server")

	metrics.Init(Version, GitCommit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCtx, poolCancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdle)
	poolCancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	indexRepo, err := postgres.NewIndexRepository(pool)
	if err != nil {
		return err
	}
	quoteRepo, err := postgres.NewQuotationRepository(pool)
	if err != nil {
		return err
	}

	connectors := collector.NewConnectors(cfg.Provider, quoteRepo, logger)
	service := collector.New(indexRepo, quoteRepo, connectors, logger)

	router := api.NewRouter(api.Deps{
		Pool:        pool,
		Collections: service,
		Quotations:  quoteRepo,
		Environment: cfg.Environment,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second, // collection runs are synchronous
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if cfg.Jobs.Enabled {
		workers, err := jobs.NewWorkers(service, indexRepo, logger)
		if err != nil {
			return err
		}
		periodic, err := jobs.NewPeriodicJobs(cfg.Jobs.CollectSchedule)
		if err != nil {
			return err
		}
		riverClient, err := jobs.NewClient(pool, workers, slog.Default(), cfg.Jobs.RetryCollection, periodic)
		if err != nil {
			return fmt.Errorf("create job client: %w", err)
		}

		group.Go(func() error {
			if err := riverClient.Start(groupCtx); err != nil {
				return fmt.Errorf("start job workers: %w", err)
			}
			logger.Info().Str("schedule", cfg.Jobs.CollectSchedule).Msg("job workers started")

			<-groupCtx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer stopCancel()
			if err := riverClient.Stop(stopCtx); err != nil {
				logger.Error().Err(err).Msg("job workers shutdown error")
			}
			return nil
		})
	} else {
		logger.Warn().Msg("job workers disabled, scheduled collection will not run")
	}

	group.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
