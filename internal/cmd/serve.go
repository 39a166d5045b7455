package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/commundetect/internal/metrics"
	"github.com/3leaps/commundetect/internal/observability"
	"github.com/3leaps/commundetect/internal/server"
	"github.com/3leaps/commundetect/internal/server/handlers"
	"github.com/3leaps/commundetect/pkg/jobqueue"
	"github.com/3leaps/commundetect/pkg/jobstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the community detection REST service",
	Long: `Start the HTTP server and the job workers.

The service listens under /cd/v1 and runs until interrupted. SIGINT and
SIGTERM trigger a graceful shutdown: in-flight requests drain, running
jobs are cancelled, and their staging directories are removed.

Examples:
  commundetect serve
  commundetect serve --config /etc/commundetect/commundetect.yaml
  COMMUNDETECT_SERVER_PORT=9000 commundetect serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveNoMetrics bool

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveNoMetrics, "no-metrics", false, "Disable the /metrics endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, err := jobstore.New(jobstore.Config{
		BasePath:          cfg.Jobs.Path,
		DirWaitCount:      cfg.Jobs.DirWaitCount,
		DirWaitInterval:   cfg.Jobs.DirWaitInterval,
		InputWaitCount:    cfg.Jobs.InputWaitCount,
		InputWaitInterval: cfg.Jobs.InputWaitInterval,
	}, logger)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	var inst jobqueue.Instrumentation
	if !serveNoMetrics {
		m = metrics.New()
		inst = m
	}

	manager := jobqueue.New(jobqueue.Config{
		Workers:     cfg.Jobs.Workers,
		QueueSize:   cfg.Jobs.QueueSize,
		Command:     cfg.Jobs.Command,
		ExecTimeout: cfg.Jobs.ExecTimeout,
		RecordTTL:   cfg.Jobs.RecordTTL,
	}, store, logger, inst)
	manager.Start()

	h := handlers.New(manager, logger, versionInfo.Version, cfg.Status.DiskFullCutoff)
	srv := server.New(cfg, h, m, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server did not drain cleanly", zap.Error(err))
	}
	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Warn("job workers did not stop cleanly", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
