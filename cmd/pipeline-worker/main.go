package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/app"
	"github.com/tendant/simple-preview-pipeline/internal/config"
	"github.com/tendant/simple-preview-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-preview-pipeline/internal/dedupe"
	"github.com/tendant/simple-preview-pipeline/internal/handlers"
	"github.com/tendant/simple-preview-pipeline/internal/logging"
	"github.com/tendant/simple-preview-pipeline/internal/workflows"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// Async preview worker: requests are enqueued on DBOS and rendered by the
// queue's workers.
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger config is not known yet
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("pipeline worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	if cfg.DBOSDatabaseURL == "" {
		return errors.New("DBOS_SYSTEM_DATABASE_URL is required")
	}

	p, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	dbosRuntime, err := dbosruntime.NewRuntime(ctx, dbosruntime.Config{
		DatabaseURL:        cfg.DBOSDatabaseURL,
		AppName:            "pipeline-worker",
		QueueName:          cfg.DBOSQueueName,
		Concurrency:        cfg.DBOSConcurrency,
		ApplicationVersion: cfg.DBOSApplicationVersion,
	}, logger)
	if err != nil {
		return err
	}

	tracker, err := dedupe.NewTracker(ctx, dbosRuntime.DB(), logger)
	if err != nil {
		return err
	}

	// Registers the DBOS workflow function
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime, logger)
	workflowRunner.Register(pipeline.JobPreview, p.Workflow)

	// Launch DBOS (must be done after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		return err
	}
	defer dbosRuntime.Shutdown(10 * time.Second)

	asyncHandler := handlers.NewAsyncHandler(workflowRunner, tracker, logger)
	p.Checks["postgres"] = dbosRuntime.DB().PingContext

	router := handlers.NewRouter(handlers.RouterConfig{
		Process: asyncHandler.HandleProcessAsync,
		Status:  asyncHandler.HandleStatus,
		Checks:  p.Checks,
		Metrics: p.Metrics,
		Timeout: 30 * time.Second,
		Logger:  logger,
	})

	return serve(cfg.HTTPAddr, router, logger)
}

// serve runs the HTTP server until SIGINT or SIGTERM
func serve(addr string, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pipeline worker starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
