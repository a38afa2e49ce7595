package main

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-content/pkg/simplecontent"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/app"
	"github.com/tendant/simple-preview-pipeline/internal/config"
	"github.com/tendant/simple-preview-pipeline/internal/handlers"
	"github.com/tendant/simple-preview-pipeline/internal/logging"
	"github.com/tendant/simple-preview-pipeline/internal/storage"
	"github.com/tendant/simple-preview-pipeline/internal/workflows"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// Standalone preview worker for quick testing.
// Renders synchronously; defaults to the embedded simple-content service
// (in-memory repository + filesystem storage under STORAGE_DIR).
func main() {
	if os.Getenv("STORAGE_BACKEND") == "" {
		os.Setenv("STORAGE_BACKEND", config.BackendContent)
	}
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("standalone worker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("pipeline standalone worker",
		zap.String("storage_backend", cfg.StorageBackend),
		zap.String("storage_dir", cfg.StorageDir),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	p, err := app.Build(context.Background(), cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	// No DBOS runtime: workflows run in the request goroutine
	workflowRunner := workflows.NewWorkflowRunner(nil, logger)
	workflowRunner.Register(pipeline.JobPreview, p.Workflow)

	syncHandler := handlers.NewSyncHandler(workflowRunner, nil, logger)
	router := handlers.NewRouter(handlers.RouterConfig{
		Process: syncHandler.HandleProcess,
		Checks:  p.Checks,
		Metrics: p.Metrics,
		Timeout: 10 * time.Minute,
		Logger:  logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/v1/test", &testHandler{runner: workflowRunner, pipeline: p, logger: logger})

	logger.Info("quick test: curl http://localhost" + cfg.HTTPAddr + "/v1/test")
	return serve(cfg.HTTPAddr, mux, logger)
}

func serve(addr string, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("pipeline worker ready", zap.String("addr", addr))
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
	return server.Shutdown(ctx)
}

// testHandler runs an end-to-end check: upload a generated image, preview
// it and list what was published.
type testHandler struct {
	runner   *workflows.WorkflowRunner
	pipeline *app.Pipeline
	logger   *zap.Logger
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed (use GET or POST)", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()

	// Step 1: Upload test content
	dir, err := os.MkdirTemp("", "preview-test-")
	if err != nil {
		writeError(w, fmt.Errorf("create temp dir: %w", err))
		return
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "test-image.png")
	img := imaging.New(1600, 900, color.NRGBA{R: 30, G: 120, B: 200, A: 255})
	if err := imaging.Save(img, src); err != nil {
		writeError(w, fmt.Errorf("write test image: %w", err))
		return
	}
	uri, err := h.pipeline.Store.Put(ctx, src, storage.PutOptions{ContentType: "image/png"})
	if err != nil {
		writeError(w, fmt.Errorf("upload failed: %w", err))
		return
	}
	h.logger.Info("test content uploaded", zap.String("uri", uri))

	// Step 2: Preview it
	req := pipeline.ProcessRequest{Job: pipeline.JobPreview, SourceURI: uri}
	if id, err := storage.ParseContentURI(uri); err == nil {
		req = pipeline.ProcessRequest{Job: pipeline.JobPreview, ContentID: id.String()}
	}
	wctx := &workflows.WorkflowContext{Ctx: ctx, Request: req, RunID: uuid.NewString()}
	result, err := h.runner.Run(wctx)
	if err != nil {
		writeError(w, fmt.Errorf("workflow failed: %w", err))
		return
	}

	response := map[string]interface{}{
		"test_status": "success",
		"source":      uri,
		"run_id":      wctx.RunID,
		"preview":     result.Preview,
	}

	// Step 3: List derived content
	if h.pipeline.Content != nil && req.ContentID != "" {
		derived, err := h.pipeline.Content.ListDerivedContent(ctx, simplecontent.WithParentID(uuid.MustParse(req.ContentID)))
		if err != nil {
			writeError(w, fmt.Errorf("list derived failed: %w", err))
			return
		}
		response["derived_count"] = len(derived)
		response["derived_contents"] = derived
	}

	writeJSON(w, http.StatusOK, response)
}
