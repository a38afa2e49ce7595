package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/app"
	"github.com/tendant/simple-preview-pipeline/internal/config"
	"github.com/tendant/simple-preview-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-preview-pipeline/internal/workflows"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// Config holds the configuration for initializing the pipeline runner.
// Storage, sizing and tool settings are read from the environment.
type Config struct {
	DatabaseURL        string // DBOS PostgreSQL connection string
	AppName            string // Application name for DBOS
	QueueName          string // DBOS queue name
	Concurrency        int    // Number of concurrent workers
	ApplicationVersion string // Optional: Override binary hash for version matching
	Logger             *zap.Logger
}

// Runner embeds a preview worker in another process
type Runner struct {
	runtime  *dbosruntime.Runtime
	runner   *workflows.WorkflowRunner
	pipeline *app.Pipeline
}

// New creates and initializes a new pipeline runner with DBOS integration
func New(cfg Config) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	pipelineCfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline config: %w", err)
	}

	p, err := app.Build(context.Background(), pipelineCfg, prometheus.NewRegistry(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}

	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        cfg.Concurrency,
		ApplicationVersion: cfg.ApplicationVersion,
	}, logger)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime, logger)
	workflowRunner.Register(pipeline.JobPreview, p.Workflow)

	// Launch DBOS (must be after workflow registration)
	if err := dbosRuntime.Launch(); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Runner{
		runtime:  dbosRuntime,
		runner:   workflowRunner,
		pipeline: p,
	}, nil
}

// Run enqueues a preview request
func (r *Runner) Run(ctx context.Context, req pipeline.ProcessRequest) (string, error) {
	req.Job = pipeline.JobPreview
	return r.runner.RunAsync(ctx, req)
}

// RunPreview previews a stored content item
func (r *Runner) RunPreview(ctx context.Context, contentID string) (string, error) {
	return r.Run(ctx, pipeline.ProcessRequest{ContentID: contentID})
}

// RunLinkPreview previews a web link
func (r *Runner) RunLinkPreview(ctx context.Context, link string) (string, error) {
	return r.Run(ctx, pipeline.ProcessRequest{Link: link})
}

// Status reports a run
func (r *Runner) Status(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	return r.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the pipeline runner
func (r *Runner) Shutdown(timeoutSeconds int) {
	if r.runtime != nil {
		_ = r.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
	if r.pipeline != nil {
		r.pipeline.Close()
	}
}
