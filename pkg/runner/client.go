package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-preview-pipeline/internal/workflows"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// Client provides a client-only API for starting workflows without executing them
// Use this in applications that want to enqueue previews for workers to execute
type Client struct {
	runtime *dbosruntime.Runtime
	runner  *workflows.WorkflowRunner
}

// NewClient creates a client that can start workflows but doesn't execute them
// Workers must be running separately to execute the enqueued workflows
func NewClient(cfg Config) (*Client, error) {
	dbosRuntime, err := dbosruntime.NewRuntime(context.Background(), dbosruntime.Config{
		DatabaseURL:        cfg.DatabaseURL,
		AppName:            cfg.AppName,
		QueueName:          cfg.QueueName,
		Concurrency:        -1, // Client mode: don't process workflows
		ApplicationVersion: cfg.ApplicationVersion,
	}, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize DBOS: %w", err)
	}

	// Enqueue only, no registration
	workflowRunner := workflows.NewWorkflowRunner(dbosRuntime, cfg.Logger)

	if err := dbosRuntime.Launch(); err != nil {
		return nil, fmt.Errorf("failed to launch DBOS: %w", err)
	}

	return &Client{
		runtime: dbosRuntime,
		runner:  workflowRunner,
	}, nil
}

// RunPreview enqueues a preview of a stored content item
func (c *Client) RunPreview(ctx context.Context, contentID string) (string, error) {
	return c.runner.RunAsync(ctx, pipeline.ProcessRequest{
		ContentID: contentID,
		Job:       pipeline.JobPreview,
	})
}

// RunLinkPreview enqueues a preview of a web link
func (c *Client) RunLinkPreview(ctx context.Context, link string) (string, error) {
	return c.runner.RunAsync(ctx, pipeline.ProcessRequest{
		Link: link,
		Job:  pipeline.JobPreview,
	})
}

// Status reports a run
func (c *Client) Status(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	return c.runner.GetStatus(ctx, runID)
}

// Shutdown gracefully shuts down the client
func (c *Client) Shutdown(timeoutSeconds int) {
	if c.runtime != nil {
		_ = c.runtime.Shutdown(time.Duration(timeoutSeconds) * time.Second)
	}
}
