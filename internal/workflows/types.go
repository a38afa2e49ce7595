package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/dbosruntime"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// WorkflowContext contains context for workflow execution
type WorkflowContext struct {
	Ctx     context.Context
	Request pipeline.ProcessRequest
	RunID   string
}

// WorkflowResult contains the result of workflow execution.
// It is persisted by DBOS, so every field is a plain value.
type WorkflowResult struct {
	Success bool              `json:"success"`
	Skipped bool              `json:"skipped,omitempty"`
	Error   string            `json:"error,omitempty"`
	Preview *pipeline.Preview `json:"preview,omitempty"`
}

// Workflow defines the interface for processing workflows
type Workflow interface {
	// Execute runs the workflow
	Execute(wctx *WorkflowContext) (*WorkflowResult, error)

	// Name returns the workflow name
	Name() string
}

// WorkflowRunner executes workflows
type WorkflowRunner struct {
	workflows   map[string]Workflow
	dbosRuntime *dbosruntime.Runtime
	logger      *zap.Logger
}

// NewWorkflowRunner creates a new workflow runner. A nil runtime limits the
// runner to synchronous execution.
func NewWorkflowRunner(dbosRuntime *dbosruntime.Runtime, logger *zap.Logger) *WorkflowRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	runner := &WorkflowRunner{
		workflows:   make(map[string]Workflow),
		dbosRuntime: dbosRuntime,
		logger:      logger,
	}

	// Register the DBOS workflow function
	if dbosRuntime != nil {
		dbos.RegisterWorkflow(dbosRuntime.Context(), runner.executeWorkflowDBOS)
	}

	return runner
}

// Register registers a workflow
func (r *WorkflowRunner) Register(job string, workflow Workflow) {
	r.workflows[job] = workflow
	r.logger.Info("registered workflow", zap.String("workflow", workflow.Name()), zap.String("job", job))
}

// Run executes a workflow synchronously. An empty RunID is filled in.
func (r *WorkflowRunner) Run(wctx *WorkflowContext) (*WorkflowResult, error) {
	workflow, ok := r.workflows[wctx.Request.Job]
	if !ok {
		return &WorkflowResult{
			Success: false,
			Error:   ErrWorkflowNotFound.Error(),
		}, ErrWorkflowNotFound
	}
	if wctx.RunID == "" {
		wctx.RunID = uuid.NewString()
	}

	return workflow.Execute(wctx)
}

// RunAsync enqueues a workflow for async execution via DBOS. The job is
// resolved by whichever worker dequeues it, so enqueue-only clients need no
// registered workflows.
func (r *WorkflowRunner) RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error) {
	if r.dbosRuntime == nil {
		return "", ErrRuntimeUnavailable
	}
	// Generate workflow ID for exactly-once semantics
	workflowID := fmt.Sprintf("%s-%s", req.Job, uuid.NewString())

	handle, err := dbos.RunWorkflow[pipeline.ProcessRequest, *WorkflowResult](
		r.dbosRuntime.Context(),
		r.executeWorkflowDBOS,
		req,
		dbos.WithWorkflowID(workflowID),
		dbos.WithQueue(r.dbosRuntime.QueueName()),
	)
	if err != nil {
		return "", fmt.Errorf("enqueue workflow: %w", err)
	}

	r.logger.Info("workflow enqueued",
		zap.String("run_id", handle.GetWorkflowID()),
		zap.String("job", req.Job),
		zap.String("source", req.SourceKey()),
	)
	return handle.GetWorkflowID(), nil
}

// executeWorkflowDBOS is the DBOS workflow function that wraps registered workflows
func (r *WorkflowRunner) executeWorkflowDBOS(dbosCtx dbos.DBOSContext, req pipeline.ProcessRequest) (*WorkflowResult, error) {
	workflow, ok := r.workflows[req.Job]
	if !ok {
		return &WorkflowResult{
			Success: false,
			Error:   ErrWorkflowNotFound.Error(),
		}, ErrWorkflowNotFound
	}

	workflowID, err := dbosCtx.GetWorkflowID()
	if err != nil {
		return &WorkflowResult{
			Success: false,
			Error:   err.Error(),
		}, err
	}

	// DBOSContext implements context.Context
	wctx := &WorkflowContext{
		Ctx:     dbosCtx,
		Request: req,
		RunID:   workflowID,
	}

	return workflow.Execute(wctx)
}

// GetStatus retrieves the status of a workflow execution
func (r *WorkflowRunner) GetStatus(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	if r.dbosRuntime == nil {
		return nil, ErrRuntimeUnavailable
	}

	handle, err := dbos.RetrieveWorkflow[*WorkflowResult](r.dbosRuntime.Context(), runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunNotFound, err)
	}
	status, err := handle.GetStatus()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunNotFound, err)
	}

	out := &pipeline.RunStatus{
		RunID:     runID,
		State:     strings.ToLower(string(status.Status)),
		CreatedAt: unixMillis(status.CreatedAt),
		UpdatedAt: unixMillis(status.UpdatedAt),
	}
	if status.Error != nil {
		out.Error = status.Error.Error()
	}

	// Only finished runs have a result; GetResult blocks otherwise
	if out.State == "success" {
		result, err := handle.GetResult()
		if err != nil {
			return nil, fmt.Errorf("get result: %w", err)
		}
		if result != nil {
			out.Preview = result.Preview
		}
	}
	return out, nil
}

func unixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
