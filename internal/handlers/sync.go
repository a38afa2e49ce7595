package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/workflows"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// SyncRunner executes workflows in the request goroutine
type SyncRunner interface {
	Run(wctx *workflows.WorkflowContext) (*workflows.WorkflowResult, error)
}

// SyncHandler renders previews while the caller waits
type SyncHandler struct {
	runner  SyncRunner
	tracker Recorder
	logger  *zap.Logger
}

// NewSyncHandler creates a new sync handler. tracker may be nil.
func NewSyncHandler(runner SyncRunner, tracker Recorder, logger *zap.Logger) *SyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncHandler{
		runner:  runner,
		tracker: tracker,
		logger:  logger,
	}
}

// HandleProcess handles POST /v1/process and returns the published preview
func (h *SyncHandler) HandleProcess(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	seen := 0
	if h.tracker != nil {
		seen, err = h.tracker.Record(r.Context(), req.SourceKey(), req.Job, pipelineVersion(req))
		if err != nil {
			h.logger.Warn("failed to record dedupe", zap.Error(err))
		}
	}

	wctx := &workflows.WorkflowContext{
		Ctx:     r.Context(),
		Request: req,
	}
	result, err := h.runner.Run(wctx)

	resp := pipeline.ProcessResponse{
		RunID:           wctx.RunID,
		DedupeSeenCount: seen,
	}
	if result != nil {
		resp.Skipped = result.Skipped
		resp.Preview = result.Preview
	}

	if err != nil {
		h.logger.Warn("workflow failed", zap.String("run_id", wctx.RunID), zap.Error(err))
		resp.Error = err.Error()
		respondWithJSON(w, failureStatus(err, result), resp)
		return
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func failureStatus(err error, result *workflows.WorkflowResult) int {
	switch {
	case errors.Is(err, workflows.ErrInvalidRequest), errors.Is(err, workflows.ErrWorkflowNotFound):
		return http.StatusBadRequest
	case result != nil && result.Preview != nil && result.Preview.Error != nil && result.Preview.Error.Code >= 400:
		return result.Preview.Error.Code
	default:
		return http.StatusInternalServerError
	}
}
