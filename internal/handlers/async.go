package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/workflows"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// AsyncRunner enqueues workflows and reports their status
type AsyncRunner interface {
	RunAsync(ctx context.Context, req pipeline.ProcessRequest) (string, error)
	GetStatus(ctx context.Context, runID string) (*pipeline.RunStatus, error)
}

// AsyncHandler handles asynchronous workflow requests
type AsyncHandler struct {
	runner  AsyncRunner
	tracker Recorder
	logger  *zap.Logger
}

// NewAsyncHandler creates a new async handler. tracker may be nil.
func NewAsyncHandler(runner AsyncRunner, tracker Recorder, logger *zap.Logger) *AsyncHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncHandler{
		runner:  runner,
		tracker: tracker,
		logger:  logger,
	}
}

// HandleProcessAsync handles POST /v1/process - enqueues workflow and returns immediately
func (h *AsyncHandler) HandleProcessAsync(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	seen := 0
	if h.tracker != nil {
		seen, err = h.tracker.Record(r.Context(), req.SourceKey(), req.Job, pipelineVersion(req))
		if err != nil {
			// The ledger is advisory
			h.logger.Warn("failed to record dedupe", zap.Error(err))
		}
	}

	runID, err := h.runner.RunAsync(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to enqueue workflow", zap.String("source", req.SourceKey()), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "failed to enqueue workflow")
		return
	}

	respondWithJSON(w, http.StatusAccepted, pipeline.ProcessResponse{
		RunID:           runID,
		DedupeSeenCount: seen,
	})
}

// HandleStatus handles GET /v1/runs/{runID} - returns workflow status
func (h *AsyncHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if runID == "" {
		respondWithError(w, http.StatusBadRequest, "run_id is required")
		return
	}

	status, err := h.runner.GetStatus(r.Context(), runID)
	if err != nil {
		if errors.Is(err, workflows.ErrRunNotFound) {
			respondWithError(w, http.StatusNotFound, "run not found")
			return
		}
		h.logger.Error("failed to get workflow status", zap.String("run_id", runID), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "could not retrieve status")
		return
	}

	respondWithJSON(w, http.StatusOK, status)
}
