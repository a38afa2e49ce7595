package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// Recorder counts submissions per source
type Recorder interface {
	Record(ctx context.Context, sourceKey string, pipeline string, pipelineVersion int) (int, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, status int, msg string) {
	respondWithJSON(w, status, errorResponse{Error: msg})
}

// decodeRequest parses a process request. Job defaults to preview.
func decodeRequest(r *http.Request) (pipeline.ProcessRequest, error) {
	var req pipeline.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("invalid request: %v", err)
	}
	if req.Job == "" {
		req.Job = pipeline.JobPreview
	}
	if req.Job != pipeline.JobPreview {
		return req, fmt.Errorf("unsupported job %q", req.Job)
	}
	if req.SourceKey() == "" {
		return req, fmt.Errorf("one of content_id, source_uri or link is required")
	}
	return req, nil
}

func pipelineVersion(req pipeline.ProcessRequest) int {
	if v, ok := req.Versions[req.Job]; ok {
		return v
	}
	return 1
}
