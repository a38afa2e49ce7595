package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// Client is an HTTP client for triggering pipeline processing
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new pipeline client. Synchronous previews of videos and
// office documents can take minutes, hence the generous timeout.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// NewWithHTTPClient creates a new pipeline client with a custom HTTP client
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Process triggers content processing. A standalone worker answers with the
// preview; an async worker answers with a run ID to poll.
func (c *Client) Process(ctx context.Context, req pipeline.ProcessRequest) (*pipeline.ProcessResponse, error) {
	if req.Job == "" {
		req.Job = pipeline.JobPreview
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/process", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var processResp pipeline.ProcessResponse
	if err := c.do(httpReq, &processResp, http.StatusOK, http.StatusAccepted); err != nil {
		return nil, err
	}
	return &processResp, nil
}

// Run fetches the status of an asynchronous run
func (c *Client) Run(ctx context.Context, runID string) (*pipeline.RunStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var status pipeline.RunStatus
	if err := c.do(httpReq, &status, http.StatusOK); err != nil {
		return nil, err
	}
	return &status, nil
}

// Wait polls a run until it leaves the pending and enqueued states
func (c *Client) Wait(ctx context.Context, runID string, interval time.Duration) (*pipeline.RunStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.Run(ctx, runID)
		if err != nil {
			return nil, err
		}
		if status.State != "pending" && status.State != "enqueued" {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(req *http.Request, v interface{}, okStatus ...int) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	accepted := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			accepted = true
		}
	}
	if !accepted {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
