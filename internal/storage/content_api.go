package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ContentAPIStore talks to a remote simple-content server over its HTTP API
type ContentAPIStore struct {
	baseURL    string
	httpClient *http.Client
}

// NewContentAPIStore creates a new HTTP-based content store
func NewContentAPIStore(baseURL string) *ContentAPIStore {
	return &ContentAPIStore{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type contentResponse struct {
	ID string `json:"id"`
}

type contentDetails struct {
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

type derivedContent struct {
	DerivationType string `json:"derivation_type"`
	Variant        string `json:"variant"`
}

// Put uploads a file as multipart form data
func (cs *ContentAPIStore) Put(ctx context.Context, localPath string, opts PutOptions) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	endpoint := fmt.Sprintf("%s/api/v1/contents", cs.baseURL)
	fields := map[string]string{"variant": opts.Variant}
	if opts.Parent != "" {
		endpoint = fmt.Sprintf("%s/api/v1/contents/%s/derived", cs.baseURL, url.PathEscape(opts.Parent))
		fields["derivation_type"] = DerivationPreview
	} else {
		fields["document_type"] = opts.ContentType
		if fields["document_type"] == "" {
			fields["document_type"] = detectContentType(localPath)
		}
	}

	// Stream the body instead of buffering the whole file
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		for k, v := range fields {
			if err := mw.WriteField(k, v); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		part, err := mw.CreateFormFile("file", filepath.Base(localPath))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := cs.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result contentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no ID in response")
	}

	return ContentURI(result.ID), nil
}

// Get downloads content via the HTTP API
func (cs *ContentAPIStore) Get(ctx context.Context, uri string) (io.ReadCloser, error) {
	id, err := ParseContentURI(uri)
	if err != nil {
		return nil, err
	}

	resp, err := cs.get(ctx, fmt.Sprintf("%s/api/v1/contents/%s/download", cs.baseURL, id))
	if err != nil {
		return nil, fmt.Errorf("failed to download content: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// Head returns metadata from the details endpoint
func (cs *ContentAPIStore) Head(ctx context.Context, uri string) (*Metadata, error) {
	id, err := ParseContentURI(uri)
	if err != nil {
		return nil, err
	}

	var details contentDetails
	if err := cs.getJSON(ctx, fmt.Sprintf("%s/api/v1/contents/%s/details", cs.baseURL, id), &details); err != nil {
		return nil, fmt.Errorf("failed to get content details: %w", err)
	}

	return &Metadata{
		Size:        details.FileSize,
		ContentType: details.MimeType,
	}, nil
}

// Owns reports whether uri is a content:// URI
func (cs *ContentAPIStore) Owns(uri string) bool {
	return strings.HasPrefix(uri, contentScheme)
}

// HasDerived checks whether a preview variant already exists for a parent
func (cs *ContentAPIStore) HasDerived(ctx context.Context, parentID string, variant string) (bool, error) {
	endpoint := fmt.Sprintf("%s/api/v1/contents/%s/derived?derivation_type=%s",
		cs.baseURL, url.PathEscape(parentID), url.QueryEscape(DerivationPreview))

	var derived []derivedContent
	if err := cs.getJSON(ctx, endpoint, &derived); err != nil {
		return false, fmt.Errorf("failed to list derived content: %w", err)
	}

	for _, d := range derived {
		if d.Variant == variant {
			return true, nil
		}
	}
	return false, nil
}

func (cs *ContentAPIStore) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return cs.httpClient.Do(req)
}

func (cs *ContentAPIStore) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	resp, err := cs.get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
