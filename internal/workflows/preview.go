package workflows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/preview"
	"github.com/tendant/simple-preview-pipeline/internal/storage"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

// Dispatcher renders a preview for one job
type Dispatcher interface {
	Dispatch(ctx context.Context, job preview.Job) (*preview.Result, error)
}

// Downloader fetches job sources into the scratch directory
type Downloader interface {
	Download(ctx context.Context, uri, dir, filename string) (string, string, error)
}

// JobObserver records job outcomes
type JobObserver interface {
	ObserveJob(kind, status string, elapsed time.Duration)
}

// PreviewWorkflow downloads a source, renders its preview and publishes the
// artifacts to the object store.
type PreviewWorkflow struct {
	dispatcher Dispatcher
	downloader Downloader
	store      storage.ObjectStore
	observer   JobObserver
	workDir    string
	logger     *zap.Logger
}

// PreviewOption configures a PreviewWorkflow
type PreviewOption func(*PreviewWorkflow)

// WithObserver records job metrics
func WithObserver(o JobObserver) PreviewOption {
	return func(w *PreviewWorkflow) {
		w.observer = o
	}
}

// WithWorkDir sets the parent of per-job scratch directories
func WithWorkDir(dir string) PreviewOption {
	return func(w *PreviewWorkflow) {
		w.workDir = dir
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) PreviewOption {
	return func(w *PreviewWorkflow) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewPreviewWorkflow creates a new preview workflow
func NewPreviewWorkflow(dispatcher Dispatcher, downloader Downloader, store storage.ObjectStore, opts ...PreviewOption) *PreviewWorkflow {
	w := &PreviewWorkflow{
		dispatcher: dispatcher,
		downloader: downloader,
		store:      store,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name returns the workflow name
func (w *PreviewWorkflow) Name() string {
	return "PreviewWorkflow"
}

// Execute runs the preview workflow
func (w *PreviewWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	req := wctx.Request
	log := w.logger.With(zap.String("run_id", wctx.RunID), zap.String("source", req.SourceKey()))
	log.Info("starting preview workflow")
	started := time.Now()

	// Step 1: Validate request
	if err := validateRequest(&req); err != nil {
		log.Warn("validation failed", zap.Error(err))
		return failed(err), err
	}

	// Step 2: Skip sources that already have previews
	if req.ContentID != "" && !req.Force {
		if checker, ok := w.store.(storage.DerivedChecker); ok {
			hasDerived, err := checker.HasDerived(wctx.Ctx, req.ContentID, pipeline.DerivedTypeThumbnail)
			if err != nil {
				// Continue anyway - don't fail on check error
				log.Warn("failed to check derived content", zap.Error(err))
			} else if hasDerived {
				log.Info("preview already exists, skipping")
				return &WorkflowResult{Success: true, Skipped: true}, nil
			}
		}
	}

	// Step 3: Create the job's scratch directory
	dir, err := os.MkdirTemp(w.workDir, "preview-")
	if err != nil {
		err = fmt.Errorf("create scratch directory: %w", err)
		return failed(err), err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("failed to remove scratch directory", zap.String("dir", dir), zap.Error(err))
		}
	}()

	// Step 4: Fetch the source
	job, err := w.buildJob(wctx.Ctx, wctx.RunID, req, dir)
	if err != nil {
		log.Error("failed to fetch source", zap.Error(err))
		w.observe("unknown", pipeline.StatusError, started)
		return failed(err), err
	}
	kind := preview.KindOf(job)
	log.Info("source ready", zap.String("kind", string(kind)), zap.String("mime", job.MimeType))

	// Step 5: Render the preview
	result, err := w.dispatcher.Dispatch(wctx.Ctx, job)
	if err != nil {
		w.observe(string(kind), pipeline.StatusError, started)
		log.Error("preview failed", zap.Error(err))
		out := failed(fmt.Errorf("%w: %v", ErrStepFailed, err))
		var perr *preview.Error
		if errors.As(err, &perr) {
			out.Preview = &pipeline.Preview{
				Status: pipeline.StatusError,
				Error:  &pipeline.PreviewError{Code: perr.Code, Message: perr.Message},
			}
		}
		return out, fmt.Errorf("%w: %v", ErrStepFailed, err)
	}

	// Step 6: Publish artifacts
	published, err := w.publish(wctx.Ctx, req, result)
	if err != nil {
		w.observe(string(kind), pipeline.StatusError, started)
		log.Error("failed to publish preview", zap.Error(err))
		return failed(err), err
	}

	w.observe(string(kind), published.Status, started)
	log.Info("preview workflow completed",
		zap.String("status", published.Status),
		zap.String("thumbnail", published.Thumbnail),
		zap.Duration("elapsed", time.Since(started)),
	)
	return &WorkflowResult{Success: true, Preview: published}, nil
}

// buildJob downloads file sources into dir. Links are rendered remotely and
// need no download.
func (w *PreviewWorkflow) buildJob(ctx context.Context, runID string, req pipeline.ProcessRequest, dir string) (preview.Job, error) {
	job := preview.Job{ID: runID, Directory: dir, MimeType: req.MimeType}
	if req.Link != "" {
		job.Link = req.Link
		return job, nil
	}

	uri := req.SourceURI
	if uri == "" {
		uri = storage.ContentURI(req.ContentID)
	}

	sourcePath, mimeType, err := w.downloader.Download(ctx, uri, dir, sourceFilename(uri))
	if err != nil {
		return preview.Job{}, fmt.Errorf("download source: %w", err)
	}
	job.SourcePath = sourcePath
	if job.MimeType == "" {
		job.MimeType = mimeType
	}
	return job, nil
}

// sourceFilename keeps the source's extension; ffmpeg and soffice use it to
// pick a demuxer or import filter.
func sourceFilename(uri string) string {
	name := "source"
	if u, err := url.Parse(uri); err == nil {
		name += path.Ext(u.Path)
	}
	return name
}

// publish uploads every local artifact and returns the result with storage
// URIs in place of paths.
func (w *PreviewWorkflow) publish(ctx context.Context, req pipeline.ProcessRequest, result *preview.Result) (*pipeline.Preview, error) {
	out := &pipeline.Preview{Status: string(result.Status)}

	uploads := []struct {
		variant string
		path    string
		dst     *string
	}{
		{pipeline.DerivedTypeThumbnail, result.Thumbnail, &out.Thumbnail},
		{pipeline.DerivedTypeImage, result.Image, &out.Image},
		{pipeline.DerivedTypePDF, result.PDF, &out.PDF},
	}
	for _, u := range uploads {
		if u.path == "" {
			continue
		}
		uri, err := w.store.Put(ctx, u.path, storage.PutOptions{Parent: req.ContentID, Variant: u.variant})
		if err != nil {
			return nil, fmt.Errorf("upload %s: %w", u.variant, err)
		}
		*u.dst = uri
	}

	// Metadata values that are local paths are published the same way
	md := preview.NewMetadata()
	for _, key := range result.Metadata.Keys() {
		value, _ := result.Metadata.Get(key)
		if key == pipeline.DerivedTypeConvertedVideo {
			if p, ok := value.(string); ok && p != "" {
				uri, err := w.store.Put(ctx, p, storage.PutOptions{Parent: req.ContentID, Variant: key, ContentType: "video/mp4"})
				if err != nil {
					return nil, fmt.Errorf("upload %s: %w", key, err)
				}
				value = uri
			}
		}
		if err := md.Set(key, value); err != nil {
			return nil, err
		}
	}

	raw, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	out.Metadata = raw
	return out, nil
}

func (w *PreviewWorkflow) observe(kind, status string, started time.Time) {
	if w.observer != nil {
		w.observer.ObserveJob(kind, status, time.Since(started))
	}
}

// validateRequest validates the workflow request
func validateRequest(req *pipeline.ProcessRequest) error {
	sources := 0
	for _, s := range []string{req.ContentID, req.SourceURI, req.Link} {
		if s != "" {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("%w: exactly one of content_id, source_uri or link is required", ErrInvalidRequest)
	}

	if req.Link != "" {
		u, err := url.Parse(req.Link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: link must be an absolute http(s) URL", ErrInvalidRequest)
		}
	}

	if version, ok := req.Versions[pipeline.JobPreview]; ok && version < 1 {
		return fmt.Errorf("%w: invalid preview version: %d", ErrInvalidRequest, version)
	}
	return nil
}

func failed(err error) *WorkflowResult {
	return &WorkflowResult{Success: false, Error: err.Error()}
}
