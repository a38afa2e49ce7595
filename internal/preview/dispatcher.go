package preview

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/embed"
	"github.com/tendant/simple-preview-pipeline/internal/raster"
	"github.com/tendant/simple-preview-pipeline/internal/resolver"
	"github.com/tendant/simple-preview-pipeline/internal/screenshot"
)

// RasterEngine identifies and transforms still and animated images.
type RasterEngine interface {
	Identify(ctx context.Context, path string) (raster.Info, error)
	Transform(ctx context.Context, path string, t raster.Transform) (string, error)
	RasterizeSVG(ctx context.Context, path string, maxWidth int) (string, error)
}

// VideoEngine extracts frames and re-encodes videos.
type VideoEngine interface {
	ExtractFrame(ctx context.Context, path string, atSeconds float64) (string, error)
	ProbeCodec(ctx context.Context, path string) (string, error)
	ProbeDuration(ctx context.Context, path string) (float64, error)
	Transcode(ctx context.Context, path, codec string) (string, error)
}

// DocumentConverter turns office documents into PDFs and PDFs into images.
type DocumentConverter interface {
	ConvertToPDF(ctx context.Context, path, outDir string) (string, error)
	RasterizeFirstPage(ctx context.Context, pdfPath string) (string, error)
}

// Screenshotter renders a web page to an image file.
type Screenshotter interface {
	Capture(ctx context.Context, link, outPath string, opts screenshot.Options) error
}

// Downloader fetches a URI into a directory and reports its MIME type.
type Downloader interface {
	Download(ctx context.Context, uri, dir, filename string) (string, string, error)
}

// Classifier decides link embeddability.
type Classifier interface {
	Classify(ctx context.Context, link string) embed.Embeddability
}

// Resolver follows redirects.
type Resolver interface {
	Resolve(ctx context.Context, link string) (bool, resolver.Chain)
}

// Sizes are the target preview dimensions.
type Sizes struct {
	ImageWidth      int
	ThumbnailWidth  int
	ThumbnailHeight int
}

// DefaultSizes returns a 1280 wide full image and a 200x200 thumbnail.
func DefaultSizes() Sizes {
	return Sizes{ImageWidth: 1280, ThumbnailWidth: 200, ThumbnailHeight: 200}
}

// Deps are the collaborators a Dispatcher drives.
type Deps struct {
	Raster     RasterEngine
	Video      VideoEngine
	Documents  DocumentConverter
	Screenshot Screenshotter
	Downloader Downloader
	Classifier Classifier
	Resolver   Resolver
}

// Dispatcher routes a job to the processor for its kind.
type Dispatcher struct {
	deps          Deps
	sizes         Sizes
	screenshotOpt screenshot.Options
	logger        *zap.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSizes overrides the preview dimensions.
func WithSizes(s Sizes) Option {
	return func(d *Dispatcher) {
		d.sizes = s
	}
}

// WithScreenshotOptions overrides the link screenshot options.
func WithScreenshotOptions(o screenshot.Options) Option {
	return func(d *Dispatcher) {
		d.screenshotOpt = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps Deps, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		deps:          deps,
		sizes:         DefaultSizes(),
		screenshotOpt: screenshot.DefaultOptions(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch processes one job. It returns a Result for completed and
// unsupported jobs and a *Error for failures; never both.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) (*Result, error) {
	kind := KindOf(job)
	log := d.logger.With(zap.String("job_id", job.ID), zap.String("kind", string(kind)))
	log.Info("dispatching job")

	if job.Directory == "" {
		return nil, &Error{Code: http.StatusBadRequest, Message: "job has no working directory"}
	}

	var (
		result *Result
		err    error
	)
	switch kind {
	case KindYouTube:
		result, err = d.processYouTube(ctx, job)
	case KindVimeo:
		result, err = d.processVimeo(ctx, job)
	case KindLink:
		result, err = d.processLink(ctx, job)
	case KindImage:
		result, err = d.processImageFile(ctx, job)
	case KindVideo:
		result, err = d.processVideo(ctx, job)
	case KindOffice:
		result, err = d.processOffice(ctx, job)
	case KindPDF:
		result, err = d.processPDF(ctx, job, job.SourcePath, "")
	default:
		log.Info("unsupported content", zap.String("mime", job.MimeType))
		return Unsupported(), nil
	}

	if err != nil {
		log.Warn("job failed", zap.Error(err))
		return nil, asError(err)
	}
	log.Info("job complete", zap.String("thumbnail", result.Thumbnail), zap.String("image", result.Image))
	return result, nil
}

// asError keeps *Error values and wraps everything else as an internal error.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return internalError(err, "%v", err)
}
