package preview

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/video"
)

func (d *Dispatcher) processImageFile(ctx context.Context, job Job) (*Result, error) {
	path := job.SourcePath
	if isSVG(job) {
		rasterized, err := d.deps.Raster.RasterizeSVG(ctx, path, d.sizes.ImageWidth)
		if err != nil {
			return nil, internalError(err, "unable to rasterize SVG image")
		}
		path = rasterized
	}
	return d.processImage(ctx, job.Directory, path)
}

func isSVG(job Job) bool {
	mime := strings.ToLower(strings.TrimSpace(job.MimeType))
	return mime == "image/svg+xml" || strings.EqualFold(filepath.Ext(job.SourcePath), ".svg")
}

// processVideo previews the first frame and transcodes sources that are not
// already H.264 so they play in HTML5 video elements.
func (d *Dispatcher) processVideo(ctx context.Context, job Job) (*Result, error) {
	frame, err := d.deps.Video.ExtractFrame(ctx, job.SourcePath, 0)
	if err != nil {
		return nil, internalError(err, "unable to generate image from video frame")
	}

	result, err := d.processImage(ctx, job.Directory, frame)
	if err != nil {
		return nil, err
	}

	// Duration is informational only
	if duration, err := d.deps.Video.ProbeDuration(ctx, job.SourcePath); err != nil {
		d.logger.Warn("unable to determine video duration", zap.String("job_id", job.ID), zap.Error(err))
	} else if err := result.Metadata.Set("video_duration", duration); err != nil {
		return nil, internalError(err, "metadata conflict")
	}

	codec, err := d.deps.Video.ProbeCodec(ctx, job.SourcePath)
	if err != nil {
		return nil, internalError(err, "unable to determine video codec")
	}
	if strings.HasPrefix(codec, video.CodecH264) {
		return result, nil
	}

	converted, err := d.deps.Video.Transcode(ctx, job.SourcePath, video.CodecH264)
	if err != nil {
		return nil, internalError(err, "unable to convert video")
	}
	if err := result.Metadata.Set("converted_video", converted); err != nil {
		return nil, internalError(err, "metadata conflict")
	}
	return result, nil
}

func (d *Dispatcher) processOffice(ctx context.Context, job Job) (*Result, error) {
	pdfPath, err := d.deps.Documents.ConvertToPDF(ctx, job.SourcePath, job.Directory)
	if err != nil {
		return nil, internalError(err, "unable to generate PDF for office document")
	}
	return d.processPDF(ctx, job, pdfPath, pdfPath)
}

// processPDF rasterizes the first page of pdfPath. pdfRef is carried into
// the result when the PDF was generated by this job.
func (d *Dispatcher) processPDF(ctx context.Context, job Job, pdfPath, pdfRef string) (*Result, error) {
	page, err := d.deps.Documents.RasterizeFirstPage(ctx, pdfPath)
	if err != nil {
		return nil, internalError(err, "unable to render first PDF page")
	}

	result, err := d.processImage(ctx, job.Directory, page)
	if err != nil {
		return nil, err
	}
	result.PDF = pdfRef
	return result, nil
}
