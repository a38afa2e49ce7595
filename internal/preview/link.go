package preview

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/embed"
)

const youtubeThumbnailURL = "https://img.youtube.com/vi/%s/hqdefault.jpg"

func (d *Dispatcher) processYouTube(ctx context.Context, job Job) (*Result, error) {
	id := YouTubeID(job.Link)
	previewURL := fmt.Sprintf(youtubeThumbnailURL, id)

	path, mimeType, err := d.deps.Downloader.Download(ctx, previewURL, job.Directory, "youtube_preview.jpg")
	if err != nil {
		return nil, internalError(err, "unable to download YouTube thumbnail %s", previewURL)
	}
	if mimeType != "image/jpeg" {
		return nil, unexpectedType("YouTube thumbnail "+previewURL, mimeType, "image/jpeg")
	}

	md := NewMetadata()
	full, thumb, err := d.renderImage(ctx, job.Directory, path, md)
	if err != nil {
		return nil, err
	}
	if err := md.Set("youtubeId", id); err != nil {
		return nil, internalError(err, "metadata conflict")
	}
	return NewResult(StatusDone, thumb.Path, full.Path, "", md), nil
}

func (d *Dispatcher) processVimeo(ctx context.Context, job Job) (*Result, error) {
	reachable, chain := d.deps.Resolver.Resolve(ctx, job.Link)
	if !reachable {
		return nil, &Error{Code: http.StatusInternalServerError, Message: "could not resolve URL " + job.Link}
	}

	// After redirects the last response carries the page
	last := chain.Last()
	if last == nil || len(last.Body) == 0 {
		return nil, &Error{Code: http.StatusInternalServerError, Message: "no response body for URL " + job.Link}
	}

	video := embed.ParseStructuredVideo(last.Body)
	if video.ThumbnailURL == "" {
		return nil, &Error{Code: http.StatusInternalServerError, Message: "no preview image found for Vimeo URL " + job.Link}
	}

	path, mimeType, err := d.deps.Downloader.Download(ctx, video.ThumbnailURL, job.Directory, "image.jpg")
	if err != nil {
		return nil, internalError(err, "unable to download Vimeo preview image")
	}
	if mimeType != "image/jpeg" && mimeType != "image/png" {
		return nil, unexpectedType("preview image at Vimeo URL "+job.Link, mimeType, "image/jpeg", "image/png")
	}

	// Embed URLs are only trusted over HTTPS
	var e embed.Embeddability
	if strings.HasPrefix(video.EmbedURL, "https:") {
		e.HTTPS = embed.Decision{Embeddable: true, EmbedURL: video.EmbedURL}
	}

	md := NewMetadata()
	if err := setEmbedMetadata(md, e); err != nil {
		return nil, err
	}
	full, thumb, err := d.renderImage(ctx, job.Directory, path, md)
	if err != nil {
		return nil, err
	}
	if video.ThumbnailWidth > 0 && video.ThumbnailWidth != full.Width {
		d.logger.Debug("declared Vimeo thumbnail width differs from rendition",
			zap.Int("declared", video.ThumbnailWidth),
			zap.Int("rendered", full.Width),
		)
	}
	return NewResult(StatusDone, thumb.Path, full.Path, "", md), nil
}

func (d *Dispatcher) processLink(ctx context.Context, job Job) (*Result, error) {
	e := d.deps.Classifier.Classify(ctx, job.Link)

	screenshotPath := filepath.Join(job.Directory, "screenshot.jpg")
	if err := d.deps.Screenshot.Capture(ctx, job.Link, screenshotPath, d.screenshotOpt); err != nil {
		return nil, internalError(err, "unable to capture screenshot of %s", job.Link)
	}

	md := NewMetadata()
	if err := setEmbedMetadata(md, e); err != nil {
		return nil, err
	}
	full, thumb, err := d.renderImage(ctx, job.Directory, screenshotPath, md)
	if err != nil {
		return nil, err
	}
	return NewResult(StatusDone, thumb.Path, full.Path, "", md), nil
}

func setEmbedMetadata(md *Metadata, e embed.Embeddability) error {
	pairs := []struct {
		key   string
		value interface{}
	}{
		{"httpEmbeddable", e.HTTP.Embeddable},
		{"httpsEmbeddable", e.HTTPS.Embeddable},
		{"httpEmbedUrl", nullableString(e.HTTP.EmbedURL)},
		{"httpsEmbedUrl", nullableString(e.HTTPS.EmbedURL)},
	}
	for _, p := range pairs {
		if err := md.Set(p.key, p.value); err != nil {
			return internalError(err, "metadata conflict")
		}
	}
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
