package preview

import (
	"context"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/raster"
	"github.com/tendant/simple-preview-pipeline/internal/sizing"
)

// rendition is one generated raster with its final dimensions.
type rendition struct {
	Path   string
	Width  int
	Height int
}

// generateFullImage writes the full-size image for path. Animated sources
// at most ImageWidth wide are returned untouched; wider ones keep their
// animation.
func (d *Dispatcher) generateFullImage(ctx context.Context, dir, path string) (rendition, error) {
	info, err := d.deps.Raster.Identify(ctx, path)
	if err != nil {
		return rendition{}, internalError(err, "unable to read image dimensions")
	}

	plan, err := sizing.PlanFullImage(info.Width, info.Height, d.sizes.ImageWidth)
	if err != nil {
		return rendition{}, internalError(err, "unable to size full image")
	}
	width, height := plan.Size()

	if info.Animated && info.Width <= d.sizes.ImageWidth {
		d.logger.Debug("animated image within bounds, passing through", zap.String("path", path))
		return rendition{Path: path, Width: width, Height: height}, nil
	}

	out, err := d.deps.Raster.Transform(ctx, path, raster.Transform{
		Width:             width,
		Height:            height,
		PreserveAnimation: info.Animated,
		OutDir:            dir,
	})
	if err != nil {
		return rendition{}, internalError(err, "unable to generate full image")
	}
	return rendition{Path: out, Width: width, Height: height}, nil
}

// generateThumbnail crops the largest thumbnail-shaped region and scales it
// to the thumbnail size. Animated sources contribute their first frame.
func (d *Dispatcher) generateThumbnail(ctx context.Context, dir, path string) (rendition, error) {
	info, err := d.deps.Raster.Identify(ctx, path)
	if err != nil {
		return rendition{}, internalError(err, "unable to read image dimensions")
	}

	plan, err := sizing.PlanThumbnail(info.Width, info.Height, d.sizes.ThumbnailWidth, d.sizes.ThumbnailHeight)
	if err != nil {
		return rendition{}, internalError(err, "unable to size thumbnail")
	}
	width, height := plan.Size()

	out, err := d.deps.Raster.Transform(ctx, path, raster.Transform{
		Crop:   plan.Crop,
		Width:  width,
		Height: height,
		OutDir: dir,
	})
	if err != nil {
		return rendition{}, internalError(err, "unable to generate thumbnail")
	}
	return rendition{Path: out, Width: width, Height: height}, nil
}

// renderImage produces both renditions for path and records the full image
// dimensions in md.
func (d *Dispatcher) renderImage(ctx context.Context, dir, path string, md *Metadata) (full, thumb rendition, err error) {
	full, err = d.generateFullImage(ctx, dir, path)
	if err != nil {
		return rendition{}, rendition{}, err
	}
	thumb, err = d.generateThumbnail(ctx, dir, path)
	if err != nil {
		return rendition{}, rendition{}, err
	}

	if err := md.Set("image_width", full.Width); err != nil {
		return rendition{}, rendition{}, internalError(err, "metadata conflict")
	}
	if err := md.Set("image_height", full.Height); err != nil {
		return rendition{}, rendition{}, internalError(err, "metadata conflict")
	}
	return full, thumb, nil
}

// processImage is the shared still-image path used by every processor that
// ends in a raster.
func (d *Dispatcher) processImage(ctx context.Context, dir, path string) (*Result, error) {
	md := NewMetadata()
	full, thumb, err := d.renderImage(ctx, dir, path, md)
	if err != nil {
		return nil, err
	}
	return NewResult(StatusDone, thumb.Path, full.Path, "", md), nil
}
