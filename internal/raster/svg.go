package raster

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"
)

const (
	// defaultSVGWidth is used when a document has no usable viewBox.
	defaultSVGWidth = 1024

	// maxSVGSide bounds either output dimension.
	maxSVGSide = 8192
)

// RasterizeSVG renders a vector image to PNG at its intrinsic size, or at
// maxWidth when the intrinsic size is larger, and returns the PNG path.
func (e *Engine) RasterizeSVG(ctx context.Context, path string, maxWidth int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open svg: %w", err)
	}
	defer f.Close()

	icon, err := oksvg.ReadIconStream(f, oksvg.WarnErrorMode)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	width, height, err := svgSize(icon.ViewBox.W, icon.ViewBox.H, maxWidth)
	if err != nil {
		return "", err
	}

	icon.SetTarget(0, 0, float64(width), float64(height))
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(rgba, rgba.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	outPath := filepath.Join(filepath.Dir(path), base+"_rasterized.png")
	if err := imaging.Save(rgba, outPath); err != nil {
		return "", fmt.Errorf("save rasterized svg: %w", err)
	}

	e.logger.Debug("svg rasterized",
		zap.String("source", path),
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return outPath, nil
}

// svgSize scales a viewBox to fit maxWidth and maxSVGSide, keeping the
// aspect ratio. Sizes that cannot be rendered are rejected.
func svgSize(w, h float64, maxWidth int) (int, int, error) {
	if math.IsNaN(w) || math.IsNaN(h) || math.IsInf(w, 0) || math.IsInf(h, 0) {
		return 0, 0, fmt.Errorf("%w: svg viewBox is not finite", ErrUnsupportedFormat)
	}
	if w <= 0 || h <= 0 {
		w, h = defaultSVGWidth, defaultSVGWidth
	}

	limit := float64(maxSVGSide)
	if maxWidth > 0 && float64(maxWidth) < limit {
		limit = float64(maxWidth)
	}
	if w > limit {
		h = h * limit / w
		w = limit
	}
	if h > maxSVGSide {
		w = w * maxSVGSide / h
		h = maxSVGSide
	}

	width, height := int(math.Round(w)), int(math.Round(h))
	if width < 1 || height < 1 {
		return 0, 0, fmt.Errorf("%w: svg size %gx%g out of range", ErrUnsupportedFormat, w, h)
	}
	return width, height, nil
}
