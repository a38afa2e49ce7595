// Package raster executes sizing plans against image files.
package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/sizing"
)

// ErrUnsupportedFormat is returned for files the engine cannot decode.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Info describes a decoded source.
type Info struct {
	Width    int
	Height   int
	Format   string
	Animated bool
}

// Transform is one raster operation. Crop is applied before the resize.
// PreserveAnimation keeps every frame of an animated GIF and writes a GIF;
// otherwise the first frame is flattened onto white and written as PNG.
type Transform struct {
	Crop              *sizing.Rect
	Width             int
	Height            int
	PreserveAnimation bool
	OutDir            string
}

// Engine is the imaging-backed raster engine.
type Engine struct {
	logger *zap.Logger
}

// New creates a raster engine.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Identify reports the natural dimensions and format of the image at path.
// EXIF orientation is honored so the dimensions match what Transform sees.
func (e *Engine) Identify(ctx context.Context, path string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	info := Info{Width: cfg.Width, Height: cfg.Height, Format: format}

	switch format {
	case "gif":
		if _, err := f.Seek(0, 0); err != nil {
			return Info{}, fmt.Errorf("rewind image: %w", err)
		}
		anim, err := gif.DecodeAll(f)
		if err != nil {
			return Info{}, fmt.Errorf("decode gif: %w", err)
		}
		info.Animated = len(anim.Image) > 1
	case "jpeg":
		// Rotated JPEGs report pre-rotation dimensions in their header.
		img, err := imaging.Open(path, imaging.AutoOrientation(true))
		if err != nil {
			return Info{}, fmt.Errorf("decode image: %w", err)
		}
		b := img.Bounds()
		info.Width, info.Height = b.Dx(), b.Dy()
	}

	return info, nil
}

// Transform applies t to the image at path and returns the output file path.
func (e *Engine) Transform(ctx context.Context, path string, t Transform) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if t.Width <= 0 || t.Height <= 0 {
		return "", fmt.Errorf("%w: target %dx%d", sizing.ErrInvalidDimensions, t.Width, t.Height)
	}
	if t.OutDir == "" {
		t.OutDir = filepath.Dir(path)
	}

	if t.PreserveAnimation {
		info, err := e.Identify(ctx, path)
		if err != nil {
			return "", err
		}
		if info.Animated {
			return e.transformAnimated(ctx, path, t)
		}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	// Flatten transparency so thumbnails of PNG/GIF sources have a white background
	bg := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), color.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)

	if t.Crop != nil {
		flat = imaging.Crop(flat, cropRect(t.Crop))
	}
	out := imaging.Resize(flat, t.Width, t.Height, imaging.Lanczos)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	outPath := outputPath(t, "png")
	if err := imaging.Save(out, outPath, imaging.PNGCompressionLevel(png.DefaultCompression)); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}

	e.logger.Debug("raster transform complete",
		zap.String("source", path),
		zap.String("output", outPath),
		zap.Int("width", t.Width),
		zap.Int("height", t.Height),
	)
	return outPath, nil
}

// transformAnimated resizes every frame of a GIF. Frames are composed onto a
// full-size canvas first since GIF frames may only cover part of the image.
func (e *Engine) transformAnimated(ctx context.Context, path string, t Transform) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	anim, err := gif.DecodeAll(f)
	if err != nil {
		return "", fmt.Errorf("decode gif: %w", err)
	}

	bounds := image.Rect(0, 0, anim.Config.Width, anim.Config.Height)
	canvas := image.NewRGBA(bounds)

	out := &gif.GIF{
		Image:     make([]*image.Paletted, 0, len(anim.Image)),
		Delay:     anim.Delay,
		LoopCount: anim.LoopCount,
		Disposal:  make([]byte, 0, len(anim.Image)),
	}

	for i, frame := range anim.Image {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		var previous *image.RGBA
		disposal := byte(0)
		if i < len(anim.Disposal) {
			disposal = anim.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = image.NewRGBA(bounds)
			draw.Draw(previous, bounds, canvas, image.Point{}, draw.Src)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)

		var src image.Image = canvas
		if t.Crop != nil {
			src = imaging.Crop(canvas, cropRect(t.Crop))
		}
		resized := imaging.Resize(src, t.Width, t.Height, imaging.Lanczos)

		pal := frame.Palette
		if len(pal) == 0 {
			if global, ok := anim.Config.ColorModel.(color.Palette); ok && len(global) > 0 {
				pal = global
			} else {
				pal = palette.Plan9
			}
		}
		paletted := image.NewPaletted(resized.Bounds(), pal)
		draw.FloydSteinberg.Draw(paletted, resized.Bounds(), resized, image.Point{})

		out.Image = append(out.Image, paletted)
		out.Disposal = append(out.Disposal, gif.DisposalNone)

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	outPath := outputPath(t, "gif")
	w, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	defer w.Close()

	if err := gif.EncodeAll(w, out); err != nil {
		return "", fmt.Errorf("encode gif: %w", err)
	}

	e.logger.Debug("animated transform complete",
		zap.String("source", path),
		zap.String("output", outPath),
		zap.Int("frames", len(out.Image)),
	)
	return outPath, nil
}

func cropRect(r *sizing.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func outputPath(t Transform, ext string) string {
	name := fmt.Sprintf("resized_%dx%d_%d.%s", t.Width, t.Height, time.Now().UnixNano(), ext)
	return filepath.Join(t.OutDir, name)
}
