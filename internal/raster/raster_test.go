package raster

import (
	"context"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-preview-pipeline/internal/sizing"
)

func writePNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, "source.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func writeGIF(t *testing.T, dir string, w, h, frames int) string {
	t.Helper()
	pal := color.Palette{color.White, color.Black, color.RGBA{R: 255, A: 255}}
	anim := &gif.GIF{}
	for i := 0; i < frames; i++ {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), pal)
		for x := 0; x < w; x++ {
			frame.SetColorIndex(x, (i*3)%h, uint8(1+i%2))
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	path := filepath.Join(dir, "source.gif")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, anim))
	return path
}

func TestIdentify(t *testing.T) {
	dir := t.TempDir()
	e := New(nil)

	info, err := e.Identify(context.Background(), writePNG(t, dir, 320, 200))
	require.NoError(t, err)
	assert.Equal(t, Info{Width: 320, Height: 200, Format: "png"}, info)

	info, err = e.Identify(context.Background(), writeGIF(t, dir, 40, 30, 3))
	require.NoError(t, err)
	assert.Equal(t, 40, info.Width)
	assert.Equal(t, 30, info.Height)
	assert.True(t, info.Animated)
}

func TestIdentifyRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := New(nil).Identify(context.Background(), path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestTransformCropAndResize(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, 192, 108)

	plan, err := sizing.PlanThumbnail(192, 108, 20, 20)
	require.NoError(t, err)
	w, h := plan.Size()

	out, err := New(nil).Transform(context.Background(), src, Transform{
		Crop:   plan.Crop,
		Width:  w,
		Height: h,
		OutDir: dir,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, ".png"))

	img, err := imaging.Open(out)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestTransformAnimatedKeepsFrames(t *testing.T) {
	dir := t.TempDir()
	src := writeGIF(t, dir, 60, 30, 4)

	out, err := New(nil).Transform(context.Background(), src, Transform{
		Width:             30,
		Height:            15,
		PreserveAnimation: true,
		OutDir:            dir,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, ".gif"))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	anim, err := gif.DecodeAll(f)
	require.NoError(t, err)
	assert.Len(t, anim.Image, 4)
	assert.Equal(t, 30, anim.Config.Width)
	assert.Equal(t, 15, anim.Config.Height)
}

func TestTransformAnimatedThumbnailUsesFirstFrame(t *testing.T) {
	dir := t.TempDir()
	src := writeGIF(t, dir, 60, 30, 4)

	out, err := New(nil).Transform(context.Background(), src, Transform{
		Crop:   &sizing.Rect{X: 15, Y: 0, Width: 30, Height: 30},
		Width:  10,
		Height: 10,
		OutDir: dir,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, ".png"))
}

func TestTransformInvalidTarget(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, 10, 10)

	_, err := New(nil).Transform(context.Background(), src, Transform{Width: 0, Height: 10})
	assert.ErrorIs(t, err, sizing.ErrInvalidDimensions)
}

func TestTransformCancelled(t *testing.T) {
	dir := t.TempDir()
	src := writePNG(t, dir, 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Transform(ctx, src, Transform{Width: 5, Height: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRasterizeSVG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.svg")
	svg := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 400 200" width="400" height="200">
<rect x="10" y="10" width="380" height="180" fill="#336699"/></svg>`
	require.NoError(t, os.WriteFile(path, []byte(svg), 0o644))

	e := New(nil)
	out, err := e.RasterizeSVG(context.Background(), path, 100)
	require.NoError(t, err)

	info, err := e.Identify(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 100, info.Width)
	assert.Equal(t, 50, info.Height)
}

func TestRasterizeSVGTallViewBox(t *testing.T) {
	dir := t.TempDir()
	e := New(nil)

	tall := filepath.Join(dir, "tall.svg")
	require.NoError(t, os.WriteFile(tall, []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100000">
<rect width="100" height="100000" fill="#000"/></svg>`), 0o644))
	out, err := e.RasterizeSVG(context.Background(), tall, 1280)
	require.NoError(t, err)
	info, err := e.Identify(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, 8, info.Width)
	assert.Equal(t, maxSVGSide, info.Height)

	extreme := filepath.Join(dir, "extreme.svg")
	require.NoError(t, os.WriteFile(extreme, []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100000 1e15">
<rect width="10" height="10" fill="#000"/></svg>`), 0o644))
	_, err = e.RasterizeSVG(context.Background(), extreme, 1280)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestSVGSize(t *testing.T) {
	tests := []struct {
		name          string
		w, h          float64
		maxWidth      int
		width, height int
		wantErr       bool
	}{
		{name: "intrinsic", w: 400, h: 200, maxWidth: 1280, width: 400, height: 200},
		{name: "wide", w: 4000, h: 2000, maxWidth: 1280, width: 1280, height: 640},
		{name: "no viewBox", w: 0, h: 0, maxWidth: 1280, width: defaultSVGWidth, height: defaultSVGWidth},
		{name: "no max width", w: 20000, h: 10000, maxWidth: 0, width: maxSVGSide, height: maxSVGSide / 2},
		{name: "tall", w: 1000, h: 100000, maxWidth: 1280, width: 82, height: maxSVGSide},
		{name: "degenerate", w: 100000, h: 1e15, maxWidth: 1280, wantErr: true},
		{name: "infinite", w: math.Inf(1), h: 10, maxWidth: 1280, wantErr: true},
		{name: "nan", w: math.NaN(), h: 10, maxWidth: 1280, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			width, height, err := svgSize(tt.w, tt.h, tt.maxWidth)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.width, width)
			assert.Equal(t, tt.height, height)
		})
	}
}
