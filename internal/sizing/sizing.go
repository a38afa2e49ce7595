// Package sizing computes preview geometry from a source's natural dimensions.
// Nothing here touches pixels; a raster engine executes the returned plans.
package sizing

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDimensions is returned when a source or target dimension is not positive.
var ErrInvalidDimensions = errors.New("invalid dimensions")

// Rect is a crop rectangle in source pixel coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Plan describes how one raster target (full image or thumbnail) is derived
// from its source. TargetHeight may be fractional for aspect-preserving
// resizes; Size rounds it.
type Plan struct {
	SourceWidth  int     `json:"source_width"`
	SourceHeight int     `json:"source_height"`
	TargetWidth  float64 `json:"target_width"`
	TargetHeight float64 `json:"target_height"`
	Crop         *Rect   `json:"crop,omitempty"`
}

// Size returns the target dimensions rounded to whole pixels.
func (p Plan) Size() (int, int) {
	return int(math.Round(p.TargetWidth)), int(math.Round(p.TargetHeight))
}

// Upscales reports whether the plan enlarges the source.
func (p Plan) Upscales() bool {
	return p.TargetWidth > float64(p.SourceWidth)
}

// PlanFullImage never upscales. Sources at most maxWidth wide keep their
// dimensions; wider sources are scaled to maxWidth preserving aspect ratio.
func PlanFullImage(sourceWidth, sourceHeight, maxWidth int) (Plan, error) {
	if sourceWidth <= 0 || sourceHeight <= 0 || maxWidth <= 0 {
		return Plan{}, fmt.Errorf("%w: source %dx%d, max width %d", ErrInvalidDimensions, sourceWidth, sourceHeight, maxWidth)
	}

	plan := Plan{
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
		TargetWidth:  float64(sourceWidth),
		TargetHeight: float64(sourceHeight),
	}
	if sourceWidth > maxWidth {
		plan.TargetWidth = float64(maxWidth)
		plan.TargetHeight = float64(maxWidth) * float64(sourceHeight) / float64(sourceWidth)
	}
	return plan, nil
}

// PlanThumbnail crops the largest thumbWidth:thumbHeight rectangle the source
// allows and resizes it to exactly thumbWidth x thumbHeight.
//
// Landscape sources are cropped from the horizontal center and the upper
// third. Portrait and square sources are cropped from the top-left corner,
// where documents usually start.
func PlanThumbnail(sourceWidth, sourceHeight, thumbWidth, thumbHeight int) (Plan, error) {
	if sourceWidth <= 0 || sourceHeight <= 0 || thumbWidth <= 0 || thumbHeight <= 0 {
		return Plan{}, fmt.Errorf("%w: source %dx%d, thumbnail %dx%d", ErrInvalidDimensions, sourceWidth, sourceHeight, thumbWidth, thumbHeight)
	}

	widthRatio := float64(sourceWidth) / float64(thumbWidth)
	heightRatio := float64(sourceHeight) / float64(thumbHeight)
	ratio := math.Min(widthRatio, heightRatio)

	crop := Rect{
		Width:  int(math.Floor(float64(thumbWidth) * ratio)),
		Height: int(math.Floor(float64(thumbHeight) * ratio)),
	}
	if sourceWidth > sourceHeight {
		crop.X = int(math.Floor(float64(sourceWidth-crop.Width) / 2))
		crop.Y = int(math.Floor(float64(sourceHeight-crop.Height) / 3))
	}

	return Plan{
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
		TargetWidth:  float64(thumbWidth),
		TargetHeight: float64(thumbHeight),
		Crop:         &crop,
	}, nil
}
