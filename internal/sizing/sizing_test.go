package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanFullImage(t *testing.T) {
	tests := []struct {
		name           string
		width, height  int
		maxWidth       int
		expectedWidth  float64
		expectedHeight float64
	}{
		{"wide source is scaled down", 4000, 2000, 1280, 1280, 640},
		{"narrow source is unchanged", 800, 400, 1280, 800, 400},
		{"source at threshold is unchanged", 1280, 720, 1280, 1280, 720},
		{"fractional height is kept", 3000, 1001, 1280, 1280, 1280.0 * 1001 / 3000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := PlanFullImage(tt.width, tt.height, tt.maxWidth)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedWidth, plan.TargetWidth)
			assert.InDelta(t, tt.expectedHeight, plan.TargetHeight, 1e-9)
			assert.Nil(t, plan.Crop)
			assert.False(t, plan.Upscales())
		})
	}
}

func TestPlanFullImageSize(t *testing.T) {
	plan, err := PlanFullImage(3000, 1001, 1280)
	require.NoError(t, err)

	w, h := plan.Size()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 427, h)
}

func TestPlanThumbnailLandscape(t *testing.T) {
	plan, err := PlanThumbnail(1920, 1080, 200, 200)
	require.NoError(t, err)

	require.NotNil(t, plan.Crop)
	assert.Equal(t, Rect{X: 420, Y: 0, Width: 1080, Height: 1080}, *plan.Crop)
	w, h := plan.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 200, h)
}

func TestPlanThumbnailPortrait(t *testing.T) {
	plan, err := PlanThumbnail(600, 1200, 200, 200)
	require.NoError(t, err)

	require.NotNil(t, plan.Crop)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 600, Height: 600}, *plan.Crop)
}

func TestPlanThumbnailLandscapeBiasesTowardTopThird(t *testing.T) {
	// ratio = min(2000/200, 900/100) = 9 -> crop 1800x900
	plan, err := PlanThumbnail(2000, 900, 200, 100)
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 100, Y: 0, Width: 1800, Height: 900}, *plan.Crop)

	// ratio = min(1000/400, 800/100) = 2.5 -> crop 1000x250, y = floor(550/3)
	plan, err = PlanThumbnail(1000, 800, 400, 100)
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 0, Y: 183, Width: 1000, Height: 250}, *plan.Crop)
}

func TestPlanThumbnailSquareUsesTopLeft(t *testing.T) {
	plan, err := PlanThumbnail(500, 500, 200, 100)
	require.NoError(t, err)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 500, Height: 250}, *plan.Crop)
}

func TestPlansAreIdempotent(t *testing.T) {
	first, err := PlanThumbnail(1234, 567, 200, 200)
	require.NoError(t, err)
	second, err := PlanThumbnail(1234, 567, 200, 200)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	full1, err := PlanFullImage(1234, 567, 1000)
	require.NoError(t, err)
	full2, err := PlanFullImage(1234, 567, 1000)
	require.NoError(t, err)
	assert.Equal(t, full1, full2)
}

func TestInvalidDimensions(t *testing.T) {
	_, err := PlanFullImage(0, 100, 1280)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = PlanThumbnail(100, 100, 0, 200)
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = PlanThumbnail(-1, 100, 200, 200)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}
