package screenshot

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeFillsDefaults(t *testing.T) {
	c := New()
	defer c.Close()

	got := c.merge(Options{Width: 800})
	assert.Equal(t, 800, got.Width)
	assert.Equal(t, 1280, got.Height)
	assert.Equal(t, 30*time.Second, got.Timeout)
	assert.Equal(t, 2*time.Second, got.RenderDelay)
	assert.Equal(t, 100, got.Quality)

	got = c.merge(Options{RenderDelay: -1, Quality: 150})
	assert.Equal(t, time.Duration(0), got.RenderDelay)
	assert.Equal(t, 100, got.Quality)
}

func TestCaptureFailsWithoutBrowser(t *testing.T) {
	c := New(WithExecPath(filepath.Join(t.TempDir(), "no-chrome")))
	defer c.Close()

	err := c.Capture(context.Background(), "http://example.com", filepath.Join(t.TempDir(), "shot.jpg"), Options{
		Timeout:     2 * time.Second,
		RenderDelay: -1,
	})
	assert.Error(t, err)
}
