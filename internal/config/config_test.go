package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendFilesystem, cfg.StorageBackend)
	assert.Equal(t, 1280, cfg.ImageWidth)
	assert.Equal(t, 200, cfg.ThumbnailWidth)
	assert.Equal(t, 200, cfg.ThumbnailHeight)
	assert.Equal(t, 5*time.Second, cfg.ResolverTimeout)
	assert.Equal(t, 4, cfg.DBOSConcurrency)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "S3")
	t.Setenv("S3_BUCKET", "previews")
	t.Setenv("THUMBNAIL_WIDTH", "320")
	t.Setenv("SCREENSHOT_RENDER_DELAY", "7500ms")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, BackendS3, cfg.StorageBackend)
	assert.Equal(t, "previews", cfg.S3Bucket)
	assert.Equal(t, 320, cfg.ThumbnailWidth)
	assert.Equal(t, 7500*time.Millisecond, cfg.ScreenshotRenderDelay)
}

func TestValidate(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "s3")
	_, err := FromViper(viper.New())
	assert.ErrorContains(t, err, "S3_BUCKET")

	t.Setenv("STORAGE_BACKEND", "tape")
	_, err = FromViper(viper.New())
	assert.ErrorContains(t, err, "unknown STORAGE_BACKEND")
}

func TestEmbedPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("disallow_embed:\n  - '^https://blocked\\.example/'\n"), 0o644))
	t.Setenv("EMBED_POLICY_FILE", path)

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	policy, err := cfg.EmbedPolicy()
	require.NoError(t, err)
	require.Len(t, policy.DisallowEmbed, 1)
	assert.True(t, policy.DisallowEmbed[0].MatchString("https://blocked.example/x"))
}
