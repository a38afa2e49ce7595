package app

import (
	"context"
	"encoding/json"
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-preview-pipeline/internal/config"
	"github.com/tendant/simple-preview-pipeline/internal/storage"
	"github.com/tendant/simple-preview-pipeline/internal/workflows"
	"github.com/tendant/simple-preview-pipeline/pkg/pipeline"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	t.Setenv("STORAGE_BACKEND", backend)
	t.Setenv("STORAGE_DIR", t.TempDir())
	t.Setenv("WORK_DIR", t.TempDir())
	cfg, err := config.FromViper(viper.New())
	require.NoError(t, err)
	return cfg
}

func TestBuildFilesystemPipelineRendersImage(t *testing.T) {
	cfg := testConfig(t, config.BackendFilesystem)
	reg := prometheus.NewRegistry()

	p, err := Build(context.Background(), cfg, reg, nil)
	require.NoError(t, err)
	defer p.Close()
	assert.Nil(t, p.Content)
	assert.Empty(t, p.Checks)

	src := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, imaging.Save(imaging.New(400, 300, color.NRGBA{R: 200, A: 255}), src))
	uri, err := p.Store.Put(context.Background(), src, storage.PutOptions{})
	require.NoError(t, err)

	result, err := p.Workflow.Execute(&workflows.WorkflowContext{
		Ctx:     context.Background(),
		Request: pipeline.ProcessRequest{Job: pipeline.JobPreview, SourceURI: uri},
		RunID:   "run-1",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, pipeline.StatusDone, result.Preview.Status)
	assert.True(t, strings.HasPrefix(result.Preview.Thumbnail, "file://"))

	var md map[string]interface{}
	require.NoError(t, json.Unmarshal(result.Preview.Metadata, &md))
	assert.Equal(t, float64(400), md["image_width"])
	assert.Equal(t, float64(300), md["image_height"])

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics.JobsTotal.WithLabelValues("image", pipeline.StatusDone)))
}

func TestBuildContentBackendExposesService(t *testing.T) {
	cfg := testConfig(t, config.BackendContent)

	p, err := Build(context.Background(), cfg, prometheus.NewRegistry(), nil)
	require.NoError(t, err)
	defer p.Close()
	assert.NotNil(t, p.Content)
}

func TestBuildRejectsMissingPolicyFile(t *testing.T) {
	cfg := testConfig(t, config.BackendFilesystem)
	cfg.EmbedPolicyFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := Build(context.Background(), cfg, prometheus.NewRegistry(), nil)
	assert.ErrorContains(t, err, "embed policy")
}
