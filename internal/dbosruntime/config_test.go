package dbosruntime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://localhost/dbos"}
	cfg.WithDefaults()

	assert.Equal(t, "preview-pipeline", cfg.AppName)
	assert.Equal(t, "previews", cfg.QueueName)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestConfigWithDefaultsKeepsValues(t *testing.T) {
	cfg := Config{AppName: "worker", QueueName: "q", Concurrency: -1}
	cfg.WithDefaults()

	assert.Equal(t, "worker", cfg.AppName)
	assert.Equal(t, "q", cfg.QueueName)
	assert.Equal(t, -1, cfg.Concurrency)
}

func TestNewRuntimeRequiresDatabaseURL(t *testing.T) {
	_, err := NewRuntime(context.Background(), Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DBOS_SYSTEM_DATABASE_URL")
}
