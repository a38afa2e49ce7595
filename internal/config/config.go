// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tendant/simple-preview-pipeline/internal/embed"
)

// Storage backends.
const (
	BackendS3         = "s3"
	BackendFilesystem = "filesystem"
	BackendContent    = "content"
	BackendContentAPI = "content_api"
)

// Config stores all configuration for the pipeline binaries.
type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StorageBackend  string `mapstructure:"STORAGE_BACKEND"`
	StorageDir      string `mapstructure:"STORAGE_DIR"`
	S3Bucket        string `mapstructure:"S3_BUCKET"`
	S3Region        string `mapstructure:"S3_REGION"`
	S3Endpoint      string `mapstructure:"S3_ENDPOINT"`
	S3PublicBaseURL string `mapstructure:"S3_PUBLIC_BASE_URL"`
	ContentAPIURL   string `mapstructure:"CONTENT_API_URL"`

	DBOSDatabaseURL        string `mapstructure:"DBOS_SYSTEM_DATABASE_URL"`
	DBOSQueueName          string `mapstructure:"DBOS_QUEUE_NAME"`
	DBOSConcurrency        int    `mapstructure:"DBOS_CONCURRENCY"`
	DBOSApplicationVersion string `mapstructure:"DBOS_APPLICATION_VERSION"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	EmbedCacheTTL   time.Duration `mapstructure:"EMBED_CACHE_TTL"`
	EmbedPolicyFile string        `mapstructure:"EMBED_POLICY_FILE"`

	ImageWidth      int `mapstructure:"IMAGE_WIDTH"`
	ThumbnailWidth  int `mapstructure:"THUMBNAIL_WIDTH"`
	ThumbnailHeight int `mapstructure:"THUMBNAIL_HEIGHT"`

	ResolverTimeout       time.Duration `mapstructure:"RESOLVER_TIMEOUT"`
	ToolTimeout           time.Duration `mapstructure:"TOOL_TIMEOUT"`
	ScreenshotTimeout     time.Duration `mapstructure:"SCREENSHOT_TIMEOUT"`
	ScreenshotRenderDelay time.Duration `mapstructure:"SCREENSHOT_RENDER_DELAY"`
	ChromePath            string        `mapstructure:"CHROME_PATH"`

	WorkDir string `mapstructure:"WORK_DIR"`
}

var defaults = map[string]interface{}{
	"HTTP_ADDR":                ":8080",
	"LOG_LEVEL":                "info",
	"STORAGE_BACKEND":          BackendFilesystem,
	"STORAGE_DIR":              "./dev-data",
	"S3_BUCKET":                "",
	"S3_REGION":                "us-east-1",
	"S3_ENDPOINT":              "",
	"S3_PUBLIC_BASE_URL":       "",
	"CONTENT_API_URL":          "",
	"DBOS_SYSTEM_DATABASE_URL": "",
	"DBOS_QUEUE_NAME":          "previews",
	"DBOS_CONCURRENCY":         4,
	"DBOS_APPLICATION_VERSION": "",
	"REDIS_ADDR":               "",
	"EMBED_CACHE_TTL":          6 * time.Hour,
	"EMBED_POLICY_FILE":        "",
	"IMAGE_WIDTH":              1280,
	"THUMBNAIL_WIDTH":          200,
	"THUMBNAIL_HEIGHT":         200,
	"RESOLVER_TIMEOUT":         5 * time.Second,
	"TOOL_TIMEOUT":             200 * time.Second,
	"SCREENSHOT_TIMEOUT":       30 * time.Second,
	"SCREENSHOT_RENDER_DELAY":  2 * time.Second,
	"CHROME_PATH":              "",
	"WORK_DIR":                 "",
}

// Load reads a .env file when present, then the environment.
func Load() (*Config, error) {
	// Load .env file if it exists (silently ignore if not found)
	_ = godotenv.Load()
	return FromViper(viper.New())
}

// FromViper binds every key on v to the environment and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the s3 storage backend")
		}
	case BackendContentAPI:
		if c.ContentAPIURL == "" {
			return fmt.Errorf("CONTENT_API_URL is required for the content_api storage backend")
		}
	case BackendFilesystem, BackendContent:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}

	if c.ImageWidth <= 0 || c.ThumbnailWidth <= 0 || c.ThumbnailHeight <= 0 {
		return fmt.Errorf("image and thumbnail dimensions must be positive")
	}
	return nil
}

// EmbedPolicy returns the configured policy, or the built-in one when no
// policy file is set.
func (c *Config) EmbedPolicy() (embed.Policy, error) {
	if c.EmbedPolicyFile == "" {
		return embed.DefaultPolicy(), nil
	}
	return embed.LoadPolicy(c.EmbedPolicyFile)
}
