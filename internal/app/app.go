// Package app assembles the preview pipeline from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/simple-content/pkg/simplecontent"
	"github.com/tendant/simple-content/pkg/simplecontent/presets"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/cache"
	"github.com/tendant/simple-preview-pipeline/internal/config"
	"github.com/tendant/simple-preview-pipeline/internal/download"
	"github.com/tendant/simple-preview-pipeline/internal/embed"
	"github.com/tendant/simple-preview-pipeline/internal/handlers"
	"github.com/tendant/simple-preview-pipeline/internal/metrics"
	"github.com/tendant/simple-preview-pipeline/internal/office"
	"github.com/tendant/simple-preview-pipeline/internal/preview"
	"github.com/tendant/simple-preview-pipeline/internal/raster"
	"github.com/tendant/simple-preview-pipeline/internal/resolver"
	"github.com/tendant/simple-preview-pipeline/internal/screenshot"
	"github.com/tendant/simple-preview-pipeline/internal/storage"
	"github.com/tendant/simple-preview-pipeline/internal/video"
	"github.com/tendant/simple-preview-pipeline/internal/workflows"
)

// Owner and tenant of uploads to the embedded development content service
var (
	DevOwnerID  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	DevTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// Pipeline is a fully wired preview workflow and the resources it owns.
type Pipeline struct {
	Workflow *workflows.PreviewWorkflow
	Store    *storage.Mux
	Metrics  *metrics.Metrics
	Checks   map[string]handlers.HealthCheck

	// Content is set for the embedded simple-content backend
	Content simplecontent.Service

	closers []func()
}

// Build wires every collaborator named by cfg. Close releases them.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		Metrics: metrics.New(reg),
		Checks:  map[string]handlers.HealthCheck{},
	}

	primary, err := p.buildStore(ctx, cfg, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.Store = storage.NewMux(primary)

	policy, err := cfg.EmbedPolicy()
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("load embed policy: %w", err)
	}

	res := resolver.New(resolver.WithTimeout(cfg.ResolverTimeout), resolver.WithLogger(logger))
	classifierOpts := []embed.Option{
		embed.WithPolicy(policy),
		embed.WithObserver(p.Metrics),
		embed.WithLogger(logger),
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		embedCache := cache.NewEmbedCache(client, cfg.EmbedCacheTTL)
		classifierOpts = append(classifierOpts, embed.WithCache(embedCache))
		p.Checks["redis"] = embedCache.Ping
		p.closers = append(p.closers, func() { _ = client.Close() })
		logger.Info("embed decision cache enabled", zap.String("redis", cfg.RedisAddr))
	}

	shotOpts := screenshot.DefaultOptions()
	shotOpts.Timeout = cfg.ScreenshotTimeout
	shotOpts.RenderDelay = cfg.ScreenshotRenderDelay
	chromeOpts := []screenshot.Option{screenshot.WithDefaults(shotOpts), screenshot.WithLogger(logger)}
	if cfg.ChromePath != "" {
		chromeOpts = append(chromeOpts, screenshot.WithExecPath(cfg.ChromePath))
	}
	chrome := screenshot.New(chromeOpts...)
	p.closers = append(p.closers, chrome.Close)

	downloader := download.New(download.WithStore(p.Store), download.WithLogger(logger))

	dispatcher := preview.NewDispatcher(preview.Deps{
		Raster:     raster.New(logger),
		Video:      video.New(video.WithTimeouts(cfg.ToolTimeout, video.DefaultProbeTimeout), video.WithLogger(logger)),
		Documents:  office.New(office.WithTimeout(cfg.ToolTimeout), office.WithLogger(logger)),
		Screenshot: chrome,
		Downloader: downloader,
		Classifier: embed.NewClassifier(res, classifierOpts...),
		Resolver:   res,
	},
		preview.WithSizes(preview.Sizes{
			ImageWidth:      cfg.ImageWidth,
			ThumbnailWidth:  cfg.ThumbnailWidth,
			ThumbnailHeight: cfg.ThumbnailHeight,
		}),
		preview.WithScreenshotOptions(shotOpts),
		preview.WithLogger(logger),
	)

	p.Workflow = workflows.NewPreviewWorkflow(dispatcher, downloader, p.Store,
		workflows.WithObserver(p.Metrics),
		workflows.WithWorkDir(cfg.WorkDir),
		workflows.WithLogger(logger),
	)
	return p, nil
}

func (p *Pipeline) buildStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.ObjectStore, error) {
	switch cfg.StorageBackend {
	case config.BackendS3:
		logger.Info("using S3 storage", zap.String("bucket", cfg.S3Bucket), zap.String("region", cfg.S3Region))
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:        cfg.S3Bucket,
			Region:        cfg.S3Region,
			Endpoint:      cfg.S3Endpoint,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("init S3 storage: %w", err)
		}
		return store, nil

	case config.BackendContentAPI:
		logger.Info("using simple-content HTTP API", zap.String("url", cfg.ContentAPIURL))
		return storage.NewContentAPIStore(cfg.ContentAPIURL), nil

	case config.BackendContent:
		logger.Info("using embedded simple-content service", zap.String("dir", cfg.StorageDir))
		svc, cleanup, err := presets.NewDevelopment(presets.WithDevStorage(cfg.StorageDir))
		if err != nil {
			return nil, fmt.Errorf("init simple-content service: %w", err)
		}
		p.Content = svc
		p.closers = append(p.closers, cleanup)
		return storage.NewContentStore(svc, storage.WithOwner(DevOwnerID, DevTenantID)), nil

	default:
		logger.Info("using filesystem storage", zap.String("dir", cfg.StorageDir))
		store, err := storage.NewFilesystemStorage(cfg.StorageDir)
		if err != nil {
			return nil, fmt.Errorf("init filesystem storage: %w", err)
		}
		return store, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (p *Pipeline) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
	p.closers = nil
}
