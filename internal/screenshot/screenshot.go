// Package screenshot renders web pages with headless Chrome.
package screenshot

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/resolver"
)

// Options control one capture.
type Options struct {
	Width       int
	Height      int
	Timeout     time.Duration
	RenderDelay time.Duration
	Quality     int
	FullPage    bool
}

// DefaultOptions returns a 1280x1280 JPEG capture after a short render delay.
func DefaultOptions() Options {
	return Options{
		Width:       1280,
		Height:      1280,
		Timeout:     30 * time.Second,
		RenderDelay: 2 * time.Second,
		Quality:     100,
	}
}

// Chrome captures screenshots through a shared browser allocator.
type Chrome struct {
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
	defaults    Options
	logger      *zap.Logger
}

// Option configures Chrome.
type Option func(*chromeConfig)

type chromeConfig struct {
	execPath string
	defaults Options
	logger   *zap.Logger
}

// WithExecPath points at a specific Chrome binary.
func WithExecPath(path string) Option {
	return func(c *chromeConfig) {
		c.execPath = path
	}
}

// WithDefaults replaces the default capture options.
func WithDefaults(o Options) Option {
	return func(c *chromeConfig) {
		c.defaults = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *chromeConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates the allocator. Chrome itself starts on the first capture.
func New(opts ...Option) *Chrome {
	cfg := chromeConfig{defaults: DefaultOptions(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.UserAgent(resolver.UserAgent),
	)
	if cfg.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.execPath))
	}
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)

	return &Chrome{
		allocCtx:    allocCtx,
		cancelAlloc: cancel,
		defaults:    cfg.defaults,
		logger:      cfg.logger,
	}
}

// Defaults returns the options used for zero-valued fields.
func (c *Chrome) Defaults() Options {
	return c.defaults
}

// Capture renders link and writes the image to outPath.
func (c *Chrome) Capture(ctx context.Context, link, outPath string, opts Options) error {
	opts = c.merge(opts)

	taskCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()
	taskCtx, cancel = context.WithTimeout(taskCtx, opts.Timeout+opts.RenderDelay)
	defer cancel()

	// Tie the browser tab to the caller's context as well
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var buf []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			white := &cdp.RGBA{R: 255, G: 255, B: 255, A: 1}
			return emulation.SetDefaultBackgroundColorOverride().WithColor(white).Do(ctx)
		}),
		chromedp.Navigate(link),
		chromedp.Sleep(opts.RenderDelay),
	}
	if opts.FullPage {
		tasks = append(tasks, chromedp.FullScreenshot(&buf, opts.Quality))
	} else {
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatJpeg).
				WithQuality(int64(opts.Quality)).
				Do(ctx)
			return err
		}))
	}

	start := time.Now()
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return fmt.Errorf("capture %s: %w", link, err)
	}

	if err := os.WriteFile(outPath, buf, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}

	c.logger.Info("screenshot captured",
		zap.String("url", link),
		zap.Int("bytes", len(buf)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// Close shuts down the browser.
func (c *Chrome) Close() {
	c.cancelAlloc()
}

func (c *Chrome) merge(o Options) Options {
	if o.Width <= 0 {
		o.Width = c.defaults.Width
	}
	if o.Height <= 0 {
		o.Height = c.defaults.Height
	}
	if o.Timeout <= 0 {
		o.Timeout = c.defaults.Timeout
	}
	if o.RenderDelay < 0 {
		o.RenderDelay = 0
	} else if o.RenderDelay == 0 {
		o.RenderDelay = c.defaults.RenderDelay
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = c.defaults.Quality
	}
	return o
}
