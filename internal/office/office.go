// Package office converts office documents to PDF with LibreOffice and
// rasterizes PDF pages with poppler.
package office

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds each conversion.
const DefaultTimeout = 200 * time.Second

// DefaultDPI is the resolution used when rasterizing PDF pages.
const DefaultDPI = 150

// ErrNoOutput is returned when a converter exits cleanly without writing its output.
var ErrNoOutput = errors.New("converter produced no output")

// Converter runs soffice and pdftoppm.
type Converter struct {
	sofficePath  string
	pdftoppmPath string
	timeout      time.Duration
	dpi          int
	logger       *zap.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithBinaries overrides the soffice and pdftoppm executables.
func WithBinaries(soffice, pdftoppm string) Option {
	return func(c *Converter) {
		if soffice != "" {
			c.sofficePath = soffice
		}
		if pdftoppm != "" {
			c.pdftoppmPath = pdftoppm
		}
	}
}

// WithTimeout overrides the conversion timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Converter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Converter) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a converter.
func New(opts ...Option) *Converter {
	c := &Converter{
		sofficePath:  "soffice",
		pdftoppmPath: "pdftoppm",
		timeout:      DefaultTimeout,
		dpi:          DefaultDPI,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConvertToPDF converts the document at path into outDir and returns the
// PDF path. LibreOffice needs a writable home, so outDir doubles as HOME.
func (c *Converter) ConvertToPDF(ctx context.Context, path, outDir string) (string, error) {
	env := append(os.Environ(), "HOME="+outDir)
	if err := c.run(ctx, env, c.sofficePath,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		path,
	); err != nil {
		return "", fmt.Errorf("convert to pdf: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	pdfPath := filepath.Join(outDir, base+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return "", fmt.Errorf("convert to pdf: %w", ErrNoOutput)
	}
	return pdfPath, nil
}

// RasterizeFirstPage renders page one of the PDF to a PNG next to it.
func (c *Converter) RasterizeFirstPage(ctx context.Context, pdfPath string) (string, error) {
	prefix := strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + "_page1"
	if err := c.run(ctx, nil, c.pdftoppmPath,
		"-png",
		"-f", "1",
		"-l", "1",
		"-r", strconv.Itoa(c.dpi),
		"-singlefile",
		pdfPath,
		prefix,
	); err != nil {
		return "", fmt.Errorf("rasterize pdf: %w", err)
	}

	pngPath := prefix + ".png"
	if _, err := os.Stat(pngPath); err != nil {
		return "", fmt.Errorf("rasterize pdf: %w", ErrNoOutput)
	}
	return pngPath, nil
}

func (c *Converter) run(ctx context.Context, env []string, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	c.logger.Debug("running command", zap.String("cmd", name), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", name, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
