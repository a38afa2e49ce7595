// Package download fetches job sources and preview images to local disk.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/tendant/simple-preview-pipeline/internal/resolver"
	"github.com/tendant/simple-preview-pipeline/internal/storage"
)

// DefaultTimeout bounds a whole download.
const DefaultTimeout = 60 * time.Second

// ErrBadStatus is returned for HTTP responses with status >= 400.
var ErrBadStatus = errors.New("unexpected HTTP status")

// Downloader writes remote objects into a job directory.
type Downloader struct {
	store     storage.ObjectStore
	transport http.RoundTripper
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithStore lets the downloader read URIs owned by store.
func WithStore(store storage.ObjectStore) Option {
	return func(d *Downloader) {
		d.store = store
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(d *Downloader) {
		d.transport = rt
	}
}

// WithTimeout overrides the download timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New creates a downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		transport: http.DefaultTransport,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download stores uri at dir/filename and returns the path and MIME type.
// The MIME type comes from the response or object metadata, parameters
// stripped; it is sniffed from the bytes when absent or generic.
func (d *Downloader) Download(ctx context.Context, uri, dir, filename string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var (
		body        io.ReadCloser
		contentType string
		err         error
	)
	if d.store != nil && d.store.Owns(uri) {
		body, contentType, err = d.fromStore(ctx, uri)
	} else {
		body, contentType, err = d.fromHTTP(ctx, uri)
	}
	if err != nil {
		return "", "", err
	}
	defer body.Close()

	path := filepath.Join(dir, filepath.Base(filename))
	out, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", "", fmt.Errorf("write %s: %w", path, err)
	}

	mimeType := ParseContentType(contentType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		if mt, err := mimetype.DetectFile(path); err == nil {
			mimeType = ParseContentType(mt.String())
		}
	}

	d.logger.Debug("downloaded",
		zap.String("uri", uri),
		zap.String("path", path),
		zap.String("mime", mimeType),
		zap.Int64("bytes", n),
	)
	return path, mimeType, nil
}

func (d *Downloader) fromStore(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	md, err := d.store.Head(ctx, uri)
	if err != nil {
		return nil, "", fmt.Errorf("head %s: %w", uri, err)
	}
	body, err := d.store.Get(ctx, uri)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", uri, err)
	}
	return body, md.ContentType, nil
}

func (d *Downloader) fromHTTP(ctx context.Context, uri string) (io.ReadCloser, string, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, "", err
	}
	client := &http.Client{Transport: d.transport, Jar: jar}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request for %s: %w", uri, err)
	}
	req.Header.Set("User-Agent", resolver.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", uri, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		resp.Body.Close()
		return nil, "", fmt.Errorf("download %s: %w: %d", uri, ErrBadStatus, resp.StatusCode)
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// ParseContentType strips parameters from a Content-Type value.
func ParseContentType(v string) string {
	if v == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(v); err == nil {
		return mt
	}
	return strings.ToLower(strings.TrimSpace(strings.SplitN(v, ";", 2)[0]))
}
