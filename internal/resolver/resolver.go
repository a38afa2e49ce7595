// Package resolver follows HTTP redirects by hand so every hop can be
// inspected, bounded and loop-checked.
package resolver

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	// MaxHops is the longest redirect chain the resolver will follow.
	MaxHops = 10

	// DefaultTimeout bounds each individual request.
	DefaultTimeout = 5 * time.Second

	// UserAgent is sent on every hop; some sites refuse non-browser agents.
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_11_6) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/54.0.2840.71 Safari/537.36"

	maxBodyBytes = 2 << 20
)

// ResolvedResponse is one hop of a redirect chain.
type ResolvedResponse struct {
	URL        *url.URL
	StatusCode int
	Header     http.Header
	Body       []byte
	Redirected bool
}

// Chain is the ordered list of hops, first request first.
type Chain []*ResolvedResponse

// Last returns the final hop, or nil for an empty chain.
func (c Chain) Last() *ResolvedResponse {
	if len(c) == 0 {
		return nil
	}
	return c[len(c)-1]
}

func (c Chain) contains(u *url.URL) bool {
	href := Normalize(u)
	for _, r := range c {
		if Normalize(r.URL) == href {
			return true
		}
	}
	return false
}

// Resolver performs redirect resolution.
type Resolver struct {
	timeout   time.Duration
	transport http.RoundTripper
	logger    *zap.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(r *Resolver) {
		r.transport = rt
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		timeout:   DefaultTimeout,
		transport: http.DefaultTransport,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve requests link and follows Location headers. It reports whether the
// chain ended in a non-error response, and returns every hop made. Network
// failures, status >= 400, loops and chains longer than MaxHops all yield
// reachable=false; no error is surfaced.
func (r *Resolver) Resolve(ctx context.Context, link string) (bool, Chain) {
	start, err := url.Parse(link)
	if err != nil || start.Scheme == "" || start.Host == "" {
		r.logger.Debug("unparseable link", zap.String("link", link))
		return false, nil
	}

	// Cookies set on one hop are needed by later hops on some sites
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return false, nil
	}
	client := &http.Client{
		Transport: r.transport,
		Jar:       jar,
		Timeout:   r.timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	var chain Chain
	current := start
	for {
		resp, err := r.fetch(ctx, client, current)
		if err != nil {
			r.logger.Debug("request failed", zap.String("url", current.String()), zap.Error(err))
			return false, chain
		}
		chain = append(chain, resp)

		if resp.StatusCode >= http.StatusBadRequest {
			return false, chain
		}

		location := resp.Header.Get("Location")
		if location == "" {
			return true, chain
		}

		next, err := current.Parse(location)
		if err != nil {
			r.logger.Debug("bad location header", zap.String("location", location), zap.Error(err))
			return false, chain
		}
		if chain.contains(next) {
			r.logger.Debug("redirect loop", zap.String("url", next.String()))
			return false, chain
		}
		if len(chain) >= MaxHops {
			r.logger.Debug("redirect limit reached", zap.String("link", link))
			return false, chain
		}

		resp.Redirected = true
		current = next
	}
}

func (r *Resolver) fetch(ctx context.Context, client *http.Client, u *url.URL) (*ResolvedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	return &ResolvedResponse{
		URL:        u,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Normalize returns the href used for URL comparisons. An empty path is
// treated as "/" so "http://a.com" and "http://a.com/" are the same page.
func Normalize(u *url.URL) string {
	if u == nil {
		return ""
	}
	c := *u
	if c.Path == "" && c.Opaque == "" {
		c.Path = "/"
	}
	c.Fragment = ""
	return c.String()
}
