// Package embed decides whether a link may be shown inside an iframe, per
// protocol, and which URL should be framed.
package embed

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/tendant/simple-preview-pipeline/internal/resolver"
)

// Decision is the outcome for one protocol. EmbedURL is set only when the
// link should be framed through a different URL.
type Decision struct {
	Embeddable bool   `json:"embeddable"`
	EmbedURL   string `json:"embed_url,omitempty"`
}

// Embeddability holds both protocol decisions for a link.
type Embeddability struct {
	HTTP  Decision `json:"http"`
	HTTPS Decision `json:"https"`
}

// Cache stores classification results between jobs.
type Cache interface {
	Get(ctx context.Context, link string) (Embeddability, bool, error)
	Set(ctx context.Context, link string, e Embeddability) error
}

// Observer is notified of every per-protocol decision.
type Observer interface {
	ObserveEmbedDecision(protocol string, embeddable bool)
}

// Resolver follows redirects for a link.
type Resolver interface {
	Resolve(ctx context.Context, link string) (bool, resolver.Chain)
}

// Classifier computes Embeddability for links.
type Classifier struct {
	resolver Resolver
	policy   Policy
	cache    Cache
	observer Observer
	logger   *zap.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithPolicy replaces the default URL lists.
func WithPolicy(p Policy) Option {
	return func(c *Classifier) {
		c.policy = p
	}
}

// WithCache enables decision caching.
func WithCache(cache Cache) Option {
	return func(c *Classifier) {
		c.cache = cache
	}
}

// WithObserver registers a decision observer.
func WithObserver(o Observer) Option {
	return func(c *Classifier) {
		c.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClassifier creates a classifier backed by r.
func NewClassifier(r Resolver, opts ...Option) *Classifier {
	c := &Classifier{
		resolver: r,
		policy:   DefaultPolicy(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: anything that goes wrong counts as not embeddable.
func (c *Classifier) Classify(ctx context.Context, link string) Embeddability {
	if matchAny(c.policy.DisallowEmbed, link) {
		c.logger.Debug("embedding disallowed", zap.String("link", link))
		return Embeddability{}
	}

	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, link)
		if err != nil {
			c.logger.Warn("embed cache read failed", zap.String("link", link), zap.Error(err))
		} else if ok {
			return cached
		}
	}

	httpDecision, httpReached := c.classifyProtocol(ctx, link, "http")
	httpsDecision, httpsReached := c.classifyProtocol(ctx, link, "https")
	result := Embeddability{HTTP: httpDecision, HTTPS: httpsDecision}

	// Unreachable links may be a transient failure; only cache complete answers
	if c.cache != nil && ctx.Err() == nil && httpReached && httpsReached {
		if err := c.cache.Set(ctx, link, result); err != nil {
			c.logger.Warn("embed cache write failed", zap.String("link", link), zap.Error(err))
		}
	}
	return result
}

func (c *Classifier) classifyProtocol(ctx context.Context, link, protocol string) (Decision, bool) {
	d, reached := c.decide(ctx, link, protocol)
	if c.observer != nil {
		c.observer.ObserveEmbedDecision(protocol, d.Embeddable)
	}
	return d, reached
}

// decide reports the decision and whether the resolver reached the link.
func (c *Classifier) decide(ctx context.Context, link, protocol string) (Decision, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return Decision{}, true
	}
	rewritten := *u
	rewritten.Scheme = protocol
	requested := rewritten.String()

	reachable, chain := c.resolver.Resolve(ctx, requested)
	last := chain.Last()
	if !reachable || last == nil {
		return Decision{}, false
	}

	finalHref := resolver.Normalize(last.URL)

	switch {
	case last.URL.Scheme != protocol:
		return Decision{}, true

	case len(last.Header.Values("X-Frame-Options")) > 0:
		if !matchAny(c.policy.CheckEmbedURL, finalHref) {
			return Decision{}, true
		}
		embedURL := FindEmbedURL(last.Body, protocol+":")
		if embedURL == "" {
			c.logger.Debug("no alternate embed url", zap.String("url", finalHref))
			return Decision{}, true
		}
		return Decision{Embeddable: true, EmbedURL: embedURL}, true

	case finalHref != resolver.Normalize(&rewritten):
		return Decision{Embeddable: true, EmbedURL: finalHref}, true

	default:
		return Decision{Embeddable: true}, true
	}
}
