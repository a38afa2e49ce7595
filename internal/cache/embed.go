// Package cache keeps embed classification results in Redis so repeated
// links skip the network round trips.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-preview-pipeline/internal/embed"
)

const embedKeyPrefix = "embed:"

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 6 * time.Hour

// EmbedCache implements embed.Cache on Redis.
type EmbedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEmbedCache creates a cache over an existing Redis client.
func NewEmbedCache(client *redis.Client, ttl time.Duration) *EmbedCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmbedCache{client: client, ttl: ttl}
}

// Key returns the Redis key for a link.
func Key(link string) string {
	sum := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%s%s", embedKeyPrefix, hex.EncodeToString(sum[:]))
}

// Get returns a cached result. A missing key is not an error.
func (c *EmbedCache) Get(ctx context.Context, link string) (embed.Embeddability, bool, error) {
	data, err := c.client.Get(ctx, Key(link)).Bytes()
	if errors.Is(err, redis.Nil) {
		return embed.Embeddability{}, false, nil
	}
	if err != nil {
		return embed.Embeddability{}, false, err
	}

	var e embed.Embeddability
	if err := json.Unmarshal(data, &e); err != nil {
		return embed.Embeddability{}, false, fmt.Errorf("decode cached embeddability: %w", err)
	}
	return e, true, nil
}

// Set stores a result with the cache TTL.
func (c *EmbedCache) Set(ctx context.Context, link string, e embed.Embeddability) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.client.SetEx(ctx, Key(link), data, c.ttl).Err()
}

// Ping checks connectivity.
func (c *EmbedCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
