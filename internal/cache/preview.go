package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const previewKeyPrefix = "cbtimport:preview:"

const DefaultPreviewTTL = 30 * time.Minute

// PreviewStore keeps rendered preview payloads keyed by document digest.
type PreviewStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte) error
}

// PreviewKey derives the cache key for a document. kind separates inputs that
// happen to share bytes but are read differently (html, xlsx).
func PreviewKey(kind string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(body)
	return previewKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

type RedisPreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPreviewCache(c *Cache, ttl time.Duration) *RedisPreviewCache {
	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	return &RedisPreviewCache{client: c.Client, ttl: ttl}
}

func (p *RedisPreviewCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get preview: %w", err)
	}
	return raw, true, nil
}

func (p *RedisPreviewCache) Set(ctx context.Context, key string, payload []byte) error {
	if err := p.client.Set(ctx, key, payload, p.ttl).Err(); err != nil {
		return fmt.Errorf("set preview: %w", err)
	}
	return nil
}

// NoopPreviewCache is used when no Redis URL is configured.
type NoopPreviewCache struct{}

func (NoopPreviewCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NoopPreviewCache) Set(context.Context, string, []byte) error         { return nil }
