package embedding

import (
	"context"
	"time"

	"github.com/Sand004/enterprise-rag-system/internal/cache"
)

// CachedProvider wraps a Provider with the shared cache manager.
// Embedding calls are the most expensive per-query step, so their TTL
// is long; the model version in the key handles upgrades.
type CachedProvider struct {
	inner Provider
	cache *cache.Manager
	ttl   time.Duration
}

// NewCachedProvider wraps inner with a cache tier.
func NewCachedProvider(inner Provider, manager *cache.Manager, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: manager, ttl: ttl}
}

// Embed returns the cached vector for text, computing it through the
// inner provider on a miss. Concurrent requests for the same text share
// one provider call.
func (p *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	key := cache.Key("embedding", p.inner.ModelVersion(), text)
	payload, err := p.cache.GetOrCompute(ctx, key, p.ttl, func(ctx context.Context) ([]byte, error) {
		vec, err := p.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return EncodeVector(vec), nil
	})
	if err != nil {
		return nil, err
	}
	return DecodeVector(payload)
}

// ModelVersion reports the inner provider's model version.
func (p *CachedProvider) ModelVersion() string {
	return p.inner.ModelVersion()
}
