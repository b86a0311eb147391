package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/docconvert/internal/cache"
)

// CachedProvider remembers vectors by model and text so a retried attempt
// does not pay for chunks it already embedded.
type CachedProvider struct {
	next  Provider
	cache *cache.Cache
	ttl   time.Duration
}

func NewCachedProvider(next Provider, c *cache.Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl}
}

func (p *CachedProvider) Name() string { return p.next.Name() }

func (p *CachedProvider) GenerateEmbedding(ctx context.Context, model string, input []string) ([][]float32, error) {
	keys := make([]string, len(input))
	for i, text := range input {
		keys[i] = cacheKey(model, text)
	}

	out := make([][]float32, len(input))
	hits, err := p.cache.GetMany(ctx, keys, func(i int) interface{} { return &out[i] })
	if err != nil {
		slog.Warn("embedding cache unavailable", "error", err)
		hits = make([]bool, len(input))
	}

	var missIdx []int
	var missText []string
	for i, hit := range hits {
		if !hit {
			missIdx = append(missIdx, i)
			missText = append(missText, input[i])
		}
	}
	if len(missText) == 0 {
		return out, nil
	}

	vecs, err := p.next.GenerateEmbedding(ctx, model, missText)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missText) {
		return nil, fmt.Errorf("%s returned %d embeddings for %d inputs", p.next.Name(), len(vecs), len(missText))
	}

	fresh := make(map[string]interface{}, len(vecs))
	for j, i := range missIdx {
		out[i] = vecs[j]
		fresh[keys[i]] = vecs[j]
	}
	if err := p.cache.SetMany(ctx, fresh, p.ttl); err != nil {
		slog.Warn("failed to cache embeddings", "error", err)
	}
	return out, nil
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(h[:])
}
