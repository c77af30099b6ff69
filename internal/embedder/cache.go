package embedder

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default capacity of the embedding cache.
const DefaultCacheSize = 1024

// CachingEmbedder wraps an Embedder with a bounded, evicting LRU cache keyed
// by the exact input text. Embedders are deterministic for identical input
// and model version, so exact-key lookups are sound; the bound keeps memory
// flat no matter how many distinct queries a process sees.
//
// Within one pipeline run this also collapses the repeated query embedding
// performed by the late-interaction stage into a single upstream call.
type CachingEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachingEmbedder creates a caching decorator around inner with the given
// capacity (entries, not bytes). A non-positive size falls back to
// DefaultCacheSize.
func NewCachingEmbedder(inner Embedder, size int) (*CachingEmbedder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachingEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding and caching on miss.
func (e *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cache.Get(text); ok {
		return vec, nil
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, vec)
	return vec, nil
}

// EmbedBatch serves cached entries and forwards only the misses to the inner
// embedder in one batch call.
func (e *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, text := range texts {
		if vec, ok := e.cache.Get(text); ok {
			embeddings[i] = vec
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		missed, err := e.inner.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range missed {
			embeddings[missIdx[j]] = vec
			e.cache.Add(missTexts[j], vec)
		}
	}

	return embeddings, nil
}

// Dimension returns the inner embedder's dimensionality.
func (e *CachingEmbedder) Dimension() int {
	return e.inner.Dimension()
}

// ModelName returns the inner embedder's model name.
func (e *CachingEmbedder) ModelName() string {
	return e.inner.ModelName()
}

// Ensure CachingEmbedder implements Embedder interface.
var _ Embedder = (*CachingEmbedder)(nil)
