package ai

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// cachedEmbeddingService memoizes single-text embeddings.
// Retrieval embeds the raw utterance, and users repeat themselves often.
type cachedEmbeddingService struct {
	EmbeddingService
	cache *ristretto.Cache
}

// NewCachedEmbeddingService wraps svc with a ristretto cache holding up to maxItems vectors.
func NewCachedEmbeddingService(svc EmbeddingService, maxItems int) (EmbeddingService, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxItems) * 10,
		MaxCost:     int64(maxItems),
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &cachedEmbeddingService{EmbeddingService: svc, cache: cache}, nil
}

func (s *cachedEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := s.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := s.EmbeddingService.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache.Set(text, vec, 1)
	return vec, nil
}

// Wait blocks until pending cache writes are visible.
func (s *cachedEmbeddingService) Wait() {
	s.cache.Wait()
}
