// Package retrieval ranks a persona's recollections against an utterance.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hrygo/personaflow/internal/observability"
	"github.com/hrygo/personaflow/plugin/ai/recollection"
	"github.com/hrygo/personaflow/plugin/ai/timeout"
)

const (
	// DefaultRelevanceFloor is the minimum relevance a recollection needs to be used.
	DefaultRelevanceFloor = 0.3
	// DefaultLimit caps how many recollections one retrieval returns.
	DefaultLimit = 3
	// maxQueryRunes bounds the text sent to the embedder.
	maxQueryRunes = 1000
)

// Retriever issues similarity queries and applies the relevance floor.
type Retriever struct {
	store        recollection.Store
	floor        float64
	defaultLimit int
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithRelevanceFloor sets the inclusive relevance floor.
func WithRelevanceFloor(floor float64) Option {
	return func(r *Retriever) {
		r.floor = floor
	}
}

// WithDefaultLimit sets the limit used when Retrieve is called with limit <= 0.
func WithDefaultLimit(limit int) Option {
	return func(r *Retriever) {
		if limit > 0 {
			r.defaultLimit = limit
		}
	}
}

// NewRetriever creates a Retriever over st.
func NewRetriever(st recollection.Store, opts ...Option) *Retriever {
	r := &Retriever{
		store:        st,
		floor:        DefaultRelevanceFloor,
		defaultLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Floor returns the configured relevance floor.
func (r *Retriever) Floor() float64 {
	return r.floor
}

// Retrieve returns at most limit recollections with relevance >= the floor,
// in descending relevance order. Each result is a copy the caller may keep.
// A persona with nothing stored yields an empty list.
func (r *Retriever) Retrieve(ctx context.Context, personaID, query string, limit int) ([]*recollection.Recollection, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	logger := slog.Default()
	if reqCtx, ok := observability.FromContext(ctx); ok {
		logger = reqCtx.ForStage("retrieve").WithFields()
	}

	if runes := []rune(query); len(runes) > maxQueryRunes {
		logger.Warn("Retriever: query truncated", "runes", len(runes), "max", maxQueryRunes)
		query = string(runes[:maxQueryRunes])
	}

	ctx, cancel := context.WithTimeout(ctx, timeout.RetrievalTimeout)
	defer cancel()

	start := time.Now()
	candidates, err := r.store.Query(ctx, personaID, query, recollection.QueryOptions{
		K:            limit,
		MinRelevance: r.floor,
	})
	if err != nil {
		logger.Error("Retriever: query failed", "persona_id", personaID, "error", err)
		return nil, fmt.Errorf("query recollections for persona %s: %w", personaID, err)
	}

	results := make([]*recollection.Recollection, 0, min(limit, len(candidates)))
	for _, c := range candidates {
		if c.Relevance < r.floor {
			continue
		}
		results = append(results, c.Clone())
	}
	recollection.SortByRelevance(results)
	if len(results) > limit {
		results = results[:limit]
	}

	logger.Info("Retriever: completed",
		"persona_id", personaID,
		"candidates", len(candidates),
		"returned", len(results),
		observability.LogFieldDuration, time.Since(start).Milliseconds(),
	)
	return results, nil
}
