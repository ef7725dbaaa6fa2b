// Package engine is the orchestrator composing chunking, embedding, vector
// storage, query strategies, reranking, and metrics behind the public
// IndexDocuments / Search entry points. It is the only place authorized to
// decide retry-vs-fail for an outer call.
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/chunker"
	"github.com/quarrylabs/quarry/pkg/embeddings"
	"github.com/quarrylabs/quarry/pkg/embeddings/cache"
	"github.com/quarrylabs/quarry/pkg/metrics"
	"github.com/quarrylabs/quarry/pkg/query"
	"github.com/quarrylabs/quarry/pkg/rerank"
	"github.com/quarrylabs/quarry/pkg/synonyms"
	"github.com/quarrylabs/quarry/pkg/vector"
)

// Engine is the retrieval engine's public surface. The CLI and any protocol
// server call only IndexDocuments, Search, MetricsSummary, Quality, and
// RecordFeedback.
type Engine struct {
	embedder *cache.CachedEmbedder
	store    vector.Store
	chunker  *chunker.Chunker
	queries  *query.Engine
	reranker *rerank.Reranker
	tracker  *metrics.Tracker
	batcher  *batcher
	logger   *zap.Logger
}

// Config holds engine construction options.
type Config struct {
	// CacheSize bounds the embedding cache entry count.
	// Zero uses the cache package default.
	CacheSize int

	// RRFK is the reciprocal-rank-fusion constant. Zero uses the default.
	RRFK float64

	// RerankWeights combine the rerank signals. Zero value uses the
	// defaults.
	RerankWeights rerank.Weights

	// Synonyms is the loaded synonym mapping for query transformation.
	Synonyms synonyms.Mapping
}

// New creates an engine. The embedding cache is created here, one per
// engine instance; there is no process-wide cache.
func New(embedder embeddings.Embedder, store vector.Store, cfg Config, logger *zap.Logger) (*Engine, error) {
	cached, err := cache.New(embedder, cfg.CacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}

	weights := cfg.RerankWeights
	if weights == (rerank.Weights{}) {
		weights = rerank.DefaultWeights()
	}
	reranker, err := rerank.New(weights, logger)
	if err != nil {
		return nil, fmt.Errorf("creating reranker: %w", err)
	}

	return &Engine{
		embedder: cached,
		store:    store,
		chunker:  chunker.New(cached, logger),
		queries:  query.New(cached, store, query.Config{RRFK: cfg.RRFK, Synonyms: cfg.Synonyms}, logger),
		reranker: reranker,
		tracker:  metrics.NewTracker(),
		batcher:  newBatcher(),
		logger:   logger,
	}, nil
}

// MetricsSummary returns the accumulated search metrics.
func (e *Engine) MetricsSummary() metrics.Summary {
	return e.tracker.Summary()
}

// Quality returns retrieval-quality statistics at the given cutoff.
func (e *Engine) Quality(k int) metrics.QualitySummary {
	return e.tracker.Quality(k)
}

// RecordFeedback records user feedback (clicks, ratings) for the ranked ids
// a search returned.
func (e *Engine) RecordFeedback(returnedIDs, clickedIDs []string, ratings map[string]float64) {
	e.tracker.RecordFeedback(returnedIDs, clickedIDs, ratings)
}

// CacheStats returns the embedding cache counters.
func (e *Engine) CacheStats() cache.Stats {
	return e.embedder.Stats()
}

// Close releases the engine's resources.
func (e *Engine) Close() error {
	embErr := e.embedder.Close()
	storeErr := e.store.Close()
	if embErr != nil {
		return embErr
	}
	return storeErr
}
