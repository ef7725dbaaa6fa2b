package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/metrics"
	"github.com/quarrylabs/quarry/pkg/query"
)

// SearchRequest extends the query request with engine-level options.
type SearchRequest struct {
	query.Request

	// Rerank rescores the result page with term-overlap, title, and
	// freshness signals after retrieval.
	Rerank bool
}

// SearchContext describes what one search actually executed.
type SearchContext struct {
	Strategies []string      `json:"strategies"`
	SubQueries []string      `json:"sub_queries,omitempty"`
	QueryTime  time.Duration `json:"query_time"`
}

// Search runs the requested strategy and records latency, strategy, and
// cache-effectiveness metrics for the call.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]query.SearchResult, *SearchContext, error) {
	if req.Strategy == "" {
		req.Strategy = query.StrategySemantic
	}

	before := e.embedder.Stats()
	start := time.Now()

	resp, err := e.queries.Search(ctx, req.Request)
	if err != nil {
		return nil, nil, err
	}

	results := resp.Results
	if req.Rerank {
		results, err = e.reranker.Rerank(req.Query, results)
		if err != nil {
			return nil, nil, err
		}
	}

	elapsed := time.Since(start)
	after := e.embedder.Stats()

	e.tracker.RecordSearch(metrics.SearchRecord{
		Strategy:    string(req.Strategy),
		Latency:     elapsed,
		ResultCount: len(results),
		CacheHits:   after.Hits - before.Hits,
		CacheMisses: after.Misses - before.Misses,
	})

	e.logger.Debug("search completed",
		zap.String("strategy", string(req.Strategy)),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed),
	)

	return results, &SearchContext{
		Strategies: resp.Strategies,
		SubQueries: resp.SubQueries,
		QueryTime:  elapsed,
	}, nil
}
