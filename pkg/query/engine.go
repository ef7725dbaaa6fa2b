// Package query implements the multi-strategy retrieval engine: semantic
// search, keyword-boosted hybrid fusion, query decomposition, query
// transformation, and reciprocal rank fusion across strategies.
//
// The engine is state-free per call; it composes the embedder and the
// vector store and holds no mutable state of its own.
package query

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/embeddings"
	"github.com/quarrylabs/quarry/pkg/synonyms"
	"github.com/quarrylabs/quarry/pkg/vector"
)

// DefaultRRFK is the standard reciprocal-rank-fusion constant.
const DefaultRRFK = 60.0

// Request holds the parameters for one search call.
type Request struct {
	Query          string
	Collection     string
	Strategy       Strategy
	Limit          int
	ScoreThreshold float32
	Filters        vector.Filters

	// TransformQuery expands the query into variants searched concurrently
	// and merged via reciprocal rank fusion. Orthogonal to Strategy.
	TransformQuery bool
}

// Response is the ranked result page plus what was actually executed.
type Response struct {
	Results []SearchResult

	// Strategies lists the retrieval passes that actually ran.
	Strategies []string

	// SubQueries lists query fragments or variants that were searched,
	// beyond the original query.
	SubQueries []string
}

// Engine dispatches searches across retrieval strategies.
type Engine struct {
	embedder embeddings.Embedder
	store    vector.Store
	synonyms synonyms.Mapping
	rrfK     float64
	logger   *zap.Logger
}

// Config holds construction options for the Engine.
type Config struct {
	// RRFK is the reciprocal-rank-fusion constant. Defaults to DefaultRRFK.
	RRFK float64

	// Synonyms enables synonym-substitution variants during query
	// transformation. May be empty.
	Synonyms synonyms.Mapping
}

// New creates a query engine over the given embedder and vector store.
func New(embedder embeddings.Embedder, store vector.Store, cfg Config, logger *zap.Logger) *Engine {
	rrfK := cfg.RRFK
	if rrfK == 0 {
		rrfK = DefaultRRFK
	}

	syns := cfg.Synonyms
	if syns == nil {
		syns = synonyms.Mapping{}
	}

	return &Engine{
		embedder: embedder,
		store:    store,
		synonyms: syns,
		rrfK:     rrfK,
		logger:   logger,
	}
}

// Search runs the requested strategy, optionally expanding the query into
// variants first.
func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Strategy == "" {
		req.Strategy = StrategySemantic
	}

	if req.TransformQuery {
		return e.searchTransformed(ctx, req)
	}

	return e.dispatch(ctx, req)
}

func (e *Engine) dispatch(ctx context.Context, req Request) (*Response, error) {
	switch req.Strategy {
	case StrategySemantic:
		results, err := e.searchSemantic(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Response{Results: results, Strategies: []string{string(StrategySemantic)}}, nil
	case StrategyHybrid:
		return e.searchHybrid(ctx, req)
	case StrategyAdvanced:
		return e.searchAdvanced(ctx, req)
	case StrategyFusion:
		return e.searchFusion(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported search strategy: %s", req.Strategy)
	}
}

// sortResults orders results by score descending with document ID ascending
// as the deterministic tie-break.
func sortResults(results []SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}

func truncate(results []SearchResult, limit int) []SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

func hitToResult(hit vector.Hit, matchType MatchType) SearchResult {
	return SearchResult{
		ID:         hit.ID,
		DocumentID: hit.DocumentID,
		Content:    hit.Content,
		Title:      hit.Title,
		URL:        hit.URL,
		Score:      hit.Score,
		MatchType:  matchType,
		IndexedAt:  hit.IndexedAt,
	}
}
