package query

import (
	"context"
	"fmt"
)

// searchSemantic embeds the query and delegates to the vector store.
func (e *Engine) searchSemantic(ctx context.Context, req Request) ([]SearchResult, error) {
	embedding, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := e.store.Search(ctx, req.Collection, embedding, req.Limit, req.ScoreThreshold, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", req.Collection, err)
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = hitToResult(hit, MatchSemantic)
	}

	return results, nil
}
