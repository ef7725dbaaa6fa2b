package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"
)

// fragmentSplit matches the conjunctions and punctuation a query is
// decomposed on.
var fragmentSplit = regexp.MustCompile(`(?i)\band\b|\bor\b|[,;]`)

// fragmentBoost is the per-extra-fragment score boost applied to documents
// returned by more than one fragment.
const fragmentBoost = 0.25

// searchAdvanced decomposes the query into fragments and searches each
// concurrently. A document's aggregate score is boosted proportionally to
// the number of distinct fragments that returned it. With one fragment or
// fewer the engine falls back to plain semantic search.
func (e *Engine) searchAdvanced(ctx context.Context, req Request) (*Response, error) {
	fragments := Decompose(req.Query)

	if len(fragments) <= 1 {
		results, err := e.searchSemantic(ctx, req)
		if err != nil {
			return nil, err
		}
		return &Response{
			Results:    results,
			Strategies: []string{string(StrategySemantic)},
		}, nil
	}

	e.logger.Debug("decomposed query",
		zap.String("query", req.Query),
		zap.Strings("fragments", fragments),
	)

	lists := make([][]SearchResult, len(fragments))

	g, gctx := errgroup.WithContext(ctx)
	for i, fragment := range fragments {
		g.Go(func() error {
			subReq := req
			subReq.Query = fragment
			subReq.Limit = req.Limit * 2
			results, err := e.searchSemantic(gctx, subReq)
			if err != nil {
				return fmt.Errorf("fragment %q: %w", fragment, err)
			}
			lists[i] = results
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	aggregated := aggregateFragments(lists)
	sortResults(aggregated)

	return &Response{
		Results:    truncate(aggregated, req.Limit),
		Strategies: []string{string(StrategyAdvanced)},
		SubQueries: fragments,
	}, nil
}

// Decompose splits a query on conjunctions and punctuation, discarding
// fragments shorter than 2 words.
func Decompose(queryText string) []string {
	parts := fragmentSplit.Split(queryText, -1)

	var fragments []string
	for _, part := range parts {
		fragment := strings.TrimSpace(part)
		if len(strings.Fields(fragment)) >= 2 {
			fragments = append(fragments, fragment)
		}
	}
	return fragments
}

// aggregateFragments deduplicates results by ID. The aggregate score is the
// best per-fragment score boosted by the count of distinct fragments that
// returned the document, capped at 1.
func aggregateFragments(lists [][]SearchResult) []SearchResult {
	type aggregate struct {
		result    SearchResult
		best      float32
		fragments int
	}

	byID := make(map[string]*aggregate)

	for _, list := range lists {
		seen := make(map[string]bool, len(list))
		for _, result := range list {
			if seen[result.ID] {
				continue
			}
			seen[result.ID] = true

			agg, ok := byID[result.ID]
			if !ok {
				byID[result.ID] = &aggregate{result: result, best: result.Score, fragments: 1}
				continue
			}
			agg.fragments++
			if result.Score > agg.best {
				agg.best = result.Score
				agg.result = result
			}
		}
	}

	results := make([]SearchResult, 0, len(byID))
	for _, agg := range byID {
		boosted := agg.best * float32(1+fragmentBoost*float64(agg.fragments-1))
		if boosted > 1 {
			boosted = 1
		}
		r := agg.result
		r.Score = boosted
		results = append(results, r)
	}
	return results
}
