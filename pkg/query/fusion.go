package query

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// RRF computes Reciprocal Rank Fusion over ranked result lists:
//
//	score(doc) = Σ over lists containing doc of 1/(k + rank_in_list)
//
// with 1-based ranks. Documents absent from a list contribute 0 for it.
// Result metadata comes from the document's first occurrence across lists;
// ties in fused score break by document ID ascending.
func RRF(lists [][]SearchResult, k float64, limit int) []SearchResult {
	type fused struct {
		result SearchResult
		score  float64
	}

	byID := make(map[string]*fused)

	for _, list := range lists {
		for rank, result := range list {
			contribution := 1.0 / (k + float64(rank+1))
			if existing, ok := byID[result.ID]; ok {
				existing.score += contribution
				continue
			}
			byID[result.ID] = &fused{result: result, score: contribution}
		}
	}

	results := make([]SearchResult, 0, len(byID))
	scores := make(map[string]float64, len(byID))
	for id, f := range byID {
		r := f.result
		r.Score = float32(f.score)
		results = append(results, r)
		scores[id] = f.score
	}

	sort.Slice(results, func(i, j int) bool {
		if scores[results[i].ID] != scores[results[j].ID] {
			return scores[results[i].ID] > scores[results[j].ID]
		}
		return results[i].ID < results[j].ID
	})

	return truncate(results, limit)
}

// searchFusion runs the semantic and hybrid strategies concurrently over
// the same query and merges their ranked lists with RRF.
func (e *Engine) searchFusion(ctx context.Context, req Request) (*Response, error) {
	var semantic []SearchResult
	var hybrid *Response

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		results, err := e.searchSemantic(gctx, req)
		if err != nil {
			return fmt.Errorf("semantic list: %w", err)
		}
		semantic = results
		return nil
	})

	g.Go(func() error {
		resp, err := e.searchHybrid(gctx, req)
		if err != nil {
			return fmt.Errorf("hybrid list: %w", err)
		}
		hybrid = resp
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	fusedResults := RRF([][]SearchResult{semantic, hybrid.Results}, e.rrfK, req.Limit)

	return &Response{
		Results:    fusedResults,
		Strategies: []string{string(StrategySemantic), string(StrategyHybrid), string(StrategyFusion)},
	}, nil
}
