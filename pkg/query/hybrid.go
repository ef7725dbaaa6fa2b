package query

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/utils"
)

const (
	// semanticWeight and keywordWeight combine the two hybrid passes.
	semanticWeight = 0.7
	keywordWeight  = 0.3

	// keywordThresholdScale lowers the score threshold for the keyword
	// pass; literal term containment does the real filtering there.
	keywordThresholdScale = 0.5
)

// searchHybrid runs a semantic pass and a keyword-filtered pass
// concurrently and combines them. A result found by both passes gets the
// sum of both weighted contributions and match type hybrid_both.
func (e *Engine) searchHybrid(ctx context.Context, req Request) (*Response, error) {
	// Both passes over-fetch so the combined page can still fill.
	wide := req.Limit * 2

	var semantic, keyword []SearchResult

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wideReq := req
		wideReq.Limit = wide
		results, err := e.searchSemantic(gctx, wideReq)
		if err != nil {
			return fmt.Errorf("semantic pass: %w", err)
		}
		semantic = results
		return nil
	})

	g.Go(func() error {
		results, err := e.searchKeyword(gctx, req, wide)
		if err != nil {
			return fmt.Errorf("keyword pass: %w", err)
		}
		keyword = results
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := combineHybrid(semantic, keyword)
	sortResults(combined)

	e.logger.Debug("hybrid search combined",
		zap.Int("semantic", len(semantic)),
		zap.Int("keyword", len(keyword)),
		zap.Int("combined", len(combined)),
	)

	return &Response{
		Results:    truncate(combined, req.Limit),
		Strategies: []string{string(StrategySemantic), labelKeyword, string(StrategyHybrid)},
	}, nil
}

// searchKeyword is a semantic search with a lowered score threshold,
// post-filtered to results that literally contain the query terms.
func (e *Engine) searchKeyword(ctx context.Context, req Request, limit int) ([]SearchResult, error) {
	loweredReq := req
	loweredReq.Limit = limit
	loweredReq.ScoreThreshold = req.ScoreThreshold * keywordThresholdScale

	candidates, err := e.searchSemantic(ctx, loweredReq)
	if err != nil {
		return nil, err
	}

	terms := significantTerms(req.Query)
	if len(terms) == 0 {
		return nil, nil
	}

	var results []SearchResult
	for _, candidate := range candidates {
		if containsAllTerms(candidate.Content, terms) {
			candidate.MatchType = MatchKeyword
			results = append(results, candidate)
		}
	}

	return results, nil
}

// significantTerms returns the query's non-stop-word terms.
func significantTerms(queryText string) []string {
	var terms []string
	for _, term := range utils.Tokenize(queryText) {
		if !utils.IsStopWord(term) {
			terms = append(terms, term)
		}
	}
	return terms
}

func containsAllTerms(content string, terms []string) bool {
	lowered := strings.ToLower(content)
	for _, term := range terms {
		if !strings.Contains(lowered, term) {
			return false
		}
	}
	return true
}

// combineHybrid merges the two pass result lists.
// hybrid_score = 0.7*semantic + 0.3*keyword; a result present in only one
// list contributes only that term, so double matches rank higher.
func combineHybrid(semantic, keyword []SearchResult) []SearchResult {
	merged := make(map[string]*SearchResult)

	for _, result := range semantic {
		r := result
		r.Score = float32(semanticWeight) * result.Score
		r.MatchType = MatchSemantic
		merged[result.ID] = &r
	}

	for _, result := range keyword {
		if existing, ok := merged[result.ID]; ok {
			existing.Score += float32(keywordWeight) * result.Score
			existing.MatchType = MatchHybridBoth
			continue
		}
		r := result
		r.Score = float32(keywordWeight) * result.Score
		r.MatchType = MatchKeyword
		merged[result.ID] = &r
	}

	combined := make([]SearchResult, 0, len(merged))
	for _, result := range merged {
		combined = append(combined, *result)
	}
	return combined
}
