package query

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/synonyms"
	"github.com/quarrylabs/quarry/pkg/utils"
)

// maxVariants caps the number of query variants searched.
const maxVariants = 5

// Transform generates up to maxVariants query variants: the original,
// synonym substitutions from the loaded mapping, a stop-word-stripped
// simplification, and a question-form variant.
func Transform(queryText string, mapping synonyms.Mapping) []string {
	variants := []string{queryText}
	seen := map[string]bool{queryText: true}

	add := func(variant string) {
		variant = strings.TrimSpace(variant)
		if variant == "" || seen[variant] || len(variants) >= maxVariants {
			return
		}
		seen[variant] = true
		variants = append(variants, variant)
	}

	// Synonym substitutions: one variant per substituted term.
	words := strings.Fields(queryText)
	for i, word := range words {
		syns := mapping.Lookup(strings.ToLower(word))
		if len(syns) == 0 {
			continue
		}
		substituted := make([]string, len(words))
		copy(substituted, words)
		substituted[i] = syns[0]
		add(strings.Join(substituted, " "))
	}

	// Stop-word-stripped simplification.
	var kept []string
	for _, word := range words {
		if !utils.IsStopWord(word) {
			kept = append(kept, word)
		}
	}
	if len(kept) > 0 && len(kept) < len(words) {
		add(strings.Join(kept, " "))
	}

	// Question form.
	if !strings.HasSuffix(queryText, "?") {
		add(fmt.Sprintf("What is %s?", strings.TrimSuffix(queryText, ".")))
	}

	return variants
}

// searchTransformed runs the base strategy on each query variant
// concurrently and merges the ranked lists via RRF rather than plain
// concatenation.
func (e *Engine) searchTransformed(ctx context.Context, req Request) (*Response, error) {
	variants := Transform(req.Query, e.synonyms)

	e.logger.Debug("transformed query",
		zap.String("query", req.Query),
		zap.Strings("variants", variants),
	)

	lists := make([][]SearchResult, len(variants))
	strategySets := make([][]string, len(variants))

	g, gctx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		g.Go(func() error {
			subReq := req
			subReq.Query = variant
			subReq.TransformQuery = false
			resp, err := e.dispatch(gctx, subReq)
			if err != nil {
				return fmt.Errorf("variant %q: %w", variant, err)
			}
			lists[i] = resp.Results
			strategySets[i] = resp.Strategies
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	executed := []string{"transform"}
	seen := map[string]bool{"transform": true}
	for _, set := range strategySets {
		for _, s := range set {
			if !seen[s] {
				seen[s] = true
				executed = append(executed, s)
			}
		}
	}

	return &Response{
		Results:    RRF(lists, e.rrfK, req.Limit),
		Strategies: executed,
		SubQueries: variants[1:],
	}, nil
}
