// Package rerank rescores an already-retrieved result page using cheap,
// embedding-free signals: term overlap, title match, and freshness.
package rerank

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/query"
	"github.com/quarrylabs/quarry/pkg/utils"
)

// ErrInvalidQuery is returned when rerank is called with an empty result
// set. This is a deliberate contract: an empty page is surfaced, never
// silently returned.
var ErrInvalidQuery = errors.New("invalid query: cannot rerank an empty result set")

// freshnessWindow is the linear decay window for the freshness signal.
const freshnessWindow = 365 * 24 * time.Hour

// Weights combine the rerank signals. They must sum to 1.0.
type Weights struct {
	Vector      float64
	TermOverlap float64
	TitleMatch  float64
	Freshness   float64
}

// DefaultWeights returns the default signal weights.
func DefaultWeights() Weights {
	return Weights{
		Vector:      0.5,
		TermOverlap: 0.3,
		TitleMatch:  0.1,
		Freshness:   0.1,
	}
}

func (w Weights) validate() error {
	sum := w.Vector + w.TermOverlap + w.TitleMatch + w.Freshness
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("rerank weights must sum to 1.0, got %g", sum)
	}
	return nil
}

// Reranker rescores result pages without any additional embedding calls.
type Reranker struct {
	weights Weights
	logger  *zap.Logger

	// now is overridable for tests.
	now func() time.Time
}

// New creates a Reranker with the given weights.
func New(weights Weights, logger *zap.Logger) (*Reranker, error) {
	if err := weights.validate(); err != nil {
		return nil, err
	}

	return &Reranker{
		weights: weights,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Rerank computes rerank signals for each result, sorts by the weighted
// rerank score descending, and returns the rescored page. The sort is
// stable with respect to input order on exact ties.
func (r *Reranker) Rerank(queryText string, results []query.SearchResult) ([]query.SearchResult, error) {
	if len(results) == 0 {
		return nil, ErrInvalidQuery
	}

	queryTerms := utils.Tokenize(queryText)
	now := r.now()

	rescored := make([]query.SearchResult, len(results))
	for i, result := range results {
		signals := query.RerankSignals{
			VectorScore: clamp01(float64(result.Score)),
			TermOverlap: termOverlap(queryTerms, result.Content),
			TitleMatch:  titleMatch(queryTerms, result.Title),
			Freshness:   freshness(result.IndexedAt, now),
		}
		signals.RerankScore = r.weights.Vector*signals.VectorScore +
			r.weights.TermOverlap*signals.TermOverlap +
			r.weights.TitleMatch*signals.TitleMatch +
			r.weights.Freshness*signals.Freshness

		rescored[i] = result
		rescored[i].Signals = &signals
	}

	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].Signals.RerankScore > rescored[j].Signals.RerankScore
	})

	r.logger.Debug("reranked results",
		zap.Int("count", len(rescored)),
	)

	return rescored, nil
}

// termOverlap is the ratio of query terms present in the content.
func termOverlap(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}

	contentTerms := utils.TermSet(content)
	matched := 0
	for _, term := range queryTerms {
		if contentTerms[term] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

// titleMatch is 1 when any query term appears in the title.
func titleMatch(queryTerms []string, title string) float64 {
	titleTerms := utils.TermSet(title)
	for _, term := range queryTerms {
		if titleTerms[term] {
			return 1
		}
	}
	return 0
}

// freshness decays linearly over a 1-year window from indexedAt, defaulting
// to a neutral 0.5 when the timestamp is absent.
func freshness(indexedAt, now time.Time) float64 {
	if indexedAt.IsZero() {
		return 0.5
	}

	age := now.Sub(indexedAt)
	if age < 0 {
		return 1
	}

	return clamp01(1 - float64(age)/float64(freshnessWindow))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
