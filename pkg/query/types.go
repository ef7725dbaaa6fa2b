package query

import "time"

// MatchType records which retrieval pass produced a result.
type MatchType string

const (
	MatchSemantic MatchType = "semantic"
	MatchKeyword  MatchType = "keyword"

	// MatchHybridBoth marks results returned by both the semantic and the
	// keyword pass of a hybrid search.
	MatchHybridBoth MatchType = "hybrid_both"
)

// Strategy selects the retrieval strategy for a search.
type Strategy string

const (
	// StrategySemantic embeds the query and searches the vector store.
	StrategySemantic Strategy = "semantic"

	// StrategyHybrid fuses semantic and keyword-boosted passes.
	StrategyHybrid Strategy = "hybrid"

	// StrategyAdvanced decomposes the query into fragments searched
	// concurrently.
	StrategyAdvanced Strategy = "advanced"

	// StrategyFusion runs semantic and hybrid passes and merges them with
	// reciprocal rank fusion.
	StrategyFusion Strategy = "fusion"
)

// labelKeyword names the keyword pass in a Response's executed-strategies
// list. The pass is internal to hybrid search, not a dispatchable Strategy.
const labelKeyword = "keyword"

// RerankSignals are the embedding-free rescoring signals, each in [0, 1].
type RerankSignals struct {
	VectorScore float64 `json:"vector_score"`
	TermOverlap float64 `json:"term_overlap"`
	TitleMatch  float64 `json:"title_match"`
	Freshness   float64 `json:"freshness"`

	// RerankScore is the weighted sum of the signals above.
	RerankScore float64 `json:"rerank_score"`
}

// SearchResult is a transient, per-query result. Never persisted.
type SearchResult struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Title      string    `json:"title"`
	URL        string    `json:"url"`
	Score      float32   `json:"score"`
	MatchType  MatchType `json:"match_type"`
	IndexedAt  time.Time `json:"indexed_at,omitempty"`

	// Signals is populated when the result page has been reranked.
	Signals *RerankSignals `json:"rerank_signals,omitempty"`
}
