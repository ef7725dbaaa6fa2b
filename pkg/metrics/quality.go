package metrics

import (
	"math"
	"sort"
)

// feedbackEntry is one recorded user judgment: the ranked ids a search
// returned, and which of them the user marked relevant.
type feedbackEntry struct {
	returnedIDs []string

	// relevance maps result id to graded relevance. Clicks record 1.0;
	// explicit ratings record their value.
	relevance map[string]float64
}

// maxFeedback bounds the retained judgments; the oldest are dropped.
const maxFeedback = 10000

// QualitySummary holds retrieval-quality statistics computed against the
// accumulated judgments.
type QualitySummary struct {
	FeedbackCount int     `json:"feedback_count"`
	MRR           float64 `json:"mrr"`
	PrecisionAtK  float64 `json:"precision_at_k"`
	RecallAtK     float64 `json:"recall_at_k"`
	NDCGAtK       float64 `json:"ndcg_at_k"`
	K             int     `json:"k"`
}

// RecordFeedback records implicit clicks and explicit ratings for a
// search's returned ids. Entries with no relevant results are kept; they
// legitimately drag the averages down.
func (t *Tracker) RecordFeedback(returnedIDs, clickedIDs []string, ratings map[string]float64) {
	relevance := make(map[string]float64, len(clickedIDs)+len(ratings))
	for _, id := range clickedIDs {
		relevance[id] = 1.0
	}
	for id, rating := range ratings {
		if rating > relevance[id] {
			relevance[id] = rating
		}
	}

	ids := make([]string, len(returnedIDs))
	copy(ids, returnedIDs)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.feedback = append(t.feedback, feedbackEntry{returnedIDs: ids, relevance: relevance})
	if len(t.feedback) > maxFeedback {
		t.feedback = t.feedback[len(t.feedback)-maxFeedback:]
	}
}

// Quality computes MRR, Precision@k, Recall@k, and NDCG@k over the
// accumulated judgments.
func (t *Tracker) Quality(k int) QualitySummary {
	if k <= 0 {
		k = 10
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	s := QualitySummary{FeedbackCount: len(t.feedback), K: k}
	if len(t.feedback) == 0 {
		return s
	}

	var mrr, precision, recall, ndcg float64
	for _, entry := range t.feedback {
		mrr += reciprocalRank(entry)
		precision += precisionAtK(entry, k)
		recall += recallAtK(entry, k)
		ndcg += ndcgAtK(entry, k)
	}

	n := float64(len(t.feedback))
	s.MRR = mrr / n
	s.PrecisionAtK = precision / n
	s.RecallAtK = recall / n
	s.NDCGAtK = ndcg / n
	return s
}

func reciprocalRank(entry feedbackEntry) float64 {
	for i, id := range entry.returnedIDs {
		if entry.relevance[id] > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

func precisionAtK(entry feedbackEntry, k int) float64 {
	top := topK(entry.returnedIDs, k)
	if len(top) == 0 {
		return 0
	}

	relevant := 0
	for _, id := range top {
		if entry.relevance[id] > 0 {
			relevant++
		}
	}
	return float64(relevant) / float64(k)
}

func recallAtK(entry feedbackEntry, k int) float64 {
	totalRelevant := 0
	for _, rel := range entry.relevance {
		if rel > 0 {
			totalRelevant++
		}
	}
	if totalRelevant == 0 {
		return 0
	}

	found := 0
	for _, id := range topK(entry.returnedIDs, k) {
		if entry.relevance[id] > 0 {
			found++
		}
	}
	return float64(found) / float64(totalRelevant)
}

// ndcgAtK computes NDCG@k with graded gains and log2 position discounts.
func ndcgAtK(entry feedbackEntry, k int) float64 {
	var dcg float64
	for i, id := range topK(entry.returnedIDs, k) {
		if rel := entry.relevance[id]; rel > 0 {
			dcg += rel / math.Log2(float64(i+2))
		}
	}

	// Ideal ordering: all relevant gains sorted descending.
	gains := make([]float64, 0, len(entry.relevance))
	for _, rel := range entry.relevance {
		if rel > 0 {
			gains = append(gains, rel)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(gains)))

	var idcg float64
	for i, gain := range gains {
		if i >= k {
			break
		}
		idcg += gain / math.Log2(float64(i+2))
	}

	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func topK(ids []string, k int) []string {
	if len(ids) > k {
		return ids[:k]
	}
	return ids
}

