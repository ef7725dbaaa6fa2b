package metrics_test

import (
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarrylabs/quarry/pkg/metrics"
)

var _ = Describe("Tracker", func() {
	var tracker *metrics.Tracker

	BeforeEach(func() {
		tracker = metrics.NewTracker()
	})

	Describe("Summary", func() {
		It("should be empty before any searches", func() {
			s := tracker.Summary()
			Expect(s.TotalSearches).To(BeZero())
			Expect(s.MeanLatency).To(BeZero())
			Expect(s.CacheHitRate).To(BeZero())
			Expect(s.StrategyDistribution).To(BeEmpty())
		})

		It("should count searches per strategy", func() {
			tracker.RecordSearch(metrics.SearchRecord{Strategy: "semantic", Latency: time.Millisecond})
			tracker.RecordSearch(metrics.SearchRecord{Strategy: "semantic", Latency: time.Millisecond})
			tracker.RecordSearch(metrics.SearchRecord{Strategy: "hybrid", Latency: time.Millisecond})

			s := tracker.Summary()
			Expect(s.TotalSearches).To(Equal(uint64(3)))
			Expect(s.StrategyDistribution["semantic"]).To(BeNumerically("~", 2.0/3.0, 1e-9))
			Expect(s.StrategyDistribution["hybrid"]).To(BeNumerically("~", 1.0/3.0, 1e-9))
		})

		It("should compute latency percentiles over the samples", func() {
			for i := 1; i <= 100; i++ {
				tracker.RecordSearch(metrics.SearchRecord{
					Strategy: "semantic",
					Latency:  time.Duration(i) * time.Millisecond,
				})
			}

			s := tracker.Summary()
			Expect(s.P50Latency).To(Equal(50 * time.Millisecond))
			Expect(s.P95Latency).To(Equal(95 * time.Millisecond))
			Expect(s.P99Latency).To(Equal(99 * time.Millisecond))
			Expect(s.MeanLatency).To(Equal(time.Duration(50500) * time.Microsecond))
		})

		It("should aggregate the cache hit rate across searches", func() {
			tracker.RecordSearch(metrics.SearchRecord{Strategy: "semantic", CacheHits: 3, CacheMisses: 1})
			tracker.RecordSearch(metrics.SearchRecord{Strategy: "semantic", CacheHits: 1, CacheMisses: 3})

			Expect(tracker.Summary().CacheHitRate).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Describe("Quality", func() {
		It("should be empty with no feedback", func() {
			q := tracker.Quality(10)
			Expect(q.FeedbackCount).To(BeZero())
			Expect(q.MRR).To(BeZero())
		})

		It("should default k to 10", func() {
			Expect(tracker.Quality(0).K).To(Equal(10))
		})

		It("should compute MRR from the first relevant rank", func() {
			// First relevant result at rank 2.
			tracker.RecordFeedback([]string{"a", "b", "c"}, []string{"b"}, nil)

			q := tracker.Quality(3)
			Expect(q.MRR).To(BeNumerically("~", 0.5, 1e-9))
		})

		It("should average MRR across judgments", func() {
			tracker.RecordFeedback([]string{"a", "b"}, []string{"a"}, nil) // 1.0
			tracker.RecordFeedback([]string{"a", "b"}, []string{"b"}, nil) // 0.5

			q := tracker.Quality(2)
			Expect(q.FeedbackCount).To(Equal(2))
			Expect(q.MRR).To(BeNumerically("~", 0.75, 1e-9))
		})

		It("should compute precision against k, not the returned count", func() {
			tracker.RecordFeedback([]string{"a", "b"}, []string{"a", "b"}, nil)

			q := tracker.Quality(4)
			Expect(q.PrecisionAtK).To(BeNumerically("~", 0.5, 1e-9))
		})

		It("should compute recall against all relevant ids", func() {
			// Three relevant, only one in the top-k page.
			tracker.RecordFeedback([]string{"a", "x", "y"}, nil, map[string]float64{
				"a": 1, "b": 1, "c": 1,
			})

			q := tracker.Quality(3)
			Expect(q.RecallAtK).To(BeNumerically("~", 1.0/3.0, 1e-9))
		})

		It("should give a perfect NDCG for an ideally ordered page", func() {
			tracker.RecordFeedback([]string{"a", "b", "c"}, nil, map[string]float64{
				"a": 3, "b": 2, "c": 1,
			})

			Expect(tracker.Quality(3).NDCGAtK).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("should penalize relevant results ranked low", func() {
			tracker.RecordFeedback([]string{"x", "y", "a"}, []string{"a"}, nil)

			q := tracker.Quality(3)
			Expect(q.NDCGAtK).To(BeNumerically("<", 1.0))
			Expect(q.NDCGAtK).To(BeNumerically(">", 0))
		})

		It("should let ratings override clicks with the higher grade", func() {
			tracker.RecordFeedback([]string{"a", "b"}, []string{"a"}, map[string]float64{"a": 2})

			// DCG uses grade 2 at rank 1; ideal is identical.
			Expect(tracker.Quality(2).NDCGAtK).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("should count judgments with no relevant results against the averages", func() {
			tracker.RecordFeedback([]string{"a"}, []string{"a"}, nil)
			tracker.RecordFeedback([]string{"b"}, nil, nil)

			q := tracker.Quality(1)
			Expect(q.FeedbackCount).To(Equal(2))
			Expect(q.MRR).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Describe("bounded retention", func() {
		It("should not grow past the sample cap", func() {
			for i := 0; i < 10050; i++ {
				tracker.RecordSearch(metrics.SearchRecord{
					Strategy: "semantic",
					Latency:  time.Duration(i) * time.Microsecond,
				})
			}

			s := tracker.Summary()
			Expect(s.TotalSearches).To(Equal(uint64(10050)))
			// Oldest samples dropped: the minimum retained latency is 50µs.
			Expect(s.P50Latency).To(BeNumerically(">", 5000*time.Microsecond))
		})

		It("should keep distinct feedback entries", func() {
			for i := 0; i < 5; i++ {
				tracker.RecordFeedback([]string{fmt.Sprintf("id-%d", i)}, nil, nil)
			}
			Expect(tracker.Quality(1).FeedbackCount).To(Equal(5))
		})
	})
})
