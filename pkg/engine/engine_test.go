package engine

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/chunker"
	"github.com/quarrylabs/quarry/pkg/query"
	"github.com/quarrylabs/quarry/pkg/rerank"
	testutils "github.com/quarrylabs/quarry/pkg/utils/test"
)

var _ = Describe("Engine", func() {
	var (
		embedder *testutils.MockEmbedder
		store    *testutils.MockStore
		eng      *Engine
	)

	const collection = "docs"

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		store = testutils.NewMockStore()

		var err error
		eng, err = New(embedder, store, Config{}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	charOpts := func(size, overlap int) chunker.Options {
		return chunker.Options{
			Strategy:  chunker.StrategyCharacter,
			ChunkSize: size,
			Overlap:   overlap,
		}
	}

	Describe("New", func() {
		It("should reject invalid rerank weights", func() {
			_, err := New(embedder, store, Config{
				RerankWeights: rerank.Weights{Vector: 1, TermOverlap: 1},
			}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("IndexDocuments", func() {
		It("should do nothing for an empty document set", func() {
			report, err := eng.IndexDocuments(context.Background(), collection, nil, charOpts(500, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.DocumentsIndexed).To(BeZero())

			exists, err := store.CollectionExists(context.Background(), collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})

		It("should chunk, embed, and store documents", func() {
			docs := []chunker.Document{
				{ID: "d1", Title: "Guide", Content: strings.Repeat("a", 1200)},
			}

			report, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(500, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.DocumentsIndexed).To(Equal(1))
			Expect(report.ChunksIndexed).To(Equal(3))
			Expect(report.ChunksFailed).To(BeZero())

			count, err := store.Count(context.Background(), collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(uint64(3)))
		})

		It("should skip documents that produce no chunks", func() {
			docs := []chunker.Document{
				{ID: "d1", Content: "   "},
				{ID: "d2", Content: "real content"},
			}

			report, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(500, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.DocumentsIndexed).To(Equal(1))
			Expect(report.ChunksIndexed).To(Equal(1))
		})

		It("should split large chunk sets into adaptive batches", func() {
			docs := []chunker.Document{
				{ID: "d1", Content: strings.Repeat("x", 6000)},
			}

			report, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(100, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.ChunksIndexed).To(Equal(60))
			Expect(store.UpsertSizes).To(Equal([]int{50, 10}))
		})

		It("should report failed batches without aborting the run", func() {
			store.FailUpserts = 1

			docs := []chunker.Document{
				{ID: "d1", Content: strings.Repeat("x", 6000)},
			}

			report, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(100, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(report.BatchesFailed).To(Equal(1))
			Expect(report.ChunksFailed).To(Equal(50))
			Expect(report.ChunksIndexed).To(Equal(10))
		})

		It("should populate chunk metadata and embeddings", func() {
			docs := []chunker.Document{
				{ID: "d1", Title: "Guide", URL: "docs/guide.md", Content: "short document"},
			}

			_, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(500, 0))
			Expect(err).NotTo(HaveOccurred())

			results, _, err := eng.Search(context.Background(), SearchRequest{
				Request: query.Request{Query: "short document", Collection: collection, Limit: 1},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].DocumentID).To(Equal("d1"))
			Expect(results[0].Title).To(Equal("Guide"))
			Expect(results[0].URL).To(Equal("docs/guide.md"))
			Expect(results[0].IndexedAt).NotTo(BeZero())
		})
	})

	Describe("DeleteDocument", func() {
		It("should remove only the named document's chunks", func() {
			docs := []chunker.Document{
				{ID: "d1", Content: "first document text"},
				{ID: "d2", Content: "second document text"},
			}

			_, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(500, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.DeleteDocument(context.Background(), collection, "d1")).To(Succeed())

			count, err := store.Count(context.Background(), collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(uint64(1)))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			docs := []chunker.Document{
				{ID: "d1", Title: "Logging", Content: "logging configuration guide"},
				{ID: "d2", Title: "Metrics", Content: "metrics and tracing overview"},
			}
			_, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(500, 0))
			Expect(err).NotTo(HaveOccurred())
		})

		It("should record metrics for each search", func() {
			_, sctx, err := eng.Search(context.Background(), SearchRequest{
				Request: query.Request{Query: "logging configuration guide", Collection: collection, Limit: 2},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sctx.Strategies).To(Equal([]string{"semantic"}))
			Expect(sctx.QueryTime).To(BeNumerically(">", 0))

			summary := eng.MetricsSummary()
			Expect(summary.TotalSearches).To(Equal(uint64(1)))
			Expect(summary.StrategyDistribution["semantic"]).To(Equal(1.0))
		})

		It("should attribute cache hits to the search that made them", func() {
			req := SearchRequest{
				Request: query.Request{Query: "logging configuration guide", Collection: collection, Limit: 2},
			}

			_, _, err := eng.Search(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())

			// Same query again: the embed is now a cache hit.
			_, _, err = eng.Search(context.Background(), req)
			Expect(err).NotTo(HaveOccurred())

			Expect(eng.MetricsSummary().CacheHitRate).To(BeNumerically(">", 0))
		})

		It("should rerank when requested", func() {
			results, _, err := eng.Search(context.Background(), SearchRequest{
				Request: query.Request{Query: "logging configuration", Collection: collection, Limit: 2},
				Rerank:  true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].Signals).NotTo(BeNil())
		})

		It("should surface the rerank contract violation on an empty page", func() {
			Expect(store.CreateCollection(context.Background(), "empty", 3)).To(Succeed())

			_, _, err := eng.Search(context.Background(), SearchRequest{
				Request: query.Request{Query: "anything", Collection: "empty", Limit: 2},
				Rerank:  true,
			})
			Expect(err).To(MatchError(rerank.ErrInvalidQuery))
		})
	})

	Describe("CacheStats", func() {
		It("should expose embedding cache counters", func() {
			docs := []chunker.Document{{ID: "d1", Content: "some content"}}
			_, err := eng.IndexDocuments(context.Background(), collection, docs, charOpts(500, 0))
			Expect(err).NotTo(HaveOccurred())

			stats := eng.CacheStats()
			Expect(stats.Misses).To(BeNumerically(">", 0))
		})
	})

	Describe("RecordFeedback", func() {
		It("should feed the quality metrics", func() {
			eng.RecordFeedback([]string{"a", "b"}, []string{"a"}, nil)

			q := eng.Quality(2)
			Expect(q.FeedbackCount).To(Equal(1))
			Expect(q.MRR).To(BeNumerically("~", 1.0, 1e-9))
		})
	})
})
