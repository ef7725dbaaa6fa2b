package query_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/query"
	"github.com/quarrylabs/quarry/pkg/synonyms"
	testutils "github.com/quarrylabs/quarry/pkg/utils/test"
	"github.com/quarrylabs/quarry/pkg/vector"
)

var _ = Describe("Engine", func() {
	var (
		embedder *testutils.MockEmbedder
		store    *testutils.MockStore
		engine   *query.Engine
	)

	const collection = "docs"

	BeforeEach(func() {
		embedder = testutils.NewMockEmbedder()
		embedder.Embeddings = map[string][]float32{
			"logging configuration": {1, 0, 0},
			"metrics tracing":       {0, 1, 0},
		}

		store = testutils.NewMockStore()
		Expect(store.CreateCollection(context.Background(), collection, 3)).To(Succeed())
		Expect(store.UpsertBatch(context.Background(), collection, []vector.Chunk{
			{
				ID:         "c1",
				DocumentID: "d1",
				Content:    "logging configuration guide",
				Title:      "Logging",
				Embedding:  []float32{1, 0, 0},
			},
			{
				ID:         "c2",
				DocumentID: "d2",
				Content:    "metrics and tracing overview",
				Title:      "Metrics",
				Embedding:  []float32{0, 1, 0},
			},
			{
				ID:         "c3",
				DocumentID: "d3",
				Content:    "unrelated cooking recipe",
				Title:      "Cooking",
				Embedding:  []float32{0, 0, 1},
			},
		})).To(Succeed())

		engine = query.New(embedder, store, query.Config{}, zap.NewNop())
	})

	search := func(req query.Request) *query.Response {
		GinkgoHelper()
		resp, err := engine.Search(context.Background(), req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	Describe("semantic strategy", func() {
		It("should rank by vector similarity", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
				Strategy:   query.StrategySemantic,
				Limit:      3,
			})

			Expect(resp.Results).NotTo(BeEmpty())
			Expect(resp.Results[0].ID).To(Equal("c1"))
			Expect(resp.Results[0].MatchType).To(Equal(query.MatchSemantic))
			Expect(resp.Strategies).To(Equal([]string{"semantic"}))
		})

		It("should default to semantic when no strategy is set", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
			})
			Expect(resp.Strategies).To(Equal([]string{"semantic"}))
		})

		It("should respect the score threshold", func() {
			resp := search(query.Request{
				Query:          "logging configuration",
				Collection:     collection,
				Strategy:       query.StrategySemantic,
				Limit:          3,
				ScoreThreshold: 0.9,
			})

			Expect(resp.Results).To(HaveLen(1))
			Expect(resp.Results[0].ID).To(Equal("c1"))
		})

		It("should apply metadata filters", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
				Strategy:   query.StrategySemantic,
				Limit:      3,
				Filters:    vector.Filters{"document_id": "d2"},
			})

			Expect(resp.Results).To(HaveLen(1))
			Expect(resp.Results[0].DocumentID).To(Equal("d2"))
		})

		It("should error on a missing collection", func() {
			_, err := engine.Search(context.Background(), query.Request{
				Query:      "logging configuration",
				Collection: "nope",
				Strategy:   query.StrategySemantic,
			})
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("hybrid strategy", func() {
		It("should mark results found by both passes and rank them first", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
				Strategy:   query.StrategyHybrid,
				Limit:      3,
			})

			Expect(resp.Results).NotTo(BeEmpty())
			top := resp.Results[0]
			Expect(top.ID).To(Equal("c1"))
			Expect(top.MatchType).To(Equal(query.MatchHybridBoth))

			// 0.7*semantic + 0.3*keyword beats a semantic-only weighting.
			Expect(top.Score).To(BeNumerically(">", 0.7))
		})

		It("should down-weight semantic-only results", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
				Strategy:   query.StrategyHybrid,
				Limit:      3,
			})

			for _, result := range resp.Results[1:] {
				Expect(result.MatchType).To(Equal(query.MatchSemantic))
				Expect(result.Score).To(BeNumerically("<=", 0.7))
			}
		})

		It("should report the passes that ran", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
				Strategy:   query.StrategyHybrid,
				Limit:      3,
			})
			Expect(resp.Strategies).To(ContainElements("semantic", "keyword", "hybrid"))
		})
	})

	Describe("advanced strategy", func() {
		It("should decompose compound queries and search each fragment", func() {
			resp := search(query.Request{
				Query:      "logging configuration and metrics tracing",
				Collection: collection,
				Strategy:   query.StrategyAdvanced,
				Limit:      3,
			})

			Expect(resp.SubQueries).To(Equal([]string{"logging configuration", "metrics tracing"}))
			Expect(resp.Strategies).To(Equal([]string{"advanced"}))
			Expect(resp.Results).NotTo(BeEmpty())

			seen := map[string]bool{}
			for _, result := range resp.Results {
				Expect(seen[result.ID]).To(BeFalse())
				seen[result.ID] = true
			}
		})

		It("should fall back to semantic for simple queries", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
				Strategy:   query.StrategyAdvanced,
				Limit:      3,
			})

			Expect(resp.Strategies).To(Equal([]string{"semantic"}))
			Expect(resp.SubQueries).To(BeEmpty())
		})
	})

	Describe("fusion strategy", func() {
		It("should merge semantic and hybrid lists", func() {
			resp := search(query.Request{
				Query:      "logging configuration",
				Collection: collection,
				Strategy:   query.StrategyFusion,
				Limit:      3,
			})

			Expect(resp.Strategies).To(Equal([]string{"semantic", "hybrid", "fusion"}))
			Expect(resp.Results).NotTo(BeEmpty())
			Expect(resp.Results[0].ID).To(Equal("c1"))
		})
	})

	Describe("query transformation", func() {
		It("should search variants and report them", func() {
			engine = query.New(embedder, store, query.Config{
				Synonyms: synonyms.Mapping{"logging": {"logs"}},
			}, zap.NewNop())

			resp := search(query.Request{
				Query:          "logging configuration",
				Collection:     collection,
				Strategy:       query.StrategySemantic,
				Limit:          3,
				TransformQuery: true,
			})

			Expect(resp.Strategies).To(ContainElement("transform"))
			Expect(resp.SubQueries).To(ContainElement("logs configuration"))
			Expect(resp.Results).NotTo(BeEmpty())
		})
	})

	Describe("unsupported strategy", func() {
		It("should return an error", func() {
			_, err := engine.Search(context.Background(), query.Request{
				Query:      "anything",
				Collection: collection,
				Strategy:   "bm25",
			})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported search strategy"))
		})
	})
})
