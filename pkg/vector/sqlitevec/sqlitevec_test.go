package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/vector"
	"github.com/quarrylabs/quarry/pkg/vector/sqlitevec"
)

var _ = Describe("Store", func() {
	var (
		store  *sqlitevec.Store
		logger *zap.Logger
		ctx    context.Context
	)

	const collection = "docs"

	BeforeEach(func() {
		logger = zap.NewNop()
		ctx = context.Background()

		var err error
		store, err = sqlitevec.NewStore(sqlitevec.Config{InMemory: true}, logger)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("NewStore", func() {
		It("should require a data directory for file-backed stores", func() {
			_, err := sqlitevec.NewStore(sqlitevec.Config{}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("data directory"))
		})
	})

	Describe("CreateCollection", func() {
		It("should reject zero dimensions", func() {
			err := store.CreateCollection(ctx, collection, 0)
			Expect(err).To(HaveOccurred())
		})

		It("should be a no-op for an existing collection", func() {
			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())
			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())
		})

		It("should report existence", func() {
			exists, err := store.CollectionExists(ctx, collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())

			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())

			exists, err = store.CollectionExists(ctx, collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())
		})
	})

	Describe("UpsertBatch", func() {
		BeforeEach(func() {
			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())
		})

		It("should do nothing for an empty batch", func() {
			Expect(store.UpsertBatch(ctx, collection, nil)).To(Succeed())
		})

		It("should store chunks and count them", func() {
			chunks := []vector.Chunk{
				{ID: "c1", DocumentID: "d1", Content: "first", Embedding: []float32{1, 0, 0, 0}},
				{ID: "c2", DocumentID: "d1", Content: "second", Embedding: []float32{0, 1, 0, 0}},
			}
			Expect(store.UpsertBatch(ctx, collection, chunks)).To(Succeed())

			count, err := store.Count(ctx, collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(uint64(2)))
		})

		It("should update an existing chunk instead of duplicating it", func() {
			chunk := vector.Chunk{ID: "c1", DocumentID: "d1", Content: "original", Embedding: []float32{1, 0, 0, 0}}
			Expect(store.UpsertBatch(ctx, collection, []vector.Chunk{chunk})).To(Succeed())

			chunk.Content = "updated"
			chunk.Embedding = []float32{0, 1, 0, 0}
			Expect(store.UpsertBatch(ctx, collection, []vector.Chunk{chunk})).To(Succeed())

			count, err := store.Count(ctx, collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(uint64(1)))

			hits, err := store.Search(ctx, collection, []float32{0, 1, 0, 0}, 1, 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].Content).To(Equal("updated"))
		})

		It("should reject chunks with mismatched dimensions", func() {
			err := store.UpsertBatch(ctx, collection, []vector.Chunk{
				{ID: "c1", DocumentID: "d1", Embedding: []float32{1, 0}},
			})
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("should error for an unknown collection", func() {
			err := store.UpsertBatch(ctx, "nope", []vector.Chunk{
				{ID: "c1", DocumentID: "d1", Embedding: []float32{1, 0, 0, 0}},
			})
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("Search", func() {
		BeforeEach(func() {
			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())
			Expect(store.UpsertBatch(ctx, collection, []vector.Chunk{
				{ID: "c1", DocumentID: "d1", Content: "exact match", Title: "One", URL: "u1", Embedding: []float32{1, 0, 0, 0}},
				{ID: "c2", DocumentID: "d2", Content: "close match", Title: "Two", URL: "u2", Embedding: []float32{0.9, 0.1, 0, 0}},
				{ID: "c3", DocumentID: "d3", Content: "orthogonal", Title: "Three", URL: "u3", Embedding: []float32{0, 0, 1, 0}},
			})).To(Succeed())
		})

		It("should rank results by similarity", func() {
			hits, err := store.Search(ctx, collection, []float32{1, 0, 0, 0}, 3, 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(3))
			Expect(hits[0].ID).To(Equal("c1"))
			Expect(hits[1].ID).To(Equal("c2"))
			Expect(hits[2].ID).To(Equal("c3"))

			// Identical vector: cosine distance 0, similarity 1.
			Expect(hits[0].Score).To(BeNumerically("~", 1.0, 1e-3))
			// Orthogonal vector: cosine distance 1, similarity 0.5.
			Expect(hits[2].Score).To(BeNumerically("~", 0.5, 1e-3))
		})

		It("should respect the limit", func() {
			hits, err := store.Search(ctx, collection, []float32{1, 0, 0, 0}, 2, 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(2))
		})

		It("should drop hits below the threshold", func() {
			hits, err := store.Search(ctx, collection, []float32{1, 0, 0, 0}, 3, 0.9, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(hits)).To(BeNumerically("<", 3))
			for _, hit := range hits {
				Expect(hit.Score).To(BeNumerically(">=", 0.9))
			}
		})

		It("should apply metadata filters", func() {
			hits, err := store.Search(ctx, collection, []float32{1, 0, 0, 0}, 3, 0, vector.Filters{
				"document_id": "d2",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].DocumentID).To(Equal("d2"))
		})

		It("should error for an unknown collection", func() {
			_, err := store.Search(ctx, "nope", []float32{1, 0, 0, 0}, 3, 0, nil)
			Expect(err).To(MatchError(vector.ErrNotFound))
		})
	})

	Describe("DeleteDocument", func() {
		It("should remove only the named document's chunks", func() {
			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())
			Expect(store.UpsertBatch(ctx, collection, []vector.Chunk{
				{ID: "c1", DocumentID: "d1", Embedding: []float32{1, 0, 0, 0}},
				{ID: "c2", DocumentID: "d1", Embedding: []float32{0, 1, 0, 0}},
				{ID: "c3", DocumentID: "d2", Embedding: []float32{0, 0, 1, 0}},
			})).To(Succeed())

			Expect(store.DeleteDocument(ctx, collection, "d1")).To(Succeed())

			count, err := store.Count(ctx, collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(uint64(1)))

			hits, err := store.Search(ctx, collection, []float32{0, 0, 1, 0}, 3, 0, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(hits).To(HaveLen(1))
			Expect(hits[0].DocumentID).To(Equal("d2"))
		})
	})

	Describe("DeleteCollection", func() {
		It("should drop the collection", func() {
			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())
			Expect(store.DeleteCollection(ctx, collection)).To(Succeed())

			exists, err := store.CollectionExists(ctx, collection)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Describe("ListCollections", func() {
		It("should list open collections in sorted order", func() {
			Expect(store.CreateCollection(ctx, "gamma", 4)).To(Succeed())
			Expect(store.CreateCollection(ctx, "alpha", 4)).To(Succeed())
			Expect(store.CreateCollection(ctx, "beta", 4)).To(Succeed())

			names, err := store.ListCollections(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(names).To(Equal([]string{"alpha", "beta", "gamma"}))
		})
	})

	Describe("HealthCheck", func() {
		It("should succeed with open collections", func() {
			Expect(store.CreateCollection(ctx, collection, 4)).To(Succeed())
			Expect(store.HealthCheck(ctx)).To(Succeed())
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Store", func() {
			var _ vector.Store = (*sqlitevec.Store)(nil)
		})
	})
})
