package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/quarrylabs/quarry/pkg/embeddings"
	"github.com/quarrylabs/quarry/pkg/embeddings/ollama"
)

var _ = Describe("Embedder", func() {
	Describe("NewEmbedder", func() {
		It("should require dimensions", func() {
			_, err := ollama.NewEmbedder(ollama.EmbedderConfig{})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("dimensions"))
		})

		It("should apply defaults", func() {
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{Dimensions: 768})
			Expect(err).NotTo(HaveOccurred())
			Expect(e.Dimensions()).To(Equal(uint(768)))
			Expect(e.Close()).To(Succeed())
		})
	})

	Describe("Embed", func() {
		It("should post to /api/embed and return the first embedding", func() {
			var gotModel, gotInput string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/embed"))
				Expect(r.Method).To(Equal(http.MethodPost))

				var req struct {
					Model string `json:"model"`
					Input string `json:"input"`
				}
				Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
				gotModel = req.Model
				gotInput = req.Input

				_ = json.NewEncoder(w).Encode(map[string][][]float32{
					"embeddings": {{0.1, 0.2, 0.3}},
				})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{
				BaseURL:    server.URL,
				Model:      "nomic-embed-text",
				Dimensions: 3,
			})
			Expect(err).NotTo(HaveOccurred())

			vec, err := e.Embed(context.Background(), "hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(vec).To(Equal([]float32{0.1, 0.2, 0.3}))
			Expect(gotModel).To(Equal("nomic-embed-text"))
			Expect(gotInput).To(Equal("hello"))
		})

		It("should wrap non-200 responses in ErrEmbedding", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model not found", http.StatusNotFound)
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Dimensions: 3})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "hello")
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		})

		It("should wrap empty embedding lists in ErrEmbedding", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string][][]float32{"embeddings": {}})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Dimensions: 3})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "hello")
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		})

		It("should surface provider timeouts as ErrProviderTimeout", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				time.Sleep(200 * time.Millisecond)
				_ = json.NewEncoder(w).Encode(map[string][][]float32{
					"embeddings": {{0.1, 0.2, 0.3}},
				})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{
				BaseURL:    server.URL,
				Dimensions: 3,
				Timeout:    10 * time.Millisecond,
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.Embed(context.Background(), "hello")
			Expect(err).To(MatchError(embeddings.ErrProviderTimeout))
		})
	})

	Describe("EmbedBatch", func() {
		It("should return nothing for an empty batch", func() {
			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{Dimensions: 3})
			Expect(err).NotTo(HaveOccurred())

			vecs, err := e.EmbedBatch(context.Background(), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(BeNil())
		})

		It("should preserve input order across the concurrent fan-out", func() {
			var calls atomic.Int64

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)

				var req struct {
					Input string `json:"input"`
				}
				_ = json.NewDecoder(r.Body).Decode(&req)

				// Echo the input length so each text gets a distinct vector.
				_ = json.NewEncoder(w).Encode(map[string][][]float32{
					"embeddings": {{float32(len(req.Input)), 0, 0}},
				})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Dimensions: 3})
			Expect(err).NotTo(HaveOccurred())

			vecs, err := e.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
			Expect(err).NotTo(HaveOccurred())
			Expect(vecs).To(HaveLen(3))
			Expect(vecs[0][0]).To(Equal(float32(1)))
			Expect(vecs[1][0]).To(Equal(float32(2)))
			Expect(vecs[2][0]).To(Equal(float32(3)))
			Expect(calls.Load()).To(Equal(int64(3)))
		})

		It("should fail the batch when any call fails", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Input string `json:"input"`
				}
				_ = json.NewDecoder(r.Body).Decode(&req)

				if req.Input == "bad" {
					http.Error(w, "boom", http.StatusInternalServerError)
					return
				}
				_ = json.NewEncoder(w).Encode(map[string][][]float32{
					"embeddings": {{0.1, 0.2, 0.3}},
				})
			}))
			defer server.Close()

			e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Dimensions: 3})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.EmbedBatch(context.Background(), []string{"good", "bad"})
			Expect(err).To(MatchError(embeddings.ErrEmbedding))
		})
	})
})
