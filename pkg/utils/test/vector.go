package testutils

import (
	"context"
	"fmt"
	"sort"

	"github.com/quarrylabs/quarry/pkg/embeddings"
	"github.com/quarrylabs/quarry/pkg/vector"
)

// MockStore is an in-memory vector store for tests. It ranks hits by real
// cosine similarity over the stored embeddings so retrieval tests behave
// like a live backend.
type MockStore struct {
	collections map[string][]vector.Chunk
	dims        map[string]uint

	// FailUpserts causes the next N UpsertBatch calls to fail.
	FailUpserts int

	// UpsertSizes records the chunk count of every UpsertBatch call.
	UpsertSizes []int
}

func NewMockStore() *MockStore {
	return &MockStore{
		collections: make(map[string][]vector.Chunk),
		dims:        make(map[string]uint),
	}
}

func (m *MockStore) CreateCollection(_ context.Context, name string, dimensions uint) error {
	if _, ok := m.collections[name]; ok {
		return nil
	}
	m.collections[name] = nil
	m.dims[name] = dimensions
	return nil
}

func (m *MockStore) CollectionExists(_ context.Context, name string) (bool, error) {
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MockStore) UpsertBatch(_ context.Context, collection string, chunks []vector.Chunk) error {
	m.UpsertSizes = append(m.UpsertSizes, len(chunks))

	if m.FailUpserts > 0 {
		m.FailUpserts--
		return fmt.Errorf("mock upsert failure")
	}

	existing := m.collections[collection]
	for _, chunk := range chunks {
		replaced := false
		for i := range existing {
			if existing[i].ID == chunk.ID {
				existing[i] = chunk
				replaced = true
				break
			}
		}
		if !replaced {
			existing = append(existing, chunk)
		}
	}
	m.collections[collection] = existing
	return nil
}

func (m *MockStore) Search(_ context.Context, collection string, embedding []float32, limit int, threshold float32, filters vector.Filters) ([]vector.Hit, error) {
	chunks, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: collection %s", vector.ErrNotFound, collection)
	}

	hits := make([]vector.Hit, 0, len(chunks))
	for _, chunk := range chunks {
		if !matchesFilters(chunk, filters) {
			continue
		}
		score := float32(embeddings.Cosine(embedding, chunk.Embedding))
		if threshold > 0 && score < threshold {
			continue
		}
		hits = append(hits, vector.Hit{
			ID:         chunk.ID,
			DocumentID: chunk.DocumentID,
			Content:    chunk.Content,
			Title:      chunk.Title,
			URL:        chunk.URL,
			IndexedAt:  chunk.IndexedAt,
			Score:      score,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MockStore) DeleteDocument(_ context.Context, collection, documentID string) error {
	chunks := m.collections[collection]
	kept := chunks[:0]
	for _, chunk := range chunks {
		if chunk.DocumentID != documentID {
			kept = append(kept, chunk)
		}
	}
	m.collections[collection] = kept
	return nil
}

func (m *MockStore) DeleteCollection(_ context.Context, name string) error {
	delete(m.collections, name)
	delete(m.dims, name)
	return nil
}

func (m *MockStore) Count(_ context.Context, collection string) (uint64, error) {
	return uint64(len(m.collections[collection])), nil
}

func (m *MockStore) ListCollections(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockStore) HealthCheck(_ context.Context) error {
	return nil
}

func (m *MockStore) Close() error {
	return nil
}

func matchesFilters(chunk vector.Chunk, filters vector.Filters) bool {
	for field, want := range filters {
		switch field {
		case "document_id":
			if chunk.DocumentID != want {
				return false
			}
		case "url":
			if chunk.URL != want {
				return false
			}
		case "title":
			if chunk.Title != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

var _ vector.Store = (*MockStore)(nil)
var _ embeddings.Embedder = (*MockEmbedder)(nil)
