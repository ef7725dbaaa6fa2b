// Package vector provides interfaces and implementations for vector storage.
package vector

import (
	"context"
	"time"
)

// Chunk represents a stored slice of a document with its embedding and
// denormalized display metadata.
type Chunk struct {
	// ID is a unique identifier for the chunk.
	ID string

	// DocumentID is the parent document's identifier.
	DocumentID string

	// Content is the chunk text, after contextual-header enrichment.
	Content string

	// Index is the chunk's position within its parent document.
	Index int

	// Title and URL are denormalized from the parent document for display.
	Title string
	URL   string

	// Section is the nearest heading above the chunk, when known.
	Section string

	// IndexedAt records when the chunk was written to the store.
	IndexedAt time.Time

	// Embedding is the vector representation of the chunk content.
	Embedding []float32
}

// Hit represents a search result with similarity score.
type Hit struct {
	ID         string
	DocumentID string
	Content    string
	Title      string
	URL        string
	IndexedAt  time.Time

	// Score is the similarity score in [0, 1] (higher = more similar).
	Score float32
}

// Filters restricts a search to hits whose metadata fields equal the given
// values. Supported fields: "document_id", "url", "title".
type Filters map[string]string

// Store handles collection lifecycle, batched upsert, and similarity search
// uniformly across backends. It is the only component allowed to talk to a
// vector backend directly.
type Store interface {
	// CreateCollection creates a named collection with a fixed vector dimension.
	// Creating an existing collection is a no-op.
	CreateCollection(ctx context.Context, name string, dimensions uint) error

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// UpsertBatch stores chunks with their embeddings. Chunks with an
	// existing ID are updated.
	UpsertBatch(ctx context.Context, collection string, chunks []Chunk) error

	// Search returns up to limit hits ranked by similarity, dropping hits
	// below threshold (when > 0) and not matching filters (when non-nil).
	Search(ctx context.Context, collection string, embedding []float32, limit int, threshold float32, filters Filters) ([]Hit, error)

	// DeleteDocument removes all chunks belonging to a document.
	DeleteDocument(ctx context.Context, collection, documentID string) error

	// DeleteCollection removes the collection and all of its chunks.
	DeleteCollection(ctx context.Context, name string) error

	// Count returns the number of chunks stored in the collection.
	Count(ctx context.Context, collection string) (uint64, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// HealthCheck verifies the backend is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
