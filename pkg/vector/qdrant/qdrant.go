// Package qdrant provides an external vector-database store backed by Qdrant's gRPC API.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/vector"
)

const (
	// DefaultPort is Qdrant's default gRPC port.
	DefaultPort = 6334

	// maxBatchSize caps the number of points sent in one upsert call.
	maxBatchSize = 100

	// batchTimeout bounds a single upsert batch.
	batchTimeout = 30 * time.Second

	// retryFloor is the smallest batch size used by the timeout retry.
	retryFloor = 20
)

// Store implements vector.Store using Qdrant.
type Store struct {
	client *qdrant.Client
	logger *zap.Logger
}

// Config holds configuration for the Qdrant store.
type Config struct {
	// Host is the Qdrant server host (e.g., "localhost").
	Host string

	// Port is the gRPC port. Defaults to DefaultPort if zero.
	Port int

	// APIKey authenticates against Qdrant Cloud. Optional.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// NewStore creates a new Qdrant-backed vector store.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}

	port := c.Port
	if port == 0 {
		port = DefaultPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   c.Host,
		Port:   port,
		APIKey: c.APIKey,
		UseTLS: c.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrUnavailable, err)
	}

	logger.Info("connected to Qdrant",
		zap.String("host", c.Host),
		zap.Int("port", port),
	)

	return &Store{
		client: client,
		logger: logger,
	}, nil
}

// CreateCollection creates a collection with cosine distance and a fixed
// vector dimension. Creating an existing collection is a no-op.
func (s *Store) CreateCollection(ctx context.Context, name string, dimensions uint) error {
	if dimensions == 0 {
		return fmt.Errorf("collection dimensions cannot be 0, must be configured")
	}

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: checking collection %q: %v", vector.ErrUnavailable, name, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection %q: %v", vector.ErrUnavailable, name, err)
	}

	s.logger.Info("created qdrant collection",
		zap.String("collection", name),
		zap.Uint("dimensions", dimensions),
	)

	return nil
}

// CollectionExists reports whether the named collection exists.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("%w: checking collection %q: %v", vector.ErrUnavailable, name, err)
	}
	return exists, nil
}

func toPoints(chunks []vector.Chunk) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		indexedAt := chunk.IndexedAt
		if indexedAt.IsZero() {
			indexedAt = time.Now().UTC()
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.ID),
			Vectors: qdrant.NewVectors(chunk.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": chunk.DocumentID,
				"content":     chunk.Content,
				"title":       chunk.Title,
				"url":         chunk.URL,
				"section":     chunk.Section,
				"chunk_index": int64(chunk.Index),
				"indexed_at":  indexedAt.Format(time.RFC3339),
			}),
		}
	}
	return points
}

// UpsertBatch stores chunks in batches of up to 100 points with a 30s
// timeout per batch. A timed-out batch is retried once at a quarter of the
// size (floor 20) before the failure is surfaced.
func (s *Store) UpsertBatch(ctx context.Context, collection string, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	for start := 0; start < len(chunks); start += maxBatchSize {
		end := min(start+maxBatchSize, len(chunks))
		batch := chunks[start:end]

		if err := s.upsertOnce(ctx, collection, batch); err != nil {
			if !errors.Is(err, vector.ErrBatchTimeout) {
				return err
			}

			// Retry once at a quarter the batch size.
			retrySize := max(len(batch)/4, retryFloor)
			s.logger.Warn("batch upsert timed out, retrying with smaller batches",
				zap.String("collection", collection),
				zap.Int("batch_size", len(batch)),
				zap.Int("retry_size", retrySize),
			)

			for rs := 0; rs < len(batch); rs += retrySize {
				re := min(rs+retrySize, len(batch))
				if err := s.upsertOnce(ctx, collection, batch[rs:re]); err != nil {
					return err
				}
			}
		}
	}

	s.logger.Debug("upserted chunks",
		zap.String("collection", collection),
		zap.Int("count", len(chunks)),
	)

	return nil
}

func (s *Store) upsertOnce(ctx context.Context, collection string, chunks []vector.Chunk) error {
	batchCtx, cancel := context.WithTimeout(ctx, batchTimeout)
	defer cancel()

	_, err := s.client.Upsert(batchCtx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         toPoints(chunks),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		if errors.Is(batchCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %d points: %v", vector.ErrBatchTimeout, len(chunks), err)
		}
		return fmt.Errorf("%w: upserting %d points: %v", vector.ErrUnavailable, len(chunks), err)
	}
	return nil
}

// Search returns the most similar chunks using Qdrant's native cosine
// ranking, with optional score threshold and metadata filter predicates.
func (s *Store) Search(ctx context.Context, collection string, embedding []float32, limit int, threshold float32, filters vector.Filters) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	query := &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	}

	if threshold > 0 {
		query.ScoreThreshold = qdrant.PtrOf(threshold)
	}

	if len(filters) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filters))
		for field, value := range filters {
			conditions = append(conditions, qdrant.NewMatch(field, value))
		}
		query.Filter = &qdrant.Filter{Must: conditions}
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: querying collection %q: %v", vector.ErrUnavailable, collection, err)
	}

	hits := make([]vector.Hit, 0, len(points))
	for _, point := range points {
		hit := vector.Hit{
			ID:    point.GetId().GetUuid(),
			Score: point.GetScore(),
		}

		payload := point.GetPayload()
		if payload != nil {
			hit.DocumentID = payload["document_id"].GetStringValue()
			hit.Content = payload["content"].GetStringValue()
			hit.Title = payload["title"].GetStringValue()
			hit.URL = payload["url"].GetStringValue()
			if ts := payload["indexed_at"].GetStringValue(); ts != "" {
				if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
					hit.IndexedAt = parsed
				}
			}
		}

		hits = append(hits, hit)
	}

	s.logger.Debug("queried qdrant",
		zap.String("collection", collection),
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

// DeleteDocument removes all chunks belonging to a document.
func (s *Store) DeleteDocument(ctx context.Context, collection, documentID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting document %q: %v", vector.ErrUnavailable, documentID, err)
	}
	return nil
}

// DeleteCollection removes the collection and all of its chunks.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("%w: deleting collection %q: %v", vector.ErrUnavailable, name, err)
	}
	return nil
}

// Count returns the exact number of chunks stored in the collection.
func (s *Store) Count(ctx context.Context, collection string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("%w: counting collection %q: %v", vector.ErrUnavailable, collection, err)
	}
	return count, nil
}

// ListCollections returns the names of all collections.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing collections: %v", vector.ErrUnavailable, err)
	}
	return names, nil
}

// HealthCheck verifies the Qdrant server is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("%w: %v", vector.ErrUnavailable, err)
	}
	return nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ensure Store implements vector.Store
var _ vector.Store = (*Store)(nil)
