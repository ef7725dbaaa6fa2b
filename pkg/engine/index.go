package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/chunker"
	"github.com/quarrylabs/quarry/pkg/vector"
)

// IndexReport summarizes an IndexDocuments call. Partial batch failures are
// reported here, never silently dropped.
type IndexReport struct {
	DocumentsIndexed int `json:"documents_indexed"`
	ChunksIndexed    int `json:"chunks_indexed"`
	ChunksFailed     int `json:"chunks_failed"`
	BatchesFailed    int `json:"batches_failed"`
}

// IndexDocuments chunks each document, embeds the chunks through the cached
// batch embedder, and upserts them with adaptive batch sizing. The
// collection is created on first use with the embedder's dimension.
func (e *Engine) IndexDocuments(ctx context.Context, collection string, docs []chunker.Document, opts chunker.Options) (*IndexReport, error) {
	if len(docs) == 0 {
		return &IndexReport{}, nil
	}

	if err := e.store.CreateCollection(ctx, collection, e.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", collection, err)
	}

	report := &IndexReport{}
	var pending []vector.Chunk

	for _, doc := range docs {
		chunks, err := e.chunker.Chunk(ctx, doc, opts)
		if err != nil {
			return nil, fmt.Errorf("chunking document %q: %w", doc.ID, err)
		}
		if len(chunks) == 0 {
			continue
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}

		vectors, err := e.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding chunks of document %q: %w", doc.ID, err)
		}

		indexedAt := time.Now().UTC()
		for i, c := range chunks {
			pending = append(pending, vector.Chunk{
				ID:         c.ID,
				DocumentID: c.DocumentID,
				Content:    c.Content,
				Index:      c.Index,
				Title:      c.Title,
				URL:        c.URL,
				Section:    c.Section,
				IndexedAt:  indexedAt,
				Embedding:  vectors[i],
			})
		}
		report.DocumentsIndexed++
	}

	for start := 0; start < len(pending); {
		size := e.batcher.next()
		end := min(start+size, len(pending))
		batch := pending[start:end]

		if err := e.store.UpsertBatch(ctx, collection, batch); err != nil {
			e.batcher.recordFailure()
			report.ChunksFailed += len(batch)
			report.BatchesFailed++
			e.logger.Warn("batch upsert failed",
				zap.String("collection", collection),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
		} else {
			e.batcher.recordSuccess()
			report.ChunksIndexed += len(batch)
		}

		start = end

		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	e.logger.Info("indexed documents",
		zap.String("collection", collection),
		zap.Int("documents", report.DocumentsIndexed),
		zap.Int("chunks", report.ChunksIndexed),
		zap.Int("chunks_failed", report.ChunksFailed),
	)

	return report, nil
}

// DeleteDocument removes all of a document's chunks from the collection.
func (e *Engine) DeleteDocument(ctx context.Context, collection, documentID string) error {
	return e.store.DeleteDocument(ctx, collection, documentID)
}

// DeleteCollection removes the collection and all of its chunks.
func (e *Engine) DeleteCollection(ctx context.Context, collection string) error {
	return e.store.DeleteCollection(ctx, collection)
}
