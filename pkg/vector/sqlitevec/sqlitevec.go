// Package sqlitevec provides an embedded SQLite-backed vector store using sqlite-vec.
//
// Each collection lives in its own database file under the configured data
// directory. Databases are opened in WAL mode so concurrent readers are not
// blocked by indexing writes.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/vector"
)

// Store implements vector.Store using SQLite with sqlite-vec.
type Store struct {
	dataDir  string
	inMemory bool
	logger   *zap.Logger

	mu          sync.Mutex
	collections map[string]*collection
}

type collection struct {
	db         *sql.DB
	dimensions uint
}

// Config holds configuration for the SQLite vec store.
type Config struct {
	// DataDir is the directory holding one database file per collection.
	DataDir string

	// InMemory uses shared in-memory databases instead of files.
	// Intended for tests.
	InMemory bool
}

// NewStore creates a new embedded vector store backed by sqlite-vec.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	// enable connections to have the sqlite-vec extension
	sqlite_vec.Auto()

	if c.DataDir == "" && !c.InMemory {
		return nil, fmt.Errorf("data directory is required")
	}

	if !c.InMemory {
		if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating data directory: %v", vector.ErrUnavailable, err)
		}
	}

	s := &Store{
		dataDir:     c.DataDir,
		inMemory:    c.InMemory,
		logger:      logger,
		collections: make(map[string]*collection),
	}

	logger.Info("sqlite-vec vector store initialized",
		zap.String("data_dir", c.DataDir),
		zap.Bool("in_memory", c.InMemory),
	)

	return s, nil
}

func (s *Store) dsn(name string) string {
	if s.inMemory {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	}
	return filepath.Join(s.dataDir, name+".db") + "?_journal_mode=WAL"
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dataDir, name+".db")
}

// CreateCollection creates a collection with a fixed vector dimension.
// Creating an existing collection is a no-op.
func (s *Store) CreateCollection(ctx context.Context, name string, dimensions uint) error {
	if dimensions == 0 {
		return fmt.Errorf("collection dimensions cannot be 0, must be configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[name]; ok {
		return nil
	}

	col, err := s.open(ctx, name, dimensions)
	if err != nil {
		return err
	}

	s.collections[name] = col
	return nil
}

// open opens (or creates) the collection database and ensures its schema.
// Caller must hold s.mu.
func (s *Store) open(ctx context.Context, name string, dimensions uint) (*collection, error) {
	db, err := sql.Open("sqlite3", s.dsn(name))
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrUnavailable, err)
	}

	// Shared in-memory databases vanish when the last connection closes.
	db.SetMaxIdleConns(1)

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRowContext(ctx, "SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: sqlite-vec not available: %v", vector.ErrUnavailable, err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS collection_meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating meta table: %w", err)
	}

	// The collection dimension is fixed for its lifetime; reject reopening
	// with a different one.
	var stored string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM collection_meta WHERE key = 'dimensions'`,
	).Scan(&stored)
	switch {
	case err == nil:
		if stored != fmt.Sprintf("%d", dimensions) {
			db.Close()
			return nil, fmt.Errorf("%w: collection %q has dimension %s, got %d",
				vector.ErrDimensionMismatch, name, stored, dimensions)
		}
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx,
			`INSERT INTO collection_meta(key, value) VALUES ('dimensions', ?)`,
			fmt.Sprintf("%d", dimensions),
		); err != nil {
			db.Close()
			return nil, fmt.Errorf("storing dimensions: %w", err)
		}
	default:
		db.Close()
		return nil, fmt.Errorf("reading dimensions: %w", err)
	}

	// Chunk metadata table. vec0 virtual tables use integer rowids, so this
	// table also maps string chunk IDs to the vec0 rowids.
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chunks (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			chunk_id TEXT NOT NULL UNIQUE,
			document_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL DEFAULT '',
			section TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL DEFAULT 0,
			indexed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating chunks table: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating document index: %w", err)
	}

	// vec0 virtual table for KNN queries, cosine distance convention.
	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunk_embeddings USING vec0(embedding float[%d] distance_metric=cosine)`,
		dimensions,
	)
	if _, err := db.ExecContext(ctx, createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	s.logger.Debug("opened collection",
		zap.String("collection", name),
		zap.Uint("dimensions", dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &collection{db: db, dimensions: dimensions}, nil
}

// get returns the open collection handle, opening the on-disk database when
// the collection exists but has not been touched by this process yet.
func (s *Store) get(ctx context.Context, name string) (*collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		return col, nil
	}

	if s.inMemory {
		return nil, fmt.Errorf("%w: collection %q", vector.ErrNotFound, name)
	}

	if _, err := os.Stat(s.path(name)); err != nil {
		return nil, fmt.Errorf("%w: collection %q", vector.ErrNotFound, name)
	}

	db, err := sql.Open("sqlite3", s.dsn(name))
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", vector.ErrUnavailable, err)
	}

	var stored uint
	err = db.QueryRowContext(ctx,
		`SELECT value FROM collection_meta WHERE key = 'dimensions'`,
	).Scan(&stored)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: reading collection dimensions: %v", vector.ErrUnavailable, err)
	}

	col := &collection{db: db, dimensions: stored}
	s.collections[name] = col
	return col, nil
}

// CollectionExists reports whether the named collection exists.
func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	_, open := s.collections[name]
	s.mu.Unlock()
	if open {
		return true, nil
	}

	if s.inMemory {
		return false, nil
	}

	_, err := os.Stat(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking collection %q: %w", name, err)
	}
	return true, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// UpsertBatch stores chunks with their embeddings.
// Chunks with an existing ID are updated.
func (s *Store) UpsertBatch(ctx context.Context, collectionName string, chunks []vector.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	col, err := s.get(ctx, collectionName)
	if err != nil {
		return err
	}

	tx, err := col.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		if uint(len(chunk.Embedding)) != col.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, collection expects %d",
				vector.ErrDimensionMismatch, chunk.ID, len(chunk.Embedding), col.dimensions)
		}

		embBlob := serializeFloat32(chunk.Embedding)

		indexedAt := chunk.IndexedAt
		if indexedAt.IsZero() {
			indexedAt = time.Now().UTC()
		}

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM chunks WHERE chunk_id = ?`, chunk.ID,
		).Scan(&existingRowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, `
				UPDATE chunks
				SET document_id = ?, content = ?, title = ?, url = ?, section = ?, chunk_index = ?, indexed_at = ?
				WHERE rowid = ?`,
				chunk.DocumentID, chunk.Content, chunk.Title, chunk.URL, chunk.Section, chunk.Index, indexedAt, existingRowID,
			); err != nil {
				return fmt.Errorf("updating chunk %s: %w", chunk.ID, err)
			}

			// Update embedding in vec0 table via DELETE + INSERT
			// (vec0 does not support UPDATE)
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM chunk_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for chunk %s: %w", chunk.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for chunk %s: %w", chunk.ID, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			result, err := tx.ExecContext(ctx, `
				INSERT INTO chunks(chunk_id, document_id, content, title, url, section, chunk_index, indexed_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				chunk.ID, chunk.DocumentID, chunk.Content, chunk.Title, chunk.URL, chunk.Section, chunk.Index, indexedAt,
			)
			if err != nil {
				return fmt.Errorf("inserting chunk %s: %w", chunk.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for chunk %s: %w", chunk.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunk_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for chunk %s: %w", chunk.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("upserted chunks",
		zap.String("collection", collectionName),
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Search finds the most similar chunks via a KNN query, converting the
// returned cosine distance to similarity via max(0, 1 - distance/2).
func (s *Store) Search(ctx context.Context, collectionName string, embedding []float32, limit int, threshold float32, filters vector.Filters) ([]vector.Hit, error) {
	if limit <= 0 {
		limit = 10
	}

	col, err := s.get(ctx, collectionName)
	if err != nil {
		return nil, err
	}

	queryBlob := serializeFloat32(embedding)

	// Over-fetch when the caller filters post-KNN so the final page can
	// still fill up to limit.
	k := limit
	if threshold > 0 || len(filters) > 0 {
		k = limit * 4
	}

	rows, err := col.db.QueryContext(ctx, `
		SELECT
			c.chunk_id,
			c.document_id,
			c.content,
			c.title,
			c.url,
			c.indexed_at,
			ce.distance
		FROM chunk_embeddings ce
		INNER JOIN chunks c ON c.rowid = ce.rowid
		WHERE ce.embedding MATCH ?
			AND ce.k = ?
		ORDER BY ce.distance
	`, queryBlob, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []vector.Hit
	for rows.Next() {
		var hit vector.Hit
		var distance float64
		if err := rows.Scan(&hit.ID, &hit.DocumentID, &hit.Content, &hit.Title, &hit.URL, &hit.IndexedAt, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		// Cosine-distance convention: distance 0 is identical, 2 is opposite.
		hit.Score = float32(math.Max(0, 1-distance/2))

		if threshold > 0 && hit.Score < threshold {
			continue
		}
		if !matchesFilters(hit, filters) {
			continue
		}

		hits = append(hits, hit)
		if len(hits) == limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	s.logger.Debug("queried sqlite-vec",
		zap.String("collection", collectionName),
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

func matchesFilters(hit vector.Hit, filters vector.Filters) bool {
	for field, want := range filters {
		var got string
		switch field {
		case "document_id":
			got = hit.DocumentID
		case "url":
			got = hit.URL
		case "title":
			got = hit.Title
		default:
			return false
		}
		if !strings.EqualFold(got, want) {
			return false
		}
	}
	return true
}

// DeleteDocument removes all chunks belonging to a document.
func (s *Store) DeleteDocument(ctx context.Context, collectionName, documentID string) error {
	col, err := s.get(ctx, collectionName)
	if err != nil {
		return err
	}

	tx, err := col.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT rowid FROM chunks WHERE document_id = ?`, documentID,
	)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunk_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ?`, documentID,
	); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Debug("deleted document",
		zap.String("collection", collectionName),
		zap.String("document_id", documentID),
		zap.Int("chunks", len(rowIDs)),
	)

	return nil
}

// DeleteCollection removes the collection and its database file.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[name]; ok {
		col.db.Close()
		delete(s.collections, name)
	}

	if s.inMemory {
		return nil
	}

	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing collection database: %w", err)
	}

	// WAL sidecar files, if present.
	os.Remove(s.path(name) + "-wal")
	os.Remove(s.path(name) + "-shm")

	return nil
}

// Count returns the number of chunks stored in the collection.
func (s *Store) Count(ctx context.Context, collectionName string) (uint64, error) {
	col, err := s.get(ctx, collectionName)
	if err != nil {
		return 0, err
	}

	var count uint64
	if err := col.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return count, nil
}

// ListCollections returns the names of all collections.
func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[string]bool)
	for name := range s.collections {
		names[name] = true
	}

	if !s.inMemory {
		entries, err := os.ReadDir(s.dataDir)
		if err != nil {
			return nil, fmt.Errorf("%w: reading data directory: %v", vector.ErrUnavailable, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
				continue
			}
			names[strings.TrimSuffix(entry.Name(), ".db")] = true
		}
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	sort.Strings(result)
	return result, nil
}

// HealthCheck verifies the data directory is accessible and open databases
// respond to a ping.
func (s *Store) HealthCheck(ctx context.Context) error {
	if !s.inMemory {
		if _, err := os.Stat(s.dataDir); err != nil {
			return fmt.Errorf("%w: data directory: %v", vector.ErrUnavailable, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, col := range s.collections {
		if err := col.db.PingContext(ctx); err != nil {
			return fmt.Errorf("%w: collection %q: %v", vector.ErrUnavailable, name, err)
		}
	}
	return nil
}

// Close releases all open collection databases.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, col := range s.collections {
		if err := col.db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing collection %q: %w", name, err)
		}
		delete(s.collections, name)
	}
	return firstErr
}

// Ensure Store implements vector.Store
var _ vector.Store = (*Store)(nil)
