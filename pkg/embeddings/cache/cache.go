// Package cache provides a bounded LRU cache wrapper around an Embedder.
//
// The cache is keyed by a stable hash of whitespace-normalized text, so
// repeated embeds of equivalent content hit the cache regardless of
// incidental spacing. One cache instance is injected per engine instance;
// there is no process-wide singleton.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/embeddings"
)

// DefaultCapacity is the default number of cached embeddings.
// At 1024 dimensions this is roughly 80MB of float32 vectors.
const DefaultCapacity = 10000

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// HitRate returns hits / (hits + misses), or 0 when the cache is cold.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// CachedEmbedder wraps an Embedder with an LRU cache.
type CachedEmbedder struct {
	inner  embeddings.Embedder
	logger *zap.Logger

	mu     sync.Mutex
	cache  *lru.Cache[string, []float32]
	hits   uint64
	misses uint64
}

// New creates a CachedEmbedder with the given capacity.
// A capacity <= 0 falls back to DefaultCapacity.
func New(inner embeddings.Embedder, capacity int, logger *zap.Logger) (*CachedEmbedder, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	c, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, fmt.Errorf("creating LRU cache: %w", err)
	}

	return &CachedEmbedder{
		inner:  inner,
		cache:  c,
		logger: logger,
	}, nil
}

// Key returns the cache key for the given text: a sha256 hex digest of the
// lowercased, whitespace-collapsed content.
func Key(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Embed returns the cached vector for text when present, marking it
// most-recently-used; otherwise it calls the underlying embedder and
// inserts the result, evicting the least-recently-used entry on overflow.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := Key(text)

	c.mu.Lock()
	vec, ok := c.cache.Get(key)
	if ok && !c.validEntry(vec) {
		// Impossible state in cache bookkeeping: clear and rebuild rather
		// than serving a vector of the wrong shape.
		c.cache.Purge()
		c.logger.Warn("embedding cache corruption detected, cache cleared",
			zap.String("key", key),
		)
		ok = false
	}
	if ok {
		c.hits++
		c.mu.Unlock()
		return vec, nil
	}
	c.misses++
	c.mu.Unlock()

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(key, vec)
	c.mu.Unlock()

	return vec, nil
}

// EmbedBatch embeds texts, serving cached entries and delegating only the
// misses to the underlying embedder's batched fan-out. Input order is
// preserved in the returned slice.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	c.mu.Lock()
	for i, text := range texts {
		vec, ok := c.cache.Get(Key(text))
		if ok && !c.validEntry(vec) {
			c.cache.Purge()
			c.logger.Warn("embedding cache corruption detected, cache cleared")
			ok = false
		}
		if ok {
			c.hits++
			vectors[i] = vec
			continue
		}
		c.misses++
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	c.mu.Unlock()

	if len(missTexts) == 0 {
		return vectors, nil
	}

	embedded, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for j, vec := range embedded {
		vectors[missIdx[j]] = vec
		c.cache.Add(Key(missTexts[j]), vec)
	}
	c.mu.Unlock()

	return vectors, nil
}

// validEntry checks a cached vector against the embedder's dimension.
func (c *CachedEmbedder) validEntry(vec []float32) bool {
	if len(vec) == 0 {
		return false
	}
	if dim := c.inner.Dimensions(); dim != 0 && uint(len(vec)) != dim {
		return false
	}
	return true
}

// Stats returns a snapshot of the hit/miss counters and current size.
func (c *CachedEmbedder) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:   c.hits,
		Misses: c.misses,
		Size:   c.cache.Len(),
	}
}

// Dimensions returns the underlying embedder's vector dimension.
func (c *CachedEmbedder) Dimensions() uint {
	return c.inner.Dimensions()
}

// Close releases the underlying embedder's resources.
func (c *CachedEmbedder) Close() error {
	return c.inner.Close()
}

// Ensure CachedEmbedder implements embeddings.Embedder
var _ embeddings.Embedder = (*CachedEmbedder)(nil)
