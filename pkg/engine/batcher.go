package engine

import "sync"

const (
	batchStart = 50
	batchMin   = 10
	batchMax   = 200

	// growAfter consecutive successful batches, the size grows by
	// growFactor; shrinkAfter consecutive failures, it shrinks by
	// shrinkFactor. Each adjustment takes effect on the next batch, not
	// the one in flight.
	growAfter    = 3
	shrinkAfter  = 2
	growFactor   = 1.5
	shrinkFactor = 0.5
)

// batcher adapts the indexing batch size to observed success and failure
// streaks. Safe for concurrent use: multiple indexing calls may share one.
type batcher struct {
	mu        sync.Mutex
	size      int
	successes int
	failures  int
}

func newBatcher() *batcher {
	return &batcher{size: batchStart}
}

// next returns the batch size to use for the next batch.
func (b *batcher) next() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

func (b *batcher) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.successes++
	if b.successes >= growAfter {
		b.successes = 0
		b.size = min(int(float64(b.size)*growFactor), batchMax)
	}
}

func (b *batcher) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	b.failures++
	if b.failures >= shrinkAfter {
		b.failures = 0
		b.size = max(int(float64(b.size)*shrinkFactor), batchMin)
	}
}
