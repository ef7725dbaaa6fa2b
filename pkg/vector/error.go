package vector

import "errors"

var (
	// ErrNotFound is returned when a collection or document is not found.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when the vector store backend is
	// unreachable or misconfigured. Check the vector_store.target setting
	// and that the backend process is running.
	ErrUnavailable = errors.New("vector store unavailable")

	// ErrBatchTimeout is returned when a batch upsert exceeds its deadline
	// after the bounded internal retry.
	ErrBatchTimeout = errors.New("batch upsert timed out")

	// ErrDimensionMismatch is returned when a chunk's embedding does not
	// match the collection's fixed dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
