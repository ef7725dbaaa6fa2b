package embeddings

import "errors"

var (
	// ErrEmbedding is returned when embedding generation fails.
	ErrEmbedding = errors.New("embedding failed")

	// ErrProviderTimeout is returned when the embedding provider does not
	// respond within the configured timeout. Not retried here; retry is the
	// caller's decision.
	ErrProviderTimeout = errors.New("embedding provider timed out")
)
