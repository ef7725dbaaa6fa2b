package config

const (
	defaultVectorProvider = "sqlite"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingCacheSize  = 10000

	defaultChunkStrategy       = "character"
	defaultChunkSize           = 1000
	defaultChunkOverlap        = 100
	defaultSimilarityThreshold = 0.75
	defaultMaxChunkSize        = 2000

	defaultSearchStrategy = "semantic"
	defaultSearchLimit    = 10
	defaultRRFK           = 60.0

	defaultRerankVectorWeight    = 0.5
	defaultRerankTermWeight      = 0.3
	defaultRerankTitleWeight     = 0.1
	defaultRerankFreshnessWeight = 0.1
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		VectorStore: VectorStoreConfig{
			Provider: defaultVectorProvider,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			CacheSize:  defaultEmbeddingCacheSize,
		},
		Chunking: ChunkingConfig{
			Strategy:            defaultChunkStrategy,
			ChunkSize:           defaultChunkSize,
			Overlap:             defaultChunkOverlap,
			SimilarityThreshold: defaultSimilarityThreshold,
			MaxChunkSize:        defaultMaxChunkSize,
		},
		Search: SearchConfig{
			Strategy: defaultSearchStrategy,
			Limit:    defaultSearchLimit,
			RRFK:     defaultRRFK,
		},
		Rerank: RerankConfig{
			VectorWeight:    defaultRerankVectorWeight,
			TermWeight:      defaultRerankTermWeight,
			TitleWeight:     defaultRerankTitleWeight,
			FreshnessWeight: defaultRerankFreshnessWeight,
		},
	}
}
