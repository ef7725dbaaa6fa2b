package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent quarry configuration stored as config.toml
// in the .quarry/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Chunking    ChunkingConfig    `toml:"chunking"`
	Search      SearchConfig      `toml:"search"`
	Rerank      RerankConfig      `toml:"rerank"`
	Synonyms    SynonymsConfig    `toml:"synonyms"`
}

// StorageConfig holds settings for the embedded vector store's data directory.
type StorageConfig struct {
	DataDir string `toml:"data_dir,omitempty"`
}

// VectorStoreConfig holds vector store settings.
type VectorStoreConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	CacheSize  int    `toml:"cache_size,omitempty"`
}

// ChunkingConfig holds document chunking settings.
type ChunkingConfig struct {
	Strategy            string  `toml:"strategy,omitempty"`
	ChunkSize           int     `toml:"chunk_size,omitempty"`
	Overlap             int     `toml:"overlap,omitempty"`
	SimilarityThreshold float64 `toml:"similarity_threshold,omitempty"`
	MaxChunkSize        int     `toml:"max_chunk_size,omitempty"`
}

// SearchConfig holds query-time settings.
type SearchConfig struct {
	Strategy       string  `toml:"strategy,omitempty"`
	Limit          int     `toml:"limit,omitempty"`
	ScoreThreshold float64 `toml:"score_threshold,omitempty"`
	RRFK           float64 `toml:"rrf_k,omitempty"`
}

// RerankConfig holds reranking signal weights. Weights must sum to 1.0.
type RerankConfig struct {
	VectorWeight    float64 `toml:"vector_weight,omitempty"`
	TermWeight      float64 `toml:"term_weight,omitempty"`
	TitleWeight     float64 `toml:"title_weight,omitempty"`
	FreshnessWeight float64 `toml:"freshness_weight,omitempty"`
}

// SynonymsConfig points at the optional synonym mapping file used by
// query transformation.
type SynonymsConfig struct {
	Path string `toml:"path,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func floatKey(get func(c *Config) float64, set func(c *Config, v float64)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			f := get(c)
			if f == 0 {
				return ""
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid float value %q: %w", v, err)
			}
			set(c, f)
			return nil
		},
	}
}

func intKey(get func(c *Config) int, set func(c *Config, v int)) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			n := get(c)
			if n == 0 {
				return ""
			}
			return strconv.Itoa(n)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value %q: %w", v, err)
			}
			set(c, n)
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.data_dir": {
		get: func(c *Config) string { return c.Storage.DataDir },
		set: func(c *Config, v string) error { c.Storage.DataDir = v; return nil },
	},
	"vector_store.provider": {
		get: func(c *Config) string { return c.VectorStore.Provider },
		set: func(c *Config, v string) error { c.VectorStore.Provider = v; return nil },
	},
	"vector_store.target": {
		get: func(c *Config) string { return c.VectorStore.Target },
		set: func(c *Config, v string) error { c.VectorStore.Target = v; return nil },
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.cache_size": intKey(
		func(c *Config) int { return c.Embedding.CacheSize },
		func(c *Config, v int) { c.Embedding.CacheSize = v },
	),
	"chunking.strategy": {
		get: func(c *Config) string { return c.Chunking.Strategy },
		set: func(c *Config, v string) error { c.Chunking.Strategy = v; return nil },
	},
	"chunking.chunk_size": intKey(
		func(c *Config) int { return c.Chunking.ChunkSize },
		func(c *Config, v int) { c.Chunking.ChunkSize = v },
	),
	"chunking.overlap": intKey(
		func(c *Config) int { return c.Chunking.Overlap },
		func(c *Config, v int) { c.Chunking.Overlap = v },
	),
	"chunking.similarity_threshold": floatKey(
		func(c *Config) float64 { return c.Chunking.SimilarityThreshold },
		func(c *Config, v float64) { c.Chunking.SimilarityThreshold = v },
	),
	"chunking.max_chunk_size": intKey(
		func(c *Config) int { return c.Chunking.MaxChunkSize },
		func(c *Config, v int) { c.Chunking.MaxChunkSize = v },
	),
	"search.strategy": {
		get: func(c *Config) string { return c.Search.Strategy },
		set: func(c *Config, v string) error { c.Search.Strategy = v; return nil },
	},
	"search.limit": intKey(
		func(c *Config) int { return c.Search.Limit },
		func(c *Config, v int) { c.Search.Limit = v },
	),
	"search.score_threshold": floatKey(
		func(c *Config) float64 { return c.Search.ScoreThreshold },
		func(c *Config, v float64) { c.Search.ScoreThreshold = v },
	),
	"search.rrf_k": floatKey(
		func(c *Config) float64 { return c.Search.RRFK },
		func(c *Config, v float64) { c.Search.RRFK = v },
	),
	"rerank.vector_weight": floatKey(
		func(c *Config) float64 { return c.Rerank.VectorWeight },
		func(c *Config, v float64) { c.Rerank.VectorWeight = v },
	),
	"rerank.term_weight": floatKey(
		func(c *Config) float64 { return c.Rerank.TermWeight },
		func(c *Config, v float64) { c.Rerank.TermWeight = v },
	),
	"rerank.title_weight": floatKey(
		func(c *Config) float64 { return c.Rerank.TitleWeight },
		func(c *Config, v float64) { c.Rerank.TitleWeight = v },
	),
	"rerank.freshness_weight": floatKey(
		func(c *Config) float64 { return c.Rerank.FreshnessWeight },
		func(c *Config, v float64) { c.Rerank.FreshnessWeight = v },
	),
	"synonyms.path": {
		get: func(c *Config) string { return c.Synonyms.Path },
		set: func(c *Config, v string) error { c.Synonyms.Path = v; return nil },
	},
}
