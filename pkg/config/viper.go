package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/quarrylabs/quarry/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the QUARRY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via v.BindPFlag in a command's PreRunE)
//  2. Environment variables (QUARRY_SEARCH_STRATEGY, QUARRY_EMBEDDING_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: QUARRY_VECTOR_STORE_PROVIDER, QUARRY_SEARCH_LIMIT, etc.
	v.SetEnvPrefix("QUARRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes a Config from the viper precedence chain
// (flag > env > config file > default). Commands that bind their flags via
// BindFlag get the full chain; unbound keys still honor env, file, and
// defaults.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Storage: StorageConfig{
			DataDir: v.GetString("storage.data_dir"),
		},
		VectorStore: VectorStoreConfig{
			Provider: v.GetString("vector_store.provider"),
			Target:   v.GetString("vector_store.target"),
		},
		Embedding: EmbeddingConfig{
			Provider:   v.GetString("embedding.provider"),
			Target:     v.GetString("embedding.target"),
			Model:      v.GetString("embedding.model"),
			Dimensions: v.GetUint("embedding.dimensions"),
			CacheSize:  v.GetInt("embedding.cache_size"),
		},
		Chunking: ChunkingConfig{
			Strategy:            v.GetString("chunking.strategy"),
			ChunkSize:           v.GetInt("chunking.chunk_size"),
			Overlap:             v.GetInt("chunking.overlap"),
			SimilarityThreshold: v.GetFloat64("chunking.similarity_threshold"),
			MaxChunkSize:        v.GetInt("chunking.max_chunk_size"),
		},
		Search: SearchConfig{
			Strategy:       v.GetString("search.strategy"),
			Limit:          v.GetInt("search.limit"),
			ScoreThreshold: v.GetFloat64("search.score_threshold"),
			RRFK:           v.GetFloat64("search.rrf_k"),
		},
		Rerank: RerankConfig{
			VectorWeight:    v.GetFloat64("rerank.vector_weight"),
			TermWeight:      v.GetFloat64("rerank.term_weight"),
			TitleWeight:     v.GetFloat64("rerank.title_weight"),
			FreshnessWeight: v.GetFloat64("rerank.freshness_weight"),
		},
		Synonyms: SynonymsConfig{
			Path: v.GetString("synonyms.path"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("storage.data_dir", d.Storage.DataDir)

	v.SetDefault("vector_store.provider", d.VectorStore.Provider)
	v.SetDefault("vector_store.target", d.VectorStore.Target)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)

	v.SetDefault("chunking.strategy", d.Chunking.Strategy)
	v.SetDefault("chunking.chunk_size", d.Chunking.ChunkSize)
	v.SetDefault("chunking.overlap", d.Chunking.Overlap)
	v.SetDefault("chunking.similarity_threshold", d.Chunking.SimilarityThreshold)
	v.SetDefault("chunking.max_chunk_size", d.Chunking.MaxChunkSize)

	v.SetDefault("search.strategy", d.Search.Strategy)
	v.SetDefault("search.limit", d.Search.Limit)
	v.SetDefault("search.score_threshold", d.Search.ScoreThreshold)
	v.SetDefault("search.rrf_k", d.Search.RRFK)

	v.SetDefault("rerank.vector_weight", d.Rerank.VectorWeight)
	v.SetDefault("rerank.term_weight", d.Rerank.TermWeight)
	v.SetDefault("rerank.title_weight", d.Rerank.TitleWeight)
	v.SetDefault("rerank.freshness_weight", d.Rerank.FreshnessWeight)

	v.SetDefault("synonyms.path", d.Synonyms.Path)
}
