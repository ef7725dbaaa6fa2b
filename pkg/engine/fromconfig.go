package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/config"
	embeddingutils "github.com/quarrylabs/quarry/pkg/embeddings/utils"
	"github.com/quarrylabs/quarry/pkg/rerank"
	"github.com/quarrylabs/quarry/pkg/synonyms"
	vectorutils "github.com/quarrylabs/quarry/pkg/vector/utils"
)

// NewFromConfig wires an engine from the persistent configuration.
// dataDirFallback is used for embedded stores when storage.data_dir is unset,
// typically <.quarry dir>/data.
func NewFromConfig(cfg *config.Config, dataDirFallback string, logger *zap.Logger) (*Engine, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	target := cfg.VectorStore.Target
	if cfg.VectorStore.Provider == "sqlite" {
		target = cfg.Storage.DataDir
		if target == "" {
			target = dataDirFallback
		}
	}

	store, err := vectorutils.NewStore(&vectorutils.NewStoreOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       target,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating vector store: %w", err)
	}

	return New(embedder, store, Config{
		CacheSize: cfg.Embedding.CacheSize,
		RRFK:      cfg.Search.RRFK,
		RerankWeights: rerank.Weights{
			Vector:      cfg.Rerank.VectorWeight,
			TermOverlap: cfg.Rerank.TermWeight,
			TitleMatch:  cfg.Rerank.TitleWeight,
			Freshness:   cfg.Rerank.FreshnessWeight,
		},
		Synonyms: synonyms.Load(cfg.Synonyms.Path, logger),
	}, logger)
}
