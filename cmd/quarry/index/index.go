// Package indexcmder provides the index command for ingesting documentation
// files into the vector store.
package indexcmder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/chunker"
	"github.com/quarrylabs/quarry/pkg/cliui"
	"github.com/quarrylabs/quarry/pkg/config"
	"github.com/quarrylabs/quarry/pkg/dotdir"
	"github.com/quarrylabs/quarry/pkg/engine"
	"github.com/quarrylabs/quarry/pkg/logger"
)

type indexCommander struct {
	paths      []string
	collection string
	strategy   string
	chunkSize  int
	overlap    int
	header     bool

	configDir string
	debug     bool
	logger    *zap.Logger
}

const indexLongDesc string = `Index documentation files into the vector store.

Walks the given paths, reads markdown and plain-text files, splits them into
chunks, embeds each chunk, and stores the result in the configured vector
store. Chunking strategy, chunk size, and overlap default to the values in
config.toml and can be overridden per run.

Examples:
  quarry index ./docs
  quarry index ./docs ./guides --collection handbook
  quarry index README.md --strategy semantic
  quarry index ./docs --chunk-size 800 --overlap 80 --contextual-header`

const indexShortDesc string = "Index documentation into the vector store"

func NewIndexCmd() *cobra.Command {
	cmder := &indexCommander{}

	cmd := &cobra.Command{
		Use:   "index <path>...",
		Short: indexShortDesc,
		Long:  indexLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.paths = args

			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			return cmder.run(cmd)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.collection, "collection", "c", "docs", "Collection to index into")
	cmd.Flags().StringVar(&cmder.strategy, "strategy", defaults.Chunking.Strategy, "Chunking strategy (character, semantic)")
	cmd.Flags().IntVar(&cmder.chunkSize, "chunk-size", defaults.Chunking.ChunkSize, "Chunk size in characters")
	cmd.Flags().IntVar(&cmder.overlap, "overlap", defaults.Chunking.Overlap, "Overlap between adjacent chunks in characters")
	cmd.Flags().BoolVar(&cmder.header, "contextual-header", false, "Prepend a [Document | Section] header to each chunk")

	return cmd
}

func (c *indexCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags not set explicitly fall back to QUARRY_* environment variables,
	// then to the config file, then to defaults.
	config.BindFlag(v, cmd, "strategy", "chunking.strategy")
	config.BindFlag(v, cmd, "chunk-size", "chunking.chunk_size")
	config.BindFlag(v, cmd, "overlap", "chunking.overlap")

	cfg := config.FromViper(v)
	c.strategy = cfg.Chunking.Strategy
	c.chunkSize = cfg.Chunking.ChunkSize
	c.overlap = cfg.Chunking.Overlap

	target, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving .quarry directory: %w", err)
	}

	eng, err := engine.NewFromConfig(cfg, filepath.Join(target, "data"), c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	var docs []chunker.Document
	err = cliui.Step(os.Stdout, "Collecting documents", func() error {
		docs, err = collectDocuments(c.paths, c.collection)
		return err
	})
	if err != nil {
		return err
	}

	if len(docs) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	opts := chunker.Options{
		Strategy:            chunker.Strategy(c.strategy),
		ChunkSize:           c.chunkSize,
		Overlap:             c.overlap,
		SimilarityThreshold: cfg.Chunking.SimilarityThreshold,
		MaxChunkSize:        cfg.Chunking.MaxChunkSize,
		ContextualHeader:    c.header,
	}

	var report *engine.IndexReport
	err = cliui.Step(os.Stdout, fmt.Sprintf("Indexing %d documents into %q", len(docs), c.collection), func() error {
		report, err = eng.IndexDocuments(context.Background(), c.collection, docs, opts)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  Documents indexed: %d\n  Chunks stored:     %d\n",
		report.DocumentsIndexed, report.ChunksIndexed)
	if report.ChunksFailed > 0 {
		fmt.Printf("  Chunks failed:     %d (%d batches)\n", report.ChunksFailed, report.BatchesFailed)
	}
	fmt.Println()

	return nil
}
