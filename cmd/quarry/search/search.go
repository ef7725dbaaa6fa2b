// Package searchcmder provides the search command for querying indexed
// documentation.
package searchcmder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/cliui"
	"github.com/quarrylabs/quarry/pkg/config"
	"github.com/quarrylabs/quarry/pkg/dotdir"
	"github.com/quarrylabs/quarry/pkg/engine"
	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/query"
	"github.com/quarrylabs/quarry/pkg/vector"
)

type searchCommander struct {
	queryText  string
	collection string
	strategy   string
	limit      int
	threshold  float64
	rerank     bool
	transform  bool
	filters    []string
	asJSON     bool

	configDir string
	debug     bool
	logger    *zap.Logger
}

const searchLongDesc string = `Search indexed documentation.

Runs the configured retrieval strategy over the collection and prints the
ranked results. Strategies:

  semantic    Pure vector similarity search
  hybrid      Semantic search boosted by keyword matches
  advanced    Decomposes compound queries into fragments
  fusion      Runs semantic and hybrid, merged by reciprocal rank fusion

Use --rerank to rescore the page with term-overlap, title, and freshness
signals, and --transform to expand the query into variants before searching.

Examples:
  quarry search "how to configure logging"
  quarry search "error handling and retry policy" --strategy advanced
  quarry search "auth tokens" --rerank --limit 5
  quarry search "install" --filter document_id=docs/setup.md
  quarry search "install" --json`

const searchShortDesc string = "Search indexed documentation"

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.queryText = args[0]

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
	cmd.Flags().StringVarP(&cmder.collection, "collection", "c", "docs", "Collection to search")
	cmd.Flags().StringVar(&cmder.strategy, "strategy", defaults.Search.Strategy, "Retrieval strategy (semantic, hybrid, advanced, fusion)")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "k", defaults.Search.Limit, "Number of results to return")
	cmd.Flags().Float64Var(&cmder.threshold, "threshold", defaults.Search.ScoreThreshold, "Minimum similarity score")
	cmd.Flags().BoolVar(&cmder.rerank, "rerank", false, "Rescore results with term, title, and freshness signals")
	cmd.Flags().BoolVar(&cmder.transform, "transform", false, "Expand the query into variants before searching")
	cmd.Flags().StringArrayVar(&cmder.filters, "filter", nil, "Metadata filter as field=value (document_id, url, title)")
	cmd.Flags().BoolVar(&cmder.asJSON, "json", false, "Output results as JSON")

	return cmd
}

func (c *searchCommander) run(cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Flags not set explicitly fall back to QUARRY_* environment variables,
	// then to the config file, then to defaults.
	config.BindFlag(v, cmd, "strategy", "search.strategy")
	config.BindFlag(v, cmd, "limit", "search.limit")
	config.BindFlag(v, cmd, "threshold", "search.score_threshold")

	cfg := config.FromViper(v)
	c.strategy = cfg.Search.Strategy
	c.limit = cfg.Search.Limit
	c.threshold = cfg.Search.ScoreThreshold

	filters, err := parseFilters(c.filters)
	if err != nil {
		return err
	}

	target, err := dotdir.NewManager().Target(c.configDir)
	if err != nil {
		return fmt.Errorf("resolving .quarry directory: %w", err)
	}

	eng, err := engine.NewFromConfig(cfg, filepath.Join(target, "data"), c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	results, sctx, err := eng.Search(context.Background(), engine.SearchRequest{
		Request: query.Request{
			Query:          c.queryText,
			Collection:     c.collection,
			Strategy:       query.Strategy(c.strategy),
			Limit:          c.limit,
			ScoreThreshold: float32(c.threshold),
			Filters:        filters,
			TransformQuery: c.transform,
		},
		Rerank: c.rerank,
	})
	if err != nil {
		return err
	}

	if c.asJSON {
		return printJSON(os.Stdout, results, sctx)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("\n%s %s %s\n\n",
		cliui.HeaderStyle.Render("Search Results for:"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", c.queryText)),
		cliui.DimStyle.Render(fmt.Sprintf("(%s, %s)",
			strings.Join(sctx.Strategies, "+"),
			cliui.FormatDuration(sctx.QueryTime))),
	)

	if len(sctx.SubQueries) > 0 {
		fmt.Printf("  %s %s\n\n",
			cliui.DimStyle.Render("Variants:"),
			cliui.DimStyle.Render(strings.Join(sctx.SubQueries, " | ")),
		)
	}

	for i, result := range results {
		printResult(i+1, result)
	}

	return nil
}

func printResult(rank int, result query.SearchResult) {
	score := result.Score
	label := "score"
	if result.Signals != nil {
		score = float32(result.Signals.RerankScore)
		label = "rerank"
	}

	fmt.Printf("  %s  %s  %s\n",
		cliui.RankStyle.Render(fmt.Sprintf("#%d", rank)),
		cliui.ScoreStyle.Render(fmt.Sprintf("%s: %.4f", label, score)),
		cliui.KeyStyle.Render(result.Title),
	)

	preview := strings.ReplaceAll(result.Content, "\n", " ")
	if len(preview) > 120 {
		preview = preview[:117] + "..."
	}
	fmt.Printf("  %s\n", cliui.ValueStyle.Render(preview))
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render(
		fmt.Sprintf("%s  [%s]", result.URL, result.MatchType)))
}

func printJSON(w *os.File, results []query.SearchResult, sctx *engine.SearchContext) error {
	out := struct {
		Results []query.SearchResult  `json:"results"`
		Context *engine.SearchContext `json:"context"`
	}{Results: results, Context: sctx}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// parseFilters converts field=value pairs into vector filters.
func parseFilters(pairs []string) (vector.Filters, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	filters := make(vector.Filters, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		if !ok || field == "" || value == "" {
			return nil, fmt.Errorf("invalid filter %q, expected field=value", pair)
		}
		filters[field] = value
	}
	return filters, nil
}
