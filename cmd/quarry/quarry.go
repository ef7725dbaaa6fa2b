// Package quarrycmder
package quarrycmder

import (
	"github.com/spf13/cobra"

	collectionscmder "github.com/quarrylabs/quarry/cmd/quarry/collections"
	configcmder "github.com/quarrylabs/quarry/cmd/quarry/config"
	indexcmder "github.com/quarrylabs/quarry/cmd/quarry/index"
	initcmder "github.com/quarrylabs/quarry/cmd/quarry/init"
	searchcmder "github.com/quarrylabs/quarry/cmd/quarry/search"
)

const quarryLongDesc string = `Quarry is a retrieval engine for documentation search.

Index documentation into a vector store and search it with semantic,
hybrid, and fused retrieval strategies:
  quarry index ./docs            Chunk, embed, and store documents
  quarry search "query text"     Search the indexed collection
  quarry collections             Inspect stored collections`

const quarryShortDesc string = "Quarry - Documentation Search"

func NewQuarryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: quarryShortDesc,
		Long:  quarryLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .quarry/ directory location")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(indexcmder.NewIndexCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(collectionscmder.NewCollectionsCmd())

	return cmd
}
