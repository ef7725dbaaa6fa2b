// Package collectionscmder provides the collections command for inspecting
// and deleting stored collections.
package collectionscmder

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/quarrylabs/quarry/pkg/cliui"
	"github.com/quarrylabs/quarry/pkg/config"
	"github.com/quarrylabs/quarry/pkg/dotdir"
	"github.com/quarrylabs/quarry/pkg/logger"
	"github.com/quarrylabs/quarry/pkg/vector"
	vectorutils "github.com/quarrylabs/quarry/pkg/vector/utils"
)

const collectionsLongDesc string = `Inspect stored collections.

Lists every collection in the configured vector store with its chunk count.
Use the delete subcommand to remove a collection and all of its chunks.

Examples:
  quarry collections
  quarry collections delete docs`

const collectionsShortDesc string = "List stored collections"

func NewCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: collectionsShortDesc,
		Long:  collectionsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, lg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(); _ = lg.Sync() }()

			return runList(store)
		},
	}

	cmd.AddCommand(newDeleteCmd())

	return cmd
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection and all of its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, lg, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close(); _ = lg.Sync() }()

			if err := store.DeleteCollection(context.Background(), args[0]); err != nil {
				return fmt.Errorf("deleting collection %q: %w", args[0], err)
			}

			fmt.Printf("  %s Deleted collection %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(args[0]))
			return nil
		},
	}

	return cmd
}

func runList(store vector.Store) error {
	ctx := context.Background()

	names, err := store.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("listing collections: %w", err)
	}

	if len(names) == 0 {
		fmt.Println("No collections found.")
		return nil
	}

	for _, name := range names {
		count, err := store.Count(ctx, name)
		if err != nil {
			return fmt.Errorf("counting collection %q: %w", name, err)
		}
		fmt.Printf("  %s  %s\n",
			cliui.KeyStyle.Render(name),
			cliui.DimStyle.Render(fmt.Sprintf("%d chunks", count)),
		)
	}

	return nil
}

func openStore(cmd *cobra.Command) (vector.Store, *zap.Logger, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	configDir, _ := cmd.Flags().GetString("config-dir")

	lg := logger.NewLogger(debug)

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	cfg := config.FromViper(v)

	target := cfg.VectorStore.Target
	if cfg.VectorStore.Provider == "sqlite" {
		target = cfg.Storage.DataDir
		if target == "" {
			dir, err := dotdir.NewManager().Target(configDir)
			if err != nil {
				return nil, nil, fmt.Errorf("resolving .quarry directory: %w", err)
			}
			target = filepath.Join(dir, "data")
		}
	}

	store, err := vectorutils.NewStore(&vectorutils.NewStoreOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       target,
		Logger:       lg,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating vector store: %w", err)
	}

	return store, lg, nil
}
