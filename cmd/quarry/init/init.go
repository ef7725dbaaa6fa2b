// Package initcmder provides the init command for initializing a local
// .quarry directory in the current working directory.
package initcmder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/pkg/config"
)

const (
	dirName = ".quarry"
)

const initLongDesc string = `Initialize a new .quarry/ directory in the current working directory.

Creates a local .quarry/ directory that takes precedence over the default
~/.quarry/ directory for configuration, embedded vector store data, and
synonym files, and writes a config.toml populated with defaults.

This is useful for maintaining a separate index per project or directory.

Examples:
  quarry init`

const initShortDesc string = "Initialize a local .quarry/ directory"

func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInit()
		},
	}

	return cmd
}

func runInit() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	info, err := os.Stat(dir)
	if err == nil && info.IsDir() {
		fmt.Printf("Already initialized: %s\n", dir)
		return nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .quarry directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}

	fmt.Printf("Initialized .quarry directory: %s\n", dir)
	return nil
}
