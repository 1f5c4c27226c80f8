package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-strand/cli/config"
	"github.com/AshkanYarmoradi/go-strand/cli/styles"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a strand.yaml config file",
		Long: `Write a default strand.yaml in the current directory.

The config carries the store, dedup and queue settings the CLI uses
to inspect saga instances and replay events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			wd, err := os.Getwd()
			if err != nil {
				return err
			}

			if config.Exists(wd) && !force {
				return fmt.Errorf("%s already exists; use --force to overwrite", config.ConfigFileName)
			}

			cfg := config.DefaultConfig()
			if err := cfg.Save(wd); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Println(styles.FormatSuccess("Wrote " + config.ConfigFileName))
			fmt.Println(styles.Muted.Render("  Edit database.url before running other commands."))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config")

	return cmd
}
