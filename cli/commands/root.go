// Package commands provides the CLI command implementations for strand.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-strand/cli/styles"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// NewRootCommand creates the root command for the strand CLI
func NewRootCommand() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "strand",
		Short: "Event bus and saga orchestration toolkit for Go",
		Long: `Strand is an event-driven saga orchestration toolkit for Go.
It dispatches domain events to handlers with deduplication and
tenant-scoped overrides, and runs multi-step sagas with approval
gates and compensating rollback.

` + styles.Title.Render("Quick Start:") + `

  strand init            Initialize a strand.yaml config
  strand sagas list      List saga instances
  strand sagas show      Inspect one saga instance
  strand replay          Re-dispatch a logged event
  strand diagnose        Check your setup

` + styles.Title.Render("Documentation:") + `

  https://github.com/AshkanYarmoradi/go-strand`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				styles.DisableColors()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	// Add subcommands
	rootCmd.AddCommand(NewInitCommand())
	rootCmd.AddCommand(NewSagasCommand())
	rootCmd.AddCommand(NewReplayCommand())
	rootCmd.AddCommand(NewDiagnoseCommand())
	rootCmd.AddCommand(NewVersionCommand(Version, Commit, BuildDate))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(styles.FormatError(err.Error()))
		return err
	}

	return nil
}
