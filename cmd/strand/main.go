// Command strand is the CLI for inspecting saga instances,
// replaying logged events and diagnosing a strand deployment.
package main

import (
	"os"

	"github.com/AshkanYarmoradi/go-strand/cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
