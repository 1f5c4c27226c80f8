package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AshkanYarmoradi/go-strand/cli/config"
	"github.com/AshkanYarmoradi/go-strand/adapters/postgres"
)

// loadConfig finds and loads strand.yaml, walking up from the current
// directory.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	_, cfg, err := config.FindConfig(wd)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no %s found; run 'strand init' first", config.ConfigFileName)
		}
		return nil, err
	}
	return cfg, nil
}

// openAdapter opens the postgres adapter from the loaded config.
// The caller owns the returned adapter and must close it.
func openAdapter(cfg *config.Config) (*postgres.Adapter, error) {
	if cfg.Database.Driver != "postgres" {
		return nil, fmt.Errorf("database.driver %q is not supported by the CLI; only postgres stores can be inspected", cfg.Database.Driver)
	}
	url := os.ExpandEnv(cfg.Database.URL)
	if url == "" {
		return nil, fmt.Errorf("database.url is empty")
	}

	opts := []postgres.Option{}
	if cfg.Database.Schema != "" {
		opts = append(opts, postgres.WithSchema(cfg.Database.Schema))
	}
	return postgres.NewAdapter(url, opts...)
}

// requireArg returns args[i] or an error naming the argument.
func requireArg(cmd *cobra.Command, args []string, i int, name string) (string, error) {
	if len(args) <= i || args[i] == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return args[i], nil
}
