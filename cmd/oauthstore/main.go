package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tandemlab/oauthstore/config"
	"github.com/tandemlab/oauthstore/internal/logx"
	"github.com/tandemlab/oauthstore/internal/version"
	"github.com/tandemlab/oauthstore/sqlstore"
)

// Global flags shared by every subcommand.
var (
	configPath string
	logLevel   string
	verbose    bool
	asUser     int64
	asAdmin    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "oauthstore",
		Short:   "Manage OAuth consumers, servers and tokens",
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logx.Configure(logLevel, verbose)
		},
	}
	rootCmd.SetVersionTemplate(version.String("oauthstore") + "\n")

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (or OAUTHSTORE_* env vars)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (or OAUTHSTORE_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose debug logs (same as --log-level debug)")
	rootCmd.PersistentFlags().Int64Var(&asUser, "user", 0, "User id to act as")
	rootCmd.PersistentFlags().BoolVar(&asAdmin, "admin", false, "Act with admin rights")

	rootCmd.AddCommand(newConsumersCmd())
	rootCmd.AddCommand(newServersCmd())
	rootCmd.AddCommand(newTokensCmd())
	rootCmd.AddCommand(newLogCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore loads the configuration and connects to the database.
func openStore() (*sqlstore.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logx.Debugf("opening %s store", cfg.Driver)
	s, err := sqlstore.Open(cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return s, nil
}
