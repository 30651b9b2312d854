// Package app provides the oauthdemo commands: one per role of the OAuth
// triad, plus database migrations.
package app

import (
	"fmt"

	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/legit-games/oauth2-in-action/server"
	"github.com/spf13/cobra"
)

var (
	configDir string
	envName   string
	appConfig *server.AppConfig
)

// NewRootCmd creates the root command for the oauthdemo CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "oauthdemo",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "OAuth 2.0 authorization server, protected resource and client",
		Long: `oauthdemo runs one role of the OAuth 2.0 triad per process:
the authorization server (:9001), the protected resource (:9002) and the
client application (:9000). Settings come from config.yaml,
config.<env>.yaml and OAUTH_* environment variables.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := server.LoadConfig(configDir, envName)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := logger.Initialize(cfg.Log.Level, cfg.Log.Format); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			appConfig = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "config", "config", "Directory holding config.yaml")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "local", "Environment name selecting config.<env>.yaml")

	rootCmd.AddCommand(newAuthServerCmd())
	rootCmd.AddCommand(newResourceCmd())
	rootCmd.AddCommand(newClientCmd())
	rootCmd.AddCommand(newMigrateCmd())

	return rootCmd
}
