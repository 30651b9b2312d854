package app

import (
	"github.com/legit-games/oauth2-in-action/migrate"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	opts := migrate.OptionsFromEnv()

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		Long: `Apply the embedded goose migrations to PostgreSQL or SQLite.
Defaults come from OAUTH_MIGRATE_DRIVER, OAUTH_MIGRATE_DSN, OAUTH_MIGRATE_CMD
and OAUTH_MIGRATE_TARGET.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return migrate.Run(opts)
		},
	}

	cmd.Flags().StringVar(&opts.Driver, "driver", opts.Driver, "Database driver: postgres or sqlite")
	cmd.Flags().StringVar(&opts.DSN, "dsn", opts.DSN, "Database connection string")
	cmd.Flags().StringVar(&opts.Command, "command", opts.Command, "up, down, status, version, up-to, down-to, redo or reset")
	cmd.Flags().Int64Var(&opts.Target, "target", opts.Target, "Target version for up-to and down-to")
	return cmd
}
