package app

import (
	"fmt"

	"github.com/legit-games/oauth2-in-action/migrate"
	"github.com/legit-games/oauth2-in-action/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newAuthServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "authserver",
		Short: "Run the authorization server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrate.RunFromEnv(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			reg := newRegistry()
			srv, stores, err := server.Bootstrap(cmd.Context(), &appConfig.AuthServer, reg)
			if err != nil {
				return err
			}
			defer stores.Close()

			return serve(cmd.Context(), "authserver", appConfig.AuthServer.Addr, server.NewGinEngine(srv))
		},
	}
}

// newRegistry returns a registry carrying the Go runtime and process
// collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
