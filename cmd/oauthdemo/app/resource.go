package app

import (
	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/legit-games/oauth2-in-action/resource"
	"github.com/spf13/cobra"
)

func newResourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resource",
		Short: "Run the protected resource server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc := appConfig.Resource
			reg := newRegistry()
			metrics := resource.NewMetrics(reg)

			in := resource.NewIntrospector(rc.IntrospectionURL, rc.ID, rc.Secret, rc.IntrospectionTimeout)
			in.SetMetrics(metrics)
			guard := resource.NewGuard(in, rc.Realm, logger.Get())
			guard.SetMetrics(metrics)

			logger.Infow("resource server configured", "introspection_url", rc.IntrospectionURL, "resource_id", rc.ID)
			return serve(cmd.Context(), "resource", rc.Addr, resource.NewGinEngine(guard, resource.NewService(), reg))
		},
	}
}
