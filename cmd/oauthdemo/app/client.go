package app

import (
	"github.com/legit-games/oauth2-in-action/client"
	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/spf13/cobra"
)

func newClientCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "client",
		Short: "Run the client application",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := appConfig.Client
			driver := client.NewDriver(client.Config{
				ClientID:     cc.ID,
				ClientSecret: cc.Secret,
				RedirectURI:  cc.RedirectURI,
				Scope:        cc.Scope,
				AuthorizeURL: cc.AuthorizeURL,
				TokenURL:     cc.TokenURL,
				RevokeURL:    cc.RevokeURL,
				ResourceURL:  cc.ResourceURL,
				Timeout:      cc.Timeout,
			}, logger.Get())

			logger.Infow("client configured", "client_id", cc.ID, "token_url", cc.TokenURL, "resource_url", cc.ResourceURL)
			return serve(cmd.Context(), "client", cc.Addr, client.NewGinEngine(client.NewWeb(driver, logger.Get())))
		},
	}
}
