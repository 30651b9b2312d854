package server

import (
	"context"
	"fmt"

	oauth2 "github.com/legit-games/oauth2-in-action"
	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/legit-games/oauth2-in-action/manage"
	"github.com/legit-games/oauth2-in-action/store"
	"github.com/prometheus/client_golang/prometheus"
)

// Bootstrap builds the grant engine and its HTTP server from cfg. The
// returned stores must be closed by the caller.
func Bootstrap(ctx context.Context, cfg *AuthServerConfig, reg *prometheus.Registry) (*Server, *store.Stores, error) {
	clients := cfg.ClientModels()
	users := cfg.UserModels()
	if len(clients) == 0 {
		return nil, nil, fmt.Errorf("no clients registered")
	}

	stores, err := store.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, nil, err
	}
	if err := stores.SeedRegistries(ctx, clients, users); err != nil {
		_ = stores.Close()
		return nil, nil, err
	}

	manager := manage.NewManager(cfg.ManagerConfig())
	manager.SetLogger(logger.Get())
	manager.MapTokenStorage(stores.Tokens)
	manager.MapAuthorizationRequestStorage(stores.Requests)
	manager.MapAuthorizationCodeStorage(stores.Codes)

	resources := store.NewResourceStore()
	for _, r := range cfg.ResourceModels() {
		_ = resources.Set(r.ID, r)
	}
	manager.MapResourceStorage(resources)

	var (
		clientReg oauth2.ClientRegistry
		userReg   oauth2.UserStore
	)
	if stores.DBClients != nil {
		clientReg, userReg = stores.DBClients, stores.DBUsers
	} else {
		cs := store.NewClientStore()
		for _, c := range clients {
			_ = cs.Set(c.ID, c)
		}
		clientReg, userReg = cs, store.NewMemoryUserStore(users...)
	}
	manager.MapClientStorage(clientReg)
	manager.MapUserStorage(userReg)

	srv := NewDefaultServer(manager)
	srv.Logger = logger.Get()
	if reg != nil {
		manager.SetMetrics(manage.NewMetrics(reg))
		srv.Gatherer = reg
	}

	logger.Infow("authorization server configured",
		"backend", cfg.Storage.Backend,
		"clients", len(clients),
		"resources", len(cfg.Resources),
		"users", len(users),
		"issuer", cfg.Issuer,
	)
	return srv, stores, nil
}
