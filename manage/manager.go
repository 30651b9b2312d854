package manage

import (
	"context"
	"fmt"
	"time"

	oauth2 "github.com/legit-games/oauth2-in-action"
	"github.com/legit-games/oauth2-in-action/errors"
	"github.com/legit-games/oauth2-in-action/generates"
	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/legit-games/oauth2-in-action/models"
	"github.com/legit-games/oauth2-in-action/store"
	"go.uber.org/zap"
)

// NewDefaultManager create to default authorization management instance
func NewDefaultManager() *Manager {
	return NewManager(NewConfig())
}

// NewManager create to authorization management instance
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:     cfg,
		gen:     generates.NewGenerator(),
		log:     logger.Get(),
		now:     time.Now,
		refresh: newKeyLock(),
	}
}

// Manager provide authorization management: client and resource
// authentication, the authorization code sub-flow, token issuing, revocation
// and introspection.
type Manager struct {
	cfg       Config
	clients   oauth2.ClientRegistry
	resources oauth2.ResourceRegistry
	users     oauth2.UserStore
	tokens    oauth2.TokenStore
	requests  oauth2.AuthorizationRequestStore
	codes     oauth2.AuthorizationCodeStore
	gen       *generates.Generator
	metrics   *Metrics
	log       *zap.SugaredLogger
	now       func() time.Time
	refresh   *keyLock
}

// Config returns the active configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// MapClientStorage mapping the client store interface
func (m *Manager) MapClientStorage(stor oauth2.ClientRegistry) {
	m.clients = stor
}

// MapResourceStorage mapping the protected resource registry
func (m *Manager) MapResourceStorage(stor oauth2.ResourceRegistry) {
	m.resources = stor
}

// MapUserStorage mapping the resource owner store
func (m *Manager) MapUserStorage(stor oauth2.UserStore) {
	m.users = stor
}

// MapTokenStorage mapping the token store interface
func (m *Manager) MapTokenStorage(stor oauth2.TokenStore) {
	m.tokens = stor
}

// MustTokenStorage mandatory mapping the token store interface
func (m *Manager) MustTokenStorage(stor oauth2.TokenStore, err error) {
	if err != nil {
		panic(err.Error())
	}
	m.tokens = stor
}

// MapAuthorizationRequestStorage mapping the pending request store
func (m *Manager) MapAuthorizationRequestStorage(stor oauth2.AuthorizationRequestStore) {
	m.requests = stor
}

// MapAuthorizationCodeStorage mapping the authorization code store
func (m *Manager) MapAuthorizationCodeStorage(stor oauth2.AuthorizationCodeStore) {
	m.codes = stor
}

// MapGenerator mapping the token, code and request id generator
func (m *Manager) MapGenerator(gen *generates.Generator) {
	m.gen = gen
}

// SetMetrics sets the metrics sink; nil disables metrics.
func (m *Manager) SetMetrics(metrics *Metrics) {
	m.metrics = metrics
}

// SetLogger replaces the logger.
func (m *Manager) SetLogger(l *zap.SugaredLogger) {
	m.log = l
}

// GetClient get the client information
func (m *Manager) GetClient(ctx context.Context, clientID string) (*models.Client, error) {
	cli, err := m.clients.GetByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrInvalidClient
		}
		return nil, fmt.Errorf("load client: %w", err)
	}
	return cli, nil
}

// AuthenticateClient checks the client credentials.
func (m *Manager) AuthenticateClient(ctx context.Context, clientID, secret string) (*models.Client, error) {
	if clientID == "" {
		return nil, errors.ErrInvalidClient
	}
	cli, err := m.GetClient(ctx, clientID)
	if err != nil {
		if err == errors.ErrInvalidClient {
			m.log.Warnw("unknown client", "client_id", clientID)
		}
		return nil, err
	}
	if !cli.VerifySecret(secret) {
		m.log.Warnw("client secret mismatch", "client_id", clientID)
		return nil, errors.ErrInvalidClient
	}
	return cli, nil
}

// AuthenticateResource checks the credentials of a protected resource.
func (m *Manager) AuthenticateResource(ctx context.Context, resourceID, secret string) (*models.ProtectedResource, error) {
	if resourceID == "" {
		return nil, errors.ErrInvalidClient
	}
	res, err := m.resources.GetByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Warnw("unknown protected resource", "resource_id", resourceID)
			return nil, errors.ErrInvalidClient
		}
		return nil, fmt.Errorf("load resource: %w", err)
	}
	if !res.VerifySecret(secret) {
		m.log.Warnw("protected resource secret mismatch", "resource_id", resourceID)
		return nil, errors.ErrInvalidClient
	}
	return res, nil
}

func (m *Manager) newToken(kind models.TokenKind, clientID, username string, scope models.Scope, pairedWith string) (*models.Token, error) {
	var (
		value string
		exp   time.Duration
		err   error
	)
	if kind == models.KindRefresh {
		value, err = m.gen.Refresh()
		exp = m.cfg.RefreshTokenExp
	} else {
		value, err = m.gen.Token()
		exp = m.cfg.AccessTokenExp
	}
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	t := &models.Token{
		Value:      value,
		Kind:       kind,
		ClientID:   clientID,
		Username:   username,
		Scope:      scope,
		PairedWith: pairedWith,
		CreatedAt:  now,
	}
	if exp > 0 {
		t.ExpiresAt = now.Add(exp)
	}
	return t, nil
}
