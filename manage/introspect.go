package manage

import (
	"context"
	"fmt"

	oauth2 "github.com/legit-games/oauth2-in-action"
	"github.com/legit-games/oauth2-in-action/errors"
	"github.com/legit-games/oauth2-in-action/models"
	"github.com/legit-games/oauth2-in-action/store"
)

// Introspect authenticates the protected resource and reports the state of
// an access token. Unknown, revoked and expired tokens are inactive.
func (m *Manager) Introspect(ctx context.Context, resourceID, secret, token string) (*models.Introspection, error) {
	if _, err := m.AuthenticateResource(ctx, resourceID, secret); err != nil {
		return nil, err
	}
	if token == "" {
		m.metrics.incIntrospection(false)
		return &models.Introspection{Active: false}, nil
	}

	t, err := m.LoadAccessToken(ctx, token)
	if err != nil {
		if err == errors.ErrInvalidGrant {
			m.log.Debugw("introspection miss", "resource_id", resourceID)
			m.metrics.incIntrospection(false)
			return &models.Introspection{Active: false}, nil
		}
		return nil, err
	}

	m.metrics.incIntrospection(true)
	res := &models.Introspection{
		Active:    true,
		Issuer:    m.cfg.Issuer,
		Scope:     t.Scope.String(),
		ClientID:  t.ClientID,
		Username:  t.Username,
		Subject:   t.Username,
		TokenType: oauth2.TokenTypeBearer,
		IssuedAt:  t.CreatedAt.Unix(),
	}
	if !t.ExpiresAt.IsZero() {
		res.ExpiresAt = t.ExpiresAt.Unix()
	}
	return res, nil
}

// LoadAccessToken returns a live access token, or ErrInvalidGrant when it is
// unknown or expired.
func (m *Manager) LoadAccessToken(ctx context.Context, access string) (*models.Token, error) {
	t, err := m.tokens.GetByAccess(ctx, access)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrInvalidGrant
		}
		return nil, fmt.Errorf("load access token: %w", err)
	}
	if t.IsExpired(m.now()) {
		_ = m.tokens.RemoveByAccess(ctx, access)
		return nil, errors.ErrInvalidGrant
	}
	return t, nil
}
