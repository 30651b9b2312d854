package manage

import (
	"context"
	"fmt"

	oauth2 "github.com/legit-games/oauth2-in-action"
	"github.com/legit-games/oauth2-in-action/errors"
	"github.com/legit-games/oauth2-in-action/models"
	"github.com/legit-games/oauth2-in-action/store"
)

// TokenRequest holds the fields of a token endpoint request. Fields that do
// not belong to the grant are ignored.
type TokenRequest struct {
	GrantType    oauth2.GrantType
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scope        string
	Code         string
	RedirectURI  string
	Refresh      string
}

// TokenPair is what the token endpoint hands out. Refresh may be nil.
type TokenPair struct {
	Access  *models.Token
	Refresh *models.Token
}

// IssueToken authenticates the client and runs the requested grant.
func (m *Manager) IssueToken(ctx context.Context, tr *TokenRequest) (*TokenPair, error) {
	tp, err := m.issueToken(ctx, tr)
	if err != nil {
		if known, ok := errors.Lookup(err); ok {
			m.metrics.incError(known.Error())
		} else {
			m.metrics.incError(errors.ErrServerError.Error())
		}
		return nil, err
	}
	m.metrics.incIssued(tr.GrantType.String())
	return tp, nil
}

func (m *Manager) issueToken(ctx context.Context, tr *TokenRequest) (*TokenPair, error) {
	cli, err := m.AuthenticateClient(ctx, tr.ClientID, tr.ClientSecret)
	if err != nil {
		return nil, err
	}

	switch tr.GrantType {
	case oauth2.PasswordCredentials:
		return m.passwordGrant(ctx, cli, tr)
	case oauth2.AuthorizationCode:
		return m.authorizationCodeGrant(ctx, cli, tr)
	case oauth2.Refreshing:
		return m.refreshGrant(ctx, cli, tr)
	}
	m.log.Infow("unsupported grant type", "client_id", cli.ID, "grant_type", tr.GrantType.String())
	return nil, errors.ErrUnsupportedGrantType
}

func (m *Manager) passwordGrant(ctx context.Context, cli *models.Client, tr *TokenRequest) (*TokenPair, error) {
	if tr.Username == "" || tr.Password == "" {
		return nil, errors.ErrInvalidRequest
	}
	user, err := m.users.GetByUsername(ctx, tr.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Infow("password grant: unknown user", "client_id", cli.ID, "username", tr.Username)
			return nil, errors.ErrInvalidGrant
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.VerifyPassword(tr.Password) {
		m.log.Warnw("password grant: resource owner password mismatch", "client_id", cli.ID, "username", tr.Username)
		return nil, errors.ErrInvalidGrant
	}

	// an omitted scope yields a token without scope
	requested := models.ParseScope(tr.Scope)
	allowed := cli.Scope.Intersect(user.Scope)
	if extra := requested.Difference(allowed); len(extra) > 0 {
		m.log.Infow("password grant: scope exceeds client and user scope", "client_id", cli.ID, "username", user.Username, "extra", extra.String())
		return nil, errors.ErrInvalidScope
	}
	return m.issuePair(ctx, cli.ID, user.Username, requested)
}

func (m *Manager) authorizationCodeGrant(ctx context.Context, cli *models.Client, tr *TokenRequest) (*TokenPair, error) {
	if tr.Code == "" {
		return nil, errors.ErrInvalidRequest
	}
	// Take deletes the code whatever happens next.
	ac, err := m.codes.Take(ctx, tr.Code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Infow("code grant: unknown or used code", "client_id", cli.ID)
			return nil, errors.ErrInvalidGrant
		}
		return nil, fmt.Errorf("take authorization code: %w", err)
	}
	if ac.Request.ClientID != cli.ID {
		m.log.Warnw("code grant: client mismatch", "client_id", cli.ID, "code_client_id", ac.Request.ClientID)
		return nil, errors.ErrInvalidGrant
	}
	if ac.Request.RedirectURI != tr.RedirectURI {
		m.log.Infow("code grant: redirect uri mismatch", "client_id", cli.ID, "redirect_uri", tr.RedirectURI)
		return nil, errors.ErrInvalidGrant
	}
	return m.issuePair(ctx, cli.ID, "", ac.Scope)
}

func (m *Manager) refreshGrant(ctx context.Context, cli *models.Client, tr *TokenRequest) (*TokenPair, error) {
	if tr.Refresh == "" {
		return nil, errors.ErrInvalidRequest
	}
	unlock := m.refresh.Lock(tr.Refresh)
	defer unlock()

	rt, err := m.tokens.GetByRefresh(ctx, tr.Refresh)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.ErrInvalidGrant
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if rt.IsExpired(m.now()) {
		_ = m.tokens.RemoveByRefresh(ctx, rt.Value)
		return nil, errors.ErrInvalidGrant
	}
	if rt.ClientID != cli.ID {
		n, err := m.tokens.RemoveAccessByRefresh(ctx, rt.Value)
		m.metrics.incTheft()
		m.log.Warnw("refresh token presented by another client, paired access tokens removed",
			"client_id", cli.ID, "token_client_id", rt.ClientID, "removed", n, "error", err)
		return nil, errors.ErrInvalidGrant
	}

	scope := rt.Scope
	if tr.Scope != "" {
		requested := models.ParseScope(tr.Scope)
		if extra := requested.Difference(rt.Scope); len(extra) > 0 {
			return nil, errors.ErrInvalidScope
		}
		scope = requested
	}

	if m.cfg.Refreshing.RemoveOldAccess {
		if _, err := m.tokens.RemoveAccessByRefresh(ctx, rt.Value); err != nil {
			return nil, fmt.Errorf("remove old access tokens: %w", err)
		}
	}

	refresh := rt
	if m.cfg.Refreshing.GenerateNew {
		refresh, err = m.newToken(models.KindRefresh, rt.ClientID, rt.Username, rt.Scope, "")
		if err != nil {
			return nil, err
		}
		if err := m.tokens.Create(ctx, refresh); err != nil {
			return nil, fmt.Errorf("store refresh token: %w", err)
		}
		if err := m.tokens.RemoveByRefresh(ctx, rt.Value); err != nil {
			return nil, fmt.Errorf("remove old refresh token: %w", err)
		}
	}

	access, err := m.newToken(models.KindAccess, rt.ClientID, rt.Username, scope, refresh.Value)
	if err != nil {
		return nil, err
	}
	if err := m.tokens.Create(ctx, access); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// issuePair creates a refresh token and an access token paired with it.
func (m *Manager) issuePair(ctx context.Context, clientID, username string, scope models.Scope) (*TokenPair, error) {
	refresh, err := m.newToken(models.KindRefresh, clientID, username, scope, "")
	if err != nil {
		return nil, err
	}
	access, err := m.newToken(models.KindAccess, clientID, username, scope, refresh.Value)
	if err != nil {
		return nil, err
	}
	refresh.PairedWith = access.Value

	if err := m.tokens.Create(ctx, refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	if err := m.tokens.Create(ctx, access); err != nil {
		return nil, fmt.Errorf("store access token: %w", err)
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// RevokeToken authenticates the client and deletes every token issued to it.
// The named token is not used to narrow the deletion.
func (m *Manager) RevokeToken(ctx context.Context, clientID, secret, token string) (int, error) {
	cli, err := m.AuthenticateClient(ctx, clientID, secret)
	if err != nil {
		return 0, err
	}
	n, err := m.tokens.RemoveByClientID(ctx, cli.ID)
	if err != nil {
		return 0, fmt.Errorf("revoke tokens: %w", err)
	}
	m.metrics.addRevoked(n)
	m.log.Infow("revoked client tokens", "client_id", cli.ID, "removed", n, "named_token", token != "")
	return n, nil
}
