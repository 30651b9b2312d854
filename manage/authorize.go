package manage

import (
	"context"
	"fmt"

	oauth2 "github.com/legit-games/oauth2-in-action"
	"github.com/legit-games/oauth2-in-action/errors"
	"github.com/legit-games/oauth2-in-action/models"
	"github.com/legit-games/oauth2-in-action/store"
)

// AuthorizeRequest holds the query parameters of an /authorize call.
type AuthorizeRequest struct {
	ResponseType string
	ClientID     string
	RedirectURI  string
	Scope        string
	State        string
}

// IssueAuthorizationRequest validates an authorization request and stores it
// until the resource owner decides.
//
// The returned request is nil until the redirect URI has been validated, so
// callers must only redirect errors back to the client when it is non-nil.
// An invalid scope returns the request together with ErrInvalidScope.
func (m *Manager) IssueAuthorizationRequest(ctx context.Context, ar AuthorizeRequest) (*models.AuthorizationRequest, *models.Client, error) {
	if ar.ClientID == "" {
		return nil, nil, errors.ErrInvalidRequest
	}
	cli, err := m.GetClient(ctx, ar.ClientID)
	if err != nil {
		if err == errors.ErrInvalidClient {
			m.log.Warnw("authorize: unknown client", "client_id", ar.ClientID)
		}
		return nil, nil, err
	}

	redirectURI := ar.RedirectURI
	if redirectURI == "" {
		def, ok := cli.DefaultRedirectURI()
		if !ok {
			return nil, cli, errors.ErrInvalidRedirectURI
		}
		redirectURI = def
	} else if !cli.HasRedirectURI(redirectURI) {
		m.log.Warnw("authorize: redirect uri mismatch", "client_id", cli.ID, "redirect_uri", redirectURI)
		return nil, cli, errors.ErrInvalidRedirectURI
	}

	req := &models.AuthorizationRequest{
		ClientID:     cli.ID,
		RedirectURI:  redirectURI,
		Scope:        models.ParseScope(ar.Scope),
		ResponseType: ar.ResponseType,
		State:        ar.State,
	}
	if extra := req.Scope.Difference(cli.Scope); len(extra) > 0 {
		m.log.Infow("authorize: scope exceeds client scope", "client_id", cli.ID, "extra", extra.String())
		return req, cli, errors.ErrInvalidScope
	}

	id, err := m.gen.RequestID()
	if err != nil {
		return nil, cli, err
	}
	req.RequestID = id
	if err := m.requests.Save(ctx, req); err != nil {
		return nil, cli, fmt.Errorf("save authorization request: %w", err)
	}
	return req, cli, nil
}

// ApproveAuthorizationRequest consumes a pending request and records the
// resource owner's decision. On success it returns the request and a fresh
// authorization code. Errors returned with a non-nil request belong in a
// redirect to the request's redirect URI.
func (m *Manager) ApproveAuthorizationRequest(ctx context.Context, requestID string, approved bool, granted models.Scope) (*models.AuthorizationRequest, string, error) {
	if requestID == "" {
		return nil, "", errors.ErrInvalidRequest
	}
	req, err := m.requests.Take(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.log.Infow("approve: unknown or used request", "request_id", requestID)
			return nil, "", errors.ErrInvalidRequest
		}
		return nil, "", fmt.Errorf("take authorization request: %w", err)
	}

	if !approved {
		return req, "", errors.ErrAccessDenied
	}
	if oauth2.ResponseType(req.ResponseType) != oauth2.Code {
		return req, "", errors.ErrUnsupportedResponseType
	}

	cli, err := m.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, "", err
	}
	if extra := granted.Difference(cli.Scope); len(extra) > 0 {
		return req, "", errors.ErrInvalidScope
	}

	code, err := m.gen.Code()
	if err != nil {
		return nil, "", err
	}
	ac := &models.AuthorizationCode{Code: code, Request: *req, Scope: granted}
	if err := m.codes.Save(ctx, ac); err != nil {
		return nil, "", fmt.Errorf("save authorization code: %w", err)
	}
	return req, code, nil
}
