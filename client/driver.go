// Package client drives the OAuth 2.0 grants against the authorization
// server on behalf of a registered client and calls the protected resource
// with the resulting bearer token.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/legit-games/oauth2-in-action/generates"
	"github.com/legit-games/oauth2-in-action/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds every call to the authorization and resource servers.
const DefaultTimeout = 10 * time.Second

const maxResourceBody = 1 << 20

// Config describes the registered client and the servers it talks to.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scope        string
	AuthorizeURL string
	TokenURL     string
	RevokeURL    string
	ResourceURL  string
	Timeout      time.Duration
}

// Session is the per-user client state. The zero value is logged out.
type Session struct {
	AccessToken  string
	RefreshToken string
	Scope        models.Scope
	Expiry       time.Time
	// State is the pending authorization code flow's anti-CSRF value.
	State string
}

// LoggedIn reports whether the session holds an access token.
func (s *Session) LoggedIn() bool {
	return s.AccessToken != ""
}

// Clear forgets every token and any pending flow.
func (s *Session) Clear() {
	*s = Session{}
}

func (s *Session) store(tok *oauth2.Token) {
	s.AccessToken = tok.AccessToken
	s.RefreshToken = tok.RefreshToken
	s.Expiry = tok.Expiry
	s.Scope = nil
	if v, ok := tok.Extra("scope").(string); ok {
		s.Scope = models.ParseScope(v)
	}
}

// Driver runs the password, authorization code and refresh grants and the
// bearer calls that follow. It keeps no per-user state of its own.
type Driver struct {
	cfg   Config
	oauth *oauth2.Config
	http  *http.Client
	gen   *generates.Generator
	log   *zap.SugaredLogger
}

// NewDriver creates a driver. A nil log discards output.
func NewDriver(cfg Config, log *zap.SugaredLogger) *Driver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Driver{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthorizeURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			RedirectURL: cfg.RedirectURI,
			Scopes:      models.ParseScope(cfg.Scope),
		},
		http: &http.Client{Timeout: cfg.Timeout},
		gen:  generates.NewGenerator(),
		log:  log,
	}
}

// WithHTTPClient replaces the HTTP client used for every outbound call.
func (d *Driver) WithHTTPClient(c *http.Client) *Driver {
	d.http = c
	return d
}

func (d *Driver) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, d.http)
}

// LoginWithPassword runs the resource owner password grant for the client's
// configured scope and stores the returned tokens in sess.
func (d *Driver) LoginWithPassword(ctx context.Context, sess *Session, username, password string) error {
	tok, err := d.oauth.PasswordCredentialsToken(d.context(ctx), username, password)
	if err != nil {
		err = translateTokenError(err)
		d.log.Warnw("password grant failed", "username", username, "error", err)
		return err
	}
	sess.store(tok)
	sess.State = ""
	d.log.Infow("password grant succeeded", "username", username, "scope", sess.Scope.String())
	return nil
}

// BeginAuthorizationCodeFlow records a fresh state in sess and returns the
// authorization endpoint URL to send the user agent to.
func (d *Driver) BeginAuthorizationCodeFlow(sess *Session) (string, error) {
	state, err := d.gen.State()
	if err != nil {
		return "", err
	}
	sess.State = state
	return d.oauth.AuthCodeURL(state), nil
}

// CompleteAuthorizationCodeFlow checks state against the one recorded by
// BeginAuthorizationCodeFlow and exchanges code for tokens. The pending
// state is consumed whatever the outcome.
func (d *Driver) CompleteAuthorizationCodeFlow(ctx context.Context, sess *Session, code, state string) error {
	expected := sess.State
	sess.State = ""
	if expected == "" {
		return ErrNoPendingFlow
	}
	if state != expected {
		d.log.Warnw("authorization callback state mismatch")
		return ErrStateMismatch
	}
	if code == "" {
		return &TokenError{Code: "invalid_request", Description: "the callback carried no authorization code"}
	}

	tok, err := d.oauth.Exchange(d.context(ctx), code)
	if err != nil {
		err = translateTokenError(err)
		d.log.Warnw("authorization code exchange failed", "error", err)
		return err
	}
	sess.store(tok)
	d.log.Infow("authorization code exchanged", "scope", sess.Scope.String())
	return nil
}

// Refresh trades the session's refresh token for a new access token. The
// refresh token is kept when the server does not rotate it.
func (d *Driver) Refresh(ctx context.Context, sess *Session) error {
	if sess.RefreshToken == "" {
		return &TokenError{Code: "invalid_request", Description: "no refresh token in session"}
	}
	old := &oauth2.Token{RefreshToken: sess.RefreshToken}
	tok, err := d.oauth.TokenSource(d.context(ctx), old).Token()
	if err != nil {
		err = translateTokenError(err)
		d.log.Warnw("refresh grant failed", "error", err)
		return err
	}
	sess.store(tok)
	if sess.RefreshToken == "" {
		sess.RefreshToken = old.RefreshToken
	}
	return nil
}

// RevokeSession asks the authorization server to revoke the session's
// tokens. Local state is cleared whatever the server answers; its failure
// is still returned.
func (d *Driver) RevokeSession(ctx context.Context, sess *Session) error {
	token := sess.RefreshToken
	if token == "" {
		token = sess.AccessToken
	}
	sess.Clear()
	if token == "" {
		return nil
	}

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(url.QueryEscape(d.cfg.ClientID), url.QueryEscape(d.cfg.ClientSecret))

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResourceBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		d.log.Infow("session revoked")
		return nil
	case resp.StatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: revocation endpoint status %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		err := tokenErrorFromBody(resp.StatusCode, body)
		d.log.Warnw("revocation refused", "error", err)
		return err
	}
}

// CallProtectedResource sends method to path on the resource server with
// the session's access token as a bearer credential. params travel in the
// query for GET and DELETE and as a form body otherwise. 401 and 403 come
// back as *ResourceError; nothing is refreshed behind the caller's back.
func (d *Driver) CallProtectedResource(ctx context.Context, sess *Session, method, path string, params url.Values) ([]byte, error) {
	if !sess.LoggedIn() {
		return nil, ErrNoAccessToken
	}

	target := strings.TrimSuffix(d.cfg.ResourceURL, "/") + "/" + strings.TrimPrefix(path, "/")
	var body io.Reader
	if method == http.MethodGet || method == http.MethodDelete {
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
	} else {
		body = strings.NewReader(params.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create resource request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	hc := &http.Client{
		Timeout: d.http.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: sess.AccessToken, TokenType: "Bearer"}),
			Base:   d.http.Transport,
		},
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResourceBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read resource response: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		d.log.Debugw("resource call refused", "method", method, "path", path, "status", resp.StatusCode)
		return nil, &ResourceError{
			StatusCode:      resp.StatusCode,
			WWWAuthenticate: resp.Header.Get("WWW-Authenticate"),
			Body:            data,
		}
	}
	return data, nil
}
