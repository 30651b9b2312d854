package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(t *testing.T, d *Driver, sess *Session) string {
	t.Helper()
	body, err := d.CallProtectedResource(context.Background(), sess, http.MethodGet, "/words", nil)
	require.NoError(t, err)
	var out struct {
		Words string `json:"words"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Words
}

func TestLoginWithPassword(t *testing.T) {
	env := newTestEnv(t)
	d := env.driver()
	ctx := context.Background()

	sess := &Session{}
	require.NoError(t, d.LoginWithPassword(ctx, sess, "alice", "password"))
	assert.True(t, sess.LoggedIn())
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Equal(t, "read write delete", sess.Scope.String())
	assert.False(t, sess.Expiry.IsZero())

	_, err := d.CallProtectedResource(ctx, sess, http.MethodPost, "/words", url.Values{"word": {"hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello", words(t, d, sess))

	_, err = d.CallProtectedResource(ctx, sess, http.MethodDelete, "/words", nil)
	require.NoError(t, err)
	assert.Equal(t, "", words(t, d, sess))
}

func TestLoginWithPasswordErrors(t *testing.T) {
	env := newTestEnv(t)
	d := env.driver()
	ctx := context.Background()

	t.Run("bad password", func(t *testing.T) {
		sess := &Session{}
		err := d.LoginWithPassword(ctx, sess, "alice", "nope")
		var te *TokenError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "invalid_grant", te.Code)
		assert.Equal(t, http.StatusBadRequest, te.StatusCode)
		assert.False(t, sess.LoggedIn())
	})

	t.Run("scope beyond the user", func(t *testing.T) {
		sess := &Session{}
		err := d.LoginWithPassword(ctx, sess, "bob", "password")
		var te *TokenError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "invalid_scope", te.Code)
		assert.False(t, sess.LoggedIn())
	})

	t.Run("bad client secret", func(t *testing.T) {
		cfg := env.config()
		cfg.ClientSecret = "wrong"
		err := NewDriver(cfg, nil).LoginWithPassword(ctx, &Session{}, "alice", "password")
		var te *TokenError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "invalid_client", te.Code)
		assert.Equal(t, http.StatusUnauthorized, te.StatusCode)
	})
}

func TestAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t)
	d := env.driver()
	ctx := context.Background()

	sess := &Session{}
	authURL, err := d.BeginAuthorizationCodeFlow(sess)
	require.NoError(t, err)
	require.NotEmpty(t, sess.State)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, testClientID, q.Get("client_id"))
	assert.Equal(t, testRedirectURI, q.Get("redirect_uri"))
	assert.Equal(t, sess.State, q.Get("state"))

	cb := env.approve(t, authURL, "read write")
	require.NoError(t, d.CompleteAuthorizationCodeFlow(ctx, sess, cb.Get("code"), cb.Get("state")))
	assert.True(t, sess.LoggedIn())
	assert.Empty(t, sess.State)
	assert.Equal(t, "read write", sess.Scope.String())

	_, err = d.CallProtectedResource(ctx, sess, http.MethodPost, "/words", url.Values{"word": {"code"}})
	require.NoError(t, err)

	_, err = d.CallProtectedResource(ctx, sess, http.MethodDelete, "/words", nil)
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusForbidden, re.StatusCode)
	assert.True(t, re.Unauthorized())
	assert.Contains(t, re.WWWAuthenticate, `error="insufficient_scope"`)
}

func TestCompleteAuthorizationCodeFlowStateMismatch(t *testing.T) {
	env := newTestEnv(t)
	d := env.driver()
	ctx := context.Background()

	sess := &Session{}
	authURL, err := d.BeginAuthorizationCodeFlow(sess)
	require.NoError(t, err)
	cb := env.approve(t, authURL, "read")

	err = d.CompleteAuthorizationCodeFlow(ctx, sess, cb.Get("code"), "forged")
	require.ErrorIs(t, err, ErrStateMismatch)
	assert.False(t, sess.LoggedIn())

	// the pending state is gone, so even the right state is refused now
	err = d.CompleteAuthorizationCodeFlow(ctx, sess, cb.Get("code"), cb.Get("state"))
	require.ErrorIs(t, err, ErrNoPendingFlow)
	assert.False(t, sess.LoggedIn())
}

func TestCompleteAuthorizationCodeFlowCodeReplay(t *testing.T) {
	env := newTestEnv(t)
	d := env.driver()
	ctx := context.Background()

	sess := &Session{}
	authURL, err := d.BeginAuthorizationCodeFlow(sess)
	require.NoError(t, err)
	cb := env.approve(t, authURL, "read")
	require.NoError(t, d.CompleteAuthorizationCodeFlow(ctx, sess, cb.Get("code"), cb.Get("state")))

	again := &Session{State: cb.Get("state")}
	err = d.CompleteAuthorizationCodeFlow(ctx, again, cb.Get("code"), cb.Get("state"))
	var te *TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "invalid_grant", te.Code)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	d := env.driver()
	ctx := context.Background()

	sess := &Session{}
	require.NoError(t, d.LoginWithPassword(ctx, sess, "alice", "password"))
	oldAccess, oldRefresh := sess.AccessToken, sess.RefreshToken

	require.NoError(t, d.Refresh(ctx, sess))
	assert.NotEqual(t, oldAccess, sess.AccessToken)
	assert.Equal(t, oldRefresh, sess.RefreshToken)
	assert.Equal(t, "read write delete", sess.Scope.String())
	words(t, d, sess)

	err := d.Refresh(ctx, &Session{})
	var te *TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "invalid_request", te.Code)

	err = d.Refresh(ctx, &Session{RefreshToken: "unknown"})
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "invalid_grant", te.Code)
}

func TestRevokeSession(t *testing.T) {
	env := newTestEnv(t)
	d := env.driver()
	ctx := context.Background()

	sess := &Session{}
	require.NoError(t, d.LoginWithPassword(ctx, sess, "alice", "password"))
	stale := *sess

	require.NoError(t, d.RevokeSession(ctx, sess))
	assert.Equal(t, Session{}, *sess)

	_, err := d.CallProtectedResource(ctx, &stale, http.MethodGet, "/words", nil)
	var re *ResourceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusUnauthorized, re.StatusCode)

	_, err = d.CallProtectedResource(ctx, sess, http.MethodGet, "/words", nil)
	require.ErrorIs(t, err, ErrNoAccessToken)

	// nothing to revoke is not an error
	require.NoError(t, d.RevokeSession(ctx, &Session{}))
}

func TestRevokeSessionClearsOnFailure(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config()
	cfg.ClientSecret = "wrong"
	d := NewDriver(cfg, nil)

	sess := &Session{AccessToken: "a", RefreshToken: "r", State: "s"}
	err := d.RevokeSession(context.Background(), sess)
	var te *TokenError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "invalid_client", te.Code)
	assert.Equal(t, Session{}, *sess)
}

func TestUpstreamUnavailable(t *testing.T) {
	ctx := context.Background()

	t.Run("connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		base := ts.URL
		ts.Close()

		d := NewDriver(Config{ClientID: "c", ClientSecret: "s", TokenURL: base + "/token", RevokeURL: base + "/revoke", ResourceURL: base}, nil)
		err := d.LoginWithPassword(ctx, &Session{}, "alice", "password")
		require.ErrorIs(t, err, ErrUpstreamUnavailable)

		sess := &Session{AccessToken: "a"}
		_, err = d.CallProtectedResource(ctx, sess, http.MethodGet, "/words", nil)
		require.ErrorIs(t, err, ErrUpstreamUnavailable)

		err = d.RevokeSession(ctx, sess)
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
		assert.False(t, sess.LoggedIn())
	})

	t.Run("server error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer ts.Close()

		d := NewDriver(Config{ClientID: "c", ClientSecret: "s", TokenURL: ts.URL + "/token"}, nil)
		err := d.LoginWithPassword(ctx, &Session{}, "alice", "password")
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
		var te *TokenError
		assert.False(t, errors.As(err, &te))
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(release)

		d := NewDriver(Config{ClientID: "c", ClientSecret: "s", TokenURL: ts.URL + "/token", Timeout: 50 * time.Millisecond}, nil)
		err := d.LoginWithPassword(ctx, &Session{}, "alice", "password")
		require.ErrorIs(t, err, ErrUpstreamUnavailable)
	})
}
