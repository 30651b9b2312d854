package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const (
	clientID       = "oauth-client"
	clientSecret   = "oauth-client-secret"
	redirectURI    = "http://localhost:9000/callback"
	resourceID     = "protected-resource"
	resourceSecret = "protected-resource-secret"
)

// newTestServer starts the authorization server with the demo registrations
// and the memory backend.
func newTestServer(t *testing.T) (*Server, *httpexpect.Expect) {
	t.Helper()

	cfg := DefaultAppConfig()
	cfg.AuthServer.Clients = append(defaultClients(), RegisteredClient{
		ID:           "other-client",
		Secret:       "other-client-secret",
		RedirectURIs: []string{"http://localhost:9000/other"},
		Scope:        "read",
	})
	cfg.AuthServer.Resources = defaultResources()
	cfg.AuthServer.Users = defaultUsers()
	cfg.AuthServer.JanitorInterval = 0

	srv, stores, err := Bootstrap(context.Background(), &cfg.AuthServer, prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	ts := httptest.NewServer(NewGinEngine(srv))
	t.Cleanup(ts.Close)

	e := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  ts.URL,
		Reporter: httpexpect.NewAssertReporter(t),
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
	return srv, e
}

func passwordToken(e *httpexpect.Expect, username, scope string) *httpexpect.Object {
	return e.POST("/token").
		WithBasicAuth(clientID, clientSecret).
		WithFormField("grant_type", "password").
		WithFormField("username", username).
		WithFormField("password", "password").
		WithFormField("scope", scope).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
}

func introspectToken(e *httpexpect.Expect, token string) *httpexpect.Object {
	return e.POST("/introspect").
		WithBasicAuth(resourceID, resourceSecret).
		WithFormField("token", token).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
}

func locationQuery(t *testing.T, resp *httpexpect.Response) url.Values {
	t.Helper()
	u, err := url.Parse(resp.Header("Location").Raw())
	require.NoError(t, err)
	return u.Query()
}
