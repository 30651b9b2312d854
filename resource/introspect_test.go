package resource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAS(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func TestIntrospectorActive(t *testing.T) {
	ts := fakeAS(t, func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "protected-resource", id)
		assert.Equal(t, "protected-resource-secret", secret)
		assert.Equal(t, "tok", r.PostFormValue("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"active":true,"scope":"read write","client_id":"oauth-client","username":"alice","iss":"http://localhost:9001/"}`))
	})

	reg := prometheus.NewRegistry()
	in := NewIntrospector(ts.URL, "protected-resource", "protected-resource-secret", time.Second)
	in.SetMetrics(NewMetrics(reg))

	res, err := in.Introspect(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, "read write", res.Scope)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "oauth_rs_introspection_duration_seconds"))
}

func TestIntrospectorInactive(t *testing.T) {
	ts := fakeAS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"active":false,"scope":"ignored"}`))
	})

	res, err := NewIntrospector(ts.URL, "id", "secret", time.Second).Introspect(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Empty(t, res.Scope)
}

func TestIntrospectorFailures(t *testing.T) {
	t.Run("rejected credentials", func(t *testing.T) {
		ts := fakeAS(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		_, err := NewIntrospector(ts.URL, "id", "bad", time.Second).Introspect(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrIntrospectionUnauthorized)
		assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("server error", func(t *testing.T) {
		ts := fakeAS(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := NewIntrospector(ts.URL, "id", "secret", time.Second).Introspect(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		ts := fakeAS(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)
		_, err := NewIntrospector(ts.URL, "id", "secret", 50*time.Millisecond).Introspect(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("connection refused", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		addr := ts.URL
		ts.Close()
		_, err := NewIntrospector(addr, "id", "secret", time.Second).Introspect(context.Background(), "tok")
		assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	})

	t.Run("malformed body", func(t *testing.T) {
		ts := fakeAS(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		})
		_, err := NewIntrospector(ts.URL, "id", "secret", time.Second).Introspect(context.Background(), "tok")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	})
}
