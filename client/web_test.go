package client

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebExpect(t *testing.T, env *testEnv) *httpexpect.Expect {
	t.Helper()
	ts := httptest.NewServer(NewGinEngine(NewWeb(env.driver(), nil)))
	t.Cleanup(ts.Close)
	return browser(t, ts.URL)
}

// browser is a cookie-keeping user agent that does not follow redirects.
func browser(t *testing.T, baseURL string) *httpexpect.Expect {
	return httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  baseURL,
		Reporter: httpexpect.NewAssertReporter(t),
		Client: &http.Client{
			Jar: httpexpect.NewCookieJar(),
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	})
}

func TestWebPasswordSession(t *testing.T) {
	env := newTestEnv(t)
	e := newWebExpect(t, env)

	resp := e.GET("/").Expect().Status(http.StatusOK)
	resp.Cookie(SessionCookieName).Value().NotEmpty()
	resp.JSON().Object().Value("logged_in").Boolean().IsFalse()

	e.GET("/get_word").Expect().Status(http.StatusUnauthorized).
		JSON().Object().Value("error").String().IsEqual("no_access_token")

	e.POST("/login").
		WithFormField("username", "alice").
		WithFormField("password", "password").
		Expect().Status(http.StatusOK)

	state := e.GET("/").Expect().Status(http.StatusOK).JSON().Object()
	state.Value("logged_in").Boolean().IsTrue()
	state.Value("scope").String().IsEqual("read write delete")

	e.GET("/add_word").WithQuery("word", "hello").Expect().Status(http.StatusOK).
		JSON().Object().Value("result").String().IsEqual("add")
	e.GET("/get_word").Expect().Status(http.StatusOK).
		JSON().Object().Value("words").String().IsEqual("hello")
	e.GET("/delete_word").Expect().Status(http.StatusOK).
		JSON().Object().Value("result").String().IsEqual("rm")
	e.GET("/favorites").Expect().Status(http.StatusOK).
		JSON().Object().Value("user").String().IsEqual("Alice")
	e.GET("/produce").Expect().Status(http.StatusOK).
		JSON().Object().Value("fruit").Array().IsEmpty()

	e.POST("/refresh").Expect().Status(http.StatusOK).
		JSON().Object().Value("logged_in").Boolean().IsTrue()

	e.POST("/revoke").Expect().Status(http.StatusOK).
		JSON().Object().Value("logged_in").Boolean().IsFalse()
	e.GET("/get_word").Expect().Status(http.StatusUnauthorized)
}

func TestWebSessionsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(NewGinEngine(NewWeb(env.driver(), nil)))
	t.Cleanup(ts.Close)

	alice := browser(t, ts.URL)
	other := browser(t, ts.URL)

	alice.POST("/login").
		WithFormField("username", "alice").
		WithFormField("password", "password").
		Expect().Status(http.StatusOK)

	alice.GET("/").Expect().JSON().Object().Value("logged_in").Boolean().IsTrue()
	other.GET("/").Expect().JSON().Object().Value("logged_in").Boolean().IsFalse()
}

func TestWebLoginFailure(t *testing.T) {
	env := newTestEnv(t)
	e := newWebExpect(t, env)

	e.POST("/login").
		WithFormField("username", "alice").
		WithFormField("password", "wrong").
		Expect().Status(http.StatusBadRequest).
		JSON().Object().Value("error").String().IsEqual("invalid_grant")

	e.GET("/").Expect().JSON().Object().Value("logged_in").Boolean().IsFalse()
}

func TestWebAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t)
	e := newWebExpect(t, env)

	loc := e.GET("/authorize").Expect().Status(http.StatusFound).Header("Location").Raw()
	require.Contains(t, loc, env.asURL+"/authorize?")

	cb := env.approve(t, loc, "read")

	e.GET("/callback").
		WithQuery("code", cb.Get("code")).
		WithQuery("state", "forged").
		Expect().Status(http.StatusBadRequest).
		JSON().Object().Value("error").String().IsEqual("invalid_state")

	// a fresh flow succeeds
	loc = e.GET("/authorize").Expect().Status(http.StatusFound).Header("Location").Raw()
	cb = env.approve(t, loc, "read")

	u, err := url.Parse(loc)
	require.NoError(t, err)
	assert.Equal(t, u.Query().Get("state"), cb.Get("state"))

	e.GET("/callback").
		WithQuery("code", cb.Get("code")).
		WithQuery("state", cb.Get("state")).
		Expect().Status(http.StatusOK).
		JSON().Object().Value("scope").String().IsEqual("read")

	e.GET("/add_word").WithQuery("word", "x").Expect().Status(http.StatusForbidden).
		Header("WWW-Authenticate").Contains("insufficient_scope")
}

func TestWebCallbackError(t *testing.T) {
	env := newTestEnv(t)
	e := newWebExpect(t, env)

	e.GET("/authorize").Expect().Status(http.StatusFound)
	e.GET("/callback").WithQuery("error", "access_denied").
		Expect().Status(http.StatusBadRequest).
		JSON().Object().Value("error").String().IsEqual("access_denied")
}
