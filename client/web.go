package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-session/session/v3"
	"github.com/legit-games/oauth2-in-action/logger"
	"github.com/legit-games/oauth2-in-action/models"
	"go.uber.org/zap"
)

// SessionCookieName names the browser cookie that keys client sessions.
const SessionCookieName = "oauth_client_session"

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyScope        = "scope"
	keyExpiry       = "expiry"
	keyState        = "state"
)

type sessionKey struct{}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session attached by the web binding.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*Session)
	return sess, ok && sess != nil
}

// sessionLocks serializes requests that share a session cookie.
type sessionLocks struct {
	mu    sync.Mutex
	held  map[string]*sync.Mutex
	users map[string]int
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.held[id]
	if !ok {
		m = &sync.Mutex{}
		l.held[id] = m
	}
	l.users[id]++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		if l.users[id]--; l.users[id] == 0 {
			delete(l.users, id)
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}

// Web is the browser-facing client application.
type Web struct {
	driver   *Driver
	sessions *session.Manager
	locks    *sessionLocks
	log      *zap.SugaredLogger
}

// NewWeb creates the web binding with an in-memory cookie session manager.
// A nil log uses the package logger.
func NewWeb(driver *Driver, log *zap.SugaredLogger) *Web {
	if log == nil {
		log = logger.Get()
	}
	return &Web{
		driver: driver,
		sessions: session.NewManager(
			session.SetCookieName(SessionCookieName),
			session.SetExpired(int64((24 * time.Hour).Seconds())),
		),
		locks: &sessionLocks{held: map[string]*sync.Mutex{}, users: map[string]int{}},
		log:   log,
	}
}

func loadSession(store session.Store) *Session {
	str := func(key string) string {
		v, _ := store.Get(key)
		s, _ := v.(string)
		return s
	}
	sess := &Session{
		AccessToken:  str(keyAccessToken),
		RefreshToken: str(keyRefreshToken),
		Scope:        models.ParseScope(str(keyScope)),
		State:        str(keyState),
	}
	if exp := str(keyExpiry); exp != "" {
		sess.Expiry, _ = time.Parse(time.RFC3339, exp)
	}
	return sess
}

func saveSession(store session.Store, sess *Session) error {
	set := func(key, value string) {
		if value == "" {
			store.Delete(key)
			return
		}
		store.Set(key, value)
	}
	set(keyAccessToken, sess.AccessToken)
	set(keyRefreshToken, sess.RefreshToken)
	set(keyScope, sess.Scope.String())
	set(keyState, sess.State)
	if sess.Expiry.IsZero() {
		set(keyExpiry, "")
	} else {
		set(keyExpiry, sess.Expiry.UTC().Format(time.RFC3339))
	}
	return store.Save()
}

// sessionMiddleware loads the cookie's session into the request context
// and writes it back once the handler is done.
func (w *Web) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		store, err := w.sessions.Start(c.Request.Context(), c.Writer, c.Request)
		if err != nil {
			w.log.Errorw("failed to start session", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
			return
		}
		unlock := w.locks.lock(store.SessionID())
		defer unlock()

		sess := loadSession(store)
		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), sess))
		c.Next()

		if err := saveSession(store, sess); err != nil {
			w.log.Errorw("failed to save session", "error", err)
		}
	}
}

func mustSession(c *gin.Context) *Session {
	sess, _ := SessionFromContext(c.Request.Context())
	return sess
}

func sessionView(sess *Session) gin.H {
	return gin.H{
		"logged_in":     sess.LoggedIn(),
		"access_token":  sess.AccessToken,
		"refresh_token": sess.RefreshToken,
		"scope":         sess.Scope.String(),
	}
}

// writeError renders driver errors as JSON with a matching status.
func (w *Web) writeError(c *gin.Context, err error) {
	var te *TokenError
	var re *ResourceError
	switch {
	case errors.As(err, &te):
		status := te.StatusCode
		if status == 0 {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": te.Code, "error_description": te.Description})
	case errors.As(err, &re):
		if re.WWWAuthenticate != "" {
			c.Header("WWW-Authenticate", re.WWWAuthenticate)
		}
		c.JSON(re.StatusCode, gin.H{"error": "resource_error", "status": re.StatusCode})
	case errors.Is(err, ErrStateMismatch), errors.Is(err, ErrNoPendingFlow):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_state", "error_description": err.Error()})
	case errors.Is(err, ErrNoAccessToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_access_token"})
	case errors.Is(err, ErrUpstreamUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
	default:
		w.log.Errorw("client request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
	}
}

func (w *Web) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(mustSession(c)))
}

func (w *Web) handleLogin(c *gin.Context) {
	sess := mustSession(c)
	if err := w.driver.LoginWithPassword(c.Request.Context(), sess, c.PostForm("username"), c.PostForm("password")); err != nil {
		w.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(sess))
}

func (w *Web) handleAuthorize(c *gin.Context) {
	target, err := w.driver.BeginAuthorizationCodeFlow(mustSession(c))
	if err != nil {
		w.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

func (w *Web) handleCallback(c *gin.Context) {
	sess := mustSession(c)
	if e := c.Query("error"); e != "" {
		sess.State = ""
		c.JSON(http.StatusBadRequest, gin.H{"error": e})
		return
	}
	if err := w.driver.CompleteAuthorizationCodeFlow(c.Request.Context(), sess, c.Query("code"), c.Query("state")); err != nil {
		w.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(sess))
}

func (w *Web) handleRefresh(c *gin.Context) {
	sess := mustSession(c)
	if err := w.driver.Refresh(c.Request.Context(), sess); err != nil {
		w.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(sess))
}

func (w *Web) handleRevoke(c *gin.Context) {
	sess := mustSession(c)
	if err := w.driver.RevokeSession(c.Request.Context(), sess); err != nil {
		w.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionView(sess))
}

// proxy forwards to the resource server and relays its JSON body.
func (w *Web) proxy(method, path string, params func(c *gin.Context) url.Values, result string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p url.Values
		if params != nil {
			p = params(c)
		}
		body, err := w.driver.CallProtectedResource(c.Request.Context(), mustSession(c), method, path, p)
		if err != nil {
			w.writeError(c, err)
			return
		}
		if result != "" {
			c.JSON(http.StatusOK, gin.H{"result": result})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	}
}

// NewGinEngine builds the client application router.
func NewGinEngine(w *Web) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	app := r.Group("/")
	app.Use(w.sessionMiddleware())
	app.GET("/", w.handleIndex)
	app.POST("/login", w.handleLogin)
	app.GET("/authorize", w.handleAuthorize)
	app.GET("/callback", w.handleCallback)
	app.POST("/refresh", w.handleRefresh)
	app.POST("/revoke", w.handleRevoke)

	word := func(c *gin.Context) url.Values {
		return url.Values{"word": {c.Query("word")}}
	}
	app.GET("/get_word", w.proxy(http.MethodGet, "/words", nil, ""))
	app.GET("/add_word", w.proxy(http.MethodPost, "/words", word, "add"))
	app.GET("/delete_word", w.proxy(http.MethodDelete, "/words", nil, "rm"))
	app.GET("/produce", w.proxy(http.MethodGet, "/produce", nil, ""))
	app.GET("/favorites", w.proxy(http.MethodGet, "/favorites", nil, ""))
	return r
}
