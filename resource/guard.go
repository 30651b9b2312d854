package resource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/legit-games/oauth2-in-action/models"
	"go.uber.org/zap"
)

// AccessGrant is what an active introspection result grants the request.
type AccessGrant struct {
	ClientID  string
	Username  string
	Scope     models.Scope
	Issuer    string
	ExpiresAt int64
}

// HasScope reports whether label was granted.
func (g *AccessGrant) HasScope(label string) bool {
	return g != nil && g.Scope.Has(label)
}

type grantKey struct{}

// WithGrant returns a copy of ctx carrying g.
func WithGrant(ctx context.Context, g *AccessGrant) context.Context {
	return context.WithValue(ctx, grantKey{}, g)
}

// GrantFromContext returns the grant attached by AuthenticateRequest.
func GrantFromContext(ctx context.Context) (*AccessGrant, bool) {
	g, ok := ctx.Value(grantKey{}).(*AccessGrant)
	return g, ok && g != nil
}

// TokenIntrospector answers introspection queries for the guard.
type TokenIntrospector interface {
	Introspect(ctx context.Context, token string) (*models.Introspection, error)
}

// Guard enforces bearer tokens on protected routes.
type Guard struct {
	introspector TokenIntrospector
	realm        string
	log          *zap.SugaredLogger
	metrics      *Metrics
}

// NewGuard creates a guard. realm is reported in WWW-Authenticate.
func NewGuard(introspector TokenIntrospector, realm string, log *zap.SugaredLogger) *Guard {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Guard{introspector: introspector, realm: realm, log: log}
}

// SetMetrics sets the denial counter; nil disables it.
func (g *Guard) SetMetrics(m *Metrics) {
	g.metrics = m
}

// BearerToken extracts the access token from, in order, the Authorization
// header, the access_token form field and the access_token query parameter.
func BearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch || r.Method == http.MethodDelete {
		if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			if v := r.PostFormValue("access_token"); v != "" {
				return v
			}
		}
	}
	return r.URL.Query().Get("access_token")
}

// AuthenticateRequest introspects the request's bearer token and attaches an
// AccessGrant when it is active. A missing or inactive token leaves the
// request without a grant; introspection failures end the request.
func (g *Guard) AuthenticateRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" {
			c.Next()
			return
		}

		res, err := g.introspector.Introspect(c.Request.Context(), token)
		if err != nil {
			g.log.Errorw("introspection failed", "path", c.Request.URL.Path, "error", err)
			if errors.Is(err, ErrUpstreamUnavailable) {
				g.metrics.deny("upstream_unavailable")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily_unavailable"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
			return
		}
		if !res.Active {
			g.log.Debugw("inactive token", "path", c.Request.URL.Path)
			c.Next()
			return
		}

		grant := &AccessGrant{
			ClientID:  res.ClientID,
			Username:  res.Username,
			Scope:     models.ParseScope(res.Scope),
			Issuer:    res.Issuer,
			ExpiresAt: res.ExpiresAt,
		}
		if grant.Username == "" {
			grant.Username = res.Subject
		}
		c.Request = c.Request.WithContext(WithGrant(c.Request.Context(), grant))
		c.Next()
	}
}

// RequireGrant rejects requests without an active grant with a bare 401.
func (g *Guard) RequireGrant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GrantFromContext(c.Request.Context()); !ok {
			g.metrics.deny("no_grant")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

// RequireScope rejects grants lacking scope with 403 insufficient_scope.
// Requests without a grant get a bare 401.
func (g *Guard) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		grant, ok := GrantFromContext(c.Request.Context())
		if !ok {
			g.metrics.deny("no_grant")
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		if !grant.HasScope(scope) {
			g.metrics.deny("insufficient_scope")
			c.Header("WWW-Authenticate", fmt.Sprintf(`Bearer realm=%s, error="insufficient_scope", scope="%s"`, g.realm, scope))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":             "insufficient_scope",
				"error_description": fmt.Sprintf("scope %q is required", scope),
			})
			return
		}
		c.Next()
	}
}
