package models

import "time"

// TokenKind distinguishes access and refresh token records.
type TokenKind string

// token kinds
const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Token is a stored access or refresh token.
//
// Access and refresh tokens are separate records. PairedWith links an access
// token to the refresh token it was issued alongside (or from), and a refresh
// token to the access token it was first issued with.
type Token struct {
	Value      string    `json:"value"`
	Kind       TokenKind `json:"kind"`
	ClientID   string    `json:"client_id"`
	Username   string    `json:"username,omitempty"`
	Scope      Scope     `json:"scope"`
	PairedWith string    `json:"paired_with,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the token has an expiry that lies before now.
func (t *Token) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// ExpiresIn returns the remaining lifetime, or 0 for tokens without expiry.
func (t *Token) ExpiresIn(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() {
		return 0
	}
	if d := t.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Introspection is the RFC 7662 view of a token. Inactive results carry only
// Active=false.
type Introspection struct {
	Active    bool   `json:"active"`
	Issuer    string `json:"iss,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Subject   string `json:"sub,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}
