package models

import "time"

// AuthorizationRequest is a pending /authorize request waiting for the
// resource owner's decision. It is consumed exactly once by /approve.
type AuthorizationRequest struct {
	RequestID    string    `json:"request_id"`
	ClientID     string    `json:"client_id"`
	RedirectURI  string    `json:"redirect_uri"`
	Scope        Scope     `json:"scope"`
	ResponseType string    `json:"response_type"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired checks if the authorization request has expired.
func (ar *AuthorizationRequest) IsExpired() bool {
	return !ar.ExpiresAt.IsZero() && time.Now().After(ar.ExpiresAt)
}

// AuthorizationCode binds an approved request and the granted scope to an
// opaque code. It is consumed exactly once by the token endpoint.
type AuthorizationCode struct {
	Code      string               `json:"code"`
	Request   AuthorizationRequest `json:"request"`
	Scope     Scope                `json:"scope"`
	CreatedAt time.Time            `json:"created_at"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// IsExpired checks if the code has expired.
func (ac *AuthorizationCode) IsExpired() bool {
	return !ac.ExpiresAt.IsZero() && time.Now().After(ac.ExpiresAt)
}
