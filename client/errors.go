package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

var (
	// ErrStateMismatch is returned when the state echoed to the callback is
	// not the one the flow was started with.
	ErrStateMismatch = errors.New("state mismatch")

	// ErrNoAccessToken is returned when a resource call is attempted without
	// a session access token.
	ErrNoAccessToken = errors.New("no access token")

	// ErrNoPendingFlow is returned by the callback when no authorization
	// code flow was started for the session.
	ErrNoPendingFlow = errors.New("no authorization flow in progress")

	// ErrUpstreamUnavailable reports a timeout, connection failure or 5xx
	// from the authorization or resource server.
	ErrUpstreamUnavailable = errors.New("temporarily_unavailable: upstream unavailable")
)

// TokenError is an OAuth error answered by the authorization server.
type TokenError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *TokenError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("oauth2: %s: %s (status %d)", e.Code, e.Description, e.StatusCode)
	}
	return fmt.Sprintf("oauth2: %s (status %d)", e.Code, e.StatusCode)
}

// ResourceError is a non-2xx answer from the protected resource.
type ResourceError struct {
	StatusCode      int
	WWWAuthenticate string
	Body            []byte
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource server returned status %d", e.StatusCode)
}

// Unauthorized reports a 401 or 403, the statuses that call for a new grant.
func (e *ResourceError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// tokenErrorFromBody decodes an OAuth error body. Bodies that are not OAuth
// errors keep the status and an empty code.
func tokenErrorFromBody(status int, body []byte) *TokenError {
	te := &TokenError{}
	_ = json.Unmarshal(body, te)
	te.StatusCode = status
	return te
}

// translateTokenError maps x/oauth2 errors to TokenError or
// ErrUpstreamUnavailable.
func translateTokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: token endpoint status %d", ErrUpstreamUnavailable, status)
	}
	return tokenErrorFromBody(status, re.Body)
}
