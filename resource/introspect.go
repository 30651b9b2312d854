// Package resource implements the protected resource server: a bearer token
// guard backed by RFC 7662 introspection, and the scope-gated API it protects.
package resource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/legit-games/oauth2-in-action/models"
)

// DefaultIntrospectionTimeout bounds a single introspection call.
const DefaultIntrospectionTimeout = 10 * time.Second

// maxResponseSize caps the introspection body we are willing to read.
const maxResponseSize = 64 * 1024

var (
	// ErrUpstreamUnavailable reports that the authorization server could not
	// answer: timeout, connection failure or a 5xx status.
	ErrUpstreamUnavailable = errors.New("temporarily_unavailable: authorization server unavailable")

	// ErrIntrospectionUnauthorized reports that the authorization server
	// rejected this resource's credentials.
	ErrIntrospectionUnauthorized = errors.New("introspection unauthorized")
)

// Introspector calls the authorization server's introspection endpoint with
// the resource's own credentials.
type Introspector struct {
	client    *http.Client
	url       string
	id        string
	secret    string
	metrics   *Metrics
	userAgent string
}

// NewIntrospector creates an RFC 7662 introspection client. A timeout of 0
// uses DefaultIntrospectionTimeout.
func NewIntrospector(introspectURL, resourceID, resourceSecret string, timeout time.Duration) *Introspector {
	if timeout <= 0 {
		timeout = DefaultIntrospectionTimeout
	}
	return &Introspector{
		client:    &http.Client{Timeout: timeout},
		url:       introspectURL,
		id:        resourceID,
		secret:    resourceSecret,
		userAgent: "oauth2-in-action-resource",
	}
}

// WithHTTPClient replaces the HTTP client, keeping its timeout as is.
func (i *Introspector) WithHTTPClient(c *http.Client) *Introspector {
	i.client = c
	return i
}

// SetMetrics sets the latency histogram; nil disables it.
func (i *Introspector) SetMetrics(m *Metrics) {
	i.metrics = m
}

// Introspect asks the authorization server about token. Inactive tokens are
// not an error: the result simply has Active=false.
func (i *Introspector) Introspect(ctx context.Context, token string) (res *models.Introspection, err error) {
	start := time.Now()
	defer func() { i.metrics.observe(start, res, err) }()

	form := url.Values{}
	form.Set("token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", i.userAgent)
	req.SetBasicAuth(url.QueryEscape(i.id), url.QueryEscape(i.secret))

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read introspection response: %v", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrIntrospectionUnauthorized
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("introspection failed with status %d: %s", resp.StatusCode, string(body))
	}

	var out models.Introspection
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode introspection JSON: %w", err)
	}
	if !out.Active {
		return &models.Introspection{Active: false}, nil
	}
	return &out, nil
}
