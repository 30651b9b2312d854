package generates

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// tokenBytes is the entropy of access tokens, refresh tokens and codes.
const tokenBytes = 32

// Generator produces opaque credentials. Reader defaults to crypto/rand.
type Generator struct {
	Reader io.Reader
}

// NewGenerator create a generator backed by crypto/rand
func NewGenerator() *Generator {
	return &Generator{Reader: rand.Reader}
}

func (g *Generator) random(n int) (string, error) {
	r := g.Reader
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Token returns a fresh access token value.
func (g *Generator) Token() (string, error) {
	return g.random(tokenBytes)
}

// Refresh returns a fresh refresh token value.
func (g *Generator) Refresh() (string, error) {
	return g.random(tokenBytes)
}

// Code returns a fresh authorization code.
func (g *Generator) Code() (string, error) {
	return g.random(tokenBytes)
}

// State returns an anti-CSRF state value for the client side.
func (g *Generator) State() (string, error) {
	return g.random(16)
}

// RequestID returns a fresh pending-request identifier.
func (g *Generator) RequestID() (string, error) {
	id, err := uuid.NewRandomFromReader(g.readerOrDefault())
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	return id.String(), nil
}

func (g *Generator) readerOrDefault() io.Reader {
	if g.Reader == nil {
		return rand.Reader
	}
	return g.Reader
}
