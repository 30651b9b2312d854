package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestParseScope(t *testing.T) {
	assert.Nil(t, ParseScope(""))
	assert.Nil(t, ParseScope("   "))
	assert.Equal(t, Scope{"read", "write"}, ParseScope(" read  write read "))
	assert.Equal(t, "read write", ParseScope("read write").String())
}

func TestScopeSetOperations(t *testing.T) {
	client := ParseScope("read write delete")

	assert.True(t, ParseScope("read delete").SubsetOf(client))
	assert.True(t, Scope(nil).SubsetOf(client))
	assert.False(t, ParseScope("read admin").SubsetOf(client))
	assert.Equal(t, Scope{"admin"}, ParseScope("read admin").Difference(client))
	assert.Equal(t, Scope{"read"}, client.Intersect(ParseScope("fruit read")))
	assert.Equal(t, Scope{"delete", "read", "write"}, client.Sorted())
	assert.Equal(t, Scope{"read", "write", "delete"}, client)
}

func TestClientRedirectURIs(t *testing.T) {
	c := &Client{ID: "c", Secret: "s", RedirectURIs: []string{"http://localhost:9000/callback"}}

	assert.True(t, c.VerifySecret("s"))
	assert.False(t, c.VerifySecret("S"))
	assert.True(t, c.HasRedirectURI("http://localhost:9000/callback"))
	assert.False(t, c.HasRedirectURI("http://localhost:9000/callback/"))

	uri, ok := c.DefaultRedirectURI()
	assert.True(t, ok)
	assert.Equal(t, "http://localhost:9000/callback", uri)

	c.RedirectURIs = append(c.RedirectURIs, "http://localhost:9000/other")
	_, ok = c.DefaultRedirectURI()
	assert.False(t, ok)
}

func TestUserVerifyPassword(t *testing.T) {
	plain := &User{Username: "alice", Password: "password"}
	assert.True(t, plain.VerifyPassword("password"))
	assert.False(t, plain.VerifyPassword("Password"))

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	hashed := &User{Username: "bob", Password: string(hash)}
	assert.True(t, hashed.VerifyPassword("s3cret"))
	assert.False(t, hashed.VerifyPassword(string(hash)))
}

func TestTokenExpiry(t *testing.T) {
	now := time.Now()
	tok := &Token{CreatedAt: now}
	assert.False(t, tok.IsExpired(now.Add(100*time.Hour)))

	tok.ExpiresAt = now.Add(time.Minute)
	assert.False(t, tok.IsExpired(now))
	assert.True(t, tok.IsExpired(now.Add(2*time.Minute)))
	assert.Equal(t, time.Minute, tok.ExpiresIn(now))
}
