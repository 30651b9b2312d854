package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(t.TempDir(), "local")
	require.NoError(t, err)

	assert.Equal(t, ":9001", c.AuthServer.Addr)
	assert.Equal(t, ":9002", c.Resource.Addr)
	assert.Equal(t, ":9000", c.Client.Addr)
	assert.Equal(t, time.Hour, c.AuthServer.AccessTokenExp)
	assert.Equal(t, "memory", c.AuthServer.Storage.Backend)
	require.Len(t, c.AuthServer.Clients, 1)
	assert.Equal(t, "oauth-client", c.AuthServer.Clients[0].ID)
	assert.Len(t, c.AuthServer.Users, 4)

	users := c.AuthServer.UserModels()
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "read write delete", users[0].Scope.String())
	assert.Empty(t, users[3].Scope)
}

func TestLoadConfigFilesAndEnv(t *testing.T) {
	dir := t.TempDir()
	base := `
log:
  level: debug
authserver:
  issuer: https://as.example/
  access_token_exp: 5m
  clients:
    - id: web
      secret: s3cret
      redirect_uris: ["https://app.example/cb"]
      scope: read
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(base), 0o600))
	staging := `
authserver:
  refresh_rotation:
    generate_new: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.staging.yaml"), []byte(staging), 0o600))

	t.Setenv("OAUTH_AUTHSERVER__ACCESS_TOKEN_EXP", "90s")
	t.Setenv("OAUTH_RESOURCE__REALM", "api.example")

	c, err := LoadConfig(dir, "staging")
	require.NoError(t, err)

	assert.Equal(t, "staging", c.Env)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, "https://as.example/", c.AuthServer.Issuer)
	assert.Equal(t, 90*time.Second, c.AuthServer.AccessTokenExp)
	assert.True(t, c.AuthServer.RefreshRotation.GenerateNew)
	assert.Equal(t, "api.example", c.Resource.Realm)

	clients := c.AuthServer.ClientModels()
	require.Len(t, clients, 1)
	assert.Equal(t, "web", clients[0].ID)
	assert.True(t, clients[0].HasRedirectURI("https://app.example/cb"))

	mc := c.AuthServer.ManagerConfig()
	assert.Equal(t, "https://as.example/", mc.Issuer)
	assert.True(t, mc.Refreshing.GenerateNew)
}
