package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"authserver", "resource", "client", "migrate"}, names)
}

func TestMigrateCommand(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "oauth2.db")

	root := NewRootCmd()
	root.SetArgs([]string{"--config", dir, "migrate", "--driver", "sqlite", "--dsn", dsn})
	require.NoError(t, root.Execute())

	_, err := os.Stat(dsn)
	require.NoError(t, err)
	assert.Equal(t, "local", appConfig.Env)
}

func TestBadConfigFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("authserver: [\n"), 0o600))

	root := NewRootCmd()
	root.SetArgs([]string{"--config", dir, "migrate"})
	require.Error(t, root.Execute())
}
