package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_SQLiteUpAndDown(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "oauth2.db")

	require.NoError(t, Run(Options{Driver: "sqlite", DSN: dsn, Command: "up"}))

	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`INSERT INTO oauth2_tokens(value, kind, client_id, scope) VALUES('v','access','c','read')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO oauth2_tokens(value, kind, client_id, scope) VALUES('v','refresh','c','read')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO oauth2_tokens(value, kind, client_id, scope) VALUES('v','access','c','read')`)
	assert.Error(t, err)

	// idempotent
	require.NoError(t, Run(Options{Driver: "sqlite", DSN: dsn, Command: "up"}))

	require.NoError(t, Run(Options{Driver: "sqlite", DSN: dsn, Command: "down"}))
	_, err = db.Exec(`SELECT 1 FROM oauth2_tokens`)
	assert.Error(t, err)
}

func TestRun_NoopAndErrors(t *testing.T) {
	assert.NoError(t, Run(Options{}))
	assert.Error(t, Run(Options{Driver: "mysql", DSN: "x"}))
	assert.Error(t, Run(Options{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db"), Command: "sideways"}))
}

func TestRunFromEnv_Disabled(t *testing.T) {
	t.Setenv("OAUTH_MIGRATE_ON_START", "false")
	t.Setenv("OAUTH_MIGRATE_DRIVER", "mysql")
	assert.NoError(t, RunFromEnv())
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("OAUTH_MIGRATE_DRIVER", "sqlite")
	t.Setenv("OAUTH_MIGRATE_DSN", "file.db")
	t.Setenv("OAUTH_MIGRATE_CMD", "")
	t.Setenv("OAUTH_MIGRATE_TARGET", "3")

	opts := OptionsFromEnv()
	assert.Equal(t, "sqlite", opts.Driver)
	assert.Equal(t, "up", opts.Command)
	assert.Equal(t, int64(3), opts.Target)
	assert.True(t, IsTruthy(" Yes "))
	assert.False(t, IsTruthy("nope"))
}
