package migrate

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// migrationsFS holds embedded SQL migrations in migrate/sql.
//
//go:embed sql/*.sql
var migrationsFS embed.FS

// Options defines how to run migrations.
type Options struct {
	Driver  string      // postgres or sqlite
	DSN     string      // e.g., ./oauth2.db for sqlite, or full DSN for postgres
	Command string      // up, down, status, version, up-to, down-to, redo, reset
	Target  int64       // used with up-to/down-to
	Logger  *log.Logger // optional logger
}

// dialect maps a database/sql driver name to the goose dialect.
func dialect(driver string) (string, error) {
	switch driver {
	case "postgres", "pgx":
		return "postgres", nil
	case "sqlite", "sqlite3":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported migration driver: %s", driver)
	}
}

// Run executes migrations based on provided options. If Driver or DSN are empty, it is a no-op.
func Run(opts Options) error {
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" || strings.TrimSpace(opts.DSN) == "" {
		return nil
	}
	d, err := dialect(driver)
	if err != nil {
		return err
	}
	if driver == "sqlite3" {
		driver = "sqlite"
	}

	if opts.Logger != nil {
		goose.SetLogger(opts.Logger)
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetTableName("schema_migrations")
	if err := goose.SetDialect(d); err != nil {
		return err
	}

	db, err := sql.Open(driver, opts.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	dir := "sql"
	switch strings.ToLower(strings.TrimSpace(opts.Command)) {
	case "", "up":
		return goose.Up(db, dir)
	case "down":
		return goose.Down(db, dir)
	case "status":
		return goose.Status(db, dir)
	case "version":
		return goose.Version(db, dir)
	case "up-to":
		return goose.UpTo(db, dir, opts.Target)
	case "down-to":
		return goose.DownTo(db, dir, opts.Target)
	case "redo":
		return goose.Redo(db, dir)
	case "reset":
		return goose.Reset(db, dir)
	default:
		return fmt.Errorf("unknown migration command: %s", opts.Command)
	}
}

// OptionsFromEnv reads migration settings from the environment.
//
// Env vars:
// - OAUTH_MIGRATE_DRIVER: postgres or sqlite
// - OAUTH_MIGRATE_DSN: db connection string (e.g., ./oauth2.db for sqlite)
// - OAUTH_MIGRATE_CMD: up, down, status, version, up-to, down-to, redo, reset (default: up)
// - OAUTH_MIGRATE_TARGET: integer version for up-to/down-to
func OptionsFromEnv() Options {
	cmd := strings.TrimSpace(os.Getenv("OAUTH_MIGRATE_CMD"))
	if cmd == "" {
		cmd = "up"
	}

	var target int64
	if v := strings.TrimSpace(os.Getenv("OAUTH_MIGRATE_TARGET")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			target = n
		}
	}

	return Options{
		Driver:  strings.TrimSpace(os.Getenv("OAUTH_MIGRATE_DRIVER")),
		DSN:     strings.TrimSpace(os.Getenv("OAUTH_MIGRATE_DSN")),
		Command: cmd,
		Target:  target,
		Logger:  log.New(os.Stdout, "[migrate] ", log.LstdFlags),
	}
}

// RunFromEnv runs migrations configured by OptionsFromEnv if
// OAUTH_MIGRATE_ON_START is truthy (1/true/yes/y).
func RunFromEnv() error {
	if !IsTruthy(os.Getenv("OAUTH_MIGRATE_ON_START")) {
		return nil
	}
	return Run(OptionsFromEnv())
}

// IsTruthy reports whether v spells an affirmative flag.
func IsTruthy(v string) bool {
	s := strings.TrimSpace(strings.ToLower(v))
	return s == "1" || s == "true" || s == "yes" || s == "y"
}
