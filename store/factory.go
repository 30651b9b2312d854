package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	oauth2 "github.com/legit-games/oauth2-in-action"
	"github.com/legit-games/oauth2-in-action/models"
	valkey "github.com/valkey-io/valkey-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendValkey   = "valkey"
	BackendPostgres = "postgres"
)

// Options selects and configures the storage backend.
type Options struct {
	Backend         string
	ValkeyAddr      string
	ValkeyPrefix    string
	DSN             string
	RequestTTL      time.Duration
	CodeTTL         time.Duration
	MaxPending      int
	JanitorInterval time.Duration
}

// Stores bundles every store the authorization server needs.
type Stores struct {
	Tokens   oauth2.TokenStore
	Requests oauth2.AuthorizationRequestStore
	Codes    oauth2.AuthorizationCodeStore

	// Set for the postgres backend only.
	DBClients *DBClientStore
	DBUsers   *DBUserStore

	closers []func() error
}

// Close releases every backend connection and stops janitors.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds the stores for opts.Backend. Pending requests and codes live
// in Valkey whenever an address is configured, otherwise in memory arenas.
func Open(ctx context.Context, opts Options) (*Stores, error) {
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = DefaultAuthRequestTTL
	}
	if opts.CodeTTL <= 0 {
		opts.CodeTTL = DefaultAuthCodeTTL
	}
	s := &Stores{}

	var vk valkey.Client
	if opts.ValkeyAddr != "" {
		cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{opts.ValkeyAddr}})
		if err != nil {
			return nil, fmt.Errorf("connect valkey: %w", err)
		}
		vk = cli
		s.closers = append(s.closers, func() error { cli.Close(); return nil })
	}

	switch strings.ToLower(strings.TrimSpace(opts.Backend)) {
	case "", BackendMemory:
		ts, err := NewMemoryTokenStore()
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Tokens = ts
		s.closers = append(s.closers, ts.Close)
	case BackendValkey:
		if vk == nil {
			return nil, errors.New("valkey backend requires valkey_addr")
		}
		s.Tokens = NewValkeyTokenStoreWithClient(vk, opts.ValkeyPrefix)
	case BackendPostgres:
		if opts.DSN == "" {
			_ = s.Close()
			return nil, errors.New("postgres backend requires dsn")
		}
		db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		ts := NewDBTokenStore(db)
		s.Tokens = ts
		s.DBClients = NewDBClientStore(db)
		s.DBUsers = NewDBUserStore(db)
		if sqlDB, err := db.DB(); err == nil {
			s.closers = append(s.closers, sqlDB.Close)
		}
		if opts.JanitorInterval > 0 {
			purge := func(ctx context.Context) error {
				_, err := ts.DeleteExpired(ctx)
				return err
			}
			if vk == nil {
				s.closers = append(s.closers, startTicker(opts.JanitorInterval, func() { _ = purge(ctx) }))
				break
			}
			// replicas sharing the database elect one purger through Valkey
			le := NewLeaderElection(vk, opts.ValkeyPrefix, "", 3*opts.JanitorInterval)
			stop := startTicker(opts.JanitorInterval, func() { _, _ = le.RunIfLeader(ctx, purge) })
			s.closers = append(s.closers, func() error { return le.Resign(context.Background()) }, stop)
		}
	default:
		_ = s.Close()
		return nil, fmt.Errorf("unknown storage backend: %s", opts.Backend)
	}

	if vk != nil {
		s.Requests = NewValkeyAuthorizationRequestStore(vk, opts.ValkeyPrefix, opts.RequestTTL)
		s.Codes = NewValkeyAuthorizationCodeStore(vk, opts.ValkeyPrefix, opts.CodeTTL)
		return s, nil
	}

	reqs := NewMemoryAuthorizationRequestStore(opts.RequestTTL, opts.MaxPending)
	codes := NewMemoryAuthorizationCodeStore(opts.CodeTTL, opts.MaxPending)
	reqs.Arena().StartJanitor(opts.JanitorInterval)
	codes.Arena().StartJanitor(opts.JanitorInterval)
	s.closers = append(s.closers, reqs.Arena().Close, codes.Arena().Close)
	s.Requests = reqs
	s.Codes = codes
	return s, nil
}

// SeedRegistries copies clients and users into the database tables so the
// postgres backend serves the same registrations as the config.
func (s *Stores) SeedRegistries(ctx context.Context, clients []*models.Client, users []*models.User) error {
	if s.DBClients == nil {
		return nil
	}
	for _, c := range clients {
		if err := s.DBClients.Upsert(ctx, c); err != nil {
			return fmt.Errorf("seed client %s: %w", c.ID, err)
		}
	}
	for _, u := range users {
		if err := s.DBUsers.Upsert(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}
	return nil
}

func startTicker(interval time.Duration, fn func()) func() error {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	return func() error { close(done); return nil }
}
