package store

import (
	"context"
	"sync"

	"github.com/legit-games/oauth2-in-action/models"
	"gorm.io/gorm"
)

// MemoryUserStore keeps resource owners in memory.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

// NewMemoryUserStore creates a store seeded with users.
func NewMemoryUserStore(users ...*models.User) *MemoryUserStore {
	s := &MemoryUserStore{users: make(map[string]*models.User, len(users))}
	for _, u := range users {
		s.users[u.Username] = u
	}
	return s
}

// GetByUsername looks up a user by exact username.
func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[username]; ok {
		return u, nil
	}
	return nil, ErrNotFound
}

// Set adds or replaces a user.
func (s *MemoryUserStore) Set(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

// DBUserStore provides operations for users.
type DBUserStore struct {
	DB *gorm.DB
}

func NewDBUserStore(db *gorm.DB) *DBUserStore { return &DBUserStore{DB: db} }

// Upsert creates or updates a user.
func (s *DBUserStore) Upsert(ctx context.Context, u *models.User) error {
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO oauth2_users(username, password, scope) VALUES(?,?,?)
		 ON CONFLICT(username) DO UPDATE SET password=excluded.password, scope=excluded.scope, updated_at=CURRENT_TIMESTAMP`,
		u.Username, u.Password, u.Scope.String(),
	).Error
}

// GetByUsername looks up a user by exact username.
func (s *DBUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var row struct {
		Username string
		Password string
		Scope    string
	}
	if err := s.DB.WithContext(ctx).Raw(`SELECT username, password, scope FROM oauth2_users WHERE username=?`, username).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.Username == "" {
		return nil, ErrNotFound
	}
	return &models.User{Username: row.Username, Password: row.Password, Scope: models.ParseScope(row.Scope)}, nil
}
