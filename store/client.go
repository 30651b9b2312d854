package store

import (
	"context"
	"strings"
	"sync"

	"github.com/legit-games/oauth2-in-action/models"
	"gorm.io/gorm"
)

// NewClientStore create client store (memory)
func NewClientStore() *ClientStore {
	return &ClientStore{
		data: make(map[string]*models.Client),
	}
}

// ClientStore client information store (in-memory)
type ClientStore struct {
	sync.RWMutex
	data map[string]*models.Client
}

// GetByID according to the ID for the client information
func (cs *ClientStore) GetByID(ctx context.Context, id string) (*models.Client, error) {
	cs.RLock()
	defer cs.RUnlock()

	if c, ok := cs.data[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

// Set set client information
func (cs *ClientStore) Set(id string, cli *models.Client) (err error) {
	cs.Lock()
	defer cs.Unlock()

	cs.data[id] = cli
	return
}

// NewResourceStore create protected resource store (memory)
func NewResourceStore() *ResourceStore {
	return &ResourceStore{
		data: make(map[string]*models.ProtectedResource),
	}
}

// ResourceStore protected resource information store (in-memory)
type ResourceStore struct {
	sync.RWMutex
	data map[string]*models.ProtectedResource
}

// GetByID according to the ID for the protected resource
func (rs *ResourceStore) GetByID(ctx context.Context, id string) (*models.ProtectedResource, error) {
	rs.RLock()
	defer rs.RUnlock()

	if r, ok := rs.data[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}

// Set set protected resource information
func (rs *ResourceStore) Set(id string, res *models.ProtectedResource) (err error) {
	rs.Lock()
	defer rs.Unlock()

	rs.data[id] = res
	return
}

// --- Persistent client store ---

type DBClientStore struct{ DB *gorm.DB }

func NewDBClientStore(db *gorm.DB) *DBClientStore { return &DBClientStore{DB: db} }

// Upsert creates or updates a client.
func (s *DBClientStore) Upsert(ctx context.Context, c *models.Client) error {
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO oauth2_clients(id, secret, redirect_uris, scope)
		 VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET secret=excluded.secret, redirect_uris=excluded.redirect_uris, scope=excluded.scope, updated_at=CURRENT_TIMESTAMP`,
		c.ID, c.Secret, strings.Join(c.RedirectURIs, " "), c.Scope.String(),
	).Error
}

// GetByID reads a client by id.
func (s *DBClientStore) GetByID(ctx context.Context, id string) (*models.Client, error) {
	var row struct {
		ID           string
		Secret       string
		RedirectURIs string `gorm:"column:redirect_uris"`
		Scope        string
	}
	if err := s.DB.WithContext(ctx).Raw(`SELECT id, secret, redirect_uris, scope FROM oauth2_clients WHERE id=?`, id).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == "" {
		return nil, ErrNotFound
	}
	return &models.Client{
		ID:           row.ID,
		Secret:       row.Secret,
		RedirectURIs: strings.Fields(row.RedirectURIs),
		Scope:        models.ParseScope(row.Scope),
	}, nil
}

// Delete removes a client by id.
func (s *DBClientStore) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Exec(`DELETE FROM oauth2_clients WHERE id=?`, id).Error
}
