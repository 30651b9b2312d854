package store

import (
	"context"
	"time"

	"github.com/legit-games/oauth2-in-action/models"
	"gorm.io/gorm"
)

// DBTokenStore persists tokens in the oauth2_tokens table.
type DBTokenStore struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewDBTokenStore(db *gorm.DB) *DBTokenStore { return &DBTokenStore{DB: db, now: time.Now} }

type tokenRow struct {
	Value      string
	Kind       string
	ClientID   string
	Username   string
	Scope      string
	PairedWith string
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}

func (r *tokenRow) token() *models.Token {
	t := &models.Token{
		Value:      r.Value,
		Kind:       models.TokenKind(r.Kind),
		ClientID:   r.ClientID,
		Username:   r.Username,
		Scope:      models.ParseScope(r.Scope),
		PairedWith: r.PairedWith,
		CreatedAt:  r.CreatedAt,
	}
	if r.ExpiresAt != nil {
		t.ExpiresAt = *r.ExpiresAt
	}
	return t
}

// Create inserts a token row.
func (s *DBTokenStore) Create(ctx context.Context, token *models.Token) error {
	var exp *time.Time
	if !token.ExpiresAt.IsZero() {
		e := token.ExpiresAt
		exp = &e
	}
	return s.DB.WithContext(ctx).Exec(
		`INSERT INTO oauth2_tokens(value, kind, client_id, username, scope, paired_with, created_at, expires_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		token.Value, string(token.Kind), token.ClientID, token.Username, token.Scope.String(), token.PairedWith, token.CreatedAt, exp,
	).Error
}

func (s *DBTokenStore) get(ctx context.Context, kind models.TokenKind, value string) (*models.Token, error) {
	var row tokenRow
	if err := s.DB.WithContext(ctx).Raw(
		`SELECT value, kind, client_id, username, scope, paired_with, created_at, expires_at FROM oauth2_tokens WHERE value=? AND kind=?`,
		value, string(kind),
	).Scan(&row).Error; err != nil {
		return nil, err
	}
	if row.Value == "" {
		return nil, ErrNotFound
	}
	t := row.token()
	if t.IsExpired(s.now()) {
		_ = s.remove(ctx, kind, value)
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *DBTokenStore) remove(ctx context.Context, kind models.TokenKind, value string) error {
	return s.DB.WithContext(ctx).Exec(`DELETE FROM oauth2_tokens WHERE value=? AND kind=?`, value, string(kind)).Error
}

// GetByAccess use the access token for token information data
func (s *DBTokenStore) GetByAccess(ctx context.Context, access string) (*models.Token, error) {
	return s.get(ctx, models.KindAccess, access)
}

// GetByRefresh use the refresh token for token information data
func (s *DBTokenStore) GetByRefresh(ctx context.Context, refresh string) (*models.Token, error) {
	return s.get(ctx, models.KindRefresh, refresh)
}

// RemoveByAccess use the access token to delete the token information
func (s *DBTokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return s.remove(ctx, models.KindAccess, access)
}

// RemoveByRefresh use the refresh token to delete the token information
func (s *DBTokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	return s.remove(ctx, models.KindRefresh, refresh)
}

// RemoveAccessByRefresh deletes the access tokens paired with refresh.
func (s *DBTokenStore) RemoveAccessByRefresh(ctx context.Context, refresh string) (int, error) {
	res := s.DB.WithContext(ctx).Exec(`DELETE FROM oauth2_tokens WHERE kind=? AND paired_with=?`, string(models.KindAccess), refresh)
	return int(res.RowsAffected), res.Error
}

// RemoveByClientID deletes all access and refresh tokens of the client.
func (s *DBTokenStore) RemoveByClientID(ctx context.Context, clientID string) (int, error) {
	res := s.DB.WithContext(ctx).Exec(`DELETE FROM oauth2_tokens WHERE client_id=?`, clientID)
	return int(res.RowsAffected), res.Error
}

// DeleteExpired removes expired rows and returns how many were deleted.
func (s *DBTokenStore) DeleteExpired(ctx context.Context) (int, error) {
	res := s.DB.WithContext(ctx).Exec(`DELETE FROM oauth2_tokens WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now())
	return int(res.RowsAffected), res.Error
}
