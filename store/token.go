package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/legit-games/oauth2-in-action/models"
	"github.com/tidwall/buntdb"
)

// ErrNotFound is returned by every store when the requested record does not
// exist or has expired.
var ErrNotFound = errors.New("not found")

// NewMemoryTokenStore create a token store instance based on memory
func NewMemoryTokenStore() (*MemoryTokenStore, error) {
	return NewFileTokenStore(":memory:")
}

// NewFileTokenStore create a token store instance based on file
func NewFileTokenStore(filename string) (*MemoryTokenStore, error) {
	db, err := buntdb.Open(filename)
	if err != nil {
		return nil, err
	}
	if err := db.CreateIndex("client", "*", buntdb.IndexJSON("client_id")); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create client index: %w", err)
	}
	if err := db.CreateIndex("paired", "access:*", buntdb.IndexJSON("paired_with")); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create paired index: %w", err)
	}
	return &MemoryTokenStore{db: db, now: time.Now}, nil
}

// MemoryTokenStore token storage based on buntdb(https://github.com/tidwall/buntdb)
type MemoryTokenStore struct {
	db  *buntdb.DB
	now func() time.Time
}

// Close releases the underlying database.
func (ts *MemoryTokenStore) Close() error {
	return ts.db.Close()
}

func tokenKey(kind models.TokenKind, value string) string {
	return string(kind) + ":" + value
}

// Create create and store the new token information
func (ts *MemoryTokenStore) Create(ctx context.Context, token *models.Token) error {
	jv, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return ts.db.Update(func(tx *buntdb.Tx) error {
		var opts *buntdb.SetOptions
		if !token.ExpiresAt.IsZero() {
			ttl := token.ExpiresAt.Sub(ts.now())
			if ttl <= 0 {
				return nil
			}
			opts = &buntdb.SetOptions{Expires: true, TTL: ttl}
		}
		_, _, err := tx.Set(tokenKey(token.Kind, token.Value), string(jv), opts)
		return err
	})
}

func (ts *MemoryTokenStore) getData(key string) (*models.Token, error) {
	var tm models.Token
	err := ts.db.View(func(tx *buntdb.Tx) error {
		jv, err := tx.Get(key)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(jv), &tm)
	})
	if err != nil {
		if err == buntdb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &tm, nil
}

func (ts *MemoryTokenStore) remove(key string) error {
	err := ts.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}

// GetByAccess use the access token for token information data
func (ts *MemoryTokenStore) GetByAccess(ctx context.Context, access string) (*models.Token, error) {
	return ts.getData(tokenKey(models.KindAccess, access))
}

// GetByRefresh use the refresh token for token information data
func (ts *MemoryTokenStore) GetByRefresh(ctx context.Context, refresh string) (*models.Token, error) {
	return ts.getData(tokenKey(models.KindRefresh, refresh))
}

// RemoveByAccess use the access token to delete the token information
func (ts *MemoryTokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return ts.remove(tokenKey(models.KindAccess, access))
}

// RemoveByRefresh use the refresh token to delete the token information
func (ts *MemoryTokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	return ts.remove(tokenKey(models.KindRefresh, refresh))
}

// RemoveAccessByRefresh deletes the access tokens paired with refresh.
func (ts *MemoryTokenStore) RemoveAccessByRefresh(ctx context.Context, refresh string) (int, error) {
	return ts.removeMatching("paired", map[string]string{"paired_with": refresh}, func(t *models.Token) bool {
		return t.Kind == models.KindAccess && t.PairedWith == refresh
	})
}

// RemoveByClientID deletes all access and refresh tokens of the client.
func (ts *MemoryTokenStore) RemoveByClientID(ctx context.Context, clientID string) (int, error) {
	return ts.removeMatching("client", map[string]string{"client_id": clientID}, func(t *models.Token) bool {
		return t.ClientID == clientID
	})
}

// removeMatching walks the index entries equal to pivot and deletes those
// accepted by match. JSON indexes compare case-insensitively, so match makes
// the final exact decision.
func (ts *MemoryTokenStore) removeMatching(index string, pivot map[string]string, match func(*models.Token) bool) (int, error) {
	pv, err := json.Marshal(pivot)
	if err != nil {
		return 0, err
	}
	var n int
	err = ts.db.Update(func(tx *buntdb.Tx) error {
		var keys []string
		err := tx.AscendEqual(index, string(pv), func(key, value string) bool {
			var tm models.Token
			if json.Unmarshal([]byte(value), &tm) == nil && match(&tm) {
				keys = append(keys, key)
			}
			return true
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}
