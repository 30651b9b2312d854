package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/legit-games/oauth2-in-action/models"
	valkey "github.com/valkey-io/valkey-go"
)

// Default lifetimes of pending authorization requests and codes.
const (
	DefaultAuthRequestTTL = 10 * time.Minute
	DefaultAuthCodeTTL    = 10 * time.Minute
)

// ValkeyAuthorizationRequestStore stores authorization requests in Valkey
// (Redis-compatible). Take is atomic through GETDEL.
type ValkeyAuthorizationRequestStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyAuthorizationRequestStore creates a store with an existing Valkey client.
func NewValkeyAuthorizationRequestStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyAuthorizationRequestStore {
	if prefix == "" {
		prefix = DefaultValkeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultAuthRequestTTL
	}
	return &ValkeyAuthorizationRequestStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ValkeyAuthorizationRequestStore) key(requestID string) string {
	return fmt.Sprintf("%sauth_request:%s", s.prefix, requestID)
}

// Save stores an authorization request with TTL.
func (s *ValkeyAuthorizationRequestStore) Save(ctx context.Context, req *models.AuthorizationRequest) error {
	if req.RequestID == "" {
		return errors.New("request_id is required")
	}
	req.CreatedAt = time.Now().UTC()
	req.ExpiresAt = req.CreatedAt.Add(s.ttl)

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization request: %w", err)
	}
	return s.client.Do(ctx, s.client.B().Set().Key(s.key(req.RequestID)).Value(string(data)).Ex(s.ttl).Build()).Error()
}

// Take loads and deletes an authorization request.
func (s *ValkeyAuthorizationRequestStore) Take(ctx context.Context, requestID string) (*models.AuthorizationRequest, error) {
	var req models.AuthorizationRequest
	if err := getDel(ctx, s.client, s.key(requestID), &req); err != nil {
		return nil, err
	}
	if req.IsExpired() {
		return nil, ErrNotFound
	}
	return &req, nil
}

// ValkeyAuthorizationCodeStore stores authorization codes in Valkey.
type ValkeyAuthorizationCodeStore struct {
	client valkey.Client
	prefix string
	ttl    time.Duration
}

// NewValkeyAuthorizationCodeStore creates a store with an existing Valkey client.
func NewValkeyAuthorizationCodeStore(client valkey.Client, prefix string, ttl time.Duration) *ValkeyAuthorizationCodeStore {
	if prefix == "" {
		prefix = DefaultValkeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultAuthCodeTTL
	}
	return &ValkeyAuthorizationCodeStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *ValkeyAuthorizationCodeStore) key(code string) string {
	return s.prefix + "code:" + tokenHash(code)
}

// Save stores an authorization code with TTL.
func (s *ValkeyAuthorizationCodeStore) Save(ctx context.Context, code *models.AuthorizationCode) error {
	if code.Code == "" {
		return errors.New("code is required")
	}
	code.CreatedAt = time.Now().UTC()
	code.ExpiresAt = code.CreatedAt.Add(s.ttl)

	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}
	return s.client.Do(ctx, s.client.B().Set().Key(s.key(code.Code)).Value(string(data)).Ex(s.ttl).Build()).Error()
}

// Take loads and deletes an authorization code.
func (s *ValkeyAuthorizationCodeStore) Take(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	var ac models.AuthorizationCode
	if err := getDel(ctx, s.client, s.key(code), &ac); err != nil {
		return nil, err
	}
	if ac.IsExpired() {
		return nil, ErrNotFound
	}
	return &ac, nil
}

func getDel(ctx context.Context, client valkey.Client, key string, v any) error {
	res := client.Do(ctx, client.B().Getdel().Key(key).Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return ErrNotFound
		}
		return err
	}
	val, err := res.ToString()
	if err != nil || val == "" {
		return ErrNotFound
	}
	if err := json.Unmarshal([]byte(val), v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
