package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/legit-games/oauth2-in-action/models"
	valkey "github.com/valkey-io/valkey-go"
)

// DefaultValkeyPrefix namespaces every key written by the Valkey stores.
const DefaultValkeyPrefix = "oauth2:"

// ValkeyTokenStore stores tokens in Valkey (Redis-compatible).
//
// Layout:
//
//	<prefix>access:<sha256>    token JSON
//	<prefix>refresh:<sha256>   token JSON
//	<prefix>client:<id>        set of "access:<sha256>" / "refresh:<sha256>"
//	<prefix>paired:<sha256>    set of access hashes issued from a refresh token
type ValkeyTokenStore struct {
	client valkey.Client
	prefix string
	now    func() time.Time
}

// NewValkeyTokenStore creates a Valkey-backed token store.
// addr example: "127.0.0.1:6379"; prefix helps namespace keys.
func NewValkeyTokenStore(addr string, prefix string) (*ValkeyTokenStore, error) {
	cli, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, err
	}
	return NewValkeyTokenStoreWithClient(cli, prefix), nil
}

// NewValkeyTokenStoreWithClient creates a store with an existing Valkey client.
func NewValkeyTokenStoreWithClient(client valkey.Client, prefix string) *ValkeyTokenStore {
	if prefix == "" {
		prefix = DefaultValkeyPrefix
	}
	return &ValkeyTokenStore{client: client, prefix: prefix, now: time.Now}
}

func (ts *ValkeyTokenStore) key(k string) string { return ts.prefix + k }

// tokenHash returns a stable hex sha256 for a token string.
func tokenHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func member(kind models.TokenKind, value string) string {
	return string(kind) + ":" + tokenHash(value)
}

// expiry rounds ttl up to the one second granularity of EX.
func expiry(ttl time.Duration) time.Duration {
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

// Create stores the token and indexes it by client and, for access tokens,
// by the refresh token it is paired with.
func (ts *ValkeyTokenStore) Create(ctx context.Context, token *models.Token) error {
	jv, err := json.Marshal(token)
	if err != nil {
		return err
	}
	m := member(token.Kind, token.Value)

	set := ts.client.B().Set().Key(ts.key(m)).Value(string(jv))
	var cmd valkey.Completed
	if !token.ExpiresAt.IsZero() {
		ttl := token.ExpiresAt.Sub(ts.now())
		if ttl <= 0 {
			return nil
		}
		cmd = set.Ex(expiry(ttl)).Build()
	} else {
		cmd = set.Build()
	}

	cmds := valkey.Commands{
		cmd,
		ts.client.B().Sadd().Key(ts.key("client:" + token.ClientID)).Member(m).Build(),
	}
	if token.Kind == models.KindAccess && token.PairedWith != "" {
		cmds = append(cmds, ts.client.B().Sadd().Key(ts.key("paired:"+tokenHash(token.PairedWith))).Member(tokenHash(token.Value)).Build())
	}
	for _, res := range ts.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("valkey create token: %w", err)
		}
	}
	return nil
}

func (ts *ValkeyTokenStore) get(ctx context.Context, kind models.TokenKind, value string) (*models.Token, error) {
	if value == "" {
		return nil, ErrNotFound
	}
	res := ts.client.Do(ctx, ts.client.B().Get().Key(ts.key(member(kind, value))).Build())
	if err := res.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	val, err := res.ToString()
	if err != nil || val == "" {
		return nil, ErrNotFound
	}
	var tm models.Token
	if err := json.Unmarshal([]byte(val), &tm); err != nil {
		return nil, err
	}
	return &tm, nil
}

// remove deletes key; missing is not an error
func (ts *ValkeyTokenStore) remove(ctx context.Context, key string) error {
	return ts.client.Do(ctx, ts.client.B().Del().Key(ts.key(key)).Build()).Error()
}

// GetByAccess use the access token for token information data
func (ts *ValkeyTokenStore) GetByAccess(ctx context.Context, access string) (*models.Token, error) {
	return ts.get(ctx, models.KindAccess, access)
}

// GetByRefresh use the refresh token for token information data
func (ts *ValkeyTokenStore) GetByRefresh(ctx context.Context, refresh string) (*models.Token, error) {
	return ts.get(ctx, models.KindRefresh, refresh)
}

// RemoveByAccess use the access token to delete the token information
func (ts *ValkeyTokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return ts.remove(ctx, member(models.KindAccess, access))
}

// RemoveByRefresh use the refresh token to delete the token information
func (ts *ValkeyTokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	if err := ts.remove(ctx, member(models.KindRefresh, refresh)); err != nil {
		return err
	}
	return ts.remove(ctx, "paired:"+tokenHash(refresh))
}

// RemoveAccessByRefresh deletes the access tokens paired with refresh.
func (ts *ValkeyTokenStore) RemoveAccessByRefresh(ctx context.Context, refresh string) (int, error) {
	pairedKey := ts.key("paired:" + tokenHash(refresh))
	hashes, err := ts.client.Do(ctx, ts.client.B().Smembers().Key(pairedKey).Build()).AsStrSlice()
	if err != nil {
		return 0, fmt.Errorf("valkey paired members: %w", err)
	}
	if len(hashes) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(hashes))
	for _, h := range hashes {
		keys = append(keys, ts.key("access:"+h))
	}
	n, err := ts.client.Do(ctx, ts.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey delete paired: %w", err)
	}
	if err := ts.client.Do(ctx, ts.client.B().Srem().Key(pairedKey).Member(hashes...).Build()).Error(); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// RemoveByClientID deletes all access and refresh tokens of the client.
func (ts *ValkeyTokenStore) RemoveByClientID(ctx context.Context, clientID string) (int, error) {
	clientKey := ts.key("client:" + clientID)
	members, err := ts.client.Do(ctx, ts.client.B().Smembers().Key(clientKey).Build()).AsStrSlice()
	if err != nil {
		return 0, fmt.Errorf("valkey client members: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(members))
	for _, m := range members {
		keys = append(keys, ts.key(m))
	}
	n, err := ts.client.Do(ctx, ts.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("valkey delete client tokens: %w", err)
	}
	// members added after SMEMBERS stay in the set
	if err := ts.client.Do(ctx, ts.client.B().Srem().Key(clientKey).Member(members...).Build()).Error(); err != nil {
		return int(n), err
	}
	return int(n), nil
}

// Close closes the underlying client.
func (ts *ValkeyTokenStore) Close() error {
	ts.client.Close()
	return nil
}
