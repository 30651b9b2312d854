package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/legit-games/oauth2-in-action/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	valkey "github.com/valkey-io/valkey-go"
)

func newTestValkey(t *testing.T) (valkey.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	if err != nil {
		t.Skipf("valkey client unavailable: %v", err)
	}
	if err := cli.Do(context.Background(), cli.B().Ping().Build()).Error(); err != nil {
		cli.Close()
		t.Skipf("valkey ping failed: %v", err)
	}
	t.Cleanup(cli.Close)
	return cli, mr
}

func TestValkeyTokenStore_CreateGetRemove(t *testing.T) {
	cli, _ := newTestValkey(t)
	ts := NewValkeyTokenStoreWithClient(cli, "test:")
	ctx := context.Background()

	tok := &models.Token{
		Value:     "access-1",
		Kind:      models.KindAccess,
		ClientID:  "client-1",
		Username:  "alice",
		Scope:     models.Scope{"read", "write"},
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, ts.Create(ctx, tok))

	got, err := ts.GetByAccess(ctx, "access-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "read write", got.Scope.String())

	_, err = ts.GetByRefresh(ctx, "access-1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, ts.RemoveByAccess(ctx, "access-1"))
	_, err = ts.GetByAccess(ctx, "access-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValkeyTokenStore_Expiry(t *testing.T) {
	cli, mr := newTestValkey(t)
	ts := NewValkeyTokenStoreWithClient(cli, "")
	ctx := context.Background()

	require.NoError(t, ts.Create(ctx, &models.Token{
		Value: "short", Kind: models.KindAccess, ClientID: "c", ExpiresAt: time.Now().Add(5 * time.Second),
	}))
	_, err := ts.GetByAccess(ctx, "short")
	require.NoError(t, err)

	mr.FastForward(10 * time.Second)
	_, err = ts.GetByAccess(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValkeyTokenStore_RemoveAccessByRefresh(t *testing.T) {
	cli, _ := newTestValkey(t)
	ts := NewValkeyTokenStoreWithClient(cli, "")
	ctx := context.Background()

	require.NoError(t, ts.Create(ctx, &models.Token{Value: "r1", Kind: models.KindRefresh, ClientID: "c", PairedWith: "a1"}))
	require.NoError(t, ts.Create(ctx, &models.Token{Value: "a1", Kind: models.KindAccess, ClientID: "c", PairedWith: "r1"}))
	require.NoError(t, ts.Create(ctx, &models.Token{Value: "a2", Kind: models.KindAccess, ClientID: "c", PairedWith: "r1"}))
	require.NoError(t, ts.Create(ctx, &models.Token{Value: "b1", Kind: models.KindAccess, ClientID: "c", PairedWith: "r2"}))

	n, err := ts.RemoveAccessByRefresh(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = ts.GetByAccess(ctx, "a2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ts.GetByAccess(ctx, "b1")
	assert.NoError(t, err)
	_, err = ts.GetByRefresh(ctx, "r1")
	assert.NoError(t, err)

	n, err = ts.RemoveAccessByRefresh(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestValkeyTokenStore_RemoveByClientID(t *testing.T) {
	cli, _ := newTestValkey(t)
	ts := NewValkeyTokenStoreWithClient(cli, "")
	ctx := context.Background()

	require.NoError(t, ts.Create(ctx, &models.Token{Value: "a", Kind: models.KindAccess, ClientID: "alpha"}))
	require.NoError(t, ts.Create(ctx, &models.Token{Value: "r", Kind: models.KindRefresh, ClientID: "alpha"}))
	require.NoError(t, ts.Create(ctx, &models.Token{Value: "b", Kind: models.KindAccess, ClientID: "beta"}))

	n, err := ts.RemoveByClientID(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = ts.GetByRefresh(ctx, "r")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = ts.GetByAccess(ctx, "b")
	assert.NoError(t, err)
}

func TestValkeyAuthorizationStores_TakeOnce(t *testing.T) {
	cli, mr := newTestValkey(t)
	ctx := context.Background()

	reqs := NewValkeyAuthorizationRequestStore(cli, "", time.Minute)
	require.NoError(t, reqs.Save(ctx, &models.AuthorizationRequest{RequestID: "req", ClientID: "c", State: "s"}))
	got, err := reqs.Take(ctx, "req")
	require.NoError(t, err)
	assert.Equal(t, "s", got.State)
	_, err = reqs.Take(ctx, "req")
	assert.ErrorIs(t, err, ErrNotFound)

	codes := NewValkeyAuthorizationCodeStore(cli, "", time.Minute)
	require.NoError(t, codes.Save(ctx, &models.AuthorizationCode{Code: "code", Request: *got}))
	assert.False(t, mr.Exists("oauth2:code:code"))
	ac, err := codes.Take(ctx, "code")
	require.NoError(t, err)
	assert.Equal(t, "c", ac.Request.ClientID)
	_, err = codes.Take(ctx, "code")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, codes.Save(ctx, &models.AuthorizationCode{Code: "late"}))
	mr.FastForward(2 * time.Minute)
	_, err = codes.Take(ctx, "late")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, reqs.Save(ctx, &models.AuthorizationRequest{}))
}
