package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	applog "github.com/legit-games/oauth2-in-action/logger"
	valkey "github.com/valkey-io/valkey-go"
)

const (
	defaultLeaseTTL = 30 * time.Second
	janitorLeaseKey = "leader:token-janitor"
)

// renewScript extends the lease only while we still own it.
const renewScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`

// releaseScript deletes the lease only while we still own it.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// LeaderElection is a Valkey lease that lets a single authorization server
// replica run the expired-token purge against a shared database.
type LeaderElection struct {
	client   valkey.Client
	key      string
	identity string
	ttl      time.Duration

	mu     sync.Mutex
	leader bool
}

// NewLeaderElection creates a lease under prefix. A zero ttl uses 30s and
// shorter ttls are raised to one second. An empty identity uses the
// hostname plus a random suffix.
func NewLeaderElection(client valkey.Client, prefix, identity string, ttl time.Duration) *LeaderElection {
	switch {
	case ttl <= 0:
		ttl = defaultLeaseTTL
	case ttl < time.Second:
		// SET EX has second granularity
		ttl = time.Second
	}
	if identity == "" {
		hostname, _ := os.Hostname()
		identity = fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
	}
	return &LeaderElection{client: client, key: prefix + janitorLeaseKey, identity: identity, ttl: ttl}
}

// Identity returns this instance's lease owner value.
func (le *LeaderElection) Identity() string {
	return le.identity
}

// IsLeader reports the outcome of the last Campaign.
func (le *LeaderElection) IsLeader() bool {
	le.mu.Lock()
	defer le.mu.Unlock()
	return le.leader
}

// Campaign renews the lease when this instance holds it and tries to take
// it otherwise. It reports whether this instance leads afterwards.
func (le *LeaderElection) Campaign(ctx context.Context) (bool, error) {
	le.mu.Lock()
	defer le.mu.Unlock()

	was := le.leader
	var (
		ok  bool
		err error
	)
	if was {
		ok, err = le.renew(ctx)
	} else {
		ok, err = le.acquire(ctx)
	}
	if err != nil {
		le.leader = false
		return false, err
	}
	le.leader = ok
	if ok != was {
		applog.Infow("token janitor leadership changed", "identity", le.identity, "leader", ok)
	}
	return ok, nil
}

func (le *LeaderElection) acquire(ctx context.Context) (bool, error) {
	err := le.client.Do(ctx, le.client.B().Set().Key(le.key).Value(le.identity).Nx().Ex(le.ttl).Build()).Error()
	if valkey.IsValkeyNil(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquire lease: %w", err)
	}
	return true, nil
}

func (le *LeaderElection) renew(ctx context.Context) (bool, error) {
	n, err := le.client.Do(ctx, le.client.B().Eval().Script(renewScript).Numkeys(1).Key(le.key).
		Arg(le.identity, strconv.FormatInt(le.ttl.Milliseconds(), 10)).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("renew lease: %w", err)
	}
	return n == 1, nil
}

// Resign gives the lease up if this instance holds it.
func (le *LeaderElection) Resign(ctx context.Context) error {
	le.mu.Lock()
	defer le.mu.Unlock()
	if !le.leader {
		return nil
	}
	le.leader = false
	err := le.client.Do(ctx, le.client.B().Eval().Script(releaseScript).Numkeys(1).Key(le.key).Arg(le.identity).Build()).Error()
	if err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// RunIfLeader campaigns and runs fn only while this instance leads.
func (le *LeaderElection) RunIfLeader(ctx context.Context, fn func(context.Context) error) (bool, error) {
	ok, err := le.Campaign(ctx)
	if err != nil || !ok {
		return false, err
	}
	return true, fn(ctx)
}
