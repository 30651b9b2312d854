package store

import (
	"context"
	"sync"
	"time"

	"github.com/legit-games/oauth2-in-action/models"
)

// DefaultArenaCapacity bounds the number of pending entries kept in memory.
const DefaultArenaCapacity = 10000

type arenaEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// MemoryArena is a TTL-bounded map with single-use reads. Entries expire
// after ttl; when the arena is full the entry closest to expiry is evicted.
type MemoryArena[T any] struct {
	mu       sync.Mutex
	items    map[string]arenaEntry[T]
	ttl      time.Duration
	capacity int
	now      func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewMemoryArena creates an arena. A capacity <= 0 uses DefaultArenaCapacity.
func NewMemoryArena[T any](ttl time.Duration, capacity int) *MemoryArena[T] {
	if capacity <= 0 {
		capacity = DefaultArenaCapacity
	}
	return &MemoryArena[T]{
		items:    make(map[string]arenaEntry[T]),
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
}

// TTL returns the lifetime given to new entries.
func (a *MemoryArena[T]) TTL() time.Duration {
	return a.ttl
}

// Put stores value under key and returns its expiry.
func (a *MemoryArena[T]) Put(key string, value T) time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	if _, exists := a.items[key]; !exists && len(a.items) >= a.capacity {
		a.sweepLocked(now)
		if len(a.items) >= a.capacity {
			a.evictLocked()
		}
	}
	exp := now.Add(a.ttl)
	a.items[key] = arenaEntry[T]{value: value, expiresAt: exp}
	return exp
}

// Take removes key and returns its value if it was present and unexpired.
func (a *MemoryArena[T]) Take(key string) (T, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero T
	e, ok := a.items[key]
	if !ok {
		return zero, false
	}
	delete(a.items, key)
	if !a.now().Before(e.expiresAt) {
		return zero, false
	}
	return e.value, true
}

// Len reports the number of stored entries, expired or not.
func (a *MemoryArena[T]) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.items)
}

// Sweep drops expired entries and returns how many were removed.
func (a *MemoryArena[T]) Sweep() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sweepLocked(a.now())
}

func (a *MemoryArena[T]) sweepLocked(now time.Time) int {
	n := 0
	for k, e := range a.items {
		if !now.Before(e.expiresAt) {
			delete(a.items, k)
			n++
		}
	}
	return n
}

func (a *MemoryArena[T]) evictLocked() {
	var (
		victim string
		oldest time.Time
		found  bool
	)
	for k, e := range a.items {
		if !found || e.expiresAt.Before(oldest) {
			victim, oldest, found = k, e.expiresAt, true
		}
	}
	if found {
		delete(a.items, victim)
	}
}

// StartJanitor sweeps expired entries every interval until Close is called.
func (a *MemoryArena[T]) StartJanitor(interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Sweep()
			case <-a.stop:
				return
			}
		}
	}()
}

// Close stops the janitor.
func (a *MemoryArena[T]) Close() error {
	a.stopOnce.Do(func() { close(a.stop) })
	return nil
}

// MemoryAuthorizationRequestStore keeps pending authorization requests in a
// TTL arena.
type MemoryAuthorizationRequestStore struct {
	arena *MemoryArena[models.AuthorizationRequest]
}

// NewMemoryAuthorizationRequestStore creates a store whose entries live for ttl.
func NewMemoryAuthorizationRequestStore(ttl time.Duration, capacity int) *MemoryAuthorizationRequestStore {
	return &MemoryAuthorizationRequestStore{arena: NewMemoryArena[models.AuthorizationRequest](ttl, capacity)}
}

// Arena exposes the underlying arena, mainly for the janitor.
func (s *MemoryAuthorizationRequestStore) Arena() *MemoryArena[models.AuthorizationRequest] {
	return s.arena
}

// Save stores req under its RequestID.
func (s *MemoryAuthorizationRequestStore) Save(ctx context.Context, req *models.AuthorizationRequest) error {
	req.CreatedAt = s.arena.now().UTC()
	req.ExpiresAt = req.CreatedAt.Add(s.arena.TTL())
	s.arena.Put(req.RequestID, *req)
	return nil
}

// Take loads and deletes a pending request.
func (s *MemoryAuthorizationRequestStore) Take(ctx context.Context, requestID string) (*models.AuthorizationRequest, error) {
	req, ok := s.arena.Take(requestID)
	if !ok {
		return nil, ErrNotFound
	}
	return &req, nil
}

// MemoryAuthorizationCodeStore keeps issued authorization codes in a TTL arena.
type MemoryAuthorizationCodeStore struct {
	arena *MemoryArena[models.AuthorizationCode]
}

// NewMemoryAuthorizationCodeStore creates a store whose codes live for ttl.
func NewMemoryAuthorizationCodeStore(ttl time.Duration, capacity int) *MemoryAuthorizationCodeStore {
	return &MemoryAuthorizationCodeStore{arena: NewMemoryArena[models.AuthorizationCode](ttl, capacity)}
}

// Arena exposes the underlying arena, mainly for the janitor.
func (s *MemoryAuthorizationCodeStore) Arena() *MemoryArena[models.AuthorizationCode] {
	return s.arena
}

// Save stores code under its value.
func (s *MemoryAuthorizationCodeStore) Save(ctx context.Context, code *models.AuthorizationCode) error {
	code.CreatedAt = s.arena.now().UTC()
	code.ExpiresAt = code.CreatedAt.Add(s.arena.TTL())
	s.arena.Put(code.Code, *code)
	return nil
}

// Take loads and deletes an authorization code.
func (s *MemoryAuthorizationCodeStore) Take(ctx context.Context, code string) (*models.AuthorizationCode, error) {
	ac, ok := s.arena.Take(code)
	if !ok {
		return nil, ErrNotFound
	}
	return &ac, nil
}
