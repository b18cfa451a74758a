package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultSessionTTL    = time.Hour
	DefaultSubmitLockTTL = 30 * time.Second
)

var (
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSubmitInProgress = errors.New("payment submission already in progress")
)

// SessionStore persists wizard sessions and guards payment submission.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, error)
	// AcquireSubmitLock fails with ErrSubmitInProgress while another submit holds it.
	AcquireSubmitLock(ctx context.Context, id string) (release func(), err error)
}

type sessionBackend interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CheckoutSessionKey(id string) string
	SubmitLockKey(id string) string
}

type RedisSessionStore struct {
	backend sessionBackend
	ttl     time.Duration
	lockTTL time.Duration
}

func NewRedisSessionStore(backend sessionBackend, ttl, lockTTL time.Duration) (*RedisSessionStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("redis backend required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if lockTTL <= 0 {
		lockTTL = DefaultSubmitLockTTL
	}
	return &RedisSessionStore{backend: backend, ttl: ttl, lockTTL: lockTTL}, nil
}

func (r *RedisSessionStore) Save(ctx context.Context, s Session) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return r.backend.Set(ctx, r.backend.CheckoutSessionKey(s.ID), string(payload), r.ttl)
}

func (r *RedisSessionStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.backend.Get(ctx, r.backend.CheckoutSessionKey(id))
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

func (r *RedisSessionStore) AcquireSubmitLock(ctx context.Context, id string) (func(), error) {
	key := r.backend.SubmitLockKey(id)
	ok, err := r.backend.SetNX(ctx, key, "1", r.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !ok {
		return nil, ErrSubmitInProgress
	}
	return func() {
		_ = r.backend.Del(context.WithoutCancel(ctx), key)
	}, nil
}

type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	locks    map[string]struct{}
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]Session{}, locks: map[string]struct{}{}}
}

func (m *MemorySessionStore) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return s, nil
}

func (m *MemorySessionStore) AcquireSubmitLock(_ context.Context, id string) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[id]; held {
		return nil, ErrSubmitInProgress
	}
	m.locks[id] = struct{}{}
	return func() {
		m.mu.Lock()
		delete(m.locks, id)
		m.mu.Unlock()
	}, nil
}
