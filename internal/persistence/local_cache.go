package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/bounded"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// DefaultCapacity is how many recent orders a client's cache retains.
const DefaultCapacity = 50

const defaultCacheTTL = 90 * 24 * time.Hour

// LocalCache is the guest-mode order history, newest first.
type LocalCache interface {
	Append(ctx context.Context, clientID string, order orders.Order) error
	List(ctx context.Context, clientID string) ([]orders.Order, error)
}

// merge drops any entry sharing the order's local id, pushes the order as
// newest and trims to capacity.
func merge(existing []orders.Order, order orders.Order, capacity int) []orders.Order {
	q := bounded.FromSlice(capacity, existing)
	q.Remove(func(o orders.Order) bool { return o.LocalID == order.LocalID })
	q.Push(order)
	return q.Items()
}

// MemoryCache keeps per-client queues in process.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int
	queues   map[string]*bounded.Queue[orders.Order]
}

func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryCache{capacity: capacity, queues: map[string]*bounded.Queue[orders.Order]{}}
}

func (m *MemoryCache) Append(_ context.Context, clientID string, order orders.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[clientID]
	if !ok {
		q = bounded.New[orders.Order](m.capacity)
		m.queues[clientID] = q
	}
	q.Remove(func(o orders.Order) bool { return o.LocalID == order.LocalID })
	q.Push(order)
	return nil
}

func (m *MemoryCache) List(_ context.Context, clientID string) ([]orders.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[clientID]
	if !ok {
		return []orders.Order{}, nil
	}
	return q.Items(), nil
}

type redisListStore interface {
	Get(ctx context.Context, key string) (string, error)
	Update(ctx context.Context, key string, ttl time.Duration, mutate pkgredis.Mutator) error
	GuestOrdersKey(clientID string) string
}

// RedisCache stores each client's history as one JSON array and merges
// concurrent appends with an optimistic transaction.
type RedisCache struct {
	store    redisListStore
	capacity int
	ttl      time.Duration
}

func NewRedisCache(store redisListStore, capacity int, ttl time.Duration) (*RedisCache, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{store: store, capacity: capacity, ttl: ttl}, nil
}

func (r *RedisCache) Append(ctx context.Context, clientID string, order orders.Order) error {
	return r.store.Update(ctx, r.store.GuestOrdersKey(clientID), r.ttl, func(current string, exists bool) (string, error) {
		var existing []orders.Order
		if exists && current != "" {
			if err := json.Unmarshal([]byte(current), &existing); err != nil {
				// a corrupt list is replaced rather than blocking new orders
				existing = nil
			}
		}
		payload, err := json.Marshal(merge(existing, order, r.capacity))
		if err != nil {
			return "", fmt.Errorf("encode guest orders: %w", err)
		}
		return string(payload), nil
	})
}

func (r *RedisCache) List(ctx context.Context, clientID string) ([]orders.Order, error) {
	raw, err := r.store.Get(ctx, r.store.GuestOrdersKey(clientID))
	if errors.Is(err, redis.Nil) {
		return []orders.Order{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load guest orders: %w", err)
	}
	var out []orders.Order
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode guest orders: %w", err)
	}
	return out, nil
}
