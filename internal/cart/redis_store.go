package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const defaultCartTTL = 30 * 24 * time.Hour

type redisBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Update(ctx context.Context, key string, ttl time.Duration, mutate pkgredis.Mutator) error
	CartKey(clientID string) string
}

// RedisStore keeps each client's cart as a JSON document.
type RedisStore struct {
	backend redisBackend
	ttl     time.Duration
}

func NewRedisStore(backend redisBackend, ttl time.Duration) (*RedisStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("redis backend required")
	}
	if ttl <= 0 {
		ttl = defaultCartTTL
	}
	return &RedisStore{backend: backend, ttl: ttl}, nil
}

func (s *RedisStore) Current(ctx context.Context, clientID string) (Cart, error) {
	raw, err := s.backend.Get(ctx, s.backend.CartKey(clientID))
	if errors.Is(err, redis.Nil) {
		return Cart{}, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	return c, nil
}

func (s *RedisStore) Replace(ctx context.Context, clientID string, c Cart) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.backend.Set(ctx, s.backend.CartKey(clientID), string(payload), s.ttl); err != nil {
		return fmt.Errorf("store cart: %w", err)
	}
	return nil
}

// RemoveOrdered rewrites the cart under WATCH so lines added by another tab
// while the order settled are kept.
func (s *RedisStore) RemoveOrdered(ctx context.Context, clientID string, ordered []Line) error {
	err := s.backend.Update(ctx, s.backend.CartKey(clientID), s.ttl, func(current string, exists bool) (string, error) {
		var c Cart
		if exists {
			if err := json.Unmarshal([]byte(current), &c); err != nil {
				return "", fmt.Errorf("decode cart: %w", err)
			}
		}
		payload, err := json.Marshal(c.Without(ordered))
		if err != nil {
			return "", fmt.Errorf("encode cart: %w", err)
		}
		return string(payload), nil
	})
	if err != nil {
		return fmt.Errorf("remove ordered lines: %w", err)
	}
	return nil
}
