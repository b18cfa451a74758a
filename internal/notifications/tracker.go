package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// DefaultStatusTTL is how long a confirmation outcome stays readable.
const DefaultStatusTTL = 7 * 24 * time.Hour

// Tracker records the confirmation email status per order id.
type Tracker interface {
	Set(ctx context.Context, orderID string, status enums.EmailStatus) error
	// Get reports ok=false when nothing has been recorded.
	Get(ctx context.Context, orderID string) (status enums.EmailStatus, ok bool, err error)
}

type MemoryTracker struct {
	mu       sync.RWMutex
	statuses map[string]enums.EmailStatus
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{statuses: map[string]enums.EmailStatus{}}
}

func (m *MemoryTracker) Set(_ context.Context, orderID string, status enums.EmailStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[orderID] = status
	return nil
}

func (m *MemoryTracker) Get(_ context.Context, orderID string) (enums.EmailStatus, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statuses[orderID]
	return s, ok, nil
}

type statusStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	EmailStatusKey(orderID string) string
}

type RedisTracker struct {
	store statusStore
	ttl   time.Duration
}

func NewRedisTracker(store statusStore, ttl time.Duration) (*RedisTracker, error) {
	if store == nil {
		return nil, fmt.Errorf("redis store required")
	}
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	return &RedisTracker{store: store, ttl: ttl}, nil
}

func (r *RedisTracker) Set(ctx context.Context, orderID string, status enums.EmailStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid email status %q", status)
	}
	return r.store.Set(ctx, r.store.EmailStatusKey(orderID), status.String(), r.ttl)
}

func (r *RedisTracker) Get(ctx context.Context, orderID string) (enums.EmailStatus, bool, error) {
	raw, err := r.store.Get(ctx, r.store.EmailStatusKey(orderID))
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load email status: %w", err)
	}
	status, err := enums.ParseEmailStatus(raw)
	if err != nil {
		return "", false, err
	}
	return status, true, nil
}

type confirmationSender interface {
	SendConfirmation(ctx context.Context, order orders.Order) enums.EmailStatus
}

// Confirmations pairs the dispatcher with the tracker: pending is written
// before each attempt and the outcome after it.
type Confirmations struct {
	sender  confirmationSender
	tracker Tracker
	logg    *logger.Logger
}

func NewConfirmations(sender confirmationSender, tracker Tracker, logg *logger.Logger) (*Confirmations, error) {
	if sender == nil {
		return nil, fmt.Errorf("confirmation sender required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("tracker required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Confirmations{sender: sender, tracker: tracker, logg: logg}, nil
}

// MarkPending records that a send is about to start.
func (c *Confirmations) MarkPending(ctx context.Context, orderID string) {
	if err := c.tracker.Set(ctx, orderID, enums.EmailStatusPending); err != nil {
		c.logg.WarnErr(c.logg.WithOrderID(ctx, orderID), "confirmation.status_write_failed", err)
	}
}

// Send dispatches the confirmation and records the outcome.
func (c *Confirmations) Send(ctx context.Context, order orders.Order) enums.EmailStatus {
	status := c.sender.SendConfirmation(ctx, order)
	if err := c.tracker.Set(ctx, order.ID(), status); err != nil {
		c.logg.WarnErr(c.logg.WithOrderID(ctx, order.ID()), "confirmation.status_write_failed", err)
	}
	return status
}

// Resend is the user-triggered retry from the confirmation view.
func (c *Confirmations) Resend(ctx context.Context, order orders.Order) enums.EmailStatus {
	c.MarkPending(ctx, order.ID())
	return c.Send(ctx, order)
}

// Status returns the recorded outcome, or pending when none exists yet.
func (c *Confirmations) Status(ctx context.Context, orderID string) (enums.EmailStatus, error) {
	status, ok, err := c.tracker.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !ok {
		return enums.EmailStatusPending, nil
	}
	return status, nil
}
