package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestSetNXLock(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, client.SubmitLockKey("sess-1"), "1", time.Second)
	if err != nil || !ok {
		t.Fatalf("expected first lock to succeed, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, client.SubmitLockKey("sess-1"), "1", time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("second lock should fail while held")
	}

	if err := client.Del(ctx, client.SubmitLockKey("sess-1")); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, client.SubmitLockKey("sess-1")); !errors.Is(err, redis.Nil) {
		t.Fatalf("expected redis.Nil after release, got %v", err)
	}
}

func TestUpdateRetriesOnTxFailure(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	mock.watchErrs = []error{redis.TxFailedErr, redis.TxFailedErr, nil}
	client := &Client{store: mock}

	if err := client.Update(ctx, "k", time.Minute, func(string, bool) (string, error) { return "v", nil }); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if mock.watchCalls != 3 {
		t.Fatalf("expected 3 watch attempts, got %d", mock.watchCalls)
	}
}

func TestUpdateGivesUpAfterContention(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	for i := 0; i < maxTxAttempts; i++ {
		mock.watchErrs = append(mock.watchErrs, redis.TxFailedErr)
	}
	client := &Client{store: mock}

	err := client.Update(ctx, "k", time.Minute, func(string, bool) (string, error) { return "v", nil })
	if !errors.Is(err, ErrContention) {
		t.Fatalf("expected ErrContention, got %v", err)
	}
}

func TestUpdatePropagatesOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	mock := newMockCmdable()
	mock.watchErrs = []error{boom}
	client := &Client{store: mock}

	err := client.Update(context.Background(), "k", 0, func(string, bool) (string, error) { return "", nil })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if mock.watchCalls != 1 {
		t.Fatalf("non-contention errors should not retry")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"):  "sf:idempotency:scope:id",
		client.CartKey("client-1"):            "sf:cart:client-1",
		client.CheckoutSessionKey("s1"):       "sf:checkout:session:s1",
		client.SubmitLockKey("s1"):            "sf:checkout:submit_lock:s1",
		client.GuestOrdersKey(" client-1 "):   "sf:guest_orders:client-1",
		client.EmailStatusKey("ORD_1_ABCDEF"): "sf:email_status:ORD_1_ABCDEF",
		client.IdempotencyKey("scope", ""):    "sf:idempotency:scope",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected key %s got %s", want, got)
		}
	}
}

type mockCmdable struct {
	data       map[string]string
	watchErrs  []error
	watchCalls int
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

// Watch replays the scripted outcomes without running the transaction body.
func (m *mockCmdable) Watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	m.watchCalls++
	if len(m.watchErrs) == 0 {
		return nil
	}
	err := m.watchErrs[0]
	m.watchErrs = m.watchErrs[1:]
	return err
}
