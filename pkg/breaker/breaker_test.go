package breaker

import (
	"errors"
	"testing"
	"time"
)

type recorderStub struct {
	states map[string]float64
}

func (r *recorderStub) SetBreakerState(name string, state float64) {
	if r.states == nil {
		r.states = map[string]float64{}
	}
	r.states[name] = state
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	rec := &recorderStub{}
	b := New(Options{Name: "order-store", Timeout: time.Minute}, rec, nil)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Fatal("open breaker should not invoke fn")
	}
	if b.State() != "open" {
		t.Fatalf("expected open state, got %s", b.State())
	}
	if rec.states["order-store"] != 2 {
		t.Fatalf("expected recorder to see open state, got %v", rec.states)
	}
}

func TestBreakerStaysClosedBelowMinRequests(t *testing.T) {
	b := New(Options{Name: "mail"}, nil, nil)
	_ = b.Do(func() error { return errors.New("one") })
	_ = b.Do(func() error { return errors.New("two") })
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected closed breaker to pass call, got %v", err)
	}
}

func TestBreakerIgnoresNonFailures(t *testing.T) {
	rejected := errors.New("rejected by upstream")
	b := New(Options{
		Name:      "order-store",
		Timeout:   time.Minute,
		IsFailure: func(err error) bool { return !errors.Is(err, rejected) },
	}, nil, nil)

	for i := 0; i < 5; i++ {
		if err := b.Do(func() error { return rejected }); !errors.Is(err, rejected) {
			t.Fatalf("attempt %d: expected rejection to pass through, got %v", i, err)
		}
	}
	if b.State() != "closed" {
		t.Fatalf("expected closed state, got %s", b.State())
	}
	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("expected call to pass, got %v", err)
	}
}
