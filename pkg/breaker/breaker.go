package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// StateRecorder receives breaker state changes. *metrics.CheckoutMetrics satisfies it.
type StateRecorder interface {
	SetBreakerState(name string, state float64)
}

// Options tunes a Breaker. Zero values fall back to the defaults below.
type Options struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	FailRatio   float64
	// IsFailure decides whether an error returned by fn counts against the
	// breaker. Errors it rejects are still returned to the caller. Nil counts
	// every error.
	IsFailure   func(error) bool
}

// Breaker wraps gobreaker with structured logging and a state gauge.
type Breaker struct {
	cb        *gobreaker.CircuitBreaker
	name      string
	isFailure func(error) bool
}

// New builds a Breaker. rec and logg may be nil.
func New(opts Options, rec StateRecorder, logg *logger.Logger) *Breaker {
	if opts.MaxRequests == 0 {
		opts.MaxRequests = 3
	}
	if opts.Interval == 0 {
		opts.Interval = 15 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MinRequests == 0 {
		opts.MinRequests = 3
	}
	if opts.FailRatio == 0 {
		opts.FailRatio = 0.6
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.MaxRequests,
		Interval:    opts.Interval,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= opts.FailRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if rec != nil {
				rec.SetBreakerState(name, stateValue(to))
			}
			if logg != nil {
				ctx := logg.WithFields(context.Background(), map[string]any{
					"circuit": name,
					"from":    from.String(),
					"to":      to.String(),
				})
				logg.Warn(ctx, "circuit breaker state changed")
			}
		},
	})
	if rec != nil {
		rec.SetBreakerState(opts.Name, 0)
	}
	return &Breaker{cb: cb, name: opts.Name, isFailure: opts.IsFailure}
}

// Do runs fn through the breaker. Rejections while open are reported as ErrOpen.
func (b *Breaker) Do(fn func() error) error {
	var passed error
	_, err := b.cb.Execute(func() (interface{}, error) {
		err := fn()
		if err != nil && b.isFailure != nil && !b.isFailure(err) {
			passed = err
			return nil, nil
		}
		return nil, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOpen, b.name)
	}
	if err != nil {
		return err
	}
	return passed
}

// State returns the current breaker state name.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// ErrOpen is returned when the breaker short-circuits a call.
var ErrOpen = errors.New("circuit breaker open")

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
