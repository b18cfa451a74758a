// Package payments simulates the settlement round trip for every checkout
// payment method.
package payments

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cards"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/idgen"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// Reserved card numbers that deterministically fail settlement.
const (
	DeclinedCardNumber          = "4000000000000002"
	InsufficientFundsCardNumber = "4000000000000341"
)

var (
	digitsRe = regexp.MustCompile(`^\d+$`)
	expiryRe = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

// CardDetails is the raw card form. It is never persisted.
type CardDetails struct {
	Number string `json:"number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
	Name   string `json:"name"`
}

// Selection is the chosen payment method plus card details when method is card.
type Selection struct {
	Method enums.PaymentMethod
	Card   *CardDetails
}

// Result is a settled payment.
type Result struct {
	TransactionID string
	Method        enums.PaymentMethod
	SettledAt     time.Time
}

type settlementRecorder interface {
	ObserveSettlement(method, outcome string, duration time.Duration)
}

// Options configures the simulated gateway.
type Options struct {
	DelayMin time.Duration
	DelayMax time.Duration
	Timeout  time.Duration
	IDs      *idgen.Generator
	Metrics  settlementRecorder
	Logger   *logger.Logger
}

// Dispatcher validates payment input and settles it against the simulated gateway.
type Dispatcher struct {
	delayMin time.Duration
	delayMax time.Duration
	timeout  time.Duration
	ids      *idgen.Generator
	metrics  settlementRecorder
	logg     *logger.Logger
	now      func() time.Time
}

func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.DelayMin < 0 || opts.DelayMax < opts.DelayMin {
		return nil, fmt.Errorf("invalid settlement delay bounds %s..%s", opts.DelayMin, opts.DelayMax)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("gateway timeout must be positive")
	}
	if opts.IDs == nil {
		return nil, fmt.Errorf("id generator required")
	}
	return &Dispatcher{
		delayMin: opts.DelayMin,
		delayMax: opts.DelayMax,
		timeout:  opts.Timeout,
		ids:      opts.IDs,
		metrics:  opts.Metrics,
		logg:     opts.Logger,
		now:      time.Now,
	}, nil
}

// Validate checks the selection without contacting the gateway. It returns *Error
// with KindInvalidInput on the first offending field.
func (d *Dispatcher) Validate(sel Selection) error {
	if !sel.Method.IsValid() {
		return invalid(FieldMethod)
	}
	if sel.Method != enums.PaymentMethodCard {
		return nil
	}
	if sel.Card == nil {
		return invalid(FieldCardNumber)
	}
	number := cards.Normalize(sel.Card.Number)
	if len(number) < 13 || len(number) > 19 || !digitsRe.MatchString(number) {
		return invalid(FieldCardNumber)
	}
	if !expiryRe.MatchString(strings.TrimSpace(sel.Card.Expiry)) {
		return invalid(FieldExpiry)
	}
	cvv := strings.TrimSpace(sel.Card.CVV)
	if len(cvv) < 3 || len(cvv) > 4 || !digitsRe.MatchString(cvv) {
		return invalid(FieldCVV)
	}
	if len([]rune(strings.TrimSpace(sel.Card.Name))) < 2 {
		return invalid(FieldCardholderName)
	}
	return nil
}

// Settle validates the selection and waits out the simulated gateway round
// trip. Failures are *Error; any other error is unexpected.
func (d *Dispatcher) Settle(ctx context.Context, sel Selection) (Result, error) {
	start := time.Now()
	res, err := d.settle(ctx, sel)
	d.observe(ctx, sel.Method, err, time.Since(start))
	return res, err
}

func (d *Dispatcher) settle(ctx context.Context, sel Selection) (Result, error) {
	if err := d.Validate(sel); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	timer := time.NewTimer(d.delay())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, &Error{Kind: KindGatewayTimeout}
		}
		return Result{}, ctx.Err()
	case <-timer.C:
	}

	if sel.Method == enums.PaymentMethodCard {
		switch cards.Normalize(sel.Card.Number) {
		case DeclinedCardNumber:
			return Result{}, &Error{Kind: KindCardDeclined}
		case InsufficientFundsCardNumber:
			return Result{}, &Error{Kind: KindInsufficientFunds}
		}
	}

	txnID, err := d.ids.TransactionID()
	if err != nil {
		return Result{}, fmt.Errorf("generate transaction id: %w", err)
	}
	return Result{TransactionID: txnID, Method: sel.Method, SettledAt: d.now().UTC()}, nil
}

func (d *Dispatcher) delay() time.Duration {
	span := d.delayMax - d.delayMin
	if span <= 0 {
		return d.delayMin
	}
	return d.delayMin + time.Duration(rand.Int64N(int64(span)+1))
}

func (d *Dispatcher) observe(ctx context.Context, method enums.PaymentMethod, err error, elapsed time.Duration) {
	outcome := "settled"
	var perr *Error
	switch {
	case err == nil:
	case errors.As(err, &perr):
		outcome = string(perr.Kind)
	default:
		outcome = "error"
	}
	if d.metrics != nil {
		d.metrics.ObserveSettlement(string(method), outcome, elapsed)
	}
	if d.logg != nil {
		ctx = d.logg.WithFields(ctx, map[string]any{
			"payment_method": string(method),
			"outcome":        outcome,
			"duration_ms":    elapsed.Milliseconds(),
		})
		d.logg.Info(ctx, "payment.settlement")
	}
}
