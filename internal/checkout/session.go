// Package checkout runs the two-step checkout wizard: shipping, then payment,
// then the confirmation hand-off.
package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// ErrStepConflict is returned when the session's current step does not allow the action.
var ErrStepConflict = errors.New("checkout step does not allow this action")

// PaymentFailure is the user-facing summary of the last failed settlement.
type PaymentFailure struct {
	Kind    payments.ErrorKind `json:"kind"`
	Field   string             `json:"field,omitempty"`
	Message string             `json:"message"`
}

// Session is one wizard run for one client.
type Session struct {
	ID        string               `json:"id"`
	ClientID  string               `json:"client_id"`
	Step      enums.CheckoutStep   `json:"step"`
	Shipping  *orders.ShippingInfo `json:"shipping,omitempty"`
	Totals    pricing.Totals       `json:"totals"`
	LastError *PaymentFailure      `json:"last_error,omitempty"`
	OrderID   string               `json:"order_id,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func newSession(id, clientID string, totals pricing.Totals, now time.Time) Session {
	return Session{
		ID:        id,
		ClientID:  clientID,
		Step:      enums.CheckoutStepShipping,
		Totals:    totals,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func stepConflict(s Session, action string) error {
	return fmt.Errorf("%w: cannot %s during %s", ErrStepConflict, action, s.Step)
}

// applyShipping advances Shipping -> Payment when every required field is present.
func (s *Session) applyShipping(info orders.ShippingInfo, now time.Time) error {
	if s.Step != enums.CheckoutStepShipping {
		return stepConflict(*s, "edit shipping")
	}
	if err := info.Validate(); err != nil {
		return err
	}
	s.Shipping = &info
	s.Step = enums.CheckoutStepPayment
	s.UpdatedAt = now
	return nil
}

// back returns Payment -> Shipping. Nothing has been persisted yet so there is nothing to undo.
func (s *Session) back(now time.Time) error {
	switch s.Step {
	case enums.CheckoutStepShipping:
		return nil
	case enums.CheckoutStepPayment:
		s.Step = enums.CheckoutStepShipping
		s.LastError = nil
		s.UpdatedAt = now
		return nil
	default:
		return stepConflict(*s, "go back")
	}
}

func (s *Session) beginSubmit(now time.Time) error {
	if s.Step != enums.CheckoutStepPayment {
		return stepConflict(*s, "submit payment")
	}
	if s.Shipping == nil {
		return stepConflict(*s, "submit payment without shipping")
	}
	s.Step = enums.CheckoutStepSubmitting
	s.LastError = nil
	s.UpdatedAt = now
	return nil
}

// fail returns Submitting -> Payment, keeping the failure for display.
func (s *Session) fail(failure *PaymentFailure, now time.Time) {
	s.Step = enums.CheckoutStepPayment
	s.LastError = failure
	s.UpdatedAt = now
}

func (s *Session) complete(orderID string, now time.Time) {
	s.Step = enums.CheckoutStepDone
	s.OrderID = orderID
	s.LastError = nil
	s.UpdatedAt = now
}

func failureFrom(err error) *PaymentFailure {
	var pe *payments.Error
	if errors.As(err, &pe) {
		return &PaymentFailure{Kind: pe.Kind, Field: pe.Field, Message: pe.UserMessage()}
	}
	return &PaymentFailure{Message: "We could not complete your order. Please try again."}
}
