// Package orders holds the checkout order record and its assembler.
package orders

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// ShippingInfo is the delivery block collected in the first wizard step.
type ShippingInfo struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street" validate:"required"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// FieldError names a missing required shipping field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return e.Field + " is required"
}

// Validate reports every empty required field. Use FieldErrors to unpack the result.
func (s ShippingInfo) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"first_name", s.FirstName},
		{"last_name", s.LastName},
		{"email", s.Email},
		{"street", s.Street},
		{"city", s.City},
		{"state", s.State},
		{"postal_code", s.PostalCode},
		{"country", s.Country},
	}
	var err error
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			err = multierr.Append(err, &FieldError{Field: r.field})
		}
	}
	return err
}

// FieldErrors flattens a Validate result into field -> message.
func FieldErrors(err error) map[string]string {
	if err == nil {
		return nil
	}
	out := map[string]string{}
	for _, e := range multierr.Errors(err) {
		if fe, ok := e.(*FieldError); ok {
			out[fe.Field] = "is required"
			continue
		}
		out["_"] = e.Error()
	}
	return out
}

// FullName joins first and last name.
func (s ShippingInfo) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// AddressLines renders the postal address for receipts.
func (s ShippingInfo) AddressLines() []string {
	lines := []string{s.Street}
	if s.Apartment != "" {
		lines = append(lines, s.Apartment)
	}
	lines = append(lines, fmt.Sprintf("%s, %s %s", s.City, s.State, s.PostalCode), s.Country)
	return lines
}

// PaymentRecord is the masked payment summary kept on an order.
type PaymentRecord struct {
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	TransactionID string              `json:"transaction_id"`
	PaidAt        time.Time           `json:"paid_at"`
	CardLast4     string              `json:"card_last4,omitempty"`
	CardNetwork   enums.CardNetwork   `json:"card_network,omitempty"`
	MaskedNumber  string              `json:"masked_number,omitempty"`
}

// Summary is the one-line payment description used in emails and views.
func (p PaymentRecord) Summary() string {
	if p.Method == enums.PaymentMethodCard {
		return fmt.Sprintf("%s %s", p.CardNetwork.DisplayName(), p.MaskedNumber)
	}
	return p.Method.DisplayName()
}

// Order is created once at the end of a successful payment step. Only Status
// and the canonical identity change afterwards.
type Order struct {
	LocalID           string            `json:"local_id"`
	CanonicalID       string            `json:"canonical_id,omitempty"`
	OrderNumber       string            `json:"order_number,omitempty"`
	Lines             []cart.Line       `json:"lines"`
	Shipping          ShippingInfo      `json:"shipping"`
	Payment           PaymentRecord     `json:"payment"`
	Totals            pricing.Totals    `json:"totals"`
	Status            enums.OrderStatus `json:"status"`
	CreatedAt         time.Time         `json:"created_at"`
	EstimatedDelivery time.Time         `json:"estimated_delivery"`
}

// ID is the canonical identifier once the remote store accepted the order,
// and the client-generated one until then.
func (o Order) ID() string {
	if o.CanonicalID != "" {
		return o.CanonicalID
	}
	return o.LocalID
}

// Reconciled returns a copy carrying the identity assigned by the remote store.
func (o Order) Reconciled(canonicalID, orderNumber string) Order {
	o.CanonicalID = canonicalID
	if orderNumber != "" {
		o.OrderNumber = orderNumber
	}
	o.Lines = append([]cart.Line(nil), o.Lines...)
	return o
}

// ItemCount sums quantities across lines.
func (o Order) ItemCount() int {
	n := 0
	for _, l := range o.Lines {
		n += l.Quantity
	}
	return n
}
