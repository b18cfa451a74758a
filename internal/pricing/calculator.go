// Package pricing derives order totals from a cart subtotal.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// TaxRate is the flat sales tax applied to every order.
	TaxRate = decimal.RequireFromString("0.08")
	// ShippingCost is flat; shipping is currently free.
	ShippingCost = decimal.Zero
)

// Totals is derived from a subtotal and never stored independently of it.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

// Compute applies tax once to the whole subtotal, rounding half away from
// zero to the cent, so total always equals subtotal + shipping + tax.
func Compute(subtotal decimal.Decimal) Totals {
	subtotal = subtotal.Round(2)
	tax := subtotal.Mul(TaxRate).Round(2)
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: ShippingCost,
		Total:    subtotal.Add(ShippingCost).Add(tax),
	}
}

// Validate reports whether an externally supplied Totals is internally consistent.
func (t Totals) Validate() error {
	if t.Subtotal.IsNegative() {
		return fmt.Errorf("subtotal must be non-negative")
	}
	want := Compute(t.Subtotal)
	if !want.Tax.Equal(t.Tax) || !want.Shipping.Equal(t.Shipping) || !want.Total.Equal(t.Total) {
		return fmt.Errorf("totals do not match subtotal %s", t.Subtotal.StringFixed(2))
	}
	return nil
}

// Cents converts an amount to integer minor units.
func Cents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

// FromCents converts integer minor units back to a decimal amount.
func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}
