// Package cart exposes the shopper's current cart to checkout.
package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// Line is one product in the cart. Checkout treats it as read-only.
type Line struct {
	ProductRef string          `json:"product_ref" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity" validate:"min=1"`
	ImageRef   string          `json:"image_ref,omitempty"`
	Variant    string          `json:"variant,omitempty"`
}

// LineTotal is unit price times quantity.
func (l Line) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

func (l Line) validate(idx int) error {
	var err error
	if strings.TrimSpace(l.ProductRef) == "" {
		err = multierr.Append(err, fmt.Errorf("lines[%d].product_ref is required", idx))
	}
	if strings.TrimSpace(l.Name) == "" {
		err = multierr.Append(err, fmt.Errorf("lines[%d].name is required", idx))
	}
	if l.UnitPrice.IsNegative() {
		err = multierr.Append(err, fmt.Errorf("lines[%d].unit_price must be non-negative", idx))
	}
	if l.Quantity < 1 {
		err = multierr.Append(err, fmt.Errorf("lines[%d].quantity must be at least 1", idx))
	}
	return err
}

// Cart is an ordered list of lines.
type Cart struct {
	Lines []Line `json:"lines"`
}

// Subtotal sums every line total.
func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.LineTotal())
	}
	return sum
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Validate checks every line and reports all problems at once.
func (c Cart) Validate() error {
	var err error
	for i, l := range c.Lines {
		err = multierr.Append(err, l.validate(i))
	}
	return err
}

// Snapshot returns a copy safe to embed in an order.
func (c Cart) Snapshot() []Line {
	out := make([]Line, len(c.Lines))
	copy(out, c.Lines)
	return out
}

// Without removes the ordered quantities from c. Lines or quantities that
// were not part of ordered stay in the cart.
func (c Cart) Without(ordered []Line) Cart {
	remaining := make(map[lineKey]int, len(ordered))
	for _, l := range ordered {
		remaining[l.key()] += l.Quantity
	}
	out := make([]Line, 0, len(c.Lines))
	for _, l := range c.Lines {
		k := l.key()
		take := min(remaining[k], l.Quantity)
		remaining[k] -= take
		l.Quantity -= take
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	return Cart{Lines: out}
}

type lineKey struct {
	productRef string
	variant    string
}

func (l Line) key() lineKey {
	return lineKey{productRef: l.ProductRef, variant: l.Variant}
}

// Provider yields the current cart for a client and drops what was ordered from it.
type Provider interface {
	Current(ctx context.Context, clientID string) (Cart, error)
	RemoveOrdered(ctx context.Context, clientID string, ordered []Line) error
}

// Store is a Provider that also accepts cart replacement from the storefront.
type Store interface {
	Provider
	Replace(ctx context.Context, clientID string, c Cart) error
}
