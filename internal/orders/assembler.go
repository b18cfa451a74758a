package orders

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/cards"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/idgen"
)

// DeliveryLeadTime is added to the creation time for the estimated delivery date.
const DeliveryLeadTime = 5 * 24 * time.Hour

// ErrAssembly wraps failures that must abort checkout before anything is persisted.
var ErrAssembly = errors.New("order assembly failed")

// Assembler builds Order records. It performs no I/O.
type Assembler struct {
	ids *idgen.Generator
	now func() time.Time
}

func NewAssembler(ids *idgen.Generator, now func() time.Time) (*Assembler, error) {
	if ids == nil {
		return nil, fmt.Errorf("id generator required")
	}
	if now == nil {
		now = time.Now
	}
	return &Assembler{ids: ids, now: now}, nil
}

// Assemble snapshots the cart and masks the payment. The full card number
// and CVV in sel never reach the returned Order.
func (a *Assembler) Assemble(c cart.Cart, shipping ShippingInfo, sel payments.Selection, settled payments.Result, totals pricing.Totals) (Order, error) {
	if c.IsEmpty() {
		return Order{}, fmt.Errorf("%w: cart is empty", ErrAssembly)
	}
	if settled.TransactionID == "" {
		return Order{}, fmt.Errorf("%w: missing transaction id", ErrAssembly)
	}

	localID, err := a.ids.OrderID()
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrAssembly, err)
	}

	now := a.now().UTC()
	paidAt := settled.SettledAt
	if paidAt.IsZero() {
		paidAt = now
	}

	payment := PaymentRecord{
		Method:        sel.Method,
		Status:        enums.PaymentStatusPaid,
		TransactionID: settled.TransactionID,
		PaidAt:        paidAt,
	}
	if sel.Method == enums.PaymentMethodCard && sel.Card != nil {
		payment.CardLast4 = cards.LastFour(sel.Card.Number)
		payment.CardNetwork = cards.Classify(sel.Card.Number)
		payment.MaskedNumber = cards.Mask(sel.Card.Number)
	}

	return Order{
		LocalID:           localID,
		Lines:             c.Snapshot(),
		Shipping:          shipping,
		Payment:           payment,
		Totals:            totals,
		Status:            enums.OrderStatusConfirmed,
		CreatedAt:         now,
		EstimatedDelivery: now.Add(DeliveryLeadTime),
	}, nil
}
