package orderstore

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

type LineView struct {
	ProductRef string `json:"product_ref"`
	Name       string `json:"name"`
	UnitPrice  string `json:"unit_price"`
	Quantity   int    `json:"quantity"`
	ImageRef   string `json:"image_ref,omitempty"`
	Variant    string `json:"variant,omitempty"`
}

type TotalsView struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Shipping string `json:"shipping"`
	Total    string `json:"total"`
}

type ShippingView struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Street     string `json:"street"`
	Apartment  string `json:"apartment,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type PaymentView struct {
	Method        enums.PaymentMethod `json:"method"`
	Status        enums.PaymentStatus `json:"status"`
	TransactionID string              `json:"transaction_id"`
	PaidAt        time.Time           `json:"paid_at"`
	CardLast4     string              `json:"card_last4,omitempty"`
	CardNetwork   string              `json:"card_network,omitempty"`
}

// OrderView is the API representation of a persisted order.
type OrderView struct {
	ID                string            `json:"id"`
	ClientOrderID     string            `json:"client_order_id"`
	OrderNumber       string            `json:"order_number"`
	Status            enums.OrderStatus `json:"status"`
	Lines             []LineView        `json:"lines"`
	Totals            TotalsView        `json:"totals"`
	Shipping          ShippingView      `json:"shipping"`
	Payment           PaymentView       `json:"payment"`
	EstimatedDelivery time.Time         `json:"estimated_delivery"`
	ShippedAt         *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	CancelledAt       *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func money(cents int64) string {
	return pricing.FromCents(cents).StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ToView(o models.Order) OrderView {
	lines := make([]LineView, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		lines = append(lines, LineView{
			ProductRef: li.ProductRef,
			Name:       li.Name,
			UnitPrice:  money(li.UnitPriceCents),
			Quantity:   li.Quantity,
			ImageRef:   deref(li.ImageRef),
			Variant:    deref(li.Variant),
		})
	}
	return OrderView{
		ID:            o.ID.String(),
		ClientOrderID: o.ClientOrderID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		Lines:         lines,
		Totals: TotalsView{
			Subtotal: money(o.SubtotalCents),
			Tax:      money(o.TaxCents),
			Shipping: money(o.ShippingCents),
			Total:    money(o.TotalCents),
		},
		Shipping: ShippingView{
			FirstName: o.ShipFirstName, LastName: o.ShipLastName, Email: o.ShipEmail, Phone: deref(o.ShipPhone),
			Street: o.ShipStreet, Apartment: deref(o.ShipApartment), City: o.ShipCity, State: o.ShipState,
			PostalCode: o.ShipPostalCode, Country: o.ShipCountry,
		},
		Payment: PaymentView{
			Method:        o.PaymentMethod,
			Status:        o.PaymentStatus,
			TransactionID: o.TransactionID,
			PaidAt:        o.PaidAt,
			CardLast4:     deref(o.CardLast4),
			CardNetwork:   deref(o.CardNetwork),
		},
		EstimatedDelivery: o.EstimatedDelivery,
		ShippedAt:         o.ShippedAt,
		DeliveredAt:       o.DeliveredAt,
		CancelledAt:       o.CancelledAt,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}
