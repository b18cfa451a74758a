// Package orderstore defines the authenticated order-write contract and the
// HTTP client the storefront uses to call it.
package orderstore

import (
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductRef string          `json:"product_ref" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity" validate:"min=1"`
	ImageRef   string          `json:"image_ref,omitempty"`
	Variant    string          `json:"variant,omitempty"`
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}

type Shipping struct {
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

type Payment struct {
	Method        string    `json:"method" validate:"required"`
	Status        string    `json:"status" validate:"required"`
	TransactionID string    `json:"transaction_id" validate:"required"`
	PaidAt        time.Time `json:"paid_at"`
	CardLast4     string    `json:"card_last4,omitempty" validate:"omitempty,len=4,numeric"`
	CardNetwork   string    `json:"card_network,omitempty"`
}

// CreateOrderRequest is the body of POST /api/v1/orders.
type CreateOrderRequest struct {
	ClientOrderID     string     `json:"client_order_id" validate:"required"`
	Status            string     `json:"status,omitempty"`
	Lines             []LineItem `json:"lines" validate:"required,min=1,dive"`
	Totals            Totals     `json:"totals"`
	Shipping          Shipping   `json:"shipping"`
	Payment           Payment    `json:"payment"`
	CreatedAt         time.Time  `json:"created_at"`
	EstimatedDelivery time.Time  `json:"estimated_delivery"`
}

// CreateOrderResponse carries the canonical identity assigned by the store.
type CreateOrderResponse struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
}
