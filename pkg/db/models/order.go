package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Order is the canonical persisted order. Money is stored in cents.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID        uuid.UUID         `gorm:"column:user_id;type:uuid;not null;uniqueIndex:uq_orders_user_client_order,priority:1"`
	ClientOrderID string            `gorm:"column:client_order_id;not null;uniqueIndex:uq_orders_user_client_order,priority:2"`
	OrderNumber   string            `gorm:"column:order_number;not null;uniqueIndex:uq_orders_order_number"`
	Status        enums.OrderStatus `gorm:"column:status;not null"`

	SubtotalCents int64 `gorm:"column:subtotal_cents;not null"`
	TaxCents      int64 `gorm:"column:tax_cents;not null"`
	ShippingCents int64 `gorm:"column:shipping_cents;not null"`
	TotalCents    int64 `gorm:"column:total_cents;not null"`

	ShipFirstName  string  `gorm:"column:ship_first_name;not null"`
	ShipLastName   string  `gorm:"column:ship_last_name;not null"`
	ShipEmail      string  `gorm:"column:ship_email;not null"`
	ShipPhone      *string `gorm:"column:ship_phone"`
	ShipStreet     string  `gorm:"column:ship_street;not null"`
	ShipApartment  *string `gorm:"column:ship_apartment"`
	ShipCity       string  `gorm:"column:ship_city;not null"`
	ShipState      string  `gorm:"column:ship_state;not null"`
	ShipPostalCode string  `gorm:"column:ship_postal_code;not null"`
	ShipCountry    string  `gorm:"column:ship_country;not null"`

	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null"`
	TransactionID string              `gorm:"column:transaction_id;not null"`
	PaidAt        time.Time           `gorm:"column:paid_at;not null"`
	CardLast4     *string             `gorm:"column:card_last4"`
	CardNetwork   *string             `gorm:"column:card_network"`

	EstimatedDelivery time.Time  `gorm:"column:estimated_delivery;not null"`
	ShippedAt         *time.Time `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time `gorm:"column:delivered_at"`
	CancelledAt       *time.Time `gorm:"column:cancelled_at"`
	CreatedAt         time.Time  `gorm:"column:created_at"`
	UpdatedAt         time.Time  `gorm:"column:updated_at;autoUpdateTime"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID;references:ID"`
}

func (Order) TableName() string { return "orders" }
