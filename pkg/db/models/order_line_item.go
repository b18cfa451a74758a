package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderLineItem snapshots one cart line at purchase time.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index:idx_order_line_items_order,priority:1"`
	Position       int       `gorm:"column:position;not null;index:idx_order_line_items_order,priority:2"`
	ProductRef     string    `gorm:"column:product_ref;not null"`
	Name           string    `gorm:"column:name;not null"`
	UnitPriceCents int64     `gorm:"column:unit_price_cents;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	ImageRef       *string   `gorm:"column:image_ref"`
	Variant        *string   `gorm:"column:variant"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }
