package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// ReturnRequest is a customer's request to return a delivered order.
type ReturnRequest struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID    uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	UserID     uuid.UUID          `gorm:"column:user_id;type:uuid;not null"`
	Status     enums.ReturnStatus `gorm:"column:status;not null"`
	Reason     *string            `gorm:"column:reason"`
	ResolvedAt *time.Time         `gorm:"column:resolved_at"`
	CreatedAt  time.Time          `gorm:"column:created_at"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReturnRequest) TableName() string { return "return_requests" }
