package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// Fulfillment records one batch of order-line quantities moving through a
// single lifecycle stage (ship, refund, return, replace).
type Fulfillment struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID               `gorm:"column:order_id;type:uuid;not null;index"`
	FulfillmentOrder int                     `gorm:"column:fulfillment_order;not null"`
	Status           enums.FulfillmentStatus `gorm:"column:status;type:text;not null;default:'fulfilled'"`
	TrackingNumber   string                  `gorm:"column:tracking_number;not null;default:''"`

	// Set only by refund/return paths.
	TotalRefundAmount    *decimal.Decimal `gorm:"column:total_refund_amount;type:numeric(20,6)"`
	ShippingRefundAmount *decimal.Decimal `gorm:"column:shipping_refund_amount;type:numeric(20,6)"`

	Lines []FulfillmentLine `gorm:"foreignKey:FulfillmentID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// FulfillmentLine attributes a quantity of one order line to a fulfillment.
// StockID is set only for physically-consumed lines. Quantity shrinks when the
// line is partially returned or refunded and never goes negative.
type FulfillmentLine struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FulfillmentID uuid.UUID  `gorm:"column:fulfillment_id;type:uuid;not null;index"`
	OrderLineID   uuid.UUID  `gorm:"column:order_line_id;type:uuid;not null;index"`
	StockID       *uuid.UUID `gorm:"column:stock_id;type:uuid"`
	Quantity      int        `gorm:"column:quantity;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
