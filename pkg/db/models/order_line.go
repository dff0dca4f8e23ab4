package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine captures the snapshot of one ordered variant. QuantityFulfilled
// covers every unit attributed to a non-canceled fulfillment, including units
// sitting in return/replace fulfillments.
type OrderLine struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID   *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	ProductName string     `gorm:"column:product_name;not null"`
	VariantName string     `gorm:"column:variant_name;not null;default:''"`
	SKU         *string    `gorm:"column:sku"`
	IsGiftCard  bool       `gorm:"column:is_gift_card;not null;default:false"`

	Quantity          int `gorm:"column:quantity;not null"`
	QuantityFulfilled int `gorm:"column:quantity_fulfilled;not null;default:0"`

	UnitPriceGross decimal.Decimal `gorm:"column:unit_price_gross;type:numeric(20,6);not null"`
	UnitPriceNet   decimal.Decimal `gorm:"column:unit_price_net;type:numeric(20,6);not null"`
	TaxRate        decimal.Decimal `gorm:"column:tax_rate;type:numeric(8,4);not null;default:0"`

	// PreorderEndDate is set while the variant is still in preorder; such lines
	// cannot be fulfilled before the date passes.
	PreorderEndDate *time.Time `gorm:"column:preorder_end_date"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// QuantityUnfulfilled returns the ordered quantity not yet attributed to any
// fulfillment. Never negative.
func (l OrderLine) QuantityUnfulfilled() int {
	if remaining := l.Quantity - l.QuantityFulfilled; remaining > 0 {
		return remaining
	}
	return 0
}
