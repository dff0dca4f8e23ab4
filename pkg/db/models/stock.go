package models

import (
	"time"

	"github.com/google/uuid"
)

// Warehouse owns stock rows. Fulfillment batches are grouped per warehouse.
type Warehouse struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Stock tracks the on-hand quantity of one variant in one warehouse. Quantity
// may legally go negative only through allow-exceed paths.
type Stock struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WarehouseID uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null;uniqueIndex:ux_stocks_warehouse_variant"`
	VariantID   uuid.UUID `gorm:"column:variant_id;type:uuid;not null;uniqueIndex:ux_stocks_warehouse_variant"`
	Quantity    int       `gorm:"column:quantity;not null;default:0"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Allocation reserves stock quantity against a specific order line prior to
// physical consumption. The aggregate of allocations for a stock row must stay
// within the row's on-hand quantity unless exceeding was explicitly allowed.
type Allocation struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderLineID       uuid.UUID `gorm:"column:order_line_id;type:uuid;not null;uniqueIndex:ux_allocations_line_stock"`
	StockID           uuid.UUID `gorm:"column:stock_id;type:uuid;not null;uniqueIndex:ux_allocations_line_stock;index"`
	QuantityAllocated int       `gorm:"column:quantity_allocated;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
