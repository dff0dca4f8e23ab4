package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Engine adapts the package-level ledger operations to the small interfaces
// the lifecycle and return services consume.
type Engine struct{}

// NewEngine exposes the default ledger implementation.
func NewEngine() Engine {
	return Engine{}
}

func (Engine) Allocate(ctx context.Context, tx *gorm.DB, m Movement, allowExceed bool) error {
	return Allocate(ctx, tx, m, allowExceed)
}

func (Engine) Deallocate(ctx context.Context, tx *gorm.DB, m Movement) error {
	return Deallocate(ctx, tx, m)
}

func (Engine) DeallocateForLine(ctx context.Context, tx *gorm.DB, orderLineID uuid.UUID, qty int) error {
	return DeallocateForLine(ctx, tx, orderLineID, qty)
}

func (Engine) Consume(ctx context.Context, tx *gorm.DB, movements []Movement, allowExceed bool) error {
	return Consume(ctx, tx, movements, allowExceed)
}

func (Engine) Restock(ctx context.Context, tx *gorm.DB, movements []Movement) error {
	return Restock(ctx, tx, movements)
}

func (Engine) OnHand(ctx context.Context, tx *gorm.DB, stockID uuid.UUID) (int, error) {
	return OnHand(ctx, tx, stockID)
}
