package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/repo"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
)

// Repository manages persistence for fulfillments and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindFulfillment(ctx context.Context, id uuid.UUID) (*models.Fulfillment, error)
	NextOrdinal(ctx context.Context, orderID uuid.UUID) (int, error)
	CreateFulfillment(ctx context.Context, fulfillment *models.Fulfillment) error
	UpdateFulfillment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteFulfillment(ctx context.Context, id uuid.UUID) error
	AdjustLineFulfilled(ctx context.Context, orderLineID uuid.UUID, delta int) error
	FindOrderLines(ctx context.Context, ids []uuid.UUID) ([]models.OrderLine, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a fulfillment repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) FindFulfillment(ctx context.Context, id uuid.UUID) (*models.Fulfillment, error) {
	var fulfillment models.Fulfillment
	if err := r.base.DB(ctx).
		Preload("Lines").
		First(&fulfillment, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &fulfillment, nil
}

func (r *repository) NextOrdinal(ctx context.Context, orderID uuid.UUID) (int, error) {
	var max int
	if err := r.base.DB(ctx).
		Raw(`SELECT COALESCE(MAX(fulfillment_order), 0) FROM fulfillments WHERE order_id = ?`, orderID).
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *repository) CreateFulfillment(ctx context.Context, fulfillment *models.Fulfillment) error {
	return r.base.DB(ctx).Create(fulfillment).Error
}

func (r *repository) UpdateFulfillment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).
		Model(&models.Fulfillment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteFulfillment removes the fulfillment and its lines. Lines are deleted
// explicitly so the operation does not depend on database-level cascades.
func (r *repository) DeleteFulfillment(ctx context.Context, id uuid.UUID) error {
	if err := r.base.DB(ctx).
		Where("fulfillment_id = ?", id).
		Delete(&models.FulfillmentLine{}).Error; err != nil {
		return err
	}
	return r.base.DB(ctx).
		Where("id = ?", id).
		Delete(&models.Fulfillment{}).Error
}

func (r *repository) AdjustLineFulfilled(ctx context.Context, orderLineID uuid.UUID, delta int) error {
	return r.base.DB(ctx).Exec(`
		UPDATE order_lines
		SET quantity_fulfilled = quantity_fulfilled + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, delta, orderLineID).Error
}

func (r *repository) FindOrderLines(ctx context.Context, ids []uuid.UUID) ([]models.OrderLine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var lines []models.OrderLine
	if err := r.base.DB(ctx).
		Where("id IN ?", ids).
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}
