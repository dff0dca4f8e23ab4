package returns

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/repo"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// Repository manages the persistence the orchestrator needs beyond what the
// order repository covers.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMergeable(ctx context.Context, orderID uuid.UUID, status enums.FulfillmentStatus) (*models.Fulfillment, error)
	NextOrdinal(ctx context.Context, orderID uuid.UUID) (int, error)
	CreateFulfillment(ctx context.Context, fulfillment *models.Fulfillment) error
	UpdateFulfillment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CreateFulfillmentLine(ctx context.Context, line *models.FulfillmentLine) error
	AdjustFulfillmentLineQuantity(ctx context.Context, id uuid.UUID, delta int) error
	FindFulfillmentLines(ctx context.Context, ids []uuid.UUID) ([]models.FulfillmentLine, error)
	FindMergeTarget(ctx context.Context, fulfillmentID, orderLineID uuid.UUID) (*models.FulfillmentLine, error)
	AdjustLineFulfilled(ctx context.Context, orderLineID uuid.UUID, delta int) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a returns repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

// FindMergeable returns the order's existing fulfillment in the given return
// status, if any, so repeated partial returns accumulate instead of
// duplicating. Returns nil without error when none exists.
func (r *repository) FindMergeable(ctx context.Context, orderID uuid.UUID, status enums.FulfillmentStatus) (*models.Fulfillment, error) {
	var fulfillment models.Fulfillment
	err := r.base.DB(ctx).
		Preload("Lines").
		Where("order_id = ? AND status = ?", orderID, status).
		Order("created_at ASC").
		First(&fulfillment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
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

func (r *repository) CreateFulfillmentLine(ctx context.Context, line *models.FulfillmentLine) error {
	return r.base.DB(ctx).Create(line).Error
}

func (r *repository) AdjustFulfillmentLineQuantity(ctx context.Context, id uuid.UUID, delta int) error {
	return r.base.DB(ctx).Exec(`
		UPDATE fulfillment_lines
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, delta, id).Error
}

func (r *repository) FindFulfillmentLines(ctx context.Context, ids []uuid.UUID) ([]models.FulfillmentLine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var lines []models.FulfillmentLine
	if err := r.base.DB(ctx).
		Where("id IN ?", ids).
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindMergeTarget returns the line of the fulfillment that already covers the
// order line, if any, so merged returns extend it instead of adding a sibling.
func (r *repository) FindMergeTarget(ctx context.Context, fulfillmentID, orderLineID uuid.UUID) (*models.FulfillmentLine, error) {
	var line models.FulfillmentLine
	err := r.base.DB(ctx).
		Where("fulfillment_id = ? AND order_line_id = ?", fulfillmentID, orderLineID).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) AdjustLineFulfilled(ctx context.Context, orderLineID uuid.UUID, delta int) error {
	return r.base.DB(ctx).Exec(`
		UPDATE order_lines
		SET quantity_fulfilled = quantity_fulfilled + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, delta, orderLineID).Error
}
