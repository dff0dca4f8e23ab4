package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/repo"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// Repository manages persistence for orders and their fulfillment aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderWithFulfillments(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error
	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderLines(ctx context.Context, lines []models.OrderLine) error
	ListActivePayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ListGrantedRefunds(ctx context.Context, orderID uuid.UUID) ([]models.OrderGrantedRefund, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.base.DB(ctx).
		Preload("Lines").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderWithFulfillments(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.base.DB(ctx).
		Preload("Lines").
		Preload("Fulfillments").
		Preload("Fulfillments.Lines").
		First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) error {
	return r.UpdateOrder(ctx, id, map[string]any{"status": status})
}

func (r *repository) NextOrderNumber(ctx context.Context) (int64, error) {
	var max int64
	if err := r.base.DB(ctx).
		Raw(`SELECT COALESCE(MAX(number), 0) FROM orders`).
		Scan(&max).Error; err != nil {
		return 0, err
	}
	return max + 1, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Create(order).Error
}

func (r *repository) CreateOrderLines(ctx context.Context, lines []models.OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&lines).Error
}

func (r *repository) ListActivePayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.base.DB(ctx).
		Where("order_id = ? AND is_active = ?", orderID, true).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) ListGrantedRefunds(ctx context.Context, orderID uuid.UUID) ([]models.OrderGrantedRefund, error) {
	var refunds []models.OrderGrantedRefund
	if err := r.base.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&refunds).Error; err != nil {
		return nil, err
	}
	return refunds, nil
}
