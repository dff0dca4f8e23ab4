package transactions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/repo"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
)

// Repository manages persistence for transaction items, their events and the
// checkout owner side.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindItem(ctx context.Context, id uuid.UUID) (*models.TransactionItem, error)
	CreateItem(ctx context.Context, item *models.TransactionItem) error
	UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListItemsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransactionItem, error)
	ListItemsForCheckout(ctx context.Context, checkoutID uuid.UUID) ([]models.TransactionItem, error)
	CreateEvent(ctx context.Context, event *models.TransactionEvent) error
	ListEvents(ctx context.Context, itemID uuid.UUID) ([]models.TransactionEvent, error)
	FindCheckout(ctx context.Context, id uuid.UUID) (*models.Checkout, error)
	UpdateCheckout(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) FindItem(ctx context.Context, id uuid.UUID) (*models.TransactionItem, error) {
	var item models.TransactionItem
	if err := r.base.DB(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.TransactionItem) error {
	return r.base.DB(ctx).Create(item).Error
}

func (r *repository) UpdateItem(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).
		Model(&models.TransactionItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListItemsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.TransactionItem, error) {
	var items []models.TransactionItem
	if err := r.base.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListItemsForCheckout(ctx context.Context, checkoutID uuid.UUID) ([]models.TransactionItem, error) {
	var items []models.TransactionItem
	if err := r.base.DB(ctx).
		Where("checkout_id = ?", checkoutID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateEvent(ctx context.Context, event *models.TransactionEvent) error {
	return r.base.DB(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, itemID uuid.UUID) ([]models.TransactionEvent, error) {
	var events []models.TransactionEvent
	if err := r.base.DB(ctx).
		Where("transaction_item_id = ?", itemID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) FindCheckout(ctx context.Context, id uuid.UUID) (*models.Checkout, error) {
	var checkout models.Checkout
	if err := r.base.DB(ctx).First(&checkout, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &checkout, nil
}

func (r *repository) UpdateCheckout(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).
		Model(&models.Checkout{}).
		Where("id = ?", id).
		Updates(updates).Error
}
