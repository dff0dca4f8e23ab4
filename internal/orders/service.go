package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	pkgerrors "github.com/lvalenta/fulfillment-core/pkg/errors"
)

// Service exposes order-level reads and the status recomputation other
// domains trigger after mutating fulfillments.
type Service interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetOrderWithFulfillments(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Events(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error)
	RecomputeStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error
}

type service struct {
	repo Repository
	db   *gorm.DB
}

// NewService wires the order service.
func NewService(repo Repository, db *gorm.DB) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders: repository is required")
	}
	if db == nil {
		return nil, fmt.Errorf("orders: db is required")
	}
	return &service{repo: repo, db: db}, nil
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) GetOrderWithFulfillments(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrderWithFulfillments(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) Events(ctx context.Context, orderID uuid.UUID) ([]models.OrderEvent, error) {
	return ListEvents(ctx, s.db, orderID)
}

// RecomputeStatus re-derives the order's fulfillment status and persists it
// when it changed. Must run inside the transaction that mutated the
// fulfillments so readers never observe a stale tier.
func (s *service) RecomputeStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	return RecomputeStatusTx(ctx, tx, s.repo, orderID)
}

// RecomputeStatusTx is the free-function form used by domains that already
// hold both a transaction and a repository.
func RecomputeStatusTx(ctx context.Context, tx *gorm.DB, repo Repository, orderID uuid.UUID) error {
	bound := repo.WithTx(tx)

	order, err := bound.FindOrderWithFulfillments(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order for status recompute")
	}

	derived := DeriveStatus(order.Status, order.Lines, order.Fulfillments)
	if derived == order.Status {
		return nil
	}
	if err := bound.UpdateStatus(ctx, orderID, derived); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	return nil
}
