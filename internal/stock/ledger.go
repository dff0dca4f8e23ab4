// Package stock implements the allocation ledger: per (warehouse, variant)
// on-hand quantity plus reservations held against specific order lines. All
// operations run inside the caller's transaction so ledger movement commits or
// rolls back together with the lifecycle action that triggered it.
package stock

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/pkg/db"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	pkgerrors "github.com/lvalenta/fulfillment-core/pkg/errors"
)

// Movement describes one quantity transfer between a stock row and an order line.
type Movement struct {
	OrderLineID uuid.UUID
	StockID     uuid.UUID
	WarehouseID uuid.UUID
	Quantity    int
}

// Shortfall reports one over-subscribed movement from a batch. Shortfalls are
// collected across the whole batch rather than aborting at the first one.
type Shortfall struct {
	OrderLineID uuid.UUID `json:"order_line_id"`
	StockID     uuid.UUID `json:"stock_id"`
	WarehouseID uuid.UUID `json:"warehouse_id"`
	Requested   int       `json:"requested"`
	Available   int       `json:"available"`
}

// Allocate reserves qty of the stock row for the order line. Without
// allowExceed the reservation fails once the aggregate of allocations would
// exceed the row's on-hand quantity.
func Allocate(ctx context.Context, tx *gorm.DB, m Movement, allowExceed bool) error {
	if m.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "allocation quantity must be positive")
	}

	if !allowExceed {
		var st models.Stock
		if err := tx.WithContext(ctx).First(&st, "id = ?", m.StockID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
		}
		allocated, err := allocatedTotal(ctx, tx, m.StockID)
		if err != nil {
			return err
		}
		if allocated+m.Quantity > st.Quantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "allocation exceeds on-hand quantity").
				WithDetails([]Shortfall{{
					OrderLineID: m.OrderLineID,
					StockID:     m.StockID,
					WarehouseID: m.WarehouseID,
					Requested:   m.Quantity,
					Available:   st.Quantity - allocated,
				}})
		}
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE allocations
		SET quantity_allocated = quantity_allocated + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE order_line_id = ? AND stock_id = ?
	`, m.Quantity, m.OrderLineID, m.StockID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increase allocation")
	}
	if res.RowsAffected == 0 {
		allocation := models.Allocation{
			ID:                uuid.New(),
			OrderLineID:       m.OrderLineID,
			StockID:           m.StockID,
			QuantityAllocated: m.Quantity,
		}
		if err := tx.WithContext(ctx).Create(&allocation).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create allocation")
		}
	}
	return nil
}

// Deallocate releases up to qty of the reservation for (order line, stock).
// The allocation never goes below zero; emptied rows are removed.
func Deallocate(ctx context.Context, tx *gorm.DB, m Movement) error {
	if m.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "deallocation quantity must be positive")
	}

	res := tx.WithContext(ctx).Exec(`
		UPDATE allocations
		SET quantity_allocated = CASE
				WHEN quantity_allocated > ? THEN quantity_allocated - ?
				ELSE 0
			END,
			updated_at = CURRENT_TIMESTAMP
		WHERE order_line_id = ? AND stock_id = ?
	`, m.Quantity, m.Quantity, m.OrderLineID, m.StockID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrease allocation")
	}

	if err := tx.WithContext(ctx).Exec(`
		DELETE FROM allocations
		WHERE order_line_id = ? AND stock_id = ? AND quantity_allocated <= 0
	`, m.OrderLineID, m.StockID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove empty allocation")
	}
	return nil
}

// DeallocateForLine releases up to qty across every reservation held by the
// order line, oldest first. Used by return flows where the caller knows the
// line but not which stock rows back it.
func DeallocateForLine(ctx context.Context, tx *gorm.DB, orderLineID uuid.UUID, qty int) error {
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "deallocation quantity must be positive")
	}

	var allocations []models.Allocation
	if err := tx.WithContext(ctx).
		Where("order_line_id = ?", orderLineID).
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line allocations")
	}

	remaining := qty
	for _, allocation := range allocations {
		if remaining <= 0 {
			break
		}
		take := allocation.QuantityAllocated
		if take > remaining {
			take = remaining
		}
		if take <= 0 {
			continue
		}
		if err := Deallocate(ctx, tx, Movement{
			OrderLineID: orderLineID,
			StockID:     allocation.StockID,
			Quantity:    take,
		}); err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}

// Consume decrements on-hand quantity and releases the matching reservation
// for every movement. Without allowExceed each over-subscribed movement is
// collected into one INSUFFICIENT_STOCK error; movements that fit are applied
// regardless, leaving the surrounding transaction to decide.
func Consume(ctx context.Context, tx *gorm.DB, movements []Movement, allowExceed bool) error {
	var depErr error
	shortfalls := []Shortfall{}

	for _, m := range movements {
		if m.Quantity <= 0 {
			depErr = multierr.Append(depErr,
				pkgerrors.New(pkgerrors.CodeValidation, "consume quantity must be positive"))
			continue
		}

		var res *gorm.DB
		if allowExceed {
			res = tx.WithContext(ctx).Exec(`
				UPDATE stocks
				SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ?
			`, m.Quantity, m.StockID)
		} else {
			res = tx.WithContext(ctx).Exec(`
				UPDATE stocks
				SET quantity = quantity - ?, updated_at = CURRENT_TIMESTAMP
				WHERE id = ? AND quantity >= ?
			`, m.Quantity, m.StockID, m.Quantity)
		}
		if res.Error != nil {
			depErr = multierr.Append(depErr,
				pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "consume stock"))
			continue
		}
		if res.RowsAffected == 0 {
			available, err := onHand(ctx, tx, m.StockID)
			if err != nil {
				depErr = multierr.Append(depErr, err)
				continue
			}
			shortfalls = append(shortfalls, Shortfall{
				OrderLineID: m.OrderLineID,
				StockID:     m.StockID,
				WarehouseID: m.WarehouseID,
				Requested:   m.Quantity,
				Available:   available,
			})
			continue
		}

		if err := Deallocate(ctx, tx, m); err != nil {
			depErr = multierr.Append(depErr, err)
		}
	}

	if len(shortfalls) > 0 {
		depErr = multierr.Append(depErr,
			pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(shortfalls))
	}
	return depErr
}

// Restock returns quantity to the stock rows and re-creates the reservation
// against the originating order lines. Used when a fulfilled batch is canceled.
func Restock(ctx context.Context, tx *gorm.DB, movements []Movement) error {
	for _, m := range movements {
		if m.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "restock quantity must be positive")
		}
		res := tx.WithContext(ctx).Exec(`
			UPDATE stocks
			SET quantity = quantity + ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, m.Quantity, m.StockID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restock stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "stock row not found for restock")
		}
		// Restocked quantity was accounted for before, so the reservation may
		// exceed the momentary on-hand value of other rows.
		if err := Allocate(ctx, tx, m, true); err != nil {
			return err
		}
	}
	return nil
}

// OnHand returns the raw on-hand quantity of a stock row.
func OnHand(ctx context.Context, tx *gorm.DB, stockID uuid.UUID) (int, error) {
	return onHand(ctx, tx, stockID)
}

// AllocatedTotal returns the aggregate reservation held against a stock row.
func AllocatedTotal(ctx context.Context, tx *gorm.DB, stockID uuid.UUID) (int, error) {
	return allocatedTotal(ctx, tx, stockID)
}

// FindOrCreate loads the stock row for (warehouse, variant), creating an empty
// row when missing. Cancel-with-restock may target a warehouse the batch never
// shipped from.
func FindOrCreate(ctx context.Context, tx *gorm.DB, warehouseID, variantID uuid.UUID) (*models.Stock, error) {
	var st models.Stock
	err := tx.WithContext(ctx).
		First(&st, "warehouse_id = ? AND variant_id = ?", warehouseID, variantID).Error
	if err == nil {
		return &st, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock")
	}

	st = models.Stock{
		ID:          uuid.New(),
		WarehouseID: warehouseID,
		VariantID:   variantID,
		Quantity:    0,
	}
	if err := tx.WithContext(ctx).Create(&st).Error; err != nil {
		// Concurrent creator won the (warehouse, variant) race; use its row.
		if db.IsUniqueViolation(err, "ux_stocks_warehouse_variant") {
			if lookupErr := tx.WithContext(ctx).
				First(&st, "warehouse_id = ? AND variant_id = ?", warehouseID, variantID).Error; lookupErr == nil {
				return &st, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stock")
	}
	return &st, nil
}

func onHand(ctx context.Context, tx *gorm.DB, stockID uuid.UUID) (int, error) {
	var quantity int
	if err := tx.WithContext(ctx).
		Raw(`SELECT quantity FROM stocks WHERE id = ?`, stockID).
		Scan(&quantity).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read stock quantity")
	}
	return quantity, nil
}

func allocatedTotal(ctx context.Context, tx *gorm.DB, stockID uuid.UUID) (int, error) {
	var allocated int
	if err := tx.WithContext(ctx).
		Raw(`SELECT COALESCE(SUM(quantity_allocated), 0) FROM allocations WHERE stock_id = ?`, stockID).
		Scan(&allocated).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum allocations")
	}
	return allocated, nil
}
