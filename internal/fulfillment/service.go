// Package fulfillment drives the fulfillment lifecycle: creating batches per
// warehouse, the approval step that performs the deferred stock consumption,
// cancellation with restock, and tracking updates. Every mutation runs inside
// one transaction together with its ledger movement and audit event.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/orders"
	"github.com/lvalenta/fulfillment-core/internal/stock"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
	pkgerrors "github.com/lvalenta/fulfillment-core/pkg/errors"
	"github.com/lvalenta/fulfillment-core/pkg/logger"
	"github.com/lvalenta/fulfillment-core/pkg/notify"
)

// Policy carries the site-level switches callers resolve per request.
type Policy struct {
	AllowUnpaidFulfillment bool
	AutoApprove            bool
}

// LineInput requests qty units of one order line from one warehouse.
type LineInput struct {
	WarehouseID uuid.UUID
	OrderLineID uuid.UUID
	Quantity    int
}

// CreateInput describes one createFulfillments call. Lines spanning several
// warehouses produce one fulfillment per warehouse.
type CreateInput struct {
	OrderID        uuid.UUID
	Lines          []LineInput
	Approved       bool
	AllowExceed    bool
	TrackingNumber string
	Policy         Policy
	ActorID        *uuid.UUID
}

// ApproveInput describes the deferred-consumption approval step.
type ApproveInput struct {
	FulfillmentID  uuid.UUID
	AllowExceed    bool
	Policy         Policy
	NotifyCustomer bool
	ActorID        *uuid.UUID
}

// CancelInput cancels one fulfillment. WarehouseID names where restocked goods
// land and is required only for fulfillments that already consumed stock.
type CancelInput struct {
	FulfillmentID uuid.UUID
	WarehouseID   *uuid.UUID
	ActorID       *uuid.UUID
}

// UpdateTrackingInput replaces the tracking number on a fulfillment.
type UpdateTrackingInput struct {
	FulfillmentID  uuid.UUID
	TrackingNumber string
	NotifyCustomer bool
	ActorID        *uuid.UUID
}

// Service drives the fulfillment lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) ([]models.Fulfillment, error)
	Approve(ctx context.Context, input ApproveInput) (*models.Fulfillment, error)
	Cancel(ctx context.Context, input CancelInput) (*models.Fulfillment, error)
	UpdateTracking(ctx context.Context, input UpdateTrackingInput) (*models.Fulfillment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Consume(ctx context.Context, tx *gorm.DB, movements []stock.Movement, allowExceed bool) error
	Restock(ctx context.Context, tx *gorm.DB, movements []stock.Movement) error
	OnHand(ctx context.Context, tx *gorm.DB, stockID uuid.UUID) (int, error)
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	ledger     stockLedger
	tx         txRunner
	events     orders.EventLog
	dispatcher notify.Dispatcher
	log        *logger.Logger
}

// NewService wires the fulfillment service.
func NewService(repo Repository, ordersRepo orders.Repository, ledger stockLedger, tx txRunner, dispatcher notify.Dispatcher, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("fulfillment: repository is required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("fulfillment: orders repository is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("fulfillment: stock ledger is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("fulfillment: transaction runner is required")
	}
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		ledger:     ledger,
		tx:         tx,
		events:     orders.NewEventLog(),
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

// LineError attributes one rejected input line. Collected across the whole
// batch so callers see every offending line at once.
type LineError struct {
	OrderLineID uuid.UUID  `json:"order_line_id"`
	WarehouseID *uuid.UUID `json:"warehouse_id,omitempty"`
	Requested   int        `json:"requested"`
	Available   int        `json:"available"`
	Reason      string     `json:"reason"`
}

// Create builds one fulfillment per warehouse from the requested lines.
// Partial success is first class: lines rejected for quantity or stock reasons
// are excluded and reported through the returned error while the surviving
// lines commit. Both return values can be non-nil on the same call.
func (s *service) Create(ctx context.Context, input CreateInput) ([]models.Fulfillment, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one fulfillment line is required")
	}
	if err := rejectDuplicates(input.Lines); err != nil {
		return nil, err
	}

	approveNow := input.Approved || input.Policy.AutoApprove
	var created []models.Fulfillment
	var collected error

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		created = created[:0]
		collected = nil

		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		order, err := ordersRepo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if approveNow && !input.Policy.AllowUnpaidFulfillment && !order.ChargeStatus.IsPaidInFull() {
			return pkgerrors.New(pkgerrors.CodeCannotFulfillUnpaidOrder, "order is not paid in full")
		}

		linesByID := indexLines(order.Lines)
		valid, validationErr := validateQuantities(input.Lines, linesByID, approveNow)
		collected = multierr.Append(collected, validationErr)

		movements := make([]stock.Movement, 0, len(valid))
		stockByLine := make(map[uuid.UUID]uuid.UUID, len(valid))
		for _, line := range valid {
			orderLine := linesByID[line.OrderLineID]
			if orderLine.VariantID == nil {
				continue
			}
			st, err := stock.FindOrCreate(ctx, tx, line.WarehouseID, *orderLine.VariantID)
			if err != nil {
				return err
			}
			stockByLine[line.OrderLineID] = st.ID
			movements = append(movements, stock.Movement{
				OrderLineID: line.OrderLineID,
				StockID:     st.ID,
				WarehouseID: line.WarehouseID,
				Quantity:    line.Quantity,
			})
		}

		if approveNow {
			if err := s.ledger.Consume(ctx, tx, movements, input.AllowExceed); err != nil {
				shortErr, fatal := splitShortfalls(err)
				if fatal != nil {
					return fatal
				}
				valid = dropShortfallLines(valid, shortErr)
				collected = multierr.Append(collected, shortErr)
			}
		} else if !input.AllowExceed {
			if err := s.checkAvailability(ctx, tx, movements); err != nil {
				shortErr, fatal := splitShortfalls(err)
				if fatal != nil {
					return fatal
				}
				valid = dropShortfallLines(valid, shortErr)
				collected = multierr.Append(collected, shortErr)
			}
		}
		if len(valid) == 0 {
			return nil
		}

		status := enums.FulfillmentStatusWaitingForApproval
		if approveNow {
			status = enums.FulfillmentStatusFulfilled
		}

		eventLines := make([]orders.LineQuantity, 0, len(valid))
		for _, batch := range groupByWarehouse(valid) {
			ordinal, err := repo.NextOrdinal(ctx, input.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next fulfillment ordinal")
			}
			fulfillment := models.Fulfillment{
				ID:               uuid.New(),
				OrderID:          input.OrderID,
				FulfillmentOrder: ordinal,
				Status:           status,
				TrackingNumber:   input.TrackingNumber,
			}
			for _, line := range batch.lines {
				fl := models.FulfillmentLine{
					ID:          uuid.New(),
					OrderLineID: line.OrderLineID,
					Quantity:    line.Quantity,
				}
				if stockID, ok := stockByLine[line.OrderLineID]; ok {
					id := stockID
					fl.StockID = &id
				}
				fulfillment.Lines = append(fulfillment.Lines, fl)
				eventLines = append(eventLines, orders.LineQuantity{OrderLineID: line.OrderLineID, Quantity: line.Quantity})
			}
			if err := repo.CreateFulfillment(ctx, &fulfillment); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fulfillment")
			}
			created = append(created, fulfillment)
		}

		for _, line := range valid {
			if err := repo.AdjustLineFulfilled(ctx, line.OrderLineID, line.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment fulfilled quantity")
			}
		}

		eventType := enums.OrderEventFulfillmentAwaitsApproval
		if approveNow {
			eventType = enums.OrderEventFulfillmentFulfilledItems
		}
		if _, err := s.events.RecordEvent(ctx, tx, orders.EventInput{
			OrderID:    input.OrderID,
			Type:       eventType,
			Parameters: eventLines,
			ActorID:    input.ActorID,
		}); err != nil {
			return err
		}

		return orders.RecomputeStatusTx(ctx, tx, s.ordersRepo, input.OrderID)
	})
	if err != nil {
		return nil, err
	}

	if len(created) > 0 {
		s.notify(ctx, notify.EventOrderUpdated, notify.Payload{"order_id": input.OrderID.String()})
	}
	return created, collected
}

// splitShortfalls separates collected insufficient-stock errors, which only
// exclude their lines, from dependency errors that must abort the call.
func splitShortfalls(err error) (shortfalls error, fatal error) {
	for _, e := range multierr.Errors(err) {
		typed := pkgerrors.As(e)
		if typed != nil && typed.Code() == pkgerrors.CodeInsufficientStock {
			shortfalls = multierr.Append(shortfalls, e)
			continue
		}
		fatal = multierr.Append(fatal, e)
	}
	return shortfalls, fatal
}

func dropShortfallLines(lines []LineInput, shortfallErr error) []LineInput {
	failed := make(map[uuid.UUID]bool)
	for _, e := range multierr.Errors(shortfallErr) {
		typed := pkgerrors.As(e)
		if typed == nil {
			continue
		}
		if shortfalls, ok := typed.Details().([]stock.Shortfall); ok {
			for _, sf := range shortfalls {
				failed[sf.OrderLineID] = true
			}
		}
	}
	kept := lines[:0]
	for _, line := range lines {
		if !failed[line.OrderLineID] {
			kept = append(kept, line)
		}
	}
	return kept
}

func (s *service) Approve(ctx context.Context, input ApproveInput) (*models.Fulfillment, error) {
	var approved *models.Fulfillment

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		fulfillment, err := repo.FindFulfillment(ctx, input.FulfillmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillment")
		}
		if fulfillment.Status != enums.FulfillmentStatusWaitingForApproval {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "fulfillment is not awaiting approval")
		}

		order, err := ordersRepo.FindOrder(ctx, fulfillment.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !input.Policy.AllowUnpaidFulfillment && !order.ChargeStatus.IsPaidInFull() {
			return pkgerrors.New(pkgerrors.CodeCannotFulfillUnpaidOrder, "order is not paid in full")
		}

		linesByID := indexLines(order.Lines)
		if err := rejectUnavailablePreorders(fulfillment.Lines, linesByID); err != nil {
			return err
		}

		movements := movementsFor(fulfillment.Lines)
		if err := s.ledger.Consume(ctx, tx, movements, input.AllowExceed); err != nil {
			return err
		}

		if err := repo.UpdateFulfillment(ctx, fulfillment.ID, map[string]any{
			"status": enums.FulfillmentStatusFulfilled,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fulfillment status")
		}
		fulfillment.Status = enums.FulfillmentStatusFulfilled

		if _, err := s.events.RecordEvent(ctx, tx, orders.EventInput{
			OrderID:    fulfillment.OrderID,
			Type:       enums.OrderEventFulfillmentApproved,
			Parameters: lineQuantities(fulfillment.Lines),
			ActorID:    input.ActorID,
		}); err != nil {
			return err
		}
		approved = fulfillment

		return orders.RecomputeStatusTx(ctx, tx, s.ordersRepo, fulfillment.OrderID)
	})
	if err != nil {
		return nil, err
	}

	if input.NotifyCustomer {
		s.notify(ctx, notify.EventFulfillmentApproved, notify.Payload{
			"order_id":       approved.OrderID.String(),
			"fulfillment_id": approved.ID.String(),
		})
	}
	return approved, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*models.Fulfillment, error) {
	var canceled *models.Fulfillment

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		fulfillment, err := repo.FindFulfillment(ctx, input.FulfillmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillment")
		}
		if !fulfillment.Status.IsCancelable() {
			return pkgerrors.New(pkgerrors.CodeCannotCancelFulfillment, "fulfillment status does not allow cancellation")
		}

		orderLines, err := repo.FindOrderLines(ctx, orderLineIDs(fulfillment.Lines))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order lines")
		}
		for _, line := range orderLines {
			if line.IsGiftCard {
				return pkgerrors.New(pkgerrors.CodeCannotCancelFulfillment, "gift card lines cannot be canceled")
			}
		}

		switch fulfillment.Status {
		case enums.FulfillmentStatusWaitingForApproval:
			// Nothing was consumed; drop the reservation records and restore
			// the fulfilled counters incremented at create time.
			if err := repo.DeleteFulfillment(ctx, fulfillment.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete fulfillment")
			}
		case enums.FulfillmentStatusFulfilled:
			if input.WarehouseID == nil {
				return pkgerrors.New(pkgerrors.CodeValidation, "warehouse is required to cancel a fulfilled fulfillment")
			}
			movements, err := s.restockMovements(ctx, tx, fulfillment.Lines, orderLines, *input.WarehouseID)
			if err != nil {
				return err
			}
			if err := s.ledger.Restock(ctx, tx, movements); err != nil {
				return err
			}
			if err := repo.UpdateFulfillment(ctx, fulfillment.ID, map[string]any{
				"status": enums.FulfillmentStatusCanceled,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update fulfillment status")
			}
			fulfillment.Status = enums.FulfillmentStatusCanceled
		}

		for _, fl := range fulfillment.Lines {
			if err := repo.AdjustLineFulfilled(ctx, fl.OrderLineID, -fl.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement fulfilled quantity")
			}
		}

		if _, err := s.events.RecordEvent(ctx, tx, orders.EventInput{
			OrderID:    fulfillment.OrderID,
			Type:       enums.OrderEventFulfillmentCanceled,
			Parameters: lineQuantities(fulfillment.Lines),
			ActorID:    input.ActorID,
		}); err != nil {
			return err
		}
		canceled = fulfillment

		return orders.RecomputeStatusTx(ctx, tx, s.ordersRepo, fulfillment.OrderID)
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notify.EventOrderUpdated, notify.Payload{"order_id": canceled.OrderID.String()})
	return canceled, nil
}

func (s *service) UpdateTracking(ctx context.Context, input UpdateTrackingInput) (*models.Fulfillment, error) {
	var updated *models.Fulfillment

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		fulfillment, err := repo.FindFulfillment(ctx, input.FulfillmentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillment")
		}
		if err := repo.UpdateFulfillment(ctx, fulfillment.ID, map[string]any{
			"tracking_number": input.TrackingNumber,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tracking number")
		}
		fulfillment.TrackingNumber = input.TrackingNumber

		if _, err := s.events.RecordEvent(ctx, tx, orders.EventInput{
			OrderID: fulfillment.OrderID,
			Type:    enums.OrderEventTrackingUpdated,
			Parameters: map[string]any{
				"fulfillment_id":  fulfillment.ID.String(),
				"tracking_number": input.TrackingNumber,
			},
			ActorID: input.ActorID,
		}); err != nil {
			return err
		}
		updated = fulfillment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if input.NotifyCustomer {
		s.notify(ctx, notify.EventTrackingNumberUpdated, notify.Payload{
			"order_id":        updated.OrderID.String(),
			"fulfillment_id":  updated.ID.String(),
			"tracking_number": updated.TrackingNumber,
		})
	}
	return updated, nil
}

// notify dispatches and swallows failures; a dropped notification never undoes
// a committed transition.
func (s *service) notify(ctx context.Context, event notify.Event, payload notify.Payload) {
	if err := s.dispatcher.Dispatch(ctx, event, payload); err != nil && s.log != nil {
		ctx = s.log.WithField(ctx, "notification", string(event))
		s.log.Warn(ctx, "notification dispatch failed")
	}
}

// checkAvailability mirrors the consume-time validation without moving stock.
// Used for fulfillments parked in waiting_for_approval.
func (s *service) checkAvailability(ctx context.Context, tx *gorm.DB, movements []stock.Movement) error {
	var errs error
	var shortfalls []stock.Shortfall
	for _, m := range movements {
		available, err := s.ledger.OnHand(ctx, tx, m.StockID)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if m.Quantity > available {
			shortfalls = append(shortfalls, stock.Shortfall{
				OrderLineID: m.OrderLineID,
				StockID:     m.StockID,
				WarehouseID: m.WarehouseID,
				Requested:   m.Quantity,
				Available:   available,
			})
		}
	}
	if len(shortfalls) > 0 {
		errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for fulfillment").
			WithDetails(shortfalls))
	}
	return errs
}

func (s *service) restockMovements(ctx context.Context, tx *gorm.DB, fulfillmentLines []models.FulfillmentLine, orderLines []models.OrderLine, warehouseID uuid.UUID) ([]stock.Movement, error) {
	linesByID := indexLines(orderLines)
	var movements []stock.Movement
	for _, fl := range fulfillmentLines {
		orderLine, ok := linesByID[fl.OrderLineID]
		if !ok || orderLine.VariantID == nil {
			continue
		}
		st, err := stock.FindOrCreate(ctx, tx, warehouseID, *orderLine.VariantID)
		if err != nil {
			return nil, err
		}
		movements = append(movements, stock.Movement{
			OrderLineID: fl.OrderLineID,
			StockID:     st.ID,
			WarehouseID: warehouseID,
			Quantity:    fl.Quantity,
		})
	}
	return movements, nil
}

type warehouseBatch struct {
	warehouseID uuid.UUID
	lines       []LineInput
}

// groupByWarehouse buckets input lines preserving first-seen warehouse order.
func groupByWarehouse(lines []LineInput) []warehouseBatch {
	index := make(map[uuid.UUID]int)
	var batches []warehouseBatch
	for _, line := range lines {
		i, ok := index[line.WarehouseID]
		if !ok {
			i = len(batches)
			index[line.WarehouseID] = i
			batches = append(batches, warehouseBatch{warehouseID: line.WarehouseID})
		}
		batches[i].lines = append(batches[i].lines, line)
	}
	return batches
}

func rejectDuplicates(lines []LineInput) error {
	type pair struct {
		warehouse uuid.UUID
		line      uuid.UUID
	}
	seen := make(map[pair]bool, len(lines))
	for _, line := range lines {
		key := pair{warehouse: line.WarehouseID, line: line.OrderLineID}
		if seen[key] {
			return pkgerrors.New(pkgerrors.CodeDuplicatedInputItem, "duplicate warehouse and order line pair").
				WithDetails([]LineError{{
					OrderLineID: line.OrderLineID,
					WarehouseID: &line.WarehouseID,
					Reason:      "duplicate input",
				}})
		}
		seen[key] = true
	}
	return nil
}

// validateQuantities collects every offending line instead of failing on the
// first and returns the lines that survived. Preorder availability is only
// enforced when stock is consumed now.
func validateQuantities(inputs []LineInput, linesByID map[uuid.UUID]models.OrderLine, approveNow bool) ([]LineInput, error) {
	var errs error
	var rejected []LineError
	valid := make([]LineInput, 0, len(inputs))
	now := time.Now()
	for _, input := range inputs {
		line, ok := linesByID[input.OrderLineID]
		if !ok {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeNotFound, "order line not found").
				WithDetails([]LineError{{OrderLineID: input.OrderLineID, Reason: "unknown order line"}}))
			continue
		}
		if input.Quantity <= 0 {
			rejected = append(rejected, LineError{
				OrderLineID: input.OrderLineID,
				Requested:   input.Quantity,
				Reason:      "quantity must be positive",
			})
			continue
		}
		if input.Quantity > line.QuantityUnfulfilled() {
			rejected = append(rejected, LineError{
				OrderLineID: input.OrderLineID,
				Requested:   input.Quantity,
				Available:   line.QuantityUnfulfilled(),
				Reason:      "quantity exceeds unfulfilled quantity",
			})
			continue
		}
		if approveNow && line.PreorderEndDate != nil && line.PreorderEndDate.After(now) {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeFulfillOrderLine, "preorder line is not yet available").
				WithDetails([]LineError{{OrderLineID: input.OrderLineID, Reason: "preorder not ended"}}))
			continue
		}
		valid = append(valid, input)
	}
	if len(rejected) > 0 {
		errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "invalid fulfillment quantity").
			WithDetails(rejected))
	}
	return valid, errs
}

func rejectUnavailablePreorders(fulfillmentLines []models.FulfillmentLine, linesByID map[uuid.UUID]models.OrderLine) error {
	var errs error
	now := time.Now()
	for _, fl := range fulfillmentLines {
		line, ok := linesByID[fl.OrderLineID]
		if !ok {
			continue
		}
		if line.PreorderEndDate != nil && line.PreorderEndDate.After(now) {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeFulfillOrderLine, "preorder line is not yet available").
				WithDetails([]LineError{{OrderLineID: fl.OrderLineID, Reason: "preorder not ended"}}))
		}
	}
	return errs
}

func movementsFor(fulfillmentLines []models.FulfillmentLine) []stock.Movement {
	var movements []stock.Movement
	for _, fl := range fulfillmentLines {
		if fl.StockID == nil {
			continue
		}
		movements = append(movements, stock.Movement{
			OrderLineID: fl.OrderLineID,
			StockID:     *fl.StockID,
			Quantity:    fl.Quantity,
		})
	}
	return movements
}

func lineQuantities(fulfillmentLines []models.FulfillmentLine) []orders.LineQuantity {
	out := make([]orders.LineQuantity, 0, len(fulfillmentLines))
	for _, fl := range fulfillmentLines {
		out = append(out, orders.LineQuantity{OrderLineID: fl.OrderLineID, Quantity: fl.Quantity})
	}
	return out
}

func orderLineIDs(fulfillmentLines []models.FulfillmentLine) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(fulfillmentLines))
	for _, fl := range fulfillmentLines {
		ids = append(ids, fl.OrderLineID)
	}
	return ids
}

func indexLines(lines []models.OrderLine) map[uuid.UUID]models.OrderLine {
	index := make(map[uuid.UUID]models.OrderLine, len(lines))
	for _, line := range lines {
		index[line.ID] = line
	}
	return index
}
