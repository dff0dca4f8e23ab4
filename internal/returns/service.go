// Package returns orchestrates refund, return and replace flows: moving
// quantities out of shipped fulfillments into return-tier ones, spawning
// replacement draft orders, and settling the money side against the payment
// gateway. The gateway call happens after the quantity mutations commit; a
// gateway failure is surfaced but never unwinds the already-applied returns.
package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/orders"
	"github.com/lvalenta/fulfillment-core/internal/stock"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
	pkgerrors "github.com/lvalenta/fulfillment-core/pkg/errors"
	"github.com/lvalenta/fulfillment-core/pkg/gateway"
	"github.com/lvalenta/fulfillment-core/pkg/logger"
	"github.com/lvalenta/fulfillment-core/pkg/notify"
)

// OrderLineInput targets unfulfilled quantity directly on an order line.
type OrderLineInput struct {
	OrderLineID uuid.UUID
	Quantity    int
	Replace     bool
}

// FulfillmentLineInput targets quantity already sitting in a fulfillment.
type FulfillmentLineInput struct {
	FulfillmentLineID uuid.UUID
	Quantity          int
	Replace           bool
}

// AllocationInput assigns part of the refund to one payment when the order has
// several. Caller ordering is preserved.
type AllocationInput struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
}

// Input describes one orchestration call.
type Input struct {
	OrderID          uuid.UUID
	PaymentID        *uuid.UUID
	Allocations      []AllocationInput
	OrderLines       []OrderLineInput
	FulfillmentLines []FulfillmentLineInput
	Refund           bool
	RefundShipping   bool
	Amount           *decimal.Decimal
	ActorID          *uuid.UUID
}

// Result reports what one orchestration call produced.
type Result struct {
	ReturnFulfillment  *models.Fulfillment
	ReplaceFulfillment *models.Fulfillment
	ReplacementOrder   *models.Order
	RefundAmount       decimal.Decimal

	shippingRefund decimal.Decimal
}

// Service runs the refund/return orchestration.
type Service interface {
	Process(ctx context.Context, input Input) (*Result, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	gateway    gateway.Gateway
	tx         txRunner
	events     orders.EventLog
	dispatcher notify.Dispatcher
	log        *logger.Logger
}

// NewService wires the orchestrator.
func NewService(repo Repository, ordersRepo orders.Repository, gw gateway.Gateway, tx txRunner, dispatcher notify.Dispatcher, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("returns: repository is required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("returns: orders repository is required")
	}
	if gw == nil {
		return nil, fmt.Errorf("returns: payment gateway is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("returns: transaction runner is required")
	}
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		gateway:    gw,
		tx:         tx,
		events:     orders.NewEventLog(),
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

type sourceKind string

const (
	sourceOrderLine       sourceKind = "order_line"
	sourceFulfillmentLine sourceKind = "fulfillment_line"
)

// refundableItem unifies the two line sources so the merge, replace and amount
// computations run over one sequence regardless of origin.
type refundableItem struct {
	kind            sourceKind
	quantity        int
	replace         bool
	orderLine       models.OrderLine
	fulfillmentLine *models.FulfillmentLine
}

func (i refundableItem) unitPriceGross() decimal.Decimal {
	return i.orderLine.UnitPriceGross
}

// LineError attributes one rejected input line.
type LineError struct {
	OrderLineID       *uuid.UUID `json:"order_line_id,omitempty"`
	FulfillmentLineID *uuid.UUID `json:"fulfillment_line_id,omitempty"`
	Requested         int        `json:"requested"`
	Available         int        `json:"available"`
	Reason            string     `json:"reason"`
}

func (s *service) Process(ctx context.Context, input Input) (*Result, error) {
	if len(input.OrderLines) == 0 && len(input.FulfillmentLines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	result := &Result{}
	var refundReq *gateway.RefundRequest

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		order, err := ordersRepo.FindOrder(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		items, err := s.resolveItems(ctx, repo, order, input)
		if err != nil {
			return err
		}

		payments, err := ordersRepo.ListActivePayments(ctx, input.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payments")
		}

		if input.Refund {
			refundReq, err = buildRefundRequest(order, input, payments, returnAmount(items, input, order))
			if err != nil {
				return err
			}
			result.RefundAmount = refundReq.Amount
			if input.RefundShipping {
				result.shippingRefund = order.ShippingPriceGross
			}
		}

		var returnSet, replaceSet []refundableItem
		for _, item := range items {
			if item.replace {
				replaceSet = append(replaceSet, item)
			} else {
				returnSet = append(returnSet, item)
			}
		}

		touched := make([]orders.LineQuantity, 0, len(items))

		if len(returnSet) > 0 {
			status := enums.FulfillmentStatusReturned
			if input.Refund {
				status = enums.FulfillmentStatusRefundedAndReturned
			}
			fulfillment, err := s.moveIntoFulfillment(ctx, tx, repo, input.OrderID, status, returnSet)
			if err != nil {
				return err
			}
			result.ReturnFulfillment = fulfillment
			for _, item := range returnSet {
				touched = append(touched, orders.LineQuantity{OrderLineID: item.orderLine.ID, Quantity: item.quantity})
			}
		}

		if len(replaceSet) > 0 {
			fulfillment, err := s.moveIntoFulfillment(ctx, tx, repo, input.OrderID, enums.FulfillmentStatusReplaced, replaceSet)
			if err != nil {
				return err
			}
			result.ReplaceFulfillment = fulfillment

			replacement, err := s.spawnReplacement(ctx, ordersRepo, order, replaceSet)
			if err != nil {
				return err
			}
			result.ReplacementOrder = replacement

			if _, err := s.events.RecordEvent(ctx, tx, orders.EventInput{
				OrderID: order.ID,
				Type:    enums.OrderEventReplacementCreated,
				Parameters: map[string]any{
					"replacement_order_id": replacement.ID.String(),
				},
				ActorID: input.ActorID,
			}); err != nil {
				return err
			}
			for _, item := range replaceSet {
				touched = append(touched, orders.LineQuantity{OrderLineID: item.orderLine.ID, Quantity: item.quantity})
			}
		}

		if _, err := s.events.RecordEvent(ctx, tx, orders.EventInput{
			OrderID:    order.ID,
			Type:       enums.OrderEventFulfillmentReturned,
			Parameters: touched,
			ActorID:    input.ActorID,
		}); err != nil {
			return err
		}

		return orders.RecomputeStatusTx(ctx, tx, s.ordersRepo, order.ID)
	})
	if err != nil {
		return nil, err
	}

	if input.Refund && refundReq != nil {
		if err := s.settleRefund(ctx, input, result, refundReq); err != nil {
			return result, err
		}
	}

	s.notify(ctx, notify.EventOrderUpdated, notify.Payload{"order_id": input.OrderID.String()})
	return result, nil
}

// settleRefund calls the gateway after the quantity mutations committed. A
// failure is recorded as an order event in a fresh transaction and surfaced as
// CANNOT_REFUND; the applied returns stand.
func (s *service) settleRefund(ctx context.Context, input Input, result *Result, req *gateway.RefundRequest) error {
	if err := s.gateway.Refund(ctx, *req); err != nil {
		if s.log != nil {
			dump := pkgerrors.Dump(err)
			ctx = s.log.WithFields(ctx, map[string]any{
				"order_id":    input.OrderID.String(),
				"amount":      req.Amount.String(),
				"error_chain": dump.Chain,
			})
			s.log.Error(ctx, "payment gateway refund failed", err)
		}
		recordErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, eventErr := s.events.RecordEvent(ctx, tx, orders.EventInput{
				OrderID: input.OrderID,
				Type:    enums.OrderEventPaymentRefundFailed,
				Parameters: map[string]any{
					"amount": req.Amount.String(),
					"reason": err.Error(),
				},
				ActorID: input.ActorID,
			})
			return eventErr
		})
		if recordErr != nil && s.log != nil {
			s.log.Error(ctx, "recording refund failure event", recordErr)
		}
		return pkgerrors.Wrap(pkgerrors.CodeCannotRefund, err, "payment gateway refund failed")
	}

	if result.ReturnFulfillment == nil {
		return nil
	}
	shipping := decimal.Zero
	if input.RefundShipping {
		shipping = result.ShippingRefund()
	}
	total := req.Amount
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).UpdateFulfillment(ctx, result.ReturnFulfillment.ID, map[string]any{
			"total_refund_amount":    total,
			"shipping_refund_amount": shipping,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund amounts")
		}
		result.ReturnFulfillment.TotalRefundAmount = &total
		result.ReturnFulfillment.ShippingRefundAmount = &shipping
		return nil
	})
}

// ShippingRefund reports the shipping part recorded on the return fulfillment.
func (r *Result) ShippingRefund() decimal.Decimal {
	if r.ReturnFulfillment != nil && r.ReturnFulfillment.ShippingRefundAmount != nil {
		return *r.ReturnFulfillment.ShippingRefundAmount
	}
	return r.shippingRefund
}

// resolveItems loads the sources, validates every input line and builds the
// unified item sequence. Validation failures are collected so the caller sees
// every offending line in one reply; any failure aborts before mutation.
func (s *service) resolveItems(ctx context.Context, repo Repository, order *models.Order, input Input) ([]refundableItem, error) {
	linesByID := make(map[uuid.UUID]models.OrderLine, len(order.Lines))
	for _, line := range order.Lines {
		linesByID[line.ID] = line
	}

	var errs error
	var rejected []LineError
	items := make([]refundableItem, 0, len(input.OrderLines)+len(input.FulfillmentLines))

	seenOrderLines := make(map[uuid.UUID]bool, len(input.OrderLines))
	for i := range input.OrderLines {
		in := input.OrderLines[i]
		if seenOrderLines[in.OrderLineID] {
			return nil, pkgerrors.New(pkgerrors.CodeDuplicatedInputItem, "duplicate order line in input").
				WithDetails([]LineError{{OrderLineID: &in.OrderLineID, Reason: "duplicate input"}})
		}
		seenOrderLines[in.OrderLineID] = true

		line, ok := linesByID[in.OrderLineID]
		if !ok {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeNotFound, "order line not found").
				WithDetails([]LineError{{OrderLineID: &in.OrderLineID, Reason: "unknown order line"}}))
			continue
		}
		if line.IsGiftCard {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeGiftCardLine, "gift card lines cannot be returned").
				WithDetails([]LineError{{OrderLineID: &in.OrderLineID, Reason: "gift card"}}))
			continue
		}
		if in.Quantity <= 0 || in.Quantity > line.QuantityUnfulfilled() {
			rejected = append(rejected, LineError{
				OrderLineID: &in.OrderLineID,
				Requested:   in.Quantity,
				Available:   line.QuantityUnfulfilled(),
				Reason:      "quantity exceeds returnable quantity",
			})
			continue
		}
		items = append(items, refundableItem{
			kind:      sourceOrderLine,
			quantity:  in.Quantity,
			replace:   in.Replace,
			orderLine: line,
		})
	}

	fulfillmentLineIDs := make([]uuid.UUID, 0, len(input.FulfillmentLines))
	seenFulfillmentLines := make(map[uuid.UUID]bool, len(input.FulfillmentLines))
	for _, in := range input.FulfillmentLines {
		if seenFulfillmentLines[in.FulfillmentLineID] {
			id := in.FulfillmentLineID
			return nil, pkgerrors.New(pkgerrors.CodeDuplicatedInputItem, "duplicate fulfillment line in input").
				WithDetails([]LineError{{FulfillmentLineID: &id, Reason: "duplicate input"}})
		}
		seenFulfillmentLines[in.FulfillmentLineID] = true
		fulfillmentLineIDs = append(fulfillmentLineIDs, in.FulfillmentLineID)
	}
	sources, err := repo.FindFulfillmentLines(ctx, fulfillmentLineIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load fulfillment lines")
	}
	sourcesByID := make(map[uuid.UUID]models.FulfillmentLine, len(sources))
	for _, source := range sources {
		sourcesByID[source.ID] = source
	}

	for i := range input.FulfillmentLines {
		in := input.FulfillmentLines[i]
		source, ok := sourcesByID[in.FulfillmentLineID]
		if !ok {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeNotFound, "fulfillment line not found").
				WithDetails([]LineError{{FulfillmentLineID: &in.FulfillmentLineID, Reason: "unknown fulfillment line"}}))
			continue
		}
		line, ok := linesByID[source.OrderLineID]
		if !ok {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeNotFound, "order line not found").
				WithDetails([]LineError{{FulfillmentLineID: &in.FulfillmentLineID, Reason: "line belongs to another order"}}))
			continue
		}
		if line.IsGiftCard {
			errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeGiftCardLine, "gift card lines cannot be returned").
				WithDetails([]LineError{{FulfillmentLineID: &in.FulfillmentLineID, Reason: "gift card"}}))
			continue
		}
		if in.Quantity <= 0 || in.Quantity > source.Quantity {
			rejected = append(rejected, LineError{
				FulfillmentLineID: &in.FulfillmentLineID,
				Requested:         in.Quantity,
				Available:         source.Quantity,
				Reason:            "quantity exceeds returnable quantity",
			})
			continue
		}
		src := source
		items = append(items, refundableItem{
			kind:            sourceFulfillmentLine,
			quantity:        in.Quantity,
			replace:         in.Replace,
			orderLine:       line,
			fulfillmentLine: &src,
		})
	}

	if len(rejected) > 0 {
		errs = multierr.Append(errs, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "invalid return quantity").
			WithDetails(rejected))
	}
	if errs != nil {
		return nil, errs
	}
	return items, nil
}

// moveIntoFulfillment accumulates the items into the order's fulfillment of
// the given status, creating it when absent, and applies the source-side
// accounting: decrement the source fulfillment line or consume unfulfilled
// order-line quantity, then release the matching reservation.
func (s *service) moveIntoFulfillment(ctx context.Context, tx *gorm.DB, repo Repository, orderID uuid.UUID, status enums.FulfillmentStatus, items []refundableItem) (*models.Fulfillment, error) {
	target, err := repo.FindMergeable(ctx, orderID, status)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find mergeable fulfillment")
	}
	if target == nil {
		ordinal, err := repo.NextOrdinal(ctx, orderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next fulfillment ordinal")
		}
		target = &models.Fulfillment{
			ID:               uuid.New(),
			OrderID:          orderID,
			FulfillmentOrder: ordinal,
			Status:           status,
		}
		if err := repo.CreateFulfillment(ctx, target); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return fulfillment")
		}
	}

	for _, item := range items {
		existing, err := repo.FindMergeTarget(ctx, target.ID, item.orderLine.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find merge target line")
		}
		if existing != nil {
			if err := repo.AdjustFulfillmentLineQuantity(ctx, existing.ID, item.quantity); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extend return line")
			}
			existing.Quantity += item.quantity
		} else {
			line := &models.FulfillmentLine{
				ID:            uuid.New(),
				FulfillmentID: target.ID,
				OrderLineID:   item.orderLine.ID,
				Quantity:      item.quantity,
			}
			if item.fulfillmentLine != nil {
				line.StockID = item.fulfillmentLine.StockID
			}
			if err := repo.CreateFulfillmentLine(ctx, line); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return line")
			}
			target.Lines = append(target.Lines, *line)
		}

		switch item.kind {
		case sourceFulfillmentLine:
			if err := repo.AdjustFulfillmentLineQuantity(ctx, item.fulfillmentLine.ID, -item.quantity); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement source line")
			}
		case sourceOrderLine:
			// Attribute the consumed unfulfilled quantity so the derived order
			// status counts it through this fulfillment.
			if err := repo.AdjustLineFulfilled(ctx, item.orderLine.ID, item.quantity); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume unfulfilled quantity")
			}
		}

		if err := stock.DeallocateForLine(ctx, tx, item.orderLine.ID, item.quantity); err != nil {
			return nil, err
		}
	}
	return target, nil
}

// spawnReplacement creates the single draft reissue order for a replace set.
func (s *service) spawnReplacement(ctx context.Context, ordersRepo orders.Repository, source *models.Order, replaceSet []refundableItem) (*models.Order, error) {
	number, err := ordersRepo.NextOrderNumber(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "next order number")
	}

	sourceID := source.ID
	replacement := &models.Order{
		ID:              uuid.New(),
		Number:          number,
		Status:          enums.OrderStatusDraft,
		Origin:          enums.OrderOriginReissue,
		Currency:        source.Currency,
		ChannelSlug:     source.ChannelSlug,
		OriginalOrderID: &sourceID,
		ShippingAddress: source.ShippingAddress.Clone(),
		BillingAddress:  source.BillingAddress.Clone(),
		Metadata:        source.Metadata.Clone(),
	}
	if err := ordersRepo.CreateOrder(ctx, replacement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create replacement order")
	}

	lines := make([]models.OrderLine, 0, len(replaceSet))
	for _, item := range replaceSet {
		src := item.orderLine
		lines = append(lines, models.OrderLine{
			ID:              uuid.New(),
			OrderID:         replacement.ID,
			VariantID:       src.VariantID,
			ProductName:     src.ProductName,
			VariantName:     src.VariantName,
			SKU:             src.SKU,
			TaxRate:         src.TaxRate,
			UnitPriceGross:  src.UnitPriceGross,
			UnitPriceNet:    src.UnitPriceNet,
			PreorderEndDate: src.PreorderEndDate,
			Quantity:        item.quantity,
		})
	}
	if err := ordersRepo.CreateOrderLines(ctx, lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create replacement lines")
	}
	replacement.Lines = lines
	return replacement, nil
}

// returnAmount computes the billable amount: the return set at gross unit
// prices plus shipping when requested. The replace set is never billed.
func returnAmount(items []refundableItem, input Input, order *models.Order) decimal.Decimal {
	if input.Amount != nil {
		return *input.Amount
	}
	amount := decimal.Zero
	for _, item := range items {
		if item.replace {
			continue
		}
		amount = amount.Add(item.unitPriceGross().Mul(decimal.NewFromInt(int64(item.quantity))))
	}
	if input.RefundShipping {
		amount = amount.Add(order.ShippingPriceGross)
	}
	return amount
}

// buildRefundRequest resolves which payment(s) the refund targets. An explicit
// amount is only legal against a single unambiguous payment.
func buildRefundRequest(order *models.Order, input Input, payments []models.Payment, amount decimal.Decimal) (*gateway.RefundRequest, error) {
	req := &gateway.RefundRequest{
		Amount:   amount,
		Currency: order.Currency,
	}

	if len(input.Allocations) > 0 {
		// Zero-computed allocations are silently dropped; caller order kept.
		for _, allocation := range input.Allocations {
			if allocation.Amount.IsZero() {
				continue
			}
			req.Allocations = append(req.Allocations, gateway.RefundAllocation{
				PaymentID: allocation.PaymentID,
				Amount:    allocation.Amount,
			})
		}
		if len(req.Allocations) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeCannotRefund, "refund allocations sum to zero")
		}
		return req, nil
	}

	if input.PaymentID != nil {
		req.PaymentID = input.PaymentID
		return req, nil
	}

	switch len(payments) {
	case 0:
		return nil, pkgerrors.New(pkgerrors.CodeCannotRefund, "order has no active payment")
	case 1:
		id := payments[0].ID
		req.PaymentID = &id
		return req, nil
	default:
		if input.Amount != nil {
			return nil, pkgerrors.New(pkgerrors.CodeOrderHasMultiplePayments, "explicit amount requires a single payment")
		}
		return nil, pkgerrors.New(pkgerrors.CodeOrderHasMultiplePayments, "order has multiple active payments")
	}
}

func (s *service) notify(ctx context.Context, event notify.Event, payload notify.Payload) {
	if err := s.dispatcher.Dispatch(ctx, event, payload); err != nil && s.log != nil {
		ctx = s.log.WithField(ctx, "notification", string(event))
		s.log.Warn(ctx, "notification dispatch failed")
	}
}
