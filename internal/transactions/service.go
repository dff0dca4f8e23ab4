// Package transactions aggregates money movement. Every create or update of a
// transaction item re-derives the owning order's (or checkout's) totals and
// charge/authorize statuses under an ordered two-key lock so concurrent
// writers to the same pair never lose updates.
package transactions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/orders"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
	pkgerrors "github.com/lvalenta/fulfillment-core/pkg/errors"
	"github.com/lvalenta/fulfillment-core/pkg/lock"
	"github.com/lvalenta/fulfillment-core/pkg/logger"
	"github.com/lvalenta/fulfillment-core/pkg/notify"
)

// Amounts carries the confirmed and pending values of a transaction item. On
// update only non-nil fields change.
type Amounts struct {
	Authorized        *decimal.Decimal
	AuthorizedPending *decimal.Decimal
	Charged           *decimal.Decimal
	ChargedPending    *decimal.Decimal
	Refunded          *decimal.Decimal
	RefundedPending   *decimal.Decimal
	Canceled          *decimal.Decimal
	CanceledPending   *decimal.Decimal
}

// CreateInput creates one transaction item against exactly one owner.
type CreateInput struct {
	OrderID      *uuid.UUID
	CheckoutID   *uuid.UUID
	Name         string
	PSPReference *string
	Currency     enums.Currency
	Amounts      Amounts
	ActorID      *uuid.UUID
}

// UpdateInput adjusts the amounts of an existing item.
type UpdateInput struct {
	TransactionID uuid.UUID
	Amounts       Amounts
	PSPReference  *string
	ActorID       *uuid.UUID
}

// Service is the transaction amount aggregator.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.TransactionItem, error)
	Update(ctx context.Context, input UpdateInput) (*models.TransactionItem, error)
	AddInfoEvent(ctx context.Context, transactionID uuid.UUID, message string, actorID *uuid.UUID) (*models.TransactionEvent, error)
	Events(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionEvent, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type aggregateLocker interface {
	AcquireOrdered(ctx context.Context, keys ...string) (lock.ReleaseFunc, error)
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	tx         txRunner
	locker     aggregateLocker
	dispatcher notify.Dispatcher
	log        *logger.Logger
}

// NewService wires the aggregator.
func NewService(repo Repository, ordersRepo orders.Repository, tx txRunner, locker aggregateLocker, dispatcher notify.Dispatcher, log *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions: repository is required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("transactions: orders repository is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transactions: transaction runner is required")
	}
	if locker == nil {
		return nil, fmt.Errorf("transactions: aggregate locker is required")
	}
	if dispatcher == nil {
		dispatcher = notify.NopDispatcher{}
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		tx:         tx,
		locker:     locker,
		dispatcher: dispatcher,
		log:        log,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.TransactionItem, error) {
	if (input.OrderID == nil) == (input.CheckoutID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of order or checkout is required")
	}

	item := &models.TransactionItem{
		ID:           uuid.New(),
		OrderID:      input.OrderID,
		CheckoutID:   input.CheckoutID,
		Name:         input.Name,
		PSPReference: input.PSPReference,
		Currency:     input.Currency,

		AuthorizedValue:        valueOrZero(input.Amounts.Authorized),
		AuthorizedPendingValue: valueOrZero(input.Amounts.AuthorizedPending),
		ChargedValue:           valueOrZero(input.Amounts.Charged),
		ChargedPendingValue:    valueOrZero(input.Amounts.ChargedPending),
		RefundedValue:          valueOrZero(input.Amounts.Refunded),
		RefundedPendingValue:   valueOrZero(input.Amounts.RefundedPending),
		CanceledValue:          valueOrZero(input.Amounts.Canceled),
		CanceledPendingValue:   valueOrZero(input.Amounts.CanceledPending),
	}

	release, err := s.lockOwner(ctx, item)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, release)

	var transitions ownerTransitions
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction item")
		}

		// One full-value calculation event per non-zero confirmed amount.
		for _, entry := range []struct {
			amount decimal.Decimal
			typ    enums.TransactionEventType
		}{
			{item.AuthorizedValue, enums.TransactionEventAuthorizationSuccess},
			{item.ChargedValue, enums.TransactionEventChargeSuccess},
			{item.RefundedValue, enums.TransactionEventRefundSuccess},
			{item.CanceledValue, enums.TransactionEventCancelSuccess},
		} {
			if entry.amount.IsZero() {
				continue
			}
			if err := repo.CreateEvent(ctx, &models.TransactionEvent{
				ID:                uuid.New(),
				TransactionItemID: item.ID,
				Type:              entry.typ,
				Amount:            entry.amount,
				Currency:          item.Currency,
				PSPReference:      input.PSPReference,
				ActorID:           input.ActorID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction event")
			}
		}

		transitions, err = s.recalculate(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatchTransitions(ctx, item.OrderID, transitions)
	return item, nil
}

func (s *service) Update(ctx context.Context, input UpdateInput) (*models.TransactionItem, error) {
	var item *models.TransactionItem
	var transitions ownerTransitions

	current, err := s.repo.FindItem(ctx, input.TransactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction item")
	}

	release, err := s.lockOwner(ctx, current)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, release)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Re-read under the lock; the pre-lock read only resolved the owner.
		item, err = repo.FindItem(ctx, input.TransactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction item")
		}

		updates := map[string]any{}
		var events []models.TransactionEvent

		// Confirmed fields emit delta events, except authorized which emits a
		// single adjustment carrying the new absolute value.
		if input.Amounts.Authorized != nil && !input.Amounts.Authorized.Equal(item.AuthorizedValue) {
			updates["authorized_value"] = *input.Amounts.Authorized
			events = append(events, models.TransactionEvent{
				Type:   enums.TransactionEventAuthorizationAdjustment,
				Amount: *input.Amounts.Authorized,
			})
			item.AuthorizedValue = *input.Amounts.Authorized
		}
		if input.Amounts.Charged != nil && !input.Amounts.Charged.Equal(item.ChargedValue) {
			updates["charged_value"] = *input.Amounts.Charged
			events = append(events, models.TransactionEvent{
				Type:   enums.TransactionEventChargeSuccess,
				Amount: input.Amounts.Charged.Sub(item.ChargedValue),
			})
			item.ChargedValue = *input.Amounts.Charged
		}
		if input.Amounts.Refunded != nil && !input.Amounts.Refunded.Equal(item.RefundedValue) {
			updates["refunded_value"] = *input.Amounts.Refunded
			events = append(events, models.TransactionEvent{
				Type:   enums.TransactionEventRefundSuccess,
				Amount: input.Amounts.Refunded.Sub(item.RefundedValue),
			})
			item.RefundedValue = *input.Amounts.Refunded
		}
		if input.Amounts.Canceled != nil && !input.Amounts.Canceled.Equal(item.CanceledValue) {
			updates["canceled_value"] = *input.Amounts.Canceled
			events = append(events, models.TransactionEvent{
				Type:   enums.TransactionEventCancelSuccess,
				Amount: input.Amounts.Canceled.Sub(item.CanceledValue),
			})
			item.CanceledValue = *input.Amounts.Canceled
		}

		// Pending amounts change silently.
		if input.Amounts.AuthorizedPending != nil {
			updates["authorized_pending_value"] = *input.Amounts.AuthorizedPending
			item.AuthorizedPendingValue = *input.Amounts.AuthorizedPending
		}
		if input.Amounts.ChargedPending != nil {
			updates["charged_pending_value"] = *input.Amounts.ChargedPending
			item.ChargedPendingValue = *input.Amounts.ChargedPending
		}
		if input.Amounts.RefundedPending != nil {
			updates["refunded_pending_value"] = *input.Amounts.RefundedPending
			item.RefundedPendingValue = *input.Amounts.RefundedPending
		}
		if input.Amounts.CanceledPending != nil {
			updates["canceled_pending_value"] = *input.Amounts.CanceledPending
			item.CanceledPendingValue = *input.Amounts.CanceledPending
		}
		if input.PSPReference != nil {
			updates["psp_reference"] = *input.PSPReference
			item.PSPReference = input.PSPReference
		}

		if len(updates) > 0 {
			if err := repo.UpdateItem(ctx, item.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update transaction item")
			}
		}
		for i := range events {
			events[i].ID = uuid.New()
			events[i].TransactionItemID = item.ID
			events[i].Currency = item.Currency
			events[i].ActorID = input.ActorID
			if err := repo.CreateEvent(ctx, &events[i]); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transaction event")
			}
		}

		transitions, err = s.recalculate(ctx, tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatchTransitions(ctx, item.OrderID, transitions)
	return item, nil
}

func (s *service) AddInfoEvent(ctx context.Context, transactionID uuid.UUID, message string, actorID *uuid.UUID) (*models.TransactionEvent, error) {
	item, err := s.repo.FindItem(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction item")
	}
	event := &models.TransactionEvent{
		ID:                uuid.New(),
		TransactionItemID: item.ID,
		Type:              enums.TransactionEventInfo,
		Currency:          item.Currency,
		Message:           message,
		ActorID:           actorID,
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create info event")
	}
	return event, nil
}

func (s *service) Events(ctx context.Context, transactionID uuid.UUID) ([]models.TransactionEvent, error) {
	return s.repo.ListEvents(ctx, transactionID)
}

// ownerTransitions reports which aggregate statuses newly reached full during
// a recalculation. Each triggers its collaborator exactly once.
type ownerTransitions struct {
	fullyPaid       bool
	fullyAuthorized bool
	fullyRefunded   bool
}

// totals is the per-field sum across every transaction item of one owner.
type totals struct {
	authorized        decimal.Decimal
	authorizedPending decimal.Decimal
	charged           decimal.Decimal
	chargedPending    decimal.Decimal
	refunded          decimal.Decimal
	refundedPending   decimal.Decimal
	canceled          decimal.Decimal
	canceledPending   decimal.Decimal
}

func sumItems(items []models.TransactionItem) totals {
	t := totals{
		authorized:        decimal.Zero,
		authorizedPending: decimal.Zero,
		charged:           decimal.Zero,
		chargedPending:    decimal.Zero,
		refunded:          decimal.Zero,
		refundedPending:   decimal.Zero,
		canceled:          decimal.Zero,
		canceledPending:   decimal.Zero,
	}
	for _, item := range items {
		t.authorized = t.authorized.Add(item.AuthorizedValue)
		t.authorizedPending = t.authorizedPending.Add(item.AuthorizedPendingValue)
		t.charged = t.charged.Add(item.ChargedValue)
		t.chargedPending = t.chargedPending.Add(item.ChargedPendingValue)
		t.refunded = t.refunded.Add(item.RefundedValue)
		t.refundedPending = t.refundedPending.Add(item.RefundedPendingValue)
		t.canceled = t.canceled.Add(item.CanceledValue)
		t.canceledPending = t.canceledPending.Add(item.CanceledPendingValue)
	}
	return t
}

// recalculate re-reads every transaction item of the owner and writes the
// derived totals and statuses back. The caller holds the aggregate lock.
func (s *service) recalculate(ctx context.Context, tx *gorm.DB, item *models.TransactionItem) (ownerTransitions, error) {
	if item.OrderID != nil {
		return s.recalculateOrder(ctx, tx, *item.OrderID)
	}
	return s.recalculateCheckout(ctx, tx, *item.CheckoutID)
}

func (s *service) recalculateOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (ownerTransitions, error) {
	var transitions ownerTransitions
	repo := s.repo.WithTx(tx)
	ordersRepo := s.ordersRepo.WithTx(tx)

	order, err := ordersRepo.FindOrder(ctx, orderID)
	if err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	items, err := repo.ListItemsForOrder(ctx, orderID)
	if err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transaction items")
	}
	t := sumItems(items)

	// Legacy single-payment records still contribute while present.
	payments, err := ordersRepo.ListActivePayments(ctx, orderID)
	if err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	for _, payment := range payments {
		t.charged = t.charged.Add(payment.CapturedAmount)
		t.authorized = t.authorized.Add(payment.Total)
	}

	granted, err := ordersRepo.ListGrantedRefunds(ctx, orderID)
	if err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list granted refunds")
	}
	grantedTotal := decimal.Zero
	for _, refund := range granted {
		grantedTotal = grantedTotal.Add(refund.Amount)
	}

	chargeTarget := order.TotalGross.Sub(grantedTotal)
	chargeStatus := deriveChargeStatus(t.charged, chargeTarget)
	authorizeStatus := deriveAuthorizeStatus(t.authorized, order.TotalGross)

	transitions.fullyPaid = chargeStatus.IsPaidInFull() && !order.ChargeStatus.IsPaidInFull()
	transitions.fullyAuthorized = authorizeStatus == enums.AuthorizeStatusFull &&
		order.AuthorizeStatus != enums.AuthorizeStatusFull
	transitions.fullyRefunded = !order.TotalGross.IsZero() &&
		t.refunded.GreaterThanOrEqual(order.TotalGross) &&
		order.TotalRefunded.LessThan(order.TotalGross)

	if err := ordersRepo.UpdateOrder(ctx, orderID, map[string]any{
		"total_authorized":         t.authorized,
		"total_authorized_pending": t.authorizedPending,
		"total_charged":            t.charged,
		"total_charged_pending":    t.chargedPending,
		"total_refunded":           t.refunded,
		"total_refunded_pending":   t.refundedPending,
		"total_canceled":           t.canceled,
		"total_canceled_pending":   t.canceledPending,
		"charge_status":            chargeStatus,
		"authorize_status":         authorizeStatus,
	}); err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order totals")
	}
	return transitions, nil
}

func (s *service) recalculateCheckout(ctx context.Context, tx *gorm.DB, checkoutID uuid.UUID) (ownerTransitions, error) {
	var transitions ownerTransitions
	repo := s.repo.WithTx(tx)

	checkout, err := repo.FindCheckout(ctx, checkoutID)
	if err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout")
	}
	items, err := repo.ListItemsForCheckout(ctx, checkoutID)
	if err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transaction items")
	}
	t := sumItems(items)

	chargeStatus := deriveChargeStatus(t.charged, checkout.TotalGross)
	authorizeStatus := deriveAuthorizeStatus(t.authorized, checkout.TotalGross)

	if err := repo.UpdateCheckout(ctx, checkoutID, map[string]any{
		"total_authorized":         t.authorized,
		"total_authorized_pending": t.authorizedPending,
		"total_charged":            t.charged,
		"total_charged_pending":    t.chargedPending,
		"total_refunded":           t.refunded,
		"total_refunded_pending":   t.refundedPending,
		"total_canceled":           t.canceled,
		"total_canceled_pending":   t.canceledPending,
		"charge_status":            chargeStatus,
		"authorize_status":         authorizeStatus,
	}); err != nil {
		return transitions, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update checkout totals")
	}
	return transitions, nil
}

// deriveChargeStatus compares the collected amount to the charge target. The
// target already excludes granted refunds.
func deriveChargeStatus(charged, target decimal.Decimal) enums.ChargeStatus {
	switch {
	case charged.IsZero() && target.GreaterThan(decimal.Zero):
		return enums.ChargeStatusNone
	case charged.Equal(target):
		return enums.ChargeStatusFull
	case charged.GreaterThan(target):
		return enums.ChargeStatusOvercharged
	case charged.GreaterThan(decimal.Zero):
		return enums.ChargeStatusPartial
	default:
		return enums.ChargeStatusNone
	}
}

// deriveAuthorizeStatus compares against the raw order total; granted refunds
// do not reduce the authorize target.
func deriveAuthorizeStatus(authorized, target decimal.Decimal) enums.AuthorizeStatus {
	switch {
	case authorized.IsZero():
		return enums.AuthorizeStatusNone
	case authorized.GreaterThanOrEqual(target) && target.GreaterThan(decimal.Zero):
		return enums.AuthorizeStatusFull
	default:
		return enums.AuthorizeStatusPartial
	}
}

// lockOwner serializes writers against the (owner, transaction) pair.
func (s *service) lockOwner(ctx context.Context, item *models.TransactionItem) (lock.ReleaseFunc, error) {
	ownerKey := ""
	switch {
	case item.OrderID != nil:
		ownerKey = "order:" + item.OrderID.String()
	case item.CheckoutID != nil:
		ownerKey = "checkout:" + item.CheckoutID.String()
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction item has no owner")
	}
	release, err := s.locker.AcquireOrdered(ctx, ownerKey, "transaction:"+item.ID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire aggregate lock")
	}
	return release, nil
}

func (s *service) release(ctx context.Context, release lock.ReleaseFunc) {
	if release == nil {
		return
	}
	if err := release(ctx); err != nil && s.log != nil {
		s.log.Warn(ctx, "releasing aggregate lock failed")
	}
}

func (s *service) dispatchTransitions(ctx context.Context, orderID *uuid.UUID, transitions ownerTransitions) {
	if orderID == nil {
		return
	}
	payload := notify.Payload{"order_id": orderID.String()}
	if transitions.fullyPaid {
		s.notify(ctx, notify.EventOrderFullyPaid, payload)
	}
	if transitions.fullyAuthorized {
		s.notify(ctx, notify.EventOrderFullyAuthorized, payload)
	}
	if transitions.fullyRefunded {
		s.notify(ctx, notify.EventOrderFullyRefunded, payload)
	}
}

func (s *service) notify(ctx context.Context, event notify.Event, payload notify.Payload) {
	if err := s.dispatcher.Dispatch(ctx, event, payload); err != nil && s.log != nil {
		ctx = s.log.WithField(ctx, "notification", string(event))
		s.log.Warn(ctx, "notification dispatch failed")
	}
}

func valueOrZero(v *decimal.Decimal) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return *v
}
