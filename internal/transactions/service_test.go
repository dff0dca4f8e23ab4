package transactions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/orders"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
	"github.com/lvalenta/fulfillment-core/pkg/lock"
	"github.com/lvalenta/fulfillment-core/pkg/notify"
)

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type stubLocker struct {
	acquired [][]string
}

func (s *stubLocker) AcquireOrdered(_ context.Context, keys ...string) (lock.ReleaseFunc, error) {
	s.acquired = append(s.acquired, keys)
	return func(context.Context) error { return nil }, nil
}

type recordingDispatcher struct {
	events []notify.Event
}

func (d *recordingDispatcher) Dispatch(_ context.Context, event notify.Event, _ notify.Payload) error {
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) count(event notify.Event) int {
	n := 0
	for _, e := range d.events {
		if e == event {
			n++
		}
	}
	return n
}

type fixture struct {
	db         *gorm.DB
	locker     *stubLocker
	dispatcher *recordingDispatcher
	svc        Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := "file:transactions_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderLine{},
		&models.Fulfillment{},
		&models.FulfillmentLine{},
		&models.OrderGrantedRefund{},
		&models.Payment{},
		&models.Checkout{},
		&models.TransactionItem{},
		&models.TransactionEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	locker := &stubLocker{}
	dispatcher := &recordingDispatcher{}
	svc, err := NewService(NewRepository(db), orders.NewRepository(db), gormTx{db: db}, locker, dispatcher, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{db: db, locker: locker, dispatcher: dispatcher, svc: svc}
}

func seedOrder(t *testing.T, db *gorm.DB, total int64) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:         uuid.New(),
		Number:     1,
		Status:     enums.OrderStatusUnfulfilled,
		Currency:   enums.CurrencyUSD,
		TotalGross: decimal.NewFromInt(total),
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func reloadOrder(t *testing.T, db *gorm.DB, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	if err := db.First(&order, "id = ?", id).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	return order
}

func d(v int64) *decimal.Decimal {
	out := decimal.NewFromInt(v)
	return &out
}

func TestCreateChargesOrderInFull(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 50)
	orderID := order.ID

	item, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Name:     "card",
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(50)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got := reloadOrder(t, fx.db, order.ID)
	if !got.TotalCharged.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected total_charged 50 got %s", got.TotalCharged)
	}
	if got.ChargeStatus != enums.ChargeStatusFull {
		t.Fatalf("expected charge full got %s", got.ChargeStatus)
	}

	events, err := fx.svc.Events(ctx, item.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected one event got %d", len(events))
	}
	if events[0].Type != enums.TransactionEventChargeSuccess {
		t.Fatalf("expected charge_success got %s", events[0].Type)
	}
	if !events[0].Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected full value 50 got %s", events[0].Amount)
	}

	if fx.dispatcher.count(notify.EventOrderFullyPaid) != 1 {
		t.Fatalf("expected one fully-paid notification got %d", fx.dispatcher.count(notify.EventOrderFullyPaid))
	}
}

func TestAuthorizationAdjustmentOnUpdate(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 50)
	orderID := order.ID

	item, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Authorized: d(10)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before := reloadOrder(t, fx.db, order.ID)
	if !before.TotalAuthorized.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected total_authorized 10 got %s", before.TotalAuthorized)
	}
	if before.AuthorizeStatus != enums.AuthorizeStatusPartial {
		t.Fatalf("expected authorize partial got %s", before.AuthorizeStatus)
	}

	if _, err := fx.svc.Update(ctx, UpdateInput{
		TransactionID: item.ID,
		Amounts:       Amounts{Authorized: d(0)},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	after := reloadOrder(t, fx.db, order.ID)
	if !after.TotalAuthorized.IsZero() {
		t.Fatalf("expected total_authorized decreased to 0 got %s", after.TotalAuthorized)
	}
	if after.AuthorizeStatus != enums.AuthorizeStatusNone {
		t.Fatalf("expected authorize none got %s", after.AuthorizeStatus)
	}

	events, err := fx.svc.Events(ctx, item.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var adjustments []models.TransactionEvent
	for _, event := range events {
		if event.Type == enums.TransactionEventAuthorizationAdjustment {
			adjustments = append(adjustments, event)
		}
	}
	if len(adjustments) != 1 {
		t.Fatalf("expected a single adjustment event got %d", len(adjustments))
	}
	// The adjustment carries the new absolute value, not the delta.
	if !adjustments[0].Amount.IsZero() {
		t.Fatalf("expected adjustment amount 0 got %s", adjustments[0].Amount)
	}
}

func TestUpdateEmitsDeltaEvents(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 100)
	orderID := order.ID

	item, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(10)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := fx.svc.Update(ctx, UpdateInput{
		TransactionID: item.ID,
		Amounts:       Amounts{Charged: d(25)},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	events, err := fx.svc.Events(ctx, item.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events got %d", len(events))
	}
	if !events[1].Amount.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected delta 15 got %s", events[1].Amount)
	}

	got := reloadOrder(t, fx.db, order.ID)
	if !got.TotalCharged.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected total_charged 25 got %s", got.TotalCharged)
	}
	if got.ChargeStatus != enums.ChargeStatusPartial {
		t.Fatalf("expected partial got %s", got.ChargeStatus)
	}
}

func TestGrantedRefundsReduceChargeTarget(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 50)
	orderID := order.ID

	if err := fx.db.Create(&models.OrderGrantedRefund{
		ID:      uuid.New(),
		OrderID: order.ID,
		Amount:  decimal.NewFromInt(20),
	}).Error; err != nil {
		t.Fatalf("seed granted refund: %v", err)
	}

	if _, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(30)},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	got := reloadOrder(t, fx.db, order.ID)
	if got.ChargeStatus != enums.ChargeStatusFull {
		t.Fatalf("expected full against reduced target got %s", got.ChargeStatus)
	}
	// Authorize target ignores granted refunds.
	if got.AuthorizeStatus != enums.AuthorizeStatusNone {
		t.Fatalf("expected authorize none got %s", got.AuthorizeStatus)
	}
}

func TestMultipleItemsAndLegacyPaymentSummed(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 100)
	orderID := order.ID

	if err := fx.db.Create(&models.Payment{
		ID:             uuid.New(),
		OrderID:        &orderID,
		IsActive:       true,
		Total:          decimal.NewFromInt(40),
		CapturedAmount: decimal.NewFromInt(40),
		Currency:       enums.CurrencyUSD,
	}).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	if _, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(25)},
	}); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if _, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(35)},
	}); err != nil {
		t.Fatalf("create second: %v", err)
	}

	got := reloadOrder(t, fx.db, order.ID)
	if !got.TotalCharged.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected total_charged 100 got %s", got.TotalCharged)
	}
	if got.ChargeStatus != enums.ChargeStatusFull {
		t.Fatalf("expected full got %s", got.ChargeStatus)
	}
}

func TestFullyPaidNotifiedExactlyOnce(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 50)
	orderID := order.ID

	item, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(50)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// A pending-only update recalculates but must not notify again.
	if _, err := fx.svc.Update(ctx, UpdateInput{
		TransactionID: item.ID,
		Amounts:       Amounts{RefundedPending: d(5)},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if n := fx.dispatcher.count(notify.EventOrderFullyPaid); n != 1 {
		t.Fatalf("expected exactly one fully-paid notification got %d", n)
	}
}

func TestFullyRefundedNotified(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 50)
	orderID := order.ID

	item, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(50)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := fx.svc.Update(ctx, UpdateInput{
		TransactionID: item.ID,
		Amounts:       Amounts{Refunded: d(50)},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if n := fx.dispatcher.count(notify.EventOrderFullyRefunded); n != 1 {
		t.Fatalf("expected one fully-refunded notification got %d", n)
	}
}

func TestCheckoutOwnerRecalculated(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	checkout := models.Checkout{
		ID:         uuid.New(),
		Currency:   enums.CurrencyUSD,
		TotalGross: decimal.NewFromInt(80),
	}
	if err := fx.db.Create(&checkout).Error; err != nil {
		t.Fatalf("seed checkout: %v", err)
	}
	checkoutID := checkout.ID

	if _, err := fx.svc.Create(ctx, CreateInput{
		CheckoutID: &checkoutID,
		Currency:   enums.CurrencyUSD,
		Amounts:    Amounts{Authorized: d(80)},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	var got models.Checkout
	if err := fx.db.First(&got, "id = ?", checkout.ID).Error; err != nil {
		t.Fatalf("reload checkout: %v", err)
	}
	if !got.TotalAuthorized.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected total_authorized 80 got %s", got.TotalAuthorized)
	}
	if got.AuthorizeStatus != enums.AuthorizeStatusFull {
		t.Fatalf("expected authorize full got %s", got.AuthorizeStatus)
	}
}

func TestCreateRequiresExactlyOneOwner(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()

	if _, err := fx.svc.Create(ctx, CreateInput{Currency: enums.CurrencyUSD}); err == nil {
		t.Fatal("expected error without owner")
	}
	orderID := uuid.New()
	checkoutID := uuid.New()
	if _, err := fx.svc.Create(ctx, CreateInput{
		OrderID:    &orderID,
		CheckoutID: &checkoutID,
		Currency:   enums.CurrencyUSD,
	}); err == nil {
		t.Fatal("expected error with both owners")
	}
}

func TestRecalculationAcquiresOwnerAndItemLock(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 50)
	orderID := order.ID

	item, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
		Amounts:  Amounts{Charged: d(10)},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if len(fx.locker.acquired) == 0 {
		t.Fatal("expected lock acquisition")
	}
	keys := fx.locker.acquired[0]
	if len(keys) != 2 {
		t.Fatalf("expected two lock keys got %v", keys)
	}
	wantOwner := "order:" + order.ID.String()
	wantItem := "transaction:" + item.ID.String()
	var sawOwner, sawItem bool
	for _, key := range keys {
		if key == wantOwner {
			sawOwner = true
		}
		if key == wantItem {
			sawItem = true
		}
	}
	if !sawOwner || !sawItem {
		t.Fatalf("expected owner and item keys got %v", keys)
	}
}

func TestAddInfoEvent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fx.db, 50)
	orderID := order.ID

	item, err := fx.svc.Create(ctx, CreateInput{
		OrderID:  &orderID,
		Currency: enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	event, err := fx.svc.AddInfoEvent(ctx, item.ID, "manual review requested", nil)
	if err != nil {
		t.Fatalf("add info event: %v", err)
	}
	if event.Type != enums.TransactionEventInfo {
		t.Fatalf("expected info got %s", event.Type)
	}
	if event.Message != "manual review requested" {
		t.Fatalf("unexpected message %q", event.Message)
	}
}
