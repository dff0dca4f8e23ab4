package returns

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/internal/orders"
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
	pkgerrors "github.com/lvalenta/fulfillment-core/pkg/errors"
	"github.com/lvalenta/fulfillment-core/pkg/gateway"
	"github.com/lvalenta/fulfillment-core/pkg/notify"
	"github.com/lvalenta/fulfillment-core/pkg/types"
)

type gormTx struct {
	db *gorm.DB
}

func (g gormTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

type stubGateway struct {
	refunds []gateway.RefundRequest
	err     error
}

func (s *stubGateway) Capture(context.Context, uuid.UUID, decimal.Decimal) error { return nil }

func (s *stubGateway) Refund(_ context.Context, req gateway.RefundRequest) error {
	s.refunds = append(s.refunds, req)
	return s.err
}

func (s *stubGateway) Void(context.Context, uuid.UUID) error { return nil }

type fixture struct {
	db *gorm.DB
	gw *stubGateway
}

func newFixture(t *testing.T) (fixture, Service) {
	t.Helper()
	dsn := "file:returns_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderLine{},
		&models.Fulfillment{},
		&models.FulfillmentLine{},
		&models.OrderEvent{},
		&models.Payment{},
		&models.Stock{},
		&models.Allocation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	gw := &stubGateway{}
	svc, err := NewService(NewRepository(db), orders.NewRepository(db), gw, gormTx{db: db}, notify.NopDispatcher{}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return fixture{db: db, gw: gw}, svc
}

type seeded struct {
	order       models.Order
	line        models.OrderLine
	fulfillment models.Fulfillment
	shippedLine models.FulfillmentLine
	payment     models.Payment
}

// seedFulfilledOrder creates an order with one line of qty 3 at unit price 10,
// shipping 5, fully fulfilled, with one active payment.
func seedFulfilledOrder(t *testing.T, db *gorm.DB) seeded {
	t.Helper()
	order := models.Order{
		ID:                 uuid.New(),
		Number:             1,
		Status:             enums.OrderStatusFulfilled,
		Currency:           enums.CurrencyUSD,
		ChannelSlug:        "default",
		TotalGross:         decimal.NewFromInt(35),
		ShippingPriceGross: decimal.NewFromInt(5),
		ShippingAddress:    &types.Address{Line1: "1 Main St", City: "Springfield", Country: "US"},
		BillingAddress:     &types.Address{Line1: "1 Main St", City: "Springfield", Country: "US"},
		Metadata:           types.JSONMap{"source": "test"},
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	variantID := uuid.New()
	line := models.OrderLine{
		ID:                uuid.New(),
		OrderID:           order.ID,
		VariantID:         &variantID,
		ProductName:       "widget",
		Quantity:          3,
		QuantityFulfilled: 3,
		UnitPriceGross:    decimal.NewFromInt(10),
		UnitPriceNet:      decimal.NewFromInt(8),
	}
	if err := db.Create(&line).Error; err != nil {
		t.Fatalf("seed line: %v", err)
	}

	fulfillment := models.Fulfillment{
		ID:               uuid.New(),
		OrderID:          order.ID,
		FulfillmentOrder: 1,
		Status:           enums.FulfillmentStatusFulfilled,
	}
	if err := db.Create(&fulfillment).Error; err != nil {
		t.Fatalf("seed fulfillment: %v", err)
	}
	shippedLine := models.FulfillmentLine{
		ID:            uuid.New(),
		FulfillmentID: fulfillment.ID,
		OrderLineID:   line.ID,
		Quantity:      3,
	}
	if err := db.Create(&shippedLine).Error; err != nil {
		t.Fatalf("seed fulfillment line: %v", err)
	}

	orderID := order.ID
	payment := models.Payment{
		ID:             uuid.New(),
		OrderID:        &orderID,
		IsActive:       true,
		Total:          decimal.NewFromInt(35),
		CapturedAmount: decimal.NewFromInt(35),
		Currency:       enums.CurrencyUSD,
	}
	if err := db.Create(&payment).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	return seeded{order: order, line: line, fulfillment: fulfillment, shippedLine: shippedLine, payment: payment}
}

func TestProcessRefundAndReturn(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	result, err := svc.Process(ctx, Input{
		OrderID: data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{
			{FulfillmentLineID: data.shippedLine.ID, Quantity: 2},
		},
		Refund:         true,
		RefundShipping: true,
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if result.ReturnFulfillment == nil {
		t.Fatal("expected return fulfillment")
	}
	if result.ReturnFulfillment.Status != enums.FulfillmentStatusRefundedAndReturned {
		t.Fatalf("expected refunded_and_returned got %s", result.ReturnFulfillment.Status)
	}

	// unit 10 x 2 + shipping 5
	want := decimal.NewFromInt(25)
	if !result.RefundAmount.Equal(want) {
		t.Fatalf("expected refund amount %s got %s", want, result.RefundAmount)
	}
	if len(fx.gw.refunds) != 1 {
		t.Fatalf("expected one gateway refund got %d", len(fx.gw.refunds))
	}
	if !fx.gw.refunds[0].Amount.Equal(want) {
		t.Fatalf("expected gateway amount %s got %s", want, fx.gw.refunds[0].Amount)
	}
	if fx.gw.refunds[0].PaymentID == nil || *fx.gw.refunds[0].PaymentID != data.payment.ID {
		t.Fatal("expected refund against the single active payment")
	}

	var recorded models.Fulfillment
	if err := fx.db.First(&recorded, "id = ?", result.ReturnFulfillment.ID).Error; err != nil {
		t.Fatalf("reload fulfillment: %v", err)
	}
	if recorded.TotalRefundAmount == nil || !recorded.TotalRefundAmount.Equal(want) {
		t.Fatalf("expected total_refund_amount %s got %v", want, recorded.TotalRefundAmount)
	}
	if recorded.ShippingRefundAmount == nil || !recorded.ShippingRefundAmount.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected shipping_refund_amount 5 got %v", recorded.ShippingRefundAmount)
	}

	var source models.FulfillmentLine
	if err := fx.db.First(&source, "id = ?", data.shippedLine.ID).Error; err != nil {
		t.Fatalf("reload source line: %v", err)
	}
	if source.Quantity != 1 {
		t.Fatalf("expected source line shrunk to 1 got %d", source.Quantity)
	}

	var order models.Order
	if err := fx.db.First(&order, "id = ?", data.order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != enums.OrderStatusPartiallyReturned {
		t.Fatalf("expected partially_returned got %s", order.Status)
	}
}

func TestProcessReturnWithoutRefund(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	result, err := svc.Process(ctx, Input{
		OrderID: data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{
			{FulfillmentLineID: data.shippedLine.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.ReturnFulfillment.Status != enums.FulfillmentStatusReturned {
		t.Fatalf("expected returned got %s", result.ReturnFulfillment.Status)
	}
	if len(fx.gw.refunds) != 0 {
		t.Fatal("expected no gateway call")
	}

	var order models.Order
	if err := fx.db.First(&order, "id = ?", data.order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != enums.OrderStatusReturned {
		t.Fatalf("expected returned got %s", order.Status)
	}
}

func TestProcessMergesRepeatedReturns(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	first, err := svc.Process(ctx, Input{
		OrderID:          data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{{FulfillmentLineID: data.shippedLine.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("first return: %v", err)
	}
	second, err := svc.Process(ctx, Input{
		OrderID:          data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{{FulfillmentLineID: data.shippedLine.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("second return: %v", err)
	}
	if first.ReturnFulfillment.ID != second.ReturnFulfillment.ID {
		t.Fatal("expected second return merged into the first fulfillment")
	}

	var count int64
	if err := fx.db.Model(&models.FulfillmentLine{}).
		Where("fulfillment_id = ?", first.ReturnFulfillment.ID).
		Count(&count).Error; err != nil {
		t.Fatalf("count lines: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected merged single line got %d", count)
	}
	var merged models.FulfillmentLine
	if err := fx.db.First(&merged, "fulfillment_id = ?", first.ReturnFulfillment.ID).Error; err != nil {
		t.Fatalf("load merged line: %v", err)
	}
	if merged.Quantity != 2 {
		t.Fatalf("expected merged quantity 2 got %d", merged.Quantity)
	}
}

func TestProcessReplaceSpawnsSingleDraftOrder(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	result, err := svc.Process(ctx, Input{
		OrderID: data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{
			{FulfillmentLineID: data.shippedLine.ID, Quantity: 2, Replace: true},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	replacement := result.ReplacementOrder
	if replacement == nil {
		t.Fatal("expected replacement order")
	}
	if replacement.Status != enums.OrderStatusDraft {
		t.Fatalf("expected draft got %s", replacement.Status)
	}
	if replacement.Origin != enums.OrderOriginReissue {
		t.Fatalf("expected reissue got %s", replacement.Origin)
	}
	if replacement.OriginalOrderID == nil || *replacement.OriginalOrderID != data.order.ID {
		t.Fatal("expected back reference to the source order")
	}
	if replacement.ShippingAddress == nil || replacement.ShippingAddress.Line1 != "1 Main St" {
		t.Fatal("expected cloned shipping address")
	}
	if len(replacement.Lines) != 1 {
		t.Fatalf("expected one snapshot line got %d", len(replacement.Lines))
	}
	snap := replacement.Lines[0]
	if snap.Quantity != 2 || snap.QuantityFulfilled != 0 {
		t.Fatalf("expected qty 2 unfulfilled snapshot got %d/%d", snap.Quantity, snap.QuantityFulfilled)
	}
	if !snap.UnitPriceGross.Equal(data.line.UnitPriceGross) {
		t.Fatal("expected unit price snapshot")
	}
	if snap.ProductName != data.line.ProductName {
		t.Fatal("expected product name snapshot")
	}

	if result.ReplaceFulfillment == nil || result.ReplaceFulfillment.Status != enums.FulfillmentStatusReplaced {
		t.Fatal("expected replaced fulfillment")
	}
	if len(fx.gw.refunds) != 0 {
		t.Fatal("replace set must never be billed")
	}

	events, err := orders.ListEvents(ctx, fx.db, data.order.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var sawReplacement bool
	for _, event := range events {
		if event.Type == enums.OrderEventReplacementCreated {
			sawReplacement = true
		}
	}
	if !sawReplacement {
		t.Fatal("expected order_replacement_created event")
	}
}

func TestProcessGatewayFailureKeepsQuantities(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)
	fx.gw.err = gateway.NewPaymentError("card_declined", "refund rejected", errors.New("declined"))

	_, err := svc.Process(ctx, Input{
		OrderID:          data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{{FulfillmentLineID: data.shippedLine.ID, Quantity: 2}},
		Refund:           true,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCannotRefund {
		t.Fatalf("expected CANNOT_REFUND got %v", err)
	}

	// Quantity mutations stand even though the money did not move.
	var source models.FulfillmentLine
	if err := fx.db.First(&source, "id = ?", data.shippedLine.ID).Error; err != nil {
		t.Fatalf("reload source line: %v", err)
	}
	if source.Quantity != 1 {
		t.Fatalf("expected quantities retained got %d", source.Quantity)
	}

	events, err := orders.ListEvents(ctx, fx.db, data.order.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var sawFailure bool
	for _, event := range events {
		if event.Type == enums.OrderEventPaymentRefundFailed {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatal("expected payment_refund_failed event")
	}
}

func TestProcessExplicitAmountWithMultiplePaymentsRejected(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	orderID := data.order.ID
	second := models.Payment{
		ID:       uuid.New(),
		OrderID:  &orderID,
		IsActive: true,
		Total:    decimal.NewFromInt(10),
		Currency: enums.CurrencyUSD,
	}
	if err := fx.db.Create(&second).Error; err != nil {
		t.Fatalf("seed second payment: %v", err)
	}

	amount := decimal.NewFromInt(10)
	_, err := svc.Process(ctx, Input{
		OrderID:          data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{{FulfillmentLineID: data.shippedLine.ID, Quantity: 1}},
		Refund:           true,
		Amount:           &amount,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOrderHasMultiplePayments {
		t.Fatalf("expected ORDER_HAS_MULTIPLE_PAYMENTS got %v", err)
	}
}

func TestProcessAllocationsDropZeroAndKeepOrder(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	first := uuid.New()
	second := uuid.New()
	result, err := svc.Process(ctx, Input{
		OrderID:          data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{{FulfillmentLineID: data.shippedLine.ID, Quantity: 2}},
		Refund:           true,
		Allocations: []AllocationInput{
			{PaymentID: first, Amount: decimal.NewFromInt(15)},
			{PaymentID: uuid.New(), Amount: decimal.Zero},
			{PaymentID: second, Amount: decimal.NewFromInt(5)},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	_ = result

	if len(fx.gw.refunds) != 1 {
		t.Fatalf("expected one gateway call got %d", len(fx.gw.refunds))
	}
	allocations := fx.gw.refunds[0].Allocations
	if len(allocations) != 2 {
		t.Fatalf("expected zero allocation dropped got %d", len(allocations))
	}
	if allocations[0].PaymentID != first || allocations[1].PaymentID != second {
		t.Fatal("expected caller ordering preserved")
	}
}

func TestProcessGiftCardLineRejected(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)
	if err := fx.db.Model(&models.OrderLine{}).Where("id = ?", data.line.ID).
		Update("is_gift_card", true).Error; err != nil {
		t.Fatalf("mark gift card: %v", err)
	}

	_, err := svc.Process(ctx, Input{
		OrderID:          data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{{FulfillmentLineID: data.shippedLine.ID, Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeGiftCardLine {
		t.Fatalf("expected GIFT_CARD_LINE got %v", err)
	}

	// Nothing applied.
	var source models.FulfillmentLine
	if err := fx.db.First(&source, "id = ?", data.shippedLine.ID).Error; err != nil {
		t.Fatalf("reload source line: %v", err)
	}
	if source.Quantity != 3 {
		t.Fatalf("expected untouched quantity got %d", source.Quantity)
	}
}

func TestProcessInvalidQuantityCollected(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	_, err := svc.Process(ctx, Input{
		OrderID: data.order.ID,
		FulfillmentLines: []FulfillmentLineInput{
			{FulfillmentLineID: data.shippedLine.ID, Quantity: 4},
		},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInvalidQuantity {
		t.Fatalf("expected INVALID_QUANTITY got %v", err)
	}
	details, ok := typed.Details().([]LineError)
	if !ok || len(details) != 1 {
		t.Fatalf("expected line error details got %v", typed.Details())
	}
	if details[0].Available != 3 || details[0].Requested != 4 {
		t.Fatalf("unexpected detail %+v", details[0])
	}
}

// Conservation: the sum of return and replace quantities drawn from the
// unfulfilled pool decrements it exactly.
func TestProcessConservesUnfulfilledQuantity(t *testing.T) {
	t.Parallel()

	fx, svc := newFixture(t)
	ctx := context.Background()
	data := seedFulfilledOrder(t, fx.db)

	// Open up unfulfilled quantity: 3 ordered, only 1 fulfilled.
	if err := fx.db.Model(&models.OrderLine{}).Where("id = ?", data.line.ID).
		Update("quantity_fulfilled", 1).Error; err != nil {
		t.Fatalf("adjust fulfilled: %v", err)
	}
	if err := fx.db.Model(&models.FulfillmentLine{}).Where("id = ?", data.shippedLine.ID).
		Update("quantity", 1).Error; err != nil {
		t.Fatalf("adjust shipped line: %v", err)
	}

	_, err := svc.Process(ctx, Input{
		OrderID: data.order.ID,
		OrderLines: []OrderLineInput{
			{OrderLineID: data.line.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	var line models.OrderLine
	if err := fx.db.First(&line, "id = ?", data.line.ID).Error; err != nil {
		t.Fatalf("reload line: %v", err)
	}
	if line.QuantityFulfilled != 2 {
		t.Fatalf("expected unfulfilled pool decremented by 1 got fulfilled %d", line.QuantityFulfilled)
	}
	if line.QuantityUnfulfilled() != 1 {
		t.Fatalf("expected 1 unfulfilled remaining got %d", line.QuantityUnfulfilled())
	}
}
