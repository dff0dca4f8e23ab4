package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderLine{},
		&models.Fulfillment{},
		&models.FulfillmentLine{},
		&models.OrderEvent{},
		&models.OrderGrantedRefund{},
		&models.Payment{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, lineQuantities ...int) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:     uuid.New(),
		Number: 1,
		Status: status,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for _, q := range lineQuantities {
		line := models.OrderLine{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductName: "widget",
			Quantity:    q,
		}
		if err := db.Create(&line).Error; err != nil {
			t.Fatalf("seed line: %v", err)
		}
	}
	return order
}

func seedFulfillment(t *testing.T, db *gorm.DB, orderID uuid.UUID, status enums.FulfillmentStatus, lineID uuid.UUID, quantity int) *models.Fulfillment {
	t.Helper()
	fulfillment := &models.Fulfillment{
		ID:               uuid.New(),
		OrderID:          orderID,
		FulfillmentOrder: 1,
		Status:           status,
		Lines: []models.FulfillmentLine{{
			ID:          uuid.New(),
			OrderLineID: lineID,
			Quantity:    quantity,
		}},
	}
	if err := db.Create(fulfillment).Error; err != nil {
		t.Fatalf("seed fulfillment: %v", err)
	}
	return fulfillment
}

func TestNewServiceRequiresDeps(t *testing.T) {
	if _, err := NewService(nil, &gorm.DB{}); err == nil {
		t.Fatal("expected error creating service without repo")
	}
	if _, err := NewService(&repository{}, nil); err == nil {
		t.Fatal("expected error creating service without db")
	}
}

func TestRecomputeStatusPersistsDerivedTier(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)
	svc, err := NewService(repo, db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	order := seedOrder(t, db, enums.OrderStatusUnfulfilled, 5)
	var line models.OrderLine
	if err := db.First(&line, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	seedFulfillment(t, db, order.ID, enums.FulfillmentStatusFulfilled, line.ID, 5)

	if err := svc.RecomputeStatus(ctx, db, order.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	var got models.Order
	if err := db.First(&got, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != enums.OrderStatusFulfilled {
		t.Fatalf("expected fulfilled got %s", got.Status)
	}
}

func TestRecomputeStatusLeavesDraftAlone(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	order := seedOrder(t, db, enums.OrderStatusDraft, 2)
	var line models.OrderLine
	if err := db.First(&line, "order_id = ?", order.ID).Error; err != nil {
		t.Fatalf("load line: %v", err)
	}
	seedFulfillment(t, db, order.ID, enums.FulfillmentStatusFulfilled, line.ID, 2)

	if err := RecomputeStatusTx(ctx, db, repo, order.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	var got models.Order
	if err := db.First(&got, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.Status != enums.OrderStatusDraft {
		t.Fatalf("expected draft to stay got %s", got.Status)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db), db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.GetOrder(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestNextOrderNumber(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	repo := NewRepository(db)

	first, err := repo.NextOrderNumber(ctx)
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected 1 got %d", first)
	}

	seedOrder(t, db, enums.OrderStatusUnfulfilled)
	second, err := repo.NextOrderNumber(ctx)
	if err != nil {
		t.Fatalf("next number: %v", err)
	}
	if second != 2 {
		t.Fatalf("expected 2 got %d", second)
	}
}

func TestRecordEventRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusUnfulfilled, 1)

	log := NewEventLog()
	params := []LineQuantity{{OrderLineID: uuid.New(), Quantity: 3}}
	event, err := log.RecordEvent(ctx, db, EventInput{
		OrderID:    order.ID,
		Type:       enums.OrderEventFulfillmentFulfilledItems,
		Parameters: params,
	})
	if err != nil {
		t.Fatalf("record event: %v", err)
	}
	if event.ID == uuid.Nil {
		t.Fatal("expected event id")
	}

	events, err := ListEvents(ctx, db, order.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event got %d", len(events))
	}
	var decoded []LineQuantity
	if err := json.Unmarshal(events[0].Parameters, &decoded); err != nil {
		t.Fatalf("decode parameters: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Quantity != 3 {
		t.Fatalf("unexpected parameters: %+v", decoded)
	}
}

func TestRecordEventRejectsInvalidType(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	log := NewEventLog()
	_, err := log.RecordEvent(context.Background(), db, EventInput{
		OrderID: uuid.New(),
		Type:    enums.OrderEventType("bogus"),
	})
	if err == nil {
		t.Fatal("expected invalid type error")
	}
}
