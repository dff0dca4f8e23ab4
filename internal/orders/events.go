package orders

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
	pkgerrors "github.com/lvalenta/fulfillment-core/pkg/errors"
)

// EventInput captures the immutable data an order event requires.
type EventInput struct {
	OrderID    uuid.UUID
	Type       enums.OrderEventType
	Parameters any
	ActorID    *uuid.UUID
}

// LineQuantity is the {line, quantity} pair carried by fulfillment events.
type LineQuantity struct {
	OrderLineID uuid.UUID `json:"order_line_id"`
	Quantity    int       `json:"quantity"`
}

// EventLog appends order events inside the caller's transaction. The sink is
// append-only; nothing in the core reads it back to make decisions.
type EventLog struct{}

// NewEventLog exposes the default audit sink.
func NewEventLog() EventLog {
	return EventLog{}
}

// RecordEvent validates and persists one audit entry.
func (EventLog) RecordEvent(ctx context.Context, tx *gorm.DB, input EventInput) (*models.OrderEvent, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order event type")
	}

	var parameters json.RawMessage
	if input.Parameters != nil {
		encoded, err := json.Marshal(input.Parameters)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode event parameters")
		}
		parameters = encoded
	}

	event := &models.OrderEvent{
		ID:         uuid.New(),
		OrderID:    input.OrderID,
		Type:       input.Type,
		Parameters: parameters,
		ActorID:    input.ActorID,
	}
	if err := tx.WithContext(ctx).Create(event).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order event")
	}
	return event, nil
}

// ListEvents returns the order's audit trail oldest first.
func ListEvents(ctx context.Context, db *gorm.DB, orderID uuid.UUID) ([]models.OrderEvent, error) {
	var events []models.OrderEvent
	if err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order events")
	}
	return events, nil
}
