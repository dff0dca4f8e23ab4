package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// OrderEvent is the append-only audit trail per order. Parameters carry a
// structured bag specific to the event type (line/quantity pairs, payment ids).
type OrderEvent struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID            `gorm:"column:order_id;type:uuid;not null;index"`
	Type       enums.OrderEventType `gorm:"column:type;type:text;not null"`
	Parameters json.RawMessage      `gorm:"column:parameters;type:jsonb"`
	ActorID    *uuid.UUID           `gorm:"column:actor_id;type:uuid"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}
