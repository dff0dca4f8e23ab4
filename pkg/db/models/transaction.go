package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// TransactionItem records money movement against exactly one order or one
// checkout. The four confirmed amounts are independently settable; pending
// counterparts track amounts requested from the gateway but not yet confirmed.
type TransactionItem struct {
	ID           uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      *uuid.UUID     `gorm:"column:order_id;type:uuid;index"`
	CheckoutID   *uuid.UUID     `gorm:"column:checkout_id;type:uuid;index"`
	Name         string         `gorm:"column:name;not null;default:''"`
	PSPReference *string        `gorm:"column:psp_reference"`
	Currency     enums.Currency `gorm:"column:currency;type:text;not null;default:'USD'"`

	AuthorizedValue        decimal.Decimal `gorm:"column:authorized_value;type:numeric(20,6);not null;default:0"`
	AuthorizedPendingValue decimal.Decimal `gorm:"column:authorized_pending_value;type:numeric(20,6);not null;default:0"`
	ChargedValue           decimal.Decimal `gorm:"column:charged_value;type:numeric(20,6);not null;default:0"`
	ChargedPendingValue    decimal.Decimal `gorm:"column:charged_pending_value;type:numeric(20,6);not null;default:0"`
	RefundedValue          decimal.Decimal `gorm:"column:refunded_value;type:numeric(20,6);not null;default:0"`
	RefundedPendingValue   decimal.Decimal `gorm:"column:refunded_pending_value;type:numeric(20,6);not null;default:0"`
	CanceledValue          decimal.Decimal `gorm:"column:canceled_value;type:numeric(20,6);not null;default:0"`
	CanceledPendingValue   decimal.Decimal `gorm:"column:canceled_pending_value;type:numeric(20,6);not null;default:0"`

	Events []TransactionEvent `gorm:"foreignKey:TransactionItemID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TransactionEvent is the append-only audit trail per transaction item. Amount
// is signed: calculation events carry deltas on update and full values on
// creation; authorization adjustments carry the new absolute value.
type TransactionEvent struct {
	ID                uuid.UUID                  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionItemID uuid.UUID                  `gorm:"column:transaction_item_id;type:uuid;not null;index"`
	Type              enums.TransactionEventType `gorm:"column:type;type:text;not null"`
	Amount            decimal.Decimal            `gorm:"column:amount;type:numeric(20,6);not null;default:0"`
	Currency          enums.Currency             `gorm:"column:currency;type:text;not null;default:'USD'"`
	PSPReference      *string                    `gorm:"column:psp_reference"`
	Message           string                     `gorm:"column:message;not null;default:''"`
	ActorID           *uuid.UUID                 `gorm:"column:actor_id;type:uuid"`
	CreatedAt         time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
