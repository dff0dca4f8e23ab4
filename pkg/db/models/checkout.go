package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// Checkout is the pre-order owner side of transaction items. Only the fields
// the amount aggregator needs are modeled here; checkout composition itself is
// out of scope.
type Checkout struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Currency   enums.Currency  `gorm:"column:currency;type:text;not null;default:'USD'"`
	TotalGross decimal.Decimal `gorm:"column:total_gross;type:numeric(20,6);not null;default:0"`
	TotalNet   decimal.Decimal `gorm:"column:total_net;type:numeric(20,6);not null;default:0"`

	TotalAuthorized        decimal.Decimal `gorm:"column:total_authorized;type:numeric(20,6);not null;default:0"`
	TotalAuthorizedPending decimal.Decimal `gorm:"column:total_authorized_pending;type:numeric(20,6);not null;default:0"`
	TotalCharged           decimal.Decimal `gorm:"column:total_charged;type:numeric(20,6);not null;default:0"`
	TotalChargedPending    decimal.Decimal `gorm:"column:total_charged_pending;type:numeric(20,6);not null;default:0"`
	TotalRefunded          decimal.Decimal `gorm:"column:total_refunded;type:numeric(20,6);not null;default:0"`
	TotalRefundedPending   decimal.Decimal `gorm:"column:total_refunded_pending;type:numeric(20,6);not null;default:0"`
	TotalCanceled          decimal.Decimal `gorm:"column:total_canceled;type:numeric(20,6);not null;default:0"`
	TotalCanceledPending   decimal.Decimal `gorm:"column:total_canceled_pending;type:numeric(20,6);not null;default:0"`

	ChargeStatus    enums.ChargeStatus    `gorm:"column:charge_status;type:text;not null;default:'none'"`
	AuthorizeStatus enums.AuthorizeStatus `gorm:"column:authorize_status;type:text;not null;default:'none'"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Payment is the legacy single-payment record kept alongside transaction items.
// Active payments take part in multi-payment refund validation and contribute
// their captured amounts to aggregate totals.
type Payment struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        *uuid.UUID         `gorm:"column:order_id;type:uuid;index"`
	CheckoutID     *uuid.UUID         `gorm:"column:checkout_id;type:uuid;index"`
	Gateway        string             `gorm:"column:gateway;not null;default:''"`
	IsActive       bool               `gorm:"column:is_active;not null;default:true"`
	ChargeStatus   enums.ChargeStatus `gorm:"column:charge_status;type:text;not null;default:'none'"`
	Total          decimal.Decimal    `gorm:"column:total;type:numeric(20,6);not null;default:0"`
	CapturedAmount decimal.Decimal    `gorm:"column:captured_amount;type:numeric(20,6);not null;default:0"`
	Currency       enums.Currency     `gorm:"column:currency;type:text;not null;default:'USD'"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
