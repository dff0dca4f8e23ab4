package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lvalenta/fulfillment-core/pkg/enums"
	"github.com/lvalenta/fulfillment-core/pkg/types"
)

// Order is the root aggregate for fulfillment and money movement. Replacement
// orders spawned by return-and-replace flows reference their source through
// OriginalOrderID and carry Origin reissue.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Number          int64             `gorm:"column:number;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'unfulfilled'"`
	Origin          enums.OrderOrigin `gorm:"column:origin;type:text;not null;default:'checkout'"`
	Currency        enums.Currency    `gorm:"column:currency;type:text;not null;default:'USD'"`
	ChannelSlug     string            `gorm:"column:channel_slug;not null;default:'default'"`
	OriginalOrderID *uuid.UUID        `gorm:"column:original_order_id;type:uuid"`

	TotalGross         decimal.Decimal `gorm:"column:total_gross;type:numeric(20,6);not null;default:0"`
	TotalNet           decimal.Decimal `gorm:"column:total_net;type:numeric(20,6);not null;default:0"`
	ShippingPriceGross decimal.Decimal `gorm:"column:shipping_price_gross;type:numeric(20,6);not null;default:0"`
	ShippingPriceNet   decimal.Decimal `gorm:"column:shipping_price_net;type:numeric(20,6);not null;default:0"`

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

	ShippingAddress *types.Address `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address `gorm:"column:billing_address;type:jsonb;serializer:json"`
	Metadata        types.JSONMap  `gorm:"column:metadata;type:jsonb;serializer:json"`

	Lines          []OrderLine          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Fulfillments   []Fulfillment        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	GrantedRefunds []OrderGrantedRefund `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderGrantedRefund is a refund amount attributed to the order independent of
// any specific transaction. The sum of granted refunds reduces the charge target.
type OrderGrantedRefund struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(20,6);not null"`
	Reason    string          `gorm:"column:reason;not null;default:''"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
