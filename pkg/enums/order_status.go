package enums

import "fmt"

// OrderStatus tracks the fulfillment-derived (or explicitly set) state of an order.
type OrderStatus string

const (
	OrderStatusDraft              OrderStatus = "draft"
	OrderStatusUnconfirmed        OrderStatus = "unconfirmed"
	OrderStatusUnfulfilled        OrderStatus = "unfulfilled"
	OrderStatusPartiallyFulfilled OrderStatus = "partially_fulfilled"
	OrderStatusFulfilled          OrderStatus = "fulfilled"
	OrderStatusPartiallyReturned  OrderStatus = "partially_returned"
	OrderStatusReturned           OrderStatus = "returned"
	OrderStatusCanceled           OrderStatus = "canceled"
	OrderStatusExpired            OrderStatus = "expired"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusUnconfirmed,
	OrderStatusUnfulfilled,
	OrderStatusPartiallyFulfilled,
	OrderStatusFulfilled,
	OrderStatusPartiallyReturned,
	OrderStatusReturned,
	OrderStatusCanceled,
	OrderStatusExpired,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// IsFulfillmentDerived reports whether status recomputation may overwrite the value.
// Draft, unconfirmed, canceled and expired orders are managed explicitly by their
// owning flows and are never touched by recomputation.
func (o OrderStatus) IsFulfillmentDerived() bool {
	switch o {
	case OrderStatusUnfulfilled, OrderStatusPartiallyFulfilled, OrderStatusFulfilled,
		OrderStatusPartiallyReturned, OrderStatusReturned:
		return true
	default:
		return false
	}
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
