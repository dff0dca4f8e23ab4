package enums

import "fmt"

// OrderEventType classifies entries in an order's audit trail.
type OrderEventType string

const (
	OrderEventFulfillmentFulfilledItems OrderEventType = "fulfillment_fulfilled_items"
	OrderEventFulfillmentAwaitsApproval OrderEventType = "fulfillment_awaits_approval"
	OrderEventFulfillmentApproved       OrderEventType = "fulfillment_approved"
	OrderEventFulfillmentCanceled       OrderEventType = "fulfillment_canceled"
	OrderEventFulfillmentReturned       OrderEventType = "fulfillment_returned"
	OrderEventFulfillmentReplaced       OrderEventType = "fulfillment_replaced"
	OrderEventFulfillmentRefunded       OrderEventType = "fulfillment_refunded"
	OrderEventPaymentRefundFailed       OrderEventType = "payment_refund_failed"
	OrderEventTrackingUpdated           OrderEventType = "tracking_updated"
	OrderEventReplacementCreated        OrderEventType = "order_replacement_created"
)

var validOrderEventTypes = []OrderEventType{
	OrderEventFulfillmentFulfilledItems,
	OrderEventFulfillmentAwaitsApproval,
	OrderEventFulfillmentApproved,
	OrderEventFulfillmentCanceled,
	OrderEventFulfillmentReturned,
	OrderEventFulfillmentReplaced,
	OrderEventFulfillmentRefunded,
	OrderEventPaymentRefundFailed,
	OrderEventTrackingUpdated,
	OrderEventReplacementCreated,
}

// String implements fmt.Stringer.
func (o OrderEventType) String() string {
	return string(o)
}

// IsValid reports whether the value is known.
func (o OrderEventType) IsValid() bool {
	for _, candidate := range validOrderEventTypes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderEventType converts raw input into an OrderEventType.
func ParseOrderEventType(value string) (OrderEventType, error) {
	for _, candidate := range validOrderEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order event type %q", value)
}
