package enums

import "fmt"

// FulfillmentStatus tracks the lifecycle stage of one fulfillment batch.
type FulfillmentStatus string

const (
	FulfillmentStatusFulfilled           FulfillmentStatus = "fulfilled"
	FulfillmentStatusRefunded            FulfillmentStatus = "refunded"
	FulfillmentStatusReturned            FulfillmentStatus = "returned"
	FulfillmentStatusReplaced            FulfillmentStatus = "replaced"
	FulfillmentStatusRefundedAndReturned FulfillmentStatus = "refunded_and_returned"
	FulfillmentStatusCanceled            FulfillmentStatus = "canceled"
	FulfillmentStatusWaitingForApproval  FulfillmentStatus = "waiting_for_approval"
)

var validFulfillmentStatuses = []FulfillmentStatus{
	FulfillmentStatusFulfilled,
	FulfillmentStatusRefunded,
	FulfillmentStatusReturned,
	FulfillmentStatusReplaced,
	FulfillmentStatusRefundedAndReturned,
	FulfillmentStatusCanceled,
	FulfillmentStatusWaitingForApproval,
}

// String implements fmt.Stringer.
func (f FulfillmentStatus) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentStatus.
func (f FulfillmentStatus) IsValid() bool {
	for _, candidate := range validFulfillmentStatuses {
		if candidate == f {
			return true
		}
	}
	return false
}

// CountsAsFulfilled reports whether the fulfillment's quantities count toward the
// fulfilled bucket when deriving order status.
func (f FulfillmentStatus) CountsAsFulfilled() bool {
	return f == FulfillmentStatusFulfilled || f == FulfillmentStatusReplaced
}

// CountsAsReturned reports whether the fulfillment's quantities count toward the
// returned bucket when deriving order status.
func (f FulfillmentStatus) CountsAsReturned() bool {
	return f == FulfillmentStatusReturned || f == FulfillmentStatusRefundedAndReturned
}

// IsCancelable reports whether a cancel request is legal for the status.
func (f FulfillmentStatus) IsCancelable() bool {
	return f == FulfillmentStatusFulfilled || f == FulfillmentStatusWaitingForApproval
}

// ParseFulfillmentStatus converts raw input into a FulfillmentStatus.
func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	for _, candidate := range validFulfillmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}
