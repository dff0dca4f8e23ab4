package orders

import (
	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// QuantityBuckets attributes every ordered unit to the fulfillment tier it
// currently sits in. Pending-approval units count as not fulfilled.
type QuantityBuckets struct {
	Total           int
	Fulfilled       int
	Returned        int
	PendingApproval int
}

// BucketQuantities sums fulfillment-line quantities from non-canceled
// fulfillments into the three status tiers.
func BucketQuantities(lines []models.OrderLine, fulfillments []models.Fulfillment) QuantityBuckets {
	buckets := QuantityBuckets{}
	for _, line := range lines {
		buckets.Total += line.Quantity
	}
	for _, fulfillment := range fulfillments {
		if fulfillment.Status == enums.FulfillmentStatusCanceled {
			continue
		}
		var quantity int
		for _, fl := range fulfillment.Lines {
			quantity += fl.Quantity
		}
		switch {
		case fulfillment.Status.CountsAsFulfilled():
			buckets.Fulfilled += quantity
		case fulfillment.Status.CountsAsReturned():
			buckets.Returned += quantity
		case fulfillment.Status == enums.FulfillmentStatusWaitingForApproval:
			buckets.PendingApproval += quantity
		}
	}
	return buckets
}

// DeriveStatus recomputes the fulfillment-derived order status. Explicit
// states (draft, unconfirmed, canceled, expired) are never overwritten. Any
// returned quantity takes priority over the fulfillment tier.
func DeriveStatus(current enums.OrderStatus, lines []models.OrderLine, fulfillments []models.Fulfillment) enums.OrderStatus {
	if !current.IsFulfillmentDerived() {
		return current
	}

	buckets := BucketQuantities(lines, fulfillments)
	if buckets.Total == 0 {
		return enums.OrderStatusUnfulfilled
	}

	switch {
	case buckets.Returned >= buckets.Total:
		return enums.OrderStatusReturned
	case buckets.Returned > 0:
		return enums.OrderStatusPartiallyReturned
	case buckets.Fulfilled >= buckets.Total:
		return enums.OrderStatusFulfilled
	case buckets.Fulfilled > 0:
		return enums.OrderStatusPartiallyFulfilled
	default:
		return enums.OrderStatusUnfulfilled
	}
}
