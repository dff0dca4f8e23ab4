package orders

import (
	"testing"

	"github.com/lvalenta/fulfillment-core/pkg/db/models"
	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

func lines(quantities ...int) []models.OrderLine {
	out := make([]models.OrderLine, 0, len(quantities))
	for _, q := range quantities {
		out = append(out, models.OrderLine{Quantity: q})
	}
	return out
}

func fulfillmentOf(status enums.FulfillmentStatus, quantity int) models.Fulfillment {
	return models.Fulfillment{
		Status: status,
		Lines:  []models.FulfillmentLine{{Quantity: quantity}},
	}
}

func TestDeriveStatusNoFulfillments(t *testing.T) {
	got := DeriveStatus(enums.OrderStatusUnfulfilled, lines(5), nil)
	if got != enums.OrderStatusUnfulfilled {
		t.Fatalf("expected unfulfilled got %s", got)
	}
}

func TestDeriveStatusAllFulfilled(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusFulfilled, 3),
		fulfillmentOf(enums.FulfillmentStatusFulfilled, 2),
	}
	got := DeriveStatus(enums.OrderStatusPartiallyFulfilled, lines(3, 2), fulfillments)
	if got != enums.OrderStatusFulfilled {
		t.Fatalf("expected fulfilled got %s", got)
	}
}

func TestDeriveStatusPartialFulfillment(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusFulfilled, 2),
	}
	got := DeriveStatus(enums.OrderStatusUnfulfilled, lines(3, 2), fulfillments)
	if got != enums.OrderStatusPartiallyFulfilled {
		t.Fatalf("expected partially_fulfilled got %s", got)
	}
}

func TestDeriveStatusPendingApprovalNotFulfilled(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusWaitingForApproval, 5),
	}
	got := DeriveStatus(enums.OrderStatusUnfulfilled, lines(5), fulfillments)
	if got != enums.OrderStatusUnfulfilled {
		t.Fatalf("expected unfulfilled got %s", got)
	}
}

func TestDeriveStatusMixedPendingAndFulfilled(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusFulfilled, 2),
		fulfillmentOf(enums.FulfillmentStatusWaitingForApproval, 3),
	}
	got := DeriveStatus(enums.OrderStatusUnfulfilled, lines(5), fulfillments)
	if got != enums.OrderStatusPartiallyFulfilled {
		t.Fatalf("expected partially_fulfilled got %s", got)
	}
}

func TestDeriveStatusReturnedTierWins(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusFulfilled, 4),
		fulfillmentOf(enums.FulfillmentStatusReturned, 1),
	}
	got := DeriveStatus(enums.OrderStatusFulfilled, lines(5), fulfillments)
	if got != enums.OrderStatusPartiallyReturned {
		t.Fatalf("expected partially_returned got %s", got)
	}
}

func TestDeriveStatusFullyReturned(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusReturned, 3),
		fulfillmentOf(enums.FulfillmentStatusRefundedAndReturned, 2),
	}
	got := DeriveStatus(enums.OrderStatusPartiallyReturned, lines(3, 2), fulfillments)
	if got != enums.OrderStatusReturned {
		t.Fatalf("expected returned got %s", got)
	}
}

func TestDeriveStatusReplacedCountsAsFulfilled(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusReplaced, 5),
	}
	got := DeriveStatus(enums.OrderStatusUnfulfilled, lines(5), fulfillments)
	if got != enums.OrderStatusFulfilled {
		t.Fatalf("expected fulfilled got %s", got)
	}
}

func TestDeriveStatusCanceledFulfillmentIgnored(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusCanceled, 5),
	}
	got := DeriveStatus(enums.OrderStatusUnfulfilled, lines(5), fulfillments)
	if got != enums.OrderStatusUnfulfilled {
		t.Fatalf("expected unfulfilled got %s", got)
	}
}

func TestDeriveStatusExplicitStatesUntouched(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusFulfilled, 5),
	}
	for _, status := range []enums.OrderStatus{
		enums.OrderStatusDraft,
		enums.OrderStatusUnconfirmed,
		enums.OrderStatusCanceled,
		enums.OrderStatusExpired,
	} {
		if got := DeriveStatus(status, lines(5), fulfillments); got != status {
			t.Fatalf("expected %s to stay got %s", status, got)
		}
	}
}

func TestBucketQuantities(t *testing.T) {
	fulfillments := []models.Fulfillment{
		fulfillmentOf(enums.FulfillmentStatusFulfilled, 2),
		fulfillmentOf(enums.FulfillmentStatusReturned, 1),
		fulfillmentOf(enums.FulfillmentStatusWaitingForApproval, 3),
		fulfillmentOf(enums.FulfillmentStatusCanceled, 4),
	}
	buckets := BucketQuantities(lines(4, 6), fulfillments)
	if buckets.Total != 10 {
		t.Fatalf("expected total 10 got %d", buckets.Total)
	}
	if buckets.Fulfilled != 2 {
		t.Fatalf("expected fulfilled 2 got %d", buckets.Fulfilled)
	}
	if buckets.Returned != 1 {
		t.Fatalf("expected returned 1 got %d", buckets.Returned)
	}
	if buckets.PendingApproval != 3 {
		t.Fatalf("expected pending 3 got %d", buckets.PendingApproval)
	}
}
