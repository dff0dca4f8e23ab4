// Package notify carries the fire-and-forget collaborator notifications the
// core emits after state transitions. Dispatch failures never fail the
// transition that triggered them.
package notify

import (
	"context"

	"github.com/lvalenta/fulfillment-core/pkg/logger"
)

// Event names the collaborator hooks the core invokes.
type Event string

const (
	EventOrderUpdated          Event = "order_updated"
	EventOrderFullyPaid        Event = "order_fully_paid"
	EventOrderFullyAuthorized  Event = "order_fully_authorized"
	EventOrderFullyRefunded    Event = "order_fully_refunded"
	EventFulfillmentApproved   Event = "fulfillment_approved"
	EventTrackingNumberUpdated Event = "tracking_number_updated"
)

// Payload is the structured bag attached to a notification.
type Payload map[string]any

// Dispatcher delivers notifications to the webhook/notification collaborator.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event, payload Payload) error
}

// LogDispatcher records notifications on the structured log. Used as the
// default wiring when no webhook collaborator is attached, and convenient in
// development.
type LogDispatcher struct {
	log *logger.Logger
}

// NewLogDispatcher builds a dispatcher that logs every notification.
func NewLogDispatcher(log *logger.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event Event, payload Payload) error {
	if d.log == nil {
		return nil
	}
	ctx = d.log.WithFields(ctx, map[string]any{
		"notification": string(event),
		"payload":      payload,
	})
	d.log.Info(ctx, "notification dispatched")
	return nil
}

// NopDispatcher drops every notification.
type NopDispatcher struct{}

func (NopDispatcher) Dispatch(context.Context, Event, Payload) error { return nil }
