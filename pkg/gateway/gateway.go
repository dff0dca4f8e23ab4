// Package gateway defines the abstract payment-gateway contract consumed by the
// refund/return orchestrator. Concrete providers live with the API layer; the
// core only depends on capture/refund/void semantics.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lvalenta/fulfillment-core/pkg/enums"
)

// RefundAllocation assigns part of a refund to one payment. Order of the slice
// is meaningful and preserved by callers.
type RefundAllocation struct {
	PaymentID uuid.UUID
	Amount    decimal.Decimal
}

// RefundRequest targets either a single payment or an explicit allocation list,
// never both.
type RefundRequest struct {
	PaymentID   *uuid.UUID
	Allocations []RefundAllocation
	Amount      decimal.Decimal
	Currency    enums.Currency
	Metadata    map[string]string
}

// Gateway is the external payment processor contract.
type Gateway interface {
	Capture(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal) error
	Refund(ctx context.Context, req RefundRequest) error
	Void(ctx context.Context, paymentID uuid.UUID) error
}

// PaymentError is returned by gateway implementations for provider-side
// failures. The orchestrator surfaces these as CANNOT_REFUND.
type PaymentError struct {
	Code    string
	Message string
	cause   error
}

// NewPaymentError wraps a provider failure.
func NewPaymentError(code, message string, cause error) *PaymentError {
	return &PaymentError{Code: code, Message: message, cause: cause}
}

func (e *PaymentError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("payment gateway %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("payment gateway: %s", e.Message)
}

func (e *PaymentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}
