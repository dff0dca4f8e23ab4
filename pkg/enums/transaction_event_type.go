package enums

import "fmt"

// TransactionEventType classifies entries in a transaction's audit trail.
type TransactionEventType string

const (
	TransactionEventAuthorizationSuccess    TransactionEventType = "authorization_success"
	TransactionEventChargeSuccess           TransactionEventType = "charge_success"
	TransactionEventRefundSuccess           TransactionEventType = "refund_success"
	TransactionEventCancelSuccess           TransactionEventType = "cancel_success"
	TransactionEventAuthorizationAdjustment TransactionEventType = "authorization_adjustment"
	TransactionEventInfo                    TransactionEventType = "info"
)

var validTransactionEventTypes = []TransactionEventType{
	TransactionEventAuthorizationSuccess,
	TransactionEventChargeSuccess,
	TransactionEventRefundSuccess,
	TransactionEventCancelSuccess,
	TransactionEventAuthorizationAdjustment,
	TransactionEventInfo,
}

// String implements fmt.Stringer.
func (t TransactionEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t TransactionEventType) IsValid() bool {
	for _, candidate := range validTransactionEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionEventType converts raw input into a TransactionEventType.
func ParseTransactionEventType(value string) (TransactionEventType, error) {
	for _, candidate := range validTransactionEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction event type %q", value)
}
