package enums

import "fmt"

// ChargeStatus describes how much of an order's charge target has been collected.
type ChargeStatus string

const (
	ChargeStatusNone        ChargeStatus = "none"
	ChargeStatusPartial     ChargeStatus = "partial"
	ChargeStatusFull        ChargeStatus = "full"
	ChargeStatusOvercharged ChargeStatus = "overcharged"
)

var validChargeStatuses = []ChargeStatus{
	ChargeStatusNone,
	ChargeStatusPartial,
	ChargeStatusFull,
	ChargeStatusOvercharged,
}

// String implements fmt.Stringer.
func (c ChargeStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ChargeStatus) IsValid() bool {
	for _, candidate := range validChargeStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsPaidInFull reports whether the order has collected at least its charge target.
func (c ChargeStatus) IsPaidInFull() bool {
	return c == ChargeStatusFull || c == ChargeStatusOvercharged
}

// ParseChargeStatus converts raw input into a ChargeStatus.
func ParseChargeStatus(value string) (ChargeStatus, error) {
	for _, candidate := range validChargeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid charge status %q", value)
}
