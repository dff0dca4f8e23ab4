package enums

import "fmt"

// AuthorizeStatus describes how much of an order's total has been authorized.
type AuthorizeStatus string

const (
	AuthorizeStatusNone    AuthorizeStatus = "none"
	AuthorizeStatusPartial AuthorizeStatus = "partial"
	AuthorizeStatusFull    AuthorizeStatus = "full"
)

var validAuthorizeStatuses = []AuthorizeStatus{
	AuthorizeStatusNone,
	AuthorizeStatusPartial,
	AuthorizeStatusFull,
}

// String implements fmt.Stringer.
func (a AuthorizeStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is known.
func (a AuthorizeStatus) IsValid() bool {
	for _, candidate := range validAuthorizeStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuthorizeStatus converts raw input into an AuthorizeStatus.
func ParseAuthorizeStatus(value string) (AuthorizeStatus, error) {
	for _, candidate := range validAuthorizeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid authorize status %q", value)
}
