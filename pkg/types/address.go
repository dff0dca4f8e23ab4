package types

import "strings"

// Address is the immutable address snapshot stored on orders. Snapshots are
// stored as jsonb; new orders always receive fresh copies rather than shared
// references.
type Address struct {
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Company    *string `json:"company,omitempty"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	Area       string  `json:"area"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

// Clone returns a copy with its own backing storage for pointer fields.
func (a *Address) Clone() *Address {
	if a == nil {
		return nil
	}
	clone := *a
	if a.Company != nil {
		company := *a.Company
		clone.Company = &company
	}
	if a.Line2 != nil {
		line2 := *a.Line2
		clone.Line2 = &line2
	}
	if a.Phone != nil {
		phone := *a.Phone
		clone.Phone = &phone
	}
	return &clone
}

// IsZero reports whether the snapshot carries no usable address.
func (a *Address) IsZero() bool {
	return a == nil || (strings.TrimSpace(a.Line1) == "" && strings.TrimSpace(a.City) == "")
}
