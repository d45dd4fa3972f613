package types

import (
	"fmt"
	"strings"
)

// Address is the structured postal address stored on orders. It is persisted
// as a jsonb document via GORM's json serializer.
type Address struct {
	FullName   string  `json:"full_name"`
	Email      string  `json:"email"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

// Validate checks the fields the checkout path depends on.
func (a Address) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return fmt.Errorf("address: missing email")
	}
	if strings.TrimSpace(a.Line1) == "" {
		return fmt.Errorf("address: missing line1")
	}
	if strings.TrimSpace(a.City) == "" {
		return fmt.Errorf("address: missing city")
	}
	if strings.TrimSpace(a.PostalCode) == "" {
		return fmt.Errorf("address: missing postal_code")
	}
	if strings.TrimSpace(a.Country) == "" {
		return fmt.Errorf("address: missing country")
	}
	return nil
}

// NormalizedEmail returns the lowercased, trimmed contact email. Guest orders
// are matched to accounts by this value.
func (a Address) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(a.Email))
}

// JSONMap is a free-form jsonb payload (variant attributes, provider metadata).
type JSONMap map[string]any
