package enums

import "fmt"

// TaxCategory selects the tax schedule applied to a cart.
type TaxCategory string

const (
	TaxCategoryStandard TaxCategory = "standard"
	TaxCategoryReduced  TaxCategory = "reduced"
	TaxCategoryExempt   TaxCategory = "exempt"
)

var validTaxCategories = []TaxCategory{
	TaxCategoryStandard,
	TaxCategoryReduced,
	TaxCategoryExempt,
}

// String implements fmt.Stringer.
func (t TaxCategory) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TaxCategory.
func (t TaxCategory) IsValid() bool {
	for _, candidate := range validTaxCategories {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTaxCategory converts raw input into a TaxCategory.
func ParseTaxCategory(value string) (TaxCategory, error) {
	for _, candidate := range validTaxCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tax category %q", value)
}
