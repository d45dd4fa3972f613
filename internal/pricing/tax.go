package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dariovega/shopstream-backend/pkg/enums"
)

// TaxTable maps country + category to a tax rate. An unknown country falls
// back to the default rate instead of failing; an exempt category is always
// zero.
type TaxTable struct {
	rates       map[string]map[enums.TaxCategory]decimal.Decimal
	defaultRate decimal.Decimal
}

// NewTaxTable builds a tax schedule from explicit rates.
func NewTaxTable(rates map[string]map[enums.TaxCategory]decimal.Decimal, defaultRate decimal.Decimal) TaxTable {
	return TaxTable{rates: rates, defaultRate: defaultRate}
}

// DefaultTaxTable is the built-in schedule used when no external
// configuration overrides it.
func DefaultTaxTable(defaultRate decimal.Decimal) TaxTable {
	return NewTaxTable(map[string]map[enums.TaxCategory]decimal.Decimal{
		"FR": {
			enums.TaxCategoryStandard: decimal.RequireFromString("0.20"),
			enums.TaxCategoryReduced:  decimal.RequireFromString("0.055"),
		},
		"DE": {
			enums.TaxCategoryStandard: decimal.RequireFromString("0.19"),
			enums.TaxCategoryReduced:  decimal.RequireFromString("0.07"),
		},
		"ES": {
			enums.TaxCategoryStandard: decimal.RequireFromString("0.21"),
			enums.TaxCategoryReduced:  decimal.RequireFromString("0.10"),
		},
	}, defaultRate)
}

// Rate resolves the applicable tax rate.
func (t TaxTable) Rate(country string, category enums.TaxCategory) decimal.Decimal {
	if category == enums.TaxCategoryExempt {
		return decimal.Zero
	}
	if byCategory, ok := t.rates[strings.ToUpper(strings.TrimSpace(country))]; ok {
		if rate, ok := byCategory[category]; ok {
			return rate
		}
	}
	return t.defaultRate
}

// Tax computes the tax amount in cents on the taxable base, rounded to whole
// cents.
func Tax(taxableCents int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(taxableCents).Mul(rate).Round(0).IntPart()
}
