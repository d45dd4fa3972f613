package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/dariovega/shopstream-backend/pkg/enums"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
)

// LineAmount is a priced cart line. BaseUnitCents carries the pre-promotion
// price so the discount column can be derived.
type LineAmount struct {
	UnitPriceCents int64
	BaseUnitCents  int64
	Qty            int
	WeightGrams    int
}

// Quote is the full pricing breakdown for a cart. The subtotal is at base
// prices and promotional savings sit in the discount column, so the fields
// satisfy total = subtotal + shipping + tax - discount. Every component is
// rounded to whole cents as it is computed.
type Quote struct {
	SubtotalCents int64
	DiscountCents int64
	ShippingCents int64
	TaxCents      int64
	TotalCents    int64
	TaxRate       decimal.Decimal
}

// Calculator bundles the shipping and tax rate cards. It is pure and safe to
// share across requests.
type Calculator struct {
	Shipping ShippingTable
	Tax      TaxTable
}

// NewCalculator builds a calculator over the provided rate cards.
func NewCalculator(shipping ShippingTable, tax TaxTable) Calculator {
	return Calculator{Shipping: shipping, Tax: tax}
}

// Quote prices a cart. The same function backs checkout and preview so both
// always agree to the cent.
func (c Calculator) Quote(lines []LineAmount, country string, method enums.ShippingMethod, category enums.TaxCategory) (Quote, error) {
	if len(lines) == 0 {
		return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "no lines to price")
	}

	var subtotal, discount int64
	var weightGrams int
	for _, line := range lines {
		if line.Qty <= 0 {
			return Quote{}, pkgerrors.New(pkgerrors.CodeValidation, "line qty must be positive")
		}
		base := line.BaseUnitCents
		if base < line.UnitPriceCents {
			base = line.UnitPriceCents
		}
		subtotal += base * int64(line.Qty)
		if base > line.UnitPriceCents {
			discount += (base - line.UnitPriceCents) * int64(line.Qty)
		}
		weightGrams += line.WeightGrams * line.Qty
	}

	// The free-shipping threshold and the taxable base both key off the cart
	// subtotal; promotional savings reduce the total, never the threshold
	// comparison or the amount taxed.
	shipping, err := c.Shipping.Cost(country, method, subtotal, weightGrams)
	if err != nil {
		return Quote{}, err
	}

	rate := c.Tax.Rate(country, category)
	tax := Tax(subtotal+shipping, rate)

	return Quote{
		SubtotalCents: subtotal,
		DiscountCents: discount,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    subtotal - discount + shipping + tax,
		TaxRate:       rate,
	}, nil
}
