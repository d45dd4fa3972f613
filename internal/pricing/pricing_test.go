package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dariovega/shopstream-backend/pkg/enums"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
)

func TestShippingCost(t *testing.T) {
	t.Parallel()

	table := DefaultShippingTable()

	tests := []struct {
		name     string
		country  string
		method   enums.ShippingMethod
		subtotal int64
		weight   int
		want     int64
	}{
		{"domestic standard", "FR", enums.ShippingMethodStandard, 2000, 1500, 490 + 150},
		{"domestic free over threshold", "FR", enums.ShippingMethodStandard, 5000, 1500, 0},
		{"express never free", "FR", enums.ShippingMethodExpress, 50000, 1000, 990 + 150},
		{"eu zone", "DE", enums.ShippingMethodStandard, 2000, 2000, 890 + 300},
		{"unknown country falls to international", "US", enums.ShippingMethodStandard, 2000, 1000, 1990 + 350},
		{"pickup is free", "FR", enums.ShippingMethodPickup, 100, 5000, 0},
		{"weight component rounds to cents", "FR", enums.ShippingMethodStandard, 2000, 1234, 490 + 123},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Cost(tt.country, tt.method, tt.subtotal, tt.weight)
			if err != nil {
				t.Fatalf("cost: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestShippingMethodUnavailable(t *testing.T) {
	t.Parallel()

	table := DefaultShippingTable()
	if _, err := table.Cost("DE", enums.ShippingMethodPickup, 1000, 100); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTaxRateFallback(t *testing.T) {
	t.Parallel()

	table := DefaultTaxTable(decimal.RequireFromString("0.20"))

	if rate := table.Rate("FR", enums.TaxCategoryReduced); !rate.Equal(decimal.RequireFromString("0.055")) {
		t.Fatalf("unexpected reduced rate: %s", rate)
	}
	if rate := table.Rate("XX", enums.TaxCategoryStandard); !rate.Equal(decimal.RequireFromString("0.20")) {
		t.Fatalf("unknown country should use default rate, got %s", rate)
	}
	if rate := table.Rate("FR", enums.TaxCategoryExempt); !rate.IsZero() {
		t.Fatalf("exempt category should be zero, got %s", rate)
	}
}

func TestTaxRounding(t *testing.T) {
	t.Parallel()

	rate := decimal.RequireFromString("0.055")
	// 1234 * 0.055 = 67.87 -> 68
	if got := Tax(1234, rate); got != 68 {
		t.Fatalf("got %d, want 68", got)
	}
	// 1230 * 0.055 = 67.65 -> 68
	if got := Tax(1230, rate); got != 68 {
		t.Fatalf("got %d, want 68", got)
	}
}

func TestQuoteBreakdown(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(DefaultShippingTable(), DefaultTaxTable(decimal.RequireFromString("0.20")))

	lines := []LineAmount{
		{UnitPriceCents: 1990, BaseUnitCents: 2490, Qty: 2, WeightGrams: 400},
		{UnitPriceCents: 900, BaseUnitCents: 900, Qty: 1, WeightGrams: 200},
	}
	quote, err := calc.Quote(lines, "FR", enums.ShippingMethodStandard, enums.TaxCategoryStandard)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	if quote.SubtotalCents != 2490*2+900 {
		t.Fatalf("unexpected subtotal: %d", quote.SubtotalCents)
	}
	if quote.DiscountCents != 500*2 {
		t.Fatalf("unexpected discount: %d", quote.DiscountCents)
	}
	// Subtotal 5880 clears the 5000 free threshold even though the customer
	// pays only 4880 after the promotion: the threshold reads the subtotal.
	if quote.ShippingCents != 0 {
		t.Fatalf("unexpected shipping: %d", quote.ShippingCents)
	}
	// Tax applies to subtotal + shipping, not the discounted amount.
	wantTax := Tax(5880, quote.TaxRate)
	if quote.TaxCents != wantTax {
		t.Fatalf("unexpected tax: %d", quote.TaxCents)
	}
	if quote.TotalCents != quote.SubtotalCents-quote.DiscountCents+quote.ShippingCents+quote.TaxCents {
		t.Fatalf("total does not reconcile: %+v", quote)
	}
}

func TestQuoteChargesShippingBelowThreshold(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(DefaultShippingTable(), DefaultTaxTable(decimal.RequireFromString("0.20")))

	lines := []LineAmount{
		{UnitPriceCents: 1990, BaseUnitCents: 1990, Qty: 2, WeightGrams: 400},
	}
	quote, err := calc.Quote(lines, "FR", enums.ShippingMethodStandard, enums.TaxCategoryStandard)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	// 3980 subtotal, below 5000: 490 base + 800 g at 100/kg.
	if quote.ShippingCents != 490+80 {
		t.Fatalf("unexpected shipping: %d", quote.ShippingCents)
	}
	if quote.TaxCents != Tax(3980+570, quote.TaxRate) {
		t.Fatalf("unexpected tax: %d", quote.TaxCents)
	}
}

func TestQuoteRejectsEmptyAndInvalidLines(t *testing.T) {
	t.Parallel()

	calc := NewCalculator(DefaultShippingTable(), DefaultTaxTable(decimal.Zero))

	if _, err := calc.Quote(nil, "FR", enums.ShippingMethodStandard, enums.TaxCategoryStandard); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	lines := []LineAmount{{UnitPriceCents: 100, BaseUnitCents: 100, Qty: 0}}
	if _, err := calc.Quote(lines, "FR", enums.ShippingMethodStandard, enums.TaxCategoryStandard); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
