package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dariovega/shopstream-backend/pkg/enums"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
)

// ShippingRate describes one zone/method cell of the rate card.
// FreeOverCents is nil when the method is never free.
type ShippingRate struct {
	BaseCents     int64
	PerKgCents    int64
	FreeOverCents *int64
}

// ShippingTable is the zone/method rate card. Countries map to zones; a
// country without a mapping falls into the default zone.
type ShippingTable struct {
	zones       map[string]string
	defaultZone string
	rates       map[string]map[enums.ShippingMethod]ShippingRate
}

// NewShippingTable builds a rate card from explicit mappings.
func NewShippingTable(zones map[string]string, defaultZone string, rates map[string]map[enums.ShippingMethod]ShippingRate) ShippingTable {
	return ShippingTable{zones: zones, defaultZone: defaultZone, rates: rates}
}

func cents(v int64) *int64 { return &v }

// DefaultShippingTable is the built-in rate card used when no external
// configuration overrides it.
func DefaultShippingTable() ShippingTable {
	return NewShippingTable(
		map[string]string{
			"FR": "domestic",
			"DE": "eu",
			"ES": "eu",
			"IT": "eu",
			"BE": "eu",
			"NL": "eu",
		},
		"international",
		map[string]map[enums.ShippingMethod]ShippingRate{
			"domestic": {
				enums.ShippingMethodStandard: {BaseCents: 490, PerKgCents: 100, FreeOverCents: cents(5000)},
				enums.ShippingMethodExpress:  {BaseCents: 990, PerKgCents: 150},
				enums.ShippingMethodPickup:   {BaseCents: 0, PerKgCents: 0},
			},
			"eu": {
				enums.ShippingMethodStandard: {BaseCents: 890, PerKgCents: 150, FreeOverCents: cents(10000)},
				enums.ShippingMethodExpress:  {BaseCents: 1690, PerKgCents: 250},
			},
			"international": {
				enums.ShippingMethodStandard: {BaseCents: 1990, PerKgCents: 350},
				enums.ShippingMethodExpress:  {BaseCents: 3490, PerKgCents: 500},
			},
		},
	)
}

// ZoneFor resolves the shipping zone for an ISO country code.
func (t ShippingTable) ZoneFor(country string) string {
	if zone, ok := t.zones[strings.ToUpper(strings.TrimSpace(country))]; ok {
		return zone
	}
	return t.defaultZone
}

// Cost computes the shipping charge in cents: zone/method base fee plus the
// per-kg rate times total weight, zeroed when the subtotal clears the
// method's free-shipping threshold. The weight component is rounded to whole
// cents before the base fee is added.
func (t ShippingTable) Cost(country string, method enums.ShippingMethod, subtotalCents int64, totalWeightGrams int) (int64, error) {
	zone := t.ZoneFor(country)
	methods, ok := t.rates[zone]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping zone").
			WithDetails(map[string]any{"zone": zone})
	}
	rate, ok := methods[method]
	if !ok {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "shipping method unavailable for zone").
			WithDetails(map[string]any{"zone": zone, "method": method.String()})
	}

	if rate.FreeOverCents != nil && subtotalCents >= *rate.FreeOverCents {
		return 0, nil
	}

	weightCost := decimal.NewFromInt(rate.PerKgCents).
		Mul(decimal.NewFromInt(int64(totalWeightGrams))).
		Div(decimal.NewFromInt(1000)).
		Round(0)
	return rate.BaseCents + weightCost.IntPart(), nil
}
