package checkout

import (
	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/internal/pricing"
	"github.com/dariovega/shopstream-backend/pkg/enums"
	"github.com/dariovega/shopstream-backend/pkg/types"
)

// CartLine is one requested variant/quantity pair.
type CartLine struct {
	VariantID uuid.UUID `json:"variant_id"`
	Qty       int       `json:"qty"`
}

// CheckoutInput is everything the coordinator needs to price and create an
// order. The shipping country and contact email come from the shipping
// address.
type CheckoutInput struct {
	Lines           []CartLine
	ShippingAddress types.Address
	BillingAddress  *types.Address
	ShippingMethod  enums.ShippingMethod
	TaxCategory     enums.TaxCategory
}

// PreviewLine is a priced cart line in a preview response.
type PreviewLine struct {
	VariantID      uuid.UUID `json:"variant_id"`
	ProductName    string    `json:"product_name"`
	UnitPriceCents int64     `json:"unit_price_cents"`
	BaseUnitCents  int64     `json:"base_unit_cents"`
	Qty            int       `json:"qty"`
	TotalCents     int64     `json:"total_cents"`
}

// Preview is the cart pricing breakdown returned without reserving stock or
// persisting anything.
type Preview struct {
	Lines []PreviewLine
	Quote pricing.Quote
}
