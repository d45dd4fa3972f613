package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/api/middleware"
	"github.com/dariovega/shopstream-backend/api/responses"
	"github.com/dariovega/shopstream-backend/api/validators"
	checkoutsvc "github.com/dariovega/shopstream-backend/internal/checkout"
	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/enums"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
	"github.com/dariovega/shopstream-backend/pkg/logger"
	"github.com/dariovega/shopstream-backend/pkg/types"
)

// Checkout reserves stock for the submitted cart and creates a pending order.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID := middleware.CustomerIDFromContext(r.Context())
		order, err := svc.CreateOrderFromCart(r.Context(), customerID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

// CheckoutPreview prices the cart without reserving stock or writing anything.
func CheckoutPreview(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		preview, err := svc.PreviewOrderTotal(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newPreviewResponse(preview))
	}
}

type checkoutLineRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

type checkoutRequest struct {
	Lines           []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress types.Address         `json:"shipping_address" validate:"required"`
	BillingAddress  *types.Address        `json:"billing_address,omitempty"`
	ShippingMethod  string                `json:"shipping_method" validate:"required"`
	TaxCategory     string                `json:"tax_category,omitempty"`
}

func (req checkoutRequest) toInput() checkoutsvc.CheckoutInput {
	lines := make([]checkoutsvc.CartLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, checkoutsvc.CartLine{VariantID: line.VariantID, Qty: line.Qty})
	}
	return checkoutsvc.CheckoutInput{
		Lines:           lines,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		ShippingMethod:  enums.ShippingMethod(req.ShippingMethod),
		TaxCategory:     enums.TaxCategory(req.TaxCategory),
	}
}

type orderResponse struct {
	OrderID         uuid.UUID           `json:"order_id"`
	OrderNumber     int64               `json:"order_number"`
	Status          string              `json:"status"`
	Currency        string              `json:"currency"`
	SubtotalCents   int64               `json:"subtotal_cents"`
	DiscountCents   int64               `json:"discount_cents"`
	ShippingCents   int64               `json:"shipping_cents"`
	ShippingMethod  string              `json:"shipping_method"`
	TaxCents        int64               `json:"tax_cents"`
	TaxRate         string              `json:"tax_rate"`
	TotalCents      int64               `json:"total_cents"`
	ShippingAddress types.Address       `json:"shipping_address"`
	BillingAddress  *types.Address      `json:"billing_address,omitempty"`
	CancelReason    *string             `json:"cancel_reason,omitempty"`
	Lines           []orderLineResponse `json:"lines"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

type orderLineResponse struct {
	LineID         uuid.UUID     `json:"line_id"`
	VariantID      uuid.UUID     `json:"variant_id"`
	ProductName    string        `json:"product_name"`
	VariantAttrs   types.JSONMap `json:"variant_attrs,omitempty"`
	UnitPriceCents int64         `json:"unit_price_cents"`
	Qty            int           `json:"qty"`
	TotalCents     int64         `json:"total_cents"`
}

func newOrderResponse(order *models.Order) orderResponse {
	if order == nil {
		return orderResponse{}
	}
	lines := make([]orderLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, orderLineResponse{
			LineID:         line.ID,
			VariantID:      line.VariantID,
			ProductName:    line.ProductName,
			VariantAttrs:   line.VariantAttrs,
			UnitPriceCents: line.UnitPriceCents,
			Qty:            line.Qty,
			TotalCents:     line.TotalCents,
		})
	}
	return orderResponse{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          string(order.Status),
		Currency:        order.Currency,
		SubtotalCents:   order.SubtotalCents,
		DiscountCents:   order.DiscountCents,
		ShippingCents:   order.ShippingCents,
		ShippingMethod:  string(order.ShippingMethod),
		TaxCents:        order.TaxCents,
		TaxRate:         order.TaxRate,
		TotalCents:      order.TotalCents,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		CancelReason:    order.CancelReason,
		Lines:           lines,
		PaidAt:          order.PaidAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
}

type previewResponse struct {
	Lines         []checkoutsvc.PreviewLine `json:"lines"`
	SubtotalCents int64                     `json:"subtotal_cents"`
	DiscountCents int64                     `json:"discount_cents"`
	ShippingCents int64                     `json:"shipping_cents"`
	TaxCents      int64                     `json:"tax_cents"`
	TaxRate       string                    `json:"tax_rate"`
	TotalCents    int64                     `json:"total_cents"`
}

func newPreviewResponse(preview *checkoutsvc.Preview) previewResponse {
	if preview == nil {
		return previewResponse{}
	}
	return previewResponse{
		Lines:         preview.Lines,
		SubtotalCents: preview.Quote.SubtotalCents,
		DiscountCents: preview.Quote.DiscountCents,
		ShippingCents: preview.Quote.ShippingCents,
		TaxCents:      preview.Quote.TaxCents,
		TaxRate:       preview.Quote.TaxRate.String(),
		TotalCents:    preview.Quote.TotalCents,
	}
}
