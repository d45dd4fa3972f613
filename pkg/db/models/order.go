package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/pkg/enums"
	"github.com/dariovega/shopstream-backend/pkg/types"
)

// Order is the source of truth for what was charged. CustomerID is nil for
// guest checkouts; those orders are matched to a future account solely by the
// lowercased shipping email.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     int64                `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerID      *uuid.UUID           `gorm:"column:customer_id;type:uuid"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	Currency        string               `gorm:"column:currency;type:text;not null;default:'EUR'"`
	SubtotalCents   int64                `gorm:"column:subtotal_cents;not null"`
	DiscountCents   int64                `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents   int64                `gorm:"column:shipping_cents;not null;default:0"`
	ShippingMethod  enums.ShippingMethod `gorm:"column:shipping_method;type:text;not null"`
	TaxCents        int64                `gorm:"column:tax_cents;not null;default:0"`
	TaxRate         string               `gorm:"column:tax_rate;type:text;not null;default:'0'"`
	TotalCents      int64                `gorm:"column:total_cents;not null"`
	ShippingAddress types.Address        `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	BillingAddress  *types.Address       `gorm:"column:billing_address;type:jsonb;serializer:json"`
	ShippingEmail   string               `gorm:"column:shipping_email;not null;index"`
	CancelReason    *string              `gorm:"column:cancel_reason"`
	Lines           []OrderLine          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment         *PaymentRecord       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt          *time.Time           `gorm:"column:paid_at"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// IsGuest reports whether the order has no owning account yet.
func (o Order) IsGuest() bool {
	return o.CustomerID == nil
}
