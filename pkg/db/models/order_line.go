package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/pkg/types"
)

// OrderLine snapshots a purchased variant at order time. Name, attributes and
// unit price are frozen here and never recomputed from the catalog.
type OrderLine struct {
	ID             uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID     `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID      uuid.UUID     `gorm:"column:variant_id;type:uuid;not null"`
	ProductName    string        `gorm:"column:product_name;not null"`
	VariantAttrs   types.JSONMap `gorm:"column:variant_attrs;type:jsonb;serializer:json"`
	UnitPriceCents int64         `gorm:"column:unit_price_cents;not null"`
	Qty            int           `gorm:"column:qty;not null"`
	WeightGrams    int           `gorm:"column:weight_grams;not null;default:0"`
	TotalCents     int64         `gorm:"column:total_cents;not null"`
	ConfirmedAt    *time.Time    `gorm:"column:confirmed_at"`
	CreatedAt      time.Time     `gorm:"column:created_at;autoCreateTime"`
}
