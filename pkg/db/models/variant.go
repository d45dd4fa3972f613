package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/pkg/types"
)

// Variant is the sellable catalog unit the checkout path reads: price, weight
// and an optional promotional price window. Catalog management itself lives in
// another service; this table is the narrow read surface.
type Variant struct {
	ID             uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID     `gorm:"column:product_id;type:uuid;not null;index"`
	ProductName    string        `gorm:"column:product_name;not null"`
	Attrs          types.JSONMap `gorm:"column:attrs;type:jsonb;serializer:json"`
	UnitPriceCents int64         `gorm:"column:unit_price_cents;not null"`
	WeightGrams    int           `gorm:"column:weight_grams;not null;default:0"`
	PromoCents     *int64        `gorm:"column:promo_cents"`
	PromoStartsAt  *time.Time    `gorm:"column:promo_starts_at"`
	PromoEndsAt    *time.Time    `gorm:"column:promo_ends_at"`
	CreatedAt      time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// PromoActiveAt reports whether the promotional price applies at ts.
func (v Variant) PromoActiveAt(ts time.Time) bool {
	if v.PromoCents == nil {
		return false
	}
	if v.PromoStartsAt != nil && ts.Before(*v.PromoStartsAt) {
		return false
	}
	if v.PromoEndsAt != nil && ts.After(*v.PromoEndsAt) {
		return false
	}
	return true
}
