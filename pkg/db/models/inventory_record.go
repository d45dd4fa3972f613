package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryRecord tracks available/reserved counts per variant. Both counters
// stay non-negative at all times; every mutation is a single conditional
// UPDATE so concurrent checkouts cannot oversell.
type InventoryRecord struct {
	VariantID    uuid.UUID `gorm:"column:variant_id;type:uuid;primaryKey"`
	AvailableQty int       `gorm:"column:available_qty;not null;default:0"`
	ReservedQty  int       `gorm:"column:reserved_qty;not null;default:0"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
