package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/pkg/enums"
)

// StockRelease records a compensation release that could not be applied at
// the time it was owed (ledger unreachable, crash mid-compensation). The
// release-backlog cron job drains pending rows so reservations cannot leak
// past the reconciler.
type StockRelease struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	VariantID uuid.UUID           `gorm:"column:variant_id;type:uuid;not null"`
	Qty       int                 `gorm:"column:qty;not null"`
	Reason    string              `gorm:"column:reason;not null"`
	Status    enums.ReleaseStatus `gorm:"column:status;type:text;not null;default:'pending';index"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
