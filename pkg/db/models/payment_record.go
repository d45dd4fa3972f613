package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/pkg/enums"
	"github.com/dariovega/shopstream-backend/pkg/types"
)

// PaymentRecord tracks payment progress for an order. Created when the
// checkout session is initiated, updated by the webhook processor, never
// deleted.
type PaymentRecord struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	Provider      string              `gorm:"column:provider;not null"`
	ExternalID    *string             `gorm:"column:external_id"`
	Status        enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AmountCents   int64               `gorm:"column:amount_cents;not null"`
	Currency      string              `gorm:"column:currency;type:text;not null;default:'EUR'"`
	Metadata      types.JSONMap       `gorm:"column:metadata;type:jsonb;serializer:json"`
	FailureReason *string             `gorm:"column:failure_reason"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
