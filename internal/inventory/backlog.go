package inventory

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/enums"
)

// Backlog persists releases that were owed but could not be applied at the
// time (ledger failure, crash mid-compensation). The release-backlog cron
// job drains pending rows.
type Backlog interface {
	Record(ctx context.Context, orderID *uuid.UUID, variantID uuid.UUID, qty int, reason string) error
	ListPending(ctx context.Context, limit int) ([]models.StockRelease, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
}

type backlog struct {
	db *gorm.DB
}

// NewBacklog builds the release backlog store.
func NewBacklog(db *gorm.DB) Backlog {
	return &backlog{db: db}
}

func (b *backlog) Record(ctx context.Context, orderID *uuid.UUID, variantID uuid.UUID, qty int, reason string) error {
	release := models.StockRelease{
		ID:        uuid.New(),
		OrderID:   orderID,
		VariantID: variantID,
		Qty:       qty,
		Reason:    reason,
		Status:    enums.ReleaseStatusPending,
	}
	return b.db.WithContext(ctx).Create(&release).Error
}

func (b *backlog) ListPending(ctx context.Context, limit int) ([]models.StockRelease, error) {
	var rows []models.StockRelease
	query := b.db.WithContext(ctx).
		Where("status = ?", enums.ReleaseStatusPending).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *backlog) MarkDone(ctx context.Context, id uuid.UUID) error {
	return b.db.WithContext(ctx).
		Model(&models.StockRelease{}).
		Where("id = ?", id).
		Update("status", enums.ReleaseStatusDone).Error
}
