package cron

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/dariovega/shopstream-backend/internal/inventory"
	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/enums"
)

func TestReleaseBacklogJobDrainsPendingReleases(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	backlog := inventory.NewBacklog(conn)
	ledger, err := inventory.NewService(conn, nil, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	variantID := seedVariant(t, conn, 10, 500)
	if err := conn.Model(&models.InventoryRecord{}).
		Where("variant_id = ?", variantID).
		Updates(map[string]any{"available_qty": 7, "reserved_qty": 3}).Error; err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	if err := backlog.Record(ctx, nil, variantID, 3, "cancel_release_failed"); err != nil {
		t.Fatalf("record backlog: %v", err)
	}

	job, err := NewReleaseBacklogJob(ReleaseBacklogJobParams{
		Logger:  testLogger(),
		Backlog: backlog,
		Ledger:  ledger,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run job: %v", err)
	}

	var record models.InventoryRecord
	if err := conn.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if record.AvailableQty != 10 || record.ReservedQty != 0 {
		t.Fatalf("release not applied: %+v", record)
	}

	pending, err := backlog.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected drained backlog, got %d pending rows", len(pending))
	}
}

func TestReleaseBacklogJobKeepsFailedRowsPending(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	ctx := context.Background()
	backlog := inventory.NewBacklog(conn)
	ledger, err := inventory.NewService(conn, nil, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	variantID := seedVariant(t, conn, 5, 500)
	if err := conn.Model(&models.InventoryRecord{}).
		Where("variant_id = ?", variantID).
		Updates(map[string]any{"available_qty": 4, "reserved_qty": 1}).Error; err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	if err := backlog.Record(ctx, nil, uuid.New(), 2, "cancel_release_failed"); err != nil {
		t.Fatalf("record orphan: %v", err)
	}
	if err := backlog.Record(ctx, nil, variantID, 1, "cancel_release_failed"); err != nil {
		t.Fatalf("record backlog: %v", err)
	}

	job, err := NewReleaseBacklogJob(ReleaseBacklogJobParams{
		Logger:  testLogger(),
		Backlog: backlog,
		Ledger:  ledger,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	// The orphaned variant fails but must not block the healthy release.
	if err := job.Run(ctx); err == nil {
		t.Fatalf("expected error for unknown variant")
	}

	var record models.InventoryRecord
	if err := conn.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if record.AvailableQty != 5 || record.ReservedQty != 0 {
		t.Fatalf("healthy release not applied: %+v", record)
	}

	pending, err := backlog.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected one pending row to remain, got %d", len(pending))
	}
	if pending[0].Status != enums.ReleaseStatusPending {
		t.Fatalf("unexpected status: %s", pending[0].Status)
	}
}
