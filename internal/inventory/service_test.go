package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dariovega/shopstream-backend/pkg/db/models"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
)

func TestReserveReturnsVariantSnapshot(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variantID := seedVariant(t, db, 5, 12990, 450)

	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	reserved, err := svc.Reserve(ctx, variantID, 2)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if reserved.UnitPriceCents != 12990 {
		t.Fatalf("unexpected unit price: %d", reserved.UnitPriceCents)
	}
	if reserved.WeightGrams != 450 {
		t.Fatalf("unexpected weight: %d", reserved.WeightGrams)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.AvailableQty != 3 || record.ReservedQty != 2 {
		t.Fatalf("unexpected counters: %+v", record)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variantID := seedVariant(t, db, 1, 500, 100)

	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Reserve(ctx, variantID, 2); !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.AvailableQty != 1 || record.ReservedQty != 0 {
		t.Fatalf("counters changed on rejected reserve: %+v", record)
	}
}

func TestReserveUnknownVariant(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Reserve(context.Background(), uuid.New(), 1); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReserveMissingVariantRowLeavesCountersAlone(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	// An inventory record whose variant row is gone. The snapshot read runs
	// before the counters move, so the failure must not leave a hold behind.
	orphan := uuid.New()
	if err := db.Create(&models.InventoryRecord{VariantID: orphan, AvailableQty: 3}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}

	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Reserve(ctx, orphan, 1); !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "variant_id = ?", orphan).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.AvailableQty != 3 || record.ReservedQty != 0 {
		t.Fatalf("counters changed on failed reserve: %+v", record)
	}
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variantID := seedVariant(t, db, 3, 1000, 0)

	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Reserve(ctx, variantID, 1)
		}(i)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 3 || rejected != 5 {
		t.Fatalf("expected 3 successes and 5 rejections, got %d/%d", succeeded, rejected)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.AvailableQty != 0 || record.ReservedQty != 3 {
		t.Fatalf("unexpected counters: %+v", record)
	}
}

func TestReleaseFloorsReservedAtZero(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variantID := seedVariant(t, db, 4, 1000, 0)

	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Reserve(ctx, variantID, 2); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.Release(ctx, variantID, 2); err != nil {
		t.Fatalf("release: %v", err)
	}
	// Double release after a crash must not fail or drive reserved negative.
	if err := svc.Release(ctx, variantID, 2); err != nil {
		t.Fatalf("second release: %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.AvailableQty != 6 || record.ReservedQty != 0 {
		t.Fatalf("unexpected counters: %+v", record)
	}
}

func TestConfirmSaleConsumesReservation(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variantID := seedVariant(t, db, 5, 1000, 0)

	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if _, err := svc.Reserve(ctx, variantID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := svc.ConfirmSale(ctx, variantID, 3); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := svc.ConfirmSale(ctx, variantID, 1); !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientReserved) {
		t.Fatalf("expected insufficient reserved, got %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	// Confirmed units leave reserved without returning to the shelf.
	if record.AvailableQty != 2 || record.ReservedQty != 0 {
		t.Fatalf("unexpected counters: %+v", record)
	}
}

func TestAdjustRejectsNegativeStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	variantID := seedVariant(t, db, 2, 1000, 0)

	svc, err := NewService(db, nil, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := svc.Adjust(ctx, variantID, -3); !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := svc.Adjust(ctx, variantID, -2); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	if err := svc.Adjust(ctx, variantID, 5); err != nil {
		t.Fatalf("adjust up: %v", err)
	}

	var record models.InventoryRecord
	if err := db.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.AvailableQty != 5 {
		t.Fatalf("unexpected available qty: %d", record.AvailableQty)
	}
}

func seedVariant(t *testing.T, db *gorm.DB, available int, priceCents int64, weightGrams int) uuid.UUID {
	t.Helper()
	variant := models.Variant{
		ID:             uuid.New(),
		ProductID:      uuid.New(),
		ProductName:    "test product",
		UnitPriceCents: priceCents,
		WeightGrams:    weightGrams,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	if err := db.Create(&models.InventoryRecord{VariantID: variant.ID, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return variant.ID
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap db: %v", err)
	}
	// A single connection keeps concurrent writers from tripping over
	// sqlite's shared-cache table locks.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Variant{}, &models.InventoryRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
