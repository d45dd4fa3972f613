package checkout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dariovega/shopstream-backend/internal/catalog"
	"github.com/dariovega/shopstream-backend/internal/inventory"
	"github.com/dariovega/shopstream-backend/internal/orders"
	"github.com/dariovega/shopstream-backend/internal/pricing"
	"github.com/dariovega/shopstream-backend/pkg/db"
	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/enums"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
	"github.com/dariovega/shopstream-backend/pkg/types"
)

type fixture struct {
	db      *gorm.DB
	svc     Service
	ledger  inventory.Service
	backlog inventory.Backlog
	repo    orders.Repository
}

// failingLedger wraps the real ledger and fails selected operations, to
// exercise compensation paths.
type failingLedger struct {
	inventory.Service
	failReserveOn  uuid.UUID
	failAllRelease bool
}

func (f *failingLedger) Reserve(ctx context.Context, variantID uuid.UUID, qty int) (*inventory.ReservedVariant, error) {
	if variantID == f.failReserveOn {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory unreachable")
	}
	return f.Service.Reserve(ctx, variantID, qty)
}

func (f *failingLedger) Release(ctx context.Context, variantID uuid.UUID, qty int) error {
	if f.failAllRelease {
		return pkgerrors.New(pkgerrors.CodeDependency, "inventory unreachable")
	}
	return f.Service.Release(ctx, variantID, qty)
}

func TestCreateOrderFromCart(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()
	variantA := seedVariant(t, fx.db, "linen shirt", 10, 3500, 300)
	variantB := seedVariant(t, fx.db, "silk scarf", 5, 2000, 100)

	input := buildInput([]CartLine{
		{VariantID: variantA, Qty: 2},
		{VariantID: variantB, Qty: 1},
	})

	order, err := fx.svc.CreateOrderFromCart(ctx, nil, input)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending order, got %s", order.Status)
	}
	if order.OrderNumber == 0 {
		t.Fatal("expected an order number")
	}
	if len(order.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(order.Lines))
	}
	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPending || order.Payment.AmountCents != order.TotalCents {
		t.Fatalf("unexpected payment record: %+v", order.Payment)
	}
	if order.SubtotalCents != 2*3500+2000 {
		t.Fatalf("unexpected subtotal: %d", order.SubtotalCents)
	}
	if order.TotalCents != order.SubtotalCents-order.DiscountCents+order.ShippingCents+order.TaxCents {
		t.Fatalf("total does not reconcile: %+v", order)
	}
	if order.ShippingEmail != "guest@example.com" {
		t.Fatalf("shipping email not normalized: %q", order.ShippingEmail)
	}

	assertCounters(t, fx.db, variantA, 8, 2)
	assertCounters(t, fx.db, variantB, 4, 1)
}

func TestCreateOrderAppliesActivePromotion(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()
	variantID := seedVariant(t, fx.db, "promo shirt", 5, 3000, 200)
	promo := int64(2400)
	starts := time.Now().Add(-time.Hour)
	if err := fx.db.Model(&models.Variant{}).Where("id = ?", variantID).
		Updates(map[string]any{"promo_cents": promo, "promo_starts_at": starts}).Error; err != nil {
		t.Fatalf("set promo: %v", err)
	}

	order, err := fx.svc.CreateOrderFromCart(ctx, nil, buildInput([]CartLine{{VariantID: variantID, Qty: 2}}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.SubtotalCents != 6000 || order.DiscountCents != 1200 {
		t.Fatalf("promotion not applied: subtotal=%d discount=%d", order.SubtotalCents, order.DiscountCents)
	}
	if order.Lines[0].UnitPriceCents != 2400 {
		t.Fatalf("line should snapshot effective price, got %d", order.Lines[0].UnitPriceCents)
	}
}

func TestSagaCompensatesOnReservationFailure(t *testing.T) {
	t.Parallel()

	variantBad := uuid.New()
	fx := newFixture(t, func(real inventory.Service) stockLedger {
		return &failingLedger{Service: real, failReserveOn: variantBad}
	})
	ctx := context.Background()
	variantA := seedVariant(t, fx.db, "first line", 10, 1000, 100)
	seedVariantWithID(t, fx.db, variantBad, "unreachable", 10, 1000, 100)
	variantC := seedVariant(t, fx.db, "never reached", 10, 1000, 100)

	input := buildInput([]CartLine{
		{VariantID: variantA, Qty: 3},
		{VariantID: variantBad, Qty: 1},
		{VariantID: variantC, Qty: 1},
	})

	_, err := fx.svc.CreateOrderFromCart(ctx, nil, input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}

	// Line 1's reservation was rolled back; nothing was persisted.
	assertCounters(t, fx.db, variantA, 10, 0)
	assertCounters(t, fx.db, variantC, 10, 0)
	var count int64
	if err := fx.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 0 {
		t.Fatalf("no order row may exist after compensation, found %d", count)
	}
}

func TestSecondCheckoutForLastUnitFails(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()
	variantID := seedVariant(t, fx.db, "last unit", 1, 900, 50)
	input := buildInput([]CartLine{{VariantID: variantID, Qty: 1}})

	first, err := fx.svc.CreateOrderFromCart(ctx, nil, input)
	if err != nil {
		t.Fatalf("first checkout: %v", err)
	}
	if first.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", first.Status)
	}

	if _, err := fx.svc.CreateOrderFromCart(ctx, nil, input); !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	assertCounters(t, fx.db, variantID, 0, 1)
	var count int64
	if err := fx.db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one order, got %d", count)
	}
}

func TestCancelOrderAndReleaseStockIsIdempotent(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()
	variantID := seedVariant(t, fx.db, "cancellable", 5, 1500, 100)

	order, err := fx.svc.CreateOrderFromCart(ctx, nil, buildInput([]CartLine{{VariantID: variantID, Qty: 2}}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	assertCounters(t, fx.db, variantID, 3, 2)

	if err := fx.svc.CancelOrderAndReleaseStock(ctx, order.ID, "session_expired"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	assertCounters(t, fx.db, variantID, 5, 0)

	// Second cancel is a no-op success without a double release.
	if err := fx.svc.CancelOrderAndReleaseStock(ctx, order.ID, "session_expired"); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	assertCounters(t, fx.db, variantID, 5, 0)

	cancelled, err := fx.repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
}

func TestCancelPendingOrderAuthorization(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()
	variantID := seedVariant(t, fx.db, "guest item", 5, 1000, 100)

	order, err := fx.svc.CreateOrderFromCart(ctx, nil, buildInput([]CartLine{{VariantID: variantID, Qty: 1}}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := fx.svc.CancelPendingOrder(ctx, order.ID, nil, "wrong@example.com"); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for wrong guest email, got %v", err)
	}
	caller := uuid.New()
	if err := fx.svc.CancelPendingOrder(ctx, order.ID, &caller, ""); !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden for foreign caller, got %v", err)
	}

	// Matching guest email, case-insensitive.
	if err := fx.svc.CancelPendingOrder(ctx, order.ID, nil, "GUEST@Example.COM"); err != nil {
		t.Fatalf("guest cancel: %v", err)
	}
	// Cancelling the already-cancelled order succeeds as a no-op.
	if err := fx.svc.CancelPendingOrder(ctx, order.ID, nil, "guest@example.com"); err != nil {
		t.Fatalf("repeat cancel: %v", err)
	}
}

func TestCancelPendingOrderRejectsPaid(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()
	variantID := seedVariant(t, fx.db, "paid item", 5, 1000, 100)

	order, err := fx.svc.CreateOrderFromCart(ctx, nil, buildInput([]CartLine{{VariantID: variantID, Qty: 1}}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := fx.repo.MarkPaid(ctx, order.ID, time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}

	err = fx.svc.CancelPendingOrder(ctx, order.ID, nil, "guest@example.com")
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for paid order, got %v", err)
	}
}

func TestFailedReleaseLandsInBacklog(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, func(real inventory.Service) stockLedger {
		return &failingLedger{Service: real, failAllRelease: true}
	})
	ctx := context.Background()
	variantID := seedVariant(t, fx.db, "flaky release", 5, 1000, 100)

	order, err := fx.svc.CreateOrderFromCart(ctx, nil, buildInput([]CartLine{{VariantID: variantID, Qty: 2}}))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := fx.svc.CancelOrderAndReleaseStock(ctx, order.ID, "session_expired"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	pending, err := fx.backlog.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list backlog: %v", err)
	}
	if len(pending) != 1 || pending[0].VariantID != variantID || pending[0].Qty != 2 {
		t.Fatalf("expected one pending backlog release, got %+v", pending)
	}
}

func TestPreviewMatchesCreate(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()
	variantA := seedVariant(t, fx.db, "preview a", 10, 2750, 350)
	variantB := seedVariant(t, fx.db, "preview b", 10, 990, 120)

	input := buildInput([]CartLine{
		{VariantID: variantA, Qty: 3},
		{VariantID: variantB, Qty: 2},
	})

	preview, err := fx.svc.PreviewOrderTotal(ctx, input)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	order, err := fx.svc.CreateOrderFromCart(ctx, nil, input)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if preview.Quote.SubtotalCents != order.SubtotalCents ||
		preview.Quote.ShippingCents != order.ShippingCents ||
		preview.Quote.TaxCents != order.TaxCents ||
		preview.Quote.TotalCents != order.TotalCents {
		t.Fatalf("preview and order disagree: %+v vs %+v", preview.Quote, order)
	}
}

func TestPreviewUnknownVariant(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	input := buildInput([]CartLine{{VariantID: uuid.New(), Qty: 1}})

	_, err := fx.svc.PreviewOrderTotal(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	typed := pkgerrors.As(err)
	if typed.Message() != "product not found" {
		t.Fatalf("expected a product-not-found message, got %q", typed.Message())
	}
}

func TestCreateOrderValidation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	ctx := context.Background()

	if _, err := fx.svc.CreateOrderFromCart(ctx, nil, buildInput(nil)); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}

	input := buildInput([]CartLine{{VariantID: uuid.New(), Qty: 0}})
	if _, err := fx.svc.CreateOrderFromCart(ctx, nil, input); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero qty, got %v", err)
	}
}

func newFixture(t *testing.T, wrapLedger func(inventory.Service) stockLedger) *fixture {
	t.Helper()

	conn := newTestDB(t)
	client := db.FromGorm(conn)

	realLedger, err := inventory.NewService(conn, nil, nil)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}
	var ledger stockLedger = realLedger
	if wrapLedger != nil {
		ledger = wrapLedger(realLedger)
	}

	catalogSvc, err := catalog.NewService(conn, nil, time.Minute, nil)
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	repo := orders.NewRepository(conn)
	backlog := inventory.NewBacklog(conn)
	calc := pricing.NewCalculator(pricing.DefaultShippingTable(), pricing.DefaultTaxTable(decimal.RequireFromString("0.20")))

	svc, err := NewService(client, repo, ledger, catalogSvc, calc, backlog, nil, Config{Currency: "EUR", PaymentProvider: "testpay"}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{db: conn, svc: svc, ledger: realLedger, backlog: backlog, repo: repo}
}

func buildInput(lines []CartLine) CheckoutInput {
	return CheckoutInput{
		Lines: lines,
		ShippingAddress: types.Address{
			FullName:   "Guest Buyer",
			Email:      "Guest@Example.com",
			Line1:      "12 rue de la paix",
			City:       "Paris",
			PostalCode: "75002",
			Country:    "FR",
		},
		ShippingMethod: enums.ShippingMethodStandard,
		TaxCategory:    enums.TaxCategoryStandard,
	}
}

func seedVariant(t *testing.T, conn *gorm.DB, name string, available int, priceCents int64, weightGrams int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	seedVariantWithID(t, conn, id, name, available, priceCents, weightGrams)
	return id
}

func seedVariantWithID(t *testing.T, conn *gorm.DB, id uuid.UUID, name string, available int, priceCents int64, weightGrams int) {
	t.Helper()
	variant := models.Variant{
		ID:             id,
		ProductID:      uuid.New(),
		ProductName:    name,
		UnitPriceCents: priceCents,
		WeightGrams:    weightGrams,
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	if err := conn.Create(&models.InventoryRecord{VariantID: id, AvailableQty: available}).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
}

func assertCounters(t *testing.T, conn *gorm.DB, variantID uuid.UUID, available, reserved int) {
	t.Helper()
	var record models.InventoryRecord
	if err := conn.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	if record.AvailableQty != available || record.ReservedQty != reserved {
		t.Fatalf("counters for %s: got %d/%d, want %d/%d",
			variantID, record.AvailableQty, record.ReservedQty, available, reserved)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:checkout_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	tables := []any{
		&models.Variant{},
		&models.InventoryRecord{},
		&models.Order{},
		&models.OrderLine{},
		&models.PaymentRecord{},
		&models.StockRelease{},
		&models.OrderCounter{},
	}
	if err := conn.AutoMigrate(tables...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}
