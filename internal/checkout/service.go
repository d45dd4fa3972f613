package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dariovega/shopstream-backend/internal/catalog"
	"github.com/dariovega/shopstream-backend/internal/inventory"
	"github.com/dariovega/shopstream-backend/internal/notifications"
	"github.com/dariovega/shopstream-backend/internal/orders"
	"github.com/dariovega/shopstream-backend/internal/pricing"
	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/enums"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
	"github.com/dariovega/shopstream-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockLedger interface {
	Reserve(ctx context.Context, variantID uuid.UUID, qty int) (*inventory.ReservedVariant, error)
	Release(ctx context.Context, variantID uuid.UUID, qty int) error
}

type catalogReader interface {
	GetVariant(ctx context.Context, variantID uuid.UUID) (*catalog.VariantInfo, error)
	GetPromotionPrice(ctx context.Context, variantID uuid.UUID) (*catalog.PromotionPrice, error)
}

type releaseRecorder interface {
	Record(ctx context.Context, orderID *uuid.UUID, variantID uuid.UUID, qty int, reason string) error
}

// Service is the order saga coordinator. Reservations run sequentially
// before any order row exists; on failure every reserved line is released
// again; the order and its lines commit in one local transaction that never
// spans a collaborator call.
type Service interface {
	CreateOrderFromCart(ctx context.Context, customerID *uuid.UUID, input CheckoutInput) (*models.Order, error)
	PreviewOrderTotal(ctx context.Context, input CheckoutInput) (*Preview, error)
	CancelOrderAndReleaseStock(ctx context.Context, orderID uuid.UUID, reason string) error
	CancelPendingOrder(ctx context.Context, orderID uuid.UUID, callerID *uuid.UUID, guestEmail string) error
}

// Config carries the checkout constants injected at construction.
type Config struct {
	Currency        string
	PaymentProvider string
}

type service struct {
	tx         txRunner
	ordersRepo orders.Repository
	ledger     stockLedger
	catalog    catalogReader
	calc       pricing.Calculator
	backlog    releaseRecorder
	notifier   notifications.Publisher
	cfg        Config
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds the saga coordinator.
func NewService(
	tx txRunner,
	ordersRepo orders.Repository,
	ledger stockLedger,
	catalogSvc catalogReader,
	calc pricing.Calculator,
	backlog releaseRecorder,
	notifier notifications.Publisher,
	cfg Config,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if catalogSvc == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if backlog == nil {
		return nil, fmt.Errorf("release backlog required")
	}
	if notifier == nil {
		notifier = notifications.NoopPublisher{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "EUR"
	}
	if cfg.PaymentProvider == "" {
		cfg.PaymentProvider = "default"
	}
	return &service{
		tx:         tx,
		ordersRepo: ordersRepo,
		ledger:     ledger,
		catalog:    catalogSvc,
		calc:       calc,
		backlog:    backlog,
		notifier:   notifier,
		cfg:        cfg,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// reservedLine is one successful reservation plus its resolved pricing.
type reservedLine struct {
	variant   *inventory.ReservedVariant
	qty       int
	unitCents int64
	baseCents int64
}

func (s *service) CreateOrderFromCart(ctx context.Context, customerID *uuid.UUID, input CheckoutInput) (*models.Order, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	// Reserve sequentially. Parallel reservation would widen the worst-case
	// contention window and leave compensation order undefined.
	reservedSoFar := make([]reservedLine, 0, len(input.Lines))
	for _, line := range input.Lines {
		variant, err := s.ledger.Reserve(ctx, line.VariantID, line.Qty)
		if err != nil {
			s.compensate(ctx, nil, reservedSoFar, "checkout_failed")
			return nil, err
		}

		unit, base := s.resolvePrice(ctx, line.VariantID, variant.UnitPriceCents)
		reservedSoFar = append(reservedSoFar, reservedLine{
			variant:   variant,
			qty:       line.Qty,
			unitCents: unit,
			baseCents: base,
		})
	}

	quote, err := s.calc.Quote(pricingLines(reservedSoFar), input.ShippingAddress.Country, input.ShippingMethod, input.TaxCategory)
	if err != nil {
		s.compensate(ctx, nil, reservedSoFar, "checkout_failed")
		return nil, err
	}

	var created *models.Order
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)

		number, err := repo.NextOrderNumber(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
		}

		order := s.buildOrder(number, customerID, input, quote, reservedSoFar)
		created, err = repo.CreateOrder(ctx, order)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
		return nil
	})
	if txErr != nil {
		// Reservations must not outlive a failed order write.
		s.compensate(ctx, nil, reservedSoFar, "order_write_failed")
		return nil, txErr
	}

	s.notifier.Enqueue(ctx, notifications.Event{
		Kind:      enums.NotificationOrderCreated,
		Recipient: created.ShippingEmail,
		OrderID:   created.ID,
		Data: map[string]any{
			"order_number": created.OrderNumber,
			"total_cents":  created.TotalCents,
		},
	})

	return created, nil
}

func (s *service) PreviewOrderTotal(ctx context.Context, input CheckoutInput) (*Preview, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	previewLines := make([]PreviewLine, 0, len(input.Lines))
	amounts := make([]pricing.LineAmount, 0, len(input.Lines))
	for _, line := range input.Lines {
		variant, err := s.catalog.GetVariant(ctx, line.VariantID)
		if err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"variant_id": line.VariantID})
			}
			return nil, err
		}
		unit, base := s.resolvePrice(ctx, line.VariantID, variant.UnitPriceCents)

		previewLines = append(previewLines, PreviewLine{
			VariantID:      variant.VariantID,
			ProductName:    variant.ProductName,
			UnitPriceCents: unit,
			BaseUnitCents:  base,
			Qty:            line.Qty,
			TotalCents:     unit * int64(line.Qty),
		})
		amounts = append(amounts, pricing.LineAmount{
			UnitPriceCents: unit,
			BaseUnitCents:  base,
			Qty:            line.Qty,
			WeightGrams:    variant.WeightGrams,
		})
	}

	quote, err := s.calc.Quote(amounts, input.ShippingAddress.Country, input.ShippingMethod, input.TaxCategory)
	if err != nil {
		return nil, err
	}
	return &Preview{Lines: previewLines, Quote: quote}, nil
}

func (s *service) CancelOrderAndReleaseStock(ctx context.Context, orderID uuid.UUID, reason string) error {
	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	// Status flips first so a re-entrant call sees CANCELLED and returns;
	// stock is never released twice for one order.
	changed, err := s.ordersRepo.MarkCancelled(ctx, orderID, reason, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !changed {
		current, err := s.ordersRepo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if current.Status == enums.OrderStatusCancelled {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").
			WithDetails(map[string]any{"status": current.Status.String()})
	}

	for _, line := range order.Lines {
		if err := s.ledger.Release(ctx, line.VariantID, line.Qty); err != nil {
			s.warn(ctx, fmt.Sprintf("release %d x %s for cancelled order %s: %v", line.Qty, line.VariantID, orderID, err))
			s.recordBacklog(ctx, orderID, line.VariantID, line.Qty, reason)
		}
	}

	s.notifier.Enqueue(ctx, notifications.Event{
		Kind:      enums.NotificationOrderCancelled,
		Recipient: order.ShippingEmail,
		OrderID:   order.ID,
		Data:      map[string]any{"reason": reason},
	})
	return nil
}

func (s *service) CancelPendingOrder(ctx context.Context, orderID uuid.UUID, callerID *uuid.UUID, guestEmail string) error {
	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	switch {
	case callerID != nil:
		if order.CustomerID == nil || *order.CustomerID != *callerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
		}
	default:
		if !order.IsGuest() || !strings.EqualFold(strings.TrimSpace(guestEmail), order.ShippingEmail) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "email does not match order")
		}
	}

	if order.Status == enums.OrderStatusCancelled {
		return nil
	}
	if order.Status != enums.OrderStatusPending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only pending orders can be cancelled").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	return s.CancelOrderAndReleaseStock(ctx, orderID, "customer_cancelled")
}

// resolvePrice returns the effective and base unit price. A promotion lookup
// failure falls back to the base price rather than aborting the order; the
// customer is charged the non-discounted price in that window.
func (s *service) resolvePrice(ctx context.Context, variantID uuid.UUID, baseCents int64) (unit, base int64) {
	promo, err := s.catalog.GetPromotionPrice(ctx, variantID)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("resolve promotion for %s: %v", variantID, err))
		return baseCents, baseCents
	}
	return promo.EffectiveCents, promo.BaseCents
}

// compensate releases every already-reserved line, best-effort: a failing
// release is logged and written to the backlog, never allowed to stop the
// remaining releases.
func (s *service) compensate(ctx context.Context, orderID *uuid.UUID, reserved []reservedLine, reason string) {
	for _, line := range reserved {
		if err := s.ledger.Release(ctx, line.variant.VariantID, line.qty); err != nil {
			s.warn(ctx, fmt.Sprintf("compensating release %d x %s: %v", line.qty, line.variant.VariantID, err))
			s.recordBacklogPtr(ctx, orderID, line.variant.VariantID, line.qty, reason)
		}
	}
}

func (s *service) recordBacklog(ctx context.Context, orderID uuid.UUID, variantID uuid.UUID, qty int, reason string) {
	s.recordBacklogPtr(ctx, &orderID, variantID, qty, reason)
}

func (s *service) recordBacklogPtr(ctx context.Context, orderID *uuid.UUID, variantID uuid.UUID, qty int, reason string) {
	if err := s.backlog.Record(ctx, orderID, variantID, qty, reason); err != nil {
		s.warn(ctx, fmt.Sprintf("record release backlog for %s: %v", variantID, err))
	}
}

func (s *service) buildOrder(number int64, customerID *uuid.UUID, input CheckoutInput, quote pricing.Quote, reserved []reservedLine) *models.Order {
	lines := make([]models.OrderLine, 0, len(reserved))
	for _, line := range reserved {
		lines = append(lines, models.OrderLine{
			ID:             uuid.New(),
			VariantID:      line.variant.VariantID,
			ProductName:    line.variant.ProductName,
			VariantAttrs:   line.variant.Attrs,
			UnitPriceCents: line.unitCents,
			Qty:            line.qty,
			WeightGrams:    line.variant.WeightGrams,
			TotalCents:     line.unitCents * int64(line.qty),
		})
	}

	return &models.Order{
		ID:              uuid.New(),
		OrderNumber:     number,
		CustomerID:      customerID,
		Status:          enums.OrderStatusPending,
		Currency:        s.cfg.Currency,
		SubtotalCents:   quote.SubtotalCents,
		DiscountCents:   quote.DiscountCents,
		ShippingCents:   quote.ShippingCents,
		ShippingMethod:  input.ShippingMethod,
		TaxCents:        quote.TaxCents,
		TaxRate:         quote.TaxRate.String(),
		TotalCents:      quote.TotalCents,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  input.BillingAddress,
		ShippingEmail:   input.ShippingAddress.NormalizedEmail(),
		Lines:           lines,
		Payment: &models.PaymentRecord{
			ID:          uuid.New(),
			Provider:    s.cfg.PaymentProvider,
			Status:      enums.PaymentStatusPending,
			AmountCents: quote.TotalCents,
			Currency:    s.cfg.Currency,
		},
	}
}

func pricingLines(reserved []reservedLine) []pricing.LineAmount {
	amounts := make([]pricing.LineAmount, 0, len(reserved))
	for _, line := range reserved {
		amounts = append(amounts, pricing.LineAmount{
			UnitPriceCents: line.unitCents,
			BaseUnitCents:  line.baseCents,
			Qty:            line.qty,
			WeightGrams:    line.variant.WeightGrams,
		})
	}
	return amounts
}

func validateInput(input CheckoutInput) error {
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart contains no lines")
	}
	for _, line := range input.Lines {
		if line.VariantID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "line variant id required")
		}
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line qty must be positive")
		}
	}
	if err := input.ShippingAddress.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipping address")
	}
	if !input.ShippingMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid shipping method")
	}
	if !input.TaxCategory.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid tax category")
	}
	return nil
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
