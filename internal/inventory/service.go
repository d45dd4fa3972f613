package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dariovega/shopstream-backend/pkg/db/models"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
	"github.com/dariovega/shopstream-backend/pkg/logger"
)

// cacheInvalidator drops the variant read cache after a stock mutation.
// Invalidation is best-effort and never blocks the mutation result.
type cacheInvalidator interface {
	InvalidateVariant(ctx context.Context, variantID uuid.UUID)
}

// ReservedVariant is returned by a successful reservation with the price and
// weight snapshot the caller needs to build an order line.
type ReservedVariant struct {
	VariantID      uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	Attrs          map[string]any
	UnitPriceCents int64
	WeightGrams    int
}

// Service is the inventory ledger: per-variant available/reserved counters
// mutated only through single conditional updates. No row is ever locked
// across statements, so concurrent checkouts contend on the update predicate
// alone.
type Service interface {
	Reserve(ctx context.Context, variantID uuid.UUID, qty int) (*ReservedVariant, error)
	Release(ctx context.Context, variantID uuid.UUID, qty int) error
	ConfirmSale(ctx context.Context, variantID uuid.UUID, qty int) error
	Adjust(ctx context.Context, variantID uuid.UUID, delta int) error
}

type service struct {
	db    *gorm.DB
	cache cacheInvalidator
	logg  *logger.Logger
}

// NewService builds the inventory ledger. The cache invalidator is optional.
func NewService(db *gorm.DB, cache cacheInvalidator, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db, cache: cache, logg: logg}, nil
}

func (s *service) Reserve(ctx context.Context, variantID uuid.UUID, qty int) (*ReservedVariant, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reserve qty must be positive")
	}

	// The snapshot is read before the counters move. Once the conditional
	// update commits, the hold exists with no order row pointing at it, so
	// nothing fallible may run between the update and the return.
	var variant models.Variant
	if err := s.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found").
				WithDetails(map[string]any{"variant_id": variantID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}

	res := s.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ? AND available_qty >= ?", variantID, qty).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty - ?", qty),
			"reserved_qty":  gorm.Expr("reserved_qty + ?", qty),
		})
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		if err := s.requireRecord(ctx, variantID); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"variant_id": variantID, "qty": qty})
	}

	s.invalidate(ctx, variantID)

	return &ReservedVariant{
		VariantID:      variant.ID,
		ProductID:      variant.ProductID,
		ProductName:    variant.ProductName,
		Attrs:          variant.Attrs,
		UnitPriceCents: variant.UnitPriceCents,
		WeightGrams:    variant.WeightGrams,
	}, nil
}

func (s *service) Release(ctx context.Context, variantID uuid.UUID, qty int) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release qty must be positive")
	}

	// Reserved is floored at zero instead of failing: a double release after a
	// crash must not wedge the reconciler, and returning units to the shelf is
	// always safe.
	res := s.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ?", variantID).
		Updates(map[string]any{
			"available_qty": gorm.Expr("available_qty + ?", qty),
			"reserved_qty":  gorm.Expr("CASE WHEN reserved_qty >= ? THEN reserved_qty - ? ELSE 0 END", qty, qty),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return s.requireRecord(ctx, variantID)
	}

	s.invalidate(ctx, variantID)
	return nil
}

func (s *service) ConfirmSale(ctx context.Context, variantID uuid.UUID, qty int) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "confirm qty must be positive")
	}

	res := s.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ? AND reserved_qty >= ?", variantID, qty).
		Update("reserved_qty", gorm.Expr("reserved_qty - ?", qty))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "confirm sale")
	}
	if res.RowsAffected == 0 {
		if err := s.requireRecord(ctx, variantID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientReserved, "insufficient reserved stock").
			WithDetails(map[string]any{"variant_id": variantID, "qty": qty})
	}

	s.invalidate(ctx, variantID)
	return nil
}

func (s *service) Adjust(ctx context.Context, variantID uuid.UUID, delta int) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if delta == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ? AND available_qty + ? >= 0", variantID, delta).
		Update("available_qty", gorm.Expr("available_qty + ?", delta))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust stock")
	}
	if res.RowsAffected == 0 {
		if err := s.requireRecord(ctx, variantID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeConflict, "adjustment would drive available stock negative").
			WithDetails(map[string]any{"variant_id": variantID, "delta": delta})
	}

	s.invalidate(ctx, variantID)
	return nil
}

func (s *service) requireRecord(ctx context.Context, variantID uuid.UUID) error {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.InventoryRecord{}).
		Where("variant_id = ?", variantID).
		Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check inventory record")
	}
	if count == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, variantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateVariant(ctx, variantID)
}
