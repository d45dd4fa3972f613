package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dariovega/shopstream-backend/pkg/db/models"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
	"github.com/dariovega/shopstream-backend/pkg/logger"
	"github.com/dariovega/shopstream-backend/pkg/types"
)

const cacheScope = "variant"

// cacheStore is the slim redis surface used by the read-through cache.
type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(scope, id string) string
}

// VariantInfo is the catalog snapshot the checkout path consumes.
type VariantInfo struct {
	VariantID      uuid.UUID     `json:"variant_id"`
	ProductID      uuid.UUID     `json:"product_id"`
	ProductName    string        `json:"product_name"`
	Attrs          types.JSONMap `json:"attrs,omitempty"`
	UnitPriceCents int64         `json:"unit_price_cents"`
	WeightGrams    int           `json:"weight_grams"`
}

// PromotionPrice resolves the price a line should be charged at right now.
type PromotionPrice struct {
	BaseCents      int64 `json:"base_cents"`
	EffectiveCents int64 `json:"effective_cents"`
	HasPromotion   bool  `json:"has_promotion"`
}

// Service is the read-side catalog collaborator: variant lookups with a
// best-effort redis read-through cache, and promotional price resolution.
type Service interface {
	GetVariant(ctx context.Context, variantID uuid.UUID) (*VariantInfo, error)
	GetPromotionPrice(ctx context.Context, variantID uuid.UUID) (*PromotionPrice, error)
	InvalidateVariant(ctx context.Context, variantID uuid.UUID)
}

type service struct {
	db       *gorm.DB
	cache    cacheStore
	cacheTTL time.Duration
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the catalog reader. The cache is optional; without it
// every lookup hits the database.
func NewService(db *gorm.DB, cache cacheStore, cacheTTL time.Duration, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	return &service{db: db, cache: cache, cacheTTL: cacheTTL, logg: logg, now: time.Now}, nil
}

func (s *service) GetVariant(ctx context.Context, variantID uuid.UUID) (*VariantInfo, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}

	if cached := s.fromCache(ctx, variantID); cached != nil {
		return cached, nil
	}

	variant, err := s.loadVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	info := &VariantInfo{
		VariantID:      variant.ID,
		ProductID:      variant.ProductID,
		ProductName:    variant.ProductName,
		Attrs:          variant.Attrs,
		UnitPriceCents: variant.UnitPriceCents,
		WeightGrams:    variant.WeightGrams,
	}
	s.toCache(ctx, info)
	return info, nil
}

func (s *service) GetPromotionPrice(ctx context.Context, variantID uuid.UUID) (*PromotionPrice, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}

	variant, err := s.loadVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}

	price := &PromotionPrice{
		BaseCents:      variant.UnitPriceCents,
		EffectiveCents: variant.UnitPriceCents,
	}
	if variant.PromoActiveAt(s.now()) {
		price.EffectiveCents = *variant.PromoCents
		price.HasPromotion = true
	}
	return price, nil
}

func (s *service) InvalidateVariant(ctx context.Context, variantID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.CacheKey(cacheScope, variantID.String())); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("invalidate variant cache %s: %v", variantID, err))
	}
}

func (s *service) loadVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	err := s.db.WithContext(ctx).First(&variant, "id = ?", variantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	return &variant, nil
}

func (s *service) fromCache(ctx context.Context, variantID uuid.UUID) *VariantInfo {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(cacheScope, variantID.String()))
	if err != nil {
		return nil
	}
	var info VariantInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil
	}
	return &info
}

func (s *service) toCache(ctx context.Context, info *VariantInfo) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(info)
	if err != nil {
		return
	}
	key := s.cache.CacheKey(cacheScope, info.VariantID.String())
	if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil && s.logg != nil {
		s.logg.Warn(ctx, fmt.Sprintf("cache variant %s: %v", info.VariantID, err))
	}
}
