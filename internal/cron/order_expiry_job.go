package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/logger"
)

const expiryBatchSize = 200

type pendingOrderReader interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderCanceller interface {
	CancelOrderAndReleaseStock(ctx context.Context, orderID uuid.UUID, reason string) error
}

// OrderExpiryJobParams configure the pending-order sweep.
type OrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderReader
	Canceller orderCanceller
	// Window is how long an order may stay PENDING before the sweep
	// cancels it and releases its reserved stock.
	Window time.Duration
}

// NewOrderExpiryJob builds the job that cancels orders stuck in PENDING past
// the expiration window. It repairs checkouts interrupted after creating the
// order (crash, undelivered webhook) so reserved stock cannot leak forever.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Canceller == nil {
		return nil, fmt.Errorf("canceller required")
	}
	if params.Window <= 0 {
		return nil, fmt.Errorf("expiry window must be positive")
	}
	return &orderExpiryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		canceller: params.Canceller,
		window:    params.Window,
		now:       time.Now,
	}, nil
}

type orderExpiryJob struct {
	logg      *logger.Logger
	orders    pendingOrderReader
	canceller orderCanceller
	window    time.Duration
	now       func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	stale, err := j.orders.FindPendingBefore(ctx, cutoff, expiryBatchSize)
	if err != nil {
		return fmt.Errorf("query stale pending orders: %w", err)
	}

	// One bad order must not halt the sweep; failures are collected and the
	// order is retried on the next cycle.
	var errs []error
	expired := 0
	for _, order := range stale {
		if err := j.canceller.CancelOrderAndReleaseStock(ctx, order.ID, "expired"); err != nil {
			errs = append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		expired++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"scanned": len(stale), "expired": expired})
	j.logg.Info(logCtx, "order expiry sweep complete")
	return multierr.Combine(errs...)
}
