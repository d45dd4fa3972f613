package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/logger"
)

const backlogBatchSize = 200

type releaseBacklog interface {
	ListPending(ctx context.Context, limit int) ([]models.StockRelease, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
}

type stockReleaser interface {
	Release(ctx context.Context, variantID uuid.UUID, qty int) error
}

// ReleaseBacklogJobParams configure the backlog drain.
type ReleaseBacklogJobParams struct {
	Logger  *logger.Logger
	Backlog releaseBacklog
	Ledger  stockReleaser
}

// NewReleaseBacklogJob builds the job that retries stock releases which
// failed at compensation or cancellation time.
func NewReleaseBacklogJob(params ReleaseBacklogJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Backlog == nil {
		return nil, fmt.Errorf("backlog required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	return &releaseBacklogJob{
		logg:    params.Logger,
		backlog: params.Backlog,
		ledger:  params.Ledger,
	}, nil
}

type releaseBacklogJob struct {
	logg    *logger.Logger
	backlog releaseBacklog
	ledger  stockReleaser
}

func (j *releaseBacklogJob) Name() string { return "release-backlog" }

func (j *releaseBacklogJob) Run(ctx context.Context) error {
	pending, err := j.backlog.ListPending(ctx, backlogBatchSize)
	if err != nil {
		return fmt.Errorf("list pending releases: %w", err)
	}

	var errs []error
	drained := 0
	for _, release := range pending {
		if err := j.ledger.Release(ctx, release.VariantID, release.Qty); err != nil {
			errs = append(errs, fmt.Errorf("release %d x %s: %w", release.Qty, release.VariantID, err))
			continue
		}
		if err := j.backlog.MarkDone(ctx, release.ID); err != nil {
			errs = append(errs, fmt.Errorf("mark release %s done: %w", release.ID, err))
			continue
		}
		drained++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"pending": len(pending), "drained": drained})
	j.logg.Info(logCtx, "release backlog drain complete")
	return multierr.Combine(errs...)
}
