package paymentwebhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dariovega/shopstream-backend/internal/notifications"
	"github.com/dariovega/shopstream-backend/internal/orders"
	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/enums"
	pkgerrors "github.com/dariovega/shopstream-backend/pkg/errors"
	"github.com/dariovega/shopstream-backend/pkg/logger"
)

// Event kinds of interest; anything else is acknowledged without action so
// the provider does not keep retrying events we intentionally ignore.
const (
	EventPaymentCompleted = "payment.completed"
	EventSessionExpired   = "checkout.session.expired"
	EventPaymentFailed    = "payment.failed"
)

// Event is the provider's signed envelope. The event id is globally unique
// and stable across redeliveries.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData is the payload shared by the event kinds we consume.
type EventData struct {
	OrderID       uuid.UUID `json:"order_id"`
	SessionID     string    `json:"session_id"`
	FailureReason string    `json:"failure_reason"`
}

type confirmLedger interface {
	ConfirmSale(ctx context.Context, variantID uuid.UUID, qty int) error
}

type canceller interface {
	CancelOrderAndReleaseStock(ctx context.Context, orderID uuid.UUID, reason string) error
}

// ServiceParams collects the processor's dependencies.
type ServiceParams struct {
	OrdersRepo orders.Repository
	Ledger     confirmLedger
	Canceller  canceller
	Notifier   notifications.Publisher
	Logger     *logger.Logger
}

// Service drives order and inventory state from at-least-once payment
// provider events. Authenticity and idempotency are enforced at the HTTP
// boundary before HandleEvent runs.
type Service struct {
	ordersRepo orders.Repository
	ledger     confirmLedger
	canceller  canceller
	notifier   notifications.Publisher
	logg       *logger.Logger
}

// NewService builds the webhook processor.
func NewService(params ServiceParams) (*Service, error) {
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory ledger required")
	}
	if params.Canceller == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cancel path required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notifications.NoopPublisher{}
	}
	return &Service{
		ordersRepo: params.OrdersRepo,
		ledger:     params.Ledger,
		canceller:  params.Canceller,
		notifier:   notifier,
		logg:       params.Logger,
	}, nil
}

// HandleEvent dispatches one verified, not-yet-processed event. An error
// return means the idempotency marker must not be written, so the provider's
// redelivery can reprocess.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event required")
	}

	switch strings.ToLower(event.Type) {
	case EventPaymentCompleted:
		return s.handleCompleted(ctx, event)
	case EventSessionExpired:
		return s.handleExpired(ctx, event)
	case EventPaymentFailed:
		return s.handleFailed(ctx, event)
	default:
		return nil
	}
}

func (s *Service) handleCompleted(ctx context.Context, event *Event) error {
	if event.Data.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id missing")
	}

	order, err := s.ordersRepo.FindByID(ctx, event.Data.OrderID)
	if err != nil {
		return err
	}

	changed, err := s.ordersRepo.MarkPaid(ctx, order.ID, nowUTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
	}
	if !changed && order.Status != enums.OrderStatusPaid {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	// A redelivery lands here with the order already PAID when an earlier
	// delivery failed partway through the confirmations. Each line carries
	// its own confirmation claim, so finishing the remainder is safe and
	// confirming a line twice is impossible.
	lines, err := s.ordersRepo.ListLines(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order lines")
	}
	for _, line := range lines {
		if err := s.confirmLine(ctx, line); err != nil {
			return err
		}
	}

	if err := s.ordersRepo.MarkPaymentSucceeded(ctx, order.ID, event.Data.SessionID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment succeeded")
	}

	if changed {
		s.notifier.Enqueue(ctx, notifications.Event{
			Kind:      enums.NotificationOrderPaid,
			Recipient: order.ShippingEmail,
			OrderID:   order.ID,
			Data:      map[string]any{"order_number": order.OrderNumber},
		})
	}
	return nil
}

// confirmLine consumes the line's reservation exactly once. The claim on the
// line row is taken first; if the ledger write then fails the claim is
// returned so the provider's redelivery retries this line.
func (s *Service) confirmLine(ctx context.Context, line models.OrderLine) error {
	claimed, err := s.ordersRepo.MarkLineConfirmed(ctx, line.ID, nowUTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim line confirmation")
	}
	if !claimed {
		return nil
	}
	if err := s.ledger.ConfirmSale(ctx, line.VariantID, line.Qty); err != nil {
		if unmarkErr := s.ordersRepo.UnmarkLineConfirmed(ctx, line.ID); unmarkErr != nil {
			err = multierr.Append(err, unmarkErr)
		}
		return err
	}
	return nil
}

// handleExpired never propagates a hard failure: an expired session is not
// actionable by retrying harder, and the reconciler covers anything missed.
func (s *Service) handleExpired(ctx context.Context, event *Event) error {
	if event.Data.OrderID == uuid.Nil {
		return nil
	}
	if err := s.canceller.CancelOrderAndReleaseStock(ctx, event.Data.OrderID, "session_expired"); err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("expire order %s: %v", event.Data.OrderID, err))
		}
	}
	return nil
}

func (s *Service) handleFailed(ctx context.Context, event *Event) error {
	if event.Data.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id missing")
	}
	// The order stays PENDING; the customer may retry the payment.
	reason := event.Data.FailureReason
	if reason == "" {
		reason = "payment_failed"
	}
	if err := s.ordersRepo.MarkPaymentFailed(ctx, event.Data.OrderID, event.Data.SessionID, reason); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
