package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dariovega/shopstream-backend/pkg/db/models"
	"github.com/dariovega/shopstream-backend/pkg/enums"
	"github.com/dariovega/shopstream-backend/pkg/pagination"
)

// Repository owns order, order-line and payment-record persistence. Status
// writes are conditional on the current status so the state machine is
// enforced at the row, not by convention.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	NextOrderNumber(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListLines(ctx context.Context, orderID uuid.UUID) ([]models.OrderLine, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]models.Order, string, error)
	FindByGuestEmail(ctx context.Context, email string) ([]models.Order, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)

	// MarkPaid and MarkCancelled move a PENDING order forward; both report
	// whether the row actually changed so callers can tell a no-op from a
	// conflict.
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) (bool, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, to enums.OrderStatus, from ...enums.OrderStatus) (bool, error)

	// MarkLineConfirmed claims the one-time sale confirmation for a line.
	// It reports false when another delivery already holds the claim;
	// UnmarkLineConfirmed returns the claim after a failed confirmation so a
	// redelivery can retry it.
	MarkLineConfirmed(ctx context.Context, lineID uuid.UUID, at time.Time) (bool, error)
	UnmarkLineConfirmed(ctx context.Context, lineID uuid.UUID) error

	TransferOwnership(ctx context.Context, orderID, newOwnerID uuid.UUID, verificationEmail string) error
	ClaimGuestOrders(ctx context.Context, customerID uuid.UUID, email string) (int64, error)

	FindPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.PaymentRecord, error)
	MarkPaymentSucceeded(ctx context.Context, orderID uuid.UUID, externalID string) error
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID, externalID, reason string) error
}
