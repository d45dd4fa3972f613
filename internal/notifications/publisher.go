package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dariovega/shopstream-backend/pkg/enums"
	"github.com/dariovega/shopstream-backend/pkg/logger"
)

const (
	publishTimeout = 15 * time.Second
	maxAttempts    = 3
	backoffBase    = 500 * time.Millisecond
)

// Event is the envelope handed to the notification service. Rendering and
// delivery happen there; this side only enqueues.
type Event struct {
	Kind       enums.NotificationKind `json:"kind"`
	Recipient  string                 `json:"recipient"`
	OrderID    uuid.UUID              `json:"order_id"`
	Data       map[string]any         `json:"data,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// Publisher enqueues notification events. Enqueue never returns an error:
// notifications are fire-and-forget and must not affect the correctness path
// that triggered them.
type Publisher interface {
	Enqueue(ctx context.Context, event Event)
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

type pubsubPublisher struct {
	topic topicPublisher
	logg  *logger.Logger
}

// NewPublisher builds a Pub/Sub backed notification publisher.
func NewPublisher(topic topicPublisher, logg *logger.Logger) (Publisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("notification topic required")
	}
	return &pubsubPublisher{topic: topic, logg: logg}, nil
}

func (p *pubsubPublisher) Enqueue(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.warn(ctx, fmt.Sprintf("marshal notification %s: %v", event.Kind, err))
		return
	}

	// Detached from the request context so a client disconnect does not drop
	// the event; bounded by its own timeout instead.
	background := context.WithoutCancel(ctx)
	go p.deliver(background, event, payload)
}

func (p *pubsubPublisher) deliver(ctx context.Context, event Event, payload []byte) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(backoffBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		msg := &gcppubsub.Message{
			Data: payload,
			Attributes: map[string]string{
				"kind":     event.Kind.String(),
				"order_id": event.OrderID.String(),
			},
		}
		result := p.topic.Publish(ctx, msg)
		if result == nil {
			return fmt.Errorf("publisher returned nil result")
		}
		if _, err := result.Get(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		p.warn(ctx, fmt.Sprintf("enqueue notification %s for order %s: %v", event.Kind, event.OrderID, err))
	}
}

func (p *pubsubPublisher) warn(ctx context.Context, msg string) {
	if p.logg != nil {
		p.logg.Warn(ctx, msg)
	}
}

// NoopPublisher drops every event. Used where notifications are not wired,
// such as tests and the migration command.
type NoopPublisher struct{}

// Enqueue implements Publisher.
func (NoopPublisher) Enqueue(context.Context, Event) {}
