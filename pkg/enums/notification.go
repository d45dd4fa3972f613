package enums

// NotificationKind identifies the template a notification event resolves to.
// Rendering and delivery live in the notification service; this side only
// enqueues.
type NotificationKind string

const (
	NotificationOrderCreated   NotificationKind = "order.created"
	NotificationOrderPaid      NotificationKind = "order.paid"
	NotificationOrderCancelled NotificationKind = "order.cancelled"
)

// String implements fmt.Stringer.
func (n NotificationKind) String() string {
	return string(n)
}
