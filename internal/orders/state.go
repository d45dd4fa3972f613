package orders

import "github.com/dariovega/shopstream-backend/pkg/enums"

// allowedTransitions is the order status state machine. PENDING can only
// leave through PAID or CANCELLED; nothing ever re-enters PENDING.
var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusPaid, enums.OrderStatusCancelled},
	enums.OrderStatusPaid:       {enums.OrderStatusProcessing, enums.OrderStatusRefunded},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// SourcesFor returns every status that may legally move to the target.
func SourcesFor(to enums.OrderStatus) []enums.OrderStatus {
	var sources []enums.OrderStatus
	for from, targets := range allowedTransitions {
		for _, candidate := range targets {
			if candidate == to {
				sources = append(sources, from)
			}
		}
	}
	return sources
}
