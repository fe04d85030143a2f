package shipping

import (
	"strings"

	"github.com/noah-isme/backend-koperasi/internal/order"
)

var forward = map[order.Status]order.Status{
	order.StatusAwaitingAssignment: order.StatusPendingPickup,
	order.StatusPendingPickup:      order.StatusInTransit,
	order.StatusInTransit:          order.StatusDelivered,
}

// CanTransition reports whether an order may move from one shipping status to another.
// Statuses only advance one step at a time; any non-terminal status may be cancelled.
func CanTransition(from, to order.Status) bool {
	if from.Terminal() {
		return false
	}
	if to == order.StatusCancelled {
		return true
	}
	next, ok := forward[from]
	return ok && next == to
}

// MapExternalToStatus converts courier status labels into shipping statuses.
func MapExternalToStatus(external string) (order.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(external)) {
	case "assigned", "pending_pickup", "pending-pickup", "awaiting_pickup":
		return order.StatusPendingPickup, true
	case "picked", "picked_up", "pickup", "shipped", "in_transit", "in-transit", "on_the_way", "out_for_delivery":
		return order.StatusInTransit, true
	case "delivered", "received", "completed":
		return order.StatusDelivered, true
	case "cancelled", "canceled", "returned":
		return order.StatusCancelled, true
	}
	return "", false
}
