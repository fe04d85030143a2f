package shipping

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/obs"
	"github.com/noah-isme/backend-koperasi/internal/order"
)

var (
	// ErrOrderNotEligible is returned for orders that have no shipment, such as POS sales.
	ErrOrderNotEligible = errors.New("order is not eligible for shipping")
	// ErrInvalidTransition is returned when a status change would break the state machine.
	ErrInvalidTransition = errors.New("invalid shipping status transition")
	// ErrStaleStatus is returned by stores when the order status changed since it was read.
	ErrStaleStatus = errors.New("order status changed concurrently")
	// ErrNotAssigned is returned when a courier touches an order assigned to someone else.
	ErrNotAssigned = errors.New("order is not assigned to this courier")
)

// Transition is a compare-and-set status change. Stores apply it only while the order is
// still in From; cancelling with Restock returns every item quantity to stock.
type Transition struct {
	OrderID        string
	From           order.Status
	To             order.Status
	CourierID      string
	TrackingNumber string
	Restock        bool
	At             time.Time
}

// Store is the persistence contract for shipping.
type Store interface {
	GetOrder(ctx context.Context, id string) (order.Order, error)
	ListOrders(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error)
	TransitionOrder(ctx context.Context, t Transition) (order.Order, error)
}

// CacheInvalidator drops cached product data after restocks.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...string)
}

// Service drives orders through the shipping state machine.
type Service struct {
	Store  Store
	Events events.Emitter
	Cache  CacheInvalidator
	Logger zerolog.Logger
	Now    func() time.Time
}

// Assign hands an awaiting order to a courier and moves it to PENDING_PICKUP.
func (s *Service) Assign(ctx context.Context, orderID, courierID, trackingNumber string) (order.Order, error) {
	courierID = strings.TrimSpace(courierID)
	if courierID == "" {
		return order.Order{}, fmt.Errorf("%w: courier is required", order.ErrInvalidInput)
	}
	o, err := s.load(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.Status != order.StatusAwaitingAssignment {
		return order.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, order.StatusPendingPickup)
	}
	return s.apply(ctx, o, Transition{
		OrderID:        o.ID,
		From:           o.Status,
		To:             order.StatusPendingPickup,
		CourierID:      courierID,
		TrackingNumber: strings.TrimSpace(trackingNumber),
	})
}

// UpdateStatus moves an order to the requested status when the transition is allowed.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, to order.Status) (order.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if to == order.StatusPendingPickup {
		// needs a courier, see Assign
		return order.Order{}, fmt.Errorf("%w: use assign to move to %s", ErrInvalidTransition, to)
	}
	if !CanTransition(o.Status, to) {
		return order.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	return s.apply(ctx, o, Transition{OrderID: o.ID, From: o.Status, To: to})
}

// UpdateStatusAsCourier lets the assigned courier report pickup and delivery.
func (s *Service) UpdateStatusAsCourier(ctx context.Context, courierID, orderID string, to order.Status) (order.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.CourierID != courierID {
		return order.Order{}, ErrNotAssigned
	}
	if to != order.StatusInTransit && to != order.StatusDelivered {
		return order.Order{}, fmt.Errorf("%w: couriers cannot set %s", ErrInvalidTransition, to)
	}
	if !CanTransition(o.Status, to) {
		return order.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	return s.apply(ctx, o, Transition{OrderID: o.ID, From: o.Status, To: to})
}

// CancelOwn lets a customer cancel their own order before a courier is assigned.
func (s *Service) CancelOwn(ctx context.Context, userID, orderID string) (order.Order, error) {
	o, err := s.load(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if o.UserID != userID {
		return order.Order{}, order.ErrOrderNotFound
	}
	if o.Status != order.StatusAwaitingAssignment {
		return order.Order{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, order.StatusCancelled)
	}
	return s.apply(ctx, o, Transition{OrderID: o.ID, From: o.Status, To: order.StatusCancelled})
}

// ListForCourier returns the courier's open deliveries, oldest first.
func (s *Service) ListForCourier(ctx context.Context, courierID string) ([]order.Order, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("shipping: store not configured")
	}
	orders, _, err := s.Store.ListOrders(ctx, order.ListFilter{
		CourierID: courierID,
		Channel:   order.ChannelOnline,
		Statuses:  []order.Status{order.StatusPendingPickup, order.StatusInTransit},
	})
	if err != nil {
		return nil, fmt.Errorf("list courier orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].Date.Before(orders[j].Date) })
	return orders, nil
}

func (s *Service) load(ctx context.Context, orderID string) (order.Order, error) {
	if s == nil || s.Store == nil {
		return order.Order{}, errors.New("shipping: store not configured")
	}
	o, err := s.Store.GetOrder(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return order.Order{}, err
	}
	if o.Channel != order.ChannelOnline {
		return order.Order{}, ErrOrderNotEligible
	}
	return o, nil
}

func (s *Service) apply(ctx context.Context, o order.Order, t Transition) (order.Order, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t.At = now().UTC()
	t.Restock = t.To == order.StatusCancelled
	updated, err := s.Store.TransitionOrder(ctx, t)
	if err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return order.Order{}, fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		return order.Order{}, fmt.Errorf("transition order: %w", err)
	}
	obs.ObserveShipmentTransition(string(t.To))
	s.Logger.Info().
		Str("order_id", o.ID).
		Str("from", string(t.From)).
		Str("to", string(t.To)).
		Str("courier_id", updated.CourierID).
		Msg("shipping_status_changed")

	if t.Restock && s.Cache != nil {
		ids := make([]string, 0, len(o.Items))
		for _, it := range o.Items {
			if !slices.Contains(ids, it.ProductID) {
				ids = append(ids, it.ProductID)
			}
		}
		s.Cache.InvalidateProducts(ctx, ids...)
	}
	s.emit(ctx, t, updated)
	return updated, nil
}

func (s *Service) emit(ctx context.Context, t Transition, o order.Order) {
	if s.Events == nil {
		return
	}
	topic, ok := statusTopic(t.To)
	if !ok {
		return
	}
	payload := events.ShipmentPayload{
		OrderID:        o.ID,
		From:           string(t.From),
		To:             string(t.To),
		CourierID:      o.CourierID,
		TrackingNumber: o.TrackingNumber,
	}
	if _, err := s.Events.Emit(ctx, topic, o.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("order_id", o.ID).Str("topic", topic).Msg("shipping event emit failed")
	}
}

func statusTopic(status order.Status) (string, bool) {
	switch status {
	case order.StatusPendingPickup:
		return events.TopicShipmentPendingPickup, true
	case order.StatusInTransit:
		return events.TopicShipmentInTransit, true
	case order.StatusDelivered:
		return events.TopicShipmentDelivered, true
	case order.StatusCancelled:
		return events.TopicOrderCancelled, true
	default:
		return "", false
	}
}
