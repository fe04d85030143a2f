package shipping

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

type fakeStore struct {
	mu          sync.Mutex
	orders      map[string]order.Order
	restocked   map[string]int
	transitions []Transition
}

func newFakeStore(orders ...order.Order) *fakeStore {
	s := &fakeStore{orders: map[string]order.Order{}, restocked: map[string]int{}}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeStore) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	return o, nil
}

func (s *fakeStore) ListOrders(_ context.Context, f order.ListFilter) ([]order.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for _, o := range s.orders {
		if f.Matches(o) {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) TransitionOrder(_ context.Context, t Transition) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[t.OrderID]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	if o.Status != t.From {
		return order.Order{}, ErrStaleStatus
	}
	o.Status = t.To
	o.UpdatedAt = t.At
	if t.CourierID != "" {
		o.CourierID = t.CourierID
	}
	if t.TrackingNumber != "" {
		o.TrackingNumber = t.TrackingNumber
	}
	if t.Restock {
		for _, it := range o.Items {
			s.restocked[it.ProductID] += it.Quantity
		}
	}
	s.orders[o.ID] = o
	s.transitions = append(s.transitions, t)
	return o, nil
}

type recordingEmitter struct {
	mu     sync.Mutex
	topics []string
}

func (e *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, topic)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

type recordingCache struct{ ids []string }

func (c *recordingCache) InvalidateProducts(_ context.Context, ids ...string) {
	c.ids = append(c.ids, ids...)
}

var baseTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func onlineOrder(id, user string, at time.Time) order.Order {
	return order.Order{
		ID:      id,
		UserID:  user,
		Channel: order.ChannelOnline,
		Status:  order.StatusAwaitingAssignment,
		Items: []order.Item{
			{ProductID: "p-beras", ProductName: "Beras", Quantity: 3, UnitPrice: pricing.NewMoney(3000)},
			{ProductID: "p-gula", ProductName: "Gula", Quantity: 1, UnitPrice: pricing.NewMoney(14000)},
		},
		Date: at,
	}
}

func newTestService(store *fakeStore) (*Service, *recordingEmitter, *recordingCache) {
	em := &recordingEmitter{}
	cache := &recordingCache{}
	return &Service{
		Store:  store,
		Events: em,
		Cache:  cache,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return baseTime.Add(time.Hour) },
	}, em, cache
}
