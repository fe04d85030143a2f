package order

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

type fakeStore struct {
	mu       sync.Mutex
	products map[string]catalog.Product
	orders   []Order
	// stealStock simulates a writer that sneaks in between the check and the decrement.
	stealStock map[string]int
}

func newFakeStore(products ...catalog.Product) *fakeStore {
	s := &fakeStore{products: map[string]catalog.Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

type fakeTx struct {
	s      *fakeStore
	stock  map[string]int
	orders []Order
}

func (s *fakeStore) SubmitOrder(ctx context.Context, fn func(context.Context, SubmitTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &fakeTx{s: s, stock: map[string]int{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, stock := range tx.stock {
		p := s.products[id]
		p.Stock = stock
		s.products[id] = p
	}
	s.orders = append(s.orders, tx.orders...)
	return nil
}

func (tx *fakeTx) LockProducts(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	out := map[string]catalog.Product{}
	for _, id := range ids {
		if p, ok := tx.s.products[id]; ok {
			out[id] = p
			tx.stock[id] = p.Stock
		}
	}
	return out, nil
}

func (tx *fakeTx) DecrementStock(_ context.Context, id string, qty int) (int, bool, error) {
	stock := tx.stock[id] - tx.s.stealStock[id]
	if stock < qty {
		return stock, false, nil
	}
	tx.stock[id] = stock - qty
	return stock - qty, true, nil
}

func (tx *fakeTx) InsertOrder(_ context.Context, o Order) error {
	tx.orders = append(tx.orders, o)
	return nil
}

func (s *fakeStore) GetOrder(_ context.Context, id string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (s *fakeStore) ListOrders(_ context.Context, f ListFilter) ([]Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if f.Matches(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, len(out), nil
}

func (s *fakeStore) stock(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

type recordingEmitter struct {
	mu     sync.Mutex
	topics []string
	last   events.OrderCreatedPayload
}

func (e *recordingEmitter) Emit(_ context.Context, topic, aggregateID string, payload any) (events.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topics = append(e.topics, topic)
	raw, _ := json.Marshal(payload)
	_ = json.Unmarshal(raw, &e.last)
	return events.Event{Topic: topic, AggregateID: aggregateID, Payload: raw}, nil
}

type recordingCache struct {
	ids []string
}

func (c *recordingCache) InvalidateProducts(_ context.Context, ids ...string) {
	c.ids = append(c.ids, ids...)
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func beras(stock int) catalog.Product {
	return catalog.Product{
		ID:           "p-beras",
		Name:         "Beras 5kg",
		CostPrice:    pricing.NewMoney(2500),
		SellingPrice: pricing.NewMoney(3000),
		Tiers: pricing.MustTiers(
			pricing.Tier{MinQuantity: 10, Price: pricing.NewMoney(2800)},
			pricing.Tier{MinQuantity: 40, Price: pricing.NewMoney(2700)},
		),
		Stock: stock,
	}
}

func gula(stock int) catalog.Product {
	return catalog.Product{
		ID:              "p-gula",
		Name:            "Gula 1kg",
		CostPrice:       pricing.NewMoney(12000),
		SellingPrice:    pricing.NewMoney(14000),
		DiscountPercent: intPtr(5),
		Stock:           stock,
	}
}
