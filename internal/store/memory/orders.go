package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/shipping"
)

// submitTx stages writes until the callback returns. The store mutex is held for the
// whole submission, so stock reads and decrements cannot interleave.
type submitTx struct {
	s      *Store
	stock  map[string]int
	orders []order.Order
}

func (tx *submitTx) LockProducts(_ context.Context, ids []string) (map[string]catalog.Product, error) {
	out := make(map[string]catalog.Product, len(ids))
	for _, id := range ids {
		p, ok := tx.s.products[id]
		if !ok {
			continue
		}
		if staged, ok := tx.stock[id]; ok {
			p.Stock = staged
		}
		out[id] = cloneProduct(p)
	}
	return out, nil
}

func (tx *submitTx) DecrementStock(_ context.Context, productID string, qty int) (int, bool, error) {
	p, ok := tx.s.products[productID]
	if !ok {
		return 0, false, nil
	}
	current := p.Stock
	if staged, ok := tx.stock[productID]; ok {
		current = staged
	}
	if current < qty {
		return current, false, nil
	}
	tx.stock[productID] = current - qty
	return current - qty, true, nil
}

func (tx *submitTx) InsertOrder(_ context.Context, o order.Order) error {
	if _, exists := tx.s.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	tx.orders = append(tx.orders, cloneOrder(o))
	return nil
}

// SubmitOrder runs fn and commits its staged writes only when fn succeeds.
func (s *Store) SubmitOrder(ctx context.Context, fn func(ctx context.Context, tx order.SubmitTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &submitTx{s: s, stock: map[string]int{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, stock := range tx.stock {
		p := s.products[id]
		p.Stock = stock
		s.products[id] = p
	}
	for _, o := range tx.orders {
		s.orders[o.ID] = o
	}
	return nil
}

// GetOrder returns an order by id.
func (s *Store) GetOrder(_ context.Context, id string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

// ListOrders returns matching orders, newest first.
func (s *Store) ListOrders(_ context.Context, f order.ListFilter) ([]order.Order, int, error) {
	s.mu.Lock()
	matched := make([]order.Order, 0)
	for _, o := range s.orders {
		if f.Matches(o) {
			matched = append(matched, cloneOrder(o))
		}
	}
	s.mu.Unlock()
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	return page(matched, f.Offset, f.Limit), total, nil
}

// ListOrdersBetween returns orders placed in [from, to), oldest first.
func (s *Store) ListOrdersBetween(_ context.Context, from, to time.Time) ([]order.Order, error) {
	s.mu.Lock()
	out := make([]order.Order, 0)
	for _, o := range s.orders {
		if !o.Date.Before(from) && o.Date.Before(to) {
			out = append(out, cloneOrder(o))
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// TransitionOrder applies t only while the order is still in t.From.
func (s *Store) TransitionOrder(_ context.Context, t shipping.Transition) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[t.OrderID]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	if o.Status != t.From {
		return order.Order{}, shipping.ErrStaleStatus
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
			p, ok := s.products[it.ProductID]
			if !ok {
				continue
			}
			p.Stock += it.Quantity
			p.UpdatedAt = t.At
			s.products[it.ProductID] = p
		}
	}
	s.orders[o.ID] = o
	return cloneOrder(o), nil
}
