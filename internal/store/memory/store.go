// Package memory keeps every store in process maps guarded by one mutex. It backs
// DB_DRIVER=memory and the wiring tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/settings"
)

// Store implements the catalog, order, shipping, inventory, settings, report and
// event stores.
type Store struct {
	mu        sync.Mutex
	products  map[string]catalog.Product
	orders    map[string]order.Order
	purchases []inventory.Purchase
	settings  *settings.Settings
	events    []events.Event
	nextEvent int64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		products: map[string]catalog.Product{},
		orders:   map[string]order.Order{},
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op kept for parity with the postgres store.
func (s *Store) Close() {}

// Events returns a copy of every recorded event.
func (s *Store) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

func cloneProduct(p catalog.Product) catalog.Product {
	if p.Specifications != nil {
		p.Specifications = maps.Clone(p.Specifications)
	}
	if p.DiscountPercent != nil {
		d := *p.DiscountPercent
		p.DiscountPercent = &d
	}
	return p
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	return o
}
