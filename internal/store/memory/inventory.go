package memory

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
)

// RecordPurchase adds stock and replaces both prices of the product.
func (s *Store) RecordPurchase(_ context.Context, rec inventory.PurchaseRecord) (inventory.Purchase, catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[rec.Purchase.ProductID]
	if !ok {
		return inventory.Purchase{}, catalog.Product{}, catalog.ErrProductNotFound
	}
	p.Stock += rec.Purchase.Quantity
	p.CostPrice = rec.NewCostPrice
	p.SellingPrice = rec.NewSellingPrice
	p.UpdatedAt = rec.Purchase.Date
	s.products[p.ID] = p

	purchase := rec.Purchase
	purchase.ProductName = p.Name
	s.purchases = append(s.purchases, purchase)
	return purchase, cloneProduct(p), nil
}

// ListPurchases returns purchases dated in [from, to), newest first.
func (s *Store) ListPurchases(_ context.Context, from, to time.Time) ([]inventory.Purchase, error) {
	s.mu.Lock()
	out := make([]inventory.Purchase, 0)
	for _, p := range s.purchases {
		if !p.Date.Before(from) && p.Date.Before(to) {
			out = append(out, p)
		}
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

// ListLowStock returns products at or below threshold, lowest stock first.
func (s *Store) ListLowStock(_ context.Context, threshold int) ([]catalog.Product, error) {
	s.mu.Lock()
	out := make([]catalog.Product, 0)
	for _, p := range s.products {
		if p.Stock <= threshold {
			out = append(out, cloneProduct(p))
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
