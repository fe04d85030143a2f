package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
)

// CreateProduct stores p. Barcode and SKU must be unique when set.
func (s *Store) CreateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[p.ID]; exists {
		return catalog.Product{}, fmt.Errorf("product %s already exists", p.ID)
	}
	if s.codeTakenLocked(p) {
		return catalog.Product{}, catalog.ErrDuplicateCode
	}
	s.products[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

// UpdateProduct replaces a stored product.
func (s *Store) UpdateProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if s.codeTakenLocked(p) {
		return catalog.Product{}, catalog.ErrDuplicateCode
	}
	s.products[p.ID] = cloneProduct(p)
	return cloneProduct(p), nil
}

func (s *Store) codeTakenLocked(p catalog.Product) bool {
	for id, other := range s.products {
		if id == p.ID {
			continue
		}
		if p.Barcode != "" && strings.EqualFold(other.Barcode, p.Barcode) {
			return true
		}
		if p.SKU != "" && strings.EqualFold(other.SKU, p.SKU) {
			return true
		}
	}
	return false
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return catalog.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

// GetProduct returns a product by id.
func (s *Store) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

// GetProducts returns the known products among ids. Unknown ids are skipped.
func (s *Store) GetProducts(_ context.Context, ids []string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

// FindProductByCode matches barcode first, then SKU.
func (s *Store) FindProductByCode(_ context.Context, code string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.Barcode != "" && strings.EqualFold(p.Barcode, code) {
			return cloneProduct(p), nil
		}
	}
	for _, p := range s.products {
		if p.SKU != "" && strings.EqualFold(p.SKU, code) {
			return cloneProduct(p), nil
		}
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

// ListProducts filters, sorts by name and pages the catalog.
func (s *Store) ListProducts(_ context.Context, f catalog.ListFilter) ([]catalog.Product, int, error) {
	s.mu.Lock()
	matched := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if f.Matches(p) {
			matched = append(matched, cloneProduct(p))
		}
	}
	s.mu.Unlock()
	sortProducts(matched)
	total := len(matched)
	return page(matched, f.Offset(), f.Limit), total, nil
}

// ListAllProducts returns the whole catalog sorted by name.
func (s *Store) ListAllProducts(context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, cloneProduct(p))
	}
	s.mu.Unlock()
	sortProducts(out)
	return out, nil
}

func sortProducts(ps []catalog.Product) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}

func page[T any](rows []T, offset, limit int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
