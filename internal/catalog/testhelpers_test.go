package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type fakeStore struct {
	mu       sync.Mutex
	products map[string]Product
	gets     int
}

func newFakeStore(products ...Product) *fakeStore {
	s := &fakeStore{products: map[string]Product{}}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) CreateProduct(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkCodes(p); err != nil {
		return Product{}, err
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *fakeStore) UpdateProduct(_ context.Context, p Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; !ok {
		return Product{}, ErrProductNotFound
	}
	if err := s.checkCodes(p); err != nil {
		return Product{}, err
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *fakeStore) checkCodes(p Product) error {
	for id, other := range s.products {
		if id == p.ID {
			continue
		}
		if (p.Barcode != "" && p.Barcode == other.Barcode) || (p.SKU != "" && p.SKU == other.SKU) {
			return ErrDuplicateCode
		}
	}
	return nil
}

func (s *fakeStore) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *fakeStore) GetProduct(_ context.Context, id string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	p, ok := s.products[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return p, nil
}

func (s *fakeStore) GetProducts(_ context.Context, ids []string) ([]Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) FindProductByCode(_ context.Context, code string) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if strings.EqualFold(p.Barcode, code) || strings.EqualFold(p.SKU, code) {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (s *fakeStore) ListProducts(_ context.Context, filter ListFilter) ([]Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Matches(p) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	total := len(matched)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)
	return matched[start:end], total, nil
}
