package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// Store is the persistence contract for products.
type Store interface {
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) (Product, error)
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (Product, error)
	GetProducts(ctx context.Context, ids []string) ([]Product, error)
	FindProductByCode(ctx context.Context, code string) (Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]Product, int, error)
}

// Service orchestrates catalog reads, writes and caching.
type Service struct {
	store        Store
	cache        *Cache
	logger       zerolog.Logger
	now          func() time.Time
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	Logger       zerolog.Logger
	Now          func() time.Time
	DefaultLimit int
	MaxLimit     int
}

// ProductList contains list data and pagination metadata.
type ProductList struct {
	Items []Product
	Total int
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		logger:       cfg.Logger,
		now:          now,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListFilter normalises raw query values into a ListFilter.
func (s *Service) ParseListFilter(values url.Values) (ListFilter, error) {
	filter := ListFilter{
		Query:      strings.TrimSpace(values.Get("q")),
		Category:   strings.TrimSpace(values.Get("category")),
		SupplierID: strings.TrimSpace(values.Get("supplierId")),
		Page:       1,
		Limit:      s.defaultLimit,
	}
	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return filter, badRequest("page", "page must be a positive integer", err)
		}
		filter.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return filter, badRequest("limit", "limit must be a positive integer", err)
		}
		filter.Limit = min(limit, s.maxLimit)
	}
	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, badRequest("inStock", "inStock must be true or false", err)
		}
		filter.InStock = &b
	}
	return filter, nil
}

// List returns products matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) (ProductList, error) {
	if filter.Limit <= 0 {
		filter.Limit = s.defaultLimit
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	items, total, err := s.store.ListProducts(ctx, filter)
	if err != nil {
		return ProductList{}, fmt.Errorf("list products: %w", err)
	}
	return ProductList{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Get returns a product by id using the read-through cache.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, badRequest("id", "id is required", nil)
	}
	cached, hit, err := s.cache.Product(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("product_id", id).Msg("catalog cache read failed")
	}
	if hit {
		return cached, nil
	}
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, toAppError(err)
	}
	if err := s.cache.Put(ctx, p); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id).Msg("catalog cache write failed")
	}
	return p, nil
}

// FindByCode looks a product up by barcode or SKU, as done by the POS scanner.
func (s *Service) FindByCode(ctx context.Context, code string) (Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Product{}, badRequest("code", "code is required", nil)
	}
	p, err := s.store.FindProductByCode(ctx, code)
	if err != nil {
		return Product{}, toAppError(err)
	}
	return p, nil
}

// Create validates the input and stores a new product.
func (s *Service) Create(ctx context.Context, in ProductInput) (Product, error) {
	p, err := s.build(in)
	if err != nil {
		return Product{}, err
	}
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return Product{}, toAppError(err)
	}
	s.logger.Info().Str("product_id", created.ID).Str("name", created.Name).Msg("product_created")
	return created, nil
}

// Update replaces the editable fields of an existing product.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (Product, error) {
	existing, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return Product{}, toAppError(err)
	}
	p, err := s.build(in)
	if err != nil {
		return Product{}, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = s.now().UTC()
	updated, err := s.store.UpdateProduct(ctx, p)
	if err != nil {
		return Product{}, toAppError(err)
	}
	s.InvalidateProducts(ctx, id)
	return updated, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return toAppError(err)
	}
	s.InvalidateProducts(ctx, id)
	return nil
}

// InvalidateProducts drops cached product detail, used after stock or price changes.
func (s *Service) InvalidateProducts(ctx context.Context, ids ...string) {
	if s == nil || len(ids) == 0 {
		return
	}
	if err := s.cache.Forget(ctx, ids...); err != nil {
		s.logger.Warn().Err(err).Strs("product_ids", ids).Msg("catalog cache invalidation failed")
	}
}

// Quote prices cart lines against live product data. Quantities for the same product
// are merged so tier thresholds apply to the combined amount.
func (s *Service) Quote(ctx context.Context, lines []QuoteLine, applicationFee pricing.Money) (pricing.Summary, error) {
	if len(lines) == 0 {
		return pricing.Quote(nil, applicationFee), nil
	}
	merged, order := mergeQuoteLines(lines)
	for _, id := range order {
		if merged[id] <= 0 {
			return pricing.Summary{}, badRequest("quantity", "quantity must be positive", nil)
		}
	}
	products, err := s.store.GetProducts(ctx, order)
	if err != nil {
		return pricing.Summary{}, toAppError(err)
	}
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	priced := make([]pricing.Line, 0, len(order))
	for _, id := range order {
		p, ok := byID[id]
		if !ok {
			return pricing.Summary{}, toAppError(fmt.Errorf("%w: %s", ErrProductNotFound, id))
		}
		priced = append(priced, pricing.Line{Product: p.Pricing(), Quantity: merged[id]})
	}
	return pricing.Quote(priced, applicationFee), nil
}

func mergeQuoteLines(lines []QuoteLine) (map[string]int, []string) {
	merged := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, l := range lines {
		id := strings.TrimSpace(l.ProductID)
		if _, seen := merged[id]; !seen {
			order = append(order, id)
		}
		merged[id] += l.Quantity
	}
	return merged, order
}

func (s *Service) build(in ProductInput) (Product, error) {
	in.normalize()
	if err := common.ValidateStruct(in); err != nil {
		return Product{}, err
	}
	tiers, err := in.tiers()
	if err != nil {
		return Product{}, toAppError(err)
	}
	p := Product{
		Name:            in.Name,
		Description:     in.Description,
		Category:        in.Category,
		Unit:            in.Unit,
		ImageURL:        in.ImageURL,
		Barcode:         in.Barcode,
		SKU:             in.SKU,
		SupplierID:      in.SupplierID,
		Specifications:  in.Specifications,
		CostPrice:       in.CostPrice,
		SellingPrice:    in.SellingPrice,
		DiscountPercent: in.DiscountPercent,
		Tiers:           tiers,
		Stock:           in.Stock,
	}
	if err := p.Pricing().Validate(); err != nil {
		return Product{}, toAppError(err)
	}
	return p, nil
}
