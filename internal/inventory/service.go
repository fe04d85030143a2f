package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/common"
	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/obs"
)

// Store is the persistence contract for purchasing and stock queries.
type Store interface {
	// RecordPurchase applies rec atomically and returns the updated product.
	RecordPurchase(ctx context.Context, rec PurchaseRecord) (Purchase, catalog.Product, error)
	ListPurchases(ctx context.Context, from, to time.Time) ([]Purchase, error)
	ListLowStock(ctx context.Context, threshold int) ([]catalog.Product, error)
}

// ThresholdSource supplies the configured low stock threshold.
type ThresholdSource interface {
	LowStockThreshold(ctx context.Context) (int, error)
}

// CacheInvalidator drops cached product data after stock changes.
type CacheInvalidator interface {
	InvalidateProducts(ctx context.Context, ids ...string)
}

// Service records purchases and answers stock questions.
type Service struct {
	Store      Store
	Thresholds ThresholdSource
	Events     events.Emitter
	Cache      CacheInvalidator
	Logger     zerolog.Logger
	Now        func() time.Time
}

// RecordPurchase restocks a product and replaces its cost and selling price.
func (s *Service) RecordPurchase(ctx context.Context, in PurchaseInput) (Purchase, error) {
	if s == nil || s.Store == nil {
		return Purchase{}, errors.New("inventory: store not configured")
	}
	in.ProductID = strings.TrimSpace(in.ProductID)
	if err := common.ValidateStruct(in); err != nil {
		return Purchase{}, err
	}
	rec := PurchaseRecord{
		Purchase: Purchase{
			ID:            "PUR-" + strings.ToUpper(uuid.NewString()),
			ProductID:     in.ProductID,
			Quantity:      in.Quantity,
			PurchasePrice: in.NewCostPrice,
			TotalCost:     in.NewCostPrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
			Date:          s.now().UTC(),
		},
		NewCostPrice:    in.NewCostPrice,
		NewSellingPrice: in.NewSellingPrice,
	}
	purchase, product, err := s.Store.RecordPurchase(ctx, rec)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			return Purchase{}, common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, err)
		}
		return Purchase{}, fmt.Errorf("record purchase: %w", err)
	}
	obs.ObservePurchaseRecorded()
	s.Logger.Info().
		Str("purchase_id", purchase.ID).
		Str("product_id", product.ID).
		Int("quantity", purchase.Quantity).
		Int("stock", product.Stock).
		Str("total_cost", purchase.TotalCost.String()).
		Msg("purchase_recorded")
	if s.Cache != nil {
		s.Cache.InvalidateProducts(ctx, product.ID)
	}
	if s.Events != nil {
		payload := events.PurchaseRecordedPayload{
			PurchaseID: purchase.ID,
			ProductID:  product.ID,
			Quantity:   purchase.Quantity,
			NewStock:   product.Stock,
		}
		if _, err := s.Events.Emit(ctx, events.TopicPurchaseRecorded, purchase.ID, payload); err != nil {
			s.Logger.Warn().Err(err).Str("purchase_id", purchase.ID).Msg("purchase event emit failed")
		}
	}
	return purchase, nil
}

// ListPurchases returns purchases dated in [from, to), newest first.
func (s *Service) ListPurchases(ctx context.Context, from, to time.Time) ([]Purchase, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("inventory: store not configured")
	}
	rows, err := s.Store.ListPurchases(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return rows, nil
}

// LowStock lists products whose stock is at or below the configured threshold.
func (s *Service) LowStock(ctx context.Context) ([]LowStockItem, error) {
	if s == nil || s.Store == nil {
		return nil, errors.New("inventory: store not configured")
	}
	threshold, err := s.threshold(ctx)
	if err != nil {
		return nil, err
	}
	products, err := s.Store.ListLowStock(ctx, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	items := make([]LowStockItem, 0, len(products))
	for _, p := range products {
		items = append(items, lowStockItem(p, threshold))
	}
	return items, nil
}

func (s *Service) threshold(ctx context.Context) (int, error) {
	if s.Thresholds == nil {
		return defaultThreshold, nil
	}
	t, err := s.Thresholds.LowStockThreshold(ctx)
	if err != nil {
		return 0, fmt.Errorf("load threshold: %w", err)
	}
	return t, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

const defaultThreshold = 5
