package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
	"github.com/noah-isme/backend-koperasi/internal/lock"
	"github.com/noah-isme/backend-koperasi/internal/order"
)

// Store defines the reads reports are built from.
type Store interface {
	ListOrdersBetween(ctx context.Context, from, to time.Time) ([]order.Order, error)
	ListPurchases(ctx context.Context, from, to time.Time) ([]inventory.Purchase, error)
	ListAllProducts(ctx context.Context) ([]catalog.Product, error)
}

// ThresholdSource supplies the low stock threshold.
type ThresholdSource interface {
	LowStockThreshold(ctx context.Context) (int, error)
}

// Service builds reports from stored orders and purchases and caches range reports.
type Service struct {
	Store      Store
	Thresholds ThresholdSource
	R          redis.Cmdable
	TTL        time.Duration
	// Lock, when set, lets one request rebuild an expired report while identical
	// requests wait for its result.
	Lock         *lock.Locker
	LockTTL      time.Duration
	DefaultRange time.Duration
	// Location decides which calendar day an order belongs to.
	Location *time.Location
	Now      func() time.Time
}

var hundred = decimal.NewFromInt(100)

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.UTC
}

func cacheKey(parts ...any) string {
	formatted := make([]string, 0, len(parts))
	for _, part := range parts {
		formatted = append(formatted, fmt.Sprint(part))
	}
	return strings.Join(formatted, ":")
}

func rangeKey(kind string, from, to time.Time) string {
	return cacheKey("rpt", kind, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
}

func (s *Service) check() error {
	if s == nil || s.Store == nil {
		return errors.New("report service not configured")
	}
	return nil
}

// Sales summarises completed and in-flight orders in [from, to).
func (s *Service) Sales(ctx context.Context, from, to time.Time) (SalesReport, error) {
	if err := s.check(); err != nil {
		return SalesReport{}, err
	}
	return cached(ctx, s, rangeKey("sales", from, to), func(ctx context.Context) (SalesReport, error) {
		return s.buildSales(ctx, from, to)
	})
}

func (s *Service) buildSales(ctx context.Context, from, to time.Time) (SalesReport, error) {
	orders, err := s.orders(ctx, from, to)
	if err != nil {
		return SalesReport{}, err
	}
	out := SalesReport{
		Range:           Range{From: from, To: to},
		Revenue:         decimal.Zero,
		ApplicationFees: decimal.Zero,
		ByChannel:       []ChannelSales{},
		Days:            []DailySales{},
		ProductsSold:    []ProductSales{},
	}
	days := map[string]*DailySales{}
	channels := map[string]*ChannelSales{}
	products := map[string]*ProductSales{}
	for _, o := range orders {
		out.OrderCount++
		out.Revenue = out.Revenue.Add(o.Total)
		out.ApplicationFees = out.ApplicationFees.Add(o.ApplicationFee)

		day := o.Date.In(s.location()).Format("2006-01-02")
		d, ok := days[day]
		if !ok {
			d = &DailySales{Day: day, Revenue: decimal.Zero}
			days[day] = d
		}
		d.Orders++
		d.Revenue = d.Revenue.Add(o.Total)

		c, ok := channels[string(o.Channel)]
		if !ok {
			c = &ChannelSales{Channel: string(o.Channel), Revenue: decimal.Zero}
			channels[string(o.Channel)] = c
		}
		c.Orders++
		c.Revenue = c.Revenue.Add(o.Total)

		for _, it := range o.Items {
			out.ItemsSold += it.Quantity
			p, ok := products[it.ProductID]
			if !ok {
				p = &ProductSales{ProductID: it.ProductID, Name: it.ProductName, Revenue: decimal.Zero}
				products[it.ProductID] = p
			}
			p.Quantity += it.Quantity
			p.Revenue = p.Revenue.Add(it.Subtotal)
		}
	}
	for _, d := range days {
		out.Days = append(out.Days, *d)
	}
	sort.Slice(out.Days, func(i, j int) bool { return out.Days[i].Day < out.Days[j].Day })
	for _, c := range channels {
		out.ByChannel = append(out.ByChannel, *c)
	}
	sort.Slice(out.ByChannel, func(i, j int) bool { return out.ByChannel[i].Channel < out.ByChannel[j].Channel })
	for _, p := range products {
		out.ProductsSold = append(out.ProductsSold, *p)
	}
	sort.Slice(out.ProductsSold, func(i, j int) bool {
		a, b := out.ProductsSold[i], out.ProductsSold[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.ProductID < b.ProductID
	})
	return out, nil
}

// Financial groups revenue by payment method.
func (s *Service) Financial(ctx context.Context, from, to time.Time) (FinancialReport, error) {
	if err := s.check(); err != nil {
		return FinancialReport{}, err
	}
	return cached(ctx, s, rangeKey("financial", from, to), func(ctx context.Context) (FinancialReport, error) {
		return s.buildFinancial(ctx, from, to)
	})
}

func (s *Service) buildFinancial(ctx context.Context, from, to time.Time) (FinancialReport, error) {
	orders, err := s.orders(ctx, from, to)
	if err != nil {
		return FinancialReport{}, err
	}
	out := FinancialReport{
		Range:           Range{From: from, To: to},
		Revenue:         decimal.Zero,
		ApplicationFees: decimal.Zero,
		ByPaymentMethod: []PaymentSummary{},
	}
	byMethod := map[order.PaymentMethod]*PaymentSummary{}
	for _, o := range orders {
		out.Revenue = out.Revenue.Add(o.Total)
		out.ApplicationFees = out.ApplicationFees.Add(o.ApplicationFee)
		m, ok := byMethod[o.PaymentMethod]
		if !ok {
			m = &PaymentSummary{Method: string(o.PaymentMethod), Label: o.PaymentMethod.Label(), Amount: decimal.Zero}
			byMethod[o.PaymentMethod] = m
		}
		m.Orders++
		m.Amount = m.Amount.Add(o.Total)
	}
	// display order follows the payment method list
	for _, method := range order.AllPaymentMethods() {
		if m, ok := byMethod[method]; ok {
			out.ByPaymentMethod = append(out.ByPaymentMethod, *m)
		}
	}
	return out, nil
}

// ProfitLoss compares revenue with the cost snapshot stored on each order item.
func (s *Service) ProfitLoss(ctx context.Context, from, to time.Time) (ProfitLossReport, error) {
	if err := s.check(); err != nil {
		return ProfitLossReport{}, err
	}
	return cached(ctx, s, rangeKey("pl", from, to), func(ctx context.Context) (ProfitLossReport, error) {
		return s.buildProfitLoss(ctx, from, to)
	})
}

func (s *Service) buildProfitLoss(ctx context.Context, from, to time.Time) (ProfitLossReport, error) {
	orders, err := s.orders(ctx, from, to)
	if err != nil {
		return ProfitLossReport{}, err
	}
	purchases, err := s.Store.ListPurchases(ctx, from, to)
	if err != nil {
		return ProfitLossReport{}, fmt.Errorf("list purchases: %w", err)
	}
	out := ProfitLossReport{
		Range:         Range{From: from, To: to},
		Revenue:       decimal.Zero,
		COGS:          decimal.Zero,
		MarginPercent: decimal.Zero,
		PurchaseSpend: decimal.Zero,
	}
	for _, o := range orders {
		out.Revenue = out.Revenue.Add(o.Total)
		for _, it := range o.Items {
			out.COGS = out.COGS.Add(it.CostPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	for _, p := range purchases {
		out.PurchaseSpend = out.PurchaseSpend.Add(p.TotalCost)
	}
	out.GrossProfit = out.Revenue.Sub(out.COGS)
	if out.Revenue.IsPositive() {
		out.MarginPercent = out.GrossProfit.Mul(hundred).Div(out.Revenue).Round(2)
	}
	return out, nil
}

// Purchases totals restocking in [from, to).
func (s *Service) Purchases(ctx context.Context, from, to time.Time) (PurchaseReport, error) {
	if err := s.check(); err != nil {
		return PurchaseReport{}, err
	}
	return cached(ctx, s, rangeKey("purchases", from, to), func(ctx context.Context) (PurchaseReport, error) {
		return s.buildPurchases(ctx, from, to)
	})
}

func (s *Service) buildPurchases(ctx context.Context, from, to time.Time) (PurchaseReport, error) {
	rows, err := s.Store.ListPurchases(ctx, from, to)
	if err != nil {
		return PurchaseReport{}, fmt.Errorf("list purchases: %w", err)
	}
	out := PurchaseReport{Range: Range{From: from, To: to}, TotalCost: decimal.Zero}
	for _, p := range rows {
		out.Count++
		out.TotalQuantity += p.Quantity
		out.TotalCost = out.TotalCost.Add(p.TotalCost)
	}
	return out, nil
}

// Inventory values current stock. It always reads live data.
func (s *Service) Inventory(ctx context.Context) (InventoryReport, error) {
	if err := s.check(); err != nil {
		return InventoryReport{}, err
	}
	threshold := 5
	if s.Thresholds != nil {
		t, err := s.Thresholds.LowStockThreshold(ctx)
		if err != nil {
			return InventoryReport{}, fmt.Errorf("load threshold: %w", err)
		}
		threshold = t
	}
	products, err := s.Store.ListAllProducts(ctx)
	if err != nil {
		return InventoryReport{}, fmt.Errorf("list products: %w", err)
	}
	out := InventoryReport{Products: make([]InventoryRow, 0, len(products)), TotalValue: decimal.Zero, Threshold: threshold}
	for _, p := range products {
		row := InventoryRow{
			ProductID:  p.ID,
			Name:       p.Name,
			Stock:      p.Stock,
			CostPrice:  p.CostPrice,
			StockValue: p.CostPrice.Mul(decimal.NewFromInt(int64(p.Stock))),
			LowStock:   p.Stock <= threshold,
		}
		if row.LowStock {
			out.LowStockCount++
		}
		out.TotalValue = out.TotalValue.Add(row.StockValue)
		out.Products = append(out.Products, row)
	}
	sort.Slice(out.Products, func(i, j int) bool { return out.Products[i].Name < out.Products[j].Name })
	return out, nil
}

func (s *Service) orders(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	rows, err := s.Store.ListOrdersBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	kept := make([]order.Order, 0, len(rows))
	for _, o := range rows {
		if o.Status != order.StatusCancelled {
			kept = append(kept, o)
		}
	}
	return kept, nil
}

func cached[T any](ctx context.Context, s *Service, key string, build func(context.Context) (T, error)) (T, error) {
	var out T
	if s.fromCache(ctx, key, &out) {
		return out, nil
	}
	if s.Lock == nil || s.R == nil || s.TTL <= 0 {
		built, err := build(ctx)
		if err != nil {
			return out, err
		}
		s.store(ctx, key, built)
		return built, nil
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	err := s.Lock.WithLock(ctx, key+":build", ttl, func(ctx context.Context) error {
		if s.fromCache(ctx, key, &out) {
			return nil
		}
		built, err := build(ctx)
		if err != nil {
			return err
		}
		out = built
		s.store(ctx, key, out)
		return nil
	})
	return out, err
}

func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	if s.R == nil || s.TTL <= 0 {
		return false
	}
	data, err := s.R.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (s *Service) store(ctx context.Context, key string, value any) {
	if s.R == nil || s.TTL <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.R.Set(ctx, key, data, s.TTL).Err()
}
