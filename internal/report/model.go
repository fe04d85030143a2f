package report

import (
	"time"

	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// Range is the half-open reporting window [From, To).
type Range struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// DailySales is one day of completed orders.
type DailySales struct {
	Day     string        `json:"day"`
	Orders  int           `json:"orders"`
	Revenue pricing.Money `json:"revenue"`
}

// ChannelSales splits sales by channel.
type ChannelSales struct {
	Channel string        `json:"channel"`
	Orders  int           `json:"orders"`
	Revenue pricing.Money `json:"revenue"`
}

// ProductSales aggregates sold quantities per product.
type ProductSales struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	Quantity  int           `json:"quantity"`
	Revenue   pricing.Money `json:"revenue"`
}

// SalesReport summarises orders in a range. Cancelled orders are excluded.
type SalesReport struct {
	Range           Range          `json:"range"`
	OrderCount      int            `json:"orderCount"`
	Revenue         pricing.Money  `json:"revenue"`
	ApplicationFees pricing.Money  `json:"applicationFees"`
	ItemsSold       int            `json:"itemsSold"`
	ByChannel       []ChannelSales `json:"byChannel"`
	Days            []DailySales   `json:"days"`
	ProductsSold    []ProductSales `json:"productsSold"`
}

// PaymentSummary totals orders per payment method.
type PaymentSummary struct {
	Method string        `json:"method"`
	Label  string        `json:"label"`
	Orders int           `json:"orders"`
	Amount pricing.Money `json:"amount"`
}

// FinancialReport breaks revenue down by payment method.
type FinancialReport struct {
	Range           Range            `json:"range"`
	Revenue         pricing.Money    `json:"revenue"`
	ApplicationFees pricing.Money    `json:"applicationFees"`
	ByPaymentMethod []PaymentSummary `json:"byPaymentMethod"`
}

// ProfitLossReport compares revenue with the cost snapshot of what was sold.
type ProfitLossReport struct {
	Range         Range         `json:"range"`
	Revenue       pricing.Money `json:"revenue"`
	COGS          pricing.Money `json:"cogs"`
	GrossProfit   pricing.Money `json:"grossProfit"`
	MarginPercent pricing.Money `json:"marginPercent"`
	PurchaseSpend pricing.Money `json:"purchaseSpend"`
}

// PurchaseReport totals restocking in a range.
type PurchaseReport struct {
	Range         Range         `json:"range"`
	Count         int           `json:"count"`
	TotalQuantity int           `json:"totalQuantity"`
	TotalCost     pricing.Money `json:"totalCost"`
}

// InventoryRow is one product in the stock valuation.
type InventoryRow struct {
	ProductID  string        `json:"productId"`
	Name       string        `json:"name"`
	Stock      int           `json:"stock"`
	CostPrice  pricing.Money `json:"costPrice"`
	StockValue pricing.Money `json:"stockValue"`
	LowStock   bool          `json:"lowStock"`
}

// InventoryReport values current stock at cost.
type InventoryReport struct {
	Products      []InventoryRow `json:"products"`
	TotalValue    pricing.Money  `json:"totalValue"`
	LowStockCount int            `json:"lowStockCount"`
	Threshold     int            `json:"threshold"`
}
