package inventory

import (
	"time"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// Purchase is a restocking record. TotalCost is Quantity times PurchasePrice.
type Purchase struct {
	ID            string        `json:"id"`
	ProductID     string        `json:"productId"`
	ProductName   string        `json:"productName"`
	Quantity      int           `json:"quantity"`
	PurchasePrice pricing.Money `json:"purchasePrice"`
	TotalCost     pricing.Money `json:"totalCost"`
	Date          time.Time     `json:"date"`
}

// PurchaseInput is the admin restocking form.
type PurchaseInput struct {
	ProductID       string        `json:"productId" validate:"required"`
	Quantity        int           `json:"quantity" validate:"gt=0"`
	NewCostPrice    pricing.Money `json:"newCostPrice" validate:"gte=0"`
	NewSellingPrice pricing.Money `json:"newSellingPrice" validate:"gt=0"`
}

// PurchaseRecord is applied by the store in one transaction: the purchase row is
// inserted, stock grows by Purchase.Quantity and both prices are replaced.
type PurchaseRecord struct {
	Purchase        Purchase
	NewCostPrice    pricing.Money
	NewSellingPrice pricing.Money
}

// LowStockItem flags a product whose stock is at or below the threshold.
type LowStockItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
}

func lowStockItem(p catalog.Product, threshold int) LowStockItem {
	return LowStockItem{ProductID: p.ID, Name: p.Name, Stock: p.Stock, Threshold: threshold}
}
