package catalog

import (
	"strings"
	"time"

	"github.com/noah-isme/backend-koperasi/internal/pricing"
)

// Product is a sellable catalog item together with its live stock level.
type Product struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Category        string            `json:"category,omitempty"`
	Unit            string            `json:"unit,omitempty"`
	ImageURL        string            `json:"imageUrl,omitempty"`
	Barcode         string            `json:"barcode,omitempty"`
	SKU             string            `json:"sku,omitempty"`
	SupplierID      string            `json:"supplierId,omitempty"`
	Specifications  map[string]string `json:"specifications,omitempty"`
	CostPrice       pricing.Money     `json:"costPrice"`
	SellingPrice    pricing.Money     `json:"sellingPrice"`
	DiscountPercent *int              `json:"discountPercent,omitempty"`
	Tiers           pricing.Tiers     `json:"priceTiers"`
	Stock           int               `json:"stock"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Pricing returns the view of the product used by price resolution.
func (p Product) Pricing() pricing.Product {
	return pricing.Product{
		ID:              p.ID,
		Name:            p.Name,
		SellingPrice:    p.SellingPrice,
		DiscountPercent: p.DiscountPercent,
		Tiers:           p.Tiers,
	}
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool { return p.Stock > 0 }

// ListFilter narrows product listings.
type ListFilter struct {
	Query      string
	Category   string
	SupplierID string
	InStock    *bool
	Page       int
	Limit      int
}

// Offset returns the row offset for the requested page.
func (f ListFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}

// Matches applies the filter to a product in memory.
func (f ListFilter) Matches(p Product) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.EqualFold(p.Barcode, f.Query) &&
			!strings.EqualFold(p.SKU, f.Query) {
			return false
		}
	}
	if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
		return false
	}
	if f.SupplierID != "" && p.SupplierID != f.SupplierID {
		return false
	}
	if f.InStock != nil && p.InStock() != *f.InStock {
		return false
	}
	return true
}

// TierInput is a wholesale tier row as submitted by the product form.
type TierInput struct {
	MinQuantity int           `json:"minQuantity" validate:"gt=0"`
	Price       pricing.Money `json:"price" validate:"gt=0"`
}

// ProductInput carries the admin and supplier product form.
type ProductInput struct {
	Name            string            `json:"name" validate:"required,max=200"`
	Description     string            `json:"description" validate:"max=2000"`
	Category        string            `json:"category" validate:"max=100"`
	Unit            string            `json:"unit" validate:"max=50"`
	ImageURL        string            `json:"imageUrl" validate:"omitempty,url"`
	Barcode         string            `json:"barcode" validate:"max=64"`
	SKU             string            `json:"sku" validate:"max=64"`
	SupplierID      string            `json:"supplierId" validate:"max=64"`
	Specifications  map[string]string `json:"specifications"`
	CostPrice       pricing.Money     `json:"costPrice" validate:"gte=0"`
	SellingPrice    pricing.Money     `json:"sellingPrice" validate:"gt=0"`
	DiscountPercent *int              `json:"discountPercent" validate:"omitempty,min=0,max=100"`
	Stock           int               `json:"stock" validate:"gte=0"`
	Tiers           []TierInput       `json:"priceTiers" validate:"unique=MinQuantity,dive"`
}

// normalize trims text fields and drops blank tier rows left by the form.
func (in *ProductInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Unit = strings.TrimSpace(in.Unit)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	in.Barcode = strings.TrimSpace(in.Barcode)
	in.SKU = strings.TrimSpace(in.SKU)
	in.SupplierID = strings.TrimSpace(in.SupplierID)
	tiers := in.Tiers[:0:0]
	for _, t := range in.Tiers {
		if t.MinQuantity == 0 && t.Price.IsZero() {
			continue
		}
		tiers = append(tiers, t)
	}
	in.Tiers = tiers
}

func (in ProductInput) tiers() (pricing.Tiers, error) {
	rows := make([]pricing.Tier, 0, len(in.Tiers))
	for _, t := range in.Tiers {
		rows = append(rows, pricing.Tier{MinQuantity: t.MinQuantity, Price: t.Price})
	}
	return pricing.NewTiers(rows)
}

// QuoteLine is a cart line to be priced.
type QuoteLine struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}
