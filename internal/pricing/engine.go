package pricing

import (
	"github.com/shopspring/decimal"
)

// Money represents a monetary value. Decimal arithmetic keeps discount and tier math exact
// across quantity multiplication.
type Money = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// NewMoney returns a whole-unit amount.
func NewMoney(units int64) Money {
	return decimal.NewFromInt(units)
}

// Product is the pricing view of a catalog product.
type Product struct {
	ID              string
	Name            string
	SellingPrice    Money
	DiscountPercent *int
	Tiers           Tiers
}

// Validate reports whether the stored price configuration is usable. Tiers are validated
// when they are constructed.
func (p Product) Validate() error {
	if !p.SellingPrice.IsPositive() {
		return invalidData("selling price must be positive")
	}
	if p.DiscountPercent != nil && (*p.DiscountPercent < 0 || *p.DiscountPercent > 100) {
		return invalidData("discount percent must be between 0 and 100")
	}
	return nil
}

// ResolveUnitPrice returns the price charged per unit when qty units are bought.
//
// A matching wholesale tier wins outright and the percentage discount is ignored. Below
// the lowest tier threshold the discount applies when it is above zero, otherwise the
// selling price is returned unchanged.
func ResolveUnitPrice(p Product, qty int) Money {
	if tier, ok := p.Tiers.Match(qty); ok {
		return tier.Price
	}
	if p.DiscountPercent != nil && *p.DiscountPercent > 0 {
		keep := hundred.Sub(decimal.NewFromInt(int64(*p.DiscountPercent)))
		return p.SellingPrice.Mul(keep).Div(hundred)
	}
	return p.SellingPrice
}

// Line describes a product and the quantity requested for it.
type Line struct {
	Product  Product
	Quantity int
}

// LineTotal is the resolved unit price multiplied by the line quantity.
func LineTotal(l Line) Money {
	if l.Quantity <= 0 {
		return decimal.Zero
	}
	return ResolveUnitPrice(l.Product, l.Quantity).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ComputeOrderTotal sums every line total and adds the application fee once.
func ComputeOrderTotal(lines []Line, applicationFee Money) Money {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineTotal(l))
	}
	return total.Add(applicationFee)
}

// QuotedLine is a priced line as shown on carts and receipts.
type QuotedLine struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice Money  `json:"unitPrice"`
	Subtotal  Money  `json:"subtotal"`
}

// Summary aggregates computed pricing components.
type Summary struct {
	Lines          []QuotedLine `json:"lines"`
	Subtotal       Money        `json:"subtotal"`
	ApplicationFee Money        `json:"applicationFee"`
	Total          Money        `json:"total"`
}

// Quote prices every line and returns the breakdown. Summary.Total always equals
// ComputeOrderTotal for the same input.
func Quote(lines []Line, applicationFee Money) Summary {
	summary := Summary{
		Lines:          make([]QuotedLine, 0, len(lines)),
		Subtotal:       decimal.Zero,
		ApplicationFee: applicationFee,
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		subtotal := LineTotal(l)
		summary.Lines = append(summary.Lines, QuotedLine{
			ProductID: l.Product.ID,
			Name:      l.Product.Name,
			Quantity:  l.Quantity,
			UnitPrice: ResolveUnitPrice(l.Product, l.Quantity),
			Subtotal:  subtotal,
		})
		summary.Subtotal = summary.Subtotal.Add(subtotal)
	}
	summary.Total = summary.Subtotal.Add(applicationFee)
	return summary
}
