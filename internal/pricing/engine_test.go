package pricing

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func requireMoney(t *testing.T, want string, got Money) {
	t.Helper()
	expected := decimal.RequireFromString(want)
	require.Truef(t, expected.Equal(got), "expected %s, got %s", expected, got)
}

func intPtr(v int) *int { return &v }

func wholesaleProduct() Product {
	return Product{
		ID:           "p-1",
		Name:         "Beras 5kg",
		SellingPrice: NewMoney(3000),
		Tiers: MustTiers(
			Tier{MinQuantity: 40, Price: NewMoney(2700)},
			Tier{MinQuantity: 10, Price: NewMoney(2800)},
		),
	}
}

func TestResolveUnitPriceBaseOnly(t *testing.T) {
	p := Product{SellingPrice: NewMoney(12500)}
	for _, qty := range []int{1, 2, 17, 1000} {
		requireMoney(t, "12500", ResolveUnitPrice(p, qty))
	}
}

func TestResolveUnitPriceDiscount(t *testing.T) {
	price := NewMoney(3000)
	for d := 1; d <= 100; d++ {
		p := Product{SellingPrice: price, DiscountPercent: intPtr(d)}
		want := price.Sub(price.Mul(decimal.NewFromInt(int64(d))).Div(decimal.NewFromInt(100)))
		got := ResolveUnitPrice(p, 3)
		require.Truef(t, want.Equal(got), "discount %d: expected %s, got %s", d, want, got)
	}
}

func TestResolveUnitPriceZeroDiscountMeansNone(t *testing.T) {
	p := Product{SellingPrice: NewMoney(999), DiscountPercent: intPtr(0)}
	requireMoney(t, "999", ResolveUnitPrice(p, 1))
}

func TestResolveUnitPriceDiscountFractional(t *testing.T) {
	p := Product{SellingPrice: decimal.RequireFromString("999.99"), DiscountPercent: intPtr(33)}
	requireMoney(t, "669.9933", ResolveUnitPrice(p, 1))
}

func TestResolveUnitPriceTiers(t *testing.T) {
	p := wholesaleProduct()
	cases := []struct {
		qty  int
		want string
	}{
		{1, "3000"},
		{9, "3000"},
		{10, "2800"},
		{39, "2800"},
		{40, "2700"},
		{1000, "2700"},
	}
	for _, tc := range cases {
		requireMoney(t, tc.want, ResolveUnitPrice(p, tc.qty))
	}
}

func TestResolveUnitPriceTierOverridesDiscount(t *testing.T) {
	p := wholesaleProduct()
	p.DiscountPercent = intPtr(50)

	// below the lowest threshold the discount applies
	requireMoney(t, "1500", ResolveUnitPrice(p, 9))
	// once a tier matches the discount is ignored even though it would be cheaper
	requireMoney(t, "2800", ResolveUnitPrice(p, 10))
	requireMoney(t, "2700", ResolveUnitPrice(p, 45))

	p.Tiers = MustTiers(Tier{MinQuantity: 1, Price: NewMoney(2900)})
	requireMoney(t, "2900", ResolveUnitPrice(p, 1))
}

func TestResolveUnitPriceIdempotent(t *testing.T) {
	p := wholesaleProduct()
	p.DiscountPercent = intPtr(7)
	for _, qty := range []int{1, 10, 40} {
		first := ResolveUnitPrice(p, qty)
		second := ResolveUnitPrice(p, qty)
		require.True(t, first.Equal(second))
	}
}

func TestNewTiersRejectsInvalid(t *testing.T) {
	cases := map[string][]Tier{
		"zero threshold":      {{MinQuantity: 0, Price: NewMoney(10)}},
		"negative threshold":  {{MinQuantity: -5, Price: NewMoney(10)}},
		"zero price":          {{MinQuantity: 5, Price: decimal.Zero}},
		"negative price":      {{MinQuantity: 5, Price: NewMoney(-1)}},
		"duplicate threshold": {{MinQuantity: 5, Price: NewMoney(10)}, {MinQuantity: 5, Price: NewMoney(9)}},
	}
	for name, in := range cases {
		_, err := NewTiers(in)
		require.Truef(t, errors.Is(err, ErrInvalidProductData), "%s: unexpected error %v", name, err)
	}
}

func TestTiersOrderIndependent(t *testing.T) {
	a := MustTiers(Tier{MinQuantity: 10, Price: NewMoney(2800)}, Tier{MinQuantity: 40, Price: NewMoney(2700)})
	b := MustTiers(Tier{MinQuantity: 40, Price: NewMoney(2700)}, Tier{MinQuantity: 10, Price: NewMoney(2800)})
	require.Equal(t, a.Items(), b.Items())
	require.Equal(t, 10, a.Items()[0].MinQuantity)
}

func TestTiersJSONRoundTripValidates(t *testing.T) {
	var tiers Tiers
	require.NoError(t, json.Unmarshal([]byte(`[{"minQuantity":40,"price":"2700"},{"minQuantity":10,"price":"2800"}]`), &tiers))
	tier, ok := tiers.Match(12)
	require.True(t, ok)
	requireMoney(t, "2800", tier.Price)

	err := json.Unmarshal([]byte(`[{"minQuantity":10,"price":"1"},{"minQuantity":10,"price":"2"}]`), &tiers)
	require.ErrorIs(t, err, ErrInvalidProductData)
}

func TestProductValidate(t *testing.T) {
	require.NoError(t, wholesaleProduct().Validate())
	require.ErrorIs(t, Product{SellingPrice: decimal.Zero}.Validate(), ErrInvalidProductData)
	require.ErrorIs(t, Product{SellingPrice: NewMoney(10), DiscountPercent: intPtr(101)}.Validate(), ErrInvalidProductData)
}

func TestComputeOrderTotalEmpty(t *testing.T) {
	requireMoney(t, "2000", ComputeOrderTotal(nil, NewMoney(2000)))
	requireMoney(t, "0", ComputeOrderTotal([]Line{}, decimal.Zero))
}

func TestComputeOrderTotalEndToEnd(t *testing.T) {
	p := Product{SellingPrice: NewMoney(10000), DiscountPercent: intPtr(0)}
	total := ComputeOrderTotal([]Line{{Product: p, Quantity: 3}}, NewMoney(2000))
	requireMoney(t, "32000", total)
}

func TestComputeOrderTotalNoFee(t *testing.T) {
	lines := []Line{
		{Product: wholesaleProduct(), Quantity: 12},
		{Product: Product{SellingPrice: NewMoney(500), DiscountPercent: intPtr(10)}, Quantity: 3},
	}
	// 12*2800 + 3*450
	requireMoney(t, "34950", ComputeOrderTotal(lines, decimal.Zero))
}

func TestComputeOrderTotalPermutationInvariant(t *testing.T) {
	lines := []Line{
		{Product: wholesaleProduct(), Quantity: 41},
		{Product: Product{SellingPrice: decimal.RequireFromString("0.10"), DiscountPercent: intPtr(3)}, Quantity: 7},
		{Product: Product{SellingPrice: decimal.RequireFromString("1234.56")}, Quantity: 2},
		{Product: Product{SellingPrice: decimal.RequireFromString("19.99"), DiscountPercent: intPtr(15)}, Quantity: 11},
	}
	fee := decimal.RequireFromString("1500.25")
	want := ComputeOrderTotal(lines, fee)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 25; i++ {
		shuffled := append([]Line(nil), lines...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got := ComputeOrderTotal(shuffled, fee)
		require.Truef(t, want.Equal(got), "permutation %d: expected %s, got %s", i, want, got)
	}
}

func TestQuoteMatchesTotal(t *testing.T) {
	lines := []Line{
		{Product: wholesaleProduct(), Quantity: 10},
		{Product: Product{ID: "p-2", Name: "Gula", SellingPrice: NewMoney(14000), DiscountPercent: intPtr(5)}, Quantity: 2},
	}
	fee := NewMoney(2000)
	summary := Quote(lines, fee)

	require.Len(t, summary.Lines, 2)
	requireMoney(t, "2800", summary.Lines[0].UnitPrice)
	requireMoney(t, "28000", summary.Lines[0].Subtotal)
	requireMoney(t, "13300", summary.Lines[1].UnitPrice)
	requireMoney(t, "54600", summary.Subtotal)
	require.True(t, summary.Total.Equal(ComputeOrderTotal(lines, fee)))
	requireMoney(t, "56600", summary.Total)
}
