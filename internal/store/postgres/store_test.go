package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/events"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
	"github.com/noah-isme/backend-koperasi/internal/settings"
	"github.com/noah-isme/backend-koperasi/internal/shipping"
	"github.com/noah-isme/backend-koperasi/internal/store/postgres"
)

func openStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := os.Getenv("KOPERASI_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KOPERASI_TEST_DATABASE_URL not set")
	}
	require.NoError(t, postgres.Migrate(dsn))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	store, err := postgres.Open(ctx, dsn, "koperasi-test")
	require.NoError(t, err)
	t.Cleanup(store.Close)

	_, err = store.Pool().Exec(ctx, `TRUNCATE domain_events, store_settings, purchases, order_items, orders, products`)
	require.NoError(t, err)
	return store
}

var now = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *postgres.Store, id, barcode string, stock int) catalog.Product {
	t.Helper()
	discount := 5
	p, err := s.CreateProduct(context.Background(), catalog.Product{
		ID:              id,
		Name:            "Produk " + id,
		Barcode:         barcode,
		Specifications:  map[string]string{"berat": "5kg"},
		CostPrice:       pricing.NewMoney(2500),
		SellingPrice:    pricing.NewMoney(3000),
		DiscountPercent: &discount,
		Tiers:           pricing.MustTiers(pricing.Tier{MinQuantity: 10, Price: pricing.NewMoney(2800)}),
		Stock:           stock,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	require.NoError(t, err)
	return p
}

func stockOf(t *testing.T, s *postgres.Store, id string) int {
	t.Helper()
	p, err := s.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestProductRoundTrip(t *testing.T) {
	s := openStore(t)
	created := seed(t, s, "p1", "8991", 7)
	require.Equal(t, 1, created.Tiers.Len())
	require.Equal(t, 5, *created.DiscountPercent)
	require.Equal(t, "5kg", created.Specifications["berat"])
	require.True(t, pricing.NewMoney(3000).Equal(created.SellingPrice))

	_, err := s.CreateProduct(context.Background(), catalog.Product{ID: "p2", Name: "Dup", Barcode: "8991", SellingPrice: pricing.NewMoney(1), CreatedAt: now, UpdatedAt: now})
	require.ErrorIs(t, err, catalog.ErrDuplicateCode)

	found, err := s.FindProductByCode(context.Background(), "8991")
	require.NoError(t, err)
	require.Equal(t, "p1", found.ID)

	rows, total, err := s.ListProducts(context.Background(), catalog.ListFilter{Query: "produk", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, rows, 1)

	require.NoError(t, s.DeleteProduct(context.Background(), "p1"))
	_, err = s.GetProduct(context.Background(), "p1")
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestSubmitConcurrentNeverOversells(t *testing.T) {
	s := openStore(t)
	seed(t, s, "p1", "", 5)
	sub := &order.Submitter{
		Store:  s,
		Events: &events.Bus{Store: s},
		Logger: zerolog.Nop(),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sub.Submit(context.Background(), order.SubmitInput{
				UserID:        "cashier-1",
				Channel:       order.ChannelPOS,
				Lines:         []order.LineRequest{{ProductID: "p1", Quantity: 1}},
				PaymentMethod: order.PaymentCash,
			})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return
			}
			var stockErr *order.InsufficientStockError
			var concErr *order.ConcurrentModificationError
			if !errors.As(err, &stockErr) && !errors.As(err, &concErr) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 5, ok)
	require.Zero(t, stockOf(t, s, "p1"))

	orders, total, err := s.ListOrders(context.Background(), order.ListFilter{Channel: order.ChannelPOS, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, orders, 2)
	require.Len(t, orders[0].Items, 1)
}

func TestTransitionRestocksOnCancel(t *testing.T) {
	s := openStore(t)
	seed(t, s, "p1", "", 10)
	sub := &order.Submitter{Store: s, Logger: zerolog.Nop()}
	o, err := sub.Submit(context.Background(), order.SubmitInput{
		UserID:          "cust-1",
		Channel:         order.ChannelOnline,
		Lines:           []order.LineRequest{{ProductID: "p1", Quantity: 3}},
		PaymentMethod:   order.PaymentCOD,
		ShippingAddress: "Jl. Pahlawan 3",
	})
	require.NoError(t, err)
	require.Equal(t, 7, stockOf(t, s, "p1"))

	_, err = s.TransitionOrder(context.Background(), shipping.Transition{
		OrderID: o.ID, From: order.StatusInTransit, To: order.StatusDelivered, At: now,
	})
	require.ErrorIs(t, err, shipping.ErrStaleStatus)

	cancelled, err := s.TransitionOrder(context.Background(), shipping.Transition{
		OrderID: o.ID, From: order.StatusAwaitingAssignment, To: order.StatusCancelled, Restock: true, At: now,
	})
	require.NoError(t, err)
	require.Equal(t, order.StatusCancelled, cancelled.Status)
	require.Equal(t, 10, stockOf(t, s, "p1"))

	_, err = s.TransitionOrder(context.Background(), shipping.Transition{OrderID: "missing", From: order.StatusAwaitingAssignment, To: order.StatusCancelled})
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}

func TestPurchasesSettingsAndEvents(t *testing.T) {
	s := openStore(t)
	seed(t, s, "p1", "", 1)

	purchase, product, err := s.RecordPurchase(context.Background(), inventory.PurchaseRecord{
		Purchase: inventory.Purchase{
			ID: "PUR-1", ProductID: "p1", Quantity: 4,
			PurchasePrice: pricing.NewMoney(2600), TotalCost: pricing.NewMoney(10400), Date: now,
		},
		NewCostPrice:    pricing.NewMoney(2600),
		NewSellingPrice: pricing.NewMoney(3100),
	})
	require.NoError(t, err)
	require.Equal(t, "Produk p1", purchase.ProductName)
	require.Equal(t, 5, product.Stock)

	rows, err := s.ListPurchases(context.Background(), now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, pricing.NewMoney(10400).Equal(rows[0].TotalCost))

	low, err := s.ListLowStock(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, low, 1)

	_, ok, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	in := settings.Defaults()
	in.ApplicationFee = pricing.NewMoney(2000)
	in.UpdatedAt = now
	require.NoError(t, s.SaveSettings(context.Background(), in))
	got, ok, err := s.GetSettings(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, pricing.NewMoney(2000).Equal(got.ApplicationFee))
	require.Equal(t, in.EnabledPaymentMethods, got.EnabledPaymentMethods)

	ev, err := s.InsertEvent(context.Background(), events.Event{Topic: events.TopicPurchaseRecorded, AggregateID: "PUR-1", Payload: []byte(`{"a":1}`), OccurredAt: now})
	require.NoError(t, err)
	require.NotZero(t, ev.ID)
}
