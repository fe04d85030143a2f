package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-koperasi/internal/app"
	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/config"
	"github.com/noah-isme/backend-koperasi/internal/obs"
	"github.com/noah-isme/backend-koperasi/internal/pricing"
	"github.com/noah-isme/backend-koperasi/internal/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := app.OpenStore(ctx, cfg, "koperasi-seeder", logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	if err := seedSettings(ctx, store, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed settings")
	}
	created, skipped, err := seedCatalog(ctx, store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed catalog")
	}
	logger.Info().Int("created", created).Int("skipped", skipped).Msg("seeding completed")
}

func seedSettings(ctx context.Context, store settings.Store, logger zerolog.Logger) error {
	svc := &settings.Service{Store: store, Logger: logger}
	_, err := svc.Update(ctx, settings.Input{
		ApplicationFee:        pricing.NewMoney(1000),
		LowStockThreshold:     settings.DefaultLowStockThreshold,
		EnabledPaymentMethods: []string{"CASH", "COD", "BANK_TRANSFER", "DIGITAL_WALLET"},
	})
	return err
}

func seedCatalog(ctx context.Context, store catalog.Store, logger zerolog.Logger) (created, skipped int, err error) {
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: store, Logger: logger})
	if err != nil {
		return 0, 0, err
	}
	for _, in := range sampleProducts() {
		if _, err := svc.Create(ctx, in); err != nil {
			if errors.Is(err, catalog.ErrDuplicateCode) {
				skipped++
				continue
			}
			return created, skipped, err
		}
		created++
	}
	return created, skipped, nil
}

func sampleProducts() []catalog.ProductInput {
	ten := 10
	return []catalog.ProductInput{
		{
			Name: "Beras Premium 5kg", Category: "Sembako", Unit: "karung",
			Barcode: "8990001000011", SKU: "BRS-5KG",
			CostPrice: pricing.NewMoney(62000), SellingPrice: pricing.NewMoney(70000), Stock: 40,
			Tiers: []catalog.TierInput{
				{MinQuantity: 5, Price: pricing.NewMoney(67500)},
				{MinQuantity: 10, Price: pricing.NewMoney(65000)},
			},
		},
		{
			Name: "Gula Pasir 1kg", Category: "Sembako", Unit: "pak",
			Barcode: "8990001000028", SKU: "GLA-1KG",
			CostPrice: pricing.NewMoney(13500), SellingPrice: pricing.NewMoney(15500), Stock: 60,
			Tiers: []catalog.TierInput{{MinQuantity: 12, Price: pricing.NewMoney(14800)}},
		},
		{
			Name: "Minyak Goreng 2L", Category: "Sembako", Unit: "botol",
			Barcode: "8990001000035", SKU: "MYK-2L",
			CostPrice: pricing.NewMoney(31000), SellingPrice: pricing.NewMoney(36000), Stock: 30,
			DiscountPercent: &ten,
		},
		{
			Name: "Telur Ayam 1kg", Category: "Segar", Unit: "kg",
			SKU:       "TLR-1KG",
			CostPrice: pricing.NewMoney(25000), SellingPrice: pricing.NewMoney(28500), Stock: 25,
		},
		{
			Name: "Sabun Cuci Piring 800ml", Category: "Kebutuhan Rumah", Unit: "pouch",
			Barcode: "8990001000059", SKU: "SBN-800",
			CostPrice: pricing.NewMoney(11000), SellingPrice: pricing.NewMoney(13000), Stock: 4,
			Specifications: map[string]string{"aroma": "jeruk nipis"},
		},
	}
}
