package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/inventory"
)

// RecordPurchase restocks the product, replaces its prices and stores the purchase.
func (s *Store) RecordPurchase(ctx context.Context, rec inventory.PurchaseRecord) (inventory.Purchase, catalog.Product, error) {
	var (
		purchase = rec.Purchase
		product  catalog.Product
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		product, err = scanProduct(tx.QueryRow(ctx, `UPDATE products SET
			stock = stock + $2, cost_price = $3, selling_price = $4, updated_at = $5
			WHERE id = $1 RETURNING `+productColumns,
			purchase.ProductID, purchase.Quantity, rec.NewCostPrice, rec.NewSellingPrice, purchase.Date))
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("restock product: %w", err)
		}
		purchase.ProductName = product.Name
		_, err = tx.Exec(ctx, `INSERT INTO purchases (id, product_id, product_name, quantity, purchase_price, total_cost, purchased_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			purchase.ID, purchase.ProductID, purchase.ProductName, purchase.Quantity, purchase.PurchasePrice, purchase.TotalCost, purchase.Date)
		if err != nil {
			return fmt.Errorf("insert purchase: %w", err)
		}
		return nil
	})
	if err != nil {
		return inventory.Purchase{}, catalog.Product{}, err
	}
	return purchase, product, nil
}

// ListPurchases returns purchases dated in [from, to), newest first.
func (s *Store) ListPurchases(ctx context.Context, from, to time.Time) ([]inventory.Purchase, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, product_id, product_name, quantity, purchase_price, total_cost, purchased_at
		FROM purchases WHERE purchased_at >= $1 AND purchased_at < $2 ORDER BY purchased_at DESC, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()
	out := make([]inventory.Purchase, 0)
	for rows.Next() {
		var p inventory.Purchase
		if err := rows.Scan(&p.ID, &p.ProductID, &p.ProductName, &p.Quantity, &p.PurchasePrice, &p.TotalCost, &p.Date); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListLowStock returns products at or below threshold, lowest stock first.
func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products
		WHERE stock <= $1 ORDER BY stock, name`, threshold)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return collectProducts(rows)
}
