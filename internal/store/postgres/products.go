package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
)

const productColumns = `id, name, description, category, unit, image_url,
	COALESCE(barcode, ''), COALESCE(sku, ''), supplier_id, specifications,
	cost_price, selling_price, discount_percent, price_tiers, stock, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (catalog.Product, error) {
	var (
		p     catalog.Product
		specs []byte
		tiers []byte
	)
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.Unit, &p.ImageURL,
		&p.Barcode, &p.SKU, &p.SupplierID, &specs,
		&p.CostPrice, &p.SellingPrice, &p.DiscountPercent, &tiers, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return catalog.Product{}, err
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &p.Specifications); err != nil {
			return catalog.Product{}, fmt.Errorf("decode specifications: %w", err)
		}
		if len(p.Specifications) == 0 {
			p.Specifications = nil
		}
	}
	if len(tiers) > 0 {
		if err := json.Unmarshal(tiers, &p.Tiers); err != nil {
			return catalog.Product{}, fmt.Errorf("decode price tiers: %w", err)
		}
	}
	return p, nil
}

func collectProducts(rows pgx.Rows) ([]catalog.Product, error) {
	defer rows.Close()
	out := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func productArgs(p catalog.Product) ([]any, error) {
	specs := []byte("{}")
	if len(p.Specifications) > 0 {
		encoded, err := json.Marshal(p.Specifications)
		if err != nil {
			return nil, fmt.Errorf("encode specifications: %w", err)
		}
		specs = encoded
	}
	tiers, err := json.Marshal(p.Tiers)
	if err != nil {
		return nil, fmt.Errorf("encode price tiers: %w", err)
	}
	return []any{
		p.ID, p.Name, p.Description, p.Category, p.Unit, p.ImageURL,
		p.Barcode, p.SKU, p.SupplierID, specs,
		p.CostPrice, p.SellingPrice, p.DiscountPercent, tiers, p.Stock, p.CreatedAt, p.UpdatedAt,
	}, nil
}

// CreateProduct inserts p.
func (s *Store) CreateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	args, err := productArgs(p)
	if err != nil {
		return catalog.Product{}, err
	}
	row := s.pool.QueryRow(ctx, `INSERT INTO products (
		id, name, description, category, unit, image_url, barcode, sku, supplier_id, specifications,
		cost_price, selling_price, discount_percent, price_tiers, stock, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING `+productColumns, args...)
	created, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.Product{}, catalog.ErrDuplicateCode
		}
		return catalog.Product{}, fmt.Errorf("insert product: %w", err)
	}
	return created, nil
}

// UpdateProduct replaces every editable column, stock included.
func (s *Store) UpdateProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	args, err := productArgs(p)
	if err != nil {
		return catalog.Product{}, err
	}
	// created_at is never rewritten
	args = append(args[:15], p.UpdatedAt)
	row := s.pool.QueryRow(ctx, `UPDATE products SET
		name = $2, description = $3, category = $4, unit = $5, image_url = $6,
		barcode = NULLIF($7, ''), sku = NULLIF($8, ''), supplier_id = $9, specifications = $10,
		cost_price = $11, selling_price = $12, discount_percent = $13, price_tiers = $14,
		stock = $15, updated_at = $16
	WHERE id = $1
	RETURNING `+productColumns, args...)
	updated, err := scanProduct(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return catalog.Product{}, catalog.ErrProductNotFound
	case isUniqueViolation(err):
		return catalog.Product{}, catalog.ErrDuplicateCode
	case err != nil:
		return catalog.Product{}, fmt.Errorf("update product: %w", err)
	}
	return updated, nil
}

// DeleteProduct removes a product.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// GetProduct returns a product by id.
func (s *Store) GetProduct(ctx context.Context, id string) (catalog.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetProducts returns the known products among ids.
func (s *Store) GetProducts(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	return collectProducts(rows)
}

// FindProductByCode matches barcode first, then SKU, ignoring case.
func (s *Store) FindProductByCode(ctx context.Context, code string) (catalog.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products
		WHERE lower(barcode) = lower($1) OR lower(sku) = lower($1)
		ORDER BY (lower(barcode) = lower($1)) DESC NULLS LAST
		LIMIT 1`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("find product by code: %w", err)
	}
	return p, nil
}

// ListProducts filters, sorts by name and pages the catalog.
func (s *Store) ListProducts(ctx context.Context, f catalog.ListFilter) ([]catalog.Product, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.Query != "" {
		q := arg(f.Query)
		where = append(where, fmt.Sprintf("(name ILIKE '%%' || %s || '%%' OR lower(barcode) = lower(%s) OR lower(sku) = lower(%s))", q, q, q))
	}
	if f.Category != "" {
		where = append(where, "lower(category) = lower("+arg(f.Category)+")")
	}
	if f.SupplierID != "" {
		where = append(where, "supplier_id = "+arg(f.SupplierID))
	}
	if f.InStock != nil {
		if *f.InStock {
			where = append(where, "stock > 0")
		} else {
			where = append(where, "stock = 0")
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	query := `SELECT ` + productColumns + ` FROM products` + clause + ` ORDER BY name, id`
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	query += " OFFSET " + arg(f.Offset())
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	out, err := collectProducts(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("scan products: %w", err)
	}
	return out, total, nil
}

// ListAllProducts returns the whole catalog sorted by name.
func (s *Store) ListAllProducts(ctx context.Context) ([]catalog.Product, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	return collectProducts(rows)
}
