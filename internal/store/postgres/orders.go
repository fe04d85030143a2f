package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-koperasi/internal/catalog"
	"github.com/noah-isme/backend-koperasi/internal/order"
	"github.com/noah-isme/backend-koperasi/internal/shipping"
)

const orderColumns = `id, user_id, channel, subtotal, application_fee, total, payment_method,
	bank_name, wallet_provider, shipping_address, status, courier_id, tracking_number, created_at, updated_at`

type submitTx struct {
	tx pgx.Tx
}

// LockProducts takes row locks in id order so concurrent submissions cannot deadlock.
func (t submitTx) LockProducts(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]catalog.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func (t submitTx) DecrementStock(ctx context.Context, productID string, qty int) (int, bool, error) {
	var remaining int
	err := t.tx.QueryRow(ctx, `UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2 RETURNING stock`, productID, qty).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

func (t submitTx) InsertOrder(ctx context.Context, o order.Order) error {
	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.UserID, string(o.Channel), o.Subtotal, o.ApplicationFee, o.Total, string(o.PaymentMethod),
		o.BankName, o.WalletProvider, o.ShippingAddress, string(o.Status), o.CourierID, o.TrackingNumber, o.Date, o.UpdatedAt)
	for i, it := range o.Items {
		batch.Queue(`INSERT INTO order_items (order_id, line_no, product_id, product_name, quantity, unit_price, subtotal, cost_price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			o.ID, i+1, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.Subtotal, it.CostPrice)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

// SubmitOrder runs fn inside one transaction.
func (s *Store) SubmitOrder(ctx context.Context, fn func(ctx context.Context, tx order.SubmitTx) error) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, submitTx{tx: tx})
	})
}

func scanOrder(row scanner) (order.Order, error) {
	var (
		o                       order.Order
		channel, method, status string
	)
	err := row.Scan(&o.ID, &o.UserID, &channel, &o.Subtotal, &o.ApplicationFee, &o.Total, &method,
		&o.BankName, &o.WalletProvider, &o.ShippingAddress, &status, &o.CourierID, &o.TrackingNumber, &o.Date, &o.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	o.Channel = order.Channel(channel)
	o.PaymentMethod = order.PaymentMethod(method)
	o.Status = order.Status(status)
	return o, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryOrders(ctx context.Context, q querier, sql string, args ...any) ([]order.Order, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	orders := make([]order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachItems(ctx, q, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func attachItems(ctx context.Context, q querier, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
		orders[i].Items = []order.Item{}
	}
	rows, err := q.Query(ctx, `SELECT order_id, product_id, product_name, quantity, unit_price, subtotal, cost_price
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("load order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.CostPrice); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		i := index[orderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q querier, id string) (order.Order, error) {
	orders, err := queryOrders(ctx, q, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return order.Order{}, fmt.Errorf("get order: %w", err)
	}
	if len(orders) == 0 {
		return order.Order{}, order.ErrOrderNotFound
	}
	return orders[0], nil
}

// GetOrder returns an order with its items.
func (s *Store) GetOrder(ctx context.Context, id string) (order.Order, error) {
	return getOrder(ctx, s.pool, id)
}

// ListOrders returns matching orders, newest first, and the unpaged count.
func (s *Store) ListOrders(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.UserID != "" {
		where = append(where, "user_id = "+arg(f.UserID))
	}
	if f.CourierID != "" {
		where = append(where, "courier_id = "+arg(f.CourierID))
	}
	if f.Channel != "" {
		where = append(where, "channel = "+arg(string(f.Channel)))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}
	query := `SELECT ` + orderColumns + ` FROM orders` + clause + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT " + arg(f.Limit)
	}
	if f.Offset > 0 {
		query += " OFFSET " + arg(f.Offset)
	}
	orders, err := queryOrders(ctx, s.pool, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, total, nil
}

// ListOrdersBetween returns orders placed in [from, to), oldest first.
func (s *Store) ListOrdersBetween(ctx context.Context, from, to time.Time) ([]order.Order, error) {
	orders, err := queryOrders(ctx, s.pool, `SELECT `+orderColumns+` FROM orders
		WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list orders between: %w", err)
	}
	return orders, nil
}

// TransitionOrder applies t only while the order is still in t.From. Restocking runs
// in the same transaction.
func (s *Store) TransitionOrder(ctx context.Context, t shipping.Transition) (order.Order, error) {
	var out order.Order
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE orders SET
			status = $3,
			courier_id = COALESCE(NULLIF($4, ''), courier_id),
			tracking_number = COALESCE(NULLIF($5, ''), tracking_number),
			updated_at = $6
		WHERE id = $1 AND status = $2`,
			t.OrderID, string(t.From), string(t.To), t.CourierID, t.TrackingNumber, t.At)
		if err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, t.OrderID).Scan(&exists); err != nil {
				return fmt.Errorf("check order: %w", err)
			}
			if !exists {
				return order.ErrOrderNotFound
			}
			return shipping.ErrStaleStatus
		}
		if t.Restock {
			if _, err := tx.Exec(ctx, `UPDATE products p SET stock = p.stock + i.quantity, updated_at = $2
				FROM order_items i WHERE i.order_id = $1 AND p.id = i.product_id`, t.OrderID, t.At); err != nil {
				return fmt.Errorf("restock order items: %w", err)
			}
		}
		out, err = getOrder(ctx, tx, t.OrderID)
		return err
	})
	if err != nil {
		return order.Order{}, err
	}
	return out, nil
}
