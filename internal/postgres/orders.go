package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/pkg/errors"
)

const orderColumns = `id, order_number, customer_id, items, subtotal, tax, tax_rate, shipping_cost, discount,
	total, currency, status, payment_status, payment_method, payment_intent_id, shipping_address,
	billing_address, tracking_number, notes, status_history, created_at, updated_at, delivered_at`

func scanOrder(row pgx.Row) (orders.Order, error) {
	var o orders.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.Items, &o.Subtotal, &o.Tax, &o.TaxRate,
		&o.ShippingCost, &o.Discount, &o.Total, &o.Currency, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.PaymentIntentID, &o.ShippingAddress, &o.BillingAddress, &o.TrackingNumber, &o.Notes,
		&o.StatusHistory, &o.CreatedAt, &o.UpdatedAt, &o.DeliveredAt)
	return o, err
}

// vendorContains is the jsonb containment argument matching orders with at
// least one item of vendorID. It is served by orders_items_idx.
func vendorContains(vendorID string) []map[string]string {
	return []map[string]string{{"vendorId": vendorID}}
}

// PlaceOrder locks every product row of the order in id order, checks and
// decrements stock, inserts the order and drops the cart. Any shortfall
// rolls the whole checkout back.
func (s *Store) PlaceOrder(ctx context.Context, o *orders.Order) ([]orders.StockLevel, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapErr(err, "begin checkout")
	}
	defer tx.Rollback(ctx)

	want := map[string]int{}
	var ids []string
	for _, it := range o.Items {
		if _, ok := want[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		want[it.ProductID] += it.Quantity
	}
	sort.Strings(ids)

	levels := make([]orders.StockLevel, 0, len(ids))
	for _, id := range ids {
		var l orders.StockLevel
		var active bool
		err := tx.QueryRow(ctx, `
			SELECT id, vendor_id, name, sku, stock, low_stock_threshold, is_active
			FROM products WHERE id=$1 FOR UPDATE`, id).
			Scan(&l.ProductID, &l.VendorID, &l.Name, &l.SKU, &l.Stock, &l.Threshold, &active)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
			return nil, apperr.Validation("product %s is no longer available", id)
		}
		if err != nil {
			return nil, mapErr(err, "lock product")
		}
		if l.Stock < want[id] {
			return nil, apperr.Validation("insufficient stock for %s: %d requested, %d available", l.Name, want[id], l.Stock)
		}
		if err := tx.QueryRow(ctx, `
			UPDATE products SET stock = stock - $2, total_sales = total_sales + $2
			WHERE id=$1 RETURNING stock`, id, want[id]).Scan(&l.Stock); err != nil {
			return nil, mapErr(err, "decrement stock")
		}
		levels = append(levels, l)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO orders(`+orderColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
		o.ID, o.OrderNumber, o.CustomerID, o.Items, o.Subtotal, o.Tax, o.TaxRate, o.ShippingCost, o.Discount,
		o.Total, o.Currency, o.Status, o.PaymentStatus, o.PaymentMethod, o.PaymentIntentID, o.ShippingAddress,
		o.BillingAddress, o.TrackingNumber, o.Notes, o.StatusHistory, o.CreatedAt, o.UpdatedAt, o.DeliveredAt); err != nil {
		return nil, mapErr(err, "order")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM carts WHERE user_id=$1`, o.CustomerID); err != nil {
		return nil, mapErr(err, "clear cart")
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, mapErr(err, "commit checkout")
	}
	return levels, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id))
	return o, mapErr(err, "order")
}

func orderWhere(f orders.Filter) (string, []any) {
	var where []string
	var args []any
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if f.VendorID != "" {
		args = append(args, vendorContains(f.VendorID))
		where = append(where, fmt.Sprintf("items @> $%d::jsonb", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (s *Store) ListOrders(ctx context.Context, f orders.Filter, p paging.Page) ([]orders.Order, int, error) {
	cond, args := orderWhere(f)
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+cond, args...).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count orders")
	}
	args = append(args, p.Limit, p.Offset())
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, cond, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, mapErr(err, "list orders")
	}
	defer rows.Close()

	out := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, mapErr(err, "scan order")
		}
		out = append(out, o)
	}
	return out, total, mapErr(rows.Err(), "list orders")
}

// ChangeStatus locks the order, runs ch.Authorize against it and writes the
// transition. A cancellation puts the items back on the shelf in the same
// transaction.
func (s *Store) ChangeStatus(ctx context.Context, id string, ch orders.Change) (orders.Order, orders.Status, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return orders.Order{}, "", mapErr(err, "begin status change")
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return orders.Order{}, "", mapErr(err, "order")
	}
	from := o.Status
	if ch.Authorize != nil {
		if err := ch.Authorize(o); err != nil {
			return orders.Order{}, "", err
		}
	}

	if ch.Apply(&o) {
		for _, it := range o.Items {
			if _, err := tx.Exec(ctx, `
				UPDATE products SET stock = stock + $2, total_sales = GREATEST(total_sales - $2, 0)
				WHERE id=$1`, it.ProductID, it.Quantity); err != nil {
				return orders.Order{}, "", mapErr(err, "restock")
			}
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, tracking_number=$4, status_history=$5,
			updated_at=$6, delivered_at=$7
		WHERE id=$1`,
		o.ID, o.Status, o.PaymentStatus, o.TrackingNumber, o.StatusHistory, o.UpdatedAt, o.DeliveredAt); err != nil {
		return orders.Order{}, "", mapErr(err, "order")
	}
	if err := tx.Commit(ctx); err != nil {
		return orders.Order{}, "", mapErr(err, "commit status change")
	}
	return o, from, nil
}

func (s *Store) CountOrdersForCustomer(ctx context.Context, customerID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id=$1`, customerID).Scan(&n)
	return n, mapErr(err, "count orders")
}

func (s *Store) DeliveredOrderWith(ctx context.Context, customerID, productID string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		SELECT id FROM orders
		WHERE customer_id=$1 AND status='delivered' AND items @> $2::jsonb
		ORDER BY created_at DESC LIMIT 1`,
		customerID, []map[string]string{{"productId": productID}}).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, mapErr(err, "delivered order")
}
