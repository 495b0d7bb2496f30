package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/vendors"
)

// vendorItems expands the vendor's line items of every order it appears
// on. $1 is the vendor id.
const vendorItems = `
	FROM orders o, jsonb_array_elements(o.items) AS it
	WHERE o.items @> jsonb_build_array(jsonb_build_object('vendorId', $1::text))
		AND it->>'vendorId' = $1`

func (s *Store) VendorOrderCounts(ctx context.Context, vendorID string) (vendors.OrderCounts, error) {
	var c vendors.OrderCounts
	err := s.DB.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'processing'),
			COUNT(*) FILTER (WHERE status = 'shipped'),
			COUNT(*) FILTER (WHERE status = 'delivered')
		FROM orders
		WHERE items @> jsonb_build_array(jsonb_build_object('vendorId', $1::text))`, vendorID).
		Scan(&c.Total, &c.Pending, &c.Processing, &c.Shipped, &c.Delivered)
	return c, mapErr(err, "count vendor orders")
}

func (s *Store) VendorSales(ctx context.Context, vendorID string) (vendors.Sales, error) {
	var sales vendors.Sales
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM((it->>'quantity')::bigint), 0)::bigint, COALESCE(SUM((it->>'total')::bigint), 0)::bigint`+
		vendorItems+` AND o.status <> 'cancelled'`, vendorID).Scan(&sales.UnitsSold, &sales.Revenue)
	sales.Total = sales.Revenue
	return sales, mapErr(err, "vendor sales")
}

// rangeCond appends created_at bounds to args, which already holds the
// vendor id.
func rangeCond(r vendors.Range, args []any) (string, []any) {
	cond := ""
	if r.From != nil {
		args = append(args, *r.From)
		cond += fmt.Sprintf(" AND o.created_at >= $%d", len(args))
	}
	if r.To != nil {
		args = append(args, *r.To)
		cond += fmt.Sprintf(" AND o.created_at <= $%d", len(args))
	}
	return cond, args
}

func (s *Store) VendorDailySales(ctx context.Context, vendorID string, r vendors.Range) ([]vendors.DailySales, error) {
	cond, args := rangeCond(r, []any{vendorID})
	rows, err := s.DB.Query(ctx, `
		SELECT to_char(o.created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
			COALESCE(SUM((it->>'total')::bigint), 0)::bigint,
			COUNT(DISTINCT o.id)`+
		vendorItems+` AND o.status <> 'cancelled'`+cond+`
		GROUP BY day ORDER BY day`, args...)
	if err != nil {
		return nil, mapErr(err, "vendor daily sales")
	}
	defer rows.Close()

	out := []vendors.DailySales{}
	for rows.Next() {
		var d vendors.DailySales
		if err := rows.Scan(&d.Date, &d.Sales, &d.Orders); err != nil {
			return nil, mapErr(err, "scan daily sales")
		}
		out = append(out, d)
	}
	return out, mapErr(rows.Err(), "vendor daily sales")
}

func (s *Store) VendorTopProducts(ctx context.Context, vendorID string, r vendors.Range, limit int) ([]vendors.TopProduct, error) {
	cond, args := rangeCond(r, []any{vendorID})
	args = append(args, limit)
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`
		SELECT it->>'productId', MAX(it->>'name'),
			SUM((it->>'quantity')::bigint)::bigint, SUM((it->>'total')::bigint)::bigint`+
		vendorItems+` AND o.status <> 'cancelled'`+cond+`
		GROUP BY it->>'productId'
		ORDER BY 3 DESC, 4 DESC
		LIMIT $%d`, len(args)), args...)
	if err != nil {
		return nil, mapErr(err, "vendor top products")
	}
	defer rows.Close()

	out := []vendors.TopProduct{}
	for rows.Next() {
		var t vendors.TopProduct
		if err := rows.Scan(&t.ProductID, &t.ProductName, &t.TotalSold, &t.Revenue); err != nil {
			return nil, mapErr(err, "scan top product")
		}
		out = append(out, t)
	}
	return out, mapErr(rows.Err(), "vendor top products")
}

// VendorEarnings sums the vendor's line totals on delivered orders created
// in [from, to] that no live payout of the vendor has claimed yet.
func (s *Store) VendorEarnings(ctx context.Context, vendorID string, from, to time.Time) (payouts.Earnings, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT o.id, SUM((it->>'total')::bigint)::bigint`+
		vendorItems+` AND o.status = 'delivered' AND o.created_at >= $2 AND o.created_at <= $3
			AND NOT EXISTS (
				SELECT 1 FROM payouts p
				WHERE p.vendor_id = $1 AND p.status <> $4 AND p.orders ? o.id)
		GROUP BY o.id, o.created_at ORDER BY o.created_at`, vendorID, from, to, payouts.StatusFailed)
	if err != nil {
		return payouts.Earnings{}, mapErr(err, "vendor earnings")
	}
	defer rows.Close()

	e := payouts.Earnings{OrderIDs: []string{}}
	for rows.Next() {
		var id string
		var sum int64
		if err := rows.Scan(&id, &sum); err != nil {
			return payouts.Earnings{}, mapErr(err, "scan earnings")
		}
		e.Gross += sum
		e.OrderIDs = append(e.OrderIDs, id)
	}
	return e, mapErr(rows.Err(), "vendor earnings")
}
