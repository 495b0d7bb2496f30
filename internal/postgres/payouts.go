package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/payouts"
)

const payoutColumns = `id, vendor_id, amount, currency, status, payment_method, transaction_id, orders,
	period_start, period_end, bank_account, notes, processed_at, created_at, updated_at`

func scanPayout(row pgx.Row) (payouts.Payout, error) {
	var p payouts.Payout
	err := row.Scan(&p.ID, &p.VendorID, &p.Amount, &p.Currency, &p.Status, &p.PaymentMethod, &p.TransactionID,
		&p.Orders, &p.Period.StartDate, &p.Period.EndDate, &p.BankAccount, &p.Notes, &p.ProcessedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if p.Orders == nil {
		p.Orders = []string{}
	}
	return p, err
}

// CreatePayout refuses orders already claimed by another payout of the
// vendor that has not failed. Requests of one vendor are serialised by an
// advisory lock so the check and the insert cannot interleave.
func (s *Store) CreatePayout(ctx context.Context, p *payouts.Payout) error {
	ids := p.Orders
	if ids == nil {
		ids = []string{}
	}
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapErr(err, "payout")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('payout:' || $1))`, p.VendorID); err != nil {
		return mapErr(err, "payout")
	}
	var claimed int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM payouts
		WHERE vendor_id=$1 AND status <> $2 AND orders ?| $3::text[]`,
		p.VendorID, payouts.StatusFailed, ids).Scan(&claimed); err != nil {
		return mapErr(err, "payout")
	}
	if claimed > 0 {
		return apperr.Conflict("some of these orders are already part of a payout")
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO payouts(`+payoutColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.VendorID, p.Amount, p.Currency, p.Status, p.PaymentMethod, p.TransactionID, ids,
		p.Period.StartDate, p.Period.EndDate, p.BankAccount, p.Notes, p.ProcessedAt, p.CreatedAt, p.UpdatedAt); err != nil {
		return mapErr(err, "payout")
	}
	return mapErr(tx.Commit(ctx), "payout")
}

func (s *Store) GetPayout(ctx context.Context, id string) (payouts.Payout, error) {
	p, err := scanPayout(s.DB.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id=$1`, id))
	return p, mapErr(err, "payout")
}

func (s *Store) ListPayouts(ctx context.Context, vendorID string, pg paging.Page) ([]payouts.Payout, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM payouts WHERE vendor_id=$1`, vendorID).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count payouts")
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+payoutColumns+` FROM payouts WHERE vendor_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, vendorID, pg.Limit, pg.Offset())
	if err != nil {
		return nil, 0, mapErr(err, "list payouts")
	}
	defer rows.Close()

	out := []payouts.Payout{}
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, 0, mapErr(err, "scan payout")
		}
		out = append(out, p)
	}
	return out, total, mapErr(rows.Err(), "list payouts")
}

func (s *Store) UpdatePayout(ctx context.Context, p payouts.Payout) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE payouts SET status=$2, transaction_id=$3, notes=$4, processed_at=$5, updated_at=$6
		WHERE id=$1`, p.ID, p.Status, p.TransactionID, p.Notes, p.ProcessedAt, p.UpdatedAt)
	if err != nil {
		return mapErr(err, "payout")
	}
	if ct.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "payout")
	}
	return nil
}
