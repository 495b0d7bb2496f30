package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/reviews"
)

const reviewColumns = `id, product_id, user_id, order_id, rating, title, comment, images, is_verified_purchase,
	helpful_count, report_count, is_approved, vendor_response, created_at, updated_at`

func scanReview(row pgx.Row) (reviews.Review, error) {
	var r reviews.Review
	err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.OrderID, &r.Rating, &r.Title, &r.Comment, &r.Images,
		&r.IsVerifiedPurchase, &r.HelpfulCount, &r.ReportCount, &r.IsApproved, &r.VendorResponse,
		&r.CreatedAt, &r.UpdatedAt)
	if r.Images == nil {
		r.Images = []string{}
	}
	return r, err
}

func (s *Store) CreateReview(ctx context.Context, r *reviews.Review) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO reviews(`+reviewColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		r.ID, r.ProductID, r.UserID, r.OrderID, r.Rating, r.Title, r.Comment, r.Images, r.IsVerifiedPurchase,
		r.HelpfulCount, r.ReportCount, r.IsApproved, r.VendorResponse, r.CreatedAt, r.UpdatedAt)
	return mapErr(err, "review")
}

func (s *Store) GetReview(ctx context.Context, id string) (reviews.Review, error) {
	r, err := scanReview(s.DB.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id=$1`, id))
	return r, mapErr(err, "review")
}

func (s *Store) ListReviews(ctx context.Context, productID string, p paging.Page) ([]reviews.Review, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE product_id=$1 AND is_approved`, productID).Scan(&total); err != nil {
		return nil, 0, mapErr(err, "count reviews")
	}
	rows, err := s.DB.Query(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE product_id=$1 AND is_approved
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, productID, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, mapErr(err, "list reviews")
	}
	defer rows.Close()

	out := []reviews.Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, 0, mapErr(err, "scan review")
		}
		out = append(out, r)
	}
	return out, total, mapErr(rows.Err(), "list reviews")
}

func (s *Store) UpdateReview(ctx context.Context, r reviews.Review) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE reviews SET rating=$2, title=$3, comment=$4, images=$5, helpful_count=$6, report_count=$7,
			is_approved=$8, vendor_response=$9, updated_at=$10
		WHERE id=$1`,
		r.ID, r.Rating, r.Title, r.Comment, r.Images, r.HelpfulCount, r.ReportCount,
		r.IsApproved, r.VendorResponse, r.UpdatedAt)
	if err != nil {
		return mapErr(err, "review")
	}
	if ct.RowsAffected() == 0 {
		return mapErr(pgx.ErrNoRows, "review")
	}
	return nil
}

func (s *Store) ReviewSummary(ctx context.Context, productID string) (reviews.Summary, error) {
	var sum reviews.Summary
	err := s.DB.QueryRow(ctx, `
		SELECT COALESCE(ROUND(AVG(rating)::numeric, 1), 0)::float8, COUNT(*)
		FROM reviews WHERE product_id=$1 AND is_approved`, productID).Scan(&sum.Average, &sum.Count)
	return sum, mapErr(err, "review summary")
}

func (s *Store) CountReviewsForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM reviews WHERE user_id=$1`, userID).Scan(&n)
	return n, mapErr(err, "count reviews")
}
