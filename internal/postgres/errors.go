package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/pkg/errors"
)

const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// conflictMessages names the unique constraints a client can trip.
var conflictMessages = map[string]string{
	"users_email_key":             "a user with this email already exists",
	"products_sku_key":            "a product with this SKU already exists",
	"categories_slug_key":         "a category with this name already exists",
	"reviews_product_id_user_key": "you have already reviewed this product",
	"orders_order_number_key":     "order number already taken",
}

// mapErr turns driver errors into apperr kinds. what names the entity for
// not-found messages and wrapped context.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			if msg, ok := conflictMessages[pgErr.ConstraintName]; ok {
				return apperr.Conflict("%s", msg)
			}
			return apperr.Conflict("%s already exists", what)
		case codeCheckViolation:
			return apperr.Validation("%s violates %s", what, pgErr.ConstraintName)
		}
	}
	return errors.Wrap(err, what)
}
