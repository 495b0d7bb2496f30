package postgres

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil, "order"))

	err := mapErr(fmt.Errorf("scan: %w", pgx.ErrNoRows), "order")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, "order not found", apperr.Message(err))

	err = mapErr(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "products_sku_key"}, "product")
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, "a product with this SKU already exists", apperr.Message(err))

	err = mapErr(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: "something_else"}, "payout")
	require.ErrorIs(t, err, apperr.ErrConflict)

	err = mapErr(&pgconn.PgError{Code: codeCheckViolation, ConstraintName: "products_stock_check"}, "product")
	require.ErrorIs(t, err, apperr.ErrValidation)

	err = mapErr(context.DeadlineExceeded, "cart")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, apperr.ErrNotFound)
	assert.Contains(t, err.Error(), "cart")
}

func TestMigrationsDeclareMappedConstraints(t *testing.T) {
	body, err := migrations.ReadFile("migrations/0001_init.sql")
	require.NoError(t, err)
	sql := string(body)

	for name := range conflictMessages {
		assert.True(t, strings.Contains(sql, name), "constraint %s missing from schema", name)
	}
	for _, table := range []string{"users", "categories", "products", "carts", "orders", "reviews", "notifications", "payouts"} {
		assert.Contains(t, sql, "CREATE TABLE "+table+" (")
	}
}
