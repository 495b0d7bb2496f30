package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/pkg/errors"
)

func (s *Store) GetCart(ctx context.Context, userID string) (cart.Cart, error) {
	c := cart.Cart{UserID: userID}
	err := s.DB.QueryRow(ctx, `SELECT items, updated_at FROM carts WHERE user_id=$1`, userID).Scan(&c.Items, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return cart.Cart{UserID: userID, Items: []cart.Item{}}, nil
	}
	if err != nil {
		return cart.Cart{}, mapErr(err, "cart")
	}
	if c.Items == nil {
		c.Items = []cart.Item{}
	}
	return c, nil
}

func (s *Store) SaveCart(ctx context.Context, c cart.Cart) error {
	items := c.Items
	if items == nil {
		items = []cart.Item{}
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO carts(user_id, items, updated_at) VALUES ($1,$2,$3)
		ON CONFLICT (user_id) DO UPDATE SET items=EXCLUDED.items, updated_at=EXCLUDED.updated_at`,
		c.UserID, items, c.UpdatedAt)
	return mapErr(err, "cart")
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM carts WHERE user_id=$1`, userID)
	return mapErr(err, "cart")
}
