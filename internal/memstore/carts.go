package memstore

import (
	"context"

	"github.com/kmercart/kmercart-api/internal/cart"
)

func (s *Store) GetCart(_ context.Context, userID string) (cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[userID]
	if !ok {
		return cart.Cart{UserID: userID, Items: []cart.Item{}}, nil
	}
	return cloneCart(c), nil
}

func (s *Store) SaveCart(_ context.Context, c cart.Cart) error {
	s.mu.Lock()
	s.carts[c.UserID] = cloneCart(c)
	s.mu.Unlock()
	return nil
}

func (s *Store) ClearCart(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.carts, userID)
	s.mu.Unlock()
	return nil
}
