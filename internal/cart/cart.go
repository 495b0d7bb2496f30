package cart

import (
	"context"
	"errors"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
)

// Item keeps the product price seen when the line was first added.
type Item struct {
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"price"`
	AddedAt   time.Time `json:"addedAt"`
}

type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c Cart) Subtotal() int64 {
	var sum int64
	for _, it := range c.Items {
		sum += it.Price * int64(it.Quantity)
	}
	return sum
}

func (c Cart) TotalItems() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c Cart) find(productID string) int {
	for i, it := range c.Items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

type Store interface {
	// GetCart returns an empty cart when the user has none.
	GetCart(ctx context.Context, userID string) (Cart, error)
	SaveCart(ctx context.Context, c Cart) error
	ClearCart(ctx context.Context, userID string) error
}

type ProductLookup interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
}

type Service struct {
	Carts    Store
	Products ProductLookup
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Line is a cart item joined with the product it points at.
type Line struct {
	Item
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	VendorID  string `json:"vendorId"`
	Stock     int    `json:"stock"`
	Available bool   `json:"available"`
	Total     int64  `json:"total"`
}

type View struct {
	Items      []Line    `json:"items"`
	Subtotal   int64     `json:"subtotal"`
	TotalItems int       `json:"totalItems"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (s *Service) Get(ctx context.Context, userID string) (View, error) {
	c, err := s.Carts.GetCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, qty int) (View, error) {
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return View{}, apperr.Fields("invalid quantity", map[string]string{"quantity": "must be at least 1"})
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return View{}, err
	}
	c, err := s.Carts.GetCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	now := s.now()
	if i := c.find(productID); i >= 0 {
		want := c.Items[i].Quantity + qty
		if want > p.Stock {
			return View{}, apperr.Validation("only %d of %s in stock", p.Stock, p.Name)
		}
		c.Items[i].Quantity = want
	} else {
		if qty > p.Stock {
			return View{}, apperr.Validation("only %d of %s in stock", p.Stock, p.Name)
		}
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: qty, Price: p.Price, AddedAt: now})
	}
	return s.save(ctx, c, now)
}

// UpdateItem sets the quantity of a line; zero removes it.
func (s *Service) UpdateItem(ctx context.Context, userID, productID string, qty int) (View, error) {
	if qty < 0 {
		return View{}, apperr.Fields("invalid quantity", map[string]string{"quantity": "must be 0 or more"})
	}
	c, err := s.Carts.GetCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	i := c.find(productID)
	if i < 0 {
		return View{}, apperr.NotFound("product %s is not in the cart", productID)
	}
	if qty == 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		return s.save(ctx, c, s.now())
	}
	p, err := s.product(ctx, productID)
	if err != nil {
		return View{}, err
	}
	if qty > p.Stock {
		return View{}, apperr.Validation("only %d of %s in stock", p.Stock, p.Name)
	}
	c.Items[i].Quantity = qty
	return s.save(ctx, c, s.now())
}

func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (View, error) {
	c, err := s.Carts.GetCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	i := c.find(productID)
	if i < 0 {
		return View{}, apperr.NotFound("product %s is not in the cart", productID)
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return s.save(ctx, c, s.now())
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.Carts.ClearCart(ctx, userID)
}

type SyncItem struct {
	ProductID string
	Quantity  int
}

// Sync merges a guest cart into the stored one. Quantities add up and are
// capped at the available stock; unknown, inactive or sold-out products are
// skipped.
func (s *Service) Sync(ctx context.Context, userID string, items []SyncItem) (View, error) {
	c, err := s.Carts.GetCart(ctx, userID)
	if err != nil {
		return View{}, err
	}
	now := s.now()
	for _, in := range items {
		if in.Quantity <= 0 {
			continue
		}
		p, err := s.product(ctx, in.ProductID)
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrValidation) {
				continue
			}
			return View{}, err
		}
		if p.Stock == 0 {
			continue
		}
		if i := c.find(in.ProductID); i >= 0 {
			c.Items[i].Quantity = min(c.Items[i].Quantity+in.Quantity, p.Stock)
		} else {
			c.Items = append(c.Items, Item{
				ProductID: in.ProductID,
				Quantity:  min(in.Quantity, p.Stock),
				Price:     p.Price,
				AddedAt:   now,
			})
		}
	}
	return s.save(ctx, c, now)
}

type Totals struct {
	Subtotal   int64 `json:"subtotal"`
	TotalItems int   `json:"totalItems"`
	Items      int   `json:"items"`
}

func (s *Service) Totals(ctx context.Context, userID string) (Totals, error) {
	c, err := s.Carts.GetCart(ctx, userID)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Subtotal: c.Subtotal(), TotalItems: c.TotalItems(), Items: len(c.Items)}, nil
}

func (s *Service) product(ctx context.Context, id string) (catalog.Product, error) {
	p, err := s.Products.GetProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	if !p.IsActive {
		return catalog.Product{}, apperr.Validation("product %s is not available", p.Name)
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, c Cart, now time.Time) (View, error) {
	c.UpdatedAt = now
	if err := s.Carts.SaveCart(ctx, c); err != nil {
		return View{}, err
	}
	return s.view(ctx, c)
}

func (s *Service) view(ctx context.Context, c Cart) (View, error) {
	v := View{Items: make([]Line, 0, len(c.Items)), UpdatedAt: c.UpdatedAt}
	for _, it := range c.Items {
		l := Line{Item: it, Total: it.Price * int64(it.Quantity)}
		p, err := s.Products.GetProduct(ctx, it.ProductID)
		switch {
		case err == nil:
			l.Name, l.Image, l.VendorID, l.Stock = p.Name, p.Image(), p.VendorID, p.Stock
			l.Available = p.IsActive && p.Stock >= it.Quantity
		case errors.Is(err, apperr.ErrNotFound):
		default:
			return View{}, err
		}
		v.Items = append(v.Items, l)
	}
	v.Subtotal = c.Subtotal()
	v.TotalItems = c.TotalItems()
	return v, nil
}
