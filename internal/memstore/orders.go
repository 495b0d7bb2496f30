package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/paging"
)

// PlaceOrder checks every line before touching stock, so a shortfall
// leaves the store unchanged.
func (s *Store) PlaceOrder(_ context.Context, o *orders.Order) ([]orders.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.numbers[o.OrderNumber]; ok {
		return nil, apperr.Conflict("order number already taken")
	}

	want := map[string]int{}
	var ids []string
	for _, it := range o.Items {
		if _, ok := want[it.ProductID]; !ok {
			ids = append(ids, it.ProductID)
		}
		want[it.ProductID] += it.Quantity
	}
	sort.Strings(ids)
	for _, id := range ids {
		p, ok := s.products[id]
		if !ok || !p.IsActive {
			return nil, apperr.Validation("product %s is no longer available", id)
		}
		if p.Stock < want[id] {
			return nil, apperr.Validation("insufficient stock for %s: %d requested, %d available", p.Name, want[id], p.Stock)
		}
	}

	levels := make([]orders.StockLevel, 0, len(ids))
	for _, id := range ids {
		p := s.products[id]
		p.Stock -= want[id]
		p.TotalSales += want[id]
		s.products[id] = p
		levels = append(levels, orders.StockLevel{
			ProductID: p.ID,
			VendorID:  p.VendorID,
			Name:      p.Name,
			SKU:       p.SKU,
			Stock:     p.Stock,
			Threshold: p.LowStockThreshold,
		})
	}
	s.orders[o.ID] = cloneOrder(*o)
	s.numbers[o.OrderNumber] = o.ID
	s.orderSeq = append(s.orderSeq, o.ID)
	delete(s.carts, o.CustomerID)
	return levels, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, apperr.NotFound("order not found")
	}
	return cloneOrder(o), nil
}

// sortedOrders must be called with s.mu held.
func (s *Store) sortedOrders() []orders.Order {
	return newestFirst(s.orderSeq, func(id string) (orders.Order, bool) {
		o, ok := s.orders[id]
		return o, ok
	}, func(o orders.Order) time.Time { return o.CreatedAt })
}

func (s *Store) ListOrders(_ context.Context, f orders.Filter, p paging.Page) ([]orders.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var match []orders.Order
	for _, o := range s.sortedOrders() {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if f.VendorID != "" && !o.HasVendor(f.VendorID) {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		match = append(match, cloneOrder(o))
	}
	return paging.Slice(match, p), len(match), nil
}

func (s *Store) ChangeStatus(_ context.Context, id string, ch orders.Change) (orders.Order, orders.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[id]
	if !ok {
		return orders.Order{}, "", apperr.NotFound("order not found")
	}
	o := cloneOrder(stored)
	from := o.Status
	if ch.Authorize != nil {
		if err := ch.Authorize(cloneOrder(o)); err != nil {
			return orders.Order{}, "", err
		}
	}
	if ch.Apply(&o) {
		for _, it := range o.Items {
			p, ok := s.products[it.ProductID]
			if !ok {
				continue
			}
			p.Stock += it.Quantity
			p.TotalSales = max(p.TotalSales-it.Quantity, 0)
			s.products[it.ProductID] = p
		}
	}
	s.orders[id] = cloneOrder(o)
	return o, from, nil
}

func (s *Store) CountOrdersForCustomer(_ context.Context, customerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeliveredOrderWith(_ context.Context, customerID, productID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.sortedOrders() {
		if o.CustomerID != customerID || o.Status != orders.StatusDelivered {
			continue
		}
		for _, it := range o.Items {
			if it.ProductID == productID {
				return o.ID, nil
			}
		}
	}
	return "", nil
}
