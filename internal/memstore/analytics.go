package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/vendors"
)

func (s *Store) VendorOrderCounts(_ context.Context, vendorID string) (vendors.OrderCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c vendors.OrderCounts
	for _, o := range s.orders {
		if !o.HasVendor(vendorID) {
			continue
		}
		c.Total++
		switch o.Status {
		case orders.StatusPending:
			c.Pending++
		case orders.StatusProcessing:
			c.Processing++
		case orders.StatusShipped:
			c.Shipped++
		case orders.StatusDelivered:
			c.Delivered++
		}
	}
	return c, nil
}

func (s *Store) VendorSales(_ context.Context, vendorID string) (vendors.Sales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sales vendors.Sales
	for _, o := range s.orders {
		if o.Status == orders.StatusCancelled {
			continue
		}
		for _, it := range o.Items {
			if it.VendorID == vendorID {
				sales.UnitsSold += int64(it.Quantity)
				sales.Revenue += it.Total
			}
		}
	}
	sales.Total = sales.Revenue
	return sales, nil
}

func (s *Store) VendorDailySales(_ context.Context, vendorID string, r vendors.Range) ([]vendors.DailySales, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byDay := map[string]*vendors.DailySales{}
	for _, o := range s.orders {
		if o.Status == orders.StatusCancelled || !o.HasVendor(vendorID) || !r.Contains(o.CreatedAt) {
			continue
		}
		day := o.CreatedAt.UTC().Format(time.DateOnly)
		d, ok := byDay[day]
		if !ok {
			d = &vendors.DailySales{Date: day}
			byDay[day] = d
		}
		d.Orders++
		for _, it := range o.Items {
			if it.VendorID == vendorID {
				d.Sales += it.Total
			}
		}
	}
	out := make([]vendors.DailySales, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *Store) VendorTopProducts(_ context.Context, vendorID string, r vendors.Range, limit int) ([]vendors.TopProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := map[string]*vendors.TopProduct{}
	for _, o := range s.orders {
		if o.Status == orders.StatusCancelled || !r.Contains(o.CreatedAt) {
			continue
		}
		for _, it := range o.Items {
			if it.VendorID != vendorID {
				continue
			}
			t, ok := byID[it.ProductID]
			if !ok {
				t = &vendors.TopProduct{ProductID: it.ProductID, ProductName: it.Name}
				byID[it.ProductID] = t
			}
			t.TotalSold += it.Quantity
			t.Revenue += it.Total
		}
	}
	out := make([]vendors.TopProduct, 0, len(byID))
	for _, t := range byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSold != out[j].TotalSold {
			return out[i].TotalSold > out[j].TotalSold
		}
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].ProductID < out[j].ProductID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) VendorEarnings(_ context.Context, vendorID string, from, to time.Time) (payouts.Earnings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := payouts.Earnings{OrderIDs: []string{}}
	claimed := s.claimedOrders(vendorID)
	list := s.sortedOrders()
	for i := len(list) - 1; i >= 0; i-- {
		o := list[i]
		if o.Status != orders.StatusDelivered || o.CreatedAt.Before(from) || o.CreatedAt.After(to) || claimed[o.ID] {
			continue
		}
		var sum int64
		found := false
		for _, it := range o.Items {
			if it.VendorID == vendorID {
				sum += it.Total
				found = true
			}
		}
		if found {
			e.Gross += sum
			e.OrderIDs = append(e.OrderIDs, o.ID)
		}
	}
	return e, nil
}
