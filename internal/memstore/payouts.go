package memstore

import (
	"context"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/payouts"
)

func (s *Store) CreatePayout(_ context.Context, p *payouts.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	claimed := s.claimedOrders(p.VendorID)
	for _, id := range p.Orders {
		if claimed[id] {
			return apperr.Conflict("some of these orders are already part of a payout")
		}
	}
	s.payouts[p.ID] = clonePayout(*p)
	s.paySeq = append(s.paySeq, p.ID)
	return nil
}

func (s *Store) GetPayout(_ context.Context, id string) (payouts.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payouts[id]
	if !ok {
		return payouts.Payout{}, apperr.NotFound("payout not found")
	}
	return clonePayout(p), nil
}

func (s *Store) ListPayouts(_ context.Context, vendorID string, pg paging.Page) ([]payouts.Payout, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := newestFirst(s.paySeq, func(id string) (payouts.Payout, bool) {
		p, ok := s.payouts[id]
		return p, ok
	}, func(p payouts.Payout) time.Time { return p.CreatedAt })
	var match []payouts.Payout
	for _, p := range all {
		if p.VendorID == vendorID {
			match = append(match, clonePayout(p))
		}
	}
	return paging.Slice(match, pg), len(match), nil
}

func (s *Store) UpdatePayout(_ context.Context, p payouts.Payout) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.payouts[p.ID]
	if !ok {
		return apperr.NotFound("payout not found")
	}
	p.VendorID, p.Amount, p.CreatedAt = old.VendorID, old.Amount, old.CreatedAt
	s.payouts[p.ID] = clonePayout(p)
	return nil
}

// claimedOrders lists order ids held by the vendor's payouts that have not
// failed. Callers hold s.mu.
func (s *Store) claimedOrders(vendorID string) map[string]bool {
	claimed := map[string]bool{}
	for _, p := range s.payouts {
		if p.VendorID != vendorID || p.Status == payouts.StatusFailed {
			continue
		}
		for _, id := range p.Orders {
			claimed[id] = true
		}
	}
	return claimed
}
