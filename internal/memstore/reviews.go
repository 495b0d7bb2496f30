package memstore

import (
	"context"
	"math"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/reviews"
)

func reviewKey(productID, userID string) string { return productID + "|" + userID }

func (s *Store) CreateReview(_ context.Context, r *reviews.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := reviewKey(r.ProductID, r.UserID)
	if _, ok := s.reviewed[key]; ok {
		return apperr.Conflict("you have already reviewed this product")
	}
	s.reviews[r.ID] = cloneReview(*r)
	s.reviewed[key] = r.ID
	s.revSeq = append(s.revSeq, r.ID)
	return nil
}

func (s *Store) GetReview(_ context.Context, id string) (reviews.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return reviews.Review{}, apperr.NotFound("review not found")
	}
	return cloneReview(r), nil
}

func (s *Store) ListReviews(_ context.Context, productID string, p paging.Page) ([]reviews.Review, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := newestFirst(s.revSeq, func(id string) (reviews.Review, bool) {
		r, ok := s.reviews[id]
		return r, ok
	}, func(r reviews.Review) time.Time { return r.CreatedAt })
	var match []reviews.Review
	for _, r := range all {
		if r.ProductID == productID && r.IsApproved {
			match = append(match, cloneReview(r))
		}
	}
	return paging.Slice(match, p), len(match), nil
}

func (s *Store) UpdateReview(_ context.Context, r reviews.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.reviews[r.ID]
	if !ok {
		return apperr.NotFound("review not found")
	}
	r.ProductID, r.UserID, r.CreatedAt = old.ProductID, old.UserID, old.CreatedAt
	s.reviews[r.ID] = cloneReview(r)
	return nil
}

// ReviewSummary averages approved ratings to one decimal.
func (s *Store) ReviewSummary(_ context.Context, productID string) (reviews.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum reviews.Summary
	total := 0
	for _, r := range s.reviews {
		if r.ProductID == productID && r.IsApproved {
			sum.Count++
			total += r.Rating
		}
	}
	if sum.Count > 0 {
		sum.Average = math.Round(float64(total)/float64(sum.Count)*10) / 10
	}
	return sum, nil
}

func (s *Store) CountReviewsForUser(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reviews {
		if r.UserID == userID {
			n++
		}
	}
	return n, nil
}
