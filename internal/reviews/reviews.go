package reviews

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/paging"
	"go.uber.org/zap"
)

type VendorResponse struct {
	Comment     string    `json:"comment"`
	RespondedAt time.Time `json:"respondedAt"`
}

type Review struct {
	ID                 string          `json:"_id"`
	ProductID          string          `json:"productId"`
	UserID             string          `json:"userId"`
	OrderID            string          `json:"orderId,omitempty"`
	Rating             int             `json:"rating"`
	Title              string          `json:"title"`
	Comment            string          `json:"comment"`
	Images             []string        `json:"images"`
	IsVerifiedPurchase bool            `json:"isVerifiedPurchase"`
	HelpfulCount       int             `json:"helpfulCount"`
	ReportCount        int             `json:"reportCount"`
	IsApproved         bool            `json:"isApproved"`
	VendorResponse     *VendorResponse `json:"vendorResponse,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// Summary is the rating aggregate of one product's approved reviews.
type Summary struct {
	Average float64
	Count   int
}

type Store interface {
	// CreateReview fails with a conflict when the user already reviewed
	// the product.
	CreateReview(ctx context.Context, r *Review) error
	GetReview(ctx context.Context, id string) (Review, error)
	ListReviews(ctx context.Context, productID string, p paging.Page) ([]Review, int, error)
	UpdateReview(ctx context.Context, r Review) error
	ReviewSummary(ctx context.Context, productID string) (Summary, error)
	CountReviewsForUser(ctx context.Context, userID string) (int, error)
}

type ProductStore interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	SetProductRating(ctx context.Context, productID string, rating float64, count int) error
}

type PurchaseChecker interface {
	DeliveredOrderWith(ctx context.Context, customerID, productID string) (string, error)
}

type Service struct {
	Store       Store
	Products    ProductStore
	Purchases   PurchaseChecker
	Events      events.Publisher
	ServiceName string
	Log         *zap.Logger
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type CreateInput struct {
	Rating  int
	Title   string
	Comment string
	Images  []string
}

func (s *Service) Create(ctx context.Context, userID, productID string, in CreateInput) (Review, error) {
	fields := map[string]string{}
	if in.Rating < 1 || in.Rating > 5 {
		fields["rating"] = "must be between 1 and 5"
	}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "is required"
	}
	if strings.TrimSpace(in.Comment) == "" {
		fields["comment"] = "is required"
	}
	if len(fields) > 0 {
		return Review{}, apperr.Fields("invalid review", fields)
	}
	p, err := s.Products.GetProduct(ctx, productID)
	if err != nil {
		return Review{}, err
	}
	if !p.IsActive {
		return Review{}, apperr.NotFound("product %s not found", productID)
	}
	if p.VendorID == userID {
		return Review{}, apperr.Forbidden("vendors cannot review their own products")
	}
	orderID, err := s.Purchases.DeliveredOrderWith(ctx, userID, productID)
	if err != nil {
		return Review{}, err
	}

	now := s.now()
	images := in.Images
	if images == nil {
		images = []string{}
	}
	r := Review{
		ID:                 uuid.NewString(),
		ProductID:          productID,
		UserID:             userID,
		OrderID:            orderID,
		Rating:             in.Rating,
		Title:              strings.TrimSpace(in.Title),
		Comment:            strings.TrimSpace(in.Comment),
		Images:             images,
		IsVerifiedPurchase: orderID != "",
		IsApproved:         true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.Store.CreateReview(ctx, &r); err != nil {
		return Review{}, err
	}
	if err := s.refreshRating(ctx, productID); err != nil {
		return Review{}, err
	}
	s.publishCreated(ctx, r, p)
	return r, nil
}

func (s *Service) ListForProduct(ctx context.Context, productID string, page, limit int) ([]Review, paging.Info, error) {
	p := paging.New(page, limit, 10)
	list, total, err := s.Store.ListReviews(ctx, productID, p)
	if err != nil {
		return nil, paging.Info{}, err
	}
	return list, p.Info(total), nil
}

// Respond attaches the vendor's answer to a review of one of its products.
func (s *Service) Respond(ctx context.Context, vendorID, reviewID, comment string) (Review, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return Review{}, apperr.Fields("invalid response", map[string]string{"comment": "is required"})
	}
	r, err := s.Store.GetReview(ctx, reviewID)
	if err != nil {
		return Review{}, err
	}
	p, err := s.Products.GetProduct(ctx, r.ProductID)
	if err != nil {
		return Review{}, err
	}
	if p.VendorID != vendorID {
		return Review{}, apperr.NotFound("review %s not found", reviewID)
	}
	now := s.now()
	r.VendorResponse = &VendorResponse{Comment: comment, RespondedAt: now}
	r.UpdatedAt = now
	if err := s.Store.UpdateReview(ctx, r); err != nil {
		return Review{}, err
	}
	return r, nil
}

func (s *Service) CountForUser(ctx context.Context, userID string) (int, error) {
	return s.Store.CountReviewsForUser(ctx, userID)
}

func (s *Service) refreshRating(ctx context.Context, productID string) error {
	sum, err := s.Store.ReviewSummary(ctx, productID)
	if err != nil {
		return err
	}
	return s.Products.SetProductRating(ctx, productID, sum.Average, sum.Count)
}

func (s *Service) publishCreated(ctx context.Context, r Review, p catalog.Product) {
	if s.Events == nil {
		return
	}
	env, err := events.NewEnvelope(events.EventReviewCreated, s.ServiceName, p.ID, events.TraceFrom(ctx), events.ReviewCreatedPayload{
		ReviewID:    r.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		VendorID:    p.VendorID,
		Rating:      r.Rating,
	})
	if err == nil {
		err = s.Events.Publish(ctx, events.TopicReviewCreated, env)
	}
	if err != nil && s.Log != nil {
		s.Log.Warn("publish review.created", zap.String("review_id", r.ID), zap.Error(err))
	}
}
