package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/users"
	"go.uber.org/zap"
)

type ProductStore interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, f ProductFilter, p paging.Page) ([]Product, int, error)
	UpdateProduct(ctx context.Context, p Product) error
	CountProducts(ctx context.Context, vendorID string) (ProductCounts, error)
}

type CategoryStore interface {
	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context, parentID *string, activeOnly bool) ([]Category, error)
}

type Service struct {
	Products    ProductStore
	Categories  CategoryStore
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

// ProductInput is used for create (every required field set) and update
// (nil fields left untouched).
type ProductInput struct {
	CategoryID        *string
	SubcategoryID     *string
	Name              *string
	Description       *string
	ShortDescription  *string
	Price             *int64
	OriginalPrice     *int64
	Discount          *int
	Images            []string
	MainImage         *string
	SKU               *string
	Stock             *int
	LowStockThreshold *int
	Attributes        []Attribute
	Tags              []string
	IsFeatured        *bool
	IsActive          *bool
	Weight            *float64
	Dimensions        *Dimensions
	SEO               *SEO
}

// ---- public catalogue ----

func (s *Service) ListPublic(ctx context.Context, f ProductFilter, page, limit int) ([]Product, paging.Info, error) {
	f.ActiveOnly = true
	f.Status = ""
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, paging.Info{}, apperr.Validation("minPrice must not exceed maxPrice")
	}
	switch f.Sort {
	case "", SortNewest, SortPriceAsc, SortPriceDesc, SortRating, SortPopular:
	default:
		return nil, paging.Info{}, apperr.Validation("unknown sort %q", f.Sort)
	}
	p := paging.New(page, limit, 12)
	list, total, err := s.Products.ListProducts(ctx, f, p)
	if err != nil {
		return nil, paging.Info{}, err
	}
	return list, p.Info(total), nil
}

// GetPublic hides soft-deleted products.
func (s *Service) GetPublic(ctx context.Context, id string) (Product, error) {
	p, err := s.Products.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !p.IsActive {
		return Product{}, apperr.NotFound("product %s not found", id)
	}
	return p, nil
}

// ---- vendor catalogue ----

func (s *Service) Create(ctx context.Context, vendorID string, in ProductInput) (Product, error) {
	fields := map[string]string{}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		fields["name"] = "is required"
	}
	if in.Description == nil || strings.TrimSpace(*in.Description) == "" {
		fields["description"] = "is required"
	}
	if in.CategoryID == nil || *in.CategoryID == "" {
		fields["categoryId"] = "is required"
	}
	if in.SKU == nil || strings.TrimSpace(*in.SKU) == "" {
		fields["sku"] = "is required"
	}
	if in.Price == nil {
		fields["price"] = "is required"
	}
	if in.Stock == nil {
		fields["stock"] = "is required"
	}
	checkNumbers(in, fields)
	if len(fields) > 0 {
		return Product{}, apperr.Fields("invalid product", fields)
	}
	if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
		return Product{}, err
	}

	now := s.now()
	p := Product{
		ID:                uuid.NewString(),
		VendorID:          vendorID,
		Currency:          DefaultCurrency,
		LowStockThreshold: DefaultLowStockThreshold,
		Images:            []string{},
		Attributes:        []Attribute{},
		Tags:              []string{},
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	apply(&p, in)
	if err := s.Products.CreateProduct(ctx, &p); err != nil {
		return Product{}, err
	}
	s.logInfo("product created", zap.String("product_id", p.ID), zap.String("vendor_id", vendorID), zap.String("sku", p.SKU))
	s.notifyLowStock(ctx, p)
	return p, nil
}

type VendorListInput struct {
	Search string
	Status StockStatus
	Page   int
	Limit  int
}

func (s *Service) ListForVendor(ctx context.Context, vendorID string, in VendorListInput) ([]Product, paging.Info, error) {
	if !in.Status.Valid() {
		return nil, paging.Info{}, apperr.Validation("unknown status %q", in.Status)
	}
	p := paging.New(in.Page, in.Limit, 10)
	f := ProductFilter{VendorID: vendorID, Search: in.Search, Status: in.Status, Sort: SortNewest}
	list, total, err := s.Products.ListProducts(ctx, f, p)
	if err != nil {
		return nil, paging.Info{}, err
	}
	return list, p.Info(total), nil
}

// GetForVendor returns not-found for products of other vendors.
func (s *Service) GetForVendor(ctx context.Context, vendorID, id string) (Product, error) {
	p, err := s.Products.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if p.VendorID != vendorID {
		return Product{}, apperr.NotFound("product %s not found", id)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, vendorID, id string, in ProductInput) (Product, error) {
	p, err := s.GetForVendor(ctx, vendorID, id)
	if err != nil {
		return Product{}, err
	}
	fields := map[string]string{}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		fields["name"] = "must not be empty"
	}
	if in.SKU != nil && strings.TrimSpace(*in.SKU) == "" {
		fields["sku"] = "must not be empty"
	}
	checkNumbers(in, fields)
	if len(fields) > 0 {
		return Product{}, apperr.Fields("invalid product", fields)
	}
	if in.CategoryID != nil && *in.CategoryID != p.CategoryID {
		if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
			return Product{}, err
		}
	}
	apply(&p, in)
	p.UpdatedAt = s.now()
	if err := s.Products.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.notifyLowStock(ctx, p)
	return p, nil
}

// Delete is a soft delete.
func (s *Service) Delete(ctx context.Context, vendorID, id string) error {
	p, err := s.GetForVendor(ctx, vendorID, id)
	if err != nil {
		return err
	}
	p.IsActive = false
	p.UpdatedAt = s.now()
	return s.Products.UpdateProduct(ctx, p)
}

func (s *Service) UpdateStock(ctx context.Context, vendorID, id string, stock int) (Product, error) {
	if stock < 0 {
		return Product{}, apperr.Fields("invalid stock", map[string]string{"stock": "must be 0 or more"})
	}
	p, err := s.GetForVendor(ctx, vendorID, id)
	if err != nil {
		return Product{}, err
	}
	p.Stock = stock
	p.UpdatedAt = s.now()
	if err := s.Products.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.notifyLowStock(ctx, p)
	return p, nil
}

func (s *Service) Counts(ctx context.Context, vendorID string) (ProductCounts, error) {
	return s.Products.CountProducts(ctx, vendorID)
}

// ---- categories ----

func (s *Service) ListCategories(ctx context.Context, parentID *string) ([]Category, error) {
	return s.Categories.ListCategories(ctx, parentID, true)
}

func (s *Service) GetCategory(ctx context.Context, id string) (Category, error) {
	return s.Categories.GetCategory(ctx, id)
}

type CategoryInput struct {
	Name        string
	Description string
	ParentID    string
	Image       string
	Icon        string
	Order       int
}

func (s *Service) CreateCategory(ctx context.Context, actor users.Actor, in CategoryInput) (Category, error) {
	if !actor.IsAdmin() {
		return Category{}, apperr.Forbidden("admin role required")
	}
	name := strings.TrimSpace(in.Name)
	slug := Slugify(name)
	if slug == "" {
		return Category{}, apperr.Fields("invalid category", map[string]string{"name": "is required"})
	}
	if in.ParentID != "" {
		if _, err := s.Categories.GetCategory(ctx, in.ParentID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				return Category{}, apperr.Validation("parent category %s does not exist", in.ParentID)
			}
			return Category{}, err
		}
	}
	now := s.now()
	c := Category{
		ID:          uuid.NewString(),
		Name:        name,
		Slug:        slug,
		Description: in.Description,
		ParentID:    in.ParentID,
		Image:       in.Image,
		Icon:        in.Icon,
		Order:       in.Order,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Categories.CreateCategory(ctx, &c); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (s *Service) checkCategory(ctx context.Context, id string) error {
	c, err := s.Categories.GetCategory(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && !c.IsActive) {
		return apperr.Fields("invalid product", map[string]string{"categoryId": "unknown category"})
	}
	return err
}

func checkNumbers(in ProductInput, fields map[string]string) {
	if in.Price != nil && *in.Price < 0 {
		fields["price"] = "must be 0 or more"
	}
	if in.OriginalPrice != nil && *in.OriginalPrice < 0 {
		fields["originalPrice"] = "must be 0 or more"
	}
	if in.Discount != nil && (*in.Discount < 0 || *in.Discount > 100) {
		fields["discount"] = "must be between 0 and 100"
	}
	if in.Stock != nil && *in.Stock < 0 {
		fields["stock"] = "must be 0 or more"
	}
	if in.LowStockThreshold != nil && *in.LowStockThreshold < 0 {
		fields["lowStockThreshold"] = "must be 0 or more"
	}
}

func apply(p *Product, in ProductInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
		p.Slug = Slugify(p.Name)
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
	if in.SubcategoryID != nil {
		p.SubcategoryID = *in.SubcategoryID
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.ShortDescription != nil {
		p.ShortDescription = *in.ShortDescription
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.OriginalPrice != nil {
		p.OriginalPrice = *in.OriginalPrice
	}
	if in.Discount != nil {
		p.Discount = *in.Discount
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	if in.MainImage != nil {
		p.MainImage = *in.MainImage
	}
	if p.MainImage == "" && len(p.Images) > 0 {
		p.MainImage = p.Images[0]
	}
	if in.SKU != nil {
		p.SKU = strings.TrimSpace(*in.SKU)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.LowStockThreshold != nil {
		p.LowStockThreshold = *in.LowStockThreshold
	}
	if in.Attributes != nil {
		p.Attributes = in.Attributes
	}
	if in.Tags != nil {
		p.Tags = in.Tags
	}
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if in.Weight != nil {
		p.Weight = *in.Weight
	}
	if in.Dimensions != nil {
		p.Dimensions = in.Dimensions
	}
	if in.SEO != nil {
		p.SEO = in.SEO
	}
}

// notifyLowStock publishes a stock.low event when p sits at or under its
// threshold. Publishing never fails the caller.
func (s *Service) notifyLowStock(ctx context.Context, p Product) {
	if s.Events == nil || !p.IsActive || p.Stock > p.LowStockThreshold {
		return
	}
	PublishLowStock(ctx, s.Events, s.ServiceName, s.Log, []Product{p})
}

// PublishLowStock emits one stock.low event per product.
func PublishLowStock(ctx context.Context, pub events.Publisher, producer string, log *zap.Logger, products []Product) {
	for _, p := range products {
		env, err := events.NewEnvelope(events.EventStockLow, producer, p.ID, events.TraceFrom(ctx), events.StockLowPayload{
			ProductID: p.ID,
			VendorID:  p.VendorID,
			Name:      p.Name,
			SKU:       p.SKU,
			Stock:     p.Stock,
			Threshold: p.LowStockThreshold,
		})
		if err == nil {
			err = pub.Publish(ctx, events.TopicStockLow, env)
		}
		if err != nil && log != nil {
			log.Warn("publish stock.low", zap.String("product_id", p.ID), zap.Error(err))
		}
	}
}

func (s *Service) logInfo(msg string, fields ...zap.Field) {
	if s.Log != nil {
		s.Log.Info(msg, fields...)
	}
}
