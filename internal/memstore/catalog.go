package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/paging"
)

func (s *Store) CreateProduct(_ context.Context, p *catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.skus[p.SKU]; ok {
		return apperr.Conflict("a product with this SKU already exists")
	}
	s.products[p.ID] = cloneProduct(*p)
	s.skus[p.SKU] = p.ID
	s.prodSeq = append(s.prodSeq, p.ID)
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, apperr.NotFound("product not found")
	}
	return cloneProduct(p), nil
}

// UpdateProduct leaves rating, review count and sales counters alone.
func (s *Store) UpdateProduct(_ context.Context, p catalog.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.products[p.ID]
	if !ok {
		return apperr.NotFound("product not found")
	}
	if p.SKU != old.SKU {
		if id, taken := s.skus[p.SKU]; taken && id != p.ID {
			return apperr.Conflict("a product with this SKU already exists")
		}
		delete(s.skus, old.SKU)
		s.skus[p.SKU] = p.ID
	}
	p.VendorID = old.VendorID
	p.Rating, p.ReviewCount, p.TotalSales = old.Rating, old.ReviewCount, old.TotalSales
	p.CreatedAt = old.CreatedAt
	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *Store) SetProductRating(_ context.Context, productID string, rating float64, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return apperr.NotFound("product not found")
	}
	p.Rating, p.ReviewCount = rating, count
	s.products[productID] = p
	return nil
}

func productMatches(p catalog.Product, f catalog.ProductFilter) bool {
	if f.VendorID != "" && p.VendorID != f.VendorID {
		return false
	}
	if f.CategoryID != "" && p.CategoryID != f.CategoryID {
		return false
	}
	if f.ActiveOnly && !p.IsActive {
		return false
	}
	if f.MinPrice != nil && p.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.Price > *f.MaxPrice {
		return false
	}
	if f.Featured != nil && p.IsFeatured != *f.Featured {
		return false
	}
	if q := f.Search; q != "" {
		hit := containsFold(p.Name, q) || containsFold(p.Description, q) || containsFold(p.SKU, q)
		for _, t := range p.Tags {
			hit = hit || containsFold(t, q)
		}
		if !hit {
			return false
		}
	}
	return f.Status.Match(p)
}

func sortProducts(list []catalog.Product, by string) {
	var less func(a, b catalog.Product) bool
	switch by {
	case catalog.SortPriceAsc:
		less = func(a, b catalog.Product) bool { return a.Price < b.Price }
	case catalog.SortPriceDesc:
		less = func(a, b catalog.Product) bool { return a.Price > b.Price }
	case catalog.SortRating:
		less = func(a, b catalog.Product) bool {
			if a.Rating != b.Rating {
				return a.Rating > b.Rating
			}
			return a.ReviewCount > b.ReviewCount
		}
	case catalog.SortPopular:
		less = func(a, b catalog.Product) bool { return a.TotalSales > b.TotalSales }
	default:
		return
	}
	sort.SliceStable(list, func(i, j int) bool { return less(list[i], list[j]) })
}

func (s *Store) ListProducts(_ context.Context, f catalog.ProductFilter, p paging.Page) ([]catalog.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := newestFirst(s.prodSeq, func(id string) (catalog.Product, bool) {
		pr, ok := s.products[id]
		return pr, ok
	}, func(pr catalog.Product) time.Time { return pr.CreatedAt })
	var match []catalog.Product
	for _, pr := range all {
		if productMatches(pr, f) {
			match = append(match, cloneProduct(pr))
		}
	}
	sortProducts(match, f.Sort)
	return paging.Slice(match, p), len(match), nil
}

func (s *Store) CountProducts(_ context.Context, vendorID string) (catalog.ProductCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c catalog.ProductCounts
	for _, p := range s.products {
		if p.VendorID != vendorID {
			continue
		}
		c.Total++
		if p.IsActive {
			c.Active++
		}
		if p.IsLowStock() {
			c.LowStock++
		}
		if p.Stock == 0 {
			c.OutOfStock++
		}
	}
	return c, nil
}

// ---- categories ----

func (s *Store) CreateCategory(_ context.Context, c *catalog.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.slugs[c.Slug]; ok {
		return apperr.Conflict("a category with this name already exists")
	}
	s.cats[c.ID] = *c
	s.slugs[c.Slug] = c.ID
	s.catSeq = append(s.catSeq, c.ID)
	return nil
}

// productCount must be called with s.mu held.
func (s *Store) productCount(categoryID string) int {
	n := 0
	for _, p := range s.products {
		if p.CategoryID == categoryID && p.IsActive {
			n++
		}
	}
	return n
}

func (s *Store) GetCategory(_ context.Context, id string) (catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cats[id]
	if !ok {
		return catalog.Category{}, apperr.NotFound("category not found")
	}
	c.ProductCount = s.productCount(id)
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, parentID *string, activeOnly bool) ([]catalog.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []catalog.Category{}
	for _, id := range s.catSeq {
		c := s.cats[id]
		if parentID != nil && c.ParentID != *parentID {
			continue
		}
		if activeOnly && !c.IsActive {
			continue
		}
		c.ProductCount = s.productCount(id)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
