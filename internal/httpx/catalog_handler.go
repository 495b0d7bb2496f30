package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/reviews"
	"github.com/kmercart/kmercart-api/internal/users"
)

// CatalogHandler serves the public catalogue: products, their reviews and
// categories.
type CatalogHandler struct {
	Catalog *catalog.Service
	Reviews *reviews.Service
}

type createCategoryReq struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	ParentID    string `json:"parentId"`
	Image       string `json:"image" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=100"`
	Order       int    `json:"order" validate:"gte=0"`
}

type createReviewReq struct {
	Rating  int      `json:"rating" validate:"required,gte=1,lte=5"`
	Title   string   `json:"title" validate:"required,max=100"`
	Comment string   `json:"comment" validate:"required,max=1000"`
	Images  []string `json:"images" validate:"max=5,dive,max=500"`
}

func (h *CatalogHandler) Register(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.Get("/products/{id}/reviews", h.listReviews)
	r.With(authn).Post("/products/{id}/reviews", h.createReview)

	r.Get("/categories", h.listCategories)
	r.Get("/categories/{id}", h.getCategory)
	r.With(authn, requireRole(users.RoleAdmin)).Post("/categories", h.createCategory)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.ProductFilter{
		CategoryID: q.Get("categoryId"),
		VendorID:   q.Get("vendorId"),
		Search:     q.Get("search"),
		Sort:       q.Get("sort"),
	}
	var err error
	if f.MinPrice, err = queryInt64Ptr(r, "minPrice"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.MaxPrice, err = queryInt64Ptr(r, "maxPrice"); err != nil {
		writeError(w, r, err)
		return
	}
	if f.Featured, err = queryBoolPtr(r, "featured"); err != nil {
		writeError(w, r, err)
		return
	}
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, info, err := h.Catalog.ListPublic(ctx, f, page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody("products", list, info))
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	p, err := h.Catalog.GetPublic(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, info, err := h.Reviews.ListForProduct(ctx, chi.URLParam(r, "id"), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody("reviews", list, info))
}

func (h *CatalogHandler) createReview(w http.ResponseWriter, r *http.Request) {
	var req createReviewReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	rev, err := h.Reviews.Create(ctx, currentUser(r).ID, chi.URLParam(r, "id"), reviews.CreateInput{
		Rating:  req.Rating,
		Title:   req.Title,
		Comment: req.Comment,
		Images:  req.Images,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

func (h *CatalogHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	var parent *string
	if r.URL.Query().Has("parentId") {
		v := r.URL.Query().Get("parentId")
		parent = &v
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, err := h.Catalog.ListCategories(ctx, parent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CatalogHandler) getCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	c, err := h.Catalog.GetCategory(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CatalogHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	c, err := h.Catalog.CreateCategory(ctx, actorOf(r), catalog.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
		ParentID:    req.ParentID,
		Image:       req.Image,
		Icon:        req.Icon,
		Order:       req.Order,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
