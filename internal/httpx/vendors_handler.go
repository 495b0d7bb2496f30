package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/reviews"
	"github.com/kmercart/kmercart-api/internal/vendors"
)

// VendorsHandler serves /vendors. Every route runs for a vendor account;
// all but the profile need the vendor profile to exist.
type VendorsHandler struct {
	Vendors *vendors.Service
	Catalog *catalog.Service
	Orders  *orders.Service
	Reviews *reviews.Service
	Payouts *payouts.Service
}

type addressPatchReq struct {
	Street  *string `json:"street" validate:"omitempty,max=200"`
	City    *string `json:"city" validate:"omitempty,max=100"`
	State   *string `json:"state" validate:"omitempty,max=100"`
	ZipCode *string `json:"zipCode" validate:"omitempty,max=20"`
	Country *string `json:"country" validate:"omitempty,max=100"`
}

type bankAccountPatchReq struct {
	AccountNumber     *string `json:"accountNumber" validate:"omitempty,max=50"`
	RoutingNumber     *string `json:"routingNumber" validate:"omitempty,max=50"`
	AccountHolderName *string `json:"accountHolderName" validate:"omitempty,max=100"`
}

type updateProfileReq struct {
	BusinessName        *string              `json:"businessName" validate:"omitempty,max=100"`
	BusinessDescription *string              `json:"businessDescription" validate:"omitempty,max=1000"`
	BusinessAddress     *addressPatchReq     `json:"businessAddress"`
	TaxID               *string              `json:"taxId" validate:"omitempty,max=50"`
	BankAccount         *bankAccountPatchReq `json:"bankAccount"`
}

func (req updateProfileReq) input() vendors.ProfileInput {
	in := vendors.ProfileInput{
		BusinessName:        req.BusinessName,
		BusinessDescription: req.BusinessDescription,
		TaxID:               req.TaxID,
	}
	if a := req.BusinessAddress; a != nil {
		in.BusinessAddress = &vendors.AddressPatch{
			Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode, Country: a.Country,
		}
	}
	if b := req.BankAccount; b != nil {
		in.BankAccount = &vendors.BankAccountPatch{
			AccountNumber: b.AccountNumber, RoutingNumber: b.RoutingNumber, AccountHolderName: b.AccountHolderName,
		}
	}
	return in
}

type productReq struct {
	CategoryID        *string             `json:"categoryId"`
	SubcategoryID     *string             `json:"subcategoryId"`
	Name              *string             `json:"name" validate:"omitempty,max=200"`
	Description       *string             `json:"description" validate:"omitempty,max=5000"`
	ShortDescription  *string             `json:"shortDescription" validate:"omitempty,max=500"`
	Price             *int64              `json:"price" validate:"omitempty,gte=0"`
	OriginalPrice     *int64              `json:"originalPrice" validate:"omitempty,gte=0"`
	Discount          *int                `json:"discount" validate:"omitempty,gte=0,lte=100"`
	Images            []string            `json:"images" validate:"max=10,dive,max=500"`
	MainImage         *string             `json:"mainImage" validate:"omitempty,max=500"`
	SKU               *string             `json:"sku" validate:"omitempty,max=100"`
	Stock             *int                `json:"stock" validate:"omitempty,gte=0"`
	LowStockThreshold *int                `json:"lowStockThreshold" validate:"omitempty,gte=0"`
	Attributes        []catalog.Attribute `json:"attributes"`
	Tags              []string            `json:"tags" validate:"max=20,dive,max=50"`
	IsFeatured        *bool               `json:"isFeatured"`
	IsActive          *bool               `json:"isActive"`
	Weight            *float64            `json:"weight" validate:"omitempty,gte=0"`
	Dimensions        *catalog.Dimensions `json:"dimensions"`
	SEO               *catalog.SEO        `json:"seo"`
}

func (req productReq) input() catalog.ProductInput {
	return catalog.ProductInput{
		CategoryID:        req.CategoryID,
		SubcategoryID:     req.SubcategoryID,
		Name:              req.Name,
		Description:       req.Description,
		ShortDescription:  req.ShortDescription,
		Price:             req.Price,
		OriginalPrice:     req.OriginalPrice,
		Discount:          req.Discount,
		Images:            req.Images,
		MainImage:         req.MainImage,
		SKU:               req.SKU,
		Stock:             req.Stock,
		LowStockThreshold: req.LowStockThreshold,
		Attributes:        req.Attributes,
		Tags:              req.Tags,
		IsFeatured:        req.IsFeatured,
		IsActive:          req.IsActive,
		Weight:            req.Weight,
		Dimensions:        req.Dimensions,
		SEO:               req.SEO,
	}
}

type stockReq struct {
	Stock *int `json:"stock" validate:"required,gte=0"`
}

type vendorOrderStatusReq struct {
	Status         orders.Status `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled"`
	TrackingNumber string        `json:"trackingNumber" validate:"max=100"`
	Note           string        `json:"note" validate:"max=500"`
}

type reviewResponseReq struct {
	Comment string `json:"comment" validate:"required,max=1000"`
}

type payoutReq struct {
	PeriodStart   string `json:"periodStart" validate:"required"`
	PeriodEnd     string `json:"periodEnd" validate:"required"`
	PaymentMethod string `json:"paymentMethod" validate:"max=50"`
	Notes         string `json:"notes" validate:"max=500"`
}

func (h *VendorsHandler) Register(r chi.Router) {
	r.Get("/profile", h.getProfile)
	r.Put("/profile", h.updateProfile)

	r.Group(func(vr chi.Router) {
		vr.Use(requireVendorProfile)

		vr.Get("/dashboard/stats", h.dashboard)
		vr.Get("/analytics/sales", h.salesAnalytics)

		vr.Post("/products", h.createProduct)
		vr.Get("/products", h.listProducts)
		vr.Get("/products/{id}", h.getProduct)
		vr.Put("/products/{id}", h.updateProduct)
		vr.Delete("/products/{id}", h.deleteProduct)
		vr.Patch("/products/{id}/stock", h.updateStock)

		vr.Get("/orders", h.listOrders)
		vr.Get("/orders/{id}", h.getOrder)
		vr.Patch("/orders/{id}/status", h.updateOrderStatus)

		vr.Post("/reviews/{id}/response", h.respondToReview)

		vr.Get("/payouts", h.listPayouts)
		vr.Post("/payouts", h.requestPayout)
	})
}

func vendorID(r *http.Request) string { return currentUser(r).ID }

// ---- profile ----

func (h *VendorsHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	u, err := h.Vendors.Profile(ctx, vendorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *VendorsHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	u, err := h.Vendors.UpdateProfile(ctx, vendorID(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ---- dashboard ----

func (h *VendorsHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	d, err := h.Vendors.Dashboard(ctx, vendorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *VendorsHandler) salesAnalytics(w http.ResponseWriter, r *http.Request) {
	var rng vendors.Range
	var err error
	if rng.From, err = queryTimePtr(r, "startDate"); err != nil {
		writeError(w, r, err)
		return
	}
	if rng.To, err = queryTimePtr(r, "endDate"); err != nil {
		writeError(w, r, err)
		return
	}
	// a bare end date covers that whole day
	if rng.To != nil && len(r.URL.Query().Get("endDate")) == len(time.DateOnly) {
		end := rng.To.Add(24*time.Hour - time.Nanosecond)
		rng.To = &end
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	a, err := h.Vendors.SalesAnalytics(ctx, vendorID(r), rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ---- products ----

func (h *VendorsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	p, err := h.Catalog.Create(ctx, vendorID(r), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *VendorsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, info, err := h.Catalog.ListForVendor(ctx, vendorID(r), catalog.VendorListInput{
		Search: r.URL.Query().Get("search"),
		Status: catalog.StockStatus(r.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody("products", list, info))
}

func (h *VendorsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	p, err := h.Catalog.GetForVendor(ctx, vendorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *VendorsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	p, err := h.Catalog.Update(ctx, vendorID(r), chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *VendorsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	if err := h.Catalog.Delete(ctx, vendorID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "product deleted successfully"})
}

func (h *VendorsHandler) updateStock(w http.ResponseWriter, r *http.Request) {
	var req stockReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	p, err := h.Catalog.UpdateStock(ctx, vendorID(r), chi.URLParam(r, "id"), *req.Stock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ---- orders ----

func (h *VendorsHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, info, err := h.Orders.ListForVendor(ctx, vendorID(r), orders.ListInput{
		Status: orders.Status(r.URL.Query().Get("status")),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody("orders", list, info))
}

func (h *VendorsHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	o, err := h.Orders.GetForVendor(ctx, vendorID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *VendorsHandler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req vendorOrderStatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	o, err := h.Orders.UpdateStatusByVendor(ctx, vendorID(r), chi.URLParam(r, "id"), orders.StatusUpdate{
		Status:         req.Status,
		TrackingNumber: req.TrackingNumber,
		Note:           req.Note,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// ---- reviews ----

func (h *VendorsHandler) respondToReview(w http.ResponseWriter, r *http.Request) {
	var req reviewResponseReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	rev, err := h.Reviews.Respond(ctx, vendorID(r), chi.URLParam(r, "id"), req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

// ---- payouts ----

func (h *VendorsHandler) listPayouts(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, info, err := h.Payouts.List(ctx, vendorID(r), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody("payouts", list, info))
}

func (h *VendorsHandler) requestPayout(w http.ResponseWriter, r *http.Request) {
	var req payoutReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	start, err1 := parseTime(req.PeriodStart)
	end, err2 := parseTime(req.PeriodEnd)
	if err1 != nil || err2 != nil {
		writeError(w, r, apperr.Fields("invalid payout request", map[string]string{"period": "periodStart and periodEnd must be dates"}))
		return
	}
	if len(req.PeriodEnd) == len(time.DateOnly) {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	p, err := h.Payouts.Request(ctx, vendorID(r), payouts.RequestInput{
		PeriodStart:   start,
		PeriodEnd:     end,
		PaymentMethod: req.PaymentMethod,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}
