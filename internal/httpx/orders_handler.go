package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/users"
)

type OrdersHandler struct {
	Orders *orders.Service
}

type orderAddressReq struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Street   string `json:"street" validate:"required,max=200"`
	City     string `json:"city" validate:"required,max=100"`
	State    string `json:"state" validate:"required,max=100"`
	ZipCode  string `json:"zipCode" validate:"required,max=20"`
	Country  string `json:"country" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"max=20"`
}

func (a orderAddressReq) address() orders.Address {
	return orders.Address{
		FullName: a.FullName,
		Street:   a.Street,
		City:     a.City,
		State:    a.State,
		ZipCode:  a.ZipCode,
		Country:  a.Country,
		Phone:    a.Phone,
	}
}

type createOrderReq struct {
	PaymentMethod   string           `json:"paymentMethod" validate:"required,max=50"`
	PaymentIntentID string           `json:"paymentIntentId" validate:"max=200"`
	ShippingAddress orderAddressReq  `json:"shippingAddress" validate:"required"`
	BillingAddress  *orderAddressReq `json:"billingAddress"`
	ShippingCost    int64            `json:"shippingCost" validate:"gte=0"`
	Discount        int64            `json:"discount" validate:"gte=0"`
	Notes           string           `json:"notes" validate:"max=500"`
}

type cancelOrderReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

type orderStatusReq struct {
	Status         orders.Status `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	TrackingNumber string        `json:"trackingNumber" validate:"max=100"`
	Note           string        `json:"note" validate:"max=500"`
}

func (req orderStatusReq) update() orders.StatusUpdate {
	return orders.StatusUpdate{Status: req.Status, TrackingNumber: req.TrackingNumber, Note: req.Note}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/orders", func(or chi.Router) {
		or.Post("/", h.createOrder)
		or.Get("/", h.listOrders)
		or.Get("/{id}", h.getOrder)
		or.Patch("/{id}/cancel", h.cancelOrder)
		or.With(requireRole(users.RoleAdmin)).Patch("/{id}/status", h.updateStatus)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in := orders.CheckoutInput{
		PaymentMethod:   req.PaymentMethod,
		PaymentIntentID: req.PaymentIntentID,
		ShippingAddress: req.ShippingAddress.address(),
		ShippingCost:    req.ShippingCost,
		Discount:        req.Discount,
		Notes:           req.Notes,
	}
	if req.BillingAddress != nil {
		b := req.BillingAddress.address()
		in.BillingAddress = &b
	}

	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	o, err := h.Orders.Checkout(ctx, currentUser(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	list, info, err := h.Orders.ListMine(ctx, currentUser(r).ID, orders.ListInput{
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

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	o, err := h.Orders.Get(ctx, actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderReq
	// the body is optional here
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	o, err := h.Orders.Cancel(ctx, actorOf(r), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req orderStatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, actorOf(r), chi.URLParam(r, "id"), req.update())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
