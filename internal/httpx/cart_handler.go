package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/cart"
)

type CartHandler struct {
	Cart *cart.Service
}

type addItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

type updateItemReq struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type syncItemReq struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=1"`
}

type syncCartReq struct {
	Items []syncItemReq `json:"items" validate:"dive"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", h.get)
		cr.Delete("/", h.clear)
		cr.Get("/total", h.totals)
		cr.Post("/items", h.addItem)
		cr.Put("/items/{productId}", h.updateItem)
		cr.Delete("/items/{productId}", h.removeItem)
		cr.Post("/sync", h.sync)
	})
}

func (h *CartHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	v, err := h.Cart.Get(ctx, currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) totals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	t, err := h.Cart.Totals(ctx, currentUser(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	var req addItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	v, err := h.Cart.AddItem(ctx, currentUser(r).ID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	v, err := h.Cart.UpdateItem(ctx, currentUser(r).ID, chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	v, err := h.Cart.RemoveItem(ctx, currentUser(r).ID, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	if err := h.Cart.Clear(ctx, currentUser(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "cart cleared"})
}

func (h *CartHandler) sync(w http.ResponseWriter, r *http.Request) {
	var req syncCartReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	items := make([]cart.SyncItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = cart.SyncItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	v, err := h.Cart.Sync(ctx, currentUser(r).ID, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
