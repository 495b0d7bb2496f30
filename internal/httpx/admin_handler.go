package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/users"
)

type AdminHandler struct {
	Users   *users.Service
	Payouts *payouts.Service
}

type approvalReq struct {
	Approved *bool `json:"approved" validate:"required"`
}

type payoutStatusReq struct {
	Status        payouts.Status `json:"status" validate:"required,oneof=processing completed failed"`
	TransactionID string         `json:"transactionId" validate:"max=200"`
	Notes         string         `json:"notes" validate:"max=500"`
}

func (h *AdminHandler) Register(r chi.Router) {
	r.Patch("/vendors/{id}/approval", h.approveVendor)
	r.Patch("/payouts/{id}", h.updatePayout)
}

func (h *AdminHandler) approveVendor(w http.ResponseWriter, r *http.Request) {
	var req approvalReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	u, err := h.Users.ApproveVendor(ctx, actorOf(r), chi.URLParam(r, "id"), *req.Approved)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *AdminHandler) updatePayout(w http.ResponseWriter, r *http.Request) {
	var req payoutStatusReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	p, err := h.Payouts.UpdateStatus(ctx, actorOf(r), chi.URLParam(r, "id"), payouts.StatusInput{
		Status:        req.Status,
		TransactionID: req.TransactionID,
		Notes:         req.Notes,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
