package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/users"
)

type UsersHandler struct {
	Users *users.Service
}

type updateUserReq struct {
	FirstName *string `json:"firstName" validate:"omitempty,max=50"`
	LastName  *string `json:"lastName" validate:"omitempty,max=50"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Avatar    *string `json:"avatar" validate:"omitempty,max=500"`
}

func (h *UsersHandler) Register(r chi.Router) {
	r.Route("/users", func(ur chi.Router) {
		ur.With(requireRole(users.RoleAdmin)).Get("/", h.list)
		ur.Get("/{id}", h.get)
		ur.Put("/{id}", h.update)
		ur.Delete("/{id}", h.deactivate)
		ur.Get("/{id}/stats", h.stats)
	})
}

func (h *UsersHandler) list(w http.ResponseWriter, r *http.Request) {
	page, limit, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	f := users.Filter{
		Role:   users.Role(r.URL.Query().Get("role")),
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  limit,
	}
	list, info, err := h.Users.List(ctx, actorOf(r), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listBody("users", list, info))
}

func (h *UsersHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	u, err := h.Users.Get(ctx, actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) update(w http.ResponseWriter, r *http.Request) {
	var req updateUserReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	u, err := h.Users.Update(ctx, actorOf(r), chi.URLParam(r, "id"), users.UpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Avatar:    req.Avatar,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *UsersHandler) deactivate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	if err := h.Users.Deactivate(ctx, actorOf(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "user deactivated"})
}

func (h *UsersHandler) stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	u, st, err := h.Users.Stats(ctx, actorOf(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "stats": st})
}
