package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kmercart/kmercart-api/internal/auth"
	"github.com/kmercart/kmercart-api/internal/users"
)

type AuthHandler struct {
	Auth *auth.Service
}

type addressReq struct {
	Street  string `json:"street" validate:"max=200"`
	City    string `json:"city" validate:"max=100"`
	State   string `json:"state" validate:"max=100"`
	ZipCode string `json:"zipCode" validate:"max=20"`
	Country string `json:"country" validate:"max=100"`
}

type bankAccountReq struct {
	AccountNumber     string `json:"accountNumber" validate:"max=50"`
	RoutingNumber     string `json:"routingNumber" validate:"max=50"`
	AccountHolderName string `json:"accountHolderName" validate:"max=100"`
}

type vendorProfileReq struct {
	BusinessName        string          `json:"businessName" validate:"required,max=100"`
	BusinessDescription string          `json:"businessDescription" validate:"max=1000"`
	BusinessAddress     *addressReq     `json:"businessAddress"`
	TaxID               string          `json:"taxId" validate:"max=50"`
	BankAccount         *bankAccountReq `json:"bankAccount"`
}

type registerReq struct {
	Email         string            `json:"email" validate:"required,email"`
	Password      string            `json:"password" validate:"required,min=8"`
	FirstName     string            `json:"firstName" validate:"required,max=50"`
	LastName      string            `json:"lastName" validate:"required,max=50"`
	Phone         string            `json:"phone" validate:"max=20"`
	Role          users.Role        `json:"role" validate:"omitempty,oneof=customer vendor"`
	VendorProfile *vendorProfileReq `json:"vendorProfile"`
}

func (req registerReq) input() auth.RegisterInput {
	in := auth.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
	}
	if vp := req.VendorProfile; vp != nil {
		in.VendorProfile = &users.VendorProfile{
			BusinessName:        vp.BusinessName,
			BusinessDescription: vp.BusinessDescription,
			TaxID:               vp.TaxID,
		}
		if a := vp.BusinessAddress; a != nil {
			in.VendorProfile.BusinessAddress = &users.Address{
				Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode, Country: a.Country,
			}
		}
		if b := vp.BankAccount; b != nil {
			in.VendorProfile.BankAccount = &users.BankAccount{
				AccountNumber: b.AccountNumber, RoutingNumber: b.RoutingNumber, AccountHolderName: b.AccountHolderName,
			}
		}
	}
	return in
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

func (h *AuthHandler) Register(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/register", h.register)
		ar.Post("/login", h.login)
		ar.Post("/refresh", h.refresh)
		ar.With(authn).Post("/logout", h.logout)
		ar.With(authn).Get("/me", h.me)
	})
}

func (h *AuthHandler) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	sess, err := h.Auth.Register(ctx, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	sess, err := h.Auth.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshReq
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	sess, err := h.Auth.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), writeTimeout)
	defer cancel()

	if err := h.Auth.Logout(ctx, currentUser(r).ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "logged out successfully"})
}

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}
