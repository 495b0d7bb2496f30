package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/users"
	"go.uber.org/zap"
)

type Service struct {
	Users    users.Store
	Sessions SessionStore
	Tokens   *Issuer
	Log      *zap.Logger
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type RegisterInput struct {
	Email         string
	Password      string
	FirstName     string
	LastName      string
	Phone         string
	Role          users.Role
	VendorProfile *users.VendorProfile
}

// Session is what register, login and refresh hand back to the client.
type Session struct {
	User users.User `json:"user"`
	TokenPair
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := users.NormalizeEmail(in.Email)
	fields := map[string]string{}
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		fields["email"] = "must be a valid email address"
	}
	if err := CheckPasswordPolicy(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if strings.TrimSpace(in.FirstName) == "" {
		fields["firstName"] = "is required"
	}
	if strings.TrimSpace(in.LastName) == "" {
		fields["lastName"] = "is required"
	}
	role := in.Role
	if role == "" {
		role = users.RoleCustomer
	}
	if role == users.RoleAdmin || !role.Valid() {
		fields["role"] = "must be customer or vendor"
	}
	if len(fields) > 0 {
		return Session{}, apperr.Fields("invalid registration", fields)
	}

	if _, err := s.Users.GetUserByEmail(ctx, email); err == nil {
		return Session{}, apperr.Conflict("user with email %s already exists", email)
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return Session{}, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	u := users.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if role == users.RoleVendor && in.VendorProfile != nil {
		vp := *in.VendorProfile
		vp.CommissionRate = users.DefaultCommissionRate
		vp.IsApproved = false
		vp.Rating = 0
		vp.TotalSales = 0
		vp.JoinedDate = now
		u.VendorProfile = &vp
	}
	// the unique index still guards the race between lookup and insert
	if err := s.Users.CreateUser(ctx, &u); err != nil {
		return Session{}, err
	}
	s.logInfo("user registered", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return s.issue(ctx, u)
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	u, err := s.Users.GetUserByEmail(ctx, users.NormalizeEmail(email))
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return Session{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return Session{}, apperr.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		return Session{}, apperr.Unauthorized("account is deactivated")
	}
	return s.issue(ctx, u)
}

// Refresh rotates the pair. Only the most recently issued refresh token is
// accepted; reusing an older one fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.Tokens.ParseRefresh(refreshToken)
	if err != nil {
		return Session{}, apperr.Unauthorized("invalid refresh token")
	}
	current, err := s.Sessions.CurrentRefresh(ctx, claims.Subject)
	if err != nil {
		return Session{}, err
	}
	if current == "" || current != claims.ID {
		return Session{}, apperr.Unauthorized("invalid refresh token")
	}
	u, err := s.Users.GetUser(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return Session{}, apperr.Unauthorized("invalid refresh token")
	}
	if err != nil {
		return Session{}, err
	}
	if !u.IsActive {
		return Session{}, apperr.Unauthorized("account is deactivated")
	}
	return s.issue(ctx, u)
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	return s.Sessions.DeleteRefresh(ctx, userID)
}

// Authenticate resolves a bearer access token to an active user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (users.User, error) {
	if accessToken == "" {
		return users.User{}, apperr.Unauthorized("missing access token")
	}
	claims, err := s.Tokens.ParseAccess(accessToken)
	if err != nil {
		return users.User{}, apperr.Unauthorized("invalid or expired access token")
	}
	u, err := s.Users.GetUser(ctx, claims.Subject)
	if errors.Is(err, apperr.ErrNotFound) {
		return users.User{}, apperr.Unauthorized("user no longer exists")
	}
	if err != nil {
		return users.User{}, err
	}
	if !u.IsActive {
		return users.User{}, apperr.Unauthorized("account is deactivated")
	}
	return u, nil
}

func (s *Service) issue(ctx context.Context, u users.User) (Session, error) {
	pair, refreshID, err := s.Tokens.Issue(u)
	if err != nil {
		return Session{}, err
	}
	if err := s.Sessions.SaveRefresh(ctx, u.ID, refreshID, s.Tokens.RefreshTTL()); err != nil {
		return Session{}, err
	}
	return Session{User: u, TokenPair: pair}, nil
}

func (s *Service) logInfo(msg string, fields ...zap.Field) {
	if s.Log != nil {
		s.Log.Info(msg, fields...)
	}
}
