package users

import (
	"context"
	"strings"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/paging"
)

type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context, f Filter, p paging.Page) ([]User, int, error)
	UpdateUser(ctx context.Context, u User) error
}

type OrderCounter interface {
	CountOrdersForCustomer(ctx context.Context, customerID string) (int, error)
}

type ReviewCounter interface {
	CountReviewsForUser(ctx context.Context, userID string) (int, error)
}

type Service struct {
	Store   Store
	Orders  OrderCounter
	Reviews ReviewCounter
	Now     func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type UpdateInput struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Avatar    *string
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (User, error) {
	if !actor.CanActOn(id) {
		return User{}, apperr.Forbidden("cannot access another user's account")
	}
	return s.Store.GetUser(ctx, id)
}

func (s *Service) List(ctx context.Context, actor Actor, f Filter) ([]User, paging.Info, error) {
	if !actor.IsAdmin() {
		return nil, paging.Info{}, apperr.Forbidden("admin role required")
	}
	if f.Role != "" && !f.Role.Valid() {
		return nil, paging.Info{}, apperr.Validation("unknown role %q", f.Role)
	}
	p := paging.New(f.Page, f.Limit, 20)
	list, total, err := s.Store.ListUsers(ctx, f, p)
	if err != nil {
		return nil, paging.Info{}, err
	}
	return list, p.Info(total), nil
}

func (s *Service) Update(ctx context.Context, actor Actor, id string, in UpdateInput) (User, error) {
	if !actor.CanActOn(id) {
		return User{}, apperr.Forbidden("cannot update another user's account")
	}
	u, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if in.FirstName != nil {
		v := strings.TrimSpace(*in.FirstName)
		if v == "" {
			return User{}, apperr.Fields("invalid profile", map[string]string{"firstName": "must not be empty"})
		}
		u.FirstName = v
	}
	if in.LastName != nil {
		v := strings.TrimSpace(*in.LastName)
		if v == "" {
			return User{}, apperr.Fields("invalid profile", map[string]string{"lastName": "must not be empty"})
		}
		u.LastName = v
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Avatar != nil {
		u.Avatar = strings.TrimSpace(*in.Avatar)
	}
	u.UpdatedAt = s.now()
	if err := s.Store.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Deactivate soft-deletes the account; the row stays for order history.
func (s *Service) Deactivate(ctx context.Context, actor Actor, id string) error {
	if !actor.CanActOn(id) {
		return apperr.Forbidden("cannot deactivate another user's account")
	}
	u, err := s.Store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return nil
	}
	u.IsActive = false
	u.UpdatedAt = s.now()
	return s.Store.UpdateUser(ctx, u)
}

func (s *Service) Stats(ctx context.Context, actor Actor, id string) (User, Stats, error) {
	u, err := s.Get(ctx, actor, id)
	if err != nil {
		return User{}, Stats{}, err
	}
	var st Stats
	if s.Orders != nil {
		if st.TotalOrders, err = s.Orders.CountOrdersForCustomer(ctx, id); err != nil {
			return User{}, Stats{}, err
		}
	}
	if s.Reviews != nil {
		if st.TotalReviews, err = s.Reviews.CountReviewsForUser(ctx, id); err != nil {
			return User{}, Stats{}, err
		}
	}
	return u, st, nil
}

// ApproveVendor flips the approval flag on a vendor profile.
func (s *Service) ApproveVendor(ctx context.Context, actor Actor, vendorID string, approved bool) (User, error) {
	if !actor.IsAdmin() {
		return User{}, apperr.Forbidden("admin role required")
	}
	u, err := s.Store.GetUser(ctx, vendorID)
	if err != nil {
		return User{}, err
	}
	if u.Role != RoleVendor || u.VendorProfile == nil {
		return User{}, apperr.Validation("user %s has no vendor profile", vendorID)
	}
	u.VendorProfile.IsApproved = approved
	u.UpdatedAt = s.now()
	if err := s.Store.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}
