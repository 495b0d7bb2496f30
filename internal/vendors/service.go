package vendors

import (
	"context"
	"strings"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/paging"
	"github.com/kmercart/kmercart-api/internal/users"
)

type ProfileStore interface {
	GetUser(ctx context.Context, id string) (users.User, error)
	UpdateUser(ctx context.Context, u users.User) error
}

// Analytics is computed by the store; nothing here walks every order.
type Analytics interface {
	CountProducts(ctx context.Context, vendorID string) (catalog.ProductCounts, error)
	VendorOrderCounts(ctx context.Context, vendorID string) (OrderCounts, error)
	VendorSales(ctx context.Context, vendorID string) (Sales, error)
	VendorDailySales(ctx context.Context, vendorID string, r Range) ([]DailySales, error)
	VendorTopProducts(ctx context.Context, vendorID string, r Range, limit int) ([]TopProduct, error)
	ListOrders(ctx context.Context, f orders.Filter, p paging.Page) ([]orders.Order, int, error)
}

type Service struct {
	Profiles  ProfileStore
	Analytics Analytics
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RequireProfile guards vendor routes other than the profile itself.
func RequireProfile(u users.User) error {
	if u.Role != users.RoleVendor {
		return apperr.Forbidden("vendor role required")
	}
	if u.VendorProfile == nil {
		return apperr.Forbidden("complete your vendor profile first")
	}
	return nil
}

func (s *Service) Profile(ctx context.Context, vendorID string) (users.User, error) {
	u, err := s.Profiles.GetUser(ctx, vendorID)
	if err != nil {
		return users.User{}, err
	}
	if u.Role != users.RoleVendor {
		return users.User{}, apperr.Forbidden("vendor role required")
	}
	return u, nil
}

type AddressPatch struct {
	Street  *string
	City    *string
	State   *string
	ZipCode *string
	Country *string
}

type BankAccountPatch struct {
	AccountNumber     *string
	RoutingNumber     *string
	AccountHolderName *string
}

type ProfileInput struct {
	BusinessName        *string
	BusinessDescription *string
	BusinessAddress     *AddressPatch
	TaxID               *string
	BankAccount         *BankAccountPatch
}

// UpdateProfile merges in into the stored profile, creating it with the
// marketplace defaults on first use. Nested address and bank account are
// merged key by key.
func (s *Service) UpdateProfile(ctx context.Context, vendorID string, in ProfileInput) (users.User, error) {
	u, err := s.Profile(ctx, vendorID)
	if err != nil {
		return users.User{}, err
	}
	now := s.now()
	vp := u.VendorProfile
	if vp == nil {
		if in.BusinessName == nil || strings.TrimSpace(*in.BusinessName) == "" {
			return users.User{}, apperr.Fields("invalid vendor profile", map[string]string{"businessName": "is required"})
		}
		vp = &users.VendorProfile{
			CommissionRate: users.DefaultCommissionRate,
			JoinedDate:     now,
		}
	} else {
		cp := *vp
		vp = &cp
	}
	if in.BusinessName != nil {
		name := strings.TrimSpace(*in.BusinessName)
		if name == "" {
			return users.User{}, apperr.Fields("invalid vendor profile", map[string]string{"businessName": "must not be empty"})
		}
		vp.BusinessName = name
	}
	if in.BusinessDescription != nil {
		vp.BusinessDescription = *in.BusinessDescription
	}
	if in.TaxID != nil {
		vp.TaxID = *in.TaxID
	}
	if in.BusinessAddress != nil {
		a := users.Address{}
		if vp.BusinessAddress != nil {
			a = *vp.BusinessAddress
		}
		set(&a.Street, in.BusinessAddress.Street)
		set(&a.City, in.BusinessAddress.City)
		set(&a.State, in.BusinessAddress.State)
		set(&a.ZipCode, in.BusinessAddress.ZipCode)
		set(&a.Country, in.BusinessAddress.Country)
		vp.BusinessAddress = &a
	}
	if in.BankAccount != nil {
		b := users.BankAccount{}
		if vp.BankAccount != nil {
			b = *vp.BankAccount
		}
		set(&b.AccountNumber, in.BankAccount.AccountNumber)
		set(&b.RoutingNumber, in.BankAccount.RoutingNumber)
		set(&b.AccountHolderName, in.BankAccount.AccountHolderName)
		vp.BankAccount = &b
	}
	u.VendorProfile = vp
	u.UpdatedAt = now
	if err := s.Profiles.UpdateUser(ctx, u); err != nil {
		return users.User{}, err
	}
	return u, nil
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (s *Service) Dashboard(ctx context.Context, vendorID string) (Dashboard, error) {
	var d Dashboard
	var err error
	if d.Products, err = s.Analytics.CountProducts(ctx, vendorID); err != nil {
		return Dashboard{}, err
	}
	if d.Orders, err = s.Analytics.VendorOrderCounts(ctx, vendorID); err != nil {
		return Dashboard{}, err
	}
	if d.Sales, err = s.Analytics.VendorSales(ctx, vendorID); err != nil {
		return Dashboard{}, err
	}
	recent, _, err := s.Analytics.ListOrders(ctx, orders.Filter{VendorID: vendorID}, paging.New(1, recentOrdersLimit, recentOrdersLimit))
	if err != nil {
		return Dashboard{}, err
	}
	d.RecentOrders = make([]orders.Order, 0, len(recent))
	for _, o := range recent {
		d.RecentOrders = append(d.RecentOrders, o.ForVendor(vendorID))
	}
	return d, nil
}

func (s *Service) SalesAnalytics(ctx context.Context, vendorID string, r Range) (SalesAnalytics, error) {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return SalesAnalytics{}, apperr.Validation("startDate must not be after endDate")
	}
	daily, err := s.Analytics.VendorDailySales(ctx, vendorID, r)
	if err != nil {
		return SalesAnalytics{}, err
	}
	top, err := s.Analytics.VendorTopProducts(ctx, vendorID, r, topProductsLimit)
	if err != nil {
		return SalesAnalytics{}, err
	}
	if daily == nil {
		daily = []DailySales{}
	}
	if top == nil {
		top = []TopProduct{}
	}
	return SalesAnalytics{DailySales: daily, TopProducts: top}, nil
}
