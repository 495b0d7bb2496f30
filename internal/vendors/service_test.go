package vendors_test

import (
	"context"
	"testing"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/kmercart/kmercart-api/internal/vendors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var (
	day1 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 5, 2, 18, 30, 0, 0, time.UTC)
)

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	for _, u := range []users.User{
		{ID: "v1", Email: "v1@example.com", Role: users.RoleVendor, IsActive: true},
		{ID: "c1", Email: "c1@example.com", Role: users.RoleCustomer, IsActive: true},
	} {
		require.NoError(t, st.CreateUser(ctx, &u))
	}
	for _, p := range []catalog.Product{
		{ID: "p1", VendorID: "v1", Name: "Raffia bag", SKU: "RB-1", Price: 2000, Stock: 50, LowStockThreshold: 5, IsActive: true},
		{ID: "p2", VendorID: "v1", Name: "Clay pot", SKU: "CP-1", Price: 5000, Stock: 3, LowStockThreshold: 5, IsActive: true},
		{ID: "p3", VendorID: "v2", Name: "Shea butter", SKU: "SB-1", Price: 1500, Stock: 40, LowStockThreshold: 5, IsActive: true},
	} {
		require.NoError(t, st.CreateProduct(ctx, &p))
	}
	place := func(id string, status orders.Status, at time.Time, items ...orders.Item) {
		o := orders.Order{
			ID:            id,
			OrderNumber:   "KC-" + id,
			CustomerID:    "c1",
			Items:         items,
			Status:        status,
			StatusHistory: []orders.HistoryEntry{{Status: status, Timestamp: at}},
			CreatedAt:     at,
			UpdatedAt:     at,
		}
		_, err := st.PlaceOrder(ctx, &o)
		require.NoError(t, err)
	}
	line := func(productID, vendorID string, qty int, price int64) orders.Item {
		return orders.Item{ProductID: productID, VendorID: vendorID, Name: productID, Quantity: qty, Price: price, Total: price * int64(qty)}
	}
	place("o1", orders.StatusDelivered, day1, line("p1", "v1", 2, 2000), line("p3", "v2", 1, 1500))
	place("o2", orders.StatusPending, day1.Add(time.Hour), line("p2", "v1", 1, 5000))
	place("o3", orders.StatusShipped, day2, line("p1", "v1", 1, 2000))
	place("o4", orders.StatusCancelled, day2, line("p2", "v1", 1, 5000))
	place("o5", orders.StatusPending, day2, line("p3", "v2", 2, 1500))
	return st
}

func TestRequireProfile(t *testing.T) {
	err := vendors.RequireProfile(users.User{Role: users.RoleCustomer})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	err = vendors.RequireProfile(users.User{Role: users.RoleVendor})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	err = vendors.RequireProfile(users.User{Role: users.RoleVendor, VendorProfile: &users.VendorProfile{BusinessName: "x"}})
	require.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	st := seed(t)
	svc := &vendors.Service{Profiles: st, Analytics: st}
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, "v1", vendors.ProfileInput{TaxID: ptr("T-1")})
	require.ErrorIs(t, err, apperr.ErrValidation)

	u, err := svc.UpdateProfile(ctx, "v1", vendors.ProfileInput{
		BusinessName:    ptr(" Yaoundé Weavers "),
		BusinessAddress: &vendors.AddressPatch{City: ptr("Yaoundé"), Country: ptr("CM")},
	})
	require.NoError(t, err)
	require.NotNil(t, u.VendorProfile)
	assert.Equal(t, "Yaoundé Weavers", u.VendorProfile.BusinessName)
	assert.Equal(t, users.DefaultCommissionRate, u.VendorProfile.CommissionRate)
	assert.False(t, u.VendorProfile.IsApproved)

	u, err = svc.UpdateProfile(ctx, "v1", vendors.ProfileInput{
		BusinessAddress: &vendors.AddressPatch{Street: ptr("Rue 1.234")},
		BankAccount:     &vendors.BankAccountPatch{AccountHolderName: ptr("A. Weaver")},
	})
	require.NoError(t, err)
	addr := u.VendorProfile.BusinessAddress
	require.NotNil(t, addr)
	assert.Equal(t, "Rue 1.234", addr.Street)
	assert.Equal(t, "Yaoundé", addr.City)
	assert.Equal(t, "CM", addr.Country)
	assert.Equal(t, "A. Weaver", u.VendorProfile.BankAccount.AccountHolderName)

	stored, err := svc.Profile(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Yaoundé Weavers", stored.VendorProfile.BusinessName)

	_, err = svc.UpdateProfile(ctx, "v1", vendors.ProfileInput{BusinessName: ptr("")})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Profile(ctx, "c1")
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDashboard(t *testing.T) {
	st := seed(t)
	svc := &vendors.Service{Profiles: st, Analytics: st}

	d, err := svc.Dashboard(context.Background(), "v1")
	require.NoError(t, err)

	assert.Equal(t, catalog.ProductCounts{Total: 2, Active: 2, LowStock: 1}, d.Products)
	assert.Equal(t, vendors.OrderCounts{Total: 4, Pending: 1, Shipped: 1, Delivered: 1}, d.Orders)
	// o4 was cancelled and does not count
	assert.Equal(t, vendors.Sales{Total: 11000, Revenue: 11000, UnitsSold: 4}, d.Sales)
	// the dashboard shows total as a money amount
	assert.Equal(t, d.Sales.Revenue, d.Sales.Total)

	require.Len(t, d.RecentOrders, 4)
	for _, o := range d.RecentOrders {
		for _, it := range o.Items {
			assert.Equal(t, "v1", it.VendorID)
		}
	}
}

func TestSalesAnalytics(t *testing.T) {
	st := seed(t)
	svc := &vendors.Service{Profiles: st, Analytics: st}
	ctx := context.Background()

	a, err := svc.SalesAnalytics(ctx, "v1", vendors.Range{})
	require.NoError(t, err)
	assert.Equal(t, []vendors.DailySales{
		{Date: "2026-05-01", Sales: 9000, Orders: 2},
		{Date: "2026-05-02", Sales: 2000, Orders: 1},
	}, a.DailySales)
	require.Len(t, a.TopProducts, 2)
	assert.Equal(t, vendors.TopProduct{ProductID: "p1", ProductName: "p1", TotalSold: 3, Revenue: 6000}, a.TopProducts[0])
	assert.Equal(t, "p2", a.TopProducts[1].ProductID)

	from := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	a, err = svc.SalesAnalytics(ctx, "v1", vendors.Range{From: &from})
	require.NoError(t, err)
	require.Len(t, a.DailySales, 1)
	assert.Equal(t, "2026-05-02", a.DailySales[0].Date)

	a, err = svc.SalesAnalytics(ctx, "v9", vendors.Range{})
	require.NoError(t, err)
	assert.NotNil(t, a.DailySales)
	assert.NotNil(t, a.TopProducts)

	to := from.Add(-time.Hour)
	_, err = svc.SalesAnalytics(ctx, "v1", vendors.Range{From: &from, To: &to})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
