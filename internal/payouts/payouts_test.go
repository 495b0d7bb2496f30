package payouts_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	admin  = users.Actor{ID: "admin", Role: users.RoleAdmin}
	may1   = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	may31  = time.Date(2026, 5, 31, 23, 59, 59, 0, time.UTC)
	mid    = time.Date(2026, 5, 15, 12, 0, 0, 0, time.UTC)
	before = time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)
)

func TestNetAmount(t *testing.T) {
	assert.Equal(t, int64(8500), payouts.NetAmount(10000, 0.15))
	assert.Equal(t, int64(850), payouts.NetAmount(1000, 0.15))
	// 0.85 * 3 = 2.55
	assert.Equal(t, int64(3), payouts.NetAmount(3, 0.15))
	assert.Equal(t, int64(0), payouts.NetAmount(0, 0.15))
	assert.Equal(t, int64(1000), payouts.NetAmount(1000, 0))
}

func newService(t *testing.T) (*payouts.Service, *events.Recorder) {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	for _, u := range []users.User{
		{ID: "v1", Email: "v1@example.com", Role: users.RoleVendor, IsActive: true, VendorProfile: &users.VendorProfile{
			BusinessName:   "Limbe Leather",
			CommissionRate: 0.15,
			BankAccount:    &users.BankAccount{AccountNumber: "CM21-0001", AccountHolderName: "Limbe Leather SARL"},
		}},
		{ID: "v2", Email: "v2@example.com", Role: users.RoleVendor, IsActive: true, VendorProfile: &users.VendorProfile{
			BusinessName:   "No Bank",
			CommissionRate: 0.15,
		}},
		{ID: "v3", Email: "v3@example.com", Role: users.RoleVendor, IsActive: true},
	} {
		require.NoError(t, st.CreateUser(ctx, &u))
	}
	require.NoError(t, st.CreateProduct(ctx, &catalog.Product{ID: "p1", VendorID: "v1", Name: "Belt", SKU: "B-1", Price: 5000, Stock: 100, IsActive: true}))
	require.NoError(t, st.CreateProduct(ctx, &catalog.Product{ID: "p2", VendorID: "v9", Name: "Hat", SKU: "H-1", Price: 700, Stock: 100, IsActive: true}))

	for _, o := range []orders.Order{
		{ID: "o1", Status: orders.StatusDelivered, CreatedAt: mid, Items: []orders.Item{
			{ProductID: "p1", VendorID: "v1", Quantity: 2, Price: 5000, Total: 10000},
			{ProductID: "p2", VendorID: "v9", Quantity: 1, Price: 700, Total: 700},
		}},
		{ID: "o2", Status: orders.StatusShipped, CreatedAt: mid, Items: []orders.Item{
			{ProductID: "p1", VendorID: "v1", Quantity: 1, Price: 5000, Total: 5000},
		}},
		{ID: "o3", Status: orders.StatusDelivered, CreatedAt: before, Items: []orders.Item{
			{ProductID: "p1", VendorID: "v1", Quantity: 1, Price: 5000, Total: 5000},
		}},
	} {
		o.OrderNumber = "KC-" + o.ID
		o.CustomerID = "c1"
		_, err := st.PlaceOrder(ctx, &o)
		require.NoError(t, err)
	}

	rec := &events.Recorder{}
	return &payouts.Service{Store: st, Vendors: st, Events: rec, ServiceName: "test", Log: zap.NewNop()}, rec
}

func TestRequest(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()

	p, err := svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: may1, PeriodEnd: may31})
	require.NoError(t, err)
	assert.Equal(t, int64(8500), p.Amount)
	assert.Equal(t, payouts.StatusPending, p.Status)
	assert.Equal(t, "bank_transfer", p.PaymentMethod)
	assert.Equal(t, []string{"o1"}, p.Orders)
	assert.Equal(t, "CM21-0001", p.BankAccount.AccountNumber)
	assert.Empty(t, rec.Published())

	list, info, err := svc.List(ctx, "v1", 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
	assert.Equal(t, 1, info.Total)
}

func TestRequestRejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: may31, PeriodEnd: may1})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Request(ctx, "v2", payouts.RequestInput{PeriodStart: may1, PeriodEnd: may31})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Request(ctx, "v3", payouts.RequestInput{PeriodStart: may1, PeriodEnd: may31})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	// nothing delivered in June
	june := may31.Add(time.Second)
	_, err = svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: june, PeriodEnd: june.AddDate(0, 1, 0)})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateStatus(t *testing.T) {
	svc, rec := newService(t)
	ctx := context.Background()
	p, err := svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: may1, PeriodEnd: may31})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, users.Actor{ID: "v1", Role: users.RoleVendor}, p.ID, payouts.StatusInput{Status: payouts.StatusCompleted})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.UpdateStatus(ctx, admin, p.ID, payouts.StatusInput{Status: "sent"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.UpdateStatus(ctx, admin, p.ID, payouts.StatusInput{Status: payouts.StatusProcessing})
	require.NoError(t, err)
	assert.Nil(t, got.ProcessedAt)
	assert.Empty(t, rec.Published())

	got, err = svc.UpdateStatus(ctx, admin, p.ID, payouts.StatusInput{Status: payouts.StatusCompleted, TransactionID: "TX-77"})
	require.NoError(t, err)
	require.NotNil(t, got.ProcessedAt)
	assert.Equal(t, "TX-77", got.TransactionID)

	sent := rec.Topic(events.TopicPayoutProcessed)
	require.Len(t, sent, 1)
	var payload events.PayoutProcessedPayload
	require.NoError(t, json.Unmarshal(sent[0].Payload, &payload))
	assert.Equal(t, "v1", payload.VendorID)
	assert.Equal(t, "completed", payload.Status)
	assert.Equal(t, int64(8500), payload.Amount)

	_, err = svc.UpdateStatus(ctx, admin, p.ID, payouts.StatusInput{Status: payouts.StatusFailed})
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.UpdateStatus(ctx, admin, "missing", payouts.StatusInput{Status: payouts.StatusFailed})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRequestSkipsOrdersAlreadyPaidOut(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first, err := svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: may1, PeriodEnd: may31})
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, first.Orders)

	// o1 is the only delivered order in the overlap and is already claimed
	_, err = svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: mid, PeriodEnd: may31})
	require.ErrorIs(t, err, apperr.ErrValidation)

	// the earlier April order is still unclaimed
	wide, err := svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: before.AddDate(0, 0, -1), PeriodEnd: may31})
	require.NoError(t, err)
	assert.Equal(t, []string{"o3"}, wide.Orders)
	assert.Equal(t, int64(4250), wide.Amount)

	// a failed payout releases its orders
	_, err = svc.UpdateStatus(ctx, admin, first.ID, payouts.StatusInput{Status: payouts.StatusFailed})
	require.NoError(t, err)
	again, err := svc.Request(ctx, "v1", payouts.RequestInput{PeriodStart: may1, PeriodEnd: may31})
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, again.Orders)
}

func TestCreatePayoutRejectsClaimedOrders(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	require.NoError(t, st.CreatePayout(ctx, &payouts.Payout{ID: "po1", VendorID: "v1", Status: payouts.StatusPending, Orders: []string{"o1"}}))

	err := st.CreatePayout(ctx, &payouts.Payout{ID: "po2", VendorID: "v1", Status: payouts.StatusPending, Orders: []string{"o2", "o1"}})
	require.ErrorIs(t, err, apperr.ErrConflict)

	// another vendor's claim does not matter
	require.NoError(t, st.CreatePayout(ctx, &payouts.Payout{ID: "po3", VendorID: "v2", Status: payouts.StatusPending, Orders: []string{"o1"}}))
}
