package users_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

var (
	admin = users.Actor{ID: "a1", Role: users.RoleAdmin}
	ada   = users.Actor{ID: "u1", Role: users.RoleCustomer}
)

func newService(t *testing.T) *users.Service {
	t.Helper()
	st := memstore.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, u := range []users.User{
		{ID: "a1", Email: "root@kmercart.cm", FirstName: "Root", LastName: "Admin", Role: users.RoleAdmin},
		{ID: "u1", Email: "ada@example.com", FirstName: "Ada", LastName: "Ngono", Role: users.RoleCustomer},
		{ID: "u2", Email: "eto@example.com", FirstName: "Samuel", LastName: "Eto", Role: users.RoleCustomer},
		{ID: "v1", Email: "shop@example.com", FirstName: "Paul", LastName: "Atangana", Role: users.RoleVendor,
			VendorProfile: &users.VendorProfile{BusinessName: "Atangana Arts", CommissionRate: users.DefaultCommissionRate}},
	} {
		u.IsActive = true
		u.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, st.CreateUser(context.Background(), &u))
	}
	return &users.Service{Store: st, Orders: st, Reviews: st}
}

func TestGetIsOwnerOrAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.Get(ctx, ada, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Ngono", u.FullName())

	_, err = svc.Get(ctx, ada, "u2")
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.Get(ctx, admin, "u2")
	require.NoError(t, err)

	_, err = svc.Get(ctx, admin, "nobody")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestList(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, _, err := svc.List(ctx, ada, users.Filter{})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	list, info, err := svc.List(ctx, admin, users.Filter{Role: users.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, 2, info.Total)
	require.Len(t, list, 2)
	assert.Equal(t, "u2", list[0].ID, "newest first")

	list, _, err = svc.List(ctx, admin, users.Filter{Search: "ETO"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "u2", list[0].ID)

	_, _, err = svc.List(ctx, admin, users.Filter{Role: "guest"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	u, err := svc.Update(ctx, ada, "u1", users.UpdateInput{FirstName: ptr(" Adaeze "), Phone: ptr("+237 6 99 00 00 00")})
	require.NoError(t, err)
	assert.Equal(t, "Adaeze", u.FirstName)
	assert.Equal(t, "Ngono", u.LastName)
	assert.Equal(t, "+237 6 99 00 00 00", u.Phone)

	_, err = svc.Update(ctx, ada, "u1", users.UpdateInput{LastName: ptr("")})
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Update(ctx, ada, "u2", users.UpdateInput{FirstName: ptr("Hacked")})
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDeactivate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	require.ErrorIs(t, svc.Deactivate(ctx, ada, "u2"), apperr.ErrForbidden)

	require.NoError(t, svc.Deactivate(ctx, ada, "u1"))
	u, err := svc.Get(ctx, admin, "u1")
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	// already inactive is fine
	require.NoError(t, svc.Deactivate(ctx, admin, "u1"))
}

func TestStats(t *testing.T) {
	svc := newService(t)

	u, st, err := svc.Stats(context.Background(), ada, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, users.Stats{}, st)
}

func TestApproveVendor(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.ApproveVendor(ctx, ada, "v1", true)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.ApproveVendor(ctx, admin, "u1", true)
	require.ErrorIs(t, err, apperr.ErrValidation)

	u, err := svc.ApproveVendor(ctx, admin, "v1", true)
	require.NoError(t, err)
	assert.True(t, u.VendorProfile.IsApproved)

	stored, err := svc.Get(ctx, admin, "v1")
	require.NoError(t, err)
	assert.True(t, stored.VendorProfile.IsApproved)
}

func TestUserJSONHidesPasswordHash(t *testing.T) {
	b, err := json.Marshal(users.User{ID: "u1", FirstName: "Ada", LastName: "Ngono", PasswordHash: "secret"})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "Ada Ngono", got["fullName"])
	assert.NotContains(t, got, "passwordHash")
	assert.NotContains(t, string(b), "secret")
}
