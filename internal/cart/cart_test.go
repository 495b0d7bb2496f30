package cart_test

import (
	"context"
	"testing"
	"time"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*cart.Service, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	ctx := context.Background()
	for _, p := range []catalog.Product{
		{ID: "p1", VendorID: "v1", Name: "Kente scarf", SKU: "K-1", Price: 4000, Stock: 5, IsActive: true},
		{ID: "p2", VendorID: "v2", Name: "Robusta 1kg", SKU: "R-1", Price: 3500, Stock: 2, IsActive: true},
		{ID: "gone", VendorID: "v1", Name: "Old stock", SKU: "O-1", Price: 100, Stock: 9, IsActive: false},
		{ID: "empty", VendorID: "v1", Name: "Sold out", SKU: "E-1", Price: 100, Stock: 0, IsActive: true},
	} {
		require.NoError(t, st.CreateProduct(ctx, &p))
	}
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &cart.Service{Carts: st, Products: st, Now: func() time.Time { return fixed }}, st
}

func TestAddItem(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	v, err := svc.AddItem(ctx, "u1", "p1", 0)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 1, v.Items[0].Quantity)
	assert.Equal(t, int64(4000), v.Items[0].Price)
	assert.Equal(t, "Kente scarf", v.Items[0].Name)
	assert.True(t, v.Items[0].Available)

	v, err = svc.AddItem(ctx, "u1", "p1", 3)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, 4, v.Items[0].Quantity)
	assert.Equal(t, int64(16000), v.Subtotal)
	assert.Equal(t, 4, v.TotalItems)

	_, err = svc.AddItem(ctx, "u1", "p1", 2)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AddItem(ctx, "u1", "p1", -1)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AddItem(ctx, "u1", "gone", 1)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AddItem(ctx, "u1", "missing", 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPriceIsKeptFromFirstAdd(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "u1", "p1", 1)
	require.NoError(t, err)

	p, err := st.GetProduct(ctx, "p1")
	require.NoError(t, err)
	p.Price = 9999
	require.NoError(t, st.UpdateProduct(ctx, p))

	v, err := svc.AddItem(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), v.Items[0].Price)
}

func TestUpdateAndRemoveItem(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "u1", "p1", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	v, err := svc.UpdateItem(ctx, "u1", "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Items[0].Quantity)

	_, err = svc.UpdateItem(ctx, "u1", "p1", 6)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.UpdateItem(ctx, "u1", "nope", 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	v, err = svc.UpdateItem(ctx, "u1", "p1", 0)
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "p2", v.Items[0].ProductID)

	v, err = svc.RemoveItem(ctx, "u1", "p2")
	require.NoError(t, err)
	assert.Empty(t, v.Items)

	_, err = svc.RemoveItem(ctx, "u1", "p2")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSyncCapsAtStock(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	v, err := svc.Sync(ctx, "u1", []cart.SyncItem{
		{ProductID: "p2", Quantity: 5},
		{ProductID: "p1", Quantity: 9},
		{ProductID: "gone", Quantity: 1},
		{ProductID: "empty", Quantity: 1},
		{ProductID: "missing", Quantity: 1},
		{ProductID: "p1", Quantity: -3},
	})
	require.NoError(t, err)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "p2", v.Items[0].ProductID)
	assert.Equal(t, 2, v.Items[0].Quantity)
	assert.Equal(t, "p1", v.Items[1].ProductID)
	assert.Equal(t, 5, v.Items[1].Quantity)
}

func TestTotalsAndClear(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "u1", "p2", 1)
	require.NoError(t, err)

	tot, err := svc.Totals(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, cart.Totals{Subtotal: 11500, TotalItems: 3, Items: 2}, tot)

	require.NoError(t, svc.Clear(ctx, "u1"))
	v, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, v.Items)
	assert.Equal(t, int64(0), v.Subtotal)
}

func TestViewFlagsUnavailableLines(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()
	_, err := svc.AddItem(ctx, "u1", "p2", 2)
	require.NoError(t, err)

	p, err := st.GetProduct(ctx, "p2")
	require.NoError(t, err)
	p.Stock = 1
	require.NoError(t, st.UpdateProduct(ctx, p))

	v, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.False(t, v.Items[0].Available)
	assert.Equal(t, 1, v.Items[0].Stock)
}
