package catalog_test

import (
	"context"
	"testing"

	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

var admin = users.Actor{ID: "admin", Role: users.RoleAdmin}

func newService(t *testing.T) (*catalog.Service, *events.Recorder, catalog.Category) {
	t.Helper()
	st := memstore.New()
	rec := &events.Recorder{}
	svc := &catalog.Service{
		Products:    st,
		Categories:  st,
		Events:      rec,
		ServiceName: "test",
		Log:         zap.NewNop(),
	}
	cat, err := svc.CreateCategory(context.Background(), admin, catalog.CategoryInput{Name: "Arts & Crafts"})
	require.NoError(t, err)
	return svc, rec, cat
}

func productInput(categoryID, sku string, price int64, stock int) catalog.ProductInput {
	return catalog.ProductInput{
		CategoryID:  ptr(categoryID),
		Name:        ptr("Bamileke Mask"),
		Description: ptr("Carved by hand in Bafoussam"),
		SKU:         ptr(sku),
		Price:       ptr(price),
		Stock:       ptr(stock),
		Images:      []string{"/uploads/a.jpg", "/uploads/b.jpg"},
	}
}

func TestSlugify(t *testing.T) {
	for in, want := range map[string]string{
		"Arts & Crafts":      "arts-crafts",
		"  Hello, World!  ":  "hello-world",
		"Café Noir":          "caf-noir",
		"already-slugged-42": "already-slugged-42",
		"!!!":                "",
	} {
		assert.Equal(t, want, catalog.Slugify(in), in)
	}
}

func TestCreateProduct(t *testing.T) {
	svc, rec, cat := newService(t)

	p, err := svc.Create(context.Background(), "v1", productInput(cat.ID, " MASK-1 ", 15000, 30))
	require.NoError(t, err)
	assert.Equal(t, "v1", p.VendorID)
	assert.Equal(t, "bamileke-mask", p.Slug)
	assert.Equal(t, "MASK-1", p.SKU)
	assert.Equal(t, catalog.DefaultCurrency, p.Currency)
	assert.Equal(t, catalog.DefaultLowStockThreshold, p.LowStockThreshold)
	assert.Equal(t, "/uploads/a.jpg", p.MainImage)
	assert.True(t, p.IsActive)
	assert.Empty(t, rec.Topic(events.TopicStockLow))
}

func TestCreateProductLowStockEvent(t *testing.T) {
	svc, rec, cat := newService(t)

	_, err := svc.Create(context.Background(), "v1", productInput(cat.ID, "MASK-1", 15000, 3))
	require.NoError(t, err)
	assert.Len(t, rec.Topic(events.TopicStockLow), 1)
}

func TestCreateProductValidation(t *testing.T) {
	svc, _, cat := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "v1", catalog.ProductInput{Price: ptr[int64](-1), Discount: ptr(120)})
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	for _, f := range []string{"name", "description", "categoryId", "sku", "price", "stock", "discount"} {
		assert.Contains(t, ae.Fields, f)
	}

	_, err = svc.Create(ctx, "v1", productInput("missing", "MASK-1", 100, 1))
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.Create(ctx, "v1", productInput(cat.ID, "MASK-1", 100, 1))
	require.NoError(t, err)
	_, err = svc.Create(ctx, "v2", productInput(cat.ID, "MASK-1", 100, 1))
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestUpdateProductIsVendorScoped(t *testing.T) {
	svc, _, cat := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "v1", productInput(cat.ID, "MASK-1", 15000, 30))
	require.NoError(t, err)

	_, err = svc.Update(ctx, "v2", p.ID, catalog.ProductInput{Price: ptr[int64](1)})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := svc.Update(ctx, "v1", p.ID, catalog.ProductInput{Price: ptr[int64](12000), Name: ptr("Royal Mask")})
	require.NoError(t, err)
	assert.Equal(t, int64(12000), got.Price)
	assert.Equal(t, "royal-mask", got.Slug)
	assert.Equal(t, 30, got.Stock)

	_, err = svc.Update(ctx, "v1", p.ID, catalog.ProductInput{Name: ptr("  ")})
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeleteIsSoft(t *testing.T) {
	svc, _, cat := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "v1", productInput(cat.ID, "MASK-1", 15000, 30))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "v1", p.ID))

	_, err = svc.GetPublic(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	got, err := svc.GetForVendor(ctx, "v1", p.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	list, info, err := svc.ListPublic(ctx, catalog.ProductFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, info.Total)
}

func TestUpdateStock(t *testing.T) {
	svc, rec, cat := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, "v1", productInput(cat.ID, "MASK-1", 15000, 30))
	require.NoError(t, err)

	_, err = svc.UpdateStock(ctx, "v1", p.ID, -1)
	require.ErrorIs(t, err, apperr.ErrValidation)

	got, err := svc.UpdateStock(ctx, "v1", p.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
	assert.True(t, got.IsLowStock())
	assert.Len(t, rec.Topic(events.TopicStockLow), 1)

	counts, err := svc.Counts(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, catalog.ProductCounts{Total: 1, Active: 1, LowStock: 1}, counts)
}

func TestListPublicFiltersAndSorts(t *testing.T) {
	svc, _, cat := newService(t)
	ctx := context.Background()
	for i, price := range []int64{3000, 1000, 2000} {
		in := productInput(cat.ID, "SKU-"+string(rune('A'+i)), price, 20)
		_, err := svc.Create(ctx, "v1", in)
		require.NoError(t, err)
	}

	list, _, err := svc.ListPublic(ctx, catalog.ProductFilter{Sort: catalog.SortPriceAsc}, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []int64{1000, 2000, 3000}, []int64{list[0].Price, list[1].Price, list[2].Price})

	list, info, err := svc.ListPublic(ctx, catalog.ProductFilter{MinPrice: ptr[int64](1500)}, 1, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 2, info.Total)
	assert.Equal(t, 2, info.Pages)

	_, _, err = svc.ListPublic(ctx, catalog.ProductFilter{MinPrice: ptr[int64](5), MaxPrice: ptr[int64](1)}, 1, 10)
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, _, err = svc.ListPublic(ctx, catalog.ProductFilter{Sort: "cheapest"}, 1, 10)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestCategories(t *testing.T) {
	svc, _, root := newService(t)
	ctx := context.Background()

	_, err := svc.CreateCategory(ctx, users.Actor{ID: "v1", Role: users.RoleVendor}, catalog.CategoryInput{Name: "Masks"})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = svc.CreateCategory(ctx, admin, catalog.CategoryInput{Name: "arts crafts"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = svc.CreateCategory(ctx, admin, catalog.CategoryInput{Name: "Masks", ParentID: "nope"})
	require.ErrorIs(t, err, apperr.ErrValidation)

	child, err := svc.CreateCategory(ctx, admin, catalog.CategoryInput{Name: "Masks", ParentID: root.ID})
	require.NoError(t, err)
	assert.Equal(t, "masks", child.Slug)

	all, err := svc.ListCategories(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	top, err := svc.ListCategories(ctx, ptr(""))
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, root.ID, top[0].ID)

	kids, err := svc.ListCategories(ctx, ptr(root.ID))
	require.NoError(t, err)
	require.Len(t, kids, 1)
	assert.Equal(t, child.ID, kids[0].ID)
}
