package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kmercart/kmercart-api/internal/auth"
	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/memstore"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/reviews"
	"github.com/kmercart/kmercart-api/internal/upload"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/kmercart/kmercart-api/internal/vendors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const password = "Secret1!x"

func newDeps(t *testing.T) (Deps, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	rec := &events.Recorder{}
	log := zap.NewNop()
	return Deps{
		Auth: &auth.Service{
			Users:    st,
			Sessions: auth.NewMemorySessions(),
			Tokens:   auth.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, time.Hour),
			Log:      log,
		},
		Users:         &users.Service{Store: st, Orders: st, Reviews: st},
		Catalog:       &catalog.Service{Products: st, Categories: st, Events: rec, ServiceName: "test", Log: log},
		Cart:          &cart.Service{Carts: st, Products: st},
		Orders:        &orders.Service{Store: st, Carts: st, Products: st, Events: rec, ServiceName: "test", Log: log},
		Vendors:       &vendors.Service{Profiles: st, Analytics: st},
		Reviews:       &reviews.Service{Store: st, Products: st, Purchases: st, Events: rec, ServiceName: "test", Log: log},
		Notifications: &notifications.Service{Store: st, Broadcaster: notifications.NewHub(4), Log: log},
		Payouts:       &payouts.Service{Store: st, Vendors: st, Events: rec, ServiceName: "test", Log: log},
		Uploads:       upload.Store{Dir: t.TempDir(), BaseURL: "http://localhost:8080", MaxBytes: 1 << 20},
		Log:           log,
		APIPrefix:     "/api/v1",
		CORSOrigin:    "http://localhost:3000",
	}, st
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	out := map[string]any{}
	if rw.Body.Len() > 0 && rw.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out), rw.Body.String())
	}
	return rw.Code, out
}

func register(t *testing.T, h http.Handler, body map[string]any) string {
	t.Helper()
	code, out := do(t, h, http.MethodPost, "/api/v1/auth/register", "", body)
	require.Equal(t, http.StatusCreated, code, out)
	return out["accessToken"].(string)
}

func customer(email string) map[string]any {
	return map[string]any{"email": email, "password": password, "firstName": "Ada", "lastName": "Ngono"}
}

func seedAdmin(t *testing.T, st *memstore.Store, h http.Handler) string {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	require.NoError(t, st.CreateUser(context.Background(), &users.User{
		ID:           "admin-1",
		Email:        "root@kmercart.cm",
		PasswordHash: hash,
		FirstName:    "Root",
		LastName:     "Admin",
		Role:         users.RoleAdmin,
		IsActive:     true,
	}))
	code, out := do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "root@kmercart.cm", "password": password})
	require.Equal(t, http.StatusOK, code, out)
	return out["accessToken"].(string)
}

func TestAuthFlow(t *testing.T) {
	d, _ := newDeps(t)
	h := NewRouter(d)

	register(t, h, customer("Ada@Example.com"))

	code, out := do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "ada@example.com", "password": password})
	require.Equal(t, http.StatusOK, code)
	token := out["accessToken"].(string)
	assert.NotEmpty(t, out["refreshToken"])

	code, out = do(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ada@example.com", out["email"])
	assert.Equal(t, "customer", out["role"])
	assert.NotContains(t, out, "passwordHash")

	code, out = do(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]any{"email": "ada@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.NotEmpty(t, out["error"])

	code, _ = do(t, h, http.MethodPost, "/api/v1/auth/register", "", customer("ada@example.com"))
	assert.Equal(t, http.StatusConflict, code)
}

func TestValidationErrorBody(t *testing.T) {
	d, _ := newDeps(t)
	h := NewRouter(d)

	code, out := do(t, h, http.MethodPost, "/api/v1/auth/register", "", map[string]any{"email": "not-an-email", "password": "short"})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation failed", out["error"])
	fields, ok := out["fields"].(map[string]any)
	require.True(t, ok, out)
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 8 characters", fields["password"])
	assert.Equal(t, "is required", fields["firstName"])

	code, out = do(t, h, http.MethodPost, "/api/v1/auth/login", "", nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "request body is empty", out["error"])
}

func TestAccessControl(t *testing.T) {
	d, _ := newDeps(t)
	h := NewRouter(d)

	code, _ := do(t, h, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = do(t, h, http.MethodGet, "/api/v1/cart", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	token := register(t, h, customer("ada@example.com"))
	code, out := do(t, h, http.MethodGet, "/api/v1/vendors/profile", token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "access denied: requires role vendor", out["error"])

	code, _ = do(t, h, http.MethodPatch, "/api/v1/admin/vendors/v1/approval", token, map[string]any{"isApproved": true})
	assert.Equal(t, http.StatusForbidden, code)

	// public catalog needs no token
	code, out = do(t, h, http.MethodGet, "/api/v1/products", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, out, "pagination")
}

func TestVendorProfileGate(t *testing.T) {
	d, _ := newDeps(t)
	h := NewRouter(d)

	vendor := customer("shop@example.com")
	vendor["role"] = "vendor"
	token := register(t, h, vendor)

	code, _ := do(t, h, http.MethodGet, "/api/v1/vendors/profile", token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, out := do(t, h, http.MethodGet, "/api/v1/vendors/dashboard/stats", token, nil)
	require.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "complete your vendor profile first", out["error"])

	code, _ = do(t, h, http.MethodPut, "/api/v1/vendors/profile", token, map[string]any{"businessName": "Bafut Weaves"})
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, h, http.MethodGet, "/api/v1/vendors/dashboard/stats", token, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestCheckoutFlow(t *testing.T) {
	d, st := newDeps(t)
	h := NewRouter(d)
	adminToken := seedAdmin(t, st, h)

	code, cat := do(t, h, http.MethodPost, "/api/v1/categories", adminToken, map[string]any{"name": "Textiles"})
	require.Equal(t, http.StatusCreated, code, cat)
	assert.Equal(t, "textiles", cat["slug"])

	vendor := customer("shop@example.com")
	vendor["role"] = "vendor"
	vendor["vendorProfile"] = map[string]any{"businessName": "Bafut Weaves"}
	vendorToken := register(t, h, vendor)

	code, prod := do(t, h, http.MethodPost, "/api/v1/vendors/products", vendorToken, map[string]any{
		"name":        "Ndop Cloth",
		"description": "Hand-dyed indigo cloth",
		"categoryId":  cat["_id"],
		"sku":         "NDOP-1",
		"price":       12000,
		"stock":       3,
	})
	require.Equal(t, http.StatusCreated, code, prod)
	productID := prod["_id"].(string)

	buyer := register(t, h, customer("ada@example.com"))
	code, out := do(t, h, http.MethodPost, "/api/v1/cart/items", buyer, map[string]any{"productId": productID, "quantity": 2})
	require.Equal(t, http.StatusOK, code, out)

	code, order := do(t, h, http.MethodPost, "/api/v1/orders", buyer, map[string]any{
		"paymentMethod": "mobile_money",
		"shippingAddress": map[string]any{
			"fullName": "Ada Ngono",
			"street":   "Rue 1.234",
			"city":     "Douala",
			"state":    "Littoral",
			"zipCode":  "00237",
			"country":  "Cameroon",
		},
	})
	require.Equal(t, http.StatusCreated, code, order)
	assert.Equal(t, "pending", order["status"])
	// 24000 plus 8% tax
	assert.Equal(t, 25920.0, order["total"])
	assert.Regexp(t, `^KC-\d{8}-[0-9A-F]{6}$`, order["orderNumber"])

	code, out = do(t, h, http.MethodGet, "/api/v1/orders", buyer, nil)
	require.Equal(t, http.StatusOK, code)
	list := out["orders"].([]any)
	require.Len(t, list, 1)
	assert.Equal(t, order["_id"], list[0].(map[string]any)["_id"])

	code, out = do(t, h, http.MethodGet, "/api/v1/orders/"+order["_id"].(string), buyer, nil)
	require.Equal(t, http.StatusOK, code, out)
	assert.Equal(t, order["orderNumber"], out["orderNumber"])

	code, out = do(t, h, http.MethodGet, "/api/v1/products/"+productID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1.0, out["stock"])

	// the cart was emptied by checkout
	code, out = do(t, h, http.MethodPost, "/api/v1/orders", buyer, map[string]any{
		"paymentMethod":   "mobile_money",
		"shippingAddress": order["shippingAddress"],
	})
	assert.Equal(t, http.StatusBadRequest, code, out)
}

func TestEntitiesUseUnderscoreID(t *testing.T) {
	d, st := newDeps(t)
	h := NewRouter(d)
	token := seedAdmin(t, st, h)

	code, me := do(t, h, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "admin-1", me["_id"])
	assert.NotContains(t, me, "id")

	code, cat := do(t, h, http.MethodPost, "/api/v1/categories", token, map[string]any{"name": "Pottery"})
	require.Equal(t, http.StatusCreated, code, cat)
	assert.NotEmpty(t, cat["_id"])
	assert.NotContains(t, cat, "id")
}

func TestRateLimit(t *testing.T) {
	d, _ := newDeps(t)
	d.Limiter = NewIPLimiter(2, time.Minute)
	h := NewRouter(d)

	for i := 0; i < 2; i++ {
		code, _ := do(t, h, http.MethodGet, "/api/v1/products", "", nil)
		require.Equal(t, http.StatusOK, code)
	}
	code, out := do(t, h, http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too many requests, please try again later", out["error"])

	// health checks are outside the limited group
	code, _ = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthz(t *testing.T) {
	d, _ := newDeps(t)
	down := false
	d.Ready = func(context.Context) error {
		if down {
			return errors.New("database unreachable")
		}
		return nil
	}
	h := NewRouter(d)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "ok", rw.Body.String())

	down = true
	code, out := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", out["error"])
}

func TestCORSPreflight(t *testing.T) {
	d, _ := newDeps(t)
	h := NewRouter(d)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodOptions, "/api/v1/orders", nil))
	assert.Equal(t, http.StatusNoContent, rw.Code)
	assert.Equal(t, "http://localhost:3000", rw.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rw.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}
