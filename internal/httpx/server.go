package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kmercart/kmercart-api/internal/auth"
	"github.com/kmercart/kmercart-api/internal/cart"
	"github.com/kmercart/kmercart-api/internal/catalog"
	"github.com/kmercart/kmercart-api/internal/metrics"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/kmercart/kmercart-api/internal/payouts"
	"github.com/kmercart/kmercart-api/internal/reviews"
	"github.com/kmercart/kmercart-api/internal/upload"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/kmercart/kmercart-api/internal/vendors"
	"go.uber.org/zap"
)

// Deps is everything the router serves.
type Deps struct {
	Auth          *auth.Service
	Users         *users.Service
	Catalog       *catalog.Service
	Cart          *cart.Service
	Orders        *orders.Service
	Vendors       *vendors.Service
	Reviews       *reviews.Service
	Notifications *notifications.Service
	Payouts       *payouts.Service
	Uploads       upload.Store

	// Limiter is optional; nil disables rate limiting.
	Limiter Limiter
	// Metrics is optional; nil disables /metrics.
	Metrics *metrics.Metrics
	// Ready is checked by /healthz.
	Ready func(ctx context.Context) error

	Log        *zap.Logger
	APIPrefix  string
	CORSOrigin string
}

func NewRouter(d Deps) *chi.Mux {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(cors(d.CORSOrigin))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if d.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := d.Ready(ctx); err != nil {
				loggerFrom(r.Context()).Warn("health check failed", zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "unavailable"})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	if d.Uploads.Dir != "" {
		r.Handle(upload.PathPrefix+"*", http.StripPrefix(upload.PathPrefix, http.FileServer(http.Dir(d.Uploads.Dir))))
	}

	// the stream is long-lived and stays outside the request timeout
	notif := &NotificationsHandler{Notifications: d.Notifications, Auth: d.Auth}
	r.Get(d.APIPrefix+"/notifications/stream", notif.stream)

	r.Route(d.APIPrefix, func(api chi.Router) {
		api.Use(middleware.Timeout(15 * time.Second))
		if d.Limiter != nil {
			api.Use(rateLimit(d.Limiter))
		}
		authn := authenticate(d.Auth)

		(&AuthHandler{Auth: d.Auth}).Register(api, authn)
		(&CatalogHandler{Catalog: d.Catalog, Reviews: d.Reviews}).Register(api, authn)

		api.Group(func(pr chi.Router) {
			pr.Use(authn)
			(&UsersHandler{Users: d.Users}).Register(pr)
			(&CartHandler{Cart: d.Cart}).Register(pr)
			(&OrdersHandler{Orders: d.Orders}).Register(pr)
			notif.Register(pr)
			(&UploadHandler{Uploads: d.Uploads}).Register(pr)

			pr.Route("/vendors", func(vr chi.Router) {
				vr.Use(requireRole(users.RoleVendor))
				(&VendorsHandler{
					Vendors: d.Vendors,
					Catalog: d.Catalog,
					Orders:  d.Orders,
					Reviews: d.Reviews,
					Payouts: d.Payouts,
				}).Register(vr)
			})
			pr.Route("/admin", func(ar chi.Router) {
				ar.Use(requireRole(users.RoleAdmin))
				(&AdminHandler{Users: d.Users, Payouts: d.Payouts}).Register(ar)
			})
		})
	})
	return r
}
