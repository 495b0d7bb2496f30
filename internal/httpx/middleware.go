package httpx

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/kmercart/kmercart-api/internal/apperr"
	"github.com/kmercart/kmercart-api/internal/users"
	"github.com/kmercart/kmercart-api/internal/vendors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type ctxKey int

const (
	userKey ctxKey = iota
	loggerKey
)

func withUser(ctx context.Context, u users.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated user of the request.
func UserFrom(ctx context.Context) (users.User, bool) {
	u, ok := ctx.Value(userKey).(users.User)
	return u, ok
}

func currentUser(r *http.Request) users.User {
	u, _ := UserFrom(r.Context())
	return u
}

func actorOf(r *http.Request) users.Actor {
	u := currentUser(r)
	return users.Actor{ID: u.ID, Role: u.Role}
}

func loggerFrom(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// requestLogger puts a request-scoped logger in the context and logs one
// line per request once it is served.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := log.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey, reqLog)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			}
			if status >= http.StatusInternalServerError {
				reqLog.Warn("http request", fields...)
				return
			}
			reqLog.Info("http request", fields...)
		})
	}
}

func cors(origin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Limiter decides whether a client may make another request.
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// IPLimiter is the in-process Limiter: one token bucket per client that
// refills max tokens per window. A bucket idle for a whole window is full
// again, so it is dropped on the next sweep.
type IPLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*ipBucket
	limit     rate.Limit
	burst     int
	window    time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewIPLimiter(max int, window time.Duration) *IPLimiter {
	return &IPLimiter{
		limiters: map[string]*ipBucket{},
		limit:    rate.Every(window / time.Duration(max)),
		burst:    max,
		window:   window,
		now:      time.Now,
	}
}

func (l *IPLimiter) Allow(_ context.Context, client string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.window {
		for k, b := range l.limiters {
			if now.Sub(b.seen) >= l.window {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.limiters[client]
	if !ok {
		b = &ipBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[client] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

func rateLimit(l Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				loggerFrom(r.Context()).Warn("rate limiter unavailable", zap.Error(err))
			} else if !ok {
				writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many requests, please try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Authenticator resolves an access token to an active user.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (users.User, error)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func authenticate(a Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := a.Authenticate(r.Context(), bearerToken(r))
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
		})
	}
}

func requireRole(roles ...users.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, currentUser(r).Role) {
				writeError(w, r, apperr.Forbidden("access denied: requires role %s", joinRoles(roles)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func joinRoles(roles []users.Role) string {
	s := make([]string, len(roles))
	for i, r := range roles {
		s[i] = string(r)
	}
	return strings.Join(s, " or ")
}

// requireVendorProfile guards vendor routes that need a completed profile.
func requireVendorProfile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := vendors.RequireProfile(currentUser(r)); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
