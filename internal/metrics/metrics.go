package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kmercart/kmercart-api/internal/events"
	"github.com/kmercart/kmercart-api/internal/notifications"
	"github.com/kmercart/kmercart-api/internal/orders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	ordersPlaced  prometheus.Counter
	orderRevenue  prometheus.Counter
	transitions   *prometheus.CounterVec
	published     *prometheus.CounterVec
	publishFailed *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_placed_total",
			Help: "Orders created by checkout.",
		}),
		orderRevenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "orders_revenue_total",
			Help: "Sum of order totals at checkout, in currency units.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_status_transitions_total",
			Help: "Order status changes.",
		}, []string{"from", "to"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_published_total",
			Help: "Events handed to the bus by topic.",
		}, []string{"topic"}),
		publishFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_publish_failed_total",
			Help: "Events the bus refused or failed to deliver.",
		}, []string{"topic"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notifications_created_total",
			Help: "Stored notifications by type.",
		}, []string{"type"}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration, m.ordersPlaced, m.orderRevenue,
		m.transitions, m.published, m.publishFailed, m.notifications,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Middleware records every request under its chi route pattern, so path
// ids do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		m.httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// OrderPlaced and StatusChanged make Metrics an orders.Observer.
func (m *Metrics) OrderPlaced(o orders.Order) {
	m.ordersPlaced.Inc()
	m.orderRevenue.Add(float64(o.Total))
}

func (m *Metrics) StatusChanged(from, to orders.Status) {
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) NotificationCreated(t notifications.Type) {
	m.notifications.WithLabelValues(string(t)).Inc()
}

// PublishFailed is hooked into the kafka producer's async error path.
func (m *Metrics) PublishFailed(topic string) {
	m.publishFailed.WithLabelValues(topic).Inc()
}

// Publisher counts events on their way to next.
func (m *Metrics) Publisher(next events.Publisher) events.Publisher {
	return countingPublisher{next: next, m: m}
}

type countingPublisher struct {
	next events.Publisher
	m    *Metrics
}

func (p countingPublisher) Publish(ctx context.Context, topic string, env events.Envelope) error {
	if err := p.next.Publish(ctx, topic, env); err != nil {
		p.m.PublishFailed(topic)
		return err
	}
	p.m.published.WithLabelValues(topic).Inc()
	return nil
}
