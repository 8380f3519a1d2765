// Package metrics holds the Prometheus collectors for HTTP traffic and joke
// activity.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a registry so tests can build independent instances.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	JokesCreated    prometheus.Counter
	JokesDeleted    prometheus.Counter
	CommentsAdded   prometheus.Counter
	LikesToggled    *prometheus.CounterVec
	UsersRegistered *prometheus.CounterVec
	RandomPicks     prometheus.Counter
}

// New registers all collectors, plus the Go runtime and process collectors,
// on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		JokesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jokes_created_total",
			Help: "Jokes created",
		}),
		JokesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jokes_deleted_total",
			Help: "Jokes deleted by their jokester",
		}),
		CommentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jokes_comments_added_total",
			Help: "Comments added to jokes",
		}),
		LikesToggled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jokes_likes_toggled_total",
			Help: "Like toggles by outcome",
		}, []string{"result"}),
		UsersRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jokes_users_registered_total",
			Help: "Users registered by sign-up method",
		}, []string{"method"}),
		RandomPicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jokes_random_picks_total",
			Help: "Random joke selections served",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.JokesCreated,
		m.JokesDeleted,
		m.CommentsAdded,
		m.LikesToggled,
		m.UsersRegistered,
		m.RandomPicks,
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latencies labelled by the matched
// chi route pattern, so /jokes/{id} is one series rather than one per joke.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		labels := prometheus.Labels{"method": r.Method, "path": path, "status": strconv.Itoa(status)}
		m.HTTPRequestsTotal.With(labels).Inc()
		m.HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	})
}
