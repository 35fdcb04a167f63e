package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"deliveryService/internal/auth"
	"deliveryService/internal/logx"
	"deliveryService/internal/metrics"
)

// RouterDeps are the collaborators of the router.
type RouterDeps struct {
	Handlers *Handlers
	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Logger   logx.Logger
}

// NewRouter constructs the chi router. /healthz and /metrics are public; every
// other route requires basic auth.
func NewRouter(d RouterDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logx.Nop()
	}
	h := d.Handlers

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Observability(d.Metrics, logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.Healthz)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Verifier))
		r.Get("/", h.Root)
		r.Post("/orders", h.CreateOrder)
		r.Put("/orders/{orderId}", h.AssignOrder)
		r.Delete("/orders/{orderId}", h.DeleteOrder)
		r.Get("/ably", h.Ably)
		r.Get("/googleMaps", h.GoogleMaps)
		r.Get("/mapbox", h.Mapbox)
		r.Post("/admin/user", h.CreateUser)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)
	return r
}

// NewServer wraps handler in an http.Server with the API listener timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
