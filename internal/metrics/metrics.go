// Package metrics defines the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"deliveryService/models"
	"deliveryService/repository"
)

// Metrics holds every collector. It satisfies the lifecycle and token recorders.
type Metrics struct {
	OrdersCreated       prometheus.Counter
	OrderAssignments    *prometheus.CounterVec
	OrderDeletions      *prometheus.CounterVec
	TokensIssued        *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	GRPCRequests        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		OrderAssignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_assignments_total",
			Help: "Total number of order assignment attempts by outcome",
		}, []string{"outcome"}),
		OrderDeletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_deletions_total",
			Help: "Total number of order deletion attempts by outcome",
		}, []string{"outcome"}),
		TokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "capability_tokens_issued_total",
			Help: "Total number of realtime capability tokens issued by role",
		}, []string{"role"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		GRPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grpc_requests_total",
			Help: "Total number of unary gRPC requests",
		}, []string{"method", "code"}),
	}
	reg.MustRegister(
		m.OrdersCreated,
		m.OrderAssignments,
		m.OrderDeletions,
		m.TokensIssued,
		m.HTTPRequests,
		m.HTTPRequestDuration,
		m.GRPCRequests,
	)
	return m
}

func (m *Metrics) OrderCreated() { m.OrdersCreated.Inc() }

func (m *Metrics) OrderAssigned(outcome repository.Outcome) {
	m.OrderAssignments.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) OrderDeleted(outcome repository.Outcome) {
	m.OrderDeletions.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) TokenIssued(role models.Role) {
	m.TokensIssued.WithLabelValues(string(role)).Inc()
}
