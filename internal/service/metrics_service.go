package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the gateway.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	authFailures    *prometheus.CounterVec
	rateLimited     prometheus.Counter
	tokensRevoked   prometheus.Counter
	tokensSwept     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	authFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_failures_total",
		Help: "Authentication rejections by reason",
	}, []string{"reason"})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rate_limited_requests_total",
		Help: "Requests rejected by the rate limiter",
	})

	tokensRevoked := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokens_revoked_total",
		Help: "Tokens added to the revocation registry",
	})

	tokensSwept := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tokens_swept_total",
		Help: "Expired token records removed by the sweeper",
	})

	registry.MustRegister(requestDuration, requestTotal, authFailures, rateLimited, tokensRevoked, tokensSwept)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		authFailures:    authFailures,
		rateLimited:     rateLimited,
		tokensRevoked:   tokensRevoked,
		tokensSwept:     tokensSwept,
	}
}

// Handler exposes the /metrics endpoint.
func (m *MetricsService) Handler() http.Handler {
	return m.handler
}

// ObserveHTTPRequest records a completed request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// IncAuthFailure counts an authentication rejection.
func (m *MetricsService) IncAuthFailure(reason string) {
	m.authFailures.WithLabelValues(reason).Inc()
}

// IncRateLimited counts a throttled request.
func (m *MetricsService) IncRateLimited() {
	m.rateLimited.Inc()
}

// IncTokensRevoked counts newly revoked tokens.
func (m *MetricsService) IncTokensRevoked(n int) {
	m.tokensRevoked.Add(float64(n))
}

// IncTokensSwept counts records removed by a sweep.
func (m *MetricsService) IncTokensSwept(n int) {
	m.tokensSwept.Add(float64(n))
}
