package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Credential store metrics
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec
	StoreBackupRecoveries  prometheus.Counter

	// Authentication metrics
	AuthAttemptsTotal   *prometheus.CounterVec
	AuthThrottledTotal  prometheus.Counter
	SessionsActive      prometheus.Gauge
	SessionsSweptTotal  prometheus.Counter

	// Tenant cache metrics
	TenantCacheHitsTotal   prometheus.Counter
	TenantCacheMissesTotal prometheus.Counter

	// Business metrics
	TenantsTotal prometheus.Gauge
	UsersTotal   prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics. A nil registry
// gets a fresh private one, which keeps parallel tests from colliding on
// duplicate registration.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackgate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackgate_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackgate_store_operations_total",
				Help: "Total number of credential store operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StoreOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackgate_store_operation_duration_seconds",
				Help:    "Credential store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		StoreBackupRecoveries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackgate_store_backup_recoveries_total",
				Help: "Times the credential store recovered from its backup copy",
			},
		),
		AuthAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackgate_auth_attempts_total",
				Help: "Total number of authentication attempts by outcome",
			},
			[]string{"outcome"}, // success, tenant_not_found, user_not_found, bad_password, throttled
		),
		AuthThrottledTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackgate_auth_throttled_total",
				Help: "Login attempts rejected by the rate limiter",
			},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trackgate_sessions_active",
				Help: "Number of live authenticated sessions",
			},
		),
		SessionsSweptTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackgate_sessions_swept_total",
				Help: "Expired sessions removed by the sweeper",
			},
		),
		TenantCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackgate_tenant_cache_hits_total",
				Help: "Tenant lookup cache hits in the scoping middleware",
			},
		),
		TenantCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackgate_tenant_cache_misses_total",
				Help: "Tenant lookup cache misses in the scoping middleware",
			},
		),
		TenantsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trackgate_tenants_total",
				Help: "Number of tenants in the registry",
			},
		),
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "trackgate_users_total",
				Help: "Number of users across all tenants",
			},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StoreOperationsTotal,
		m.StoreOperationDuration,
		m.StoreBackupRecoveries,
		m.AuthAttemptsTotal,
		m.AuthThrottledTotal,
		m.SessionsActive,
		m.SessionsSweptTotal,
		m.TenantCacheHitsTotal,
		m.TenantCacheMissesTotal,
		m.TenantsTotal,
		m.UsersTotal,
	)

	return m
}

// Handler returns the /metrics HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveStoreOperation records a credential store operation
func (m *Metrics) ObserveStoreOperation(operation, backend string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.StoreOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	m.StoreOperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// statusRecorder captures the response status for HTTP metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMiddleware instruments an HTTP handler with request metrics
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(rec.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
