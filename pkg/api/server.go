package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trackgate/trackgate/pkg/auth"
	"github.com/trackgate/trackgate/pkg/middleware"
	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/tenants"
	"github.com/trackgate/trackgate/pkg/tracking"
)

// Server assembles the gateway's HTTP surface.
type Server struct {
	router  *mux.Router
	logger  *observability.Logger
	metrics *observability.Metrics
}

// ServerConfig carries the services the HTTP surface is built on.
type ServerConfig struct {
	Tenants  *tenants.Service
	Auth     *auth.Service
	Tracking tracking.Client
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	// TenantCacheTTL bounds the tenant resolution cache; zero disables it.
	TenantCacheTTL time.Duration
}

// NewServer wires routes and middleware.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		metrics: cfg.Metrics,
	}

	sessionRequired := middleware.NewSessionMiddleware(cfg.Auth, false)
	sessionOptional := middleware.NewSessionMiddleware(cfg.Auth, true)
	tenantScope := middleware.NewTenantScopeMiddleware(cfg.Tenants, cfg.TenantCacheTTL,
		middleware.WithTenantMetrics(cfg.Metrics))

	// Authentication routes carry no session requirement themselves.
	NewAuthHandlers(cfg.Auth).RegisterRoutes(s.router)

	// Registry routes. Creation, listing and lookup are the operator
	// surface; directory routes need a session and check the tenant and
	// role per handler.
	tenantHandlers := NewTenantHandlers(cfg.Tenants, cfg.Auth, tenantScope)
	s.router.HandleFunc("/tenants", tenantHandlers.CreateTenant).Methods("POST")
	s.router.HandleFunc("/tenants", tenantHandlers.ListTenants).Methods("GET")
	s.router.HandleFunc("/tenants/{id}", tenantHandlers.GetTenant).Methods("GET")
	s.router.Handle("/tenants/{id}/users",
		sessionRequired.Handler(http.HandlerFunc(tenantHandlers.AddUser))).Methods("POST")
	s.router.Handle("/tenants/{id}/users",
		sessionRequired.Handler(http.HandlerFunc(tenantHandlers.ListUsers))).Methods("GET")

	// Tenant-scoped routes: session optional so programmatic callers may
	// scope by header, tenant resolution mandatory, training admin-only.
	trackingHandlers := NewTrackingHandlers(cfg.Tracking)
	scoped := func(h http.HandlerFunc) http.Handler {
		return sessionOptional.Handler(tenantScope.Handler(h))
	}
	s.router.Handle("/experiments", scoped(trackingHandlers.ListExperiments)).Methods("GET")
	s.router.Handle("/experiments/{id}/runs", scoped(trackingHandlers.ListRuns)).Methods("GET")
	s.router.Handle("/models", scoped(trackingHandlers.ListModels)).Methods("GET")
	s.router.Handle("/train",
		sessionRequired.Handler(
			tenantScope.Handler(
				middleware.RequireOperation(cfg.Auth, auth.OpTriggerTraining)(
					http.HandlerFunc(trackingHandlers.Train))))).Methods("POST")

	return s
}

// Handler returns the composed HTTP handler with the ambient middleware
// chain applied outermost-first.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = middleware.Recovery(s.logger)(handler)
	handler = middleware.Logging(s.logger)(handler)
	if s.metrics != nil {
		handler = s.metrics.HTTPMiddleware(handler)
	}
	handler = middleware.RequestID(handler)
	return handler
}
