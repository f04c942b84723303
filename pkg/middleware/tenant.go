package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/trackgate/trackgate/pkg/contextkeys"
	"github.com/trackgate/trackgate/pkg/httputil"
	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/tenants"
)

// TenantHeader names the tenant on unauthenticated or cross-tenant
// requests. An authenticated session's tenant always wins over it.
const TenantHeader = "X-Tenant-ID"

// tenantCacheSize bounds the resolution cache. Far more tenants than this
// on one gateway means the TTL does the real work anyway.
const tenantCacheSize = 512

// TenantScopeMiddleware resolves which tenant a request operates on and
// places the tenant record in the request context.
//
// Resolution order: session tenant, then X-Tenant-ID header, then the
// tenant_id query parameter. A request that names no tenant is rejected;
// there is no default tenant. When both a session and an explicit header
// or parameter are present they must agree.
type TenantScopeMiddleware struct {
	tenants *tenants.Service
	cache   *expirable.LRU[string, *tenants.Tenant]
	metrics *observability.Metrics
}

// TenantScopeOption configures the middleware
type TenantScopeOption func(*TenantScopeMiddleware)

// WithTenantMetrics enables cache hit/miss counters
func WithTenantMetrics(m *observability.Metrics) TenantScopeOption {
	return func(t *TenantScopeMiddleware) { t.metrics = m }
}

// NewTenantScopeMiddleware creates the middleware. cacheTTL bounds how
// long a resolved tenant may be served without a store read; zero disables
// caching.
func NewTenantScopeMiddleware(service *tenants.Service, cacheTTL time.Duration, opts ...TenantScopeOption) *TenantScopeMiddleware {
	m := &TenantScopeMiddleware{tenants: service}
	if cacheTTL > 0 {
		m.cache = expirable.NewLRU[string, *tenants.Tenant](tenantCacheSize, nil, cacheTTL)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps next with tenant resolution.
func (m *TenantScopeMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested := r.Header.Get(TenantHeader)
		if requested == "" {
			requested = r.URL.Query().Get("tenant_id")
		}

		tenantID := requested
		if session := SessionFromContext(r.Context()); session != nil {
			if requested != "" && requested != session.TenantID {
				httputil.WriteForbidden(w, "tenant does not match session")
				return
			}
			tenantID = session.TenantID
		}
		if tenantID == "" {
			httputil.WriteBadRequest(w, "no tenant specified")
			return
		}

		tenant, err := m.resolve(r.Context(), tenantID)
		switch {
		case errors.Is(err, tenants.ErrTenantNotFound):
			httputil.WriteNotFoundError(w, "tenant not found")
			return
		case err != nil:
			httputil.WriteServiceUnavailable(w, "tenant store unavailable")
			return
		}

		ctx := contextkeys.WithTenant(r.Context(), tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *TenantScopeMiddleware) resolve(ctx context.Context, tenantID string) (*tenants.Tenant, error) {
	if m.cache != nil {
		if tenant, ok := m.cache.Get(tenantID); ok {
			if m.metrics != nil {
				m.metrics.TenantCacheHitsTotal.Inc()
			}
			return tenant, nil
		}
		if m.metrics != nil {
			m.metrics.TenantCacheMissesTotal.Inc()
		}
	}

	tenant, err := m.tenants.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		m.cache.Add(tenantID, tenant)
	}
	return tenant, nil
}

// Invalidate drops a tenant from the resolution cache, called after
// directory mutations so changes show up without waiting out the TTL.
func (m *TenantScopeMiddleware) Invalidate(tenantID string) {
	if m.cache != nil {
		m.cache.Remove(tenantID)
	}
}

// TenantFromContext returns the resolved tenant, or nil outside a
// tenant-scoped route.
func TenantFromContext(ctx context.Context) *tenants.Tenant {
	tenant, _ := ctx.Value(contextkeys.TenantKey).(*tenants.Tenant)
	return tenant
}
