// Package middleware provides the HTTP middleware chain for the gateway.
//
// Request flow on tenant-scoped routes:
//
//	RequestID -> Logging -> Recovery -> Session -> TenantScope -> handler
//
// SessionMiddleware resolves the Bearer token to a server-side session and
// stores it in the request context. TenantScopeMiddleware then resolves
// the tenant for the request: the session's tenant wins, then the
// X-Tenant-ID header, then the tenant_id query parameter. There is no
// default tenant; a request that names none is rejected.
package middleware
