package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/trackgate/trackgate/pkg/auth"
	"github.com/trackgate/trackgate/pkg/httputil"
	"github.com/trackgate/trackgate/pkg/middleware"
	"github.com/trackgate/trackgate/pkg/tenants"
)

// scopeInvalidator drops cached tenant resolutions after directory
// mutations so role changes take effect without waiting out the cache TTL.
type scopeInvalidator interface {
	Invalidate(tenantID string)
}

// TenantHandlers serves the tenant registry and user directory routes.
type TenantHandlers struct {
	tenants *tenants.Service
	auth    *auth.Service
	scope   scopeInvalidator
}

// NewTenantHandlers creates the handlers. scope may be nil when no tenant
// resolution cache is in front of the registry.
func NewTenantHandlers(tenantService *tenants.Service, authService *auth.Service, scope scopeInvalidator) *TenantHandlers {
	return &TenantHandlers{tenants: tenantService, auth: authService, scope: scope}
}

// CreateTenant handles POST /tenants.
func (h *TenantHandlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req tenants.CreateTenantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tenant, err := h.tenants.Create(r.Context(), req)
	switch {
	case errors.Is(err, tenants.ErrTenantExists):
		httputil.WriteConflict(w, "tenant already exists")
		return
	case errors.Is(err, tenants.ErrInvalidInput):
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	case err != nil:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to create tenant")
		return
	}

	httputil.WriteCreated(w, tenant.Info())
}

// ListTenants handles GET /tenants.
func (h *TenantHandlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	ids, err := h.tenants.List(r.Context())
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list tenants")
		return
	}
	httputil.WriteSuccess(w, ListTenantsResponse{Tenants: ids})
}

// GetTenant handles GET /tenants/{id}.
func (h *TenantHandlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tenant, err := h.tenants.Get(r.Context(), id)
	switch {
	case errors.Is(err, tenants.ErrTenantNotFound):
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	case err != nil:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to load tenant")
		return
	}
	httputil.WriteSuccess(w, tenant.Info())
}

// AddUser handles POST /tenants/{id}/users. Only an admin session of the
// same tenant may manage its directory.
func (h *TenantHandlers) AddUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if session.TenantID != id {
		httputil.WriteForbidden(w, "session is scoped to a different tenant")
		return
	}
	if err := h.auth.Authorize(session, auth.OpManageUsers); err != nil {
		httputil.WriteForbidden(w, "operation not permitted")
		return
	}

	var req AddUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.tenants.AddUser(r.Context(), id, req.Username, req.Password, req.Role)
	switch {
	case errors.Is(err, tenants.ErrInvalidRole):
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, tenants.ErrInvalidInput):
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, tenants.ErrTenantNotFound):
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	case errors.Is(err, tenants.ErrUserExists):
		httputil.WriteConflict(w, "user already exists")
		return
	case err != nil:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to add user")
		return
	}

	if h.scope != nil {
		h.scope.Invalidate(id)
	}
	w.WriteHeader(http.StatusCreated)
}

// ListUsers handles GET /tenants/{id}/users. Any session of the tenant may
// view the listing; it never includes credential digests.
func (h *TenantHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	session := middleware.SessionFromContext(r.Context())
	if session == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	if session.TenantID != id {
		httputil.WriteForbidden(w, "session is scoped to a different tenant")
		return
	}

	users, err := h.tenants.ListUsers(r.Context(), id)
	switch {
	case errors.Is(err, tenants.ErrTenantNotFound):
		httputil.WriteNotFoundError(w, "tenant not found")
		return
	case err != nil:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	httputil.WriteSuccess(w, ListUsersResponse{Users: users})
}
