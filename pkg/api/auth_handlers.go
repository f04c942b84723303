package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/trackgate/trackgate/pkg/auth"
	"github.com/trackgate/trackgate/pkg/httputil"
)

// AuthHandlers serves login and logout.
type AuthHandlers struct {
	auth *auth.Service
}

// NewAuthHandlers creates the handlers.
func NewAuthHandlers(authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{auth: authService}
}

// RegisterRoutes registers authentication routes.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/auth/logout", h.Logout).Methods("POST")
}

// Login handles POST /auth/login. Every failed attempt gets the same 401
// regardless of cause.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.TenantID == "" || req.Username == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "tenant_id, username and password are required")
		return
	}

	session, token, err := h.auth.Authenticate(r.Context(), req.TenantID, req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrTooManyAttempts):
		httputil.WriteTooManyRequests(w, "too many login attempts")
		return
	case errors.Is(err, auth.ErrAuthenticationFailed):
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	case err != nil:
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "login unavailable")
		return
	}

	httputil.WriteSuccess(w, LoginResponse{
		Token:     token,
		TenantID:  session.TenantID,
		Username:  session.Username,
		Role:      string(session.Role),
		ExpiresAt: session.ExpiresAt,
	})
}

// Logout handles POST /auth/logout. Always 204: revoking an unknown or
// expired token is indistinguishable from revoking a live one.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		h.auth.Logout(parts[1])
	}
	httputil.WriteNoContent(w)
}
