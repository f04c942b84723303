package api

import (
	"time"

	"github.com/trackgate/trackgate/pkg/tenants"
)

// LoginRequest carries credentials for POST /auth/login.
type LoginRequest struct {
	TenantID string `json:"tenant_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse returns the opaque session token. The token appears here
// exactly once; it cannot be retrieved again.
type LoginResponse struct {
	Token     string    `json:"token"`
	TenantID  string    `json:"tenant_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AddUserRequest carries a new user for POST /tenants/{id}/users.
type AddUserRequest struct {
	Username string       `json:"username"`
	Password string       `json:"password"`
	Role     tenants.Role `json:"role"`
}

// ListTenantsResponse wraps GET /tenants.
type ListTenantsResponse struct {
	Tenants []string `json:"tenants"`
}

// ListUsersResponse wraps GET /tenants/{id}/users. Credential digests are
// never serialized here.
type ListUsersResponse struct {
	Users map[string]tenants.UserInfo `json:"users"`
}
