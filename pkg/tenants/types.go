package tenants

import (
	"errors"
	"time"
)

// Role represents a user's access level within a tenant
type Role string

const (
	// RoleAdmin has full control of the tenant, including user management
	RoleAdmin Role = "admin"
	// RoleViewer has read-only access to tenant-scoped data
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the closed enum values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleViewer
}

// User represents a user account within a tenant. The map key in
// Tenant.Users is the username; it is unique per tenant only.
type User struct {
	HashedPassword string    `json:"hashed_password"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// Tenant represents an isolated customer unit. The JSON field names are the
// persisted document format and must not change: existing stores depend on
// them (the tracking URI key is "mlflow_uri" for historical reasons).
type Tenant struct {
	ID           string          `json:"-"`
	Name         string          `json:"name"`
	Users        map[string]User `json:"users"`
	TrackingURI  string          `json:"mlflow_uri"`
	ArtifactRoot string          `json:"artifact_root"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	out := *t
	out.Users = make(map[string]User, len(t.Users))
	for name, u := range t.Users {
		out.Users[name] = u
	}
	return &out
}

// Document is the full persisted registry, keyed by tenant_id. It is the
// unit of atomicity for the credential store: every write replaces the
// whole document.
type Document map[string]*Tenant

// Clone returns a deep copy of the document so callers can mutate a
// snapshot without racing concurrent readers.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for id, t := range d {
		c := t.Clone()
		c.ID = id
		out[id] = c
	}
	return out
}

// UserInfo is the listing view of a user; the credential digest is never
// part of it.
type UserInfo struct {
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantInfo is the external view of a tenant returned by the HTTP surface.
type TenantInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TrackingURI  string    `json:"tracking_uri"`
	ArtifactRoot string    `json:"artifact_root"`
	CreatedAt    time.Time `json:"created_at"`
	UserCount    int       `json:"user_count"`
}

// Info converts a tenant to its external view.
func (t *Tenant) Info() TenantInfo {
	return TenantInfo{
		ID:           t.ID,
		Name:         t.Name,
		TrackingURI:  t.TrackingURI,
		ArtifactRoot: t.ArtifactRoot,
		CreatedAt:    t.CreatedAt,
		UserCount:    len(t.Users),
	}
}

var (
	// ErrTenantExists is returned when creating a tenant whose id is taken
	ErrTenantExists = errors.New("tenant already exists")
	// ErrTenantNotFound is returned when the tenant id is not in the registry
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrUserExists is returned when adding a username already present in the tenant
	ErrUserExists = errors.New("username already exists")
	// ErrUserNotFound is returned when the username is not in the tenant
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidRole is returned for a role outside the closed enum
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidInput is returned for empty or malformed required fields
	ErrInvalidInput = errors.New("invalid input")
)
