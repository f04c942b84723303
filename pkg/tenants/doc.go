// Package tenants provides multi-tenant registry and user directory
// management for the Trackgate control plane.
//
// # Overview
//
// A tenant is an isolated customer unit: a display name, a tracking-backend
// URI, an artifact root, and a set of users. Users exist only within their
// owning tenant; usernames are unique per tenant, not globally. Every tenant
// is created with exactly one initial admin user, atomically with the tenant
// itself.
//
// # Roles
//
// Role is a closed enum with exactly two values:
//
//   - admin: full control, including user management
//   - viewer: read-only access to tenant-scoped data
//
// # Persistence
//
// The whole registry is one Document (tenant_id -> Tenant) persisted through
// a Store (pkg/credstore). Read-modify-write sequences such as Create and
// AddUser go through Store.Update so that two concurrent creators of the
// same tenant_id serialize and the loser observes the winner's write.
//
// # Usage Example
//
//	svc := tenants.NewService(store, hasher, tenants.WithLogger(logger))
//	tenant, err := svc.Create(ctx, tenants.CreateTenantRequest{
//		ID:            "acme",
//		Name:          "Acme Corp",
//		TrackingURI:   "postgresql://mlflow@db:5432/mlflow?options=-csearch_path=acme",
//		ArtifactRoot:  "/data/tenants/acme/artifacts",
//		AdminUsername: "admin",
//		AdminPassword: "pw123!",
//	})
//	if errors.Is(err, tenants.ErrTenantExists) {
//		// tenant_id taken, pick another
//	}
//
// # Related Packages
//
//   - pkg/credstore: Document persistence backends
//   - pkg/password: credential hashing
//   - pkg/auth: authentication against the directory
package tenants
