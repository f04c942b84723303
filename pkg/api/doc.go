// Package api exposes the gateway's HTTP surface.
//
// Routes split into three groups. Tenant administration (/tenants) manages
// the registry and user directories. Authentication (/auth) issues and
// revokes session tokens. The tenant-scoped group (/experiments, /models,
// /train) requires a resolved tenant and proxies to that tenant's tracking
// backend; it never sees any other tenant's connection details.
package api
