// Package auth implements authentication and authorization for the gateway.
//
// Authenticate verifies a username and password against a tenant's user
// directory and mints an opaque session token. All failure causes collapse
// into ErrAuthenticationFailed on the wire; the distinguishing detail is
// logged server side only, so callers cannot probe which tenants or
// usernames exist. Repeated failures per tenant and user are throttled.
//
// Sessions are held server side, keyed by the SHA-256 hash of the token.
// The client holds only the opaque token; nothing about tenant or role is
// ever derivable from it. A cron sweeper purges expired sessions.
//
// Authorize gates operations on the session's role. Roles form a closed
// set (admin, viewer) and the permission table lives in this package.
package auth
