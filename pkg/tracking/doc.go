// Package tracking connects tenant-scoped requests to the experiment
// tracking backend.
//
// The backend is an opaque external collaborator; this package does not
// implement its wire protocol beyond a thin forwarding client. What it
// does own is the scoping rule: a backend connection is only ever derived
// from the tenant resolved for the current request, so a request scoped to
// tenant A can never address tenant B's backend or artifact storage.
package tracking
