// Package artifacts provisions per-tenant artifact roots.
//
// An artifact root is an opaque location string stored on the tenant
// record. At tenant creation the gateway makes sure the location exists:
// local paths get the directory tree created, s3:// roots get a marker
// object written under the tenant prefix. ForRoot picks the provider from
// the root's scheme.
package artifacts
