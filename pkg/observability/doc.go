// Package observability provides logging, metrics, health checks, and
// graceful shutdown for Trackgate services.
//
// # Logging
//
// Structured JSON logging backed by stdlib slog:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("tenant_id", id).Info("tenant created")
//
// Authentication code logs the precise failure kind (tenant missing, user
// missing, bad password) here and nowhere else; external callers only ever
// see a collapsed authentication failure.
//
// # Metrics
//
// Prometheus metrics for HTTP traffic, credential-store operations, and
// authentication outcomes. Register on a private registry and expose via
// the health server's /metrics endpoint.
//
// # Health
//
// Liveness and readiness probes with per-dependency status (credential
// store, redis), intended for a separate health port.
package observability
