// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	TRACKGATE_HOST="0.0.0.0"
//	TRACKGATE_PORT="8080"
//	TRACKGATE_HEALTH_PORT="9090"
//	TRACKGATE_READ_TIMEOUT="15s"
//	TRACKGATE_WRITE_TIMEOUT="15s"
//
// Credential store settings:
//
//	TRACKGATE_STORE_TYPE="file"  # file, postgres
//	TRACKGATE_STORE_FILE="/var/lib/trackgate/tenants.json"
//	TRACKGATE_STORE_WATCH="false"
//	TRACKGATE_POSTGRES_URL="postgres://localhost/trackgate"
//	TRACKGATE_POSTGRES_MAX_CONNS="20"
//
// Authentication settings:
//
//	TRACKGATE_BCRYPT_COST="10"
//	TRACKGATE_SESSION_TTL="12h"
//	TRACKGATE_SESSION_SWEEP_SCHEDULE="@every 5m"
//	TRACKGATE_LOGIN_ATTEMPTS="10"
//	TRACKGATE_LOGIN_WINDOW="1m"
//	TRACKGATE_REDIS_URL="redis://localhost:6379"  # optional, multi-instance throttling
//
// Tenant tracking defaults (optional; applied when tenant creation omits
// the tracking URI or artifact root):
//
//	TRACKGATE_TRACKING_BASE_URI="postgresql://mlflow-db:5432/tracking"
//	TRACKGATE_ARTIFACT_ROOT_BASE="/srv/artifacts"
//
// Artifact provisioning settings:
//
//	TRACKGATE_S3_ENDPOINT=""  # optional, custom S3-compatible endpoint
//	TRACKGATE_S3_REGION="us-east-1"
//	TRACKGATE_S3_USE_PATH_STYLE="false"
//
// Observability settings:
//
//	TRACKGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	TRACKGATE_METRICS_ENABLED="true"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
