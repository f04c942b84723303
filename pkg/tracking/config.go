package tracking

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/trackgate/trackgate/pkg/tenants"
)

// ErrNoTenant is returned when a backend config is requested outside a
// tenant-scoped request.
var ErrNoTenant = errors.New("no tenant in scope")

// ClientConfig is everything a backend call needs. Both fields come from
// the scoped tenant's record and from nowhere else.
type ClientConfig struct {
	TrackingURI  string
	ArtifactRoot string
}

// ConfigFor derives the backend config for the scoped tenant.
func ConfigFor(tenant *tenants.Tenant) (ClientConfig, error) {
	if tenant == nil {
		return ClientConfig{}, ErrNoTenant
	}
	return ClientConfig{
		TrackingURI:  tenant.TrackingURI,
		ArtifactRoot: tenant.ArtifactRoot,
	}, nil
}

// SchemaTrackingURI builds a per-tenant postgres tracking URI on a shared
// database by pinning search_path to a schema named after the tenant. Used
// when tenant creation supplies no explicit URI.
func SchemaTrackingURI(baseURI, tenantID string) (string, error) {
	u, err := url.Parse(baseURI)
	if err != nil {
		return "", fmt.Errorf("invalid base tracking URI: %w", err)
	}
	if !strings.HasPrefix(u.Scheme, "postgresql") && !strings.HasPrefix(u.Scheme, "postgres") {
		return "", fmt.Errorf("schema-per-tenant URIs require a postgres base, got %q", u.Scheme)
	}
	q := u.Query()
	q.Set("options", "-csearch_path="+tenantID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
