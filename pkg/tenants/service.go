package tenants

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/password"
)

// ArtifactProvisioner prepares a tenant's artifact root at creation time.
// pkg/artifacts provides filesystem- and S3-backed implementations.
type ArtifactProvisioner interface {
	Ensure(ctx context.Context, artifactRoot string) error
}

// tenantIDPattern constrains tenant ids to identifiers that are safe as
// backend schema names and storage path segments.
var tenantIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// Service manages the tenant registry and per-tenant user directory.
type Service struct {
	store              Store
	hasher             password.Hasher
	artifacts          ArtifactProvisioner
	defaultTrackingURI func(tenantID string) (string, error)
	defaultArtifacts   func(tenantID string) string
	logger             *observability.Logger
	metrics            *observability.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithArtifactProvisioner makes tenant creation provision the artifact root
func WithArtifactProvisioner(p ArtifactProvisioner) Option {
	return func(s *Service) { s.artifacts = p }
}

// WithTrackingURIDefault supplies a derivation for tenants created without
// an explicit tracking URI, typically schema-per-tenant on a shared backend.
func WithTrackingURIDefault(fn func(tenantID string) (string, error)) Option {
	return func(s *Service) { s.defaultTrackingURI = fn }
}

// WithArtifactRootDefault supplies a derivation for tenants created without
// an explicit artifact root.
func WithArtifactRootDefault(fn func(tenantID string) string) Option {
	return func(s *Service) { s.defaultArtifacts = fn }
}

// WithLogger sets the structured logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables tenant/user gauges
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a tenant service backed by the given store and hasher.
func NewService(store Store, hasher password.Hasher, opts ...Option) *Service {
	s := &Service{
		store:  store,
		hasher: hasher,
		logger: observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTenantRequest carries everything needed to create a tenant with its
// initial admin user.
type CreateTenantRequest struct {
	ID            string `json:"tenant_id"`
	Name          string `json:"name"`
	TrackingURI   string `json:"tracking_uri"`
	ArtifactRoot  string `json:"artifact_root"`
	AdminUsername string `json:"admin_username"`
	AdminPassword string `json:"admin_password"`
}

func (r *CreateTenantRequest) validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if r.TrackingURI == "" {
		return fmt.Errorf("%w: tracking URI is required", ErrInvalidInput)
	}
	if r.ArtifactRoot == "" {
		return fmt.Errorf("%w: artifact root is required", ErrInvalidInput)
	}
	if r.AdminUsername == "" {
		return fmt.Errorf("%w: admin username is required", ErrInvalidInput)
	}
	if r.AdminPassword == "" {
		return fmt.Errorf("%w: admin password is required", ErrInvalidInput)
	}
	return nil
}

// Create registers a new tenant with exactly one initial admin user. The
// existence check and the write happen inside a single store Update, so of
// two concurrent creators of the same id exactly one succeeds and the other
// gets ErrTenantExists. The tenant and its admin persist in one write; a
// tenant without users is never observable.
//
// A request without a tracking URI or artifact root uses the configured
// derivations when present; the id is validated first because the derived
// values embed it.
func (s *Service) Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error) {
	if !tenantIDPattern.MatchString(req.ID) {
		return nil, fmt.Errorf("%w: tenant id must match %s", ErrInvalidInput, tenantIDPattern)
	}
	if req.TrackingURI == "" && s.defaultTrackingURI != nil {
		uri, err := s.defaultTrackingURI(req.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to derive tracking URI: %w", err)
		}
		req.TrackingURI = uri
	}
	if req.ArtifactRoot == "" && s.defaultArtifacts != nil {
		req.ArtifactRoot = s.defaultArtifacts(req.ID)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(req.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	now := time.Now().UTC()
	tenant := &Tenant{
		ID:           req.ID,
		Name:         req.Name,
		TrackingURI:  req.TrackingURI,
		ArtifactRoot: req.ArtifactRoot,
		CreatedAt:    now,
		Users: map[string]User{
			req.AdminUsername: {
				HashedPassword: digest,
				Role:           RoleAdmin,
				CreatedAt:      now,
			},
		},
	}

	err = s.store.Update(ctx, func(doc Document) error {
		if _, exists := doc[req.ID]; exists {
			return ErrTenantExists
		}
		doc[req.ID] = tenant
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.artifacts != nil {
		if err := s.artifacts.Ensure(ctx, tenant.ArtifactRoot); err != nil {
			// The tenant record is already durable; the root can be
			// provisioned lazily on first artifact write.
			s.logger.WithError(err).
				WithField("tenant_id", tenant.ID).
				Warn("failed to provision artifact root")
		}
	}

	s.logger.WithField("tenant_id", tenant.ID).
		WithField("admin_username", req.AdminUsername).
		Info("tenant created")
	s.updateGauges(ctx)

	return tenant.Clone(), nil
}

// Get returns the tenant with the given id, or ErrTenantNotFound.
func (s *Service) Get(ctx context.Context, tenantID string) (*Tenant, error) {
	doc, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	tenant, ok := doc[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	t := tenant.Clone()
	t.ID = tenantID
	return t, nil
}

// List returns all tenant ids in document order; no sorting is guaranteed.
func (s *Service) List(ctx context.Context) ([]string, error) {
	doc, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	return ids, nil
}

// AddUser adds a user to a tenant. The role is validated before storage is
// touched; uniqueness is checked inside the store Update critical section.
func (s *Service) AddUser(ctx context.Context, tenantID, username, plaintext string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if plaintext == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.store.Update(ctx, func(doc Document) error {
		tenant, ok := doc[tenantID]
		if !ok {
			return ErrTenantNotFound
		}
		if _, exists := tenant.Users[username]; exists {
			return ErrUserExists
		}
		tenant.Users[username] = User{
			HashedPassword: digest,
			Role:           role,
			CreatedAt:      time.Now().UTC(),
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.WithField("tenant_id", tenantID).
		WithField("username", username).
		WithField("role", string(role)).
		Info("user added")
	s.updateGauges(ctx)

	return nil
}

// ListUsers returns the tenant's users keyed by username. Credential
// digests are never part of the listing.
func (s *Service) ListUsers(ctx context.Context, tenantID string) (map[string]UserInfo, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	users := make(map[string]UserInfo, len(tenant.Users))
	for name, u := range tenant.Users {
		users[name] = UserInfo{Role: u.Role, CreatedAt: u.CreatedAt}
	}
	return users, nil
}

// GetUser returns a single user record within a tenant. Callers that only
// need listing data should use ListUsers; this is the authentication path
// and includes the credential digest.
func (s *Service) GetUser(ctx context.Context, tenantID, username string) (User, error) {
	tenant, err := s.Get(ctx, tenantID)
	if err != nil {
		return User{}, err
	}
	user, ok := tenant.Users[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) updateGauges(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	doc, err := s.store.Read(ctx)
	if err != nil {
		return
	}
	users := 0
	for _, t := range doc {
		users += len(t.Users)
	}
	s.metrics.TenantsTotal.Set(float64(len(doc)))
	s.metrics.UsersTotal.Set(float64(users))
}
