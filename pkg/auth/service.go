package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/trackgate/trackgate/pkg/observability"
	"github.com/trackgate/trackgate/pkg/password"
	"github.com/trackgate/trackgate/pkg/tenants"
)

var (
	// ErrAuthenticationFailed is the single externally visible login
	// failure. Unknown tenant, unknown user and wrong password all map
	// here; the distinction is logged server side only.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrTooManyAttempts is returned when the login throttle trips.
	ErrTooManyAttempts = errors.New("too many login attempts")

	// ErrPermissionDenied is returned when a session's role does not
	// allow the requested operation.
	ErrPermissionDenied = errors.New("permission denied")
)

// Operation is an action a session can be authorized for.
type Operation string

const (
	OpViewExperiments Operation = "experiments:view"
	OpViewRuns        Operation = "runs:view"
	OpViewModels      Operation = "models:view"
	OpTriggerTraining Operation = "training:trigger"
	OpManageUsers     Operation = "users:manage"
	OpViewTenant      Operation = "tenant:view"
)

// rolePermissions is the closed permission table. Viewers read; admins
// additionally trigger training and manage the user directory.
var rolePermissions = map[tenants.Role]map[Operation]bool{
	tenants.RoleViewer: {
		OpViewExperiments: true,
		OpViewRuns:        true,
		OpViewModels:      true,
		OpViewTenant:      true,
	},
	tenants.RoleAdmin: {
		OpViewExperiments: true,
		OpViewRuns:        true,
		OpViewModels:      true,
		OpViewTenant:      true,
		OpTriggerTraining: true,
		OpManageUsers:     true,
	},
}

// dummyDigest is compared against when the user does not exist, so the
// missing-user path costs the same as a wrong password.
const dummyDigest = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Service authenticates users and authorizes operations.
type Service struct {
	tenants  *tenants.Service
	sessions *SessionStore
	hasher   password.Hasher
	throttle LoginThrottle
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithThrottle sets the login throttle
func WithThrottle(t LoginThrottle) ServiceOption {
	return func(s *Service) { s.throttle = t }
}

// WithServiceLogger sets the structured logger
func WithServiceLogger(logger *observability.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithServiceMetrics enables authentication metrics
func WithServiceMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the auth service.
func NewService(directory *tenants.Service, sessions *SessionStore, hasher password.Hasher, opts ...ServiceOption) *Service {
	s := &Service{
		tenants:  directory,
		sessions: sessions,
		hasher:   hasher,
		logger:   observability.NewLogger(observability.InfoLevel, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate verifies credentials against the tenant's user directory
// and mints a session. The returned token is shown to the caller exactly
// once; only its hash is retained.
func (s *Service) Authenticate(ctx context.Context, tenantID, username, plaintext string) (*Session, string, error) {
	throttleKey := tenantID + ":" + username
	if s.throttle != nil {
		allowed, err := s.throttle.Allow(ctx, throttleKey)
		if err != nil {
			s.logger.WithError(err).Warn("login throttle unavailable, failing open")
		}
		if !allowed {
			if s.metrics != nil {
				s.metrics.AuthThrottledTotal.Inc()
			}
			s.logger.WithField("tenant_id", tenantID).
				WithField("username", username).
				Warn("login throttled")
			return nil, "", ErrTooManyAttempts
		}
	}

	user, err := s.tenants.GetUser(ctx, tenantID, username)
	switch {
	case errors.Is(err, tenants.ErrTenantNotFound):
		s.hasher.Verify(plaintext, dummyDigest)
		return nil, "", s.fail(tenantID, username, "unknown_tenant")
	case errors.Is(err, tenants.ErrUserNotFound):
		s.hasher.Verify(plaintext, dummyDigest)
		return nil, "", s.fail(tenantID, username, "unknown_user")
	case err != nil:
		return nil, "", fmt.Errorf("failed to load user directory: %w", err)
	}

	if !s.hasher.Verify(plaintext, user.HashedPassword) {
		return nil, "", s.fail(tenantID, username, "wrong_password")
	}

	if s.throttle != nil {
		if err := s.throttle.Reset(ctx, throttleKey); err != nil {
			s.logger.WithError(err).Warn("failed to reset login throttle")
		}
	}

	token, tokenHash, err := GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to mint session token: %w", err)
	}
	session := s.sessions.Create(tokenHash, tenantID, username, user.Role)

	if s.metrics != nil {
		s.metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
	}
	s.logger.WithField("tenant_id", tenantID).
		WithField("username", username).
		WithField("role", string(user.Role)).
		Info("login succeeded")

	return session, token, nil
}

// fail records the internal failure cause and returns the collapsed error.
func (s *Service) fail(tenantID, username, cause string) error {
	if s.metrics != nil {
		s.metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
	}
	s.logger.WithField("tenant_id", tenantID).
		WithField("username", username).
		WithField("cause", cause).
		Warn("login failed")
	return ErrAuthenticationFailed
}

// Resolve returns the active session behind a presented token.
func (s *Service) Resolve(token string) (*Session, error) {
	if err := ValidateTokenFormat(token); err != nil {
		return nil, ErrSessionNotFound
	}
	return s.sessions.Get(HashToken(token))
}

// Logout invalidates the session behind the token. Unknown or already
// expired tokens are a no-op.
func (s *Service) Logout(token string) {
	if err := ValidateTokenFormat(token); err != nil {
		return
	}
	s.sessions.Delete(HashToken(token))
}

// Authorize checks that the session's role permits op. Roles outside the
// closed set deny everything.
func (s *Service) Authorize(session *Session, op Operation) error {
	if session == nil {
		return ErrPermissionDenied
	}
	perms, ok := rolePermissions[session.Role]
	if !ok || !perms[op] {
		return fmt.Errorf("%w: role %q cannot %s", ErrPermissionDenied, session.Role, op)
	}
	return nil
}
