package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trackgate/trackgate/pkg/password"
	"github.com/trackgate/trackgate/pkg/tenants"
)

// memStore mirrors the credential store contract for in-process tests.
type memStore struct {
	mu  sync.RWMutex
	doc tenants.Document
}

func (m *memStore) Read(ctx context.Context) (tenants.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.doc.Clone(), nil
}

func (m *memStore) Write(ctx context.Context, doc tenants.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc.Clone()
	return nil
}

func (m *memStore) Update(ctx context.Context, fn func(tenants.Document) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	working := m.doc.Clone()
	if err := fn(working); err != nil {
		return err
	}
	m.doc = working
	return nil
}

func newTestAuth(t *testing.T, opts ...ServiceOption) *Service {
	t.Helper()
	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	directory := tenants.NewService(&memStore{doc: tenants.Document{}}, hasher)

	_, err := directory.Create(context.Background(), tenants.CreateTenantRequest{
		ID:            "acme",
		Name:          "Acme Corp",
		TrackingURI:   "postgresql://mlflow:5432/tracking",
		ArtifactRoot:  "/srv/artifacts/acme",
		AdminUsername: "alice",
		AdminPassword: "alice-pass",
	})
	require.NoError(t, err)
	require.NoError(t, directory.AddUser(context.Background(), "acme", "bob", "bob-pass", tenants.RoleViewer))

	sessions := NewSessionStore(time.Hour)
	return NewService(directory, sessions, hasher, opts...)
}

func TestAuthenticateSuccess(t *testing.T) {
	svc := newTestAuth(t)

	session, token, err := svc.Authenticate(context.Background(), "acme", "alice", "alice-pass")
	require.NoError(t, err)
	assert.Equal(t, "acme", session.TenantID)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, tenants.RoleAdmin, session.Role)
	assert.NoError(t, ValidateTokenFormat(token))

	resolved, err := svc.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", resolved.Username)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	svc := newTestAuth(t)
	ctx := context.Background()

	// Unknown tenant, unknown user and wrong password must all surface
	// the same error so callers cannot enumerate accounts.
	_, _, errTenant := svc.Authenticate(ctx, "nope", "alice", "alice-pass")
	_, _, errUser := svc.Authenticate(ctx, "acme", "nobody", "alice-pass")
	_, _, errPassword := svc.Authenticate(ctx, "acme", "alice", "wrong")

	assert.ErrorIs(t, errTenant, ErrAuthenticationFailed)
	assert.ErrorIs(t, errUser, ErrAuthenticationFailed)
	assert.ErrorIs(t, errPassword, ErrAuthenticationFailed)
	assert.Equal(t, errTenant.Error(), errUser.Error())
	assert.Equal(t, errUser.Error(), errPassword.Error())
}

func TestAuthenticateIsolatedPerTenant(t *testing.T) {
	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	directory := tenants.NewService(&memStore{doc: tenants.Document{}}, hasher)
	ctx := context.Background()

	for _, id := range []string{"acme", "globex"} {
		_, err := directory.Create(ctx, tenants.CreateTenantRequest{
			ID:            id,
			Name:          id,
			TrackingURI:   "postgresql://mlflow:5432/tracking",
			ArtifactRoot:  "/srv/artifacts/" + id,
			AdminUsername: "root",
			AdminPassword: "root-pass-" + id,
		})
		require.NoError(t, err)
	}
	require.NoError(t, directory.AddUser(ctx, "acme", "bob", "bob-pass", tenants.RoleViewer))

	svc := NewService(directory, NewSessionStore(time.Hour), hasher)

	// bob exists in acme only; his credentials must not open a session
	// against another tenant even though that tenant exists.
	_, _, err := svc.Authenticate(ctx, "globex", "bob", "bob-pass")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	session, _, err := svc.Authenticate(ctx, "acme", "bob", "bob-pass")
	require.NoError(t, err)
	assert.Equal(t, "acme", session.TenantID)
}

func TestAuthenticateThrottled(t *testing.T) {
	svc := newTestAuth(t, WithThrottle(NewMemoryThrottle(2, time.Minute)))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _, err := svc.Authenticate(ctx, "acme", "alice", "wrong")
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	}

	// Third attempt trips the throttle even with the right password.
	_, _, err := svc.Authenticate(ctx, "acme", "alice", "alice-pass")
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// Another user in the same tenant still gets through.
	_, _, err = svc.Authenticate(ctx, "acme", "bob", "bob-pass")
	assert.NoError(t, err)
}

func TestAuthenticateSuccessResetsThrottle(t *testing.T) {
	svc := newTestAuth(t, WithThrottle(NewMemoryThrottle(3, time.Minute)))
	ctx := context.Background()

	_, _, err := svc.Authenticate(ctx, "acme", "alice", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)

	_, _, err = svc.Authenticate(ctx, "acme", "alice", "alice-pass")
	require.NoError(t, err)

	// The window restarts after success; three fresh attempts fit.
	for i := 0; i < 3; i++ {
		_, _, err = svc.Authenticate(ctx, "acme", "alice", "wrong")
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	}
}

func TestLogout(t *testing.T) {
	svc := newTestAuth(t)

	_, token, err := svc.Authenticate(context.Background(), "acme", "alice", "alice-pass")
	require.NoError(t, err)

	svc.Logout(token)
	_, err = svc.Resolve(token)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	svc.Logout(token) // idempotent
	svc.Logout("garbage")
}

func TestResolveRejectsMalformedTokens(t *testing.T) {
	svc := newTestAuth(t)

	_, err := svc.Resolve("not-a-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAuthorize(t *testing.T) {
	svc := newTestAuth(t)

	admin := &Session{Role: tenants.RoleAdmin}
	viewer := &Session{Role: tenants.RoleViewer}

	readOps := []Operation{OpViewExperiments, OpViewRuns, OpViewModels, OpViewTenant}
	for _, op := range readOps {
		assert.NoError(t, svc.Authorize(admin, op), string(op))
		assert.NoError(t, svc.Authorize(viewer, op), string(op))
	}

	adminOps := []Operation{OpTriggerTraining, OpManageUsers}
	for _, op := range adminOps {
		assert.NoError(t, svc.Authorize(admin, op), string(op))
		assert.ErrorIs(t, svc.Authorize(viewer, op), ErrPermissionDenied, string(op))
	}
}

func TestAuthorizeUnknownRoleDeniesEverything(t *testing.T) {
	svc := newTestAuth(t)

	rogue := &Session{Role: tenants.Role("superuser")}
	assert.ErrorIs(t, svc.Authorize(rogue, OpViewExperiments), ErrPermissionDenied)
	assert.ErrorIs(t, svc.Authorize(nil, OpViewExperiments), ErrPermissionDenied)
}
