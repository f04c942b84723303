package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/trackgate/trackgate/pkg/auth"
	"github.com/trackgate/trackgate/pkg/password"
	"github.com/trackgate/trackgate/pkg/tenants"
)

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

type testEnv struct {
	directory *tenants.Service
	auth      *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
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

	sessions := auth.NewSessionStore(time.Hour)
	return &testEnv{
		directory: directory,
		auth:      auth.NewService(directory, sessions, hasher),
	}
}

func (e *testEnv) login(t *testing.T, username, pass string) string {
	t.Helper()
	_, token, err := e.auth.Authenticate(context.Background(), "acme", username, pass)
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddlewareValidToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice-pass")

	var captured *auth.Session
	handler := NewSessionMiddleware(env.auth, false).Handler(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = SessionFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	req := httptest.NewRequest(http.MethodGet, "/experiments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "alice", captured.Username)
	assert.Equal(t, "acme", captured.TenantID)
}

func TestSessionMiddlewareRejections(t *testing.T) {
	env := newTestEnv(t)
	handler := NewSessionMiddleware(env.auth, false).Handler(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer tg_bm90LWEtcmVhbC10b2tlbg"},
		{"malformed token", "Bearer what"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/experiments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestSessionMiddlewareOptional(t *testing.T) {
	env := newTestEnv(t)
	handler := NewSessionMiddleware(env.auth, true).Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/tenants", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSessionMiddlewareLoggedOutToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "alice", "alice-pass")
	env.auth.Logout(token)

	handler := NewSessionMiddleware(env.auth, false).Handler(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/experiments", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireOperation(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.directory.AddUser(context.Background(), "acme", "bob", "bob-pass", tenants.RoleViewer))

	sessionMW := NewSessionMiddleware(env.auth, false)
	guarded := sessionMW.Handler(
		RequireOperation(env.auth, auth.OpTriggerTraining)(okHandler()))

	adminToken := env.login(t, "alice", "alice-pass")
	viewerToken := env.login(t, "bob", "bob-pass")

	req := httptest.NewRequest(http.MethodPost, "/train", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/train", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken)
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireOperationWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	handler := RequireOperation(env.auth, auth.OpViewExperiments)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/experiments", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
