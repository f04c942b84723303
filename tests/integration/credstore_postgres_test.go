//go:build integration
// +build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/trackgate/trackgate/pkg/credstore"
	"github.com/trackgate/trackgate/pkg/password"
	"github.com/trackgate/trackgate/pkg/tenants"
)

func setupPostgresStore(t *testing.T) *credstore.PostgresStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("trackgate"),
		postgres.WithUsername("trackgate"),
		postgres.WithPassword("trackgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		container.Terminate(cleanupCtx)
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := credstore.NewPostgresStore(credstore.PostgresConfig{
		URL:      url,
		MaxConns: 10,
		Timeout:  30 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	doc, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, doc)

	err = store.Update(ctx, func(doc tenants.Document) error {
		doc["acme"] = &tenants.Tenant{
			Name:         "Acme Corp",
			TrackingURI:  "postgresql://mlflow:5432/tracking",
			ArtifactRoot: "/srv/artifacts/acme",
			CreatedAt:    time.Now().UTC(),
			Users: map[string]tenants.User{
				"alice": {HashedPassword: "$2a$10$digest", Role: tenants.RoleAdmin, CreatedAt: time.Now().UTC()},
			},
		}
		return nil
	})
	require.NoError(t, err)

	doc, err = store.Read(ctx)
	require.NoError(t, err)
	require.Contains(t, doc, "acme")
	assert.Equal(t, "acme", doc["acme"].ID)
	assert.Equal(t, tenants.RoleAdmin, doc["acme"].Users["alice"].Role)
}

func TestPostgresStoreConcurrentUpdates(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	// The row lock must serialize read-modify-write cycles; no update may
	// clobber another.
	const writers = 10
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := store.Update(ctx, func(doc tenants.Document) error {
				id := string(rune('a'+n)) + "_tenant"
				doc[id] = &tenants.Tenant{Name: id, Users: map[string]tenants.User{}}
				return nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	doc, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, doc, writers)
}

func TestTenantServiceOnPostgres(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	hasher := password.NewBcryptHasher(bcrypt.MinCost)
	service := tenants.NewService(store, hasher)

	_, err := service.Create(ctx, tenants.CreateTenantRequest{
		ID:            "acme",
		Name:          "Acme Corp",
		TrackingURI:   "postgresql://mlflow:5432/tracking",
		ArtifactRoot:  "/srv/artifacts/acme",
		AdminUsername: "alice",
		AdminPassword: "alice-pass",
	})
	require.NoError(t, err)

	_, err = service.Create(ctx, tenants.CreateTenantRequest{
		ID:            "acme",
		Name:          "Again",
		TrackingURI:   "postgresql://mlflow:5432/tracking",
		ArtifactRoot:  "/srv/artifacts/acme",
		AdminUsername: "bob",
		AdminPassword: "bob-pass",
	})
	assert.ErrorIs(t, err, tenants.ErrTenantExists)

	require.NoError(t, service.AddUser(ctx, "acme", "bob", "bob-pass", tenants.RoleViewer))

	users, err := service.ListUsers(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
