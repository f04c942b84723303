package credstore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackgate/trackgate/pkg/tenants"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	return store
}

func sampleDocument() tenants.Document {
	return tenants.Document{
		"acme": &tenants.Tenant{
			ID:           "acme",
			Name:         "Acme Corp",
			TrackingURI:  "postgresql://mlflow:5432/tracking",
			ArtifactRoot: "/srv/artifacts/acme",
			Users: map[string]tenants.User{
				"alice": {HashedPassword: "$2a$10$digest", Role: tenants.RoleAdmin},
			},
		},
	}
}

func TestFileStoreMissingFileReadsEmpty(t *testing.T) {
	store := newTestFileStore(t)

	doc, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, doc)
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, sampleDocument()))

	// Reload through a fresh store so the cached snapshot is not what we
	// are asserting on.
	reopened, err := NewFileStore(store.Path())
	require.NoError(t, err)
	doc, err := reopened.Read(ctx)
	require.NoError(t, err)

	require.Contains(t, doc, "acme")
	tenant := doc["acme"]
	assert.Equal(t, "acme", tenant.ID)
	assert.Equal(t, "Acme Corp", tenant.Name)
	assert.Equal(t, "postgresql://mlflow:5432/tracking", tenant.TrackingURI)
	assert.Equal(t, tenants.RoleAdmin, tenant.Users["alice"].Role)
}

func TestFileStorePersistedShape(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, store.Write(context.Background(), sampleDocument()))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	// The on-disk keys are the compatibility contract with earlier
	// deployments and tooling that reads the file directly.
	assert.Contains(t, string(data), `"mlflow_uri"`)
	assert.Contains(t, string(data), `"hashed_password"`)
	assert.NotContains(t, string(data), `"ID"`)
}

func TestFileStoreBackupWrittenBeforeRewrite(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	first := sampleDocument()
	require.NoError(t, store.Write(ctx, first))

	second := first.Clone()
	second["globex"] = &tenants.Tenant{Name: "Globex", Users: map[string]tenants.User{}}
	require.NoError(t, store.Write(ctx, second))

	backup, err := os.ReadFile(store.Path() + backupSuffix)
	require.NoError(t, err)
	assert.Contains(t, string(backup), "Acme Corp")
	assert.NotContains(t, string(backup), "Globex")
}

func TestFileStoreRecoversFromBackup(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, sampleDocument()))
	require.NoError(t, store.Write(ctx, sampleDocument())) // creates the .bak

	require.NoError(t, os.WriteFile(store.Path(), []byte("{ not json"), 0600))

	reopened, err := NewFileStore(store.Path())
	require.NoError(t, err)
	doc, err := reopened.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc, "acme")
}

func TestFileStoreCorruptWithoutBackup(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{ not json"), 0600))

	_, err := store.Read(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreCorruptPrimaryAndBackup(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{ not json"), 0600))
	require.NoError(t, os.WriteFile(store.Path()+backupSuffix, []byte("also broken"), 0600))

	_, err := store.Read(context.Background())
	assert.ErrorIs(t, err, ErrCorrupt)

	err = store.Update(context.Background(), func(tenants.Document) error { return nil })
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestFileStoreUpdateAbortLeavesFileUntouched(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, sampleDocument()))

	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	wantErr := assert.AnError
	err = store.Update(ctx, func(doc tenants.Document) error {
		delete(doc, "acme")
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	doc, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, doc, "acme")
}

func TestFileStoreConcurrentUpdates(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	const writers = 16
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

func TestFileStoreReadReturnsCopy(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, sampleDocument()))

	doc, err := store.Read(ctx)
	require.NoError(t, err)
	delete(doc, "acme")

	again, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, again, "acme")
}

func TestFileStoreInvalidatePicksUpExternalChange(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, sampleDocument()))

	// Simulate an external writer replacing the file.
	other, err := NewFileStore(store.Path())
	require.NoError(t, err)
	doc := sampleDocument()
	doc["globex"] = &tenants.Tenant{Name: "Globex", Users: map[string]tenants.User{}}
	require.NoError(t, other.Write(ctx, doc))

	// Cached snapshot still serves the old view until invalidated.
	stale, err := store.Read(ctx)
	require.NoError(t, err)
	assert.NotContains(t, stale, "globex")

	store.invalidate()
	fresh, err := store.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, fresh, "globex")
}

func TestFileStorePing(t *testing.T) {
	store := newTestFileStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
