// Package testutil provides databases, stores and seeded models for tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/infrastructure/sqlite"
	"github.com/zimmed/zimmed-core/internal/store"
)

// NewTestDB creates a migrated sqlite database in a temp directory. It is
// closed when the test ends.
func NewTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "zcore.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewTestStore creates a store over repo with sequential ids and a catalog
// holding the given transforms. A nil repo uses a MemoryRepository.
func NewTestStore(t *testing.T, repo store.ModelRepository, transforms ...datamodel.Transform) *store.Store {
	t.Helper()
	if repo == nil {
		repo = store.NewMemoryRepository()
	}
	catalog := datamodel.NewCatalog()
	require.NoError(t, catalog.Add(transforms...))
	return store.New(repo, store.Options{
		IDs:     NewSequence("id"),
		Catalog: catalog,
	})
}
