package sqlite

import (
	"bytes"
	"testing"

	"github.com/golang-migrate/migrate/v4/database"
	"github.com/stretchr/testify/require"
)

func TestMigrationDriver_Lock(t *testing.T) {
	db := openTestDB(t)
	drv, err := newMigrationDriver(db.conn)
	require.NoError(t, err)

	require.NoError(t, drv.Lock())
	require.ErrorIs(t, drv.Lock(), database.ErrLocked)
	require.NoError(t, drv.Unlock())
	require.ErrorIs(t, drv.Unlock(), database.ErrNotLocked)
}

func TestMigrationDriver_Version(t *testing.T) {
	db := openTestDB(t)
	drv, err := newMigrationDriver(db.conn)
	require.NoError(t, err)

	require.NoError(t, drv.SetVersion(database.NilVersion, false))
	v, dirty, err := drv.Version()
	require.NoError(t, err)
	require.Equal(t, database.NilVersion, v)
	require.False(t, dirty)

	require.NoError(t, drv.SetVersion(7, true))
	v, dirty, err = drv.Version()
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.True(t, dirty)
}

func TestMigrationDriver_RunError(t *testing.T) {
	db := openTestDB(t)
	drv, err := newMigrationDriver(db.conn)
	require.NoError(t, err)

	err = drv.Run(bytes.NewBufferString("CREATE TABLE broken ("))
	var dbErr database.Error
	require.ErrorAs(t, err, &dbErr)
	require.Equal(t, "CREATE TABLE broken (", string(dbErr.Query))
}

func TestMigrationDriver_DropThenMigrateAgain(t *testing.T) {
	db := openTestDB(t)
	drv, err := newMigrationDriver(db.conn)
	require.NoError(t, err)

	require.NoError(t, drv.Drop())
	var n int
	require.NoError(t, db.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='models'").Scan(&n))
	require.Zero(t, n)

	require.NoError(t, migrateUp(db.conn))
	require.NoError(t, db.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='models'").Scan(&n))
	require.Equal(t, 1, n)
}

func TestMigrate_DownRemovesTables(t *testing.T) {
	db := openTestDB(t)
	m, err := newMigrate(db.conn)
	require.NoError(t, err)

	require.NoError(t, m.Down())
	var n int
	require.NoError(t, db.conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE name IN ('models', 'idx_models_updated_at')").Scan(&n))
	require.Zero(t, n)

	require.NoError(t, migrateUp(db.conn))
}
