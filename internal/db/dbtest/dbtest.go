// Package dbtest opens a migrated sqlite database for package tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/NghiaaPham/ServiceCenter-sub002/internal/db"
)

// Open returns a file-backed sqlite database in t.TempDir(). Writers take
// the database lock at BEGIN and there is a single connection, so
// transactions are serialized the way row locks serialize them on postgres.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	dsn := "file:" + path + "?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on"

	gdb, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(gdb))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}
