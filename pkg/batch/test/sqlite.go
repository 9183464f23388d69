package test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbconfig "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm"
)

// OpenSQLite opens a file-backed SQLite database in t.TempDir(). The pool is limited to
// one connection so that a held transaction and the test's own assertions never race
// for the database lock; assertions must therefore run after the transaction ends.
func OpenSQLite(t *testing.T, name string) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// OpenSQLiteAdapter wraps OpenSQLite in a GormDBAdapter registered under name.
func OpenSQLiteAdapter(t *testing.T, name string) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.NewGormDBAdapter(OpenSQLite(t, name), dbconfig.DatabaseConfig{Type: "sqlite", Database: name}, name)
	require.NoError(t, err)
	return conn
}

// ExecSQL runs raw statements, failing the test on the first error.
func ExecSQL(t *testing.T, db *gorm.DB, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		require.NoError(t, db.Exec(stmt).Error, stmt)
	}
}
