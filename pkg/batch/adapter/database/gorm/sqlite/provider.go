// Package sqlite provides a GORM DBProvider implementation for SQLite databases.
package sqlite

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
)

const dbType = "sqlite"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterTableNotExistClassifier(dbType, IsTableNotExistError)
}

// ConnectionString returns the file DSN. A busy timeout is added unless the path
// already carries query parameters, so concurrent transfers wait for the write lock.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	if c.Database == ":memory:" || strings.Contains(c.Database, "?") {
		return c.Database
	}
	return c.Database + "?_busy_timeout=5000"
}

// IsTableNotExistError reports SQLite's "no such table" error.
func IsTableNotExistError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrError && strings.Contains(sqliteErr.Error(), "no such table")
	}
	return strings.Contains(err.Error(), "no such table:")
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new database.DBProvider for SQLite.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, dbType)}
}
