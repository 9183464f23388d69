// Package mysql provides a GORM DBProvider implementation for MySQL databases.
package mysql

import (
	"errors"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/lockxfer/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/lockxfer/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/lockxfer/pkg/batch/core/config"
)

const (
	dbType = "mysql"
	// erNoSuchTable is MySQL error 1146 (ER_NO_SUCH_TABLE).
	erNoSuchTable = 1146
)

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
	gormadapter.RegisterTableNotExistClassifier(dbType, IsTableNotExistError)
}

// ConnectionString builds the DSN with the driver's own formatter so that
// credentials containing reserved characters are escaped correctly.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	dsn := mysqldriver.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	dsn.DBName = c.Database
	dsn.ParseTime = true
	dsn.Loc = time.Local
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// IsTableNotExistError reports ER_NO_SUCH_TABLE.
func IsTableNotExistError(err error) bool {
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == erNoSuchTable
}

// MySQLDBProvider implements database.DBProvider for MySQL connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates a new database.DBProvider for MySQL.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, dbType)}
}
