// Package drivers registers the golang-migrate database drivers the staging
// migrations can run against.
package drivers

import (
	"go.uber.org/fx"

	// Registered under the dialect names used by the staging connection types.
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
)

// Module carries no providers. Including it in the application graph links the
// mysql, postgres and sqlite migration drivers into the binary.
var Module = fx.Options()
