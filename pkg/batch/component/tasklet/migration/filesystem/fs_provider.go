package filesystem

import (
	"embed"
	"io/fs"

	"github.com/tigerroll/lockxfer/pkg/batch/support/util/logger"
)

//go:embed resource
var rawStagingMigrationFS embed.FS

// ProvideStagingMigrationsFS returns the embedded staging migrations, one directory
// per database type.
func ProvideStagingMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawStagingMigrationFS, "resource")
	if err != nil {
		logger.Fatalf("Failed to create subdirectory for staging migration FS: %v", err)
	}
	return subFS
}
