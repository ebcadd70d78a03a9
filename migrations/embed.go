// Package migrations embeds SQL migration files into the binary so the
// gateway can run migrations without the SQL files present on disk.
package migrations

import (
	"embed"

	"github.com/smartsensor/gateway/internal/dbx"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	dbx.MigrationsFS = migrationsFS
	dbx.MigrationsDir = "." // files are at the root of the embedded FS
}
