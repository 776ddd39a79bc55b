// Package migrations embeds the indicator's SQL migration files into the binary.
package migrations

import (
	"embed"

	"github.com/nerrad567/indicator-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
