// Package migrations embeds the event_logs schema for each supported dialect.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// FS returns the migration files for driver ("postgres" or "sqlite").
func FS(driver string) (fs.FS, error) {
	switch driver {
	case "postgres", "sqlite":
		return fs.Sub(files, driver)
	default:
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
}
