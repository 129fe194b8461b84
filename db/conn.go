// Package db opens the database connection used by the store
package db

import (
	"bitwise74/waitlist-api/config"
	"bitwise74/waitlist-api/internal/model"
	"bitwise74/waitlist-api/pkg/util"
	"errors"
	"fmt"
	"os"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// New opens the database described by c and migrates the schema. In
// production this is the Postgres database behind the Supabase project,
// sqlite is meant for local development
func New(c config.Database) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch c.Driver {
	case "postgres":
		dialector = postgres.Open(c.DSN)
	case "sqlite":
		// If running in a docker container don't allow the sqlite file to be created.
		// The host should instead mount it using volumes
		if util.IsRunningInDocker() && !isMemory(c.SQLitePath) {
			if _, err := os.Stat(c.SQLitePath); errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("SQLite database file not mounted, please use docker volumes to mount it to /app/%s", c.SQLitePath)
			}
		}

		dialector = sqlite.Open(c.SQLitePath)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	return Open(dialector)
}

// Open connects through an already built dialector and migrates the schema
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         newLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database, %w", err)
	}

	err = db.AutoMigrate(&model.User{})
	if err != nil {
		return nil, fmt.Errorf("failed to automigrate tables, %w", err)
	}

	return db, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}
