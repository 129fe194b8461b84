// Package testutil holds helpers shared by tests of several packages
package testutil

import (
	"bitwise74/waitlist-api/config"
	"bitwise74/waitlist-api/db"
	"fmt"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
)

// NewDB returns a migrated in-memory sqlite database private to t
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())

	database, err := db.New(config.Database{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano()),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}

	// The in-memory database lives as long as one connection stays open
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { sqlDB.Close() })

	return database
}

// Clock hands out times one second apart starting at a fixed instant
type Clock struct {
	t time.Time
}

func NewClock() *Clock {
	return &Clock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}
