package internal

import (
	"bitwise74/waitlist-api/config"
	"bitwise74/waitlist-api/internal/service"

	"github.com/chenyahui/gin-cache/persist"
	"gorm.io/gorm"
)

// Deps is built once on startup and shared by every handler
type Deps struct {
	DB       *gorm.DB
	Config   *config.Config
	Waitlist *service.Waitlist
	// Backs cached read endpoints. Redis when configured, memory otherwise
	Cache persist.CacheStore
}
