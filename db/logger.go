package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// zapWriter hands gorm's formatted lines to the global zap logger
type zapWriter struct{}

func (zapWriter) Printf(format string, args ...any) {
	zap.L().Warn("gorm", zap.String("query", strings.TrimSpace(fmt.Sprintf(format, args...))))
}

// newLogger logs failed and slow queries through zap. A lookup that finds
// nothing is a normal outcome for the store and isn't logged
func newLogger() logger.Interface {
	return logger.New(zapWriter{}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
