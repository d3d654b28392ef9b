package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	customlogger "chat-purge/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// CustomGormLogger routes gorm's log output through the application logger
type CustomGormLogger struct {
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	SkipCallerLookup          bool
	IgnoreRecordNotFoundError bool
}

// gormLevel maps an application log level name onto gorm's coarser levels.
// SQL statements are traced at Info and printed at DEBUG.
func gormLevel(level string) logger.LogLevel {
	switch customlogger.ParseLevel(level) {
	case customlogger.LevelDebug:
		return logger.Info
	case customlogger.LevelInfo, customlogger.LevelWarning:
		return logger.Warn
	default:
		return logger.Error
	}
}

func NewCustomGormLogger(level string) logger.Interface {
	return &CustomGormLogger{
		LogLevel:                  gormLevel(level),
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		customlogger.Infof(msg, data...)
	}
}

func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		customlogger.Warningf(msg, data...)
	}
}

func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		customlogger.Errorf(msg, data...)
	}
}

// Trace logs failed and slow statements, and every statement at Info
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := float64(time.Since(begin).Nanoseconds()) / 1e6
	sql, rows := fc()

	prefix := fmt.Sprintf("[%.3fms]", elapsed)
	if !l.SkipCallerLookup {
		prefix += " [" + utils.FileWithLineNum() + "]"
	}

	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		customlogger.Errorf("%s %s; error=%v", prefix, sql, err)
	case l.SlowThreshold != 0 && time.Since(begin) > l.SlowThreshold && l.LogLevel >= logger.Warn:
		customlogger.Warningf("%s %s; SLOW SQL >= %v, rows=%v", prefix, sql, l.SlowThreshold, rows)
	case l.LogLevel == logger.Info:
		customlogger.Debugf("%s %s; rows=%v", prefix, sql, rows)
	}
}
