package logger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger writes the SQLite user store's statements to zap.
// Entries are named "gorm", tagged store=sqlite and carry the request_id of the call that issued them.
type GormLogger struct {
	log   *zap.Logger
	slow  time.Duration
	level gormlogger.LogLevel
}

// NewGormLogger maps LOG_LEVEL onto GORM's levels.
// Only debug traces every statement; info and warn report slow statements and failures.
func NewGormLogger(base *zap.Logger, slow time.Duration, level string) *GormLogger {
	return &GormLogger{
		log:   base.Named("gorm").With(zap.String("store", "sqlite")),
		slow:  slow,
		level: gormLevel(level),
	}
}

func gormLevel(name string) gormlogger.LogLevel {
	switch name {
	case "silent":
		return gormlogger.Silent
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, at gormlogger.LogLevel, lvl zapcore.Level, msg string, data []interface{}) {
	if l.level < at {
		return
	}
	WithContext(ctx, l.log).Log(lvl, fmt.Sprintf(msg, data...))
}

// Trace implements gormlogger.Interface.
// A missing row is how the store reports an unknown user id, so it is traced as a
// lookup miss rather than a failure.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level == gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.statement(ctx, fc, elapsed).Error("user store statement failed", zap.Error(err))
	case l.slow > 0 && elapsed > l.slow && l.level >= gormlogger.Warn:
		l.statement(ctx, fc, elapsed).Warn("slow user store statement", zap.Duration("threshold", l.slow))
	case l.level >= gormlogger.Info:
		l.statement(ctx, fc, elapsed).Debug("user store statement", zap.Bool("miss", err != nil))
	}
}

func (l *GormLogger) statement(ctx context.Context, fc func() (string, int64), elapsed time.Duration) *zap.Logger {
	sql, rows := fc()
	return WithContext(ctx, l.log).With(
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	)
}

var _ gormlogger.Interface = (*GormLogger)(nil)
