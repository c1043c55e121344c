package logger

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var Log zerolog.Logger

// Init initializes the global logger with the specified level.
// Valid levels: debug, info, warn, error
func Init(level string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	Log = zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

// Module returns a logger with a module field for scoped logging.
func Module(name string) zerolog.Logger {
	return Log.With().Str("module", name).Logger()
}

// GormLogger adapts zerolog to gorm's logger interface.
type GormLogger struct {
	zlog zerolog.Logger
}

// NewGormLogger creates a gorm-compatible logger for the given module.
func NewGormLogger(module string) gormlogger.Interface {
	return &GormLogger{zlog: Module(module)}
}

func (l *GormLogger) LogMode(gormlogger.LogLevel) gormlogger.Interface {
	return l
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	l.zlog.Info().Msgf(msg, args...)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	l.zlog.Warn().Msgf(msg, args...)
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	l.zlog.Error().Msgf(msg, args...)
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if err == nil || errors.Is(err, gorm.ErrRecordNotFound) {
		return
	}
	sql, rows := fc()
	l.zlog.Error().
		Err(err).
		Str("sql", sql).
		Int64("rows", rows).
		Dur("elapsed", time.Since(begin)).
		Msg("query failed")
}
