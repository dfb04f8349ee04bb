// Package logger builds the zap logger shared by the server, the HTTP
// middleware and the gorm query logger.
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

	"github.com/mikepea/pantry/pkg/pantry/config"
)

// New creates a zap logger from the logger section of the config.
func New(cfg config.Logger) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}

	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "time"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if len(cfg.Output) > 0 {
		zcfg.OutputPaths = cfg.Output
	}
	if len(cfg.ErrOutput) > 0 {
		zcfg.ErrorOutputPaths = cfg.ErrOutput
	}

	return zcfg.Build()
}

// Gorm adapts a zap logger to gorm's logger interface.
type Gorm struct {
	lg            *zap.SugaredLogger
	level         gormlogger.LogLevel
	SlowThreshold time.Duration
}

// NewGorm returns a gorm logger writing warnings and errors through lg.
func NewGorm(lg *zap.Logger) *Gorm {
	return &Gorm{
		lg:            lg.Named("gorm").Sugar(),
		level:         gormlogger.Warn,
		SlowThreshold: 200 * time.Millisecond,
	}
}

func (g *Gorm) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *g
	cp.level = level
	return &cp
}

func (g *Gorm) Info(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Info {
		g.lg.Infof(msg, args...)
	}
}

func (g *Gorm) Warn(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Warn {
		g.lg.Warnf(msg, args...)
	}
}

func (g *Gorm) Error(_ context.Context, msg string, args ...interface{}) {
	if g.level >= gormlogger.Error {
		g.lg.Errorf(msg, args...)
	}
}

func (g *Gorm) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {
	case err != nil && g.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		g.lg.Errorw("query failed", "error", err, "elapsed", elapsed, "rows", rows, "sql", sql)
	case g.SlowThreshold > 0 && elapsed > g.SlowThreshold && g.level >= gormlogger.Warn:
		sql, rows := fc()
		g.lg.Warnw("slow query", "elapsed", elapsed, "rows", rows, "sql", sql)
	case g.level >= gormlogger.Info:
		sql, rows := fc()
		g.lg.Debugw("query", "elapsed", elapsed, "rows", rows, "sql", sql)
	}
}
