package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mikepea/pantry/pkg/pantry/config"
)

func TestNew(t *testing.T) {
	lg, err := New(config.Logger{Level: "debug", Output: []string{"stdout"}, ErrOutput: []string{"stderr"}})
	require.NoError(t, err)
	assert.True(t, lg.Core().Enabled(zapcore.DebugLevel))
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.Logger{Level: "loud"})
	assert.Error(t, err)
}

func TestGormTrace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	g := NewGorm(zap.New(core))

	sql := func() (string, int64) { return "SELECT 1", 1 }

	g.Trace(context.Background(), time.Now(), sql, errors.New("boom"))
	g.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	g.Trace(context.Background(), time.Now().Add(-time.Second), sql, nil)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "query failed", entries[0].Message)
	assert.Equal(t, "slow query", entries[1].Message)
}

func TestGormSilent(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	g := NewGorm(zap.New(core)).LogMode(gormlogger.Silent)

	g.Trace(context.Background(), time.Now(), func() (string, int64) { return "", 0 }, errors.New("boom"))
	g.Error(context.Background(), "ignored")

	assert.Zero(t, logs.Len())
}
