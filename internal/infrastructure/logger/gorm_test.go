package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func sqlFn(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		want    string
		wantLvl zapcore.Level
	}{
		{"error", gormlogger.Warn, 0, errors.New("deadlock detected"), "SQL error", zapcore.ErrorLevel},
		{"slow", gormlogger.Warn, time.Second, nil, "Slow SQL", zapcore.WarnLevel},
		{"query at info", gormlogger.Info, 0, nil, "SQL", zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			l := NewGormLogger(zap.New(core), tt.level, 200*time.Millisecond)

			ctx, _ := WithTenantID(context.Background(), zap.NewNop(), "tenant-1")
			l.Trace(ctx, time.Now().Add(-tt.elapsed), sqlFn("SELECT 1", 1), tt.err)

			entries := recorded.All()
			if assert.Len(t, entries, 1) {
				assert.Equal(t, tt.want, entries[0].Message)
				assert.Equal(t, tt.wantLvl, entries[0].Level)
				assert.Equal(t, "tenant-1", entries[0].ContextMap()["tenant_id"])
			}
		})
	}
}

func TestGormLogger_Quiet(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(zap.New(core), gormlogger.Warn, 0)

	l.Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 0), gormlogger.ErrRecordNotFound)
	l.Trace(context.Background(), time.Now().Add(-time.Hour), sqlFn("SELECT 1", 0), nil)
	l.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), sqlFn("SELECT 1", 0), errors.New("x"))

	assert.Zero(t, recorded.Len())
}

func TestGormLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
	assert.Equal(t, gormlogger.Error, GormLevel("error"))
	assert.Equal(t, gormlogger.Silent, GormLevel("silent"))
}
