package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"ordercore/infrastructure/persistence"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	t.Cleanup(Replace(zap.New(core)))
	return logs
}

func TestParseGormLevel(t *testing.T) {
	cases := map[string]gormlogger.LogLevel{
		"debug":   gormlogger.Info,
		"INFO":    gormlogger.Info,
		"warn":    gormlogger.Warn,
		"error":   gormlogger.Error,
		"silent":  gormlogger.Silent,
		"verbose": gormlogger.Warn,
	}
	for in, want := range cases {
		if got := ParseGormLevel(in); got != want {
			t.Errorf("ParseGormLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGormLoggerTrace(t *testing.T) {
	logs := observe(t)
	l := NewGormLogger("warn", 50*time.Millisecond)
	ctx := persistence.ContextWithRequestID(context.Background(), "req-9")
	sql := func(q string, rows int64) func() (string, int64) {
		return func() (string, int64) { return q, rows }
	}

	l.Trace(ctx, time.Now(), sql("SELECT 1", 1), nil)
	if logs.Len() != 0 {
		t.Fatalf("fast query logged at warn level: %v", logs.All())
	}

	l.Trace(ctx, time.Now().Add(-time.Second), sql("SELECT * FROM orders", 3), nil)
	slow := logs.FilterMessage("Slow SQL").All()
	if len(slow) != 1 {
		t.Fatalf("expected one slow query entry, got %d", len(slow))
	}
	if got := slow[0].ContextMap()["request_id"]; got != "req-9" {
		t.Errorf("request_id = %v", got)
	}

	l.Trace(ctx, time.Now(), sql("SELECT * FROM orders WHERE id = 'x'", 0), gormlogger.ErrRecordNotFound)
	if n := logs.FilterMessage("SQL failed").Len(); n != 0 {
		t.Errorf("record not found must not be logged as failure")
	}

	l.Trace(ctx, time.Now(), sql("INSERT INTO orders", 0), errors.New("duplicate"))
	if n := logs.FilterMessage("SQL failed").Len(); n != 1 {
		t.Errorf("expected failure entry, got %d", n)
	}
}

func TestGormLoggerConditionalMiss(t *testing.T) {
	logs := observe(t)
	l := NewGormLogger("warn", 0)

	l.Trace(context.Background(), time.Now(),
		func() (string, int64) { return "UPDATE product_variants SET stock = stock - 1 WHERE id = 'v1' AND stock >= 1", 0 }, nil)
	if n := logs.FilterMessage("Conditional update matched no rows").Len(); n != 1 {
		t.Fatalf("expected conditional miss entry, got %d", n)
	}

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), func() (string, int64) { return "UPDATE orders SET x=1 WHERE id='o'", 0 }, nil)
	silent.Error(context.Background(), "boom")
	if logs.Len() != 1 {
		t.Errorf("silent mode logged: %v", logs.All())
	}
}
