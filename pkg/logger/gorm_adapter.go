package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQuery 超过该耗时的 SQL 以 warn 记录
const DefaultSlowQuery = 200 * time.Millisecond

// GormLogger 把 gorm 的 SQL 日志写入全局 zap logger，带上请求 ID。
//
// 条件更新（库存预留、状态流转守卫）未命中任何行时记一条 debug，
// 便于排查并发竞争；记录不存在由仓储翻译为领域错误，这里不再报错。
type GormLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

// NewGormLogger level 取 silent|error|warn|info|debug，未知值按 warn 处理
func NewGormLogger(level string, slow time.Duration) *GormLogger {
	if slow <= 0 {
		slow = DefaultSlowQuery
	}
	return &GormLogger{level: ParseGormLevel(level), slow: slow}
}

func ParseGormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "info":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &GormLogger{level: level, slow: l.slow}
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		FromContext(ctx).Info(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		FromContext(ctx).Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		FromContext(ctx).Error(fmt.Sprintf(msg, args...))
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	log := FromContext(ctx).With(
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows))

	switch {
	case err != nil && errors.Is(err, gormlogger.ErrRecordNotFound):
		return
	case err != nil:
		if l.level >= gormlogger.Error {
			log.Error("SQL failed", zap.Error(err))
		}
	case elapsed > l.slow:
		if l.level >= gormlogger.Warn {
			log.Warn("Slow SQL", zap.Duration("threshold", l.slow))
		}
	case rows == 0 && isConditionalWrite(sql):
		log.Debug("Conditional update matched no rows")
	case l.level >= gormlogger.Info:
		log.Info("SQL executed")
	}
}

func isConditionalWrite(sql string) bool {
	s := strings.TrimSpace(strings.ToUpper(sql))
	return strings.HasPrefix(s, "UPDATE") && strings.Contains(s, " WHERE ")
}

var _ gormlogger.Interface = (*GormLogger)(nil)
