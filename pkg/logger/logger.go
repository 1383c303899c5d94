/*
Package logger 全局 zap logger。

服务层、仓储和后台任务都通过 FromContext 取 logger，HTTP 请求的 request_id
经 context 一路带到 SQL 日志和 outbox 投递日志。未初始化时所有调用都是空操作。
*/
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ordercore/config"
	"ordercore/infrastructure/persistence"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "ordercore"

var log *zap.Logger

// Init 按配置构建全局 logger。env 为 development 时默认 console 编码。
func Init(cfg *config.LogConfig, env string) error {
	sink, err := newSink(cfg)
	if err != nil {
		return err
	}
	level := parseLevel(cfg.Level)
	core := zapcore.NewCore(newEncoder(cfg.Format, env, level), sink, level)
	log = zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", serviceName), zap.String("env", env)))
	return nil
}

func newEncoder(format, env string, level zapcore.Level) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	console := format == "console"
	if format == "" {
		console = env == "dev" || env == "development" || level == zapcore.DebugLevel
	}
	if console {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func newSink(cfg *config.LogConfig) (zapcore.WriteSyncer, error) {
	if cfg.Output != "file" {
		return zapcore.Lock(os.Stdout), nil
	}
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("log output is file but file_path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    orDefault(cfg.MaxSizeMB, 10),
		MaxBackups: orDefault(cfg.MaxBackups, 5),
		MaxAge:     orDefault(cfg.MaxAgeDays, 7),
		Compress:   true,
	}), nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// Get returns the global logger, never nil.
func Get() *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Replace swaps the global logger and returns a func restoring the previous one.
func Replace(l *zap.Logger) func() {
	prev := log
	log = l
	return func() { log = prev }
}

// FromContext returns the global logger tagged with the request id carried by ctx.
func FromContext(ctx context.Context) *zap.Logger {
	l := Get()
	if requestID := persistence.RequestIDFromContext(ctx); requestID != "" {
		return l.With(zap.String("request_id", requestID))
	}
	return l
}

// Sync 忽略 stdout 为终端或管道时的无害错误
func Sync() error {
	if log == nil {
		return nil
	}
	err := log.Sync()
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, benign := range []string{"inappropriate ioctl for device", "invalid argument", "bad file descriptor"} {
		if strings.Contains(msg, benign) {
			return nil
		}
	}
	return err
}

func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }
