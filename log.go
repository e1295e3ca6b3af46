package main

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger keeps the printf-style surface used throughout the service on top of
// a zap sugared logger. It also satisfies the massive websocket Logger.
type Logger struct {
	z *zap.SugaredLogger
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func NewLogger(level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true

	z, err := cfg.Build()
	if err != nil {
		z = zap.NewExample()
	}
	return &Logger{z: z.Sugar()}
}

func NewNopLogger() *Logger {
	return &Logger{z: zap.NewNop().Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{z: l.z.With(kv...)}
}

func (l *Logger) Debugf(format string, args ...any) { l.z.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.z.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.z.Errorf(format, args...) }

func (l *Logger) Sync() { _ = l.z.Sync() }
