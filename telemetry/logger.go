package telemetry

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the minimal structured logging surface the library uses.
// The default inside the library is NoOpLogger; applications that want
// visibility into instrumentation decisions pass NewZapLogger (or their
// own implementation) through Config.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

// NoOpLogger discards all log output.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, map[string]any) {}
func (NoOpLogger) Info(string, map[string]any)  {}
func (NoOpLogger) Warn(string, map[string]any)  {}
func (NoOpLogger) Error(string, map[string]any) {}

// zapLogger adapts a zap.Logger to the Logger interface.
type zapLogger struct {
	l *zap.Logger
}

// NewZapLogger builds a production-grade structured logger. Debug mode
// switches to the development encoder and enables debug-level output.
// LLMTRACE_DEBUG=true has the same effect as debug=true.
func NewZapLogger(debug bool) Logger {
	if os.Getenv("LLMTRACE_DEBUG") == "true" {
		debug = true
	}
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return NoOpLogger{}
	}
	return &zapLogger{l: l}
}

// WrapZap adapts an existing zap.Logger.
func WrapZap(l *zap.Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return &zapLogger{l: l}
}

func (z *zapLogger) Debug(msg string, fields map[string]any) { z.l.Debug(msg, zapFields(fields)...) }
func (z *zapLogger) Info(msg string, fields map[string]any)  { z.l.Info(msg, zapFields(fields)...) }
func (z *zapLogger) Warn(msg string, fields map[string]any)  { z.l.Warn(msg, zapFields(fields)...) }
func (z *zapLogger) Error(msg string, fields map[string]any) { z.l.Error(msg, zapFields(fields)...) }

func zapFields(fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
