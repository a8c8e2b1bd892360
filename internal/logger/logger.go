// Package logger wraps zap with the small surface the SDK logs through.
package logger

import (
	"os"

	"go.uber.org/zap"
)

// Logger is a structured logger scoped to one SDK component.
type Logger struct {
	l *zap.Logger
}

// New builds a logger from the LOG_FORMAT environment variable.
//
// Supported LOG_FORMAT values:
//   - "console" or "development": human-readable output with colored levels
//   - "json" or "production" (default): structured JSON output
func New(component string) (*Logger, error) {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "production"
	}

	var cfg zap.Config
	if format == "console" || format == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	z, err := cfg.Build(
		zap.AddCallerSkip(1),
		zap.Fields(zap.String("component", component)),
	)
	if err != nil {
		return nil, err
	}

	return &Logger{l: z}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{l: zap.NewNop()}
}

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	if z == nil {
		return NewNop()
	}
	return &Logger{l: z}
}

func (lg *Logger) Sync() {
	_ = lg.l.Sync()
}

func (lg *Logger) Debug(msg string, fields ...zap.Field) {
	lg.l.Debug(msg, fields...)
}

func (lg *Logger) Info(msg string, fields ...zap.Field) {
	lg.l.Info(msg, fields...)
}

func (lg *Logger) Warn(msg string, fields ...zap.Field) {
	lg.l.Warn(msg, fields...)
}

func (lg *Logger) Error(msg string, fields ...zap.Field) {
	lg.l.Error(msg, fields...)
}

func (lg *Logger) Fatal(msg string, fields ...zap.Field) {
	lg.l.Fatal(msg, fields...)
}

// WithError returns a child logger carrying err.
func (lg *Logger) WithError(err error) *Logger {
	return &Logger{l: lg.l.With(zap.Error(err))}
}

// Component returns a child logger tagged with a sub-component name.
func (lg *Logger) Component(name string) *Logger {
	return &Logger{l: lg.l.With(zap.String("component", name))}
}

// Zap exposes the underlying zap logger.
func (lg *Logger) Zap() *zap.Logger {
	return lg.l
}
