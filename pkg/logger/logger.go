// Package logger wraps zap for the workspace server and CLI.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Options picks the level, sink and encoding of a logger.
type Options struct {
	// Level is debug, info, warn or error. Anything else logs at info.
	Level string
	// Output is a zap sink. Empty means stdout.
	Output string
	// Console writes coloured human-readable lines instead of JSON.
	Console bool
}

func New(opts Options) (*Logger, error) {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.NameKey = "component"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeDuration = zapcore.MillisDurationEncoder

	encoding := "json"
	if opts.Console {
		encoding = "console"
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	output := opts.Output
	if output == "" {
		output = "stdout"
	}

	l, err := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(opts.Level)),
		Encoding:         encoding,
		EncoderConfig:    enc,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	}.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: l}, nil
}

// Nop discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named tags lines with the component that wrote them.
func (l *Logger) Named(component string) *Logger {
	return &Logger{Logger: l.Logger.Named(component)}
}

// WithSession tags log lines with the chat session they concern.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.With(zap.String("session_id", sessionID))
}

func parseLevel(level string) zapcore.Level {
	if level == "warning" {
		return zapcore.WarnLevel
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || lvl > zapcore.ErrorLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

var global = Nop()

// Global returns the process-wide logger set by main.
func Global() *Logger {
	return global
}

func SetGlobal(l *Logger) {
	if l != nil {
		global = l
	}
}
