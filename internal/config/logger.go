package config

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns the service logger. "debug" selects a development console
// encoder; any other level logs JSON. Errors go to stderr, the rest to stdout.
func NewLogger(level string) (*zap.Logger, error) {
	return newLogger(level, os.Stdout, os.Stderr)
}

func newLogger(level string, out, errOut io.Writer) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var encoder zapcore.Encoder
	if lvl == zapcore.DebugLevel {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(ec)
	}

	lowPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return lvl <= l && l < zapcore.ErrorLevel
	})
	highPriority := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return lvl <= l && l >= zapcore.ErrorLevel
	})

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(out)), lowPriority),
		zapcore.NewCore(encoder.Clone(), zapcore.Lock(zapcore.AddSync(errOut)), highPriority),
	)
	return zap.New(core, zap.AddCaller()), nil
}
