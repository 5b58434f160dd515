// Package logger holds the process-wide zap logger shared by the post-processing stack.
// Components default to Log and accept their own *zap.Logger through a WithLogger builder option.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process logger. It discards everything until Init is called.
var Log = zap.NewNop()

// Init replaces Log with a development console logger at the given level.
//
// Parameters:
//   - level: one of "debug", "info", "warn", "error" (case-insensitive); empty means "info"
//
// Returns:
//   - error: an error if the level is unknown or the logger could not be built
func Init(level string) error {
	l, err := New(level)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// New builds a development console logger at the given level without touching Log.
//
// Parameters:
//   - level: one of "debug", "info", "warn", "error" (case-insensitive); empty means "info"
//
// Returns:
//   - *zap.Logger: the configured logger
//   - error: an error if the level is unknown or the logger could not be built
func New(level string) (*zap.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// ParseLevel maps a level name onto a zapcore.Level.
//
// Parameters:
//   - level: the level name; empty means "info"
//
// Returns:
//   - zapcore.Level: the parsed level
//   - error: an error if the name is not a known level
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logger: unknown level %q", level)
	}
}
