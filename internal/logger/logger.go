// Package logger provides structured logging configuration using slog.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Setup initializes and returns a configured slog.Logger with text handler.
// Unknown level strings fall back to info.
func Setup(level string) *slog.Logger {
	logLevel, ok := levels[strings.ToLower(level)]
	if !ok {
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}
