package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// newLogger builds a slog logger writing to w.
func newLogger(levelStr, formatStr string, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(formatStr) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", formatStr)
	}
	return slog.New(handler), nil
}

// initLogger installs the default logger, writing to stderr.
func initLogger(levelStr, formatStr string) error {
	l, err := newLogger(levelStr, formatStr, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(l)
	return nil
}
