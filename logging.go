package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls where and how much the planner logs.
type LogConfig struct {
	Level string // debug, info, warn, error
	Dir   string // when set, JSON logs also go to a rotating file here
}

// LogConfigFromEnv reads LOG_LEVEL and LOG_DIR.
func LogConfigFromEnv() LogConfig {
	return LogConfig{
		Level: os.Getenv("LOG_LEVEL"),
		Dir:   os.Getenv("LOG_DIR"),
	}
}

// NewLogger builds the process logger. Text goes to stderr; with a log
// directory, JSON records are also written to a rotating planner.slog.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	text := slog.NewTextHandler(os.Stderr, opts)

	if cfg.Dir == "" {
		return slog.New(text), nopCloser{}
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "planner.slog"),
		MaxSize:    32, // MB
		MaxBackups: 3,
		MaxAge:     14,
		Compress:   true,
	}
	if strings.EqualFold(cfg.Level, "debug") {
		w.MaxSize = 256
	}
	return slog.New(fanoutHandler{text, slog.NewJSONHandler(w, opts)}), w
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "", "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "%s: invalid log level, using info\n", level)
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fanoutHandler sends every record to each of its handlers.
type fanoutHandler []slog.Handler

func (h fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithAttrs(attrs)
	}
	return out
}

func (h fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(h))
	for i, hh := range h {
		out[i] = hh.WithGroup(name)
	}
	return out
}
