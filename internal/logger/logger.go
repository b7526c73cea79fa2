// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	Logger *slog.Logger
	level  = new(slog.LevelVar)
	mu     sync.Mutex
)

func init() {
	initLogger(parseLevelFromEnv(), os.Stderr)
}

func parseLevelFromEnv() slog.Level {
	env := strings.ToUpper(os.Getenv("FWSIGN_LOG_LEVEL"))
	switch env {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func initLogger(lvl slog.Level, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	level.Set(lvl)

	Logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// SetLevel adjusts the minimum level of the shared logger. The sign
// command maps --verbose to LevelDebug.
func SetLevel(lvl slog.Level) {
	mu.Lock()
	defer mu.Unlock()
	level.Set(lvl)
}

// SetOutput rebuilds the shared logger on a different writer. Used by
// tests to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(level.Level(), w)
}
