// Package logging provides component-scoped structured loggers for Badplaner.
//
// All loggers share one slog text handler on stderr. The level starts from
// BADPLANER_LOG_LEVEL (debug, info, warn, error; default info) and can be
// changed at runtime with SetLevel.
//
//	log := logging.New("viewport")
//	log.Info("scene built", "handle", id)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelEnv is the environment variable that selects the log level.
const LevelEnv = "BADPLANER_LOG_LEVEL"

var (
	initLogger sync.Once
	baseLogger *slog.Logger
	level      = new(slog.LevelVar)
)

// New returns a logger tagged with component=<component>. An empty
// component returns the shared base logger.
func New(component string) *slog.Logger {
	initLogger.Do(initBase)
	if component == "" {
		return baseLogger
	}
	return baseLogger.With("component", component)
}

func initBase() {
	level.Set(ParseLevel(os.Getenv(LevelEnv)))
	baseLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel changes the level of every logger returned by New, including
// ones created earlier.
func SetLevel(name string) {
	initLogger.Do(initBase)
	level.Set(ParseLevel(name))
}

// Discard returns a logger that drops everything. Tests and headless
// renders use it to keep output quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
