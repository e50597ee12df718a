// Package logging sets up the daemon's structured logger: a JSON
// slog.Handler writing to a rotated log file, or a temp file when none
// is configured. Grounded on cmd/sand/main.go's initSlog, generalized to
// use lumberjack for rotation instead of a bare os.File since the
// daemon runs unattended far longer than a CLI invocation.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the daemon's logger.
type Options struct {
	// LogFile is the rotated log file's path. Empty selects a temp file,
	// matching cmd/sand/main.go's fallback.
	LogFile string
	// Level is one of "debug", "info", "warn", "error".
	Level string
	// Verbose forces debug-level logging regardless of Level.
	Verbose bool
}

// Init builds and installs the default slog.Logger, returning it (and
// the rotating writer, for callers that want to Close it on shutdown).
func Init(opts Options) (*slog.Logger, *lumberjack.Logger, error) {
	level := parseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}

	logFile := opts.LogFile
	if logFile == "" {
		f, err := os.CreateTemp("", "deskicond-log-*")
		if err != nil {
			return nil, nil, fmt.Errorf("logging: create temp log file: %w", err)
		}
		logFile = f.Name()
		f.Close()
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	logger := slog.New(slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	slog.Info("logging initialized", "logFile", logFile, "level", level)

	return logger, rotator, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
