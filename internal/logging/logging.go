// Package logging configures the process-wide zerolog logger. The wizard
// owns the terminal, so logs go to a file, never to stdout.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup opens the log file and returns a configured logger plus a close
// function. An empty path yields a disabled logger.
func Setup(path, level string) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }

	if path == "" {
		return zerolog.Nop(), noop, nil
	}

	lvl, err := parseLevel(level)
	if err != nil {
		return zerolog.Nop(), noop, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("creating log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("opening log file: %w", err)
	}

	log := zerolog.New(file).
		Level(lvl).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()

	return log, file.Close, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	if level == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q: %w", level, err)
	}
	return lvl, nil
}

func init() {
	zerolog.DurationFieldUnit = time.Millisecond
}
