// Package common provides shared utilities for drip
package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger to provide a consistent interface
type Logger struct {
	zerolog.Logger
	file io.Closer
}

// Close releases the log file opened by NewLoggerFromConfig, if any.
// Calling it again is a no-op.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// parseLevel maps a config level name to a zerolog level. Unknown names fall back to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLoggerWithOutput creates a JSON logger writing to a specific output
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	logger := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: logger}
}

// NewLoggerFromConfig builds a logger from the logging section of the config.
// Format "console" writes human readable lines to stderr, anything else writes JSON.
// When FilePath is set, log lines are also appended to that file and the
// caller releases it with Close. A file that cannot be opened is reported
// on stderr and skipped.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	var writers []io.Writer

	if strings.EqualFold(cfg.Format, "console") {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stderr)
	}

	var file *os.File
	var fileErr error
	if cfg.FilePath != "" {
		file, fileErr = openLogFile(cfg.FilePath)
		if fileErr == nil {
			writers = append(writers, file)
		}
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	l := &Logger{
		Logger: zerolog.New(out).
			Level(parseLevel(cfg.Level)).
			With().
			Timestamp().
			Logger(),
	}
	if file != nil {
		l.file = file
	}
	if fileErr != nil {
		l.Warn().Err(fileErr).Str("path", cfg.FilePath).Msg("Failed to open log file, logging to stderr only")
	}
	return l
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// NewSilentLogger creates a logger that discards all output
func NewSilentLogger() *Logger {
	logger := zerolog.New(io.Discard).Level(zerolog.Disabled)
	return &Logger{Logger: logger}
}
