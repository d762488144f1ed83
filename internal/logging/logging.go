// Package logging builds the structured logger used across the service.
package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

// Config selects level and output format
type Config struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"` // "console" or "json"
}

// New creates a logger writing to stderr
func New(cfg Config) *log.Logger {
	return NewWithOutput(cfg, os.Stderr)
}

// NewWithOutput creates a logger writing to w
func NewWithOutput(cfg Config, w io.Writer) *log.Logger {
	level := cfg.Level
	if level == "" {
		level = "info"
	}

	logger := &log.Logger{
		Level:      log.ParseLevel(level),
		TimeFormat: "2006-01-02T15:04:05Z07:00",
	}

	if cfg.Format == "json" {
		logger.Writer = &log.IOWriter{Writer: w}
	} else {
		logger.Writer = &log.ConsoleWriter{Writer: w}
	}

	return logger
}

// NewSilent creates a logger that discards all output
func NewSilent() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: &log.IOWriter{Writer: io.Discard},
	}
}
