// Package logger builds the zerolog loggers used across a conversion run.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	Output io.Writer
}

// Logger carries the run id of one invocation on every line.
type Logger struct {
	zlog  zerolog.Logger
	runID string
}

// New creates a structured logger tagged with a fresh run id.
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Format != "json" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	runID := uuid.NewString()
	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("run_id", runID).
		Logger()

	return &Logger{zlog: zlog, runID: runID}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// RunID identifies the invocation in logs and in the skip log.
func (l *Logger) RunID() string { return l.runID }

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zlog }

// Component returns a sub-logger for one part of the run.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zlog.With().Str("component", name).Logger()
}

// Dictionary returns a sub-logger for one dictionary conversion.
func (l *Logger) Dictionary(name string) zerolog.Logger {
	return l.zlog.With().Str("component", "pipeline").Str("dictionary", name).Logger()
}
