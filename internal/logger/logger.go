// Package logger wraps zerolog with the fields and helpers used across the
// service.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
)

// Logger wraps zerolog.Logger with additional functionality.
type Logger struct {
	zerolog.Logger
}

// New builds a logger from configuration.  Console output is meant for
// development; json for anything that ships logs elsewhere.
func New(cfg config.LogConfig) *Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return newWithWriter(cfg, out)
}

func newWithWriter(cfg config.LogConfig, out io.Writer) *Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if !strings.EqualFold(cfg.Format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "greenhouse-led-hub").
		Logger()
	return &Logger{zl}
}

// Nop returns a logger that discards everything.  Tests use it.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// WithComponent adds a component name to the logger.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{l.Logger.With().Str("component", component).Logger()}
}

// WithField adds a field to the logger.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{l.Logger.With().Interface(key, value).Logger()}
}

// WithError adds an error to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{l.Logger.With().Err(err).Logger()}
}
