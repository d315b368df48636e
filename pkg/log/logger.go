// Package log provides structured logging for the biotypes pipeline,
// built on zerolog. It also routes warnings raised through pkg/errors
// (e.g. NumericalInstabilityWarning) into the same structured stream.
package log

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mariajose19/niclin2019-biotypes/pkg/errors"
)

var (
	loggerMu sync.RWMutex
	logger   = zerolog.Nop()
)

// Setup configures the package logger to write console-formatted output at
// the given level and installs the zerolog warning sink so that
// errors.Warn emits structured warn-level events.
func Setup(level string, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	l := zerolog.New(zerolog.ConsoleWriter{Out: w}).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	SetLogger(l)
}

// SetLogger replaces the package logger. Warning events raised via
// errors.Warn are re-routed to the new logger.
func SetLogger(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()

	errors.SetZerologWarnFunc(func(warning error) {
		sink := Logger()
		ev := sink.Warn()
		if obj, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev.EmbedObject(obj).Msg("warning")
			return
		}
		ev.Err(warning).Msg("warning")
	})
}

// Logger returns the package logger. The default is a no-op logger, which
// keeps library use and tests silent unless Setup was called.
func Logger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// With returns a child logger with the component field set. Packages tag
// their events with their own component name.
func With(component string) zerolog.Logger {
	return Logger().With().Str(ComponentKey, component).Logger()
}
