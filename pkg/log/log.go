// SPDX-License-Identifier: BSD-3-Clause

package log

import (
	"log/slog"
	"os"

	"github.com/rs/zerolog"
	slogmulti "github.com/samber/slog-multi"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

// Level is an atomically reloadable minimum log level shared by every
// handler built from this package. Changing it takes effect on the next
// log call from any goroutine, with no need to rebuild the logger.
var Level = new(slog.LevelVar)

func init() {
	Level.Set(slog.LevelInfo)
}

// SetLevel parses name ("debug", "info", "warn", "error") and applies it to
// the shared Level. An unrecognized name leaves the level unchanged and
// returns ErrLogLevel.
func SetLevel(name string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return ErrLogLevel
	}
	Level.Set(l)
	return nil
}

// NewDefaultLogger creates a structured logger that writes human-readable
// console output through zerolog at the shared, dynamically reloadable
// Level. This is the logger every command and daemon process should use.
func NewDefaultLogger() *slog.Logger {
	return newConsoleLogger(os.Stderr)
}

// GetGlobalLogger returns a logger configured identically to
// NewDefaultLogger. It exists as the package-level accessor used by code
// that does not carry its own *slog.Logger reference.
func GetGlobalLogger() *slog.Logger {
	return newConsoleLogger(os.Stderr)
}

func newConsoleLogger(w *os.File) *slog.Logger {
	zeroLogger := zerolog.
		New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}).
		With().
		Timestamp().
		Logger()

	handler := slogzerolog.Option{
		Level:  Level,
		Logger: &zeroLogger,
	}.NewZerologHandler()

	return slog.New(slogmulti.Fanout(handler))
}
