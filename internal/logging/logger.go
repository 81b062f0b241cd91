// Package logging wraps zerolog with subsystem-scoped child loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/soyeahso/agentloop/internal/config"
)

// Logger is a zerolog logger that remembers its subsystem path. base holds
// the With fields without the subsystem, so each child writes exactly one
// subsystem field.
type Logger struct {
	base      zerolog.Logger
	zl        zerolog.Logger
	subsystem string
}

func scoped(base zerolog.Logger, subsystem string) *Logger {
	zl := base
	if subsystem != "" {
		zl = base.With().Str("subsystem", subsystem).Logger()
	}
	return &Logger{base: base, zl: zl, subsystem: subsystem}
}

// New creates a root logger writing to w at level. A nil w writes
// human-readable console output to stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return scoped(zl, "")
}

// NewFromConfig creates a root logger from the logging section. The "json"
// style writes raw zerolog lines; any other style writes console output.
func NewFromConfig(cfg config.LoggingConfig, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	if cfg.ConsoleStyle != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: w != os.Stderr}
	}
	return New(w, cfg.Level)
}

// With returns a child logger carrying an extra string field.
func (l *Logger) With(key, value string) *Logger {
	return scoped(l.base.With().Str(key, value).Logger(), l.subsystem)
}

// Sub returns a child logger for a subsystem. Nested subsystems are joined
// with dots, so gateway's "ws" child logs as "gateway.ws".
func (l *Logger) Sub(name string) *Logger {
	path := name
	if l.subsystem != "" {
		path = l.subsystem + "." + name
	}
	return scoped(l.base, path)
}

// Subsystem returns the dotted subsystem path, empty for a root logger.
func (l *Logger) Subsystem() string { return l.subsystem }

// Level returns the minimum level that is written.
func (l *Logger) Level() zerolog.Level { return l.zl.GetLevel() }

func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// parseLevel accepts zerolog level names in any case plus "silent".
// Unknown or empty names mean info.
func parseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "silent", "off":
		return zerolog.Disabled
	case "warning":
		return zerolog.WarnLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
