package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseZerologLevel maps a config level name to a zerolog level.
func ParseZerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewZerolog builds the component logger used by the dispatcher, archive and
// exporters. Console output goes to out without colors; raw JSON goes to every
// extra writer (e.g. a GELF writer).
func NewZerolog(out io.Writer, level string, component string, extra ...io.Writer) zerolog.Logger {
	writers := []io.Writer{
		zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		},
	}
	for _, w := range extra {
		if w != nil {
			writers = append(writers, w)
		}
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseZerologLevel(level)).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

// WithSessionHook stamps every event with the session id, gate and epoch
// src reports.
func WithSessionHook(l zerolog.Logger, src SessionSource) zerolog.Logger {
	return l.Hook(zerolog.HookFunc(func(e *zerolog.Event, _ zerolog.Level, _ string) {
		c, ok := src.LogContext()
		if !ok {
			return
		}
		e.Str(sessionKey, c.ID).Str("gate", c.Gate).Uint64("epoch", c.Epoch)
	}))
}
