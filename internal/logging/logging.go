// Package logging wraps zerolog behind a small interface so the rest of
// the service depends on a logging contract, not a concrete library.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// F is one structured log field.
type F struct {
	Key   string
	Value any
}

// Field builds an F.
func Field(key string, value any) F {
	return F{Key: key, Value: value}
}

// Logger is the contract every component logs through. Implementations
// must be safe for concurrent use.
type Logger interface {
	Debug(msg string, fields ...F)
	Info(msg string, fields ...F)
	Warn(msg string, fields ...F)
	Error(msg string, err error, fields ...F)
	// With returns a Logger that always includes fields in addition to
	// whatever is passed per call, used to scope a logger to a request.
	With(fields ...F) Logger
}

type zerologLogger struct {
	logger zerolog.Logger
}

// New creates a Logger writing JSON lines to w at the given level. service
// is attached to every log line.
func New(w io.Writer, level zerolog.Level, service string) Logger {
	if w == nil {
		w = os.Stdout
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Str("service", service).Logger()
	return &zerologLogger{logger: l}
}

func (z *zerologLogger) Debug(msg string, fields ...F) {
	apply(z.logger.Debug(), fields).Msg(msg)
}

func (z *zerologLogger) Info(msg string, fields ...F) {
	apply(z.logger.Info(), fields).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, fields ...F) {
	apply(z.logger.Warn(), fields).Msg(msg)
}

func (z *zerologLogger) Error(msg string, err error, fields ...F) {
	ev := z.logger.Error()
	if err != nil {
		ev = ev.Err(err)
	}
	apply(ev, fields).Msg(msg)
}

func (z *zerologLogger) With(fields ...F) Logger {
	ctx := z.logger.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &zerologLogger{logger: ctx.Logger()}
}

func apply(ev *zerolog.Event, fields []F) *zerolog.Event {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	return ev
}
