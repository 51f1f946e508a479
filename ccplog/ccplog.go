// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.

// Package ccplog is the runtime's structured logging wrapper. The
// teacher's own internal logging package (a log15 fork keyed by
// go-stack/stack) isn't a fetchable module outside that tree, so this
// wraps the standard library's slog instead, kept terse and leveled the
// same way: a handful of named fields per call site, plain text on a tty
// and JSON otherwise.
package ccplog

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// Logger is the handle every package in this module is given at
// construction; it is a thin rename of *slog.Logger so call sites read
// ccplog.Logger rather than slog.Logger, matching the pattern of naming
// the ambient logging type after the importing project.
type Logger = slog.Logger

// New builds a Logger writing to w at the given level. When w is a
// terminal (checked via isatty), output uses slog's TextHandler with
// AddSource disabled for readability; otherwise it emits JSON, the shape
// a log-shipping pipeline expects.
func New(w io.Writer, level slog.Level) *Logger {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Default returns a Logger writing to stderr at Info level, the
// out-of-the-box logger cmd/ccpd starts with before flags are parsed.
func Default() *Logger { return New(os.Stderr, slog.LevelInfo) }

// Discard returns a Logger that drops everything, used by tests that
// don't want log noise but still need a non-nil Logger to pass around.
func Discard() *Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// WithFlow returns a Logger scoped to one socket id, used throughout the
// session core so every line about a flow carries its id without each
// call site repeating it.
func WithFlow(l *Logger, socketID uint32) *Logger {
	return l.With(slog.Uint64("socket_id", uint64(socketID)))
}

// Context helpers, mirroring slog's own context-carrying convention for
// code that threads a context.Context through but still wants the active
// logger available without a second parameter.

type ctxKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the Logger stored in ctx, or Default() if none was
// set.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Default()
}
