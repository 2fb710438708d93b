// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package logger wraps zerolog.Logger for the field sync agent.
//
// The agent writes JSON lines to a log file because its standard output
// belongs to the CLI: command results are printed there and may be piped to
// other tools. Request and job scoped loggers travel in the context and are
// read back with FromContext, FromContextOr or FromRequest.
package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger embeds zerolog.Logger so the whole zerolog API is available on it.
type Logger struct {
	zerolog.Logger
}

var setupGlobals sync.Once

// New returns a JSON logger for role that writes entries at level and above
// to out. Every entry carries the role, a timestamp and the calling function
// in the "func" field.
func New(role string, out io.Writer, level zerolog.Level) *Logger {
	setupGlobals.Do(func() {
		zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
			return runtime.FuncForPC(pc).Name()
		}
		zerolog.CallerFieldName = "func"
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})

	logger := zerolog.New(out).
		Level(level).
		With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{logger}
}

// NewFileLogger returns a logger appending to the file at path, creating it
// when missing, and the func that closes the file. An empty path means a
// "logs" file next to the executable. When the file cannot be opened entries
// go to stderr instead.
func NewFileLogger(role, path string, level zerolog.Level) (*Logger, func() error) {
	if path == "" {
		execPath, _ := os.Executable()
		path = filepath.Join(filepath.Dir(execPath), "logs")
	}

	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l := New(role, os.Stderr, level)
		l.Warn().Err(err).Str("path", path).Msg("log file unavailable, logging to stderr")
		return l, func() error { return nil }
	}

	return New(role, logFile, level), logFile.Close
}

// Nop discards everything. Used by tests.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// GetChildLogger returns a copy of l that can take extra fields without
// touching l.
func (l *Logger) GetChildLogger() *Logger {
	return &Logger{l.With().Logger()}
}

// FromRequest returns the logger attached to the request context.
func FromRequest(r *http.Request) *Logger {
	return &Logger{*log.Ctx(r.Context())}
}

// FromContext returns the logger attached to ctx, or zerolog's default
// logger when there is none. It never returns nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}

// FromContextOr returns the logger attached to ctx, or fallback when ctx
// carries none. Background jobs and the CLI run without a request-scoped
// logger and use their own.
func FromContextOr(ctx context.Context, fallback *Logger) *Logger {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled && fallback != nil {
		return fallback
	}
	return &Logger{*l}
}
