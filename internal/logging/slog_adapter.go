// Crumb - Budget Bundle Recommendation and Customer Ledger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/crumb

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// SlogHandler lets libraries that take a *slog.Logger (sutureslog) write
// through zerolog. Groups become dotted key prefixes.
type SlogHandler struct {
	logger zerolog.Logger
	group  string
}

// NewSlogHandlerWithLogger wraps logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSlogHandlerWithLogger(logger zerolog.Logger) *SlogHandler {
	return &SlogHandler{logger: logger}
}

// NewSlogLogger returns a *slog.Logger over the current global logger.
//
//	hooks := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
func NewSlogLogger() *slog.Logger {
	return slog.New(NewSlogHandlerWithLogger(Logger()))
}

// NewComponentSlogLogger is NewSlogLogger with a component field.
func NewComponentSlogLogger(component string) *slog.Logger {
	return slog.New(NewSlogHandlerWithLogger(WithComponent(component)))
}

func (h *SlogHandler) Enabled(_ context.Context, level slog.Level) bool {
	zl := zerologLevel(level)
	return zl >= h.logger.GetLevel() && zl >= zerolog.GlobalLevel()
}

//nolint:gocritic // slog.Handler takes the record by value
func (h *SlogHandler) Handle(_ context.Context, record slog.Record) error {
	event := h.logger.WithLevel(zerologLevel(record.Level))
	if event == nil {
		return nil
	}
	fields := make([]interface{}, 0, 2*record.NumAttrs())
	record.Attrs(func(a slog.Attr) bool {
		fields = flatten(fields, h.group, a)
		return true
	})
	event.Fields(fields).Msg(record.Message)
	return nil
}

// WithAttrs fixes attrs onto the underlying zerolog context.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var fields []interface{}
	for _, a := range attrs {
		fields = flatten(fields, h.group, a)
	}
	return &SlogHandler{logger: h.logger.With().Fields(fields).Logger(), group: h.group}
}

func (h *SlogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &SlogHandler{logger: h.logger, group: h.group + name + "."}
}

// flatten appends a as key/value pairs in the form zerolog's Fields takes.
func flatten(dst []interface{}, prefix string, a slog.Attr) []interface{} {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return dst
	}
	if a.Value.Kind() != slog.KindGroup {
		return append(dst, prefix+a.Key, a.Value.Any())
	}
	// An unnamed group inlines its members.
	if a.Key != "" {
		prefix += a.Key + "."
	}
	for _, member := range a.Value.Group() {
		dst = flatten(dst, prefix, member)
	}
	return dst
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	case level >= slog.LevelDebug:
		return zerolog.DebugLevel
	}
	return zerolog.TraceLevel
}
