// Copyright 2026 © The Focus AI Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// ConfigureSlog installs the process-wide logger. Format is "json" or "text";
// unknown levels fall back to info. Records emitted with a span in their
// context carry trace_id and span_id so log lines can be joined to traces.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(level)}

	var inner slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		inner = slog.NewJSONHandler(output, opts)
	} else {
		inner = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(&spanContextHandler{inner: inner})
	slog.SetDefault(logger)
	return logger
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// spanContextHandler decorates records with the active span identity.
type spanContextHandler struct {
	inner slog.Handler
}

func (h *spanContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *spanContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := spanContext(ctx); sc.IsValid() {
		if !hasAttr(record, "trace_id") {
			record.AddAttrs(slog.String("trace_id", sc.TraceID().String()))
		}
		if !hasAttr(record, "span_id") {
			record.AddAttrs(slog.String("span_id", sc.SpanID().String()))
		}
	}
	return h.inner.Handle(ctx, record)
}

func (h *spanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &spanContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *spanContextHandler) WithGroup(name string) slog.Handler {
	return &spanContextHandler{inner: h.inner.WithGroup(name)}
}

func spanContext(ctx context.Context) trace.SpanContext {
	if ctx == nil {
		return trace.SpanContext{}
	}
	return trace.SpanFromContext(ctx).SpanContext()
}

func hasAttr(record slog.Record, key string) bool {
	found := false
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == key {
			found = true
		}
		return !found
	})
	return found
}
