package cli

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/deicod/pizzeria/internal/logging"
)

// spanLog writes every ended span to the debug log.
type spanLog struct {
	log *zap.SugaredLogger
}

func withSpanLog(log *zap.SugaredLogger) sdktrace.TracerProviderOption {
	return sdktrace.WithSpanProcessor(spanLog{log: log.Named("trace")})
}

func (spanLog) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p spanLog) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []any{
		"span", s.Name(),
		"trace_id", s.SpanContext().TraceID().String(),
		"span_id", s.SpanContext().SpanID().String(),
		logging.FieldDurationMS, s.EndTime().Sub(s.StartTime()).Milliseconds(),
	}
	if parent := s.Parent(); parent.IsValid() {
		fields = append(fields, "parent_id", parent.SpanID().String())
	}
	if status := s.Status(); status.Description != "" {
		fields = append(fields, logging.FieldError, status.Description)
	}
	p.log.Debugw("Span ended", fields...)
}

func (spanLog) Shutdown(context.Context) error   { return nil }
func (spanLog) ForceFlush(context.Context) error { return nil }
