// Package logging builds the zap loggers used across pizzeria and carries
// request-scoped fields through context.
package logging

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deicod/pizzeria/errors"
	"github.com/deicod/pizzeria/orm/runtime"
)

// Standard field names for structured logging.
const (
	FieldRequestID  = "request_id"
	FieldComponent  = "component"
	FieldMethod     = "method"
	FieldRoute      = "route"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldDurationMS = "duration_ms"
	FieldError      = "error"
	FieldTable      = "table"
	FieldOperation  = "operation"
	FieldQuery      = "query"
	FieldArgCount   = "arg_count"
	FieldCount      = "count"
)

// Options selects the encoder and minimum level.
type Options struct {
	JSON  bool
	Level string
}

// New returns a sugared logger. JSON output uses zap's production config;
// otherwise a console encoder writes to stdout.
func New(opts Options) (*zap.SugaredLogger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	if opts.JSON {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
		zl, err := config.Build()
		if err != nil {
			return nil, errors.Wrap(err, "build json logger")
		}
		return zl.Sugar(), nil
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)
	return zap.New(core).Sugar(), nil
}

// ParseLevel maps a level name onto a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return level, errors.WithHint(
			errors.Newf("unknown log level %q", name),
			"use one of debug, info, warn, error",
		)
	}
	return level, nil
}

// Nop returns a logger that discards everything.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

type contextKey string

const requestIDKey contextKey = "logging_request_id"

// WithRequestID stores the request id on ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID returns the request id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Correlator exposes the context request id to the query observer.
func Correlator() runtime.CorrelationProvider {
	return runtime.CorrelationProviderFunc(RequestID)
}

// FromContext returns base annotated with the request fields found on ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if base == nil {
		base = Nop()
	}
	if id := RequestID(ctx); id != "" {
		return base.With(FieldRequestID, id)
	}
	return base
}

// QueryLogger adapts log to runtime.QueryLogger. Successful statements are
// logged at debug, failures at warn.
func QueryLogger(log *zap.SugaredLogger) runtime.QueryLogger {
	if log == nil {
		return nil
	}
	return runtime.QueryLoggerFunc(func(ctx context.Context, entry runtime.QueryLog) {
		fields := []interface{}{
			FieldTable, entry.Table,
			FieldOperation, string(entry.Operation),
			FieldQuery, entry.SQL,
			FieldArgCount, len(entry.Args),
			FieldDurationMS, entry.Duration.Milliseconds(),
		}
		if entry.CorrelationID != "" {
			fields = append(fields, FieldRequestID, entry.CorrelationID)
		}
		if entry.Err != nil {
			log.Warnw("query failed", append(fields, FieldError, entry.Err.Error())...)
			return
		}
		log.Debugw("query", fields...)
	})
}
