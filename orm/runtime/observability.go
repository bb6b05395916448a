package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/deicod/pizzeria/internal/observability/metrics"
	"github.com/deicod/pizzeria/observability/tracing"
)

// QueryOperation identifies the kind of statement being executed.
type QueryOperation string

const (
	OperationSelect QueryOperation = "select"
	OperationInsert QueryOperation = "insert"
	OperationDelete QueryOperation = "delete"
)

// QueryLog describes the structured payload emitted for each store query.
type QueryLog struct {
	Operation     QueryOperation
	Table         string
	SQL           string
	Args          []any
	Duration      time.Duration
	Err           error
	CorrelationID string
}

// QueryLogger receives structured query events.
type QueryLogger interface {
	LogQuery(ctx context.Context, entry QueryLog)
}

// QueryLoggerFunc adapts plain functions to QueryLogger.
type QueryLoggerFunc func(context.Context, QueryLog)

// LogQuery implements QueryLogger.
func (fn QueryLoggerFunc) LogQuery(ctx context.Context, entry QueryLog) {
	if fn == nil {
		return
	}
	fn(ctx, entry)
}

// CorrelationProvider extracts correlation IDs from the request context.
type CorrelationProvider interface {
	CorrelationID(context.Context) string
}

// CorrelationProviderFunc adapts functions into CorrelationProvider implementations.
type CorrelationProviderFunc func(context.Context) string

// CorrelationID implements CorrelationProvider.
func (fn CorrelationProviderFunc) CorrelationID(ctx context.Context) string {
	if fn == nil {
		return ""
	}
	return fn(ctx)
}

// QueryObserver coordinates logging, metrics, and tracing for store queries.
// The zero value observes nothing.
type QueryObserver struct {
	Logger     QueryLogger
	Tracer     tracing.Tracer
	Collector  metrics.Collector
	Correlator CorrelationProvider
}

// ObservationOption customises a single observation.
type ObservationOption func(*observationConfig)

type observationConfig struct {
	attrs []tracing.Attribute
}

// WithObservationAttributes attaches extra span attributes.
func WithObservationAttributes(attrs ...tracing.Attribute) ObservationOption {
	return func(cfg *observationConfig) {
		cfg.attrs = append(cfg.attrs, attrs...)
	}
}

// Observe prepares an observation handle for the provided query. Call End on the
// returned observation once the driver call completes.
func (o QueryObserver) Observe(ctx context.Context, op QueryOperation, table, sql string, args []any, opts ...ObservationOption) QueryObservation {
	if ctx == nil {
		ctx = context.Background()
	}
	var cfg observationConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	correlation := ""
	if o.Correlator != nil {
		correlation = o.Correlator.CorrelationID(ctx)
	}

	attrs := []tracing.Attribute{
		tracing.String("db.table", table),
		tracing.String("db.operation", string(op)),
		tracing.Int("db.arg_count", len(args)),
	}
	if correlation != "" {
		attrs = append(attrs, tracing.String("pizzeria.request_id", correlation))
	}
	attrs = append(attrs, cfg.attrs...)

	spanCtx, span := tracing.OrNoop(o.Tracer).Start(ctx, fmt.Sprintf("db.%s.%s", table, op), attrs...)

	obs := QueryObservation{
		ctx:           spanCtx,
		start:         time.Now(),
		op:            op,
		table:         table,
		sql:           sql,
		span:          span,
		collector:     o.Collector,
		logger:        o.Logger,
		correlationID: correlation,
	}
	if o.Logger != nil {
		obs.args = append([]any(nil), args...)
	}
	return obs
}

// QueryObservation tracks a single in-flight query.
type QueryObservation struct {
	ctx           context.Context
	start         time.Time
	op            QueryOperation
	table         string
	sql           string
	args          []any
	span          tracing.Span
	collector     metrics.Collector
	logger        QueryLogger
	correlationID string
}

// Context returns the context propagated to the driver call.
func (obs QueryObservation) Context() context.Context {
	if obs.ctx != nil {
		return obs.ctx
	}
	return context.Background()
}

// End finalises the observation, emitting logs, metrics, and span completion.
func (obs QueryObservation) End(err error) {
	if obs.span != nil {
		obs.span.End(err)
	}
	duration := time.Since(obs.start)

	if obs.collector != nil {
		obs.collector.RecordQuery(obs.table, string(obs.op), duration, err)
	}
	if obs.logger != nil {
		obs.logger.LogQuery(obs.Context(), QueryLog{
			Operation:     obs.op,
			Table:         obs.table,
			SQL:           obs.sql,
			Args:          obs.args,
			Duration:      duration,
			Err:           err,
			CorrelationID: obs.correlationID,
		})
	}
}
