package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	runIDKey      contextKey = "run_id"
	supplierIDKey contextKey = "supplier_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the HTTP request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithRunID stores the ingestion run id
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// WithSupplierID stores the supplier currently being processed
func WithSupplierID(ctx context.Context, supplierID string) context.Context {
	return context.WithValue(ctx, supplierIDKey, supplierID)
}

// GetRequestID retrieves the request id from context
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// GetRunID retrieves the run id from context
func GetRunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// GetSupplierID retrieves the supplier id from context
func GetSupplierID(ctx context.Context) string {
	v, _ := ctx.Value(supplierIDKey).(string)
	return v
}

// L returns the context logger enriched with trace, request, run and
// supplier identifiers.
//
//	logger.L(ctx).Info("feed fetched", zap.Int("bytes", n))
func L(ctx context.Context) *zap.Logger {
	l := FromContext(ctx)

	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		l = l.With(
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if id := GetRequestID(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if id := GetRunID(ctx); id != "" {
		l = l.With(zap.String("run_id", id))
	}
	if id := GetSupplierID(ctx); id != "" {
		l = l.With(zap.String("supplier_id", id))
	}
	return l
}
