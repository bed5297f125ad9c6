// Package requestctx carries the request-scoped logger and trace metadata.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

// scope is everything a request carries beyond chi's own values. Each With* call stores a copy
// so parent contexts are never mutated.
type scope struct {
	logger *zap.Logger
	trace  TraceInfo
}

type scopeKey struct{}

var noopLogger = zap.NewNop()

// TraceInfo is the trace metadata propagated with a request.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// Fields renders t with the keys Cloud Logging uses to correlate entries with traces. The
// trace resource is omitted without a project id.
func (t TraceInfo) Fields() []zap.Field {
	if t.TraceID == "" {
		return nil
	}
	fields := []zap.Field{zap.String("trace_id", t.TraceID)}
	if t.ProjectID != "" {
		fields = append(fields,
			zap.String("logging.googleapis.com/trace", "projects/"+t.ProjectID+"/traces/"+t.TraceID),
			zap.String("logging.googleapis.com/spanId", t.SpanID),
			zap.Bool("logging.googleapis.com/trace_sampled", t.Sampled),
		)
	}
	return fields
}

func current(ctx context.Context) scope {
	if ctx == nil {
		return scope{}
	}
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func store(ctx context.Context, s scope) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, scopeKey{}, s)
}

// WithLogger stores logger on ctx. A nil logger stores the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	s := current(ctx)
	s.logger = logger
	return store(ctx, s)
}

// Logger returns the logger on ctx, or a no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if l := current(ctx).logger; l != nil {
		return l
	}
	return noopLogger
}

// NoopLogger returns the shared no-op logger.
func NoopLogger() *zap.Logger { return noopLogger }

// WithFields returns ctx carrying the current logger extended with fields.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return WithLogger(ctx, Logger(ctx).With(fields...))
}

// WithTrace stores trace metadata on ctx.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	s := current(ctx)
	s.trace = info
	return store(ctx, s)
}

// Trace returns the trace metadata on ctx.
func Trace(ctx context.Context) (TraceInfo, bool) {
	info := current(ctx).trace
	return info, info.TraceID != ""
}

// TraceID returns the trace identifier on ctx, if any.
func TraceID(ctx context.Context) string {
	return current(ctx).trace.TraceID
}
