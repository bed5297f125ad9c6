package requestctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerDefaultsToNoop(t *testing.T) {
	assert.Same(t, noopLogger, Logger(context.Background()))
	assert.Same(t, noopLogger, Logger(WithLogger(context.Background(), nil)))
}

func TestWithFieldsExtendsLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))
	ctx = WithFields(ctx, zap.String("actor", "thu.ngan"))

	Logger(ctx).Info("settled")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "thu.ngan", entries[0].ContextMap()["actor"])
	}
}

func TestTraceRoundTrip(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
	ctx := WithTrace(context.Background(), TraceInfo{TraceID: "abc", SpanID: "1"})
	assert.Equal(t, "abc", TraceID(ctx))
}

func TestTraceAndLoggerShareScope(t *testing.T) {
	core, _ := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	parent := WithLogger(context.Background(), logger)
	child := WithTrace(parent, TraceInfo{TraceID: "t-1"})

	assert.Same(t, logger, Logger(child))
	assert.Empty(t, TraceID(parent))
	_, ok := Trace(parent)
	assert.False(t, ok)
}

func TestTraceInfoFields(t *testing.T) {
	assert.Nil(t, TraceInfo{}.Fields())
	assert.Len(t, TraceInfo{TraceID: "abc"}.Fields(), 1)

	core, logs := observer.New(zap.InfoLevel)
	zap.New(core).Info("x", TraceInfo{TraceID: "abc", SpanID: "42", Sampled: true, ProjectID: "bia"}.Fields()...)
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "projects/bia/traces/abc", fields["logging.googleapis.com/trace"])
	assert.Equal(t, "42", fields["logging.googleapis.com/spanId"])
	assert.Equal(t, true, fields["logging.googleapis.com/trace_sampled"])
}
