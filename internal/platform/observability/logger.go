// Package observability builds the zap logger, HTTP logging/recovery/trace middleware and
// the settlement metrics.
package observability

import (
	"context"
	"maps"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/huanth/bi-a-manager/internal/platform/requestctx"
)

// cloudLoggingEncoder names fields the way Cloud Logging's structured payload expects.
func cloudLoggingEncoder() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:       "timestamp",
		LevelKey:      "severity",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "message",
		StacktraceKey: "stacktrace",
		EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeName:    zapcore.FullNameEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
}

// NewLogger builds a JSON logger on stdout. An empty or unknown level means info.
func NewLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || strings.TrimSpace(level) == "" {
		lvl = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cloudLoggingEncoder()), zapcore.Lock(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(os.Stderr))), nil
}

// EventLogger adapts zap to the func(ctx, event, fields) hook the services take. Entries go
// to the request logger on ctx when there is one, so they carry request and trace ids.
// Events ending in ".failed" or carrying an "error" field log at warn.
func EventLogger(fallback *zap.Logger, name string) func(ctx context.Context, event string, fields map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	fallback = fallback.Named(name)
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := fallback
		if reqLogger := requestctx.Logger(ctx); reqLogger != requestctx.NoopLogger() {
			logger = reqLogger.Named(name)
		}

		zf := make([]zap.Field, 0, len(fields)+1)
		zf = append(zf, zap.String("event", event))
		for _, k := range slices.Sorted(maps.Keys(fields)) {
			zf = append(zf, zap.Any(k, fields[k]))
		}

		level := zapcore.InfoLevel
		if _, failed := fields["error"]; failed || strings.HasSuffix(event, ".failed") {
			level = zapcore.WarnLevel
		}
		logger.Log(level, event, zf...)
	}
}
