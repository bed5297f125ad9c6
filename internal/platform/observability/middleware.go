package observability

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/huanth/bi-a-manager/internal/platform/auth"
	"github.com/huanth/bi-a-manager/internal/platform/httpx"
	"github.com/huanth/bi-a-manager/internal/platform/requestctx"
)

// wrap adapts fn into chi middleware and tolerates a nil downstream handler.
func wrap(fn func(next http.Handler, w http.ResponseWriter, r *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.NotFoundHandler()
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { fn(next, w, r) })
	}
}

// InjectLoggerMiddleware stores logger on the request context.
func InjectLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return wrap(func(next http.Handler, w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(requestctx.WithLogger(r.Context(), logger)))
	})
}

// RequestLoggerMiddleware logs one line per request with Cloud Logging fields. Route, actor
// and table are read after the handler ran, once chi and auth have filled them in.
func RequestLoggerMiddleware() func(http.Handler) http.Handler {
	return wrap(func(next http.Handler, w http.ResponseWriter, r *http.Request) {
		begun := time.Now()
		base := r.Context()
		tags := append([]zap.Field{
			zap.String("request_id", middleware.GetReqID(base)),
			zap.String("method", SanitizeMethod(r.Method)),
		}, traceFields(base)...)
		if ip := clientAddr(r); ip != "" {
			tags = append(tags, zap.String("remote_ip", ip))
		}
		logger := requestctx.Logger(base).With(tags...)

		slot := &actorSlot{}
		r = r.WithContext(context.WithValue(requestctx.WithLogger(base, logger), actorSlotKey{}, slot))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		completed := false
		defer func() {
			code := ww.Status()
			switch {
			case !completed && code < http.StatusInternalServerError:
				code = http.StatusInternalServerError
			case code == 0:
				code = http.StatusOK
			}
			route := SanitizeRoute(routePattern(r))
			annotateSpan(r.Context(), code, route)

			summary := []zap.Field{
				zap.String("route", route),
				zap.Int("status", code),
				zap.Duration("latency", time.Since(begun)),
				zap.Int("bytes", ww.BytesWritten()),
			}
			if name := actorName(r); name != "" {
				summary = append(summary, zap.String("actor", name))
			}
			if tableID := tableParam(r); tableID != "" {
				summary = append(summary, zap.String("table_id", tableID))
			}
			logger.Log(levelForStatus(code), "request completed", summary...)
		}()

		next.ServeHTTP(ww, r)
		completed = true
	})
}

func traceFields(ctx context.Context) []zap.Field {
	info, _ := requestctx.Trace(ctx)
	return info.Fields()
}

func annotateSpan(ctx context.Context, code int, route string) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(semconv.HTTPResponseStatusCode(code), semconv.HTTPRoute(route))
	if code >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(code))
	}
}

func levelForStatus(code int) zapcore.Level {
	switch {
	case code >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case code >= http.StatusBadRequest:
		return zapcore.WarnLevel
	}
	return zapcore.InfoLevel
}

// RecoveryMiddleware turns panics into a logged stack trace and a JSON 500. fallback is used
// when the request carries no logger of its own.
func RecoveryMiddleware(fallback *zap.Logger) func(http.Handler) http.Handler {
	if fallback == nil {
		fallback = requestctx.NoopLogger()
	}
	return wrap(func(next http.Handler, w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger := requestctx.Logger(r.Context())
			if logger == nil || logger == requestctx.NoopLogger() {
				logger = fallback
			}
			logger.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
			httpx.WriteError(r.Context(), w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
		}()
		next.ServeHTTP(w, r)
	})
}

type actorSlotKey struct{}

// actorSlot lets ActorMiddleware, which runs after authentication deeper in the chain,
// report the actor back to the request logger that wraps it.
type actorSlot struct {
	name string
}

// ActorMiddleware tags the request logger with the authenticated staff member. Mount it
// after auth.RequireStaff.
func ActorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if actor, ok := auth.ActorFromContext(ctx); ok {
			name := SanitizeActor(actor.Username)
			if slot, ok := ctx.Value(actorSlotKey{}).(*actorSlot); ok {
				slot.name = name
			}
			ctx = requestctx.WithFields(ctx, zap.String("actor", name), zap.String("role", string(actor.Role)))
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

func actorName(r *http.Request) string {
	if slot, ok := r.Context().Value(actorSlotKey{}).(*actorSlot); ok && slot.name != "" {
		return slot.name
	}
	if actor, ok := auth.ActorFromContext(r.Context()); ok {
		return SanitizeActor(actor.Username)
	}
	return ""
}

// tableParam returns the {id} of a /tables route, if the request matched one.
func tableParam(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || !strings.Contains(rctx.RoutePattern(), "/tables/{id}") {
		return ""
	}
	return logSafe(rctx.URLParam("id"), 20)
}

// routePattern prefers the matched chi pattern so ids do not reach the log index.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

func clientAddr(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return logSafe(addr, 64)
}
