package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/auth"
	"github.com/huanth/bi-a-manager/internal/platform/httpx"
	"github.com/huanth/bi-a-manager/internal/platform/requestctx"
	"github.com/huanth/bi-a-manager/internal/services"
)

const maxCommandBodySize = 16 * 1024

type serviceErrorMapping struct {
	target error
	code   string
	status int
	// generic replaces err.Error() in the response.
	generic string
}

var serviceErrorMappings = []serviceErrorMapping{
	{target: services.ErrSessionInvalidInput, code: "invalid_request", status: http.StatusBadRequest},
	{target: services.ErrOrderInvalidInput, code: "invalid_request", status: http.StatusBadRequest},
	{target: services.ErrRevenueInvalidRange, code: "invalid_range", status: http.StatusBadRequest},
	{target: services.ErrAuthInvalidCredentials, code: "invalid_credentials", status: http.StatusUnauthorized, generic: "username or password is incorrect"},
	{target: services.ErrSessionNotFound, code: "table_not_found", status: http.StatusNotFound},
	{target: services.ErrOrderNotFound, code: "order_not_found", status: http.StatusNotFound},
	{target: services.ErrSettlementNotFound, code: "settlement_not_found", status: http.StatusNotFound},
	{target: services.ErrSettlementConflict, code: "settlement_conflict", status: http.StatusConflict},
	{target: services.ErrSessionInvalidState, code: "table_invalid_state", status: http.StatusConflict},
	{target: services.ErrOrderInvalidState, code: "order_invalid_state", status: http.StatusConflict},
	{target: services.ErrSessionInconsistent, code: "table_inconsistent", status: http.StatusUnprocessableEntity},
	{target: services.ErrExportNotConfigured, code: "export_not_configured", status: http.StatusNotImplemented},
	{target: services.ErrStoreUnavailable, code: "store_unavailable", status: http.StatusServiceUnavailable, generic: "document store unavailable; retry shortly"},
}

// writeServiceError maps service sentinels onto the JSON error envelope. Unmapped errors are
// logged and answered with a generic 500.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	for _, m := range serviceErrorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		message := m.generic
		if message == "" {
			message = err.Error()
		}
		if m.status >= http.StatusInternalServerError {
			requestctx.Logger(ctx).Warn("service unavailable", zap.String("code", m.code), zap.Error(err))
		}
		httpx.WriteError(ctx, w, httpx.NewError(m.code, message, m.status))
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
		return
	}
	requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError))
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeCommand(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	if err := httpx.DecodeJSON(r, dst, maxCommandBodySize, allowEmpty); err != nil {
		httpx.WriteError(r.Context(), w, *err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", fmt.Sprintf("%s must be a positive integer", param), http.StatusBadRequest))
		return 0, false
	}
	return id, true
}

func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return domain.Actor{}, false
	}
	return actor, true
}

func serviceUnavailable(w http.ResponseWriter, r *http.Request, name string) {
	httpx.WriteError(r.Context(), w, httpx.NewError(name+"_service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToLower(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

// parseTimeParam accepts RFC3339 timestamps and plain dates. Dates are midnight in loc.
func parseTimeParam(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if day, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return day, nil
	}
	return time.Time{}, errors.New("must be an RFC3339 timestamp or YYYY-MM-DD date")
}
