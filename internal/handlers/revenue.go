package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/huanth/bi-a-manager/internal/platform/httpx"
	"github.com/huanth/bi-a-manager/internal/platform/pagination"
	"github.com/huanth/bi-a-manager/internal/services"
)

type revenueListResponse struct {
	Items         []services.RevenueRecord `json:"items"`
	NextPageToken string                   `json:"nextPageToken,omitempty"`
}

type revenueStatsResponse struct {
	services.RevenueSummary
	Day *services.RevenuePeriod `json:"day,omitempty"`
}

// RevenueHandlers exposes the revenue ledger and its venue-day statistics.
type RevenueHandlers struct {
	revenue  services.RevenueService
	location *time.Location
}

// NewRevenueHandlers constructs a new RevenueHandlers instance. Plain dates in query
// parameters are read in loc.
func NewRevenueHandlers(revenue services.RevenueService, loc *time.Location) *RevenueHandlers {
	if loc == nil {
		loc = time.UTC
	}
	return &RevenueHandlers{revenue: revenue, location: loc}
}

// Routes registers the /revenue endpoints.
func (h *RevenueHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listRevenue)
	r.Get("/stats", h.stats)
}

func (h *RevenueHandlers) listRevenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.revenue == nil {
		serviceUnavailable(w, r, "revenue")
		return
	}

	query := r.URL.Query()
	page, err := pagination.Parse(query)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	var filter services.RevenueFilter
	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		ts, err := parseTimeParam(raw, h.location)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from "+err.Error(), http.StatusBadRequest))
			return
		}
		filter.From = ts
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		ts, err := parseTimeParam(raw, h.location)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to "+err.Error(), http.StatusBadRequest))
			return
		}
		filter.To = ts
	}
	if raw := strings.TrimSpace(query.Get("table_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "table_id must be a positive integer", http.StatusBadRequest))
			return
		}
		filter.TableID = id
	}

	records, err := h.revenue.List(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	scope := query.Get("from") + "|" + query.Get("to") + "|" + query.Get("table_id")
	items, next, err := pagination.Slice(records, page, scope)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	if items == nil {
		items = []services.RevenueRecord{}
	}
	writeJSONResponse(w, http.StatusOK, revenueListResponse{Items: items, NextPageToken: next})
}

// stats answers today, the last seven days and month to date. An optional day=YYYY-MM-DD
// adds that single day.
func (h *RevenueHandlers) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.revenue == nil {
		serviceUnavailable(w, r, "revenue")
		return
	}

	summary, err := h.revenue.Summary(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	resp := revenueStatsResponse{RevenueSummary: summary}

	if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
		day, err := time.ParseInLocation(time.DateOnly, raw, h.location)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "day must be a YYYY-MM-DD date", http.StatusBadRequest))
			return
		}
		period, err := h.revenue.DailyTotals(ctx, day)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		resp.Day = &period
	}

	writeJSONResponse(w, http.StatusOK, resp)
}
