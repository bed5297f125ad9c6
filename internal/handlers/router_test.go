package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/services"
)

func TestNewRouterDefaultMounts(t *testing.T) {
	now := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			GeneratedAt: now,
			Checks:      map[string]domain.SystemHealthCheck{"document_store": {Status: domain.HealthStatusOK}},
		}}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	cases := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantErr  string
	}{
		{name: "liveness", method: http.MethodGet, path: "/healthz", wantCode: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/readyz", wantCode: http.StatusOK},
		{name: "unmounted public group", method: http.MethodPost, path: "/api/v1/auth/login", wantCode: http.StatusNotImplemented, wantErr: "not_implemented"},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantCode: http.StatusNotFound, wantErr: errorNotFoundCode},
		{name: "wrong method on probe", method: http.MethodPost, path: "/healthz", wantCode: http.StatusMethodNotAllowed, wantErr: "method_not_allowed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))

			require.Equal(t, tc.wantCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, decodeBody(t, rr.Body.Bytes())["error"])
			}
		})
	}
}

func TestNewRouterDisablesCachingUnderAPIPrefix(t *testing.T) {
	router := NewRouter()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil))
	assert.Contains(t, rr.Header().Get("Cache-Control"), "no-cache")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, rr.Header().Get("Cache-Control"))
}

func TestNewRouter_StaffGroupsRequireToken(t *testing.T) {
	issuer := newTestIssuer(t)
	tables := &stubTableSessions{tables: []services.Table{{ID: 1, Name: "Bàn 1", Status: domain.TableStatusEmpty}}}
	revenue := &stubRevenue{}

	router := NewRouter(
		WithTokenVerifier(issuer),
		WithTableRoutes(NewTableHandlers(tables).Routes),
		WithRevenueRoutes(NewRevenueHandlers(revenue, time.UTC).Routes),
		WithAdminRoutes(NewAdminHandlers(&stubExports{}).Routes),
	)

	do := func(method, path, authz string) int {
		req := httptest.NewRequest(method, path, nil)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		return rr.Code
	}

	if code := do(http.MethodGet, "/api/v1/tables/", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := do(http.MethodGet, "/api/v1/tables/", "Bearer forged"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with forged token, got %d", code)
	}

	employee := bearer(t, issuer, employeeActor)
	owner := bearer(t, issuer, ownerActor)

	if code := do(http.MethodGet, "/api/v1/tables/", employee); code != http.StatusOK {
		t.Fatalf("expected 200 for employee on tables, got %d", code)
	}
	if code := do(http.MethodPost, "/api/v1/tables/1/start", employee); code != http.StatusOK {
		t.Fatalf("expected 200 starting table, got %d", code)
	}
	if len(tables.started) != 1 || tables.started[0].Actor != employeeActor {
		t.Fatalf("expected actor from token on command, got %+v", tables.started)
	}
	if code := do(http.MethodGet, "/api/v1/revenue/stats", employee); code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee on revenue, got %d", code)
	}
	if code := do(http.MethodGet, "/api/v1/revenue/stats", owner); code != http.StatusOK {
		t.Fatalf("expected 200 for owner on revenue, got %d", code)
	}
	if code := do(http.MethodPost, "/api/v1/admin/export", employee); code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee on export, got %d", code)
	}
	if code := do(http.MethodGet, "/api/v1/orders/", owner); code != http.StatusNotImplemented {
		t.Fatalf("expected 501 for unmounted orders group, got %d", code)
	}
}
