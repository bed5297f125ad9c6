package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/repositories"
	"github.com/huanth/bi-a-manager/internal/services"
)

func decodeBody(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestTableHandlersListAndGet(t *testing.T) {
	svc := &stubTableSessions{tables: []services.Table{
		{ID: 1, Name: "Bàn 1", Status: domain.TableStatusPlaying, StartTime: "20:00"},
		{ID: 2, Name: "Bàn 2", Status: domain.TableStatusEmpty},
	}}
	h := NewTableHandlers(svc)

	rr := serve(h.Routes, &employeeActor, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Items []services.Table `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Items, 2)

	rr = serve(h.Routes, &employeeActor, http.MethodGet, "/2", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var one struct {
		Table services.Table `json:"table"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &one))
	assert.Equal(t, "Bàn 2", one.Table.Name)

	rr = serve(h.Routes, &employeeActor, http.MethodGet, "/9", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "table_not_found", decodeBody(t, rr.Body.Bytes())["error"])

	rr = serve(h.Routes, &employeeActor, http.MethodGet, "/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTableHandlersStartPassesActorAndPlayer(t *testing.T) {
	svc := &stubTableSessions{}
	h := NewTableHandlers(svc)

	rr := serve(h.Routes, &employeeActor, http.MethodPost, "/3/start", `{"player":"Anh Tú"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, svc.started, 1)
	assert.Equal(t, int64(3), svc.started[0].TableID)
	assert.Equal(t, "Anh Tú", svc.started[0].Player)
	assert.Equal(t, employeeActor, svc.started[0].Actor)

	rr = serve(h.Routes, &employeeActor, http.MethodPost, "/3/start", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(h.Routes, &employeeActor, http.MethodPost, "/3/start", `{"player":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(h.Routes, nil, http.MethodPost, "/3/start", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestTableHandlersEndReturnsSettlement(t *testing.T) {
	svc := &stubTableSessions{settlement: services.Settlement{
		Key:        "tbl-1-1740859200",
		TableID:    1,
		TableBill:  domain.ItemizedBill{Total: 160000, Lines: []domain.BillLine{{Label: "Tối", Amount: 160000}}},
		OrderTotal: 50000,
		Total:      210000,
	}}
	h := NewTableHandlers(svc)

	rr := serve(h.Routes, &employeeActor, http.MethodPost, "/1/end", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Settlement services.Settlement `json:"settlement"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "tbl-1-1740859200", body.Settlement.Key)
	assert.Equal(t, domain.Money(210000), body.Settlement.Total)

	rr = serve(h.Routes, &employeeActor, http.MethodGet, "/1/settlement", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestTableHandlersConfirmStatus(t *testing.T) {
	svc := &stubTableSessions{result: services.CommitResult{Revenue: domain.RevenueRecord{ID: 7, Amount: 210000}, Settled: []int64{11}}}
	h := NewTableHandlers(svc)

	rr := serve(h.Routes, &ownerActor, http.MethodPost, "/1/settlement/confirm", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, []domain.Actor{ownerActor}, svc.confirmed)

	svc.result.Replayed = true
	rr = serve(h.Routes, &ownerActor, http.MethodPost, "/1/settlement/confirm", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeBody(t, rr.Body.Bytes())["replayed"])

	rr = serve(h.Routes, &ownerActor, http.MethodPost, "/1/settlement/cancel", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, []int64{1}, svc.cancelled)
}

func TestTableHandlersMaintenance(t *testing.T) {
	h := NewTableHandlers(&stubTableSessions{})

	rr := serve(h.Routes, &employeeActor, http.MethodPost, "/2/maintenance/begin", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"maintenance"`)

	rr = serve(h.Routes, &employeeActor, http.MethodPost, "/2/maintenance/end", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"empty"`)
}

type conflictRepoError struct{}

func (conflictRepoError) Error() string       { return "document changed" }
func (conflictRepoError) IsNotFound() bool    { return false }
func (conflictRepoError) IsConflict() bool    { return true }
func (conflictRepoError) IsUnavailable() bool { return false }

var _ repositories.RepositoryError = conflictRepoError{}

func TestTableHandlersMapServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: services.ErrSessionInvalidState, status: http.StatusConflict, code: "table_invalid_state"},
		{err: services.ErrSessionInconsistent, status: http.StatusUnprocessableEntity, code: "table_inconsistent"},
		{err: services.ErrSettlementNotFound, status: http.StatusNotFound, code: "settlement_not_found"},
		{err: fmt.Errorf("%w: commit: %w", services.ErrSettlementConflict, conflictRepoError{}), status: http.StatusConflict, code: "settlement_conflict"},
		{err: fmt.Errorf("%w: load tables", services.ErrStoreUnavailable), status: http.StatusServiceUnavailable, code: "store_unavailable"},
		{err: fmt.Errorf("unexpected"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			h := NewTableHandlers(&stubTableSessions{err: tc.err})
			rr := serve(h.Routes, &employeeActor, http.MethodPost, "/1/settlement/confirm", "")
			require.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, decodeBody(t, rr.Body.Bytes())["error"])
		})
	}
}

func TestTableHandlersWithoutService(t *testing.T) {
	h := NewTableHandlers(nil)
	rr := serve(h.Routes, &employeeActor, http.MethodPost, "/1/maintenance/begin", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
