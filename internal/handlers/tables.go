package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/huanth/bi-a-manager/internal/services"
)

type startSessionRequest struct {
	Player string `json:"player"`
}

type tableListResponse struct {
	Items []services.Table `json:"items"`
}

type tableResponse struct {
	Table services.Table `json:"table"`
}

type settlementResponse struct {
	Settlement services.Settlement `json:"settlement"`
}

// TableHandlers exposes the table session lifecycle to staff terminals.
type TableHandlers struct {
	sessions services.TableSessionService
}

// NewTableHandlers constructs a new TableHandlers instance.
func NewTableHandlers(sessions services.TableSessionService) *TableHandlers {
	return &TableHandlers{sessions: sessions}
}

// Routes registers the /tables endpoints.
func (h *TableHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listTables)
	r.Get("/{tableID}", h.getTable)
	r.Get("/{tableID}/preview", h.previewTable)
	r.Post("/{tableID}/start", h.startSession)
	r.Post("/{tableID}/end", h.endSession)
	r.Get("/{tableID}/settlement", h.pendingSettlement)
	r.Post("/{tableID}/settlement/confirm", h.confirmSettlement)
	r.Post("/{tableID}/settlement/cancel", h.cancelSettlement)
	r.Post("/{tableID}/maintenance/begin", h.beginMaintenance)
	r.Post("/{tableID}/maintenance/end", h.endMaintenance)
}

func (h *TableHandlers) listTables(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	tables, err := h.sessions.ListTables(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	if tables == nil {
		tables = []services.Table{}
	}
	writeJSONResponse(w, http.StatusOK, tableListResponse{Items: tables})
}

func (h *TableHandlers) getTable(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	table, err := h.sessions.GetTable(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, tableResponse{Table: table})
}

func (h *TableHandlers) previewTable(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	preview, err := h.sessions.Preview(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, preview)
}

func (h *TableHandlers) startSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req startSessionRequest
	if !decodeCommand(w, r, &req, true) {
		return
	}
	table, err := h.sessions.Start(r.Context(), services.StartSessionCommand{TableID: id, Player: req.Player, Actor: actor})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, tableResponse{Table: table})
}

func (h *TableHandlers) endSession(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	settlement, err := h.sessions.EndSession(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, settlementResponse{Settlement: settlement})
}

func (h *TableHandlers) pendingSettlement(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	settlement, err := h.sessions.PendingSettlement(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, settlementResponse{Settlement: settlement})
}

func (h *TableHandlers) confirmSettlement(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	result, err := h.sessions.ConfirmSettlement(r.Context(), id, actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, result)
}

func (h *TableHandlers) cancelSettlement(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	if err := h.sessions.CancelSettlement(r.Context(), id); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TableHandlers) beginMaintenance(w http.ResponseWriter, r *http.Request) {
	h.maintenance(w, r, true)
}

func (h *TableHandlers) endMaintenance(w http.ResponseWriter, r *http.Request) {
	h.maintenance(w, r, false)
}

func (h *TableHandlers) maintenance(w http.ResponseWriter, r *http.Request, begin bool) {
	if h.sessions == nil {
		serviceUnavailable(w, r, "table")
		return
	}
	id, ok := pathID(w, r, "tableID")
	if !ok {
		return
	}
	transition := h.sessions.EndMaintenance
	if begin {
		transition = h.sessions.BeginMaintenance
	}
	table, err := transition(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, tableResponse{Table: table})
}
