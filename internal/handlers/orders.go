package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/httpx"
	"github.com/huanth/bi-a-manager/internal/services"
)

type placeOrderItemRequest struct {
	MenuItemID   int64        `json:"menuItemId"`
	MenuItemName string       `json:"menuItemName"`
	Quantity     int          `json:"quantity"`
	Price        domain.Money `json:"price"`
	Note         string       `json:"note"`
}

type placeOrderRequest struct {
	TableID int64                   `json:"tableId"`
	Items   []placeOrderItemRequest `json:"items"`
	Note    string                  `json:"note"`
}

type advanceOrderRequest struct {
	Status string `json:"status"`
}

type orderListResponse struct {
	Items []services.Order `json:"items"`
}

type orderResponse struct {
	Order services.Order `json:"order"`
}

// OrderHandlers exposes food and drink ordering to staff terminals.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.listOrders)
	r.Post("/", h.placeOrder)
	r.Post("/{orderID}/advance", h.advanceOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(w, r, "order")
		return
	}

	query := r.URL.Query()
	filter := services.OrderFilter{}
	if raw := strings.TrimSpace(query.Get("table_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "table_id must be a positive integer", http.StatusBadRequest))
			return
		}
		filter.TableID = id
	}
	for _, status := range parseFilterValues(query["status"]) {
		filter.Statuses = append(filter.Statuses, domain.OrderStatus(status))
	}

	orders, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	if orders == nil {
		orders = []services.Order{}
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{Items: orders})
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(w, r, "order")
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req placeOrderRequest
	if !decodeCommand(w, r, &req, false) {
		return
	}

	cmd := services.PlaceOrderCommand{
		TableID: req.TableID,
		Note:    req.Note,
		Actor:   actor,
		Items:   make([]services.PlaceOrderItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.PlaceOrderItem{
			MenuItemID:   item.MenuItemID,
			MenuItemName: item.MenuItemName,
			Quantity:     item.Quantity,
			Price:        item.Price,
			Note:         item.Note,
		})
	}

	order, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: order})
}

func (h *OrderHandlers) advanceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(w, r, "order")
		return
	}
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req advanceOrderRequest
	if !decodeCommand(w, r, &req, false) {
		return
	}
	order, err := h.orders.AdvanceOrder(ctx, services.AdvanceOrderCommand{
		OrderID: id,
		Status:  domain.OrderStatus(req.Status),
		Actor:   actor,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: order})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		serviceUnavailable(w, r, "order")
		return
	}
	id, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	order, err := h.orders.CancelOrder(ctx, id, actor)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: order})
}
