package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/events"
	"github.com/huanth/bi-a-manager/internal/repositories"
)

const (
	orderEventPlaced        = "order.placed"
	orderEventStatusChanged = "order.status.changed"

	maxOrderItemQuantity = 999
)

// Only settlement completes an order; status changes here never touch revenue.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:   {domain.OrderStatusPreparing, domain.OrderStatusReady},
	domain.OrderStatusPreparing: {domain.OrderStatusReady},
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders repositories.OrderRepository
	Tables repositories.TableRepository
	Events EventPublisher
	Clock  func() time.Time
	Logger func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders repositories.OrderRepository
	tables repositories.TableRepository
	events EventPublisher
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Tables == nil {
		return nil, errors.New("order service: table repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders: deps.Orders,
		tables: deps.Tables,
		events: deps.Events,
		clock:  clock,
		logger: logger,
	}, nil
}

// PlaceOrder records a new pending order against an occupied table.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	if cmd.TableID <= 0 {
		return Order{}, fmt.Errorf("%w: table id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	var total domain.Money
	for i, line := range cmd.Items {
		name := sanitizeText(line.MenuItemName, maxPlayerLength)
		switch {
		case line.MenuItemID <= 0:
			return Order{}, fmt.Errorf("%w: item %d: menu item id is required", ErrOrderInvalidInput, i)
		case name == "":
			return Order{}, fmt.Errorf("%w: item %d: name is required", ErrOrderInvalidInput, i)
		case line.Quantity <= 0 || line.Quantity > maxOrderItemQuantity:
			return Order{}, fmt.Errorf("%w: item %d: quantity must be between 1 and %d", ErrOrderInvalidInput, i, maxOrderItemQuantity)
		case line.Price < 0:
			return Order{}, fmt.Errorf("%w: item %d: price must not be negative", ErrOrderInvalidInput, i)
		}
		item := domain.OrderItem{
			ID:           int64(i + 1),
			MenuItemID:   line.MenuItemID,
			MenuItemName: name,
			Quantity:     line.Quantity,
			Price:        line.Price,
			Note:         sanitizeText(line.Note, maxNoteLength),
		}
		items = append(items, item)
		total += item.Subtotal()
	}

	tables, err := s.tables.LoadTables(ctx)
	if err != nil {
		return Order{}, storeError("load tables", err)
	}
	idx := slices.IndexFunc(tables, func(t domain.Table) bool { return t.ID == cmd.TableID })
	if idx < 0 {
		return Order{}, fmt.Errorf("%w: table %d", ErrSessionNotFound, cmd.TableID)
	}
	table := tables[idx]
	if !table.IsOccupied() {
		return Order{}, fmt.Errorf("%w: table %d is %s", ErrSessionInvalidState, table.ID, table.Status)
	}

	orders, err := s.orders.LoadOrders(ctx)
	if err != nil {
		return Order{}, storeError("load orders", err)
	}

	now := s.clock()
	order := Order{
		ID:          domain.NextID(now, orderIDs(orders)...),
		TableID:     table.ID,
		TableName:   table.Name,
		Items:       items,
		Status:      domain.OrderStatusPending,
		TotalAmount: total,
		CreatedAt:   now,
		CreatedBy:   cmd.Actor.Name(),
		Note:        sanitizeText(cmd.Note, maxNoteLength),
	}
	if err := s.orders.SaveOrders(ctx, append(orders, order)); err != nil {
		return Order{}, storeError("save orders", err)
	}

	s.publish(ctx, events.Event{Name: events.OrdersChanged, Actor: cmd.Actor.Name(), TableID: table.ID, OrderIDs: []int64{order.ID}})
	s.logger(ctx, orderEventPlaced, map[string]any{
		"orderId": order.ID,
		"tableId": table.ID,
		"items":   len(items),
		"amount":  int64(total),
	})
	return order, nil
}

// AdvanceOrder moves an open order forward in the kitchen pipeline.
func (s *orderService) AdvanceOrder(ctx context.Context, cmd AdvanceOrderCommand) (Order, error) {
	target := domain.OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.Status))))
	if !target.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if target == domain.OrderStatusCompleted {
		return Order{}, fmt.Errorf("%w: orders are completed by settling their table", ErrOrderInvalidState)
	}
	return s.update(ctx, cmd.OrderID, cmd.Actor, func(order *domain.Order) error {
		if !slices.Contains(orderStateTransitions[order.Status], target) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, target)
		}
		order.Status = target
		return nil
	})
}

// CancelOrder withdraws an order that has not been settled.
func (s *orderService) CancelOrder(ctx context.Context, orderID int64, actor domain.Actor) (Order, error) {
	return s.update(ctx, orderID, actor, func(order *domain.Order) error {
		if !order.Status.IsOpen() {
			return fmt.Errorf("%w: %s order cannot be cancelled", ErrOrderInvalidState, order.Status)
		}
		order.Status = domain.OrderStatusCancelled
		return nil
	})
}

// ListOrders returns matching orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, status)
		}
	}
	orders, err := s.orders.LoadOrders(ctx)
	if err != nil {
		return nil, storeError("load orders", err)
	}
	out := make([]Order, 0, len(orders))
	for _, order := range orders {
		if filter.TableID > 0 && order.TableID != filter.TableID {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, order.Status) {
			continue
		}
		out = append(out, order)
	}
	slices.SortStableFunc(out, func(a, b Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *orderService) update(ctx context.Context, orderID int64, actor domain.Actor, apply func(*domain.Order) error) (Order, error) {
	if orderID <= 0 {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	orders, err := s.orders.LoadOrders(ctx)
	if err != nil {
		return Order{}, storeError("load orders", err)
	}
	idx := slices.IndexFunc(orders, func(o domain.Order) bool { return o.ID == orderID })
	if idx < 0 {
		return Order{}, fmt.Errorf("%w: order %d", ErrOrderNotFound, orderID)
	}
	previous := orders[idx].Status
	if err := apply(&orders[idx]); err != nil {
		return Order{}, err
	}
	if err := s.orders.SaveOrders(ctx, orders); err != nil {
		return Order{}, storeError("save orders", err)
	}

	order := orders[idx]
	s.publish(ctx, events.Event{Name: events.OrdersChanged, Actor: actor.Name(), TableID: order.TableID, OrderIDs: []int64{order.ID}})
	s.logger(ctx, orderEventStatusChanged, map[string]any{
		"orderId": order.ID,
		"from":    string(previous),
		"to":      string(order.Status),
	})
	return order, nil
}

func (s *orderService) publish(ctx context.Context, event events.Event) {
	if s.events != nil {
		s.events.Publish(ctx, event)
	}
}
