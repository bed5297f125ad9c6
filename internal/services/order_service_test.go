package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/huanth/bi-a-manager/internal/domain"
	"github.com/huanth/bi-a-manager/internal/platform/events"
)

func newOrderFixture(t *testing.T, venue *venueStub) (OrderService, *recordingPublisher) {
	t.Helper()
	publisher := &recordingPublisher{}
	svc, err := NewOrderService(OrderServiceDeps{
		Orders: venue,
		Tables: venue,
		Events: publisher,
		Clock:  fixedNow(commitNow),
	})
	require.NoError(t, err)
	return svc, publisher
}

func TestPlaceOrderComputesTotalAndSanitises(t *testing.T) {
	venue := occupiedVenue()
	svc, publisher := newOrderFixture(t, venue)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		TableID: 1,
		Items: []PlaceOrderItem{
			{MenuItemID: 5, MenuItemName: "Trà đá", Quantity: 3, Price: 5000, Note: "<script>alert(1)</script>Ít   đá"},
			{MenuItemID: 8, MenuItemName: "Bò húc", Quantity: 2, Price: 15000},
		},
		Note:  "<i>Mang ra bàn</i>",
		Actor: cashier,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.NextID(commitNow, 11, 12, 13), order.ID)
	assert.Equal(t, int64(1), order.TableID)
	assert.Equal(t, "Bàn 1", order.TableName)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.Money(45000), order.TotalAmount)
	assert.Equal(t, "thu.ngan", order.CreatedBy)
	assert.Equal(t, "Mang ra bàn", order.Note)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Ít đá", order.Items[0].Note)
	assert.Equal(t, int64(2), order.Items[1].ID)

	assert.Len(t, venue.orders, 4)
	assert.Equal(t, []events.Name{events.OrdersChanged}, publisher.names())
}

func TestPlaceOrderValidation(t *testing.T) {
	venue := occupiedVenue()
	svc, _ := newOrderFixture(t, venue)
	ctx := context.Background()
	item := PlaceOrderItem{MenuItemID: 5, MenuItemName: "Trà đá", Quantity: 1, Price: 5000}

	cases := []struct {
		name string
		cmd  PlaceOrderCommand
		want error
	}{
		{name: "no items", cmd: PlaceOrderCommand{TableID: 1}, want: ErrOrderInvalidInput},
		{name: "no table", cmd: PlaceOrderCommand{Items: []PlaceOrderItem{item}}, want: ErrOrderInvalidInput},
		{name: "zero quantity", cmd: PlaceOrderCommand{TableID: 1, Items: []PlaceOrderItem{{MenuItemID: 5, MenuItemName: "Trà", Price: 1}}}, want: ErrOrderInvalidInput},
		{name: "negative price", cmd: PlaceOrderCommand{TableID: 1, Items: []PlaceOrderItem{{MenuItemID: 5, MenuItemName: "Trà", Quantity: 1, Price: -1}}}, want: ErrOrderInvalidInput},
		{name: "markup only name", cmd: PlaceOrderCommand{TableID: 1, Items: []PlaceOrderItem{{MenuItemID: 5, MenuItemName: "<b></b>", Quantity: 1}}}, want: ErrOrderInvalidInput},
		{name: "vacant table", cmd: PlaceOrderCommand{TableID: 2, Items: []PlaceOrderItem{item}}, want: ErrSessionInvalidState},
		{name: "unknown table", cmd: PlaceOrderCommand{TableID: 7, Items: []PlaceOrderItem{item}}, want: ErrSessionNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.PlaceOrder(ctx, tc.cmd)
			require.ErrorIs(t, err, tc.want)
		})
	}
	assert.Len(t, venue.orders, 3)
}

func TestAdvanceOrderPipeline(t *testing.T) {
	venue := occupiedVenue()
	svc, _ := newOrderFixture(t, venue)
	ctx := context.Background()

	order, err := svc.AdvanceOrder(ctx, AdvanceOrderCommand{OrderID: 11, Status: "Preparing"})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPreparing, order.Status)

	_, err = svc.AdvanceOrder(ctx, AdvanceOrderCommand{OrderID: 11, Status: domain.OrderStatusPending})
	require.ErrorIs(t, err, ErrOrderInvalidState)

	order, err = svc.AdvanceOrder(ctx, AdvanceOrderCommand{OrderID: 11, Status: domain.OrderStatusReady})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReady, venue.order(11).Status)

	_, err = svc.AdvanceOrder(ctx, AdvanceOrderCommand{OrderID: 12, Status: domain.OrderStatusCompleted})
	require.ErrorIs(t, err, ErrOrderInvalidState)
	assert.Equal(t, domain.OrderStatusReady, venue.order(12).Status)
	assert.Empty(t, venue.revenue)

	_, err = svc.AdvanceOrder(ctx, AdvanceOrderCommand{OrderID: 11, Status: "served"})
	require.ErrorIs(t, err, ErrOrderInvalidInput)

	_, err = svc.AdvanceOrder(ctx, AdvanceOrderCommand{OrderID: 404, Status: domain.OrderStatusReady})
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelOrder(t *testing.T) {
	venue := occupiedVenue()
	svc, _ := newOrderFixture(t, venue)
	ctx := context.Background()

	order, err := svc.CancelOrder(ctx, 12, cashier)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)

	_, err = svc.CancelOrder(ctx, 12, cashier)
	require.ErrorIs(t, err, ErrOrderInvalidState)
	_, err = svc.CancelOrder(ctx, 13, cashier)
	require.ErrorIs(t, err, ErrOrderInvalidState)
}

func TestListOrdersFiltersAndSortsNewestFirst(t *testing.T) {
	venue := occupiedVenue()
	venue.orders = append(venue.orders, domain.Order{ID: 14, TableID: 2, Status: domain.OrderStatusPending, CreatedAt: commitNow.Add(-time.Minute)})
	svc, _ := newOrderFixture(t, venue)
	ctx := context.Background()

	all, err := svc.ListOrders(ctx, OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{14, 12, 11, 13}, orderIDs(all))

	open, err := svc.ListOrders(ctx, OrderFilter{TableID: 1, Statuses: []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusReady}})
	require.NoError(t, err)
	assert.Equal(t, []int64{12, 11}, orderIDs(open))

	_, err = svc.ListOrders(ctx, OrderFilter{Statuses: []domain.OrderStatus{"lost"}})
	require.ErrorIs(t, err, ErrOrderInvalidInput)
}
