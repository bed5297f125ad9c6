package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strconv"
	"time"
)

// OrderStatus is the lifecycle state of a food and drink order.
type OrderStatus string

const (
	// OrderStatusPending is a newly placed order.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPreparing is being made in the kitchen or bar.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReady is waiting to be served.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusCompleted is settled through a table checkout.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled was withdrawn before settlement.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsOpen reports whether the order still awaits settlement. Pending, preparing and ready
// orders are all open for billing purposes.
func (s OrderStatus) IsOpen() bool {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s.IsOpen() || s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderItem is one menu line of an order.
type OrderItem struct {
	ID           int64  `json:"id"`
	MenuItemID   int64  `json:"menuItemId"`
	MenuItemName string `json:"menuItemName"`
	Quantity     int    `json:"quantity"`
	Price        Money  `json:"price"`
	Note         string `json:"note,omitempty"`
}

// Subtotal returns quantity times unit price.
func (i OrderItem) Subtotal() Money {
	return Money(i.Quantity) * i.Price
}

// Order is a food and drink order placed against a table.
type Order struct {
	ID          int64       `json:"id"`
	TableID     int64       `json:"tableId"`
	TableName   string      `json:"tableName"`
	Items       []OrderItem `json:"items"`
	Status      OrderStatus `json:"status"`
	TotalAmount Money       `json:"totalAmount"`
	CreatedAt   time.Time   `json:"createdAt"`
	CreatedBy   string      `json:"createdBy,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Note        string      `json:"note,omitempty"`
}

// UnmarshalJSON tolerates a missing or unreadable createdAt, which older clients wrote.
// Such an order decodes with a zero CreatedAt and so falls outside every session window.
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	var raw struct {
		plain
		CreatedAt json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*o = Order(raw.plain)
	o.CreatedAt = lenientTime(raw.CreatedAt)
	return nil
}

var legacyTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// lenientTime reads an RFC 3339 string, a zoneless timestamp (taken as UTC) or epoch
// milliseconds. Anything else is the zero time.
func lenientTime(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		if ms, err := strconv.ParseInt(string(raw), 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
		return time.Time{}
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t
		}
	}
	return time.Time{}
}

// RevenueType distinguishes table checkouts from legacy per-order entries.
type RevenueType string

const (
	// RevenueTypeTable is a settled table session, including its orders.
	RevenueTypeTable RevenueType = "table"
	// RevenueTypeOrder is a legacy per-order entry. New entries are never written with this type.
	RevenueTypeOrder RevenueType = "order"
)

// RevenueRecord is an immutable ledger entry. Amount is the combined total of TableAmount
// and OrderAmount; CreatedAt and CreatedBy record when and by whom it was committed.
type RevenueRecord struct {
	ID           int64       `json:"id"`
	Type         RevenueType `json:"type"`
	TableID      int64       `json:"tableId,omitempty"`
	TableName    string      `json:"tableName,omitempty"`
	OrderID      int64       `json:"orderId,omitempty"`
	Amount       Money       `json:"amount"`
	TableAmount  Money       `json:"tableAmount,omitempty"`
	OrderAmount  Money       `json:"orderAmount,omitempty"`
	OrderIDs     []int64     `json:"orderIds,omitempty"`
	SettlementID string      `json:"settlementId,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	CreatedBy    string      `json:"createdBy,omitempty"`
	Note         string      `json:"note,omitempty"`
}

// NextID returns a numeric identifier derived from now in milliseconds, bumped past every
// id already in use.
func NextID(now time.Time, used ...int64) int64 {
	id := now.UnixMilli()
	if len(used) == 0 {
		return id
	}
	if highest := slices.Max(used); highest >= id {
		id = highest + 1
	}
	return id
}
