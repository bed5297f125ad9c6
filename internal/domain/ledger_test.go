package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderCreatedAtIsLenient(t *testing.T) {
	cases := map[string]time.Time{
		`"2025-03-01T19:05:00+07:00"`: time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC),
		`"2025-03-01T19:05:00"`:       time.Date(2025, 3, 1, 19, 5, 0, 0, time.UTC),
		`"2025-03-01 19:05:00"`:       time.Date(2025, 3, 1, 19, 5, 0, 0, time.UTC),
		`1740855900000`:               time.UnixMilli(1740855900000),
		`""`:                          {},
		`"hôm qua"`:                   {},
		`null`:                        {},
		`{"bad": true}`:               {},
	}
	for raw, want := range cases {
		var order Order
		err := json.Unmarshal([]byte(`{"id": 4, "tableId": 1, "status": "pending", "totalAmount": 12000.0, "createdAt": `+raw+`}`), &order)
		require.NoError(t, err, raw)
		assert.True(t, order.CreatedAt.Equal(want), "%s gave %s", raw, order.CreatedAt)
		assert.Equal(t, int64(4), order.ID, raw)
		assert.Equal(t, Money(12000), order.TotalAmount, raw)
		assert.Equal(t, OrderStatusPending, order.Status, raw)
	}
}

func TestOrderRoundTripKeepsCreatedAt(t *testing.T) {
	created := time.Date(2025, 3, 1, 19, 5, 0, 0, time.UTC)
	raw, err := json.Marshal(Order{ID: 1, CreatedAt: created, Items: []OrderItem{{ID: 1, Quantity: 2, Price: 5000}}})
	require.NoError(t, err)

	var back Order
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.CreatedAt.Equal(created))
	require.Len(t, back.Items, 1)
	assert.Equal(t, Money(10000), back.Items[0].Subtotal())
}

func TestOrderRejectsMalformedDocument(t *testing.T) {
	var order Order
	assert.Error(t, json.Unmarshal([]byte(`{"id": "x"}`), &order))
}
