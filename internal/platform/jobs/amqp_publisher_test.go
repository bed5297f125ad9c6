package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huanth/bi-a-manager/internal/platform/events"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	declared   []string
	declareErr error
	publishErr error
	sent       []published
	closed     bool
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	f.declared = append(f.declared, name+":"+kind)
	return f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPPublisherRoutesByEventName(t *testing.T) {
	ch := &fakeChannel{}
	publisher, err := newAMQPPublisher(ch, "")
	require.NoError(t, err)
	publisher.clock = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	err = publisher.Deliver(context.Background(), events.Event{ID: "01JX", Name: events.OrdersChanged, TableID: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"billiards.events:topic"}, ch.declared)
	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, "billiards.events", sent.exchange)
	assert.Equal(t, "orders.changed", sent.key)
	assert.Equal(t, uint8(amqp.Persistent), sent.msg.DeliveryMode)
	assert.Equal(t, "01JX", sent.msg.MessageId)
	assert.Equal(t, "2", sent.msg.Headers["tableId"])

	var decoded events.Event
	require.NoError(t, json.Unmarshal(sent.msg.Body, &decoded))
	assert.Equal(t, int64(2), decoded.TableID)
}

func TestAMQPPublisherErrors(t *testing.T) {
	_, err := newAMQPPublisher(&fakeChannel{declareErr: errors.New("denied")}, "x")
	assert.Error(t, err)

	ch := &fakeChannel{publishErr: errors.New("closed")}
	publisher, err := newAMQPPublisher(ch, "x")
	require.NoError(t, err)
	assert.Error(t, publisher.Deliver(context.Background(), events.Event{Name: events.RevenueChanged}))

	require.NoError(t, publisher.Close())
	assert.True(t, ch.closed)
}

func TestDialAMQPRequiresURL(t *testing.T) {
	_, err := DialAMQP(" ", "x")
	assert.Error(t, err)
}
