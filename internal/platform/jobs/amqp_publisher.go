package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/huanth/bi-a-manager/internal/platform/events"
)

const defaultExchange = "billiards.events"

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes venue events to a RabbitMQ topic exchange. The routing key is the
// event name, so consumers can bind "settlement.*" or "#".
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
	clock    func() time.Time
}

var _ events.Sink = (*AMQPPublisher)(nil)

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("amqp publisher: url is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp publisher: open channel: %w", err)
	}
	publisher, err := newAMQPPublisher(ch, exchange)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	publisher.conn = conn
	return publisher, nil
}

func newAMQPPublisher(ch amqpChannel, exchange string) (*AMQPPublisher, error) {
	if ch == nil {
		return nil, errors.New("amqp publisher: channel is required")
	}
	exchange = strings.TrimSpace(exchange)
	if exchange == "" {
		exchange = defaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp publisher: declare exchange: %w", err)
	}
	return &AMQPPublisher{channel: ch, exchange: exchange, clock: time.Now}, nil
}

// Deliver implements events.Sink. Messages are persistent JSON.
func (p *AMQPPublisher) Deliver(ctx context.Context, event events.Event) error {
	if p == nil || p.channel == nil {
		return errors.New("amqp publisher: not initialised")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	headers := amqp.Table{}
	for k, v := range attributes(event) {
		headers[k] = v
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, p.exchange, string(event.Name), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.clock().UTC(),
		ContentType:  "application/json",
		MessageId:    event.ID,
		Headers:      headers,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Ping reports whether the broker connection is still open.
func (p *AMQPPublisher) Ping(context.Context) error {
	if p == nil || p.conn == nil || p.conn.IsClosed() {
		return errors.New("amqp publisher: connection closed")
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
