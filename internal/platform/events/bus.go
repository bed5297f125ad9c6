// Package events carries in-process notifications ("orders changed", "revenue changed",
// "settlement completed") from services to subscribers and optional outbound sinks.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/huanth/bi-a-manager/internal/domain"
)

// Name identifies an event kind.
type Name string

const (
	TablesChanged       Name = "tables.changed"
	OrdersChanged       Name = "orders.changed"
	RevenueChanged      Name = "revenue.changed"
	SettlementCompleted Name = "settlement.completed"
)

// Event is one notification. Revenue is set for SettlementCompleted.
type Event struct {
	ID         string                `json:"id"`
	Name       Name                  `json:"name"`
	OccurredAt time.Time             `json:"occurredAt"`
	Actor      string                `json:"actor,omitempty"`
	TableID    int64                 `json:"tableId,omitempty"`
	OrderIDs   []int64               `json:"orderIds,omitempty"`
	Revenue    *domain.RevenueRecord `json:"revenue,omitempty"`
}

// Handler receives published events. Handlers run synchronously on the publisher's goroutine.
type Handler func(ctx context.Context, event Event)

// Sink forwards events outside the process.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

// Option customises a Bus.
type Option func(*Bus)

// WithClock overrides the clock stamping events.
func WithClock(clock func() time.Time) Option {
	return func(b *Bus) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// WithIDGenerator overrides event ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(b *Bus) {
		if gen != nil {
			b.newID = gen
		}
	}
}

// WithSinkQueue sets how many events each forwarded sink buffers and how long one delivery
// may take.
func WithSinkQueue(size int, timeout time.Duration) Option {
	return func(b *Bus) {
		if size > 0 {
			b.queueSize = size
		}
		if timeout > 0 {
			b.deliverTimeout = timeout
		}
	}
}

// WithLogger installs the hook used to report handler panics and sink failures.
func WithLogger(logger func(ctx context.Context, event string, fields map[string]any)) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type subscription struct {
	id      uint64
	name    Name
	handler Handler
}

// Bus is a synchronous publish/subscribe hub. The zero value is not usable; call NewBus.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)

	queueSize      int
	deliverTimeout time.Duration
}

// NewBus constructs an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		clock:  time.Now,
		newID:  func() string { return ulid.Make().String() },
		logger: func(context.Context, string, map[string]any) {},

		queueSize:      defaultSinkQueue,
		deliverTimeout: defaultDeliverTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Subscribe registers handler for name. An empty name receives every event. The returned
// function removes the subscription.
func (b *Bus) Subscribe(name Name, handler Handler) func() {
	if handler == nil {
		return func() {}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, name: name, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, sub := range b.subs {
				if sub.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// OnSettlementCommitted registers handler for committed settlements.
func (b *Bus) OnSettlementCommitted(handler func(ctx context.Context, revenue domain.RevenueRecord)) func() {
	if handler == nil {
		return func() {}
	}
	return b.Subscribe(SettlementCompleted, func(ctx context.Context, event Event) {
		if event.Revenue != nil {
			handler(ctx, *event.Revenue)
		}
	})
}

// Publish stamps event and dispatches it to matching subscribers in registration order.
func (b *Bus) Publish(ctx context.Context, event Event) Event {
	if event.ID == "" {
		event.ID = b.newID()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = b.clock().UTC()
	}

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.name == "" || sub.name == event.Name {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		b.dispatch(ctx, sub, event)
	}
	return event
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, event Event) {
	defer func() {
		if rec := recover(); rec != nil {
			b.logger(ctx, "events.handler.panic", map[string]any{
				"eventId": event.ID,
				"event":   string(event.Name),
				"panic":   fmt.Sprint(rec),
			})
		}
	}()
	sub.handler(ctx, event)
}
