package events

import (
	"context"
	"sync"
	"time"
)

const (
	defaultSinkQueue      = 256
	defaultDeliverTimeout = 10 * time.Second
)

// forwarder feeds one sink from a bounded queue on its own goroutine, so a slow broker never
// holds up the request that published the event.
type forwarder struct {
	name    string
	sink    Sink
	timeout time.Duration
	logger  func(context.Context, string, map[string]any)

	mu     sync.Mutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

type queued struct {
	ctx   context.Context
	event Event
}

// Forward delivers every event to sink in the background. Events beyond the queue size are
// dropped and logged; delivery failures are logged and never reach the publisher. The returned
// function unsubscribes, then waits until queued events have been delivered.
func (b *Bus) Forward(name string, sink Sink) func() {
	if sink == nil {
		return func() {}
	}
	f := &forwarder{
		name:    name,
		sink:    sink,
		timeout: b.deliverTimeout,
		logger:  b.logger,
		queue:   make(chan queued, b.queueSize),
		done:    make(chan struct{}),
	}
	go f.run()
	unsubscribe := b.Subscribe("", f.enqueue)

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubscribe()
			f.close()
			<-f.done
		})
	}
}

func (f *forwarder) enqueue(ctx context.Context, event Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.queue <- queued{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		f.report(ctx, "events.sink.dropped", event, nil)
	}
}

func (f *forwarder) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
}

func (f *forwarder) run() {
	defer close(f.done)
	for item := range f.queue {
		ctx, cancel := context.WithTimeout(item.ctx, f.timeout)
		if err := f.sink.Deliver(ctx, item.event); err != nil {
			f.report(ctx, "events.sink.failed", item.event, err)
		}
		cancel()
	}
}

func (f *forwarder) report(ctx context.Context, what string, event Event, err error) {
	fields := map[string]any{
		"sink":    f.name,
		"eventId": event.ID,
		"event":   string(event.Name),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	f.logger(ctx, what, fields)
}
