// Package jobs forwards venue events to external brokers.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/huanth/bi-a-manager/internal/platform/events"
)

// PubSubPublisher publishes venue events to a Pub/Sub topic.
type PubSubPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ events.Sink = (*PubSubPublisher)(nil)

// NewPubSubPublisher constructs a publisher bound to topic.
func NewPubSubPublisher(topic *pubsub.Topic) (*PubSubPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub publisher: topic is required")
	}
	return &PubSubPublisher{topic: topic, marshal: json.Marshal}, nil
}

// Deliver implements events.Sink and waits for the server acknowledgement.
func (p *PubSubPublisher) Deliver(ctx context.Context, event events.Event) error {
	_, err := p.Publish(ctx, event)
	return err
}

// Publish sends event and returns the server-assigned message ID.
func (p *PubSubPublisher) Publish(ctx context.Context, event events.Event) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes(event),
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func attributes(event events.Event) map[string]string {
	attrs := make(map[string]string)
	setAttr(attrs, "eventId", event.ID)
	setAttr(attrs, "event", string(event.Name))
	setAttr(attrs, "actor", event.Actor)
	if event.TableID != 0 {
		attrs["tableId"] = strconv.FormatInt(event.TableID, 10)
	}
	if event.Revenue != nil {
		setAttr(attrs, "settlementId", event.Revenue.SettlementID)
	}
	return attrs
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
