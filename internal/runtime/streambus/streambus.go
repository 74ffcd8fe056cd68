// Package streambus carries per-tenant execution event topics over the
// PubSub capability for subscribers (the Experience Edge's WebSocket
// connections). Events reach a topic only through PublishEvent; the
// dispatcher and the WAL do not call it, so the runtime publishes nothing
// to these topics.
package streambus

import (
	"context"
	"encoding/json"

	"github.com/cityos/runtime/internal/capability/pubsub"
)

func topicFor(tenantID string) string {
	return "tenant." + tenantID + ".executions"
}

// Bus publishes and subscribes to per-tenant execution event topics.
type Bus struct {
	pubsub pubsub.Bus
}

// New constructs a Bus over the given pubsub capability.
func New(bus pubsub.Bus) *Bus {
	return &Bus{pubsub: bus}
}

// PublishEvent serializes event as JSON and publishes it to tenantID's topic.
func (b *Bus) PublishEvent(ctx context.Context, tenantID string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.pubsub.Publish(ctx, topicFor(tenantID), payload)
}

// Subscribe returns a channel of raw JSON event payloads for tenantID.
func (b *Bus) Subscribe(ctx context.Context, tenantID string) (<-chan pubsub.Message, error) {
	return b.pubsub.Subscribe(ctx, topicFor(tenantID))
}
