// Package pubsub is the PubSub capability backing the runtime's Stream Bus:
// fan-out of WAL events and execution state changes to the Experience
// Edge's WebSocket subscribers.
package pubsub

import (
	"context"

	"github.com/cityos/runtime/internal/runtimeerr"
)

// Message is a single published payload, tagged with the topic it arrived
// on so a multi-topic subscriber can dispatch without a second subscribe.
type Message struct {
	Topic   string
	Payload []byte
}

// Bus is the capability surface every pubsub backend implements.
type Bus interface {
	// Publish sends payload to every current subscriber of topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe returns a channel of messages for topic. The channel is
	// closed when ctx is canceled.
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)

	// Close releases backend resources.
	Close() error
}

func wrap(op string, err error) error {
	return runtimeerr.NewCapabilityError("pubsub", op, err)
}
