// Package broker provides the task queue abstraction used by the registration
// pipeline: an ordered-per-key publish/consume channel. Messages published with
// the same key are routed to the same partition and delivered in publish order;
// messages with different keys carry no ordering guarantee.
package broker

import (
	"context"
	"hash/fnv"
)

// Message is a single delivery from the task queue.
type Message struct {
	// Topic is the logical channel the message was published to.
	Topic string
	// Key is the partition key (the application ID as a decimal string).
	Key string
	// Body is the serialized payload.
	Body []byte
}

// Handler processes one delivery. The delivery is acknowledged after the
// handler returns regardless of its error: retry decisions are data-driven
// (outbox re-queue, timeout scanner), never broker-level redelivery.
type Handler func(ctx context.Context, msg Message) error

// Publisher publishes messages to the task queue. Publish blocks until the
// broker acknowledges the message or the context is done.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
}

// Consumer receives deliveries for a topic. Consume blocks until the context
// is cancelled, dispatching each partition's deliveries in order.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler Handler) error
}

// Broker is a full task queue connection: publish, consume, and teardown.
type Broker interface {
	Publisher
	Consumer
	Close() error
}

// Partition maps a key onto one of n partitions using FNV-1a. It is a pure
// function: the same key and n always produce the same partition.
func Partition(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n)) // #nosec G115 -- n is a small positive partition count
}
