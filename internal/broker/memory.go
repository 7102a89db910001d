package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// memoryPartitionBuffer is the per-partition channel capacity of the in-memory
// broker. Publish blocks once a partition backs up this far.
const memoryPartitionBuffer = 1024

// MemoryBroker is an in-process Publisher/Consumer with the same partition
// semantics as the RabbitMQ implementation. Used for tests and single-process
// development mode.
type MemoryBroker struct {
	partitions int
	logger     *slog.Logger

	mu     sync.Mutex
	topics map[string][]chan Message
	closed bool
}

// NewMemoryBroker creates an in-memory broker with the given partition count.
func NewMemoryBroker(partitions int, logger *slog.Logger) *MemoryBroker {
	if partitions < 1 {
		partitions = 1
	}
	return &MemoryBroker{
		partitions: partitions,
		logger:     logger,
		topics:     make(map[string][]chan Message),
	}
}

// Publish routes the message to its partition channel. Messages published
// before any consumer is attached are buffered, preserving per-key order.
func (b *MemoryBroker) Publish(ctx context.Context, topic, key string, body []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("memory broker is closed")
	}
	channels := b.topicChannelsLocked(topic)
	b.mu.Unlock()

	partition := Partition(key, b.partitions)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case channels[partition] <- Message{Topic: topic, Key: key, Body: body}:
		return nil
	}
}

// Consume drains every partition of the topic with one goroutine per
// partition until the context is cancelled.
func (b *MemoryBroker) Consume(ctx context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	channels := b.topicChannelsLocked(topic)
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, partitionCh := range channels {
		wg.Add(1)
		go func(partitionCh chan Message) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-partitionCh:
					if err := handler(ctx, msg); err != nil && b.logger != nil {
						b.logger.Error("message handler failed",
							slog.String("topic", msg.Topic),
							slog.String("key", msg.Key),
							slog.Any("error", err),
						)
					}
				}
			}
		}(partitionCh)
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// Close marks the broker closed; subsequent publishes fail.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// topicChannelsLocked lazily creates the partition channels for a topic.
// Callers must hold b.mu.
func (b *MemoryBroker) topicChannelsLocked(topic string) []chan Message {
	channels, ok := b.topics[topic]
	if !ok {
		channels = make([]chan Message, b.partitions)
		for i := range channels {
			channels[i] = make(chan Message, memoryPartitionBuffer)
		}
		b.topics[topic] = channels
	}
	return channels
}
