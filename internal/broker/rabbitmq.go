package broker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQBroker implements Publisher and Consumer on top of a RabbitMQ
// broker. Each topic is a direct exchange fanning out to one queue per
// partition ("<topic>.<p>", routing key = the partition index), so all
// messages for one key land on a single queue and are consumed in order.
type RabbitMQBroker struct {
	conn       *amqp.Connection
	partitions int
	logger     *slog.Logger

	mu        sync.Mutex
	publishCh *amqp.Channel
	declared  map[string]bool
}

// NewRabbitMQBroker dials the broker and prepares a confirm-mode publishing
// channel. The partitions count must match across all producers and consumers
// of a topic.
func NewRabbitMQBroker(url string, partitions int, logger *slog.Logger) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	publishCh, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	// Confirm mode so Publish can wait for the broker ack synchronously.
	if err := publishCh.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	return &RabbitMQBroker{
		conn:       conn,
		partitions: partitions,
		logger:     logger,
		publishCh:  publishCh,
		declared:   make(map[string]bool),
	}, nil
}

// Publish routes the message to its partition queue and waits for the broker
// to confirm the delivery.
func (b *RabbitMQBroker) Publish(ctx context.Context, topic, key string, body []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.declareTopologyLocked(b.publishCh, topic); err != nil {
		return err
	}

	partition := Partition(key, b.partitions)

	confirmation, err := b.publishCh.PublishWithDeferredConfirmWithContext(
		ctx,
		topic,
		strconv.Itoa(partition),
		true,  // mandatory: unroutable messages are an error, never silently dropped
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    key,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to %s partition %d: %w", topic, partition, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to await publish confirmation: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked publish to %s partition %d", topic, partition)
	}

	return nil
}

// Consume opens one channel per partition queue and dispatches deliveries to
// the handler. Each partition is drained by its own goroutine so ordering
// holds per partition while partitions progress independently.
func (b *RabbitMQBroker) Consume(ctx context.Context, topic string, handler Handler) error {
	setupCh, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open setup channel: %w", err)
	}

	b.mu.Lock()
	err = b.declareTopologyLocked(setupCh, topic)
	b.mu.Unlock()
	if closeErr := setupCh.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for partition := 0; partition < b.partitions; partition++ {
		ch, err := b.conn.Channel()
		if err != nil {
			return fmt.Errorf("failed to open consumer channel: %w", err)
		}

		// One in-flight message per partition keeps per-key ordering strict.
		if err := ch.Qos(1, 0, false); err != nil {
			return fmt.Errorf("failed to set qos: %w", err)
		}

		queue := partitionQueue(topic, partition)
		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("failed to consume %s: %w", queue, err)
		}

		wg.Add(1)
		go func(ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			defer ch.Close() //nolint:errcheck
			b.drain(ctx, deliveries, handler)
		}(ch, deliveries)
	}

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// drain processes deliveries until the context is cancelled or the channel
// closes. Deliveries are always acknowledged once the handler resolves.
func (b *RabbitMQBroker) drain(ctx context.Context, deliveries <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}

			msg := Message{
				Topic: delivery.Exchange,
				Key:   delivery.MessageId,
				Body:  delivery.Body,
			}

			if err := handler(ctx, msg); err != nil && b.logger != nil {
				b.logger.Error("message handler failed",
					slog.String("topic", msg.Topic),
					slog.String("key", msg.Key),
					slog.Any("error", err),
				)
			}

			if err := delivery.Ack(false); err != nil && b.logger != nil {
				b.logger.Error("failed to ack delivery", slog.Any("error", err))
			}
		}
	}
}

// Close releases the connection and all channels derived from it.
func (b *RabbitMQBroker) Close() error {
	return b.conn.Close()
}

// declareTopologyLocked declares the exchange and partition queues for a topic
// once per broker instance. Callers must hold b.mu.
func (b *RabbitMQBroker) declareTopologyLocked(ch *amqp.Channel, topic string) error {
	if b.declared[topic] {
		return nil
	}

	if err := ch.ExchangeDeclare(topic, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", topic, err)
	}

	for partition := 0; partition < b.partitions; partition++ {
		queue := partitionQueue(topic, partition)
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, strconv.Itoa(partition), topic, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue %s: %w", queue, err)
		}
	}

	b.declared[topic] = true
	return nil
}

// partitionQueue returns the queue name for a topic partition.
func partitionQueue(topic string, partition int) string {
	return fmt.Sprintf("%s.%d", topic, partition)
}
