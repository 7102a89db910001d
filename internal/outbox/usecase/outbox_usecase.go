// Package usecase implements the transactional outbox: inserting entries inside
// the caller's business transaction and publishing them asynchronously to the
// task queue with bounded retries and dead-lettering.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/registration/internal/broker"
	"github.com/campushq/registration/internal/database"
	"github.com/campushq/registration/internal/metrics"
	"github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/retry"
)

// Config holds outbox publisher configuration.
type Config struct {
	// PollInterval is how often unprocessed entries are polled.
	PollInterval time.Duration
	// BatchSize is the maximum number of entries fetched per poll.
	BatchSize int
	// Policy is the publish retry/backoff policy.
	Policy retry.Policy
	// Topics maps an outbox event type to its broker topic. Publishing an
	// event type with no mapping is a hard error, never a silent drop.
	Topics map[string]string
	// Retention is how long processed entries are kept before cleanup.
	Retention time.Duration
	// CleanupInterval is how often the retention cleanup runs.
	CleanupInterval time.Duration
}

// OutboxRepository defines outbox entry persistence operations.
type OutboxRepository interface {
	Create(ctx context.Context, entry *domain.OutboxEntry) error
	GetUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	UpdateRetryCount(ctx context.Context, id uuid.UUID, retryCount int) error
	MoveToDeadLetter(ctx context.Context, deadLetter *domain.OutboxDeadLetter) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UseCase defines the outbox operations used by the rest of the application.
type UseCase interface {
	Insert(ctx context.Context, aggregateType, aggregateID, eventType, payload string) (*domain.OutboxEntry, error)
	Start(ctx context.Context) error
	StartCleanup(ctx context.Context) error
	PublishPending(ctx context.Context) error
	Cleanup(ctx context.Context) (int64, error)
}

// OutboxUseCase implements the outbox store and publisher.
type OutboxUseCase struct {
	config     Config
	txManager  database.TxManager
	outboxRepo OutboxRepository
	publisher  broker.Publisher
	logger     *slog.Logger
	pipeline   metrics.PipelineMetrics
	now        func() time.Time
}

// NewOutboxUseCase creates a new OutboxUseCase. The pipeline metrics may be nil.
func NewOutboxUseCase(
	config Config,
	txManager database.TxManager,
	outboxRepo OutboxRepository,
	publisher broker.Publisher,
	logger *slog.Logger,
	pipeline metrics.PipelineMetrics,
) *OutboxUseCase {
	return &OutboxUseCase{
		config:     config,
		txManager:  txManager,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
		pipeline:   pipeline,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Insert writes a new outbox entry inside the caller's transaction. It never
// commits independently: broker availability can never block or roll back the
// business operation that triggered the event.
func (uc *OutboxUseCase) Insert(
	ctx context.Context,
	aggregateType, aggregateID, eventType, payload string,
) (*domain.OutboxEntry, error) {
	if !database.InTx(ctx) {
		return nil, fmt.Errorf("outbox insert requires the caller's transaction")
	}

	entry := &domain.OutboxEntry{
		ID:            uuid.Must(uuid.NewV7()),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		RetryCount:    0,
		CreatedAt:     uc.now(),
	}

	if err := uc.outboxRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create outbox entry: %w", err)
	}

	return entry, nil
}

// Start runs the publisher loop until the context is cancelled.
func (uc *OutboxUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting outbox publisher",
			slog.Duration("poll_interval", uc.config.PollInterval),
			slog.Int("batch_size", uc.config.BatchSize),
		)
	}

	ticker := time.NewTicker(uc.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping outbox publisher")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := uc.PublishPending(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to publish pending entries", slog.Any("error", err))
				}
			}
		}
	}
}

// PublishPending fetches one batch of unprocessed entries and attempts to
// publish each eligible one. Publish results are persisted per entry, so a
// batch survives partial failure.
func (uc *OutboxUseCase) PublishPending(ctx context.Context) error {
	entries, err := uc.outboxRepo.GetUnprocessed(ctx, uc.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to get unprocessed entries: %w", err)
	}

	for _, entry := range entries {
		if uc.config.Policy.Exhausted(entry.RetryCount) {
			if err := uc.deadLetter(ctx, entry, "publish retry limit exceeded"); err != nil {
				return err
			}
			continue
		}

		if !uc.config.Policy.Eligible(entry.RetryCount, entry.CreatedAt, uc.now()) {
			continue
		}

		if err := uc.publishEntry(ctx, entry); err != nil {
			if handleErr := uc.handlePublishFailure(ctx, entry, err); handleErr != nil {
				return handleErr
			}
			continue
		}

		if err := uc.outboxRepo.MarkProcessed(ctx, entry.ID, uc.now()); err != nil {
			return fmt.Errorf("failed to mark entry processed: %w", err)
		}

		if uc.pipeline != nil {
			uc.pipeline.RecordOutboxResult(ctx, "published")
		}
	}

	return nil
}

// StartCleanup runs the processed-entry retention cleanup loop.
func (uc *OutboxUseCase) StartCleanup(ctx context.Context) error {
	ticker := time.NewTicker(uc.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			deleted, err := uc.Cleanup(ctx)
			if err != nil {
				if uc.logger != nil {
					uc.logger.Error("outbox cleanup failed", slog.Any("error", err))
				}
				continue
			}
			if deleted > 0 && uc.logger != nil {
				uc.logger.Info("outbox cleanup completed", slog.Int64("deleted", deleted))
			}
		}
	}
}

// Cleanup deletes processed entries older than the retention window.
func (uc *OutboxUseCase) Cleanup(ctx context.Context) (int64, error) {
	cutoff := uc.now().Add(-uc.config.Retention)
	return uc.outboxRepo.DeleteProcessedBefore(ctx, cutoff)
}

// publishEntry resolves the topic for the entry's event type and publishes it,
// waiting for the broker ack. The aggregate ID is the partition key so all
// tasks for one application stay strictly ordered.
func (uc *OutboxUseCase) publishEntry(ctx context.Context, entry *domain.OutboxEntry) error {
	topic, ok := uc.config.Topics[entry.EventType]
	if !ok {
		return fmt.Errorf("no topic mapped for event type %q", entry.EventType)
	}

	return uc.publisher.Publish(ctx, topic, entry.AggregateID, []byte(entry.Payload))
}

// handlePublishFailure increments the retry count and dead-letters the entry
// once the retry ceiling is reached.
func (uc *OutboxUseCase) handlePublishFailure(ctx context.Context, entry *domain.OutboxEntry, publishErr error) error {
	if uc.logger != nil {
		uc.logger.Warn("failed to publish outbox entry",
			slog.String("entry_id", entry.ID.String()),
			slog.String("event_type", entry.EventType),
			slog.Int("retry_count", entry.RetryCount),
			slog.Any("error", publishErr),
		)
	}

	entry.RetryCount++

	if uc.config.Policy.Exhausted(entry.RetryCount) {
		return uc.deadLetter(ctx, entry, publishErr.Error())
	}

	if err := uc.outboxRepo.UpdateRetryCount(ctx, entry.ID, entry.RetryCount); err != nil {
		return fmt.Errorf("failed to update retry count: %w", err)
	}

	if uc.pipeline != nil {
		uc.pipeline.RecordOutboxResult(ctx, "retried")
	}

	return nil
}

// deadLetter moves the entry to the dead letter archive in one transaction:
// the archive insert and the original's deletion either both happen or neither.
func (uc *OutboxUseCase) deadLetter(ctx context.Context, entry *domain.OutboxEntry, errorMessage string) error {
	deadLetter := domain.NewDeadLetter(entry, errorMessage, uc.now())

	err := uc.txManager.WithTx(ctx, func(txCtx context.Context) error {
		return uc.outboxRepo.MoveToDeadLetter(txCtx, deadLetter)
	})
	if err != nil {
		return fmt.Errorf("failed to dead-letter entry: %w", err)
	}

	if uc.logger != nil {
		uc.logger.Error("outbox entry dead-lettered",
			slog.String("entry_id", entry.ID.String()),
			slog.String("aggregate_id", entry.AggregateID),
			slog.String("event_type", entry.EventType),
			slog.Int("retry_count", entry.RetryCount),
			slog.String("error_message", errorMessage),
		)
	}

	if uc.pipeline != nil {
		uc.pipeline.RecordOutboxResult(ctx, "dead_lettered")
	}

	return nil
}
