package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/registration/internal/broker"
	"github.com/campushq/registration/internal/database"
	"github.com/campushq/registration/internal/metrics"
	outboxdomain "github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/registration/domain"
)

// ConsumerConfig holds task consumer configuration.
type ConsumerConfig struct {
	// Topic is the broker topic the consumer subscribes to.
	Topic string
	// MaxRetries is the task retry ceiling. A message carrying this retry
	// count or higher fails the application instead of being processed.
	MaxRetries int
	// TaskTimeout is the wall-clock budget for one task attempt.
	TaskTimeout time.Duration
}

// ConsumerUseCase consumes registration tasks and drives the generation
// pipeline. Every delivery is acknowledged exactly once regardless of outcome:
// retry decisions ride on message payloads and the database, never on broker
// redelivery.
type ConsumerUseCase struct {
	config          ConsumerConfig
	consumer        broker.Consumer
	txManager       database.TxManager
	applicationRepo ApplicationRepository
	studentRepo     StudentRepository
	progress        ProgressUseCase
	executor        *StepExecutor
	outbox          OutboxInserter
	logger          *slog.Logger
	pipeline        metrics.PipelineMetrics
	now             func() time.Time
}

// NewConsumerUseCase creates a new ConsumerUseCase. The pipeline metrics may be nil.
func NewConsumerUseCase(
	config ConsumerConfig,
	consumer broker.Consumer,
	txManager database.TxManager,
	applicationRepo ApplicationRepository,
	studentRepo StudentRepository,
	progress ProgressUseCase,
	executor *StepExecutor,
	outbox OutboxInserter,
	logger *slog.Logger,
	pipeline metrics.PipelineMetrics,
) *ConsumerUseCase {
	return &ConsumerUseCase{
		config:          config,
		consumer:        consumer,
		txManager:       txManager,
		applicationRepo: applicationRepo,
		studentRepo:     studentRepo,
		progress:        progress,
		executor:        executor,
		outbox:          outbox,
		logger:          logger,
		pipeline:        pipeline,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Start subscribes to the task topic and blocks until the context is cancelled.
func (uc *ConsumerUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting task consumer",
			slog.String("topic", uc.config.Topic),
			slog.Int("max_retries", uc.config.MaxRetries),
			slog.Duration("task_timeout", uc.config.TaskTimeout),
		)
	}

	return uc.consumer.Consume(ctx, uc.config.Topic, uc.HandleMessage)
}

// HandleMessage processes one task delivery. A nil return always follows: the
// delivery is spent whether the task completed, failed, or was dropped. Only
// infrastructure errors that should surface to the broker loop return non-nil.
func (uc *ConsumerUseCase) HandleMessage(ctx context.Context, message broker.Message) error {
	task, err := domain.DecodeRegistrationTaskMessage(message.Body)
	if err != nil {
		if uc.logger != nil {
			uc.logger.Warn("dropping malformed task message",
				slog.String("topic", message.Topic),
				slog.String("key", message.Key),
				slog.Any("error", err),
			)
		}
		uc.recordOutcome(ctx, "dropped")
		return nil
	}

	logger := uc.logger
	if logger != nil {
		logger = logger.With(
			slog.Int64("application_id", task.ApplicationID),
			slog.String("message_id", task.MessageID),
			slog.Int("retry_count", task.RetryCount),
		)
	}

	application, err := uc.applicationRepo.GetByID(ctx, task.ApplicationID)
	if err != nil {
		if errors.Is(err, domain.ErrApplicationNotFound) {
			if logger != nil {
				logger.Warn("dropping task for unknown application")
			}
			uc.recordOutcome(ctx, "dropped")
			return nil
		}
		return fmt.Errorf("failed to load application: %w", err)
	}

	// Duplicate delivery after completion or failure. Idempotent drop.
	if application.Status.IsTerminal() {
		if logger != nil {
			logger.Info("dropping task for terminal application",
				slog.String("status", string(application.Status)))
		}
		uc.recordOutcome(ctx, "dropped")
		return nil
	}

	if task.RetryCount >= uc.config.MaxRetries {
		if logger != nil {
			logger.Error("task retry limit exceeded, failing application")
		}
		if err := uc.failApplication(ctx, task, "task retry limit exceeded"); err != nil {
			return err
		}
		uc.recordOutcome(ctx, "failed")
		return nil
	}

	if err := uc.applicationRepo.UpdateStatus(ctx, application.ID, domain.ApplicationStatusGenerating, uc.now()); err != nil {
		return fmt.Errorf("failed to mark application generating: %w", err)
	}
	application.Status = domain.ApplicationStatusGenerating

	err = uc.runSteps(ctx, application, task)
	switch {
	case err == nil:
		if err := uc.completeApplication(ctx, task); err != nil {
			return err
		}
		if logger != nil {
			logger.Info("registration task completed")
		}
		uc.recordOutcome(ctx, "completed")
		return nil

	case errors.Is(err, domain.ErrGenerationTimeout):
		return uc.handleTimeout(ctx, task, logger)

	default:
		if logger != nil {
			logger.Error("registration task failed", slog.Any("error", err))
		}
		if failErr := uc.failApplication(ctx, task, err.Error()); failErr != nil {
			return failErr
		}
		uc.recordOutcome(ctx, "failed")
		return nil
	}
}

// runSteps executes the generation steps in order, checking the remaining
// wall-clock budget before each one. Exceeding the budget surfaces as
// ErrGenerationTimeout so the caller can distinguish it from a step failure.
func (uc *ConsumerUseCase) runSteps(ctx context.Context, application *domain.Application, task *domain.RegistrationTaskMessage) error {
	deadline := uc.now().Add(uc.config.TaskTimeout)

	stepCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for _, step := range domain.Steps() {
		if !uc.now().Before(deadline) {
			return domain.ErrGenerationTimeout
		}

		if err := uc.executor.RunStep(stepCtx, step, application, task.RetryCount); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return domain.ErrGenerationTimeout
			}
			return err
		}
	}

	return nil
}

// handleTimeout re-queues the task with an incremented retry count when the
// retry budget allows, otherwise fails the application. The status reset and
// the outbox insert commit together.
func (uc *ConsumerUseCase) handleTimeout(ctx context.Context, task *domain.RegistrationTaskMessage, logger *slog.Logger) error {
	if task.RetryCount+1 >= uc.config.MaxRetries {
		if logger != nil {
			logger.Error("task timed out with no retries left, failing application")
		}
		if err := uc.failApplication(ctx, task, "generation timed out"); err != nil {
			return err
		}
		uc.recordOutcome(ctx, "failed")
		return nil
	}

	retry := task.NextRetry(uc.now())

	payload, err := retry.Encode()
	if err != nil {
		return err
	}

	err = uc.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := uc.applicationRepo.UpdateStatus(txCtx, task.ApplicationID, domain.ApplicationStatusApproved, uc.now()); err != nil {
			return err
		}

		_, err := uc.outbox.Insert(txCtx,
			outboxdomain.AggregateTypeApplication,
			fmt.Sprintf("%d", task.ApplicationID),
			outboxdomain.EventTypeRegistrationTask,
			payload,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to re-queue timed out task: %w", err)
	}

	uc.updateProgress(ctx, task.ApplicationID, domain.StepIdentityRules, domain.ProgressStatusQueued, 0,
		"generation timed out, retrying", retry.RetryCount)

	if logger != nil {
		logger.Warn("task timed out, re-queued",
			slog.Int("next_retry_count", retry.RetryCount))
	}
	uc.recordOutcome(ctx, "requeued")

	return nil
}

// completeApplication marks the application completed and reports terminal
// progress.
func (uc *ConsumerUseCase) completeApplication(ctx context.Context, task *domain.RegistrationTaskMessage) error {
	if err := uc.applicationRepo.UpdateStatus(ctx, task.ApplicationID, domain.ApplicationStatusCompleted, uc.now()); err != nil {
		return fmt.Errorf("failed to mark application completed: %w", err)
	}

	uc.updateProgress(ctx, task.ApplicationID, domain.StepPhotoGeneration, domain.ProgressStatusCompleted, 100,
		"registration completed", task.RetryCount)

	return nil
}

// failApplication marks the application failed and reports terminal progress.
func (uc *ConsumerUseCase) failApplication(ctx context.Context, task *domain.RegistrationTaskMessage, reason string) error {
	if err := uc.applicationRepo.UpdateStatus(ctx, task.ApplicationID, domain.ApplicationStatusFailed, uc.now()); err != nil {
		return fmt.Errorf("failed to mark application failed: %w", err)
	}

	uc.updateProgress(ctx, task.ApplicationID, domain.StepIdentityRules, domain.ProgressStatusFailed, 0,
		reason, task.RetryCount)

	return nil
}

func (uc *ConsumerUseCase) updateProgress(
	ctx context.Context,
	applicationID int64,
	step domain.GenerationStep,
	status domain.ProgressStatus,
	percent int,
	message string,
	retryCount int,
) {
	_, err := uc.progress.Update(ctx, ProgressUpdate{
		ApplicationID:   applicationID,
		Step:            step,
		Status:          status,
		ProgressPercent: percent,
		Message:         message,
		RetryCount:      retryCount,
	})
	if err != nil && uc.logger != nil {
		uc.logger.Warn("failed to update task progress",
			slog.Int64("application_id", applicationID),
			slog.Any("error", err),
		)
	}
}

func (uc *ConsumerUseCase) recordOutcome(ctx context.Context, outcome string) {
	if uc.pipeline != nil {
		uc.pipeline.RecordTaskOutcome(ctx, outcome)
	}
}
