package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/registration/internal/database"
	"github.com/campushq/registration/internal/metrics"
	outboxdomain "github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/registration/domain"
)

// ScannerConfig holds timeout scanner configuration.
type ScannerConfig struct {
	// Interval is how often the scan runs.
	Interval time.Duration
	// InitialDelay postpones the first scan so an in-flight task is not
	// recovered while its consumer is still alive after a restart.
	InitialDelay time.Duration
	// TaskTimeout is how long an application may sit in GENERATING before it
	// counts as stuck.
	TaskTimeout time.Duration
	// MaxRetries mirrors the consumer's retry ceiling.
	MaxRetries int
}

// TimeoutScanner recovers applications whose consumer died mid-generation.
// A stuck application either gets a fresh task with an incremented retry
// count, or fails permanently when the retry budget is spent. Each recovery
// is one transaction: partial-artifact cleanup, status change, and the
// re-queue entry commit together or not at all.
type TimeoutScanner struct {
	config          ScannerConfig
	txManager       database.TxManager
	applicationRepo ApplicationRepository
	studentRepo     StudentRepository
	progressRepo    ProgressRepository
	progress        ProgressUseCase
	broadcaster     *Broadcaster
	outbox          OutboxInserter
	logger          *slog.Logger
	pipeline        metrics.PipelineMetrics
	now             func() time.Time
}

// NewTimeoutScanner creates a new TimeoutScanner. The pipeline metrics may be nil.
func NewTimeoutScanner(
	config ScannerConfig,
	txManager database.TxManager,
	applicationRepo ApplicationRepository,
	studentRepo StudentRepository,
	progressRepo ProgressRepository,
	progress ProgressUseCase,
	broadcaster *Broadcaster,
	outbox OutboxInserter,
	logger *slog.Logger,
	pipeline metrics.PipelineMetrics,
) *TimeoutScanner {
	return &TimeoutScanner{
		config:          config,
		txManager:       txManager,
		applicationRepo: applicationRepo,
		studentRepo:     studentRepo,
		progressRepo:    progressRepo,
		progress:        progress,
		broadcaster:     broadcaster,
		outbox:          outbox,
		logger:          logger,
		pipeline:        pipeline,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Start runs the scan loop until the context is cancelled.
func (s *TimeoutScanner) Start(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("starting timeout scanner",
			slog.Duration("interval", s.config.Interval),
			slog.Duration("initial_delay", s.config.InitialDelay),
			slog.Duration("task_timeout", s.config.TaskTimeout),
		)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.config.InitialDelay):
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.Info("stopping timeout scanner")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := s.Scan(ctx); err != nil {
				if s.logger != nil {
					s.logger.Error("timeout scan failed", slog.Any("error", err))
				}
			}
		}
	}
}

// Scan finds stuck applications and recovers each one. Recovery failures are
// per-application: one failing application does not block the rest.
func (s *TimeoutScanner) Scan(ctx context.Context) error {
	cutoff := s.now().Add(-s.config.TaskTimeout)

	stuck, err := s.applicationRepo.FindStuckGenerating(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to find stuck applications: %w", err)
	}

	for _, application := range stuck {
		if err := s.recover(ctx, application); err != nil {
			if s.logger != nil {
				s.logger.Error("failed to recover stuck application",
					slog.Int64("application_id", application.ID),
					slog.Any("error", err),
				)
			}
		}
	}

	return nil
}

// recover handles one stuck application. The retry count carried on its
// progress record decides between re-queue and permanent failure.
func (s *TimeoutScanner) recover(ctx context.Context, application *domain.Application) error {
	retryCount := 0
	var lastVersion int64
	if progress, err := s.progressRepo.Get(ctx, application.ID); err == nil {
		retryCount = progress.RetryCount
		lastVersion = progress.Version
	}

	if retryCount+1 >= s.config.MaxRetries {
		return s.failPermanently(ctx, application, retryCount, lastVersion)
	}

	return s.requeue(ctx, application, retryCount)
}

// failPermanently marks the application failed and removes its progress row in
// one transaction, then pushes the terminal event to any live observers. The
// event is broadcast-only: once the task is abandoned the application status
// itself is the durable record.
func (s *TimeoutScanner) failPermanently(ctx context.Context, application *domain.Application, retryCount int, lastVersion int64) error {
	err := s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.applicationRepo.UpdateStatus(txCtx, application.ID, domain.ApplicationStatusFailed, s.now()); err != nil {
			return err
		}
		return s.progressRepo.Delete(txCtx, application.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to fail stuck application: %w", err)
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(domain.ProgressEvent{
			ApplicationID: application.ID,
			Step:          domain.StepIdentityRules,
			Status:        domain.ProgressStatusFailed,
			Message:       "generation abandoned after repeated timeouts",
			RetryCount:    retryCount,
			Version:       lastVersion + 1,
			UpdatedAt:     s.now(),
		})
	}

	if s.logger != nil {
		s.logger.Error("stuck application failed permanently",
			slog.Int64("application_id", application.ID),
			slog.Int("retry_count", retryCount),
		)
	}
	if s.pipeline != nil {
		s.pipeline.RecordTimeoutRecovery(ctx, "failed")
	}

	return nil
}

// requeue discards partial generation output, resets the application to
// APPROVED, and writes a fresh task entry with an incremented retry count.
// All three in one transaction.
func (s *TimeoutScanner) requeue(ctx context.Context, application *domain.Application, retryCount int) error {
	task := domain.NewRegistrationTaskMessage(application.ID, s.now())
	task.RetryCount = retryCount + 1

	payload, err := task.Encode()
	if err != nil {
		return err
	}

	err = s.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.studentRepo.DeleteByApplicationID(txCtx, application.ID); err != nil {
			return err
		}

		if err := s.applicationRepo.UpdateStatus(txCtx, application.ID, domain.ApplicationStatusApproved, s.now()); err != nil {
			return err
		}

		_, err := s.outbox.Insert(txCtx,
			outboxdomain.AggregateTypeApplication,
			fmt.Sprintf("%d", application.ID),
			outboxdomain.EventTypeRegistrationTask,
			payload,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to re-queue stuck application: %w", err)
	}

	s.notify(ctx, application.ID, domain.ProgressStatusQueued, "generation timed out, retrying", task.RetryCount)

	if s.logger != nil {
		s.logger.Warn("stuck application re-queued",
			slog.Int64("application_id", application.ID),
			slog.Int("retry_count", task.RetryCount),
		)
	}
	if s.pipeline != nil {
		s.pipeline.RecordTimeoutRecovery(ctx, "requeued")
	}

	return nil
}

func (s *TimeoutScanner) notify(ctx context.Context, applicationID int64, status domain.ProgressStatus, message string, retryCount int) {
	_, err := s.progress.Update(ctx, ProgressUpdate{
		ApplicationID: applicationID,
		Step:          domain.StepIdentityRules,
		Status:        status,
		Message:       message,
		RetryCount:    retryCount,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("failed to update task progress",
			slog.Int64("application_id", applicationID),
			slog.Any("error", err),
		)
	}
}
