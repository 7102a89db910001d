package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/registration/internal/database"
	outboxdomain "github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/registration/domain"
)

// ApprovalUseCase approves pending applications. Approval is the pipeline's
// entry point: the status change and the task's outbox entry commit in the
// same transaction, so an approved application always has a task on the way.
type ApprovalUseCase struct {
	txManager       database.TxManager
	applicationRepo ApplicationRepository
	progress        ProgressUseCase
	outbox          OutboxInserter
	logger          *slog.Logger
	now             func() time.Time
}

// NewApprovalUseCase creates a new ApprovalUseCase.
func NewApprovalUseCase(
	txManager database.TxManager,
	applicationRepo ApplicationRepository,
	progress ProgressUseCase,
	outbox OutboxInserter,
	logger *slog.Logger,
) *ApprovalUseCase {
	return &ApprovalUseCase{
		txManager:       txManager,
		applicationRepo: applicationRepo,
		progress:        progress,
		outbox:          outbox,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// Approve flips the application from PENDING_APPROVAL to APPROVED and enqueues
// its registration task through the outbox.
func (uc *ApprovalUseCase) Approve(ctx context.Context, applicationID int64) error {
	application, err := uc.applicationRepo.GetByID(ctx, applicationID)
	if err != nil {
		return err
	}

	if application.Status != domain.ApplicationStatusPendingApproval {
		return fmt.Errorf("%w: cannot approve application in status %s",
			domain.ErrInvalidStatusTransition, application.Status)
	}

	task := domain.NewRegistrationTaskMessage(applicationID, uc.now())

	payload, err := task.Encode()
	if err != nil {
		return err
	}

	err = uc.txManager.WithTx(ctx, func(txCtx context.Context) error {
		if err := uc.applicationRepo.UpdateStatus(txCtx, applicationID, domain.ApplicationStatusApproved, uc.now()); err != nil {
			return err
		}

		_, err := uc.outbox.Insert(txCtx,
			outboxdomain.AggregateTypeApplication,
			fmt.Sprintf("%d", applicationID),
			outboxdomain.EventTypeRegistrationTask,
			payload,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to approve application: %w", err)
	}

	if _, err := uc.progress.Update(ctx, ProgressUpdate{
		ApplicationID: applicationID,
		Step:          domain.StepIdentityRules,
		Status:        domain.ProgressStatusQueued,
		Message:       "registration task queued",
	}); err != nil && uc.logger != nil {
		uc.logger.Warn("failed to write initial task progress",
			slog.Int64("application_id", applicationID),
			slog.Any("error", err),
		)
	}

	if uc.logger != nil {
		uc.logger.Info("application approved",
			slog.Int64("application_id", applicationID),
			slog.String("message_id", task.MessageID),
		)
	}

	return nil
}
