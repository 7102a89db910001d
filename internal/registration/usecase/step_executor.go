package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/campushq/registration/internal/database"
	"github.com/campushq/registration/internal/metrics"
	"github.com/campushq/registration/internal/registration/domain"
)

// StepExecutor runs the generation steps for one application. Each step commits
// in its own transaction, so a crash between steps loses at most the step in
// flight, and each step is idempotent: a redelivered task skips work that
// already persisted.
type StepExecutor struct {
	txManager     database.TxManager
	studentRepo   StudentRepository
	progress      ProgressUseCase
	identityGen   IdentityGenerator
	enrichmentGen EnrichmentGenerator
	photoGen      PhotoGenerator
	logger        *slog.Logger
	pipeline      metrics.PipelineMetrics
	now           func() time.Time
}

// NewStepExecutor creates a new StepExecutor. The pipeline metrics may be nil.
func NewStepExecutor(
	txManager database.TxManager,
	studentRepo StudentRepository,
	progress ProgressUseCase,
	identityGen IdentityGenerator,
	enrichmentGen EnrichmentGenerator,
	photoGen PhotoGenerator,
	logger *slog.Logger,
	pipeline metrics.PipelineMetrics,
) *StepExecutor {
	return &StepExecutor{
		txManager:     txManager,
		studentRepo:   studentRepo,
		progress:      progress,
		identityGen:   identityGen,
		enrichmentGen: enrichmentGen,
		photoGen:      photoGen,
		logger:        logger,
		pipeline:      pipeline,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RunStep executes one generation step for the application, reporting progress
// before and after. Step output persists in its own transaction.
func (e *StepExecutor) RunStep(
	ctx context.Context,
	step domain.GenerationStep,
	application *domain.Application,
	retryCount int,
) error {
	e.updateProgress(ctx, application.ID, step, domain.ProgressStatusRunning, runningPercent(step), runningMessage(step), retryCount)

	started := e.now()

	var err error
	switch step {
	case domain.StepIdentityRules:
		err = e.runIdentityStep(ctx, application)
	case domain.StepIdentityLLM:
		err = e.runEnrichmentStep(ctx, application)
	case domain.StepPhotoGeneration:
		err = e.runPhotoStep(ctx, application)
	default:
		err = fmt.Errorf("unknown generation step %q", step)
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	if e.pipeline != nil {
		e.pipeline.RecordStepDuration(ctx, string(step), e.now().Sub(started), status)
	}

	if err != nil {
		return fmt.Errorf("step %s failed: %w", step, err)
	}

	e.updateProgress(ctx, application.ID, step, domain.ProgressStatusRunning, step.Percent(), completedMessage(step), retryCount)

	return nil
}

// runIdentityStep creates the base student record. A record that already
// exists means a previous attempt completed this step; nothing to do.
func (e *StepExecutor) runIdentityStep(ctx context.Context, application *domain.Application) error {
	return e.txManager.WithTx(ctx, func(txCtx context.Context) error {
		_, err := e.studentRepo.GetByApplicationID(txCtx, application.ID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrStudentNotFound) {
			return err
		}

		student, err := e.identityGen.GenerateIdentity(txCtx, application)
		if err != nil {
			return err
		}

		return e.studentRepo.Create(txCtx, student)
	})
}

// runEnrichmentStep fills the narrative fields. Skipped when the student is
// already enriched.
func (e *StepExecutor) runEnrichmentStep(ctx context.Context, application *domain.Application) error {
	return e.txManager.WithTx(ctx, func(txCtx context.Context) error {
		student, err := e.studentRepo.GetByApplicationID(txCtx, application.ID)
		if err != nil {
			return err
		}
		if student.Enriched() {
			return nil
		}

		enrichment, err := e.enrichmentGen.GenerateEnrichment(txCtx, student)
		if err != nil {
			return err
		}

		return e.studentRepo.UpdateEnrichment(txCtx, application.ID,
			enrichment.FamilyBackground, enrichment.Interests, enrichment.Goals, e.now())
	})
}

// runPhotoStep stores the photo reference. Skipped when one is already set.
func (e *StepExecutor) runPhotoStep(ctx context.Context, application *domain.Application) error {
	return e.txManager.WithTx(ctx, func(txCtx context.Context) error {
		student, err := e.studentRepo.GetByApplicationID(txCtx, application.ID)
		if err != nil {
			return err
		}
		if student.HasPhoto() {
			return nil
		}

		photoRef, err := e.photoGen.GeneratePhoto(txCtx, student)
		if err != nil {
			return err
		}

		return e.studentRepo.UpdatePhotoRef(txCtx, application.ID, photoRef, e.now())
	})
}

// updateProgress reports a transition, logging instead of failing: progress is
// observability, never a reason to abort generation.
func (e *StepExecutor) updateProgress(
	ctx context.Context,
	applicationID int64,
	step domain.GenerationStep,
	status domain.ProgressStatus,
	percent int,
	message string,
	retryCount int,
) {
	_, err := e.progress.Update(ctx, ProgressUpdate{
		ApplicationID:   applicationID,
		Step:            step,
		Status:          status,
		ProgressPercent: percent,
		Message:         message,
		RetryCount:      retryCount,
	})
	if err != nil && e.logger != nil {
		e.logger.Warn("failed to update task progress",
			slog.Int64("application_id", applicationID),
			slog.String("step", string(step)),
			slog.Any("error", err),
		)
	}
}

// runningPercent is the progress reported when a step starts: the previous
// step's completion percent, or 10 for the first step.
func runningPercent(step domain.GenerationStep) int {
	switch step {
	case domain.StepIdentityRules:
		return 10
	case domain.StepIdentityLLM:
		return domain.StepIdentityRules.Percent()
	case domain.StepPhotoGeneration:
		return domain.StepIdentityLLM.Percent()
	default:
		return 0
	}
}

func runningMessage(step domain.GenerationStep) string {
	switch step {
	case domain.StepIdentityRules:
		return "generating base identity"
	case domain.StepIdentityLLM:
		return "enriching identity"
	case domain.StepPhotoGeneration:
		return "generating photo"
	default:
		return ""
	}
}

func completedMessage(step domain.GenerationStep) string {
	switch step {
	case domain.StepIdentityRules:
		return "base identity generated"
	case domain.StepIdentityLLM:
		return "identity enriched"
	case domain.StepPhotoGeneration:
		return "photo generated"
	default:
		return ""
	}
}
