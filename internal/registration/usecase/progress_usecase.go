package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/campushq/registration/internal/registration/domain"
)

// ProgressUpdate describes one progress transition for an application's task.
type ProgressUpdate struct {
	ApplicationID   int64
	Step            domain.GenerationStep
	Status          domain.ProgressStatus
	ProgressPercent int
	Message         string
	RetryCount      int
}

// TaskProgressUseCase persists progress updates with strictly increasing
// versions and pushes each persisted update to in-process subscribers.
type TaskProgressUseCase struct {
	progressRepo ProgressRepository
	broadcaster  *Broadcaster
	logger       *slog.Logger
	now          func() time.Time
}

// NewTaskProgressUseCase creates a new TaskProgressUseCase.
func NewTaskProgressUseCase(
	progressRepo ProgressRepository,
	broadcaster *Broadcaster,
	logger *slog.Logger,
) *TaskProgressUseCase {
	return &TaskProgressUseCase{
		progressRepo: progressRepo,
		broadcaster:  broadcaster,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Update persists the transition with version = previous + 1 (1 when no record
// exists yet) and then broadcasts it. Persistence comes first: a poll after a
// missed push always sees a version at least as new as the push would have
// carried.
func (uc *TaskProgressUseCase) Update(ctx context.Context, update ProgressUpdate) (*domain.TaskProgress, error) {
	var version int64 = 1

	previous, err := uc.progressRepo.Get(ctx, update.ApplicationID)
	switch {
	case err == nil:
		version = previous.Version + 1
	case errors.Is(err, domain.ErrProgressNotFound):
	default:
		return nil, err
	}

	progress := &domain.TaskProgress{
		ApplicationID:   update.ApplicationID,
		Step:            update.Step,
		Status:          update.Status,
		ProgressPercent: update.ProgressPercent,
		Message:         update.Message,
		RetryCount:      update.RetryCount,
		Version:         version,
		UpdatedAt:       uc.now(),
	}

	if err := uc.progressRepo.Upsert(ctx, progress); err != nil {
		return nil, err
	}

	if uc.broadcaster != nil {
		uc.broadcaster.Broadcast(progress.Event())
	}

	if uc.logger != nil {
		uc.logger.Debug("task progress updated",
			slog.Int64("application_id", progress.ApplicationID),
			slog.String("step", string(progress.Step)),
			slog.String("status", string(progress.Status)),
			slog.Int("progress_percent", progress.ProgressPercent),
			slog.Int64("version", progress.Version),
		)
	}

	return progress, nil
}

// Get returns the current progress record for an application.
func (uc *TaskProgressUseCase) Get(ctx context.Context, applicationID int64) (*domain.TaskProgress, error) {
	return uc.progressRepo.Get(ctx, applicationID)
}

// Delete removes the progress record for an application.
func (uc *TaskProgressUseCase) Delete(ctx context.Context, applicationID int64) error {
	return uc.progressRepo.Delete(ctx, applicationID)
}

// Subscribe registers a push observer for one application's progress events.
func (uc *TaskProgressUseCase) Subscribe(applicationID int64) (<-chan domain.ProgressEvent, func()) {
	return uc.broadcaster.Subscribe(applicationID)
}
