package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/campushq/registration/internal/database"
	apperrors "github.com/campushq/registration/internal/errors"
	"github.com/campushq/registration/internal/registration/domain"
)

// MySQLProgressRepository handles task progress persistence for MySQL.
type MySQLProgressRepository struct {
	db *sql.DB
}

// NewMySQLProgressRepository creates a new MySQLProgressRepository.
func NewMySQLProgressRepository(db *sql.DB) *MySQLProgressRepository {
	return &MySQLProgressRepository{
		db: db,
	}
}

// Get retrieves the progress record for an application.
func (r *MySQLProgressRepository) Get(ctx context.Context, applicationID int64) (*domain.TaskProgress, error) {
	var progress domain.TaskProgress
	querier := database.GetTx(ctx, r.db)

	query := `SELECT application_id, step, status, progress_percent, message, retry_count, version, updated_at
			  FROM task_progress WHERE application_id = ?`

	err := querier.QueryRowContext(ctx, query, applicationID).Scan(
		&progress.ApplicationID, &progress.Step, &progress.Status, &progress.ProgressPercent,
		&progress.Message, &progress.RetryCount, &progress.Version, &progress.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProgressNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get task progress")
	}

	return &progress, nil
}

// Upsert writes the progress record, creating it on first update. The caller
// assigns the version; concurrent writers for the same application do not
// exist because tasks are partitioned by application ID.
func (r *MySQLProgressRepository) Upsert(ctx context.Context, progress *domain.TaskProgress) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO task_progress (application_id, step, status, progress_percent, message, retry_count, version, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
				  step = VALUES(step),
				  status = VALUES(status),
				  progress_percent = VALUES(progress_percent),
				  message = VALUES(message),
				  retry_count = VALUES(retry_count),
				  version = VALUES(version),
				  updated_at = VALUES(updated_at)`

	_, err := querier.ExecContext(ctx, query, progress.ApplicationID, progress.Step, progress.Status,
		progress.ProgressPercent, progress.Message, progress.RetryCount, progress.Version, progress.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to upsert task progress")
	}

	return nil
}

// Delete removes the progress record for an application.
func (r *MySQLProgressRepository) Delete(ctx context.Context, applicationID int64) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM task_progress WHERE application_id = ?`

	_, err := querier.ExecContext(ctx, query, applicationID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete task progress")
	}

	return nil
}
