package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/registration/internal/registration/domain"
)

func newProgressMock(t *testing.T) (*PostgreSQLProgressRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	return NewPostgreSQLProgressRepository(db), mock
}

func TestPostgreSQLProgressRepository_Get(t *testing.T) {
	repo, mock := newProgressMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"application_id", "step", "status", "progress_percent", "message",
		"retry_count", "version", "updated_at",
	}).AddRow(42, domain.StepIdentityLLM, domain.ProgressStatusRunning, 40, "enriching identity", 0, 3, now)

	mock.ExpectQuery(`SELECT .+ FROM task_progress WHERE application_id`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	progress, err := repo.Get(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), progress.ApplicationID)
	assert.Equal(t, domain.StepIdentityLLM, progress.Step)
	assert.Equal(t, int64(3), progress.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLProgressRepository_Get_NotFound(t *testing.T) {
	repo, mock := newProgressMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .+ FROM task_progress WHERE application_id`).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"application_id"}))

	progress, err := repo.Get(ctx, 999)

	assert.Nil(t, progress)
	assert.ErrorIs(t, err, domain.ErrProgressNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLProgressRepository_Upsert(t *testing.T) {
	repo, mock := newProgressMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	progress := &domain.TaskProgress{
		ApplicationID:   42,
		Step:            domain.StepIdentityRules,
		Status:          domain.ProgressStatusRunning,
		ProgressPercent: 10,
		Message:         "generating base identity",
		RetryCount:      0,
		Version:         2,
		UpdatedAt:       now,
	}

	mock.ExpectExec(`INSERT INTO task_progress`).
		WithArgs(progress.ApplicationID, progress.Step, progress.Status, progress.ProgressPercent,
			progress.Message, progress.RetryCount, progress.Version, progress.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(ctx, progress)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLProgressRepository_Delete(t *testing.T) {
	repo, mock := newProgressMock(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM task_progress WHERE application_id`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(ctx, 42)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
