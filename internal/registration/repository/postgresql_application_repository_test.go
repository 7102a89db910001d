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

func newApplicationMock(t *testing.T) (*PostgreSQLApplicationRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	return NewPostgreSQLApplicationRepository(db), mock
}

func TestPostgreSQLApplicationRepository_GetByID(t *testing.T) {
	repo, mock := newApplicationMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "status", "locale", "major", "created_at", "updated_at"}).
		AddRow(42, domain.ApplicationStatusApproved, "pt-BR", "Computer Science", now, now)

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE id`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	application, err := repo.GetByID(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), application.ID)
	assert.Equal(t, domain.ApplicationStatusApproved, application.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLApplicationRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newApplicationMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .+ FROM applications WHERE id`).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "locale", "major", "created_at", "updated_at"}))

	application, err := repo.GetByID(ctx, 999)

	assert.Nil(t, application)
	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLApplicationRepository_UpdateStatus(t *testing.T) {
	repo, mock := newApplicationMock(t)
	ctx := context.Background()

	updatedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE applications SET status`).
		WithArgs(domain.ApplicationStatusGenerating, updatedAt, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(ctx, 42, domain.ApplicationStatusGenerating, updatedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLApplicationRepository_UpdateStatus_NotFound(t *testing.T) {
	repo, mock := newApplicationMock(t)
	ctx := context.Background()

	updatedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE applications SET status`).
		WithArgs(domain.ApplicationStatusGenerating, updatedAt, int64(999)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(ctx, 999, domain.ApplicationStatusGenerating, updatedAt)

	assert.ErrorIs(t, err, domain.ErrApplicationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLApplicationRepository_FindStuckGenerating(t *testing.T) {
	repo, mock := newApplicationMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	cutoff := now.Add(-5 * time.Minute)

	rows := sqlmock.NewRows([]string{"id", "status", "locale", "major", "created_at", "updated_at"}).
		AddRow(7, domain.ApplicationStatusGenerating, "en-US", "Physics", now.Add(-time.Hour), now.Add(-10*time.Minute)).
		AddRow(9, domain.ApplicationStatusGenerating, "pt-BR", "Law", now.Add(-time.Hour), now.Add(-6*time.Minute))

	mock.ExpectQuery(`SELECT .+ FROM applications`).
		WithArgs(domain.ApplicationStatusGenerating, cutoff).
		WillReturnRows(rows)

	applications, err := repo.FindStuckGenerating(ctx, cutoff)

	require.NoError(t, err)
	require.Len(t, applications, 2)
	assert.Equal(t, int64(7), applications[0].ID)
	assert.Equal(t, int64(9), applications[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
