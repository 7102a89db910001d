package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campushq/registration/internal/registration/domain"
)

func newStudentMock(t *testing.T) (*PostgreSQLStudentRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck

	return NewPostgreSQLStudentRepository(db), mock
}

func TestPostgreSQLStudentRepository_Create(t *testing.T) {
	repo, mock := newStudentMock(t)
	ctx := context.Background()

	now := time.Now().UTC()
	student := &domain.Student{
		ID:            uuid.Must(uuid.NewV7()),
		ApplicationID: 42,
		FullName:      "Ana Souza",
		StudentNumber: "2026010042",
		BirthDate:     time.Date(2004, 3, 15, 0, 0, 0, 0, time.UTC),
		Address:       "Rua das Flores 100",
		Course:        "Computer Science",
		GPA:           3.4,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	mock.ExpectExec(`INSERT INTO students`).
		WithArgs(student.ID, student.ApplicationID, student.FullName, student.StudentNumber,
			student.BirthDate, student.Address, student.Course, student.GPA,
			nil, nil, nil, nil, student.CreatedAt, student.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(ctx, student)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStudentRepository_GetByApplicationID(t *testing.T) {
	repo, mock := newStudentMock(t)
	ctx := context.Background()

	id := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{
		"id", "application_id", "full_name", "student_number", "birth_date", "address",
		"course", "gpa", "family_background", "interests", "goals", "photo_ref",
		"created_at", "updated_at",
	}).AddRow(id, 42, "Ana Souza", "2026010042", now.AddDate(-22, 0, 0), "Rua das Flores 100",
		"Computer Science", 3.4, "only child", "robotics", "graduate with honors", nil, now, now)

	mock.ExpectQuery(`SELECT .+ FROM students WHERE application_id`).
		WithArgs(int64(42)).
		WillReturnRows(rows)

	student, err := repo.GetByApplicationID(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, id, student.ID)
	assert.Equal(t, int64(42), student.ApplicationID)
	assert.True(t, student.Enriched())
	assert.False(t, student.HasPhoto())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStudentRepository_GetByApplicationID_NotFound(t *testing.T) {
	repo, mock := newStudentMock(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT .+ FROM students WHERE application_id`).
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	student, err := repo.GetByApplicationID(ctx, 999)

	assert.Nil(t, student)
	assert.ErrorIs(t, err, domain.ErrStudentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStudentRepository_UpdateEnrichment(t *testing.T) {
	repo, mock := newStudentMock(t)
	ctx := context.Background()

	updatedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE students SET family_background`).
		WithArgs("only child", "robotics", "graduate with honors", updatedAt, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateEnrichment(ctx, 42, "only child", "robotics", "graduate with honors", updatedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStudentRepository_UpdatePhotoRef(t *testing.T) {
	repo, mock := newStudentMock(t)
	ctx := context.Background()

	updatedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE students SET photo_ref`).
		WithArgs("photos/42.png", updatedAt, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdatePhotoRef(ctx, 42, "photos/42.png", updatedAt)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLStudentRepository_DeleteByApplicationID(t *testing.T) {
	repo, mock := newStudentMock(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM students WHERE application_id`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DeleteByApplicationID(ctx, 42)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
