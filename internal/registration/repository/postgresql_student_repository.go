package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/campushq/registration/internal/database"
	apperrors "github.com/campushq/registration/internal/errors"
	"github.com/campushq/registration/internal/registration/domain"
)

// PostgreSQLStudentRepository handles student persistence for PostgreSQL.
type PostgreSQLStudentRepository struct {
	db *sql.DB
}

// NewPostgreSQLStudentRepository creates a new PostgreSQLStudentRepository.
func NewPostgreSQLStudentRepository(db *sql.DB) *PostgreSQLStudentRepository {
	return &PostgreSQLStudentRepository{
		db: db,
	}
}

// Create inserts a new student record.
func (r *PostgreSQLStudentRepository) Create(ctx context.Context, student *domain.Student) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO students (id, application_id, full_name, student_number, birth_date, address, course, gpa, family_background, interests, goals, photo_ref, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(ctx, query, student.ID, student.ApplicationID, student.FullName,
		student.StudentNumber, student.BirthDate, student.Address, student.Course, student.GPA,
		student.FamilyBackground, student.Interests, student.Goals, student.PhotoRef,
		student.CreatedAt, student.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create student")
	}

	return nil
}

// GetByApplicationID retrieves the student generated for an application.
func (r *PostgreSQLStudentRepository) GetByApplicationID(ctx context.Context, applicationID int64) (*domain.Student, error) {
	var student domain.Student
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, application_id, full_name, student_number, birth_date, address, course, gpa, family_background, interests, goals, photo_ref, created_at, updated_at
			  FROM students WHERE application_id = $1`

	err := querier.QueryRowContext(ctx, query, applicationID).Scan(
		&student.ID, &student.ApplicationID, &student.FullName, &student.StudentNumber,
		&student.BirthDate, &student.Address, &student.Course, &student.GPA,
		&student.FamilyBackground, &student.Interests, &student.Goals, &student.PhotoRef,
		&student.CreatedAt, &student.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStudentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get student by application id")
	}

	return &student, nil
}

// UpdateEnrichment persists the enrichment fields produced by the language
// model step.
func (r *PostgreSQLStudentRepository) UpdateEnrichment(
	ctx context.Context,
	applicationID int64,
	familyBackground, interests, goals string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE students SET family_background = $1, interests = $2, goals = $3, updated_at = $4
			  WHERE application_id = $5`

	result, err := querier.ExecContext(ctx, query, familyBackground, interests, goals, updatedAt, applicationID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update student enrichment")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return domain.ErrStudentNotFound
	}

	return nil
}

// UpdatePhotoRef persists the generated photo reference.
func (r *PostgreSQLStudentRepository) UpdatePhotoRef(
	ctx context.Context,
	applicationID int64,
	photoRef string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE students SET photo_ref = $1, updated_at = $2 WHERE application_id = $3`

	result, err := querier.ExecContext(ctx, query, photoRef, updatedAt, applicationID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update student photo ref")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return domain.ErrStudentNotFound
	}

	return nil
}

// DeleteByApplicationID removes the student record for an application. Used by
// timeout recovery to discard partial generation output before a retry.
func (r *PostgreSQLStudentRepository) DeleteByApplicationID(ctx context.Context, applicationID int64) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM students WHERE application_id = $1`

	_, err := querier.ExecContext(ctx, query, applicationID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete student")
	}

	return nil
}
