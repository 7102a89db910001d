package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/registration/internal/database"
	apperrors "github.com/campushq/registration/internal/errors"
	"github.com/campushq/registration/internal/registration/domain"
)

// MySQLStudentRepository handles student persistence for MySQL.
type MySQLStudentRepository struct {
	db *sql.DB
}

// NewMySQLStudentRepository creates a new MySQLStudentRepository.
func NewMySQLStudentRepository(db *sql.DB) *MySQLStudentRepository {
	return &MySQLStudentRepository{
		db: db,
	}
}

// Create inserts a new student record.
func (r *MySQLStudentRepository) Create(ctx context.Context, student *domain.Student) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO students (id, application_id, full_name, student_number, birth_date, address, course, gpa, family_background, interests, goals, photo_ref, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, student.ID.String(), student.ApplicationID, student.FullName,
		student.StudentNumber, student.BirthDate, student.Address, student.Course, student.GPA,
		student.FamilyBackground, student.Interests, student.Goals, student.PhotoRef,
		student.CreatedAt, student.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create student")
	}

	return nil
}

// GetByApplicationID retrieves the student generated for an application.
func (r *MySQLStudentRepository) GetByApplicationID(ctx context.Context, applicationID int64) (*domain.Student, error) {
	var student domain.Student
	var id string
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, application_id, full_name, student_number, birth_date, address, course, gpa, family_background, interests, goals, photo_ref, created_at, updated_at
			  FROM students WHERE application_id = ?`

	err := querier.QueryRowContext(ctx, query, applicationID).Scan(
		&id, &student.ApplicationID, &student.FullName, &student.StudentNumber,
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

	student.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse student id")
	}

	return &student, nil
}

// UpdateEnrichment persists the enrichment fields produced by the language
// model step.
func (r *MySQLStudentRepository) UpdateEnrichment(
	ctx context.Context,
	applicationID int64,
	familyBackground, interests, goals string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE students SET family_background = ?, interests = ?, goals = ?, updated_at = ?
			  WHERE application_id = ?`

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
func (r *MySQLStudentRepository) UpdatePhotoRef(
	ctx context.Context,
	applicationID int64,
	photoRef string,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE students SET photo_ref = ?, updated_at = ? WHERE application_id = ?`

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
func (r *MySQLStudentRepository) DeleteByApplicationID(ctx context.Context, applicationID int64) error {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM students WHERE application_id = ?`

	_, err := querier.ExecContext(ctx, query, applicationID)
	if err != nil {
		return apperrors.Wrap(err, "failed to delete student")
	}

	return nil
}
