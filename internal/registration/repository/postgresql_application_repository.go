// Package repository provides data persistence implementations for registration entities.
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

// PostgreSQLApplicationRepository handles application persistence for PostgreSQL.
type PostgreSQLApplicationRepository struct {
	db *sql.DB
}

// NewPostgreSQLApplicationRepository creates a new PostgreSQLApplicationRepository.
func NewPostgreSQLApplicationRepository(db *sql.DB) *PostgreSQLApplicationRepository {
	return &PostgreSQLApplicationRepository{
		db: db,
	}
}

// GetByID retrieves an application by ID.
func (r *PostgreSQLApplicationRepository) GetByID(ctx context.Context, id int64) (*domain.Application, error) {
	var application domain.Application
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, status, locale, major, created_at, updated_at
			  FROM applications WHERE id = $1`

	err := querier.QueryRowContext(ctx, query, id).Scan(
		&application.ID, &application.Status, &application.Locale,
		&application.Major, &application.CreatedAt, &application.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrApplicationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get application by id")
	}

	return &application, nil
}

// UpdateStatus sets the application status and bumps updated_at.
func (r *PostgreSQLApplicationRepository) UpdateStatus(
	ctx context.Context,
	id int64,
	status domain.ApplicationStatus,
	updatedAt time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE applications SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := querier.ExecContext(ctx, query, status, updatedAt, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update application status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return domain.ErrApplicationNotFound
	}

	return nil
}

// FindStuckGenerating returns applications that have been in GENERATING status
// since before the cutoff, oldest first.
func (r *PostgreSQLApplicationRepository) FindStuckGenerating(
	ctx context.Context,
	cutoff time.Time,
) ([]*domain.Application, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, status, locale, major, created_at, updated_at
			  FROM applications
			  WHERE status = $1 AND updated_at < $2
			  ORDER BY updated_at ASC`

	rows, err := querier.QueryContext(ctx, query, domain.ApplicationStatusGenerating, cutoff)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to find stuck applications")
	}
	defer rows.Close() //nolint:errcheck

	var applications []*domain.Application
	for rows.Next() {
		var application domain.Application

		err := rows.Scan(&application.ID, &application.Status, &application.Locale,
			&application.Major, &application.CreatedAt, &application.UpdatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan application")
		}

		applications = append(applications, &application)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate applications")
	}

	return applications, nil
}
