// Package repository provides data persistence implementations for outbox entities.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/registration/internal/database"
	"github.com/campushq/registration/internal/outbox/domain"
)

// PostgreSQLOutboxRepository handles outbox entry persistence for PostgreSQL.
type PostgreSQLOutboxRepository struct {
	db *sql.DB
}

// NewPostgreSQLOutboxRepository creates a new PostgreSQLOutboxRepository.
func NewPostgreSQLOutboxRepository(db *sql.DB) *PostgreSQLOutboxRepository {
	return &PostgreSQLOutboxRepository{
		db: db,
	}
}

// Create inserts a new outbox entry. Runs inside the caller's transaction
// when one is present in the context.
func (r *PostgreSQLOutboxRepository) Create(ctx context.Context, entry *domain.OutboxEntry) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_entries (id, aggregate_type, aggregate_id, event_type, payload, retry_count, created_at, processed_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(ctx, query, entry.ID, entry.AggregateType, entry.AggregateID,
		entry.EventType, entry.Payload, entry.RetryCount, entry.CreatedAt, entry.ProcessedAt)

	return err
}

// GetUnprocessed retrieves unprocessed entries ordered by age, oldest first.
func (r *PostgreSQLOutboxRepository) GetUnprocessed(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, created_at, processed_at
			  FROM outbox_entries
			  WHERE processed_at IS NULL
			  ORDER BY created_at ASC
			  LIMIT $1`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var entries []*domain.OutboxEntry
	for rows.Next() {
		var entry domain.OutboxEntry

		err := rows.Scan(&entry.ID, &entry.AggregateType, &entry.AggregateID, &entry.EventType,
			&entry.Payload, &entry.RetryCount, &entry.CreatedAt, &entry.ProcessedAt)
		if err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// MarkProcessed stamps the entry as published.
func (r *PostgreSQLOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries SET processed_at = $1 WHERE id = $2`

	_, err := querier.ExecContext(ctx, query, processedAt, id)

	return err
}

// UpdateRetryCount persists the entry's retry count after a failed publish.
func (r *PostgreSQLOutboxRepository) UpdateRetryCount(ctx context.Context, id uuid.UUID, retryCount int) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries SET retry_count = $1 WHERE id = $2`

	_, err := querier.ExecContext(ctx, query, retryCount, id)

	return err
}

// MoveToDeadLetter inserts the dead letter record and deletes the original
// entry. Both statements run against the caller's transaction so the move is
// atomic.
func (r *PostgreSQLOutboxRepository) MoveToDeadLetter(ctx context.Context, deadLetter *domain.OutboxDeadLetter) error {
	querier := database.GetTx(ctx, r.db)

	insert := `INSERT INTO outbox_dead_letters (id, original_id, aggregate_type, aggregate_id, event_type, payload, retry_count, error_message, created_at, dead_lettered_at)
			   VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := querier.ExecContext(ctx, insert, deadLetter.ID, deadLetter.OriginalID, deadLetter.AggregateType,
		deadLetter.AggregateID, deadLetter.EventType, deadLetter.Payload, deadLetter.RetryCount,
		deadLetter.ErrorMessage, deadLetter.CreatedAt, deadLetter.DeadLetteredAt)
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, `DELETE FROM outbox_entries WHERE id = $1`, deadLetter.OriginalID)

	return err
}

// DeleteProcessedBefore removes processed entries older than the cutoff and
// returns the number of deleted rows.
func (r *PostgreSQLOutboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_entries WHERE processed_at IS NOT NULL AND processed_at < $1`

	result, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
