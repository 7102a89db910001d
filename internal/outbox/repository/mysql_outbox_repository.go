package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/campushq/registration/internal/database"
	"github.com/campushq/registration/internal/outbox/domain"
)

// MySQLOutboxRepository handles outbox entry persistence for MySQL.
type MySQLOutboxRepository struct {
	db *sql.DB
}

// NewMySQLOutboxRepository creates a new MySQLOutboxRepository.
func NewMySQLOutboxRepository(db *sql.DB) *MySQLOutboxRepository {
	return &MySQLOutboxRepository{
		db: db,
	}
}

// Create inserts a new outbox entry. Runs inside the caller's transaction
// when one is present in the context.
func (r *MySQLOutboxRepository) Create(ctx context.Context, entry *domain.OutboxEntry) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO outbox_entries (id, aggregate_type, aggregate_id, event_type, payload, retry_count, created_at, processed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, entry.ID.String(), entry.AggregateType, entry.AggregateID,
		entry.EventType, entry.Payload, entry.RetryCount, entry.CreatedAt, entry.ProcessedAt)

	return err
}

// GetUnprocessed retrieves unprocessed entries ordered by age, oldest first.
func (r *MySQLOutboxRepository) GetUnprocessed(
	ctx context.Context,
	limit int,
) ([]*domain.OutboxEntry, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, aggregate_type, aggregate_id, event_type, payload, retry_count, created_at, processed_at
			  FROM outbox_entries
			  WHERE processed_at IS NULL
			  ORDER BY created_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var entries []*domain.OutboxEntry
	for rows.Next() {
		var entry domain.OutboxEntry
		var id string

		err := rows.Scan(&id, &entry.AggregateType, &entry.AggregateID, &entry.EventType,
			&entry.Payload, &entry.RetryCount, &entry.CreatedAt, &entry.ProcessedAt)
		if err != nil {
			return nil, err
		}

		entry.ID, err = uuid.Parse(id)
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
func (r *MySQLOutboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries SET processed_at = ? WHERE id = ?`

	_, err := querier.ExecContext(ctx, query, processedAt, id.String())

	return err
}

// UpdateRetryCount persists the entry's retry count after a failed publish.
func (r *MySQLOutboxRepository) UpdateRetryCount(ctx context.Context, id uuid.UUID, retryCount int) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE outbox_entries SET retry_count = ? WHERE id = ?`

	_, err := querier.ExecContext(ctx, query, retryCount, id.String())

	return err
}

// MoveToDeadLetter inserts the dead letter record and deletes the original
// entry. Both statements run against the caller's transaction so the move is
// atomic.
func (r *MySQLOutboxRepository) MoveToDeadLetter(ctx context.Context, deadLetter *domain.OutboxDeadLetter) error {
	querier := database.GetTx(ctx, r.db)

	insert := `INSERT INTO outbox_dead_letters (id, original_id, aggregate_type, aggregate_id, event_type, payload, retry_count, error_message, created_at, dead_lettered_at)
			   VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, insert, deadLetter.ID.String(), deadLetter.OriginalID.String(),
		deadLetter.AggregateType, deadLetter.AggregateID, deadLetter.EventType, deadLetter.Payload,
		deadLetter.RetryCount, deadLetter.ErrorMessage, deadLetter.CreatedAt, deadLetter.DeadLetteredAt)
	if err != nil {
		return err
	}

	_, err = querier.ExecContext(ctx, `DELETE FROM outbox_entries WHERE id = ?`, deadLetter.OriginalID.String())

	return err
}

// DeleteProcessedBefore removes processed entries older than the cutoff and
// returns the number of deleted rows.
func (r *MySQLOutboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `DELETE FROM outbox_entries WHERE processed_at IS NOT NULL AND processed_at < ?`

	result, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
