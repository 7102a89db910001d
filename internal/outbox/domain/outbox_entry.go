// Package domain defines the transactional outbox entities.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate types written to the outbox.
const (
	// AggregateTypeApplication marks entries triggered by a registration application.
	AggregateTypeApplication = "APPLICATION"
)

// Event types carried by outbox entries. The publisher maps each event type to
// a broker topic; an unknown event type is a hard publish error.
const (
	// EventTypeRegistrationTask requests asynchronous registration completion.
	EventTypeRegistrationTask = "REGISTRATION_TASK"
)

// OutboxEntry is a pending event written in the same transaction as the
// business change that triggered it. An entry is either unprocessed
// (ProcessedAt == nil) or terminal: processed, or moved to the dead letter
// archive — never both.
type OutboxEntry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       string
	RetryCount    int
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

// Processed reports whether the entry has been successfully published.
func (e *OutboxEntry) Processed() bool {
	return e.ProcessedAt != nil
}

// OutboxDeadLetter is an immutable copy of an entry that exhausted its publish
// retries. Append-only: dead letters are kept for manual inspection, never
// mutated or retried automatically.
type OutboxDeadLetter struct {
	ID             uuid.UUID
	OriginalID     uuid.UUID
	AggregateType  string
	AggregateID    string
	EventType      string
	Payload        string
	RetryCount     int
	ErrorMessage   string
	CreatedAt      time.Time
	DeadLetteredAt time.Time
}

// NewDeadLetter builds the dead letter archive record for an exhausted entry.
func NewDeadLetter(entry *OutboxEntry, errorMessage string, now time.Time) *OutboxDeadLetter {
	return &OutboxDeadLetter{
		ID:             uuid.Must(uuid.NewV7()),
		OriginalID:     entry.ID,
		AggregateType:  entry.AggregateType,
		AggregateID:    entry.AggregateID,
		EventType:      entry.EventType,
		Payload:        entry.Payload,
		RetryCount:     entry.RetryCount,
		ErrorMessage:   errorMessage,
		CreatedAt:      entry.CreatedAt,
		DeadLetteredAt: now,
	}
}
