package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskMaxRetries is the retry ceiling for a registration task. A task whose
// retry count reaches this value is marked failed instead of re-queued.
const TaskMaxRetries = 3

// RegistrationTaskMessage is the wire payload carried on the task topic.
// ApplicationID doubles as the idempotency key and the partition key.
type RegistrationTaskMessage struct {
	MessageID     string     `json:"message_id"`
	ApplicationID int64      `json:"application_id"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	CreatedAt     time.Time  `json:"created_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty"`
}

// NewRegistrationTaskMessage builds a first-attempt task message for an application.
func NewRegistrationTaskMessage(applicationID int64, now time.Time) *RegistrationTaskMessage {
	return &RegistrationTaskMessage{
		MessageID:     uuid.Must(uuid.NewV7()).String(),
		ApplicationID: applicationID,
		RetryCount:    0,
		MaxRetries:    TaskMaxRetries,
		CreatedAt:     now,
	}
}

// NextRetry builds the follow-up message published when a task times out and
// is re-queued. The retry count increments; a fresh message ID keeps the two
// deliveries distinguishable in logs and dead letters.
func (m *RegistrationTaskMessage) NextRetry(now time.Time) *RegistrationTaskMessage {
	return &RegistrationTaskMessage{
		MessageID:     uuid.Must(uuid.NewV7()).String(),
		ApplicationID: m.ApplicationID,
		RetryCount:    m.RetryCount + 1,
		MaxRetries:    m.MaxRetries,
		CreatedAt:     m.CreatedAt,
		LastAttemptAt: &now,
	}
}

// Exhausted reports whether the task has used up its retry budget.
func (m *RegistrationTaskMessage) Exhausted() bool {
	return m.RetryCount >= m.MaxRetries
}

// Encode serializes the message to its JSON wire form.
func (m *RegistrationTaskMessage) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode task message: %w", err)
	}
	return string(data), nil
}

// DecodeRegistrationTaskMessage parses the JSON wire form of a task message.
func DecodeRegistrationTaskMessage(data []byte) (*RegistrationTaskMessage, error) {
	var msg RegistrationTaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode task message: %w", err)
	}
	if msg.ApplicationID <= 0 {
		return nil, fmt.Errorf("task message has invalid application id %d", msg.ApplicationID)
	}
	return &msg, nil
}
