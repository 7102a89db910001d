package dto

import (
	"time"

	"github.com/campushq/registration/internal/registration/domain"
)

// ProgressResponse is the wire representation of a task progress snapshot.
type ProgressResponse struct {
	ApplicationID   int64     `json:"application_id"`
	Step            string    `json:"step"`
	Status          string    `json:"status"`
	ProgressPercent int       `json:"progress_percent"`
	Message         string    `json:"message,omitempty"`
	RetryCount      int       `json:"retry_count"`
	Version         int64     `json:"version"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewProgressResponse converts a progress record to its wire representation.
func NewProgressResponse(progress *domain.TaskProgress) ProgressResponse {
	return ProgressResponse{
		ApplicationID:   progress.ApplicationID,
		Step:            string(progress.Step),
		Status:          string(progress.Status),
		ProgressPercent: progress.ProgressPercent,
		Message:         progress.Message,
		RetryCount:      progress.RetryCount,
		Version:         progress.Version,
		UpdatedAt:       progress.UpdatedAt,
	}
}

// ApprovalResponse acknowledges an accepted approval request.
type ApprovalResponse struct {
	ApplicationID int64  `json:"application_id"`
	Status        string `json:"status"`
}
