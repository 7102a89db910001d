// Package domain defines the core registration pipeline entities: applications,
// generated student records, task messages, and progress tracking.
package domain

import (
	"time"
)

// ApplicationStatus is the lifecycle state of a registration application.
// It is a closed set; call sites switch exhaustively so a new status is a
// compile-time concern, not a string comparison.
type ApplicationStatus string

const (
	ApplicationStatusPendingApproval ApplicationStatus = "PENDING_APPROVAL"
	ApplicationStatusApproved        ApplicationStatus = "APPROVED"
	ApplicationStatusGenerating      ApplicationStatus = "GENERATING"
	ApplicationStatusCompleted       ApplicationStatus = "COMPLETED"
	ApplicationStatusFailed          ApplicationStatus = "FAILED"
	ApplicationStatusRejected        ApplicationStatus = "REJECTED"
)

// IsTerminal reports whether the status admits no further pipeline activity.
// Duplicate task deliveries for terminal applications are dropped without
// side effects.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case ApplicationStatusCompleted, ApplicationStatusRejected, ApplicationStatusFailed:
		return true
	case ApplicationStatusPendingApproval, ApplicationStatusApproved, ApplicationStatusGenerating:
		return false
	default:
		return false
	}
}

// Valid reports whether the status is one of the known lifecycle states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPendingApproval, ApplicationStatusApproved,
		ApplicationStatusGenerating, ApplicationStatusCompleted,
		ApplicationStatusFailed, ApplicationStatusRejected:
		return true
	default:
		return false
	}
}

// Application is one registration application. The pipeline only reads and
// writes Status and UpdatedAt; the remaining fields belong to the registration
// CRUD surface and are inputs to the generation steps.
type Application struct {
	ID        int64
	Status    ApplicationStatus
	Locale    string
	Major     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
