package domain

import (
	"fmt"
	"time"
)

// GenerationStep is one stage of the student generation pipeline. Steps run
// in declaration order; each step persists its output in its own transaction
// before the next step starts.
type GenerationStep string

const (
	StepIdentityRules   GenerationStep = "IDENTITY_RULES"
	StepIdentityLLM     GenerationStep = "IDENTITY_LLM"
	StepPhotoGeneration GenerationStep = "PHOTO_GENERATION"
)

// Steps returns the generation steps in execution order.
func Steps() []GenerationStep {
	return []GenerationStep{StepIdentityRules, StepIdentityLLM, StepPhotoGeneration}
}

// Percent is the overall progress reported when this step completes.
func (s GenerationStep) Percent() int {
	switch s {
	case StepIdentityRules:
		return 40
	case StepIdentityLLM:
		return 70
	case StepPhotoGeneration:
		return 100
	default:
		return 0
	}
}

// ProgressStatus is the observable state of a task's progress record.
type ProgressStatus string

const (
	ProgressStatusQueued    ProgressStatus = "QUEUED"
	ProgressStatusRunning   ProgressStatus = "RUNNING"
	ProgressStatusCompleted ProgressStatus = "COMPLETED"
	ProgressStatusFailed    ProgressStatus = "FAILED"
)

// IsTerminal reports whether the progress record will receive no further updates.
func (s ProgressStatus) IsTerminal() bool {
	return s == ProgressStatusCompleted || s == ProgressStatusFailed
}

// TaskProgress is the single progress record kept per application while its
// generation task is in flight. Version increases by exactly one on every
// update; observers use it to discard stale or duplicate notifications.
type TaskProgress struct {
	ApplicationID   int64
	Step            GenerationStep
	Status          ProgressStatus
	ProgressPercent int
	Message         string
	RetryCount      int
	Version         int64
	UpdatedAt       time.Time
}

// ProgressEvent is a snapshot pushed to observers after each persisted update.
type ProgressEvent struct {
	ApplicationID   int64          `json:"application_id"`
	Step            GenerationStep `json:"step"`
	Status          ProgressStatus `json:"status"`
	ProgressPercent int            `json:"progress_percent"`
	Message         string         `json:"message,omitempty"`
	RetryCount      int            `json:"retry_count"`
	Version         int64          `json:"version"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Event builds the push snapshot for the current progress state.
func (p *TaskProgress) Event() ProgressEvent {
	return ProgressEvent{
		ApplicationID:   p.ApplicationID,
		Step:            p.Step,
		Status:          p.Status,
		ProgressPercent: p.ProgressPercent,
		Message:         p.Message,
		RetryCount:      p.RetryCount,
		Version:         p.Version,
		UpdatedAt:       p.UpdatedAt,
	}
}

// Destination is the per-application push topic the event is broadcast on.
func (e ProgressEvent) Destination() string {
	return fmt.Sprintf("/topic/applications/%d/progress", e.ApplicationID)
}
