package domain

import (
	stderrors "errors"

	"github.com/campushq/registration/internal/errors"
)

var (
	// ErrGenerationTimeout marks a task that exceeded its processing budget.
	// The consumer distinguishes it from other step failures: a timed-out task
	// may be re-queued, any other failure is final.
	ErrGenerationTimeout = stderrors.New("generation task exceeded its processing budget")

	// ErrApplicationNotFound indicates the application does not exist.
	ErrApplicationNotFound = errors.Wrap(errors.ErrNotFound, "application not found")

	// ErrStudentNotFound indicates no student record exists for the application.
	ErrStudentNotFound = errors.Wrap(errors.ErrNotFound, "student not found")

	// ErrProgressNotFound indicates no progress record exists for the application.
	ErrProgressNotFound = errors.Wrap(errors.ErrNotFound, "task progress not found")

	// ErrInvalidStatusTransition indicates the requested status change is not
	// allowed from the application's current status.
	ErrInvalidStatusTransition = errors.Wrap(errors.ErrConflict, "invalid application status transition")
)
