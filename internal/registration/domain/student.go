package domain

import (
	"time"

	"github.com/google/uuid"
)

// Student is the generated student identity for a completed registration.
// At most one student exists per application; the generation steps treat
// populated fields as idempotency markers.
type Student struct {
	ID            uuid.UUID
	ApplicationID int64

	// Base identity, written by the IDENTITY_RULES step.
	FullName      string
	StudentNumber string
	BirthDate     time.Time
	Address       string
	Course        string
	GPA           float64

	// Enrichment, written by the IDENTITY_LLM step.
	FamilyBackground *string
	Interests        *string
	Goals            *string

	// Photo reference, written by the PHOTO_GENERATION step.
	PhotoRef *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enriched reports whether the IDENTITY_LLM step already ran for this student.
func (s *Student) Enriched() bool {
	return s.FamilyBackground != nil && s.Interests != nil && s.Goals != nil
}

// HasPhoto reports whether the PHOTO_GENERATION step already ran for this student.
func (s *Student) HasPhoto() bool {
	return s.PhotoRef != nil
}
