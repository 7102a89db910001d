// Package usecase implements the registration completion pipeline: approval,
// task consumption, step execution, progress tracking, and timeout recovery.
package usecase

import (
	"context"
	"time"

	outboxdomain "github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/registration/domain"
)

// ApplicationRepository defines application persistence operations.
type ApplicationRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Application, error)
	UpdateStatus(ctx context.Context, id int64, status domain.ApplicationStatus, updatedAt time.Time) error
	FindStuckGenerating(ctx context.Context, cutoff time.Time) ([]*domain.Application, error)
}

// StudentRepository defines student persistence operations.
type StudentRepository interface {
	Create(ctx context.Context, student *domain.Student) error
	GetByApplicationID(ctx context.Context, applicationID int64) (*domain.Student, error)
	UpdateEnrichment(ctx context.Context, applicationID int64, familyBackground, interests, goals string, updatedAt time.Time) error
	UpdatePhotoRef(ctx context.Context, applicationID int64, photoRef string, updatedAt time.Time) error
	DeleteByApplicationID(ctx context.Context, applicationID int64) error
}

// ProgressRepository defines task progress persistence operations.
type ProgressRepository interface {
	Get(ctx context.Context, applicationID int64) (*domain.TaskProgress, error)
	Upsert(ctx context.Context, progress *domain.TaskProgress) error
	Delete(ctx context.Context, applicationID int64) error
}

// IdentityGenerator produces the base student identity from the application.
type IdentityGenerator interface {
	GenerateIdentity(ctx context.Context, application *domain.Application) (*domain.Student, error)
}

// Enrichment is the narrative profile produced for a student.
type Enrichment struct {
	FamilyBackground string
	Interests        string
	Goals            string
}

// EnrichmentGenerator produces the narrative profile for a generated student.
type EnrichmentGenerator interface {
	GenerateEnrichment(ctx context.Context, student *domain.Student) (*Enrichment, error)
}

// PhotoGenerator produces a stored photo reference for a generated student.
type PhotoGenerator interface {
	GeneratePhoto(ctx context.Context, student *domain.Student) (string, error)
}

// ProgressUseCase defines the progress tracking operations.
type ProgressUseCase interface {
	Update(ctx context.Context, update ProgressUpdate) (*domain.TaskProgress, error)
	Get(ctx context.Context, applicationID int64) (*domain.TaskProgress, error)
	Delete(ctx context.Context, applicationID int64) error
	Subscribe(applicationID int64) (<-chan domain.ProgressEvent, func())
}

// OutboxInserter is the slice of the outbox surface the pipeline needs: writing
// an entry inside the caller's open transaction.
type OutboxInserter interface {
	Insert(ctx context.Context, aggregateType, aggregateID, eventType, payload string) (*outboxdomain.OutboxEntry, error)
}
