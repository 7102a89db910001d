package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/campushq/registration/internal/broker"
	outboxdomain "github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/registration/domain"
)

func strPtr(s string) *string {
	return &s
}

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	// Execute the function to test the logic inside
	return fn(ctx)
}

// MockApplicationRepository is a mock implementation of ApplicationRepository
type MockApplicationRepository struct {
	mock.Mock
}

func (m *MockApplicationRepository) GetByID(ctx context.Context, id int64) (*domain.Application, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Application), args.Error(1)
}

func (m *MockApplicationRepository) UpdateStatus(ctx context.Context, id int64, status domain.ApplicationStatus, updatedAt time.Time) error {
	args := m.Called(ctx, id, status, updatedAt)
	return args.Error(0)
}

func (m *MockApplicationRepository) FindStuckGenerating(ctx context.Context, cutoff time.Time) ([]*domain.Application, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Application), args.Error(1)
}

// MockStudentRepository is a mock implementation of StudentRepository
type MockStudentRepository struct {
	mock.Mock
}

func (m *MockStudentRepository) Create(ctx context.Context, student *domain.Student) error {
	args := m.Called(ctx, student)
	return args.Error(0)
}

func (m *MockStudentRepository) GetByApplicationID(ctx context.Context, applicationID int64) (*domain.Student, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Student), args.Error(1)
}

func (m *MockStudentRepository) UpdateEnrichment(ctx context.Context, applicationID int64, familyBackground, interests, goals string, updatedAt time.Time) error {
	args := m.Called(ctx, applicationID, familyBackground, interests, goals, updatedAt)
	return args.Error(0)
}

func (m *MockStudentRepository) UpdatePhotoRef(ctx context.Context, applicationID int64, photoRef string, updatedAt time.Time) error {
	args := m.Called(ctx, applicationID, photoRef, updatedAt)
	return args.Error(0)
}

func (m *MockStudentRepository) DeleteByApplicationID(ctx context.Context, applicationID int64) error {
	args := m.Called(ctx, applicationID)
	return args.Error(0)
}

// MockProgressRepository is a mock implementation of ProgressRepository
type MockProgressRepository struct {
	mock.Mock
}

func (m *MockProgressRepository) Get(ctx context.Context, applicationID int64) (*domain.TaskProgress, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskProgress), args.Error(1)
}

func (m *MockProgressRepository) Upsert(ctx context.Context, progress *domain.TaskProgress) error {
	args := m.Called(ctx, progress)
	return args.Error(0)
}

func (m *MockProgressRepository) Delete(ctx context.Context, applicationID int64) error {
	args := m.Called(ctx, applicationID)
	return args.Error(0)
}

// MockProgressUseCase is a mock implementation of ProgressUseCase
type MockProgressUseCase struct {
	mock.Mock
}

func (m *MockProgressUseCase) Update(ctx context.Context, update ProgressUpdate) (*domain.TaskProgress, error) {
	args := m.Called(ctx, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskProgress), args.Error(1)
}

func (m *MockProgressUseCase) Get(ctx context.Context, applicationID int64) (*domain.TaskProgress, error) {
	args := m.Called(ctx, applicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TaskProgress), args.Error(1)
}

func (m *MockProgressUseCase) Delete(ctx context.Context, applicationID int64) error {
	args := m.Called(ctx, applicationID)
	return args.Error(0)
}

func (m *MockProgressUseCase) Subscribe(applicationID int64) (<-chan domain.ProgressEvent, func()) {
	args := m.Called(applicationID)
	return args.Get(0).(<-chan domain.ProgressEvent), args.Get(1).(func())
}

// MockOutboxInserter is a mock implementation of OutboxInserter
type MockOutboxInserter struct {
	mock.Mock
}

func (m *MockOutboxInserter) Insert(ctx context.Context, aggregateType, aggregateID, eventType, payload string) (*outboxdomain.OutboxEntry, error) {
	args := m.Called(ctx, aggregateType, aggregateID, eventType, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outboxdomain.OutboxEntry), args.Error(1)
}

// MockConsumer is a mock implementation of broker.Consumer
type MockConsumer struct {
	mock.Mock
}

func (m *MockConsumer) Consume(ctx context.Context, topic string, handler broker.Handler) error {
	args := m.Called(ctx, topic, handler)
	return args.Error(0)
}

// MockIdentityGenerator is a mock implementation of IdentityGenerator
type MockIdentityGenerator struct {
	mock.Mock
}

func (m *MockIdentityGenerator) GenerateIdentity(ctx context.Context, application *domain.Application) (*domain.Student, error) {
	args := m.Called(ctx, application)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Student), args.Error(1)
}

// MockEnrichmentGenerator is a mock implementation of EnrichmentGenerator
type MockEnrichmentGenerator struct {
	mock.Mock
}

func (m *MockEnrichmentGenerator) GenerateEnrichment(ctx context.Context, student *domain.Student) (*Enrichment, error) {
	args := m.Called(ctx, student)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Enrichment), args.Error(1)
}

// MockPhotoGenerator is a mock implementation of PhotoGenerator
type MockPhotoGenerator struct {
	mock.Mock
}

func (m *MockPhotoGenerator) GeneratePhoto(ctx context.Context, student *domain.Student) (string, error) {
	args := m.Called(ctx, student)
	return args.String(0), args.Error(1)
}
