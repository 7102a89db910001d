package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/campushq/registration/internal/broker"
	outboxdomain "github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/registration/domain"
)

type consumerFixture struct {
	uc              *ConsumerUseCase
	txManager       *MockTxManager
	applicationRepo *MockApplicationRepository
	studentRepo     *MockStudentRepository
	progress        *MockProgressUseCase
	identityGen     *MockIdentityGenerator
	outbox          *MockOutboxInserter
}

func newConsumerFixture(t *testing.T, taskTimeout time.Duration) *consumerFixture {
	t.Helper()

	f := &consumerFixture{
		txManager:       &MockTxManager{},
		applicationRepo: &MockApplicationRepository{},
		studentRepo:     &MockStudentRepository{},
		progress:        &MockProgressUseCase{},
		identityGen:     &MockIdentityGenerator{},
		outbox:          &MockOutboxInserter{},
	}

	executor := NewStepExecutor(f.txManager, f.studentRepo, f.progress, f.identityGen, nil, nil, nil, nil)

	f.uc = NewConsumerUseCase(
		ConsumerConfig{Topic: "registration.tasks", MaxRetries: 3, TaskTimeout: taskTimeout},
		&MockConsumer{},
		f.txManager,
		f.applicationRepo,
		f.studentRepo,
		f.progress,
		executor,
		f.outbox,
		nil,
		nil,
	)
	f.uc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return f
}

func taskMessage(t *testing.T, retryCount int) broker.Message {
	t.Helper()

	task := domain.NewRegistrationTaskMessage(42, time.Date(2026, 3, 1, 11, 59, 0, 0, time.UTC))
	task.RetryCount = retryCount

	payload, err := task.Encode()
	require.NoError(t, err)

	return broker.Message{Topic: "registration.tasks", Key: "42", Body: []byte(payload)}
}

// completedStudent makes every generation step an idempotent no-op.
func completedStudent() *domain.Student {
	return &domain.Student{
		ApplicationID:    42,
		FamilyBackground: strPtr("only child"),
		Interests:        strPtr("robotics"),
		Goals:            strPtr("graduate"),
		PhotoRef:         strPtr("photos/42/abc.png"),
	}
}

func TestConsumerUseCase_MalformedMessage(t *testing.T) {
	f := newConsumerFixture(t, 300*time.Second)

	err := f.uc.HandleMessage(context.Background(), broker.Message{Body: []byte("not json")})

	assert.NoError(t, err)
	f.applicationRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestConsumerUseCase_UnknownApplication(t *testing.T) {
	f := newConsumerFixture(t, 300*time.Second)
	ctx := context.Background()

	f.applicationRepo.On("GetByID", ctx, int64(42)).Return(nil, domain.ErrApplicationNotFound)

	err := f.uc.HandleMessage(ctx, taskMessage(t, 0))

	assert.NoError(t, err)
	f.applicationRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumerUseCase_TerminalApplicationDropped(t *testing.T) {
	f := newConsumerFixture(t, 300*time.Second)
	ctx := context.Background()

	f.applicationRepo.On("GetByID", ctx, int64(42)).
		Return(&domain.Application{ID: 42, Status: domain.ApplicationStatusCompleted}, nil)

	err := f.uc.HandleMessage(ctx, taskMessage(t, 0))

	assert.NoError(t, err)
	f.applicationRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConsumerUseCase_RetryLimitExceeded(t *testing.T) {
	f := newConsumerFixture(t, 300*time.Second)
	ctx := context.Background()

	f.applicationRepo.On("GetByID", ctx, int64(42)).
		Return(&domain.Application{ID: 42, Status: domain.ApplicationStatusApproved}, nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusFailed, mock.Anything).Return(nil)
	f.progress.On("Update", ctx, mock.MatchedBy(func(u ProgressUpdate) bool {
		return u.Status == domain.ProgressStatusFailed
	})).Return(&domain.TaskProgress{}, nil)

	err := f.uc.HandleMessage(ctx, taskMessage(t, 3))

	assert.NoError(t, err)
	f.applicationRepo.AssertExpectations(t)
	f.progress.AssertExpectations(t)
}

func TestConsumerUseCase_Success(t *testing.T) {
	f := newConsumerFixture(t, 300*time.Second)
	ctx := context.Background()

	f.applicationRepo.On("GetByID", ctx, int64(42)).
		Return(&domain.Application{ID: 42, Status: domain.ApplicationStatusApproved}, nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusGenerating, mock.Anything).Return(nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusCompleted, mock.Anything).Return(nil)

	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.studentRepo.On("GetByApplicationID", mock.Anything, int64(42)).Return(completedStudent(), nil)
	f.progress.On("Update", mock.Anything, mock.Anything).Return(&domain.TaskProgress{}, nil)

	err := f.uc.HandleMessage(ctx, taskMessage(t, 0))

	assert.NoError(t, err)
	f.applicationRepo.AssertExpectations(t)
	f.progress.AssertCalled(t, "Update", mock.Anything, mock.MatchedBy(func(u ProgressUpdate) bool {
		return u.Status == domain.ProgressStatusCompleted && u.ProgressPercent == 100
	}))
}

func TestConsumerUseCase_StepFailure(t *testing.T) {
	f := newConsumerFixture(t, 300*time.Second)
	ctx := context.Background()

	f.applicationRepo.On("GetByID", ctx, int64(42)).
		Return(&domain.Application{ID: 42, Status: domain.ApplicationStatusApproved}, nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusGenerating, mock.Anything).Return(nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusFailed, mock.Anything).Return(nil)

	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.studentRepo.On("GetByApplicationID", mock.Anything, int64(42)).Return(nil, domain.ErrStudentNotFound)
	f.identityGen.On("GenerateIdentity", mock.Anything, mock.Anything).Return(nil, errors.New("generator unavailable"))
	f.progress.On("Update", mock.Anything, mock.Anything).Return(&domain.TaskProgress{}, nil)

	err := f.uc.HandleMessage(ctx, taskMessage(t, 0))

	assert.NoError(t, err)
	f.applicationRepo.AssertCalled(t, "UpdateStatus", ctx, int64(42), domain.ApplicationStatusFailed, mock.Anything)
}

func TestConsumerUseCase_TimeoutRequeues(t *testing.T) {
	// Zero budget: the deadline is already spent before the first step.
	f := newConsumerFixture(t, 0)
	ctx := context.Background()

	f.applicationRepo.On("GetByID", ctx, int64(42)).
		Return(&domain.Application{ID: 42, Status: domain.ApplicationStatusApproved}, nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusGenerating, mock.Anything).Return(nil)

	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.applicationRepo.On("UpdateStatus", mock.Anything, int64(42), domain.ApplicationStatusApproved, mock.Anything).Return(nil)
	f.outbox.On("Insert", mock.Anything, outboxdomain.AggregateTypeApplication, "42",
		outboxdomain.EventTypeRegistrationTask, mock.MatchedBy(func(payload string) bool {
			task, err := domain.DecodeRegistrationTaskMessage([]byte(payload))
			return err == nil && task.RetryCount == 1
		})).Return(&outboxdomain.OutboxEntry{}, nil)
	f.progress.On("Update", mock.Anything, mock.MatchedBy(func(u ProgressUpdate) bool {
		return u.Status == domain.ProgressStatusQueued && u.RetryCount == 1
	})).Return(&domain.TaskProgress{}, nil)

	err := f.uc.HandleMessage(ctx, taskMessage(t, 0))

	assert.NoError(t, err)
	f.outbox.AssertExpectations(t)
	f.progress.AssertExpectations(t)
}

func TestConsumerUseCase_TimeoutLastRetryFails(t *testing.T) {
	f := newConsumerFixture(t, 0)
	ctx := context.Background()

	f.applicationRepo.On("GetByID", ctx, int64(42)).
		Return(&domain.Application{ID: 42, Status: domain.ApplicationStatusApproved}, nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusGenerating, mock.Anything).Return(nil)
	f.applicationRepo.On("UpdateStatus", ctx, int64(42), domain.ApplicationStatusFailed, mock.Anything).Return(nil)
	f.progress.On("Update", mock.Anything, mock.MatchedBy(func(u ProgressUpdate) bool {
		return u.Status == domain.ProgressStatusFailed
	})).Return(&domain.TaskProgress{}, nil)

	// Retry count 2 is the last processable attempt; its timeout has no
	// retries left.
	err := f.uc.HandleMessage(ctx, taskMessage(t, 2))

	assert.NoError(t, err)
	f.outbox.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.applicationRepo.AssertExpectations(t)
}
