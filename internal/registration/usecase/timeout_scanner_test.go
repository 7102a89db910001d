package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	outboxdomain "github.com/campushq/registration/internal/outbox/domain"
	"github.com/campushq/registration/internal/registration/domain"
)

type scannerFixture struct {
	scanner         *TimeoutScanner
	txManager       *MockTxManager
	applicationRepo *MockApplicationRepository
	studentRepo     *MockStudentRepository
	progressRepo    *MockProgressRepository
	progress        *MockProgressUseCase
	broadcaster     *Broadcaster
	outbox          *MockOutboxInserter
}

func newScannerFixture(t *testing.T) *scannerFixture {
	t.Helper()

	f := &scannerFixture{
		txManager:       &MockTxManager{},
		applicationRepo: &MockApplicationRepository{},
		studentRepo:     &MockStudentRepository{},
		progressRepo:    &MockProgressRepository{},
		progress:        &MockProgressUseCase{},
		broadcaster:     NewBroadcaster(),
		outbox:          &MockOutboxInserter{},
	}

	f.scanner = NewTimeoutScanner(
		ScannerConfig{
			Interval:     30 * time.Second,
			InitialDelay: 30 * time.Second,
			TaskTimeout:  300 * time.Second,
			MaxRetries:   3,
		},
		f.txManager,
		f.applicationRepo,
		f.studentRepo,
		f.progressRepo,
		f.progress,
		f.broadcaster,
		f.outbox,
		nil,
		nil,
	)
	f.scanner.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return f
}

func stuckApplication() *domain.Application {
	return &domain.Application{
		ID:        42,
		Status:    domain.ApplicationStatusGenerating,
		UpdatedAt: time.Date(2026, 3, 1, 11, 50, 0, 0, time.UTC),
	}
}

func TestTimeoutScanner_Scan_NoStuckApplications(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	f.applicationRepo.On("FindStuckGenerating", ctx, mock.Anything).
		Return([]*domain.Application{}, nil)

	err := f.scanner.Scan(ctx)

	assert.NoError(t, err)
	f.txManager.AssertNotCalled(t, "WithTx", mock.Anything, mock.Anything)
}

func TestTimeoutScanner_Scan_UsesTaskTimeoutCutoff(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	expectedCutoff := time.Date(2026, 3, 1, 11, 55, 0, 0, time.UTC)
	f.applicationRepo.On("FindStuckGenerating", ctx, expectedCutoff).
		Return([]*domain.Application{}, nil)

	err := f.scanner.Scan(ctx)

	assert.NoError(t, err)
	f.applicationRepo.AssertExpectations(t)
}

func TestTimeoutScanner_Requeue(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	f.applicationRepo.On("FindStuckGenerating", ctx, mock.Anything).
		Return([]*domain.Application{stuckApplication()}, nil)
	f.progressRepo.On("Get", ctx, int64(42)).
		Return(&domain.TaskProgress{ApplicationID: 42, RetryCount: 0, Version: 4}, nil)

	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.studentRepo.On("DeleteByApplicationID", mock.Anything, int64(42)).Return(nil)
	f.applicationRepo.On("UpdateStatus", mock.Anything, int64(42), domain.ApplicationStatusApproved, mock.Anything).Return(nil)
	f.outbox.On("Insert", mock.Anything, outboxdomain.AggregateTypeApplication, "42",
		outboxdomain.EventTypeRegistrationTask, mock.MatchedBy(func(payload string) bool {
			task, err := domain.DecodeRegistrationTaskMessage([]byte(payload))
			return err == nil && task.RetryCount == 1
		})).Return(&outboxdomain.OutboxEntry{}, nil)
	f.progress.On("Update", mock.Anything, mock.MatchedBy(func(u ProgressUpdate) bool {
		return u.Status == domain.ProgressStatusQueued && u.RetryCount == 1
	})).Return(&domain.TaskProgress{}, nil)

	err := f.scanner.Scan(ctx)

	assert.NoError(t, err)
	f.studentRepo.AssertExpectations(t)
	f.outbox.AssertExpectations(t)
	f.progress.AssertExpectations(t)
}

func TestTimeoutScanner_FailsPermanentlyAfterRetryLimit(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	ch, cancel := f.broadcaster.Subscribe(42)
	defer cancel()

	f.applicationRepo.On("FindStuckGenerating", ctx, mock.Anything).
		Return([]*domain.Application{stuckApplication()}, nil)
	f.progressRepo.On("Get", ctx, int64(42)).
		Return(&domain.TaskProgress{ApplicationID: 42, RetryCount: 2, Version: 9}, nil)

	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.applicationRepo.On("UpdateStatus", mock.Anything, int64(42), domain.ApplicationStatusFailed, mock.Anything).Return(nil)
	f.progressRepo.On("Delete", mock.Anything, int64(42)).Return(nil)

	err := f.scanner.Scan(ctx)

	assert.NoError(t, err)
	f.outbox.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.progressRepo.AssertExpectations(t)

	// Live observers still get the terminal event with a newer version.
	event := <-ch
	assert.Equal(t, domain.ProgressStatusFailed, event.Status)
	assert.Equal(t, int64(10), event.Version)
}

func TestTimeoutScanner_MissingProgressDefaultsToFirstRetry(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	f.applicationRepo.On("FindStuckGenerating", ctx, mock.Anything).
		Return([]*domain.Application{stuckApplication()}, nil)
	f.progressRepo.On("Get", ctx, int64(42)).Return(nil, domain.ErrProgressNotFound)

	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.studentRepo.On("DeleteByApplicationID", mock.Anything, int64(42)).Return(nil)
	f.applicationRepo.On("UpdateStatus", mock.Anything, int64(42), domain.ApplicationStatusApproved, mock.Anything).Return(nil)
	f.outbox.On("Insert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&outboxdomain.OutboxEntry{}, nil)
	f.progress.On("Update", mock.Anything, mock.Anything).Return(&domain.TaskProgress{}, nil)

	err := f.scanner.Scan(ctx)

	assert.NoError(t, err)
	f.outbox.AssertExpectations(t)
}

func TestTimeoutScanner_RecoveryFailureDoesNotBlockOthers(t *testing.T) {
	f := newScannerFixture(t)
	ctx := context.Background()

	first := stuckApplication()
	second := stuckApplication()
	second.ID = 7

	f.applicationRepo.On("FindStuckGenerating", ctx, mock.Anything).
		Return([]*domain.Application{first, second}, nil)
	f.progressRepo.On("Get", ctx, mock.Anything).Return(nil, domain.ErrProgressNotFound)

	f.txManager.On("WithTx", mock.Anything, mock.Anything).Return(nil)
	f.studentRepo.On("DeleteByApplicationID", mock.Anything, int64(42)).Return(assert.AnError)
	f.studentRepo.On("DeleteByApplicationID", mock.Anything, int64(7)).Return(nil)
	f.applicationRepo.On("UpdateStatus", mock.Anything, int64(7), domain.ApplicationStatusApproved, mock.Anything).Return(nil)
	f.outbox.On("Insert", mock.Anything, mock.Anything, "7", mock.Anything, mock.Anything).
		Return(&outboxdomain.OutboxEntry{}, nil)
	f.progress.On("Update", mock.Anything, mock.Anything).Return(&domain.TaskProgress{}, nil)

	err := f.scanner.Scan(ctx)

	assert.NoError(t, err)
	f.outbox.AssertCalled(t, "Insert", mock.Anything, mock.Anything, "7", mock.Anything, mock.Anything)
}

func TestTimeoutScanner_Start_RespectsInitialDelay(t *testing.T) {
	f := newScannerFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Cancelled before the initial delay elapses: no scan happens.
	err := f.scanner.Start(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	f.applicationRepo.AssertNotCalled(t, "FindStuckGenerating", mock.Anything, mock.Anything)
}
