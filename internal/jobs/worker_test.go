package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

// MockLocker is a mock implementation of Locker
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, token, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockLocker) ReleaseLock(ctx context.Context, key, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

var _ Locker = (*MockLocker)(nil)

// stubJob counts its runs and returns a fixed result
type stubJob struct {
	name string
	runs int
	err  error
}

func (j *stubJob) Name() string { return j.name }

func (j *stubJob) Run(ctx context.Context) (int, error) {
	j.runs++
	return 5, j.err
}

func TestWorker_RunNowAcquiresAndReleasesLease(t *testing.T) {
	locks := new(MockLocker)
	worker := NewWorker(locks, time.Hour, zap.NewNop())
	job := &stubJob{name: "risk_update"}

	locks.On("AcquireLock", mock.Anything, "jobs:lock:risk_update", mock.AnythingOfType("string"), time.Hour).
		Return(true, nil).Once()
	locks.On("ReleaseLock", mock.Anything, "jobs:lock:risk_update", mock.AnythingOfType("string")).
		Return(nil).Once()

	worker.RunNow(context.Background(), job)

	assert.Equal(t, 1, job.runs)
	locks.AssertExpectations(t)
}

func TestWorker_SkipsWhenLeaseHeldElsewhere(t *testing.T) {
	locks := new(MockLocker)
	worker := NewWorker(locks, time.Hour, zap.NewNop())
	job := &stubJob{name: "duplicate_detection"}

	locks.On("AcquireLock", mock.Anything, "jobs:lock:duplicate_detection", mock.AnythingOfType("string"), time.Hour).
		Return(false, nil).Once()

	worker.RunNow(context.Background(), job)

	assert.Zero(t, job.runs)
	locks.AssertNotCalled(t, "ReleaseLock", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorker_SkipsOnLockError(t *testing.T) {
	locks := new(MockLocker)
	worker := NewWorker(locks, time.Hour, zap.NewNop())
	job := &stubJob{name: "risk_update"}

	locks.On("AcquireLock", mock.Anything, "jobs:lock:risk_update", mock.AnythingOfType("string"), time.Hour).
		Return(false, errors.New("connection refused")).Once()

	worker.RunNow(context.Background(), job)

	assert.Zero(t, job.runs)
}

func TestWorker_ReleasesLeaseOnJobFailure(t *testing.T) {
	locks := new(MockLocker)
	worker := NewWorker(locks, time.Hour, zap.NewNop())
	job := &stubJob{name: "risk_update", err: errors.New("store unavailable")}

	locks.On("AcquireLock", mock.Anything, "jobs:lock:risk_update", mock.AnythingOfType("string"), time.Hour).
		Return(true, nil).Once()
	locks.On("ReleaseLock", mock.Anything, "jobs:lock:risk_update", mock.AnythingOfType("string")).
		Return(nil).Once()

	worker.RunNow(context.Background(), job)

	assert.Equal(t, 1, job.runs)
	locks.AssertExpectations(t)
}

func TestWorker_StartRunsJobsOnInterval(t *testing.T) {
	locks := new(MockLocker)
	worker := NewWorker(locks, time.Hour, zap.NewNop())
	job := &stubJob{name: "risk_update"}
	worker.Register(job, 10*time.Millisecond)

	locks.On("AcquireLock", mock.Anything, "jobs:lock:risk_update", mock.AnythingOfType("string"), time.Hour).
		Return(true, nil)
	locks.On("ReleaseLock", mock.Anything, "jobs:lock:risk_update", mock.AnythingOfType("string")).
		Return(nil)

	worker.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	worker.Stop()

	assert.GreaterOrEqual(t, job.runs, 1)
}

func TestWorker_StartRunsJobsImmediately(t *testing.T) {
	locks := new(MockLocker)
	worker := NewWorker(locks, time.Hour, zap.NewNop())
	job := &stubJob{name: "duplicate_detection"}
	// interval far beyond the test duration, only the startup run can fire
	worker.Register(job, time.Hour)

	locks.On("AcquireLock", mock.Anything, "jobs:lock:duplicate_detection", mock.AnythingOfType("string"), time.Hour).
		Return(true, nil)
	locks.On("ReleaseLock", mock.Anything, "jobs:lock:duplicate_detection", mock.AnythingOfType("string")).
		Return(nil)

	worker.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	worker.Stop()

	assert.Equal(t, 1, job.runs)
}
