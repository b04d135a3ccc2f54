package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftora/backoffice/internal/duplicates"
	"github.com/craftora/backoffice/internal/risk"
)

// MockDuplicateDetector is a mock implementation of DuplicateDetector
type MockDuplicateDetector struct {
	mock.Mock
}

func (m *MockDuplicateDetector) DetectAllDuplicates(ctx context.Context) (map[uuid.UUID][]duplicates.Match, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID][]duplicates.Match), args.Error(1)
}

var _ DuplicateDetector = (*MockDuplicateDetector)(nil)

// MockReviewTaskStore is a mock implementation of ReviewTaskStore
type MockReviewTaskStore struct {
	mock.Mock
}

func (m *MockReviewTaskStore) HasOpenReviewTask(ctx context.Context, userID uuid.UUID, title string) (bool, error) {
	args := m.Called(ctx, userID, title)
	return args.Bool(0), args.Error(1)
}

func (m *MockReviewTaskStore) CreateReviewTask(ctx context.Context, task *duplicates.ReviewTask) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

var _ ReviewTaskStore = (*MockReviewTaskStore)(nil)

// MockFlagStore is a mock implementation of FlagStore
type MockFlagStore struct {
	mock.Mock
}

func (m *MockFlagStore) HasOpenFlag(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, userID, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockFlagStore) CreateFlag(ctx context.Context, flag *risk.Flag) error {
	args := m.Called(ctx, flag)
	return args.Error(0)
}

var _ FlagStore = (*MockFlagStore)(nil)

func matchWithConfidence(matchType duplicates.MatchType, confidence float64) duplicates.Match {
	return duplicates.Match{
		UserID:     uuid.New(),
		Email:      "candidate@example.com",
		MatchType:  matchType,
		Confidence: confidence,
	}
}

func TestDuplicateDetectionJob_CreatesMediumPriorityTask(t *testing.T) {
	detector := new(MockDuplicateDetector)
	tasks := new(MockReviewTaskStore)
	flags := new(MockFlagStore)
	job := NewDuplicateDetectionJob(detector, tasks, flags, zap.NewNop())

	userID := uuid.New()
	results := map[uuid.UUID][]duplicates.Match{
		userID: {matchWithConfidence(duplicates.MatchDevice, 0.70)},
	}

	detector.On("DetectAllDuplicates", mock.Anything).Return(results, nil)
	tasks.On("HasOpenReviewTask", mock.Anything, userID, duplicates.ReviewTaskTitle).Return(false, nil)
	tasks.On("CreateReviewTask", mock.Anything, mock.MatchedBy(func(task *duplicates.ReviewTask) bool {
		return task.UserID == userID &&
			task.Priority == duplicates.TaskPriorityMedium &&
			task.Status == duplicates.TaskStatusPending
	})).Return(nil)

	processed, err := job.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	tasks.AssertExpectations(t)
	// device confidence is below the auto-flag threshold
	flags.AssertNotCalled(t, "CreateFlag", mock.Anything, mock.Anything)
}

func TestDuplicateDetectionJob_HighPriorityAtThreeMatches(t *testing.T) {
	detector := new(MockDuplicateDetector)
	tasks := new(MockReviewTaskStore)
	flags := new(MockFlagStore)
	job := NewDuplicateDetectionJob(detector, tasks, flags, zap.NewNop())

	userID := uuid.New()
	results := map[uuid.UUID][]duplicates.Match{
		userID: {
			matchWithConfidence(duplicates.MatchDevice, 0.70),
			matchWithConfidence(duplicates.MatchDevice, 0.70),
			matchWithConfidence(duplicates.MatchNameSimilarity, 0.54),
		},
	}

	detector.On("DetectAllDuplicates", mock.Anything).Return(results, nil)
	tasks.On("HasOpenReviewTask", mock.Anything, userID, duplicates.ReviewTaskTitle).Return(false, nil)
	tasks.On("CreateReviewTask", mock.Anything, mock.MatchedBy(func(task *duplicates.ReviewTask) bool {
		return task.Priority == duplicates.TaskPriorityHigh
	})).Return(nil)

	_, err := job.Run(context.Background())

	require.NoError(t, err)
	tasks.AssertExpectations(t)
}

func TestDuplicateDetectionJob_SkipsExistingOpenTask(t *testing.T) {
	detector := new(MockDuplicateDetector)
	tasks := new(MockReviewTaskStore)
	flags := new(MockFlagStore)
	job := NewDuplicateDetectionJob(detector, tasks, flags, zap.NewNop())

	userID := uuid.New()
	results := map[uuid.UUID][]duplicates.Match{
		userID: {matchWithConfidence(duplicates.MatchDevice, 0.70)},
	}

	detector.On("DetectAllDuplicates", mock.Anything).Return(results, nil)
	tasks.On("HasOpenReviewTask", mock.Anything, userID, duplicates.ReviewTaskTitle).Return(true, nil)

	_, err := job.Run(context.Background())

	require.NoError(t, err)
	tasks.AssertNotCalled(t, "CreateReviewTask", mock.Anything, mock.Anything)
}

func TestDuplicateDetectionJob_FlagsHighConfidenceMatches(t *testing.T) {
	detector := new(MockDuplicateDetector)
	tasks := new(MockReviewTaskStore)
	flags := new(MockFlagStore)
	job := NewDuplicateDetectionJob(detector, tasks, flags, zap.NewNop())

	userID := uuid.New()
	emailMatch := matchWithConfidence(duplicates.MatchEmail, 1.0)
	phoneMatch := matchWithConfidence(duplicates.MatchPhone, 0.95)
	deviceMatch := matchWithConfidence(duplicates.MatchDevice, 0.70)
	results := map[uuid.UUID][]duplicates.Match{
		userID: {emailMatch, phoneMatch, deviceMatch},
	}

	detector.On("DetectAllDuplicates", mock.Anything).Return(results, nil)
	tasks.On("HasOpenReviewTask", mock.Anything, userID, duplicates.ReviewTaskTitle).Return(true, nil)
	flags.On("HasOpenFlag", mock.Anything, userID, risk.FlagDuplicate).Return(false, nil)
	flags.On("CreateFlag", mock.Anything, mock.MatchedBy(func(flag *risk.Flag) bool {
		return flag.UserID == userID &&
			flag.Code == risk.FlagDuplicate &&
			flag.Severity == string(risk.LevelHigh)
	})).Return(nil)

	_, err := job.Run(context.Background())

	require.NoError(t, err)
	// email and phone matches exceed the threshold, device does not
	flags.AssertNumberOfCalls(t, "CreateFlag", 2)
}

func TestDuplicateDetectionJob_SkipsExistingOpenFlag(t *testing.T) {
	detector := new(MockDuplicateDetector)
	tasks := new(MockReviewTaskStore)
	flags := new(MockFlagStore)
	job := NewDuplicateDetectionJob(detector, tasks, flags, zap.NewNop())

	userID := uuid.New()
	results := map[uuid.UUID][]duplicates.Match{
		userID: {matchWithConfidence(duplicates.MatchEmail, 1.0)},
	}

	detector.On("DetectAllDuplicates", mock.Anything).Return(results, nil)
	tasks.On("HasOpenReviewTask", mock.Anything, userID, duplicates.ReviewTaskTitle).Return(true, nil)
	flags.On("HasOpenFlag", mock.Anything, userID, risk.FlagDuplicate).Return(true, nil)

	_, err := job.Run(context.Background())

	require.NoError(t, err)
	flags.AssertNotCalled(t, "CreateFlag", mock.Anything, mock.Anything)
}

func TestDuplicateDetectionJob_DetectorFailure(t *testing.T) {
	detector := new(MockDuplicateDetector)
	job := NewDuplicateDetectionJob(detector, new(MockReviewTaskStore), new(MockFlagStore), zap.NewNop())

	detector.On("DetectAllDuplicates", mock.Anything).Return(nil, errors.New("timeout"))

	processed, err := job.Run(context.Background())

	require.Error(t, err)
	assert.Zero(t, processed)
}

func TestDuplicateDetectionJob_Name(t *testing.T) {
	job := NewDuplicateDetectionJob(new(MockDuplicateDetector), new(MockReviewTaskStore), new(MockFlagStore), zap.NewNop())
	assert.Equal(t, "duplicate_detection", job.Name())
}
