package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/craftora/backoffice/pkg/common"
)

// MockRiskRepository is a mock implementation of RiskRepository
type MockRiskRepository struct {
	mock.Mock
}

func (m *MockRiskRepository) CollectFactors(ctx context.Context, userID uuid.UUID) (*Factors, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Factors), args.Error(1)
}

func (m *MockRiskRepository) UpdateRiskScore(ctx context.Context, userID uuid.UUID, score int) error {
	args := m.Called(ctx, userID, score)
	return args.Error(0)
}

func (m *MockRiskRepository) HasOpenFlag(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, userID, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockRiskRepository) CreateFlag(ctx context.Context, flag *Flag) error {
	args := m.Called(ctx, flag)
	return args.Error(0)
}

func (m *MockRiskRepository) ListUserIDs(ctx context.Context, filter *RecalculateFilter) ([]uuid.UUID, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRiskRepository) ListUserIDsWithMinScore(ctx context.Context, minScore int) ([]uuid.UUID, error) {
	args := m.Called(ctx, minScore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRiskRepository) ListUserIDsWithRecentSecurityEvents(ctx context.Context, days int) ([]uuid.UUID, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRiskRepository) ListRecentlyCreatedUserIDs(ctx context.Context, days int) ([]uuid.UUID, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockRiskRepository) CreateAuditEntry(ctx context.Context, adminID uuid.UUID, action, target string, payload any) error {
	args := m.Called(ctx, adminID, action, target, payload)
	return args.Error(0)
}

var _ RiskRepository = (*MockRiskRepository)(nil)

func riskyFactors() *Factors {
	return &Factors{
		DisputeCount:        3,
		RefundRate:          35,
		IPVelocity:          25,
		AccountAgeDays:      3,
		Verification:        VerificationStatus{},
		OrderVolume:         5,
		FailedLoginAttempts: 12,
	}
}

func TestCalculateUserRiskScore(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())
	userID := uuid.New()

	repo.On("CollectFactors", mock.Anything, userID).Return(riskyFactors(), nil)

	result, err := service.CalculateUserRiskScore(context.Background(), userID)

	require.NoError(t, err)
	assert.Equal(t, LevelCritical, result.Level)
	assert.NotEmpty(t, result.Flags)
	repo.AssertExpectations(t)
}

func TestCalculateUserRiskScore_UserNotFound(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())
	userID := uuid.New()

	repo.On("CollectFactors", mock.Anything, userID).Return(nil, ErrUserNotFound)

	result, err := service.CalculateUserRiskScore(context.Background(), userID)

	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, common.IsNotFound(err))
	repo.AssertExpectations(t)
}

func TestUpdateUserRiskScore_PersistsFlagsAboveThreshold(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())
	userID := uuid.New()

	repo.On("CollectFactors", mock.Anything, userID).Return(riskyFactors(), nil)
	repo.On("UpdateRiskScore", mock.Anything, userID, mock.AnythingOfType("int")).Return(nil)
	repo.On("HasOpenFlag", mock.Anything, userID, mock.AnythingOfType("string")).Return(false, nil)
	repo.On("CreateFlag", mock.Anything, mock.AnythingOfType("*risk.Flag")).Return(nil)

	err := service.UpdateUserRiskScore(context.Background(), userID)

	require.NoError(t, err)
	// riskyFactors trips all eight flag conditions
	repo.AssertNumberOfCalls(t, "CreateFlag", 8)
	repo.AssertExpectations(t)
}

func TestUpdateUserRiskScore_SkipsExistingOpenFlags(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())
	userID := uuid.New()

	repo.On("CollectFactors", mock.Anything, userID).Return(riskyFactors(), nil)
	repo.On("UpdateRiskScore", mock.Anything, userID, mock.AnythingOfType("int")).Return(nil)
	repo.On("HasOpenFlag", mock.Anything, userID, mock.AnythingOfType("string")).Return(true, nil)

	err := service.UpdateUserRiskScore(context.Background(), userID)

	require.NoError(t, err)
	repo.AssertNotCalled(t, "CreateFlag", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestUpdateUserRiskScore_LowScoreSkipsFlags(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())
	userID := uuid.New()

	clean := &Factors{
		IPVelocity:     1,
		AccountAgeDays: 400,
		Verification:   VerificationStatus{EmailVerified: true, PhoneVerified: true, KYCVerified: true},
		OrderVolume:    20,
	}
	repo.On("CollectFactors", mock.Anything, userID).Return(clean, nil)
	repo.On("UpdateRiskScore", mock.Anything, userID, 0).Return(nil)

	err := service.UpdateUserRiskScore(context.Background(), userID)

	require.NoError(t, err)
	repo.AssertNotCalled(t, "HasOpenFlag", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "CreateFlag", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestUpdateUserRiskScore_StoreError(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())
	userID := uuid.New()

	repo.On("CollectFactors", mock.Anything, userID).Return(riskyFactors(), nil)
	repo.On("UpdateRiskScore", mock.Anything, userID, mock.AnythingOfType("int")).
		Return(errors.New("connection reset"))

	err := service.UpdateUserRiskScore(context.Background(), userID)

	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, common.CodeStoreError, appErr.Code)
	repo.AssertExpectations(t)
}

func TestRecalculateAllRiskScores_IsolatesFailures(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())

	adminID := uuid.New()
	goodID := uuid.New()
	badID := uuid.New()

	repo.On("ListUserIDs", mock.Anything, (*RecalculateFilter)(nil)).
		Return([]uuid.UUID{goodID, badID}, nil)

	repo.On("CollectFactors", mock.Anything, goodID).Return(riskyFactors(), nil)
	repo.On("UpdateRiskScore", mock.Anything, goodID, mock.AnythingOfType("int")).Return(nil)
	repo.On("HasOpenFlag", mock.Anything, goodID, mock.AnythingOfType("string")).Return(true, nil)

	repo.On("CollectFactors", mock.Anything, badID).Return(nil, errors.New("scan failed"))

	repo.On("CreateAuditEntry", mock.Anything, adminID, "RECALCULATE_RISK_SCORES", "Users:ALL", mock.Anything).
		Return(nil)

	updated, err := service.RecalculateAllRiskScores(context.Background(), adminID, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	repo.AssertExpectations(t)
}

func TestRecalculateAllRiskScores_ListError(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())

	repo.On("ListUserIDs", mock.Anything, (*RecalculateFilter)(nil)).
		Return(nil, errors.New("timeout"))

	updated, err := service.RecalculateAllRiskScores(context.Background(), uuid.New(), nil)

	assert.Zero(t, updated)
	require.Error(t, err)
	repo.AssertNotCalled(t, "CreateAuditEntry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRecalculateAllRiskScores_AuditFailureDoesNotFail(t *testing.T) {
	repo := new(MockRiskRepository)
	service := NewService(repo, zap.NewNop())

	repo.On("ListUserIDs", mock.Anything, (*RecalculateFilter)(nil)).
		Return([]uuid.UUID{}, nil)
	repo.On("CreateAuditEntry", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("audit table locked"))

	updated, err := service.RecalculateAllRiskScores(context.Background(), uuid.New(), nil)

	require.NoError(t, err)
	assert.Zero(t, updated)
}
