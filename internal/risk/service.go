package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/craftora/backoffice/pkg/common"
)

// Flags are only persisted above this score
const flagPersistThreshold = 60

// Service handles risk scoring business logic
type Service struct {
	repo   RiskRepository
	logger *zap.Logger
}

// NewService creates a new risk service
func NewService(repo RiskRepository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CalculateUserRiskScore computes the score for one account. Read-only.
func (s *Service) CalculateUserRiskScore(ctx context.Context, userID uuid.UUID) (*ScoreResult, error) {
	factors, err := s.repo.CollectFactors(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, common.NewNotFound("user %s not found", userID)
		}
		return nil, common.NewStoreError(err, "failed to collect risk factors for user %s", userID)
	}

	result := Calculate(*factors)
	return &result, nil
}

// UpdateUserRiskScore computes the score, caches it on the account and
// persists any newly raised flags. Re-running never creates duplicate
// open flags for the same (account, code) pair.
func (s *Service) UpdateUserRiskScore(ctx context.Context, userID uuid.UUID) error {
	result, err := s.CalculateUserRiskScore(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.repo.UpdateRiskScore(ctx, userID, result.Score); err != nil {
		return common.NewStoreError(err, "failed to update risk score for user %s", userID)
	}

	if result.Score > flagPersistThreshold {
		for _, code := range result.Flags {
			exists, err := s.repo.HasOpenFlag(ctx, userID, code)
			if err != nil {
				return common.NewStoreError(err, "failed to check open flag %s for user %s", code, userID)
			}
			if exists {
				continue
			}

			flag := &Flag{
				ID:        uuid.New(),
				UserID:    userID,
				Code:      code,
				Severity:  string(result.Level),
				Notes:     fmt.Sprintf("Auto-generated from risk score %d", result.Score),
				CreatedAt: time.Now(),
			}
			if err := s.repo.CreateFlag(ctx, flag); err != nil {
				return common.NewStoreError(err, "failed to create flag %s for user %s", code, userID)
			}
		}
	}

	s.logger.Info("Updated user risk score",
		zap.String("user_id", userID.String()),
		zap.Int("score", result.Score),
		zap.String("level", string(result.Level)),
		zap.Strings("flags", result.Flags),
	)

	return nil
}

// RecalculateAllRiskScores recomputes scores for every account matching the
// filter. Individual failures are logged and skipped; returns the number of
// accounts updated. The triggering admin is recorded in the audit log.
func (s *Service) RecalculateAllRiskScores(ctx context.Context, adminID uuid.UUID, filter *RecalculateFilter) (int, error) {
	userIDs, err := s.repo.ListUserIDs(ctx, filter)
	if err != nil {
		return 0, common.NewStoreError(err, "failed to list users for recalculation")
	}

	updated := 0
	for _, id := range userIDs {
		if err := s.UpdateUserRiskScore(ctx, id); err != nil {
			s.logger.Error("Failed to update risk score",
				zap.String("user_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		updated++
	}

	payload := map[string]any{
		"total":     len(userIDs),
		"updated":   updated,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if filter != nil && filter.MinScore != nil {
		payload["min_score"] = *filter.MinScore
	}
	if err := s.repo.CreateAuditEntry(ctx, adminID, "RECALCULATE_RISK_SCORES", "Users:ALL", payload); err != nil {
		// the recalculation itself succeeded, don't fail the request
		s.logger.Warn("Failed to write recalculation audit entry", zap.Error(err))
	}

	s.logger.Info("Recalculated risk scores", zap.Int("updated", updated), zap.Int("total", len(userIDs)))

	return updated, nil
}
