package jobs

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	highRiskScoreThreshold  = 60
	recentSecurityEventDays = 7
	recentlyCreatedDays     = 30
)

// RiskUpdateJob refreshes risk scores for the prioritized populations:
// accounts already flagged high-risk, accounts with recent security
// events, and newly created accounts. Populations may overlap; updates
// are idempotent so a second pass over the same account is harmless.
type RiskUpdateJob struct {
	populations RiskPopulationLister
	updater     RiskUpdater
	logger      *zap.Logger
}

// NewRiskUpdateJob creates the risk-score-update job
func NewRiskUpdateJob(populations RiskPopulationLister, updater RiskUpdater, logger *zap.Logger) *RiskUpdateJob {
	return &RiskUpdateJob{populations: populations, updater: updater, logger: logger}
}

// Name returns the job identifier used for locks and metrics
func (j *RiskUpdateJob) Name() string { return "risk_update" }

// Run walks the three populations, isolating per-account failures, and
// returns the number of successful updates.
func (j *RiskUpdateJob) Run(ctx context.Context) (int, error) {
	updated := 0

	highRisk, err := j.populations.ListUserIDsWithMinScore(ctx, highRiskScoreThreshold)
	if err != nil {
		return updated, err
	}
	updated += j.updatePopulation(ctx, "high_risk", highRisk)

	recentEvents, err := j.populations.ListUserIDsWithRecentSecurityEvents(ctx, recentSecurityEventDays)
	if err != nil {
		return updated, err
	}
	updated += j.updatePopulation(ctx, "recent_security_events", recentEvents)

	newAccounts, err := j.populations.ListRecentlyCreatedUserIDs(ctx, recentlyCreatedDays)
	if err != nil {
		return updated, err
	}
	updated += j.updatePopulation(ctx, "new_accounts", newAccounts)

	j.logger.Info("Risk update job finished", zap.Int("updated", updated))

	return updated, nil
}

func (j *RiskUpdateJob) updatePopulation(ctx context.Context, name string, userIDs []uuid.UUID) int {
	updated := 0
	for _, id := range userIDs {
		if err := j.updater.UpdateUserRiskScore(ctx, id); err != nil {
			j.logger.Error("Risk update failed for user",
				zap.String("population", name),
				zap.String("user_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		updated++
	}

	j.logger.Debug("Processed risk population",
		zap.String("population", name),
		zap.Int("accounts", len(userIDs)),
		zap.Int("updated", updated),
	)

	return updated
}
